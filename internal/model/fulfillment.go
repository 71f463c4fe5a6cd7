package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/care-gateway/internal/calendar"
)

// Состояния визита (fulfillment). Переходы между ними описаны в пакете lifecycle.
type FulfillmentState string

const (
	FulfillmentStateScheduled   FulfillmentState = "SCHEDULED"
	FulfillmentStateWaiting     FulfillmentState = "WAITING"
	FulfillmentStateInProgress  FulfillmentState = "IN_PROGRESS"
	FulfillmentStateCompleted   FulfillmentState = "COMPLETED"
	FulfillmentStateCancelled   FulfillmentState = "CANCELLED"
	FulfillmentStateNoShow      FulfillmentState = "NO_SHOW"
	FulfillmentStateRescheduled FulfillmentState = "RESCHEDULED"
)

// fulfillments — запланированное оказание услуги провайдером.
type Fulfillment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index"`

	// teleconsultation, home-visit, clinic-visit и т.п.
	Type         string `gorm:"type:varchar(64)"`
	AgentName    string `gorm:"type:varchar(255)"`
	CustomerName string `gorm:"type:varchar(255)"`

	StartAt          time.Time `gorm:"not null;index"`
	StartDurationSec *int64    `gorm:"type:bigint"`
	EndAt            *time.Time
	EndDurationSec   *int64 `gorm:"type:bigint"`

	// Фактический конец [StartAt, EffectiveEnd) — для выборки кандидатов на пересечение.
	EffectiveEnd time.Time `gorm:"not null;index"`

	// nil — состояние ещё не задано.
	StateDescriptor *FulfillmentState `gorm:"type:varchar(32);index"`
	StateUpdatedAt  *time.Time

	Tags datatypes.JSONMap

	// Версия для оптимистичной блокировки.
	Version int64 `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// StartSlot / EndSlot — временные точки записи в терминах calendar.TimeSlot.
func (f *Fulfillment) StartSlot() calendar.TimeSlot {
	return calendar.TimeSlot{At: f.StartAt, Duration: f.StartDurationSec}
}

func (f *Fulfillment) EndSlot() calendar.TimeSlot {
	slot := calendar.TimeSlot{Duration: f.EndDurationSec}
	if f.EndAt != nil {
		slot.At = *f.EndAt
	}
	return slot
}

// Interval — фактический интервал записи.
func (f *Fulfillment) Interval() calendar.Interval {
	return calendar.EffectiveInterval(f.StartSlot(), f.EndSlot())
}

// State возвращает текущее состояние и признак того, что оно задано.
func (f *Fulfillment) State() (FulfillmentState, bool) {
	if f.StateDescriptor == nil {
		return "", false
	}
	return *f.StateDescriptor, true
}

// Intervals собирает фактические интервалы списка записей.
func Intervals(fs []Fulfillment) []calendar.Interval {
	out := make([]calendar.Interval, 0, len(fs))
	for i := range fs {
		out = append(out, fs[i].Interval())
	}
	return out
}
