package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/calendar"
)

// Provider — поставщик медицинских услуг (клиника, врач и т.п.).
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Имя/отображаемое название в интерфейсе.
	DisplayName string `gorm:"type:varchar(255);not null"`

	// Краткое описание, специализация и т.п.
	Description string `gorm:"type:text"`

	// IANA-зона, в которой заданы рабочие часы.
	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	// Рабочие часы в JSON (calendar.WorkingHours). NULL — используется расписание по умолчанию.
	WorkingHours datatypes.JSON

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location разбирает TimeZone провайдера; пустая зона — UTC.
func (p *Provider) Location() (*time.Location, error) {
	if p.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return nil, apperr.Validation("unknown time zone %q", p.TimeZone)
	}
	return loc, nil
}

// HasWorkingHours — сохранено ли у провайдера собственное расписание.
func (p *Provider) HasWorkingHours() bool {
	return len(p.WorkingHours) > 0 && string(p.WorkingHours) != "null"
}

// SetWorkingHours валидирует и сериализует расписание в колонку.
func (p *Provider) SetWorkingHours(wh calendar.WorkingHours) error {
	if err := wh.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(wh.Normalize())
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}
	p.WorkingHours = datatypes.JSON(raw)
	return nil
}

// Calendar собирает calendar.ProviderCalendar; fallback подставляется,
// если собственного расписания нет.
func (p *Provider) Calendar(fallback calendar.WorkingHours) (calendar.ProviderCalendar, error) {
	loc, err := p.Location()
	if err != nil {
		return calendar.ProviderCalendar{}, err
	}
	if !p.HasWorkingHours() {
		return calendar.NewProviderCalendar(fallback, loc), nil
	}
	var wh calendar.WorkingHours
	if err := json.Unmarshal(p.WorkingHours, &wh); err != nil {
		return calendar.ProviderCalendar{}, fmt.Errorf("decode working hours of provider %s: %w", p.ID, err)
	}
	return calendar.NewProviderCalendar(wh, loc), nil
}
