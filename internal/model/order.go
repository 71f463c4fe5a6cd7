package model

import (
	"time"

	"github.com/google/uuid"
)

// Состояния заказа, видимые клиенту.
type OrderState string

const (
	OrderStateInitialized        OrderState = "INITIALIZED"
	OrderStateConfirmed          OrderState = "CONFIRMED"
	OrderStateFulfillmentPending OrderState = "FULFILLMENT_PENDING"
	OrderStateInProgress         OrderState = "IN_PROGRESS"
	OrderStateCompleted          OrderState = "COMPLETED"
	OrderStateCancelled          OrderState = "CANCELLED"
	OrderStateNoShow             OrderState = "NO_SHOW"
	OrderStateRescheduled        OrderState = "RESCHEDULED"
)

// orders
type Order struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Ссылка на визит; после установки не меняется.
	FulfillmentID *uuid.UUID `gorm:"type:uuid;index"`

	// Состояние хранится строкой: провайдер может прислать произвольный статус.
	State OrderState `gorm:"type:varchar(64);not null;index"`

	Version int64 `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Provider    *Provider    `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Fulfillment *Fulfillment `gorm:"foreignKey:FulfillmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
