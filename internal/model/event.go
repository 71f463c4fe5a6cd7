package model

import (
	"time"

	"github.com/google/uuid"
)

// Тип события аудита.
type EventType string

const (
	EventTypeFulfillmentCreated      EventType = "fulfillment_created"
	EventTypeFulfillmentStateChanged EventType = "fulfillment_state_changed"
	EventTypeOrderStateChanged       EventType = "order_state_changed"
	EventTypeOrderProjectionFailed   EventType = "order_projection_failed"
	EventTypeOrderDiverged           EventType = "order_fulfillment_diverged"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	FulfillmentID *uuid.UUID `gorm:"type:uuid;index"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`
}
