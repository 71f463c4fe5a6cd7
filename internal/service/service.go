package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
	"github.com/Leganyst/care-gateway/internal/repository"
)

// EventPublisher — исходящая шина событий (mq.Publisher или mq.NopPublisher).
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// FulfillmentEvent — полезная нагрузка fulfillment.created / fulfillment.state_changed.
type FulfillmentEvent struct {
	FulfillmentID uuid.UUID              `json:"fulfillment_id"`
	ProviderID    uuid.UUID              `json:"provider_id"`
	State         model.FulfillmentState `json:"state"`
	PreviousState model.FulfillmentState `json:"previous_state,omitempty"`
	StartAt       time.Time              `json:"start_at"`
	EndAt         time.Time              `json:"end_at"`
	At            time.Time              `json:"at"`
}

// OrderEvent — полезная нагрузка order.state_changed.
type OrderEvent struct {
	OrderID       uuid.UUID        `json:"order_id"`
	FulfillmentID *uuid.UUID       `json:"fulfillment_id,omitempty"`
	State         model.OrderState `json:"state"`
	PreviousState model.OrderState `json:"previous_state,omitempty"`
	At            time.Time        `json:"at"`
}

const defaultConflictRetries = 3

// notifier — общая для сервисов запись аудита и публикация событий.
// Ошибки обоих путей только логируются: основная запись уже сохранена.
type notifier struct {
	events    repository.EventRepository
	publisher EventPublisher
	log       zerolog.Logger
}

func (n notifier) audit(ctx context.Context, typ model.EventType, fulfillmentID, orderID *uuid.UUID, details any) {
	if n.events == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte(`{}`)
	}
	e := &model.Event{EventType: typ, FulfillmentID: fulfillmentID, OrderID: orderID, Details: string(raw)}
	if err := n.events.Create(ctx, e); err != nil {
		n.log.Warn().Err(err).Str("event_type", string(typ)).Msg("audit event not stored")
	}
}

func (n notifier) publish(ctx context.Context, key string, payload any) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.PublishJSON(ctx, key, payload); err != nil {
		n.log.Warn().Err(err).Str("routing_key", key).Msg("event not published")
	}
}

// withRetry повторяет read-modify-write, пока хранилище отвечает ErrConflict.
func withRetry(attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for range attempts {
		if err = fn(); !errors.Is(err, apperr.ErrConflict) {
			return err
		}
	}
	return err
}

// endSpan помечает спан ошибкой (если есть) и закрывает его.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func ptr[T any](v T) *T { return &v }
