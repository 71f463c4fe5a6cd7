package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/lifecycle"
	"github.com/Leganyst/care-gateway/internal/model"
	"github.com/Leganyst/care-gateway/internal/platform/mq"
	"github.com/Leganyst/care-gateway/internal/platform/obs"
	"github.com/Leganyst/care-gateway/internal/repository"
)

type CreateOrderInput struct {
	ProviderID    uuid.UUID
	FulfillmentID *uuid.UUID
}

// OrderService ведёт заказы и держит их состояние согласованным с визитом.
type OrderService struct {
	orders       repository.OrderRepository
	providers    *ProviderService
	fulfillments *FulfillmentService
	notifier
	retries int
	now     func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	providers *ProviderService,
	fulfillments *FulfillmentService,
	events repository.EventRepository,
	publisher EventPublisher,
	retries int,
	log zerolog.Logger,
) *OrderService {
	if retries < 1 {
		retries = defaultConflictRetries
	}
	return &OrderService{
		orders:       orders,
		providers:    providers,
		fulfillments: fulfillments,
		notifier: notifier{
			events:    events,
			publisher: publisher,
			log:       log.With().Str("component", "order_service").Logger(),
		},
		retries: retries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create заводит заказ в состоянии INITIALIZED.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if in.ProviderID == uuid.Nil {
		return nil, apperr.Validation("provider_id is required")
	}
	if _, err := s.providers.Get(ctx, in.ProviderID); err != nil {
		return nil, err
	}
	if in.FulfillmentID != nil {
		if err := s.checkFulfillment(ctx, in.ProviderID, *in.FulfillmentID); err != nil {
			return nil, err
		}
	}

	o := &model.Order{ProviderID: in.ProviderID, FulfillmentID: in.FulfillmentID, State: model.OrderStateInitialized}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info().Str("order_id", o.ID.String()).Str("provider_id", o.ProviderID.String()).Msg("order initialized")
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// Confirm переводит заказ в CONFIRMED и, если передан fulfillmentID,
// привязывает визит. Привязка неизменна: другой fulfillmentID у уже
// привязанного заказа — BusinessLogicError.
func (s *OrderService) Confirm(ctx context.Context, id uuid.UUID, fulfillmentID *uuid.UUID) (*model.Order, error) {
	var (
		confirmed *model.Order
		previous  model.OrderState
	)
	err := withRetry(s.retries, func() error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if fulfillmentID != nil {
			switch {
			case o.FulfillmentID == nil:
				if err := s.checkFulfillment(ctx, o.ProviderID, *fulfillmentID); err != nil {
					return err
				}
				o.FulfillmentID = fulfillmentID
			case *o.FulfillmentID != *fulfillmentID:
				return apperr.BusinessLogic("order %s is already linked to fulfillment %s", o.ID, *o.FulfillmentID)
			}
		}
		previous = o.State
		o.State = model.OrderStateConfirmed
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		confirmed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.orderChanged(ctx, confirmed, previous)
	return confirmed, nil
}

// ListByFulfillment — заказы, привязанные к визиту.
func (s *OrderService) ListByFulfillment(ctx context.Context, fulfillmentID uuid.UUID) ([]model.Order, error) {
	if _, err := s.fulfillments.Get(ctx, fulfillmentID); err != nil {
		return nil, err
	}
	return s.orders.ListByFulfillment(ctx, fulfillmentID)
}

// Events — журнал аудита заказа, новые первыми.
func (s *OrderService) Events(ctx context.Context, id uuid.UUID, limit int) ([]model.Event, error) {
	if _, err := s.orders.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListByOrder(ctx, id, limit)
}

// ProjectStatus выводит состояние заказа из состояния привязанного визита
// и сохраняет его, если оно изменилось.
//
// Если визит прочитать не удалось, возвращается сохранённое состояние заказа:
// ошибка только логируется и пишется в аудит.
func (s *OrderService) ProjectStatus(ctx context.Context, id uuid.UUID) (_ *model.Order, err error) {
	ctx, span := obs.Tracer().Start(ctx, "order.project_status")
	span.SetAttributes(attribute.String("order.id", id.String()))
	defer func() { endSpan(span, err) }()

	var (
		result   *model.Order
		previous model.OrderState
		changed  bool
	)
	err = withRetry(s.retries, func() error {
		changed = false
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result = o
		if o.FulfillmentID == nil {
			return nil
		}

		f, err := s.fulfillments.Get(ctx, *o.FulfillmentID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("order_id", o.ID.String()).
				Str("fulfillment_id", o.FulfillmentID.String()).
				Msg("fulfillment unavailable, keeping stored order state")
			s.audit(ctx, model.EventTypeOrderProjectionFailed, o.FulfillmentID, &o.ID, map[string]any{
				"error": err.Error(),
				"state": o.State,
			})
			return nil
		}

		projected := lifecycle.Project(o.State, f)
		if projected == o.State {
			return nil
		}
		previous = o.State
		o.State = projected
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.orderChanged(ctx, result, previous)
	}
	return result, nil
}

// ApplyStatus выставляет состояние заказа напрямую и переносит его на визит
// по обратной таблице. Ошибка перевода визита не откатывает заказ:
// она логируется, пишется в аудит, а расхождение устраняет следующая проекция.
func (s *OrderService) ApplyStatus(ctx context.Context, id uuid.UUID, status string) (_ *model.Order, err error) {
	ctx, span := obs.Tracer().Start(ctx, "order.apply_status")
	span.SetAttributes(attribute.String("order.id", id.String()), attribute.String("order.status", status))
	defer func() { endSpan(span, err) }()

	state := model.OrderState(strings.TrimSpace(status))
	if state == "" {
		return nil, apperr.Validation("order state is required")
	}

	var (
		updated  *model.Order
		previous model.OrderState
	)
	err = withRetry(s.retries, func() error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		previous = o.State
		o.State = state
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != state {
		s.orderChanged(ctx, updated, previous)
	}

	if updated.FulfillmentID != nil {
		s.syncFulfillment(ctx, updated)
	}
	return updated, nil
}

func (s *OrderService) syncFulfillment(ctx context.Context, o *model.Order) {
	target, ok := lifecycle.FulfillmentStateFor(o.State)
	if !ok {
		return
	}

	fid := *o.FulfillmentID
	log := s.log.With().Str("order_id", o.ID.String()).Str("fulfillment_id", fid.String()).Str("target", string(target)).Logger()

	f, err := s.fulfillments.Get(ctx, fid)
	if err == nil {
		if current, set := f.State(); set && current == target {
			return
		}
		_, err = s.fulfillments.UpdateState(ctx, fid, string(target), map[string]string{
			"source":   "order_status",
			"order_id": o.ID.String(),
		})
	}
	if err == nil {
		return
	}

	evt := log.Warn().Err(err)
	if !errors.Is(err, apperr.ErrBusinessLogic) {
		evt = log.Error().Err(err)
	}
	evt.Msg("fulfillment not updated, order and fulfillment diverged")
	s.audit(ctx, model.EventTypeOrderDiverged, &fid, &o.ID, map[string]any{
		"order_state": o.State,
		"target":      target,
		"error":       err.Error(),
	})
}

func (s *OrderService) checkFulfillment(ctx context.Context, providerID, fulfillmentID uuid.UUID) error {
	f, err := s.fulfillments.Get(ctx, fulfillmentID)
	if err != nil {
		return err
	}
	if f.ProviderID != providerID {
		return apperr.Validation("fulfillment %s belongs to another provider", fulfillmentID)
	}
	return nil
}

func (s *OrderService) orderChanged(ctx context.Context, o *model.Order, previous model.OrderState) {
	s.log.Info().
		Str("order_id", o.ID.String()).
		Str("from", string(previous)).
		Str("to", string(o.State)).
		Msg("order state changed")

	s.audit(ctx, model.EventTypeOrderStateChanged, o.FulfillmentID, &o.ID, map[string]any{
		"from": previous,
		"to":   o.State,
	})
	s.publish(ctx, mq.KeyOrderStateChanged, OrderEvent{
		OrderID:       o.ID,
		FulfillmentID: o.FulfillmentID,
		State:         o.State,
		PreviousState: previous,
		At:            s.now(),
	})
}
