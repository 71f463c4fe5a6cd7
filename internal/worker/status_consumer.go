package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
)

// ErrDeliveriesClosed — брокер закрыл канал доставки, пока консьюмер ещё должен работать.
var ErrDeliveriesClosed = errors.New("status deliveries closed")

// StatusMessage — входящий статус заказа (routing key order.on_status).
type StatusMessage struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
}

// StatusApplier — то, что умеет применить статус к заказу (service.OrderService).
type StatusApplier interface {
	ApplyStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)
}

// StatusConsumer читает статусы провайдеров из очереди и передаёт их в StatusApplier.
type StatusConsumer struct {
	orders StatusApplier
	log    zerolog.Logger
}

func NewStatusConsumer(orders StatusApplier, log zerolog.Logger) *StatusConsumer {
	return &StatusConsumer{orders: orders, log: log.With().Str("component", "status_consumer").Logger()}
}

// Run обрабатывает сообщения до отмены ctx. Закрытие канала при живом ctx
// возвращает ErrDeliveriesClosed.
func (c *StatusConsumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Msg("deliveries channel closed")
				return ErrDeliveriesClosed
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle: успех — Ack; битое сообщение, неизвестный заказ, ошибка валидации — Reject
// без повтора; прочие ошибки — Nack с возвратом в очередь.
func (c *StatusConsumer) Handle(ctx context.Context, d amqp.Delivery) {
	log := c.log.With().Str("routing_key", d.RoutingKey).Uint64("delivery_tag", d.DeliveryTag).Logger()

	err := c.process(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Warn().Err(ackErr).Msg("ack failed")
		}
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrNotFound):
		log.Warn().Err(err).Msg("status dropped")
		if rejErr := d.Reject(false); rejErr != nil {
			log.Warn().Err(rejErr).Msg("reject failed")
		}
	default:
		log.Error().Err(err).Msg("status not applied, requeue")
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Warn().Err(nackErr).Msg("nack failed")
		}
	}
}

func (c *StatusConsumer) process(ctx context.Context, body []byte) error {
	var msg StatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return apperr.Validation("malformed status message: %v", err)
	}
	id, err := uuid.Parse(msg.OrderID)
	if err != nil {
		return apperr.Validation("invalid order_id %q", msg.OrderID)
	}

	o, err := c.orders.ApplyStatus(ctx, id, msg.State)
	if err != nil {
		return err
	}
	c.log.Info().Str("order_id", o.ID.String()).Str("state", string(o.State)).Msg("order status applied")
	return nil
}
