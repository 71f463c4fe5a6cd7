package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/care-gateway/internal/model"
)

type EventRepository interface {
	// Записать событие аудита.
	Create(ctx context.Context, e *model.Event) error
	// События по визиту или заказу, новые первыми.
	ListByFulfillment(ctx context.Context, fulfillmentID uuid.UUID, limit int) ([]model.Event, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, e *model.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormEventRepository) ListByFulfillment(ctx context.Context, fulfillmentID uuid.UUID, limit int) ([]model.Event, error) {
	return r.list(ctx, "fulfillment_id = ?", fulfillmentID, limit)
}

func (r *GormEventRepository) ListByOrder(ctx context.Context, orderID uuid.UUID, limit int) ([]model.Event, error) {
	return r.list(ctx, "order_id = ?", orderID, limit)
}

func (r *GormEventRepository) list(ctx context.Context, cond string, id uuid.UUID, limit int) ([]model.Event, error) {
	var out []model.Event
	q := r.db.WithContext(ctx).Where(cond, id).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
