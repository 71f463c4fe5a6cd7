package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
)

type OrderRepository interface {
	// Создать заказ. Пустой ID генерируется.
	Create(ctx context.Context, o *model.Order) error
	// Получить заказ по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// Сохранить заказ с проверкой версии; o.Version увеличивается.
	// Ранее установленная ссылка на визит не перезаписывается.
	Update(ctx context.Context, o *model.Order) error
	// Заказы, ссылающиеся на визит.
	ListByFulfillment(ctx context.Context, fulfillmentID uuid.UUID) ([]model.Order, error)
}

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, o *model.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	return mapError(r.db.WithContext(ctx).Create(o).Error, "order", o.ID)
}

func (r *GormOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, mapError(err, "order", id)
	}
	return &o, nil
}

func (r *GormOrderRepository) Update(ctx context.Context, o *model.Order) error {
	current, err := r.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	if current.FulfillmentID != nil && (o.FulfillmentID == nil || *o.FulfillmentID != *current.FulfillmentID) {
		return apperr.BusinessLogic("order %s is already linked to fulfillment %s", o.ID, *current.FulfillmentID)
	}

	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(map[string]any{
			"state":          o.State,
			"fulfillment_id": o.FulfillmentID,
			"version":        o.Version + 1,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("order %s was modified concurrently (version %d is stale)", o.ID, o.Version)
	}
	o.Version++
	return nil
}

func (r *GormOrderRepository) ListByFulfillment(ctx context.Context, fulfillmentID uuid.UUID) ([]model.Order, error) {
	var out []model.Order
	err := r.db.WithContext(ctx).
		Where("fulfillment_id = ?", fulfillmentID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
