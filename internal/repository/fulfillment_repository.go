package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
)

// ConflictCheck вызывается внутри транзакции со списком активных визитов
// провайдера, пересекающих новый; ненулевая ошибка отменяет вставку.
type ConflictCheck func(candidates []model.Fulfillment) error

type FulfillmentRepository interface {
	// Создать визит без проверок. Занятый ID — apperr.ErrDuplicate.
	Create(ctx context.Context, f *model.Fulfillment) error
	// Создать визит, если check не нашёл конфликтов. Провайдер блокируется
	// на время транзакции, поэтому параллельные записи к одному провайдеру сериализуются.
	CreateIfNoConflict(ctx context.Context, f *model.Fulfillment, check ConflictCheck) error
	// Получить визит по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Fulfillment, error)
	// Сохранить визит с проверкой версии (compare-and-swap); f.Version увеличивается.
	Update(ctx context.Context, f *model.Fulfillment) error
	// Все визиты провайдера по времени начала.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.Fulfillment, error)
	// Активные (не отменённые) визиты провайдера, пересекающие [from, to).
	ListActiveInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.Fulfillment, error)
}

type GormFulfillmentRepository struct {
	db *gorm.DB
}

func NewGormFulfillmentRepository(db *gorm.DB) *GormFulfillmentRepository {
	return &GormFulfillmentRepository{db: db}
}

// prepare нормализует время в UTC и заполняет вычисляемые поля перед вставкой.
func prepare(f *model.Fulfillment) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Version == 0 {
		f.Version = 1
	}
	f.StartAt = f.StartAt.UTC()
	if f.EndAt != nil {
		end := f.EndAt.UTC()
		f.EndAt = &end
	}
	f.EffectiveEnd = f.Interval().End.UTC()
}

func (r *GormFulfillmentRepository) Create(ctx context.Context, f *model.Fulfillment) error {
	prepare(f)
	return mapError(r.db.WithContext(ctx).Create(f).Error, "fulfillment", f.ID)
}

func (r *GormFulfillmentRepository) CreateIfNoConflict(ctx context.Context, f *model.Fulfillment, check ConflictCheck) error {
	prepare(f)
	iv := f.Interval()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Блокируем строку провайдера: так сериализуются и вставки в пустой диапазон.
		var provider model.Provider
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&provider, "id = ?", f.ProviderID).Error
		if err != nil {
			return mapError(err, "provider", f.ProviderID)
		}

		var candidates []model.Fulfillment
		err = activeInRange(tx.Clauses(clause.Locking{Strength: "UPDATE"}), f.ProviderID, iv.Start, iv.End).
			Find(&candidates).Error
		if err != nil {
			return err
		}

		if check != nil {
			if err := check(candidates); err != nil {
				return err
			}
		}

		return mapError(tx.Create(f).Error, "fulfillment", f.ID)
	})
}

func (r *GormFulfillmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Fulfillment, error) {
	var f model.Fulfillment
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, mapError(err, "fulfillment", id)
	}
	return &f, nil
}

func (r *GormFulfillmentRepository) Update(ctx context.Context, f *model.Fulfillment) error {
	f.StartAt = f.StartAt.UTC()
	f.EffectiveEnd = f.Interval().End.UTC()

	res := r.db.WithContext(ctx).
		Model(&model.Fulfillment{}).
		Where("id = ? AND version = ?", f.ID, f.Version).
		Updates(map[string]any{
			"type":               f.Type,
			"agent_name":         f.AgentName,
			"customer_name":      f.CustomerName,
			"start_at":           f.StartAt,
			"start_duration_sec": f.StartDurationSec,
			"end_at":             f.EndAt,
			"end_duration_sec":   f.EndDurationSec,
			"effective_end":      f.EffectiveEnd,
			"state_descriptor":   f.StateDescriptor,
			"state_updated_at":   f.StateUpdatedAt,
			"tags":               f.Tags,
			"version":            f.Version + 1,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, f.ID, f.Version)
	}
	f.Version++
	return nil
}

func (r *GormFulfillmentRepository) missOrConflict(ctx context.Context, id uuid.UUID, version int64) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Fulfillment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("fulfillment %s not found", id)
	}
	return apperr.Conflict("fulfillment %s was modified concurrently (version %d is stale)", id, version)
}

func (r *GormFulfillmentRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.Fulfillment, error) {
	var out []model.Fulfillment
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("start_at ASC").
		Find(&out).Error
	return out, err
}

func (r *GormFulfillmentRepository) ListActiveInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]model.Fulfillment, error) {
	var out []model.Fulfillment
	err := activeInRange(r.db.WithContext(ctx), providerID, from, to).Find(&out).Error
	return out, err
}

func activeInRange(q *gorm.DB, providerID uuid.UUID, from, to time.Time) *gorm.DB {
	return q.Model(&model.Fulfillment{}).
		Where("provider_id = ?", providerID).
		Where("(state_descriptor IS NULL OR state_descriptor <> ?)", model.FulfillmentStateCancelled).
		Where("start_at < ? AND effective_end > ?", to.UTC(), from.UTC()). // пересечение
		Order("start_at ASC")
}
