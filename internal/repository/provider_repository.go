package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
)

type ProviderRepository interface {
	// Создать провайдера. Пустой ID генерируется.
	Create(ctx context.Context, p *model.Provider) error
	// Получить провайдера по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	// Список провайдеров с пагинацией.
	List(ctx context.Context, limit, offset int) ([]model.Provider, int64, error)
	// Заменить рабочие часы (JSON calendar.WorkingHours; nil — сброс на расписание по умолчанию).
	UpdateWorkingHours(ctx context.Context, id uuid.UUID, hours datatypes.JSON) error
}

type GormProviderRepository struct {
	db *gorm.DB
}

func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) Create(ctx context.Context, p *model.Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TimeZone == "" {
		p.TimeZone = "UTC"
	}
	return mapError(r.db.WithContext(ctx).Create(p).Error, "provider", p.ID)
}

func (r *GormProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapError(err, "provider", id)
	}
	return &p, nil
}

func (r *GormProviderRepository) List(ctx context.Context, limit, offset int) ([]model.Provider, int64, error) {
	var (
		providers []model.Provider
		total     int64
	)

	q := r.db.WithContext(ctx).Model(&model.Provider{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Order("display_name ASC, id ASC").Find(&providers).Error; err != nil {
		return nil, 0, err
	}
	return providers, total, nil
}

func (r *GormProviderRepository) UpdateWorkingHours(ctx context.Context, id uuid.UUID, hours datatypes.JSON) error {
	var value any
	if len(hours) > 0 {
		value = hours
	}
	res := r.db.WithContext(ctx).
		Model(&model.Provider{}).
		Where("id = ?", id).
		Update("working_hours", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("provider %s not found", id)
	}
	return nil
}
