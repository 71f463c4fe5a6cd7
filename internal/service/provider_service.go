package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/calendar"
	"github.com/Leganyst/care-gateway/internal/model"
	"github.com/Leganyst/care-gateway/internal/repository"
)

type RegisterProviderInput struct {
	DisplayName  string
	Description  string
	TimeZone     string
	WorkingHours *calendar.WorkingHours // nil — расписание по умолчанию
}

// calendarEntry — разобранный календарь провайдера, актуальный на момент UpdatedAt.
type calendarEntry struct {
	updatedAt time.Time
	cal       calendar.ProviderCalendar
}

// ProviderService — реестр провайдеров и их расписаний.
type ProviderService struct {
	repo     repository.ProviderRepository
	defaults calendar.WorkingHours
	log      zerolog.Logger

	mu    sync.RWMutex
	cache *lru.Cache[uuid.UUID, calendarEntry] // nil — кэш выключен
}

// NewProviderService. defaults подставляется провайдерам без собственного расписания;
// cacheSize <= 0 отключает кэш календарей.
func NewProviderService(repo repository.ProviderRepository, defaults calendar.WorkingHours, cacheSize int, log zerolog.Logger) (*ProviderService, error) {
	s := &ProviderService{
		repo:     repo,
		defaults: defaults,
		log:      log.With().Str("component", "provider_service").Logger(),
	}
	if cacheSize > 0 {
		cache, err := lru.New[uuid.UUID, calendarEntry](cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

func (s *ProviderService) Register(ctx context.Context, in RegisterProviderInput) (*model.Provider, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, apperr.Validation("display_name is required")
	}

	p := &model.Provider{
		DisplayName: name,
		Description: strings.TrimSpace(in.Description),
		TimeZone:    strings.TrimSpace(in.TimeZone),
	}
	if p.TimeZone == "" {
		p.TimeZone = "UTC"
	}
	if _, err := p.Location(); err != nil {
		return nil, err
	}
	if in.WorkingHours != nil {
		if err := p.SetWorkingHours(*in.WorkingHours); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Str("provider_id", p.ID.String()).Str("time_zone", p.TimeZone).Msg("provider registered")
	return p, nil
}

func (s *ProviderService) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProviderService) List(ctx context.Context, page, pageSize int) ([]model.Provider, int64, error) {
	page, pageSize = calendar.PageParams(page, pageSize)
	return s.repo.List(ctx, pageSize, (page-1)*pageSize)
}

// SetWorkingHours заменяет расписание провайдера; nil возвращает его к расписанию по умолчанию.
func (s *ProviderService) SetWorkingHours(ctx context.Context, id uuid.UUID, hours *calendar.WorkingHours) (*model.Provider, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.WorkingHours = nil
	if hours != nil {
		if err := p.SetWorkingHours(*hours); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateWorkingHours(ctx, id, p.WorkingHours); err != nil {
		return nil, err
	}
	s.forget(id)

	s.log.Info().Str("provider_id", id.String()).Bool("default_hours", hours == nil).Msg("working hours updated")
	return s.repo.GetByID(ctx, id)
}

// Calendar возвращает провайдера и его календарь (с подставленным расписанием по умолчанию).
func (s *ProviderService) Calendar(ctx context.Context, id uuid.UUID) (*model.Provider, calendar.ProviderCalendar, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, calendar.ProviderCalendar{}, err
	}

	if cal, ok := s.cached(id, p.UpdatedAt); ok {
		return p, cal, nil
	}

	cal, err := p.Calendar(s.defaults)
	if err != nil {
		return nil, calendar.ProviderCalendar{}, err
	}
	s.remember(id, calendarEntry{updatedAt: p.UpdatedAt, cal: cal})
	return p, cal, nil
}

func (s *ProviderService) cached(id uuid.UUID, updatedAt time.Time) (calendar.ProviderCalendar, bool) {
	if s.cache == nil {
		return calendar.ProviderCalendar{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache.Get(id)
	if !ok || !entry.updatedAt.Equal(updatedAt) {
		return calendar.ProviderCalendar{}, false
	}
	return entry.cal, true
}

func (s *ProviderService) remember(id uuid.UUID, entry calendarEntry) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(id, entry)
}

func (s *ProviderService) forget(id uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
}
