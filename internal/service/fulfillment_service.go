package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/calendar"
	"github.com/Leganyst/care-gateway/internal/lifecycle"
	"github.com/Leganyst/care-gateway/internal/model"
	"github.com/Leganyst/care-gateway/internal/platform/mq"
	"github.com/Leganyst/care-gateway/internal/platform/obs"
	"github.com/Leganyst/care-gateway/internal/repository"
)

type CreateFulfillmentInput struct {
	ProviderID   uuid.UUID
	Type         string
	AgentName    string
	CustomerName string

	StartAt          time.Time
	StartDurationSec *int64
	EndAt            *time.Time
	EndDurationSec   *int64

	Tags map[string]string
}

// Availability — результат проверки слота.
type Availability struct {
	Available bool      `json:"available"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	// outside_working_hours | break | conflict; пусто, если слот свободен.
	Reason string `json:"reason,omitempty"`
}

const (
	ReasonOutsideHours = "outside_working_hours"
	ReasonBreak        = "break"
	ReasonConflict     = "conflict"
)

// Slot — свободный слот для показа клиенту.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

type FulfillmentService struct {
	providers *ProviderService
	repo      repository.FulfillmentRepository
	notifier
	retries int
	now     func() time.Time
}

func NewFulfillmentService(
	providers *ProviderService,
	repo repository.FulfillmentRepository,
	events repository.EventRepository,
	publisher EventPublisher,
	retries int,
	log zerolog.Logger,
) *FulfillmentService {
	if retries < 1 {
		retries = defaultConflictRetries
	}
	return &FulfillmentService{
		providers: providers,
		repo:      repo,
		notifier: notifier{
			events:    events,
			publisher: publisher,
			log:       log.With().Str("component", "fulfillment_service").Logger(),
		},
		retries: retries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CheckAvailability — рабочие часы провайдера (начало и конец проверяются
// независимо), затем пересечения с активными визитами.
func (s *FulfillmentService) CheckAvailability(ctx context.Context, providerID uuid.UUID, start time.Time, durationSec int64) (_ Availability, err error) {
	ctx, span := obs.Tracer().Start(ctx, "fulfillment.check_availability")
	defer func() { endSpan(span, err) }()

	if durationSec <= 0 {
		return Availability{}, apperr.Validation("duration must be positive, got %d", durationSec)
	}
	iv := calendar.Interval{Start: start.UTC(), End: start.UTC().Add(time.Duration(durationSec) * time.Second)}
	return s.availability(ctx, providerID, iv)
}

func (s *FulfillmentService) availability(ctx context.Context, providerID uuid.UUID, iv calendar.Interval) (Availability, error) {
	res := Availability{Start: iv.Start, End: iv.End}

	_, cal, err := s.providers.Calendar(ctx, providerID)
	if err != nil {
		return res, err
	}
	ok, err := cal.CheckBookingWindow(iv.Start, iv.End)
	if err != nil {
		return res, err
	}
	if !ok {
		res.Reason = ReasonOutsideHours
		local := iv.Start.In(cal.Location)
		if cal.Hours.IsWithinBreak(local, local.Hour(), local.Minute()) {
			res.Reason = ReasonBreak
		}
		return res, nil
	}

	existing, err := s.repo.ListActiveInRange(ctx, providerID, iv.Start, iv.End)
	if err != nil {
		return res, err
	}
	if calendar.HasConflict(iv.Start, iv.End, model.Intervals(existing)) {
		res.Reason = ReasonConflict
		return res, nil
	}

	res.Available = true
	return res, nil
}

// Create бронирует визит: слот должен попадать в рабочие часы и не пересекаться
// с активными визитами провайдера. Новый визит получает состояние SCHEDULED.
func (s *FulfillmentService) Create(ctx context.Context, in CreateFulfillmentInput) (_ *model.Fulfillment, err error) {
	ctx, span := obs.Tracer().Start(ctx, "fulfillment.create")
	span.SetAttributes(attribute.String("provider.id", in.ProviderID.String()))
	defer func() { endSpan(span, err) }()

	if in.ProviderID == uuid.Nil {
		return nil, apperr.Validation("provider_id is required")
	}
	if in.StartAt.IsZero() {
		return nil, apperr.Validation("start time is required")
	}
	for _, d := range []*int64{in.StartDurationSec, in.EndDurationSec} {
		if d != nil && *d <= 0 {
			return nil, apperr.Validation("duration must be positive, got %d", *d)
		}
	}

	now := s.now()
	state := lifecycle.InitialState
	f := &model.Fulfillment{
		ProviderID:       in.ProviderID,
		Type:             strings.TrimSpace(in.Type),
		AgentName:        strings.TrimSpace(in.AgentName),
		CustomerName:     strings.TrimSpace(in.CustomerName),
		StartAt:          in.StartAt.UTC(),
		StartDurationSec: in.StartDurationSec,
		EndAt:            in.EndAt,
		EndDurationSec:   in.EndDurationSec,
		StateDescriptor:  &state,
		StateUpdatedAt:   &now,
	}
	if len(in.Tags) > 0 {
		f.Tags = make(map[string]any, len(in.Tags))
		for k, v := range in.Tags {
			f.Tags[k] = v
		}
	}
	iv := f.Interval()

	_, cal, err := s.providers.Calendar(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	ok, err := cal.CheckBookingWindow(iv.Start, iv.End)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.BusinessLogic("requested time slot %s is not available for provider %s",
			calendar.FormatSlot(iv, cal.Location), in.ProviderID)
	}

	err = s.repo.CreateIfNoConflict(ctx, f, func(candidates []model.Fulfillment) error {
		if calendar.HasConflict(iv.Start, iv.End, model.Intervals(candidates)) {
			return apperr.BusinessLogic("requested time slot %s conflicts with an existing booking",
				calendar.FormatSlot(iv, cal.Location))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("fulfillment_id", f.ID.String()).
		Str("provider_id", f.ProviderID.String()).
		Time("start", iv.Start).
		Time("end", iv.End).
		Msg("fulfillment scheduled")

	s.audit(ctx, model.EventTypeFulfillmentCreated, &f.ID, nil, map[string]any{
		"provider_id": f.ProviderID,
		"start":       iv.Start,
		"end":         iv.End,
	})
	s.publish(ctx, mq.KeyFulfillmentCreated, FulfillmentEvent{
		FulfillmentID: f.ID,
		ProviderID:    f.ProviderID,
		State:         state,
		StartAt:       iv.Start,
		EndAt:         iv.End,
		At:            now,
	})
	return f, nil
}

func (s *FulfillmentService) Get(ctx context.Context, id uuid.UUID) (*model.Fulfillment, error) {
	return s.repo.GetByID(ctx, id)
}

// Events — журнал аудита визита, новые первыми.
func (s *FulfillmentService) Events(ctx context.Context, id uuid.UUID, limit int) ([]model.Event, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListByFulfillment(ctx, id, limit)
}

// ListByProvider — все визиты провайдера; неизвестный провайдер — NotFound.
func (s *FulfillmentService) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.Fulfillment, error) {
	if _, err := s.providers.Get(ctx, providerID); err != nil {
		return nil, err
	}
	return s.repo.ListByProvider(ctx, providerID)
}

// UpdateState переводит визит в новое состояние через lifecycle.UpdateState
// и сохраняет результат с проверкой версии.
func (s *FulfillmentService) UpdateState(ctx context.Context, id uuid.UUID, target string, tags map[string]string) (_ *model.Fulfillment, err error) {
	ctx, span := obs.Tracer().Start(ctx, "fulfillment.update_state")
	span.SetAttributes(
		attribute.String("fulfillment.id", id.String()),
		attribute.String("fulfillment.target_state", target),
	)
	defer func() { endSpan(span, err) }()

	next, err := lifecycle.ParseState(strings.TrimSpace(target))
	if err != nil {
		return nil, err
	}

	var (
		updated  *model.Fulfillment
		previous model.FulfillmentState
	)
	err = withRetry(s.retries, func() error {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		previous, _ = current.State()

		candidate, err := lifecycle.UpdateState(current, next, tags, s.now())
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, candidate); err != nil {
			return err
		}
		updated = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("fulfillment_id", id.String()).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("fulfillment state changed")

	s.audit(ctx, model.EventTypeFulfillmentStateChanged, &updated.ID, nil, map[string]any{
		"from": previous,
		"to":   next,
		"tags": tags,
	})
	iv := updated.Interval()
	s.publish(ctx, mq.KeyFulfillmentStateChanged, FulfillmentEvent{
		FulfillmentID: updated.ID,
		ProviderID:    updated.ProviderID,
		State:         next,
		PreviousState: previous,
		StartAt:       iv.Start,
		EndAt:         iv.End,
		At:            *updated.StateUpdatedAt,
	})
	return updated, nil
}

// FreeSlots — свободные слоты провайдера на дату day (календарная дата в зоне провайдера).
func (s *FulfillmentService) FreeSlots(ctx context.Context, providerID uuid.UUID, day time.Time, durationSec int64, page, pageSize int) (calendar.Page[Slot], error) {
	if durationSec <= 0 {
		return calendar.Page[Slot]{}, apperr.Validation("duration must be positive, got %d", durationSec)
	}

	_, cal, err := s.providers.Calendar(ctx, providerID)
	if err != nil {
		return calendar.Page[Slot]{}, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, cal.Location)
	booked, err := s.repo.ListActiveInRange(ctx, providerID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return calendar.Page[Slot]{}, err
	}

	free, err := cal.FreeSlots(dayStart, time.Duration(durationSec)*time.Second, model.Intervals(booked))
	if err != nil {
		return calendar.Page[Slot]{}, apperr.Validation("%v", err)
	}

	slots := make([]Slot, 0, len(free))
	for _, iv := range free {
		slots = append(slots, Slot{Start: iv.Start, End: iv.End, Label: calendar.FormatSlot(iv, cal.Location)})
	}
	return calendar.Paginate(slots, page, pageSize), nil
}
