package httpapi

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/care-gateway/internal/calendar"
	"github.com/Leganyst/care-gateway/internal/lifecycle"
	"github.com/Leganyst/care-gateway/internal/model"
)

// ===== Запросы =====

type registerProviderRequest struct {
	DisplayName  string                 `json:"display_name"`
	Description  string                 `json:"description"`
	TimeZone     string                 `json:"time_zone"`
	WorkingHours *calendar.WorkingHours `json:"working_hours"`
}

// null в working_hours сбрасывает расписание к расписанию по умолчанию.
type workingHoursRequest struct {
	WorkingHours *calendar.WorkingHours `json:"working_hours"`
}

type timeSlotRequest struct {
	Timestamp string `json:"timestamp"`
	Duration  *int64 `json:"duration"` // секунды
}

type createFulfillmentRequest struct {
	ProviderID   string            `json:"provider_id"`
	Type         string            `json:"type"`
	AgentName    string            `json:"agent_name"`
	CustomerName string            `json:"customer_name"`
	Start        timeSlotRequest   `json:"start"`
	End          *timeSlotRequest  `json:"end"`
	Tags         map[string]string `json:"tags"`
}

type updateStateRequest struct {
	State string            `json:"state"`
	Tags  map[string]string `json:"tags"`
}

type createOrderRequest struct {
	ProviderID    string  `json:"provider_id"`
	FulfillmentID *string `json:"fulfillment_id"`
}

type confirmOrderRequest struct {
	FulfillmentID *string `json:"fulfillment_id"`
}

type applyStatusRequest struct {
	State string `json:"state"`
}

// ===== Ответы =====

type providerResponse struct {
	ID           uuid.UUID              `json:"id"`
	DisplayName  string                 `json:"display_name"`
	Description  string                 `json:"description,omitempty"`
	TimeZone     string                 `json:"time_zone"`
	WorkingHours *calendar.WorkingHours `json:"working_hours"`
	DefaultHours bool                   `json:"default_hours"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func toProvider(p *model.Provider) providerResponse {
	out := providerResponse{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Description:  p.Description,
		TimeZone:     p.TimeZone,
		DefaultHours: !p.HasWorkingHours(),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.HasWorkingHours() {
		var wh calendar.WorkingHours
		if err := json.Unmarshal(p.WorkingHours, &wh); err == nil {
			out.WorkingHours = &wh
		}
	}
	return out
}

type fulfillmentResponse struct {
	ID             uuid.UUID      `json:"id"`
	ProviderID     uuid.UUID      `json:"provider_id"`
	Type           string         `json:"type,omitempty"`
	AgentName      string         `json:"agent_name,omitempty"`
	CustomerName   string         `json:"customer_name,omitempty"`
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	State          *string        `json:"state"`
	StateUpdatedAt *time.Time     `json:"state_updated_at,omitempty"`

	// Куда визит может перейти сейчас; без состояния — в любое известное.
	AllowedTransitions []model.FulfillmentState `json:"allowed_transitions"`
	Terminal           bool                     `json:"terminal"`

	Tags      map[string]any `json:"tags,omitempty"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
}

func toFulfillment(f *model.Fulfillment) fulfillmentResponse {
	iv := f.Interval()
	out := fulfillmentResponse{
		ID:             f.ID,
		ProviderID:     f.ProviderID,
		Type:           f.Type,
		AgentName:      f.AgentName,
		CustomerName:   f.CustomerName,
		Start:          iv.Start,
		End:            iv.End,
		StateUpdatedAt: f.StateUpdatedAt,
		Tags:           f.Tags,
		Version:        f.Version,
		CreatedAt:      f.CreatedAt,
	}
	if s, ok := f.State(); ok {
		str := string(s)
		out.State = &str
		out.AllowedTransitions = lifecycle.Next(s)
		out.Terminal = lifecycle.IsTerminal(s)
	} else {
		out.AllowedTransitions = lifecycle.States()
	}
	return out
}

type orderResponse struct {
	ID            uuid.UUID        `json:"id"`
	ProviderID    uuid.UUID        `json:"provider_id"`
	FulfillmentID *uuid.UUID       `json:"fulfillment_id"`
	State         model.OrderState `json:"state"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func toOrder(o *model.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		ProviderID:    o.ProviderID,
		FulfillmentID: o.FulfillmentID,
		State:         o.State,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type eventResponse struct {
	ID            uuid.UUID       `json:"id"`
	Type          model.EventType `json:"type"`
	FulfillmentID *uuid.UUID      `json:"fulfillment_id,omitempty"`
	OrderID       *uuid.UUID      `json:"order_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toEvents(events []model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		r := eventResponse{
			ID:            e.ID,
			Type:          e.EventType,
			FulfillmentID: e.FulfillmentID,
			OrderID:       e.OrderID,
			CreatedAt:     e.CreatedAt,
		}
		if json.Valid([]byte(e.Details)) {
			r.Details = json.RawMessage(e.Details)
		}
		out = append(out, r)
	}
	return out
}
