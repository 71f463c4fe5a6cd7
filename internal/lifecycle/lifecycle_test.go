package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
)

func fulfillmentIn(state model.FulfillmentState) *model.Fulfillment {
	f := &model.Fulfillment{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		StartAt:    time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		Tags:       datatypes.JSONMap{"channel": "app"},
	}
	if state != "" {
		s := state
		f.StateDescriptor = &s
	}
	return f
}

func TestUpdateState_AllowedTransition(t *testing.T) {
	f := fulfillmentIn(model.FulfillmentStateScheduled)
	now := time.Date(2025, 1, 6, 9, 55, 0, 0, time.UTC)

	got, err := UpdateState(f, model.FulfillmentStateWaiting, map[string]string{"by": "reception"}, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	state, ok := got.State()
	if !ok || state != model.FulfillmentStateWaiting {
		t.Fatalf("expected WAITING, got %q", state)
	}
	if got.StateUpdatedAt == nil || !got.StateUpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at %v, got %v", now, got.StateUpdatedAt)
	}
	if got.Tags["channel"] != "app" {
		t.Fatalf("existing tags must be preserved, got %v", got.Tags)
	}
	if got.Tags["state_change_by"] != "reception" {
		t.Fatalf("expected prefixed context tag, got %v", got.Tags)
	}

	// Исходная запись не тронута.
	if s, _ := f.State(); s != model.FulfillmentStateScheduled {
		t.Fatalf("input must not be mutated, got %q", s)
	}
	if _, ok := f.Tags["state_change_by"]; ok {
		t.Fatalf("input tags must not be mutated")
	}
}

func TestUpdateState_CompletedIsTerminal(t *testing.T) {
	f := fulfillmentIn(model.FulfillmentStateCompleted)

	_, err := UpdateState(f, model.FulfillmentStateInProgress, nil, time.Now())
	if !errors.Is(err, apperr.ErrBusinessLogic) {
		t.Fatalf("expected business logic error, got %v", err)
	}
	if s, _ := f.State(); s != model.FulfillmentStateCompleted {
		t.Fatalf("state must remain COMPLETED, got %q", s)
	}
}

func TestUpdateState_ErrorNamesTerminalState(t *testing.T) {
	_, err := UpdateState(fulfillmentIn(model.FulfillmentStateCancelled), model.FulfillmentStateScheduled, nil, time.Now())
	if err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("expected terminal state error, got %v", err)
	}

	_, err = UpdateState(fulfillmentIn(model.FulfillmentStateNoShow), model.FulfillmentStateCompleted, nil, time.Now())
	if err == nil || !strings.Contains(err.Error(), string(model.FulfillmentStateRescheduled)) {
		t.Fatalf("expected allowed transitions in error, got %v", err)
	}
}

func TestUpdateState_RejectsEveryTransitionOutsideTable(t *testing.T) {
	for _, from := range States() {
		for _, to := range States() {
			if CanTransition(from, to) {
				continue
			}
			f := fulfillmentIn(from)
			before := *f.StateDescriptor

			_, err := UpdateState(f, to, map[string]string{"reason": "x"}, time.Now())
			if !errors.Is(err, apperr.ErrBusinessLogic) {
				t.Fatalf("%s -> %s: expected business logic error, got %v", from, to, err)
			}
			if *f.StateDescriptor != before || f.StateUpdatedAt != nil {
				t.Fatalf("%s -> %s: state changed on failure", from, to)
			}
		}
	}
}

func TestUpdateState_UnsetStateAcceptsAnyKnown(t *testing.T) {
	for _, to := range States() {
		got, err := UpdateState(fulfillmentIn(""), to, nil, time.Now())
		if err != nil {
			t.Fatalf("unset -> %s: expected no error, got %v", to, err)
		}
		if s, _ := got.State(); s != to {
			t.Fatalf("expected %s, got %s", to, s)
		}
	}
}

func TestUpdateState_UnknownTarget(t *testing.T) {
	_, err := UpdateState(fulfillmentIn(model.FulfillmentStateScheduled), "TELEPORTED", nil, time.Now())
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransitionTable(t *testing.T) {
	if len(States()) != 7 {
		t.Fatalf("expected 7 states, got %v", States())
	}
	for _, s := range States() {
		for _, next := range Next(s) {
			if !IsKnown(next) {
				t.Fatalf("%s leads to unknown state %s", s, next)
			}
		}
	}

	if !IsTerminal(model.FulfillmentStateCompleted) || !IsTerminal(model.FulfillmentStateCancelled) {
		t.Fatalf("COMPLETED and CANCELLED must be terminal")
	}
	if IsTerminal(model.FulfillmentStateNoShow) {
		t.Fatalf("NO_SHOW must not be terminal")
	}
	if !CanTransition(model.FulfillmentStateRescheduled, model.FulfillmentStateScheduled) {
		t.Fatalf("RESCHEDULED -> SCHEDULED must be allowed")
	}
	if CanTransition(model.FulfillmentStateScheduled, model.FulfillmentStateScheduled) {
		t.Fatalf("self transition is not in the table")
	}
}

func TestProject(t *testing.T) {
	cases := []struct {
		fulfillment model.FulfillmentState
		want        model.OrderState
	}{
		{model.FulfillmentStateScheduled, model.OrderStateConfirmed},
		{model.FulfillmentStateWaiting, model.OrderStateFulfillmentPending},
		{model.FulfillmentStateInProgress, model.OrderStateInProgress},
		{model.FulfillmentStateCompleted, model.OrderStateCompleted},
		{model.FulfillmentStateCancelled, model.OrderStateCancelled},
		{model.FulfillmentStateNoShow, model.OrderStateNoShow},
		{model.FulfillmentStateRescheduled, model.OrderStateRescheduled},
	}
	for _, c := range cases {
		if got := Project(model.OrderStateInitialized, fulfillmentIn(c.fulfillment)); got != c.want {
			t.Fatalf("%s: expected %s, got %s", c.fulfillment, c.want, got)
		}
		back, ok := FulfillmentStateFor(c.want)
		if !ok || back != c.fulfillment {
			t.Fatalf("inverse of %s: expected %s, got %s", c.want, c.fulfillment, back)
		}
	}

	if got := Project(model.OrderStateInitialized, fulfillmentIn("")); got != model.OrderStateInitialized {
		t.Fatalf("unset fulfillment state must keep order state, got %s", got)
	}
	if got := Project(model.OrderStateConfirmed, nil); got != model.OrderStateConfirmed {
		t.Fatalf("missing fulfillment must keep order state, got %s", got)
	}
	if _, ok := FulfillmentStateFor(model.OrderStateInitialized); ok {
		t.Fatalf("INITIALIZED must not map to a fulfillment state")
	}
}
