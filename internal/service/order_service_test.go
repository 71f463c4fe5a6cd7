package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
	"github.com/Leganyst/care-gateway/internal/platform/mq"
)

func (fx *fixture) order(t *testing.T, providerID uuid.UUID, fulfillmentID *uuid.UUID) *model.Order {
	t.Helper()
	o, err := fx.orders.Create(context.Background(), CreateOrderInput{ProviderID: providerID, FulfillmentID: fulfillmentID})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestOrderService_Create(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)

	o := fx.order(t, p.ID, nil)
	if o.State != model.OrderStateInitialized {
		t.Fatalf("expected INITIALIZED, got %s", o.State)
	}

	if _, err := fx.orders.Create(ctx, CreateOrderInput{ProviderID: uuid.New()}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown provider, got %v", err)
	}

	other := fx.provider(t)
	f := fx.book(t, other.ID, monday(10, 0))
	if _, err := fx.orders.Create(ctx, CreateOrderInput{ProviderID: p.ID, FulfillmentID: &f.ID}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for foreign fulfillment, got %v", err)
	}
}

func TestOrderService_ConfirmLinksFulfillment(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	f := fx.book(t, p.ID, monday(10, 0))
	o := fx.order(t, p.ID, nil)

	got, err := fx.orders.Confirm(ctx, o.ID, &f.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.State != model.OrderStateConfirmed || got.FulfillmentID == nil || *got.FulfillmentID != f.ID {
		t.Fatalf("unexpected confirmed order %+v", got)
	}
	if keys := fx.publisher.keys(); !slices.Contains(keys, mq.KeyOrderStateChanged) {
		t.Fatalf("expected %s to be published, got %v", mq.KeyOrderStateChanged, keys)
	}
}

func TestOrderService_ConfirmKeepsExistingLink(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	first := fx.book(t, p.ID, monday(10, 0))
	second := fx.book(t, p.ID, monday(14, 0))
	o := fx.order(t, p.ID, &first.ID)

	if _, err := fx.orders.Confirm(ctx, o.ID, &second.ID); !errors.Is(err, apperr.ErrBusinessLogic) {
		t.Fatalf("expected business logic error for relink, got %v", err)
	}
	stored, err := fx.orders.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *stored.FulfillmentID != first.ID || stored.State != model.OrderStateInitialized {
		t.Fatalf("order must stay untouched, got %+v", stored)
	}

	// Тот же визит повторно — не ошибка.
	got, err := fx.orders.Confirm(ctx, o.ID, &first.ID)
	if err != nil {
		t.Fatalf("confirm with same fulfillment: %v", err)
	}
	if got.State != model.OrderStateConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.State)
	}
}

func TestOrderService_ListByFulfillmentAndEvents(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	f := fx.book(t, p.ID, monday(10, 0))
	o := fx.order(t, p.ID, &f.ID)
	fx.order(t, p.ID, nil)

	linked, err := fx.orders.ListByFulfillment(ctx, f.ID)
	if err != nil {
		t.Fatalf("list by fulfillment: %v", err)
	}
	if len(linked) != 1 || linked[0].ID != o.ID {
		t.Fatalf("expected only the linked order, got %+v", linked)
	}
	if _, err := fx.orders.ListByFulfillment(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown fulfillment, got %v", err)
	}

	if _, err := fx.orders.Confirm(ctx, o.ID, nil); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	events, err := fx.orders.Events(ctx, o.ID, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != model.EventTypeOrderStateChanged {
		t.Fatalf("expected one state change event, got %+v", events)
	}
	if _, err := fx.orders.Events(ctx, uuid.New(), 10); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}
}

func TestOrderService_ProjectStatusPersistsProjection(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	f := fx.book(t, p.ID, monday(10, 0))
	o := fx.order(t, p.ID, &f.ID)

	if _, err := fx.fulfillments.UpdateState(ctx, f.ID, "WAITING", nil); err != nil {
		t.Fatalf("update fulfillment: %v", err)
	}

	got, err := fx.orders.ProjectStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if got.State != model.OrderStateFulfillmentPending {
		t.Fatalf("expected FULFILLMENT_PENDING, got %s", got.State)
	}

	stored, err := fx.orders.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != model.OrderStateFulfillmentPending {
		t.Fatalf("projection must be persisted, got %s", stored.State)
	}

	// Повторная проекция ничего не меняет.
	again, err := fx.orders.ProjectStatus(ctx, o.ID)
	if err != nil || again.Version != stored.Version {
		t.Fatalf("expected no-op projection, got %+v %v", again, err)
	}
}

func TestOrderService_ProjectStatusWithoutFulfillment(t *testing.T) {
	fx := newFixture(t)
	p := fx.provider(t)
	o := fx.order(t, p.ID, nil)

	got, err := fx.orders.ProjectStatus(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if got.State != model.OrderStateInitialized {
		t.Fatalf("expected stored state, got %s", got.State)
	}
}

func TestOrderService_ProjectStatusSoftFailsOnMissingFulfillment(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	f := fx.book(t, p.ID, monday(10, 0))
	o := fx.order(t, p.ID, &f.ID)

	if err := fx.db.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if err := fx.db.Exec("DELETE FROM fulfillments WHERE id = ?", f.ID).Error; err != nil {
		t.Fatalf("delete fulfillment: %v", err)
	}

	got, err := fx.orders.ProjectStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("expected soft failure, got %v", err)
	}
	if got.State != model.OrderStateInitialized {
		t.Fatalf("expected stored state, got %s", got.State)
	}

	events, err := fx.events.ListByOrder(ctx, o.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != model.EventTypeOrderProjectionFailed {
		t.Fatalf("expected projection failure audit event, got %+v", events)
	}
}

func TestOrderService_ProjectStatusUnknownOrder(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.orders.ProjectStatus(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderService_ApplyStatusUpdatesFulfillment(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	f := fx.book(t, p.ID, monday(10, 0))
	o := fx.order(t, p.ID, &f.ID)

	got, err := fx.orders.ApplyStatus(ctx, o.ID, "IN_PROGRESS")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.State != model.OrderStateInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got.State)
	}

	stored, err := fx.fulfillments.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("get fulfillment: %v", err)
	}
	if s, _ := stored.State(); s != model.FulfillmentStateInProgress {
		t.Fatalf("expected fulfillment IN_PROGRESS, got %q", s)
	}
	if stored.Tags["state_change_order_id"] != o.ID.String() {
		t.Fatalf("expected order id in tags, got %v", stored.Tags)
	}
}

func TestOrderService_ApplyStatusSwallowsDivergence(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	f := fx.book(t, p.ID, monday(10, 0))
	o := fx.order(t, p.ID, &f.ID)

	for _, s := range []string{"IN_PROGRESS", "COMPLETED"} {
		if _, err := fx.fulfillments.UpdateState(ctx, f.ID, s, nil); err != nil {
			t.Fatalf("-> %s: %v", s, err)
		}
	}

	got, err := fx.orders.ApplyStatus(ctx, o.ID, "IN_PROGRESS")
	if err != nil {
		t.Fatalf("expected divergence to be swallowed, got %v", err)
	}
	if got.State != model.OrderStateInProgress {
		t.Fatalf("order state must be applied, got %s", got.State)
	}

	stored, _ := fx.fulfillments.Get(ctx, f.ID)
	if s, _ := stored.State(); s != model.FulfillmentStateCompleted {
		t.Fatalf("fulfillment must stay COMPLETED, got %q", s)
	}

	events, err := fx.events.ListByOrder(ctx, o.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var diverged bool
	for _, e := range events {
		if e.EventType == model.EventTypeOrderDiverged {
			diverged = true
		}
	}
	if !diverged {
		t.Fatalf("expected divergence audit event, got %+v", events)
	}
}

func TestOrderService_ApplyStatusValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	p := fx.provider(t)
	o := fx.order(t, p.ID, nil)

	if _, err := fx.orders.ApplyStatus(ctx, o.ID, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := fx.orders.ApplyStatus(ctx, uuid.New(), "CONFIRMED"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
