package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Leganyst/care-gateway/internal/calendar"
	"github.com/Leganyst/care-gateway/internal/service"
)

func (h *Handler) CreateFulfillment(c echo.Context) error {
	var req createFulfillmentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	providerID, err := parseUUID("provider_id", req.ProviderID)
	if err != nil {
		return err
	}
	start, err := calendar.ParseInstant(req.Start.Timestamp)
	if err != nil {
		return fail(err)
	}

	in := service.CreateFulfillmentInput{
		ProviderID:       providerID,
		Type:             req.Type,
		AgentName:        req.AgentName,
		CustomerName:     req.CustomerName,
		StartAt:          start,
		StartDurationSec: req.Start.Duration,
		Tags:             req.Tags,
	}
	if req.End != nil {
		in.EndDurationSec = req.End.Duration
		if req.End.Timestamp != "" {
			end, err := calendar.ParseInstant(req.End.Timestamp)
			if err != nil {
				return fail(err)
			}
			in.EndAt = &end
		}
	}

	f, err := h.fulfillments.Create(c.Request().Context(), in)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, toFulfillment(f))
}

func (h *Handler) GetFulfillment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	f, err := h.fulfillments.Get(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toFulfillment(f))
}

func (h *Handler) UpdateFulfillmentState(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateStateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	f, err := h.fulfillments.UpdateState(c.Request().Context(), id, req.State, req.Tags)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toFulfillment(f))
}

// FulfillmentEvents — журнал аудита визита.
func (h *Handler) FulfillmentEvents(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	limit, err := eventsLimit(c)
	if err != nil {
		return err
	}
	events, err := h.fulfillments.Events(c.Request().Context(), id, limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toEvents(events))
}

// FulfillmentOrders — заказы, привязанные к визиту.
func (h *Handler) FulfillmentOrders(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	orders, err := h.orders.ListByFulfillment(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrder(&orders[i]))
	}
	return c.JSON(http.StatusOK, out)
}
