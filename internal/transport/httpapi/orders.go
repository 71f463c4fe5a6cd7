package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Leganyst/care-gateway/internal/service"
)

func (h *Handler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	providerID, err := parseUUID("provider_id", req.ProviderID)
	if err != nil {
		return err
	}
	fulfillmentID, err := parseOptionalUUID("fulfillment_id", req.FulfillmentID)
	if err != nil {
		return err
	}

	o, err := h.orders.Create(c.Request().Context(), service.CreateOrderInput{ProviderID: providerID, FulfillmentID: fulfillmentID})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, toOrder(o))
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.orders.Get(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) ConfirmOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req confirmOrderRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(err.Error())
		}
	}
	fulfillmentID, err := parseOptionalUUID("fulfillment_id", req.FulfillmentID)
	if err != nil {
		return err
	}

	o, err := h.orders.Confirm(c.Request().Context(), id, fulfillmentID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

// OrderStatus — состояние заказа, выведенное из состояния визита.
func (h *Handler) OrderStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	o, err := h.orders.ProjectStatus(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) ApplyOrderStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req applyStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	o, err := h.orders.ApplyStatus(c.Request().Context(), id, req.State)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toOrder(o))
}

func (h *Handler) OrderEvents(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	limit, err := eventsLimit(c)
	if err != nil {
		return err
	}
	events, err := h.orders.Events(c.Request().Context(), id, limit)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toEvents(events))
}
