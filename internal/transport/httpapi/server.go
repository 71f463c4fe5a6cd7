// Package httpapi — HTTP-интерфейс шлюза на echo.
package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Leganyst/care-gateway/internal/service"
)

type Handler struct {
	providers    *service.ProviderService
	fulfillments *service.FulfillmentService
	orders       *service.OrderService
	ping         func(context.Context) error
}

func NewHandler(
	providers *service.ProviderService,
	fulfillments *service.FulfillmentService,
	orders *service.OrderService,
	ping func(context.Context) error,
) *Handler {
	return &Handler{providers: providers, fulfillments: fulfillments, orders: orders, ping: ping}
}

// NewServer собирает echo с общими middleware и маршрутами h.
func NewServer(h *Handler, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(logger))
	e.Use(RequestID())
	e.Use(Logger(logger))

	h.RegisterRoutes(e)
	return e
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	e.POST("/providers", h.RegisterProvider)
	e.GET("/providers", h.ListProviders)
	e.GET("/providers/:id", h.GetProvider)
	e.PUT("/providers/:id/working-hours", h.SetWorkingHours)
	e.GET("/providers/:id/availability", h.CheckAvailability)
	e.GET("/providers/:id/slots", h.FreeSlots)
	e.GET("/providers/:id/fulfillments", h.ListFulfillments)

	e.POST("/fulfillments", h.CreateFulfillment)
	e.GET("/fulfillments/:id", h.GetFulfillment)
	e.POST("/fulfillments/:id/state", h.UpdateFulfillmentState)
	e.GET("/fulfillments/:id/events", h.FulfillmentEvents)
	e.GET("/fulfillments/:id/orders", h.FulfillmentOrders)

	e.POST("/orders", h.CreateOrder)
	e.GET("/orders/:id", h.GetOrder)
	e.POST("/orders/:id/confirm", h.ConfirmOrder)
	e.GET("/orders/:id/status", h.OrderStatus)
	e.POST("/orders/:id/status", h.ApplyOrderStatus)
	e.GET("/orders/:id/events", h.OrderEvents)
}

func (h *Handler) Health(c echo.Context) error {
	if h.ping != nil {
		if err := h.ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
