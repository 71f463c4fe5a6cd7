package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Leganyst/care-gateway/internal/calendar"
	"github.com/Leganyst/care-gateway/internal/service"
)

func (h *Handler) RegisterProvider(c echo.Context) error {
	var req registerProviderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	p, err := h.providers.Register(c.Request().Context(), service.RegisterProviderInput{
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		TimeZone:     req.TimeZone,
		WorkingHours: req.WorkingHours,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, toProvider(p))
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, err := h.providers.Get(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toProvider(p))
}

func (h *Handler) ListProviders(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := queryInt(c, "page_size", calendar.DefaultPageSize)
	if err != nil {
		return err
	}
	p, ps := calendar.PageParams(int(page), int(size))

	items, total, err := h.providers.List(c.Request().Context(), p, ps)
	if err != nil {
		return fail(err)
	}
	out := make([]providerResponse, 0, len(items))
	for i := range items {
		out = append(out, toProvider(&items[i]))
	}
	return c.JSON(http.StatusOK, calendar.NewPage(out, p, ps, int(total)))
}

func (h *Handler) SetWorkingHours(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req workingHoursRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	p, err := h.providers.SetWorkingHours(c.Request().Context(), id, req.WorkingHours)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, toProvider(p))
}

// CheckAvailability: ?start=RFC3339&duration=секунды (по умолчанию час).
func (h *Handler) CheckAvailability(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	start, err := calendar.ParseInstant(c.QueryParam("start"))
	if err != nil {
		return fail(err)
	}
	duration, err := queryInt(c, "duration", int64(calendar.DefaultBookingDuration.Seconds()))
	if err != nil {
		return err
	}
	res, err := h.fulfillments.CheckAvailability(c.Request().Context(), id, start, duration)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, res)
}

// FreeSlots: ?date=YYYY-MM-DD&duration=секунды&page=&page_size=
func (h *Handler) FreeSlots(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	day, err := calendar.ParseDate(c.QueryParam("date"))
	if err != nil {
		return fail(err)
	}
	duration, err := queryInt(c, "duration", int64(calendar.DefaultBookingDuration.Seconds()))
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := queryInt(c, "page_size", calendar.DefaultPageSize)
	if err != nil {
		return err
	}

	res, err := h.fulfillments.FreeSlots(c.Request().Context(), id, day, duration, int(page), int(size))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListFulfillments(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.fulfillments.ListByProvider(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	out := make([]fulfillmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toFulfillment(&items[i]))
	}
	return c.JSON(http.StatusOK, out)
}
