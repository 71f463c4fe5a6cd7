package httpapi

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Leganyst/care-gateway/internal/calendar"
)

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id")
	}
	return id, nil
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, badRequest("invalid " + field)
	}
	return id, nil
}

func parseOptionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := parseUUID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// queryInt: пустое значение — def, иначе целое число.
func queryInt(c echo.Context, name string, def int64) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return v, nil
}

// eventsLimit — ?limit для журналов аудита, в пределах размера страницы.
func eventsLimit(c echo.Context) (int, error) {
	limit, err := queryInt(c, "limit", calendar.DefaultPageSize)
	if err != nil {
		return 0, err
	}
	_, size := calendar.PageParams(1, int(limit))
	return size, nil
}
