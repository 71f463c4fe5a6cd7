package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Leganyst/care-gateway/internal/apperr"
)

// fail переводит ошибку домена в HTTP-ответ.
func fail(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.ErrNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case apperr.ErrBusinessLogic, apperr.ErrDuplicate, apperr.ErrConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
