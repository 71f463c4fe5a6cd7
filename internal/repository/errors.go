package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Leganyst/care-gateway/internal/apperr"
)

// mapError переводит ошибки gorm в apperr. what — имя сущности для сообщения.
func mapError(err error, what string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s %v not found", what, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Duplicate("%s %v already exists", what, id)
	default:
		return err
	}
}
