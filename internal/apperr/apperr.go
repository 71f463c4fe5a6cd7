// Package apperr — общая таксономия ошибок для движка расписаний, репозиториев
// и транспорта. Каждая ошибка оборачивает сентинел, тип проверяется через errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// Некорректный ввод: неразбираемое время, пустые обязательные поля.
	ErrValidation = errors.New("validation error")
	// Провайдер, визит или заказ не найден.
	ErrNotFound = errors.New("not found")
	// Недопустимый переход состояния или недоступный слот.
	ErrBusinessLogic = errors.New("business logic error")
	// Запись с таким id уже есть.
	ErrDuplicate = errors.New("duplicate")
	// Проигранная гонка оптимистичной блокировки (устаревшая версия).
	ErrConflict = errors.New("version conflict")
)

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func BusinessLogic(format string, args ...any) error {
	return wrap(ErrBusinessLogic, format, args...)
}

func Duplicate(format string, args ...any) error {
	return wrap(ErrDuplicate, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind возвращает сентинел, к которому относится err; nil — инфраструктурная
// ошибка вне таксономии.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrBusinessLogic, ErrDuplicate, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
