// Package lifecycle описывает жизненный цикл визита (fulfillment) и то,
// как его состояние проецируется на состояние заказа.
package lifecycle

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"gorm.io/datatypes"

	"github.com/Leganyst/care-gateway/internal/apperr"
	"github.com/Leganyst/care-gateway/internal/model"
)

// TagPrefix — префикс ключей контекста смены состояния в Fulfillment.Tags.
const TagPrefix = "state_change_"

// InitialState — состояние нового визита.
const InitialState = model.FulfillmentStateScheduled

// transitions: состояние → допустимые следующие. Пустой список — терминальное состояние.
var transitions = map[model.FulfillmentState][]model.FulfillmentState{
	model.FulfillmentStateScheduled: {
		model.FulfillmentStateWaiting,
		model.FulfillmentStateInProgress,
		model.FulfillmentStateCancelled,
		model.FulfillmentStateNoShow,
		model.FulfillmentStateRescheduled,
	},
	model.FulfillmentStateWaiting: {
		model.FulfillmentStateInProgress,
		model.FulfillmentStateCancelled,
		model.FulfillmentStateNoShow,
	},
	model.FulfillmentStateInProgress: {
		model.FulfillmentStateCompleted,
		model.FulfillmentStateCancelled,
	},
	model.FulfillmentStateCompleted:   {},
	model.FulfillmentStateCancelled:   {},
	model.FulfillmentStateNoShow:      {model.FulfillmentStateRescheduled},
	model.FulfillmentStateRescheduled: {model.FulfillmentStateScheduled},
}

// States возвращает все известные состояния визита в стабильном порядке.
func States() []model.FulfillmentState {
	out := slices.Collect(maps.Keys(transitions))
	slices.Sort(out)
	return out
}

// IsKnown — входит ли состояние в таблицу переходов.
func IsKnown(s model.FulfillmentState) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal — у состояния нет исходящих переходов.
func IsTerminal(s model.FulfillmentState) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Next — допустимые переходы из состояния (копия).
func Next(s model.FulfillmentState) []model.FulfillmentState {
	return slices.Clone(transitions[s])
}

// CanTransition проверяет переход по таблице. Переход в то же состояние
// допустим, только если он есть в таблице (сейчас таких нет).
func CanTransition(from, to model.FulfillmentState) bool {
	return slices.Contains(transitions[from], to)
}

// ParseState приводит строку к известному состоянию визита.
func ParseState(s string) (model.FulfillmentState, error) {
	st := model.FulfillmentState(s)
	if !IsKnown(st) {
		return "", apperr.Validation("unknown fulfillment state %q, expected one of %v", s, States())
	}
	return st, nil
}

// UpdateState — единственный путь смены состояния визита.
//
// Если текущее состояние не задано, принимается любое известное целевое.
// Иначе переход должен быть в таблице, в противном случае — BusinessLogicError.
// Контекст сливается в Tags под ключами TagPrefix+key, существующие теги сохраняются.
//
// Исходный f не изменяется: возвращается обновлённая копия.
func UpdateState(f *model.Fulfillment, target model.FulfillmentState, tags map[string]string, now time.Time) (*model.Fulfillment, error) {
	if f == nil {
		return nil, apperr.Validation("fulfillment is required")
	}
	if !IsKnown(target) {
		return nil, apperr.Validation("unknown fulfillment state %q, expected one of %v", target, States())
	}
	if current, ok := f.State(); ok && !CanTransition(current, target) {
		if IsTerminal(current) {
			return nil, apperr.BusinessLogic("fulfillment is in terminal state %q", current)
		}
		return nil, apperr.BusinessLogic("invalid state transition from %q to %q, allowed: %v", current, target, Next(current))
	}

	next := *f
	descriptor := target
	updatedAt := now.UTC()
	next.StateDescriptor = &descriptor
	next.StateUpdatedAt = &updatedAt

	merged := make(datatypes.JSONMap, len(f.Tags)+len(tags))
	maps.Copy(merged, f.Tags)
	for k, v := range tags {
		merged[TagPrefix+k] = v
	}
	next.Tags = merged

	return &next, nil
}

// ===== Проекция состояния визита на состояние заказа =====

var orderByFulfillment = map[model.FulfillmentState]model.OrderState{
	model.FulfillmentStateScheduled:   model.OrderStateConfirmed,
	model.FulfillmentStateWaiting:     model.OrderStateFulfillmentPending,
	model.FulfillmentStateInProgress:  model.OrderStateInProgress,
	model.FulfillmentStateCompleted:   model.OrderStateCompleted,
	model.FulfillmentStateCancelled:   model.OrderStateCancelled,
	model.FulfillmentStateNoShow:      model.OrderStateNoShow,
	model.FulfillmentStateRescheduled: model.OrderStateRescheduled,
}

var fulfillmentByOrder = invert(orderByFulfillment)

// OrderStateFor — состояние заказа для состояния визита; ok=false для неотображаемых.
func OrderStateFor(s model.FulfillmentState) (model.OrderState, bool) {
	st, ok := orderByFulfillment[s]
	return st, ok
}

// FulfillmentStateFor — обратное отображение; INITIALIZED и произвольные
// статусы провайдера не отображаются.
func FulfillmentStateFor(s model.OrderState) (model.FulfillmentState, bool) {
	fs, ok := fulfillmentByOrder[s]
	return fs, ok
}

// Project вычисляет состояние заказа по визиту. Если у визита нет состояния
// или оно не отображается, возвращается current.
func Project(current model.OrderState, f *model.Fulfillment) model.OrderState {
	if f == nil {
		return current
	}
	fs, ok := f.State()
	if !ok {
		return current
	}
	if st, ok := OrderStateFor(fs); ok {
		return st
	}
	return current
}

func invert[K, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		if _, dup := out[v]; dup {
			panic(fmt.Sprintf("lifecycle: mapping is not invertible at %v", v))
		}
		out[v] = k
	}
	return out
}
