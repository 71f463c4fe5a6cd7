package calendar

import (
	"time"
)

// DefaultBookingDuration — длительность записи, у которой нет ни duration, ни валидного конца.
const DefaultBookingDuration = time.Hour

// Interval — отрезок [Start, End) на временной оси.
type Interval struct {
	Start time.Time
	End   time.Time
}

// TimeSlot — момент и необязательная длительность в секундах.
type TimeSlot struct {
	At       time.Time
	Duration *int64
}

// EffectiveInterval вычисляет фактический интервал записи:
//   - start.Duration задан — конец = start + duration;
//   - иначе конец берётся из end.At, если он позже начала;
//   - иначе запись считается часовой.
func EffectiveInterval(start, end TimeSlot) Interval {
	switch {
	case start.Duration != nil:
		return Interval{Start: start.At, End: start.At.Add(time.Duration(*start.Duration) * time.Second)}
	case end.At.After(start.At):
		return Interval{Start: start.At, End: end.At}
	default:
		return Interval{Start: start.At, End: start.At.Add(DefaultBookingDuration)}
	}
}

// HasConflict — пересекается ли [start, end) хотя бы с одной существующей записью.
// Конфликт, если начало запроса внутри существующего интервала, конец запроса
// внутри него, или запрос целиком его накрывает. Стык (end == existing.Start,
// start == existing.End) конфликтом не считается. Возвращает на первом совпадении.
func HasConflict(start, end time.Time, existing []Interval) bool {
	for _, ex := range existing {
		startInside := !start.Before(ex.Start) && start.Before(ex.End)
		endInside := end.After(ex.Start) && !end.After(ex.End)
		covers := !start.After(ex.Start) && !end.Before(ex.End)
		if startInside || endInside || covers {
			return true
		}
	}
	return false
}
