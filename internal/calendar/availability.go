package calendar

import (
	"strings"
	"time"

	"github.com/Leganyst/care-gateway/internal/apperr"
)

// ProviderCalendar — расписание провайдера вместе с его часовым поясом.
// Моменты приходят в UTC, а окна приёма сравниваются с локальным временем провайдера.
type ProviderCalendar struct {
	Hours    WorkingHours
	Location *time.Location
}

func NewProviderCalendar(hours WorkingHours, loc *time.Location) ProviderCalendar {
	if loc == nil {
		loc = time.UTC
	}
	return ProviderCalendar{Hours: hours, Location: loc}
}

func (c ProviderCalendar) local(t time.Time) time.Time {
	if c.Location == nil {
		return t.UTC()
	}
	return t.In(c.Location)
}

// IsAvailable проверяет, можно ли записаться на [start, start+durationSeconds):
//  1. окна на дату start берутся из WorkingHours.Resolve;
//  2. нет окон (выходной или пустое исключение) — недоступно;
//  3. интервал должен целиком лежать внутри одного окна — частичное
//     пересечение и «склейка» двух соседних окон не допускаются;
//  4. на обычные даты (не исключения) интервал не должен задевать перерывы.
//
// Интервал, уходящий за полночь, никогда не помещается в окно одних суток.
func (c ProviderCalendar) IsAvailable(start time.Time, durationSeconds int64) (bool, error) {
	if start.IsZero() {
		return false, apperr.Validation("requested start is required")
	}
	if durationSeconds <= 0 {
		return false, apperr.Validation("duration must be positive, got %d", durationSeconds)
	}

	from := c.local(start)
	to := from.Add(time.Duration(durationSeconds) * time.Second)
	if !sameDate(from, to) {
		return false, nil
	}

	ranges, _ := c.Hours.Resolve(from)
	if len(ranges) == 0 {
		return false, nil
	}

	fromSec, toSec := secondsOfDay(from), secondsOfDay(to)

	fits := false
	for _, r := range ranges {
		if r.Encloses(fromSec, toSec) {
			fits = true
			break
		}
	}
	if !fits {
		return false, nil
	}

	for _, b := range c.Hours.BreaksOn(from) {
		if b.Overlaps(fromSec, toSec) {
			return false, nil
		}
	}
	return true, nil
}

// CheckBookingWindow проверяет начало и конец записи независимо:
// отрезок [start, end) должен пройти IsAvailable, а момент end — попадать
// в открытое окно своей даты (правая граница окна включительно).
func (c ProviderCalendar) CheckBookingWindow(start, end time.Time) (bool, error) {
	if end.IsZero() || !end.After(start) {
		return false, apperr.Validation("booking end must be after start")
	}

	dur := int64(end.Sub(start) / time.Second)
	if dur <= 0 {
		return false, apperr.Validation("booking must last at least one second")
	}

	ok, err := c.IsAvailable(start, dur)
	if err != nil || !ok {
		return false, err
	}

	endLocal := c.local(end)
	ranges, _ := c.Hours.Resolve(endLocal)
	sec := secondsOfDay(endLocal)
	for _, r := range ranges {
		if sec > r.Start.Seconds() && sec <= r.End.Seconds() {
			return true, nil
		}
	}
	return false, nil
}

// ParseInstant разбирает момент в RFC3339 и приводит его к UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperr.Validation("timestamp is required")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Validation("timestamp %q is not RFC3339", s)
	}
	return t.UTC(), nil
}

// ParseDate разбирает календарную дату YYYY-MM-DD (полночь UTC).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, apperr.Validation("date is required")
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Validation("date %q is not YYYY-MM-DD", s)
	}
	return d, nil
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
