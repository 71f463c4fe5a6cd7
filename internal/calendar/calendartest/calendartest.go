// Package calendartest — конструкторы расписаний для тестов других пакетов.
package calendartest

import (
	"time"

	"github.com/Leganyst/care-gateway/internal/calendar"
)

// Clock разбирает "HH:MM" и паникует на ошибке.
func Clock(s string) calendar.TimeOfDay {
	tod, err := calendar.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

// Range — окно "HH:MM"-"HH:MM"; паникует, если start >= end.
func Range(start, end string) calendar.TimeRange {
	r, err := calendar.NewTimeRange(Clock(start), Clock(end))
	if err != nil {
		panic(err)
	}
	return r
}

// Weekdays — пн–пт opensAt–closesAt; breaks, если заданы, — перерыв каждый из этих дней.
func Weekdays(opensAt, closesAt string, breaks ...calendar.TimeRange) calendar.WorkingHours {
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	wh := calendar.DefaultWorkingHours(Clock(opensAt), Clock(closesAt), days...)
	if len(breaks) > 0 {
		wh.Breaks = make(map[time.Weekday][]calendar.TimeRange, len(days))
		for _, d := range days {
			wh.Breaks[d] = append([]calendar.TimeRange(nil), breaks...)
		}
	}
	return wh
}
