package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/Leganyst/care-gateway/internal/apperr"
)

func TestIsAvailable_WeekdayScenario(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)

	cases := []struct {
		name     string
		start    time.Time
		duration int64
		want     bool
	}{
		{"monday morning", day(t, 2025, 1, 6, 10, 0), 3600, true},
		{"inside break", day(t, 2025, 1, 6, 12, 30), 1800, false},
		{"saturday", day(t, 2025, 1, 11, 10, 0), 3600, false},
		{"ends when break starts", day(t, 2025, 1, 6, 11, 0), 3600, true},
		{"starts when break ends", day(t, 2025, 1, 6, 13, 0), 3600, true},
		{"crosses break", day(t, 2025, 1, 6, 11, 30), 3600, false},
		{"starts before opening", day(t, 2025, 1, 6, 8, 30), 3600, false},
		{"runs past closing", day(t, 2025, 1, 6, 16, 30), 3600, false},
		{"ends at closing", day(t, 2025, 1, 6, 16, 0), 3600, true},
	}

	for _, c := range cases {
		got, err := cal.IsAvailable(c.start, c.duration)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestIsAvailable_ClosedWeekdayIsNeverAvailable(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)
	sunday := day(t, 2025, 1, 12, 0, 0)

	for minute := 0; minute < 24*60; minute += 15 {
		start := sunday.Add(time.Duration(minute) * time.Minute)
		ok, err := cal.IsAvailable(start, 60)
		if err != nil {
			t.Fatalf("unexpected error at %v: %v", start, err)
		}
		if ok {
			t.Fatalf("expected unavailable on sunday at %v", start)
		}
	}
}

func TestIsAvailable_InsideBreakNeverAvailable(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)

	for minute := 0; minute < 60; minute += 5 {
		start := day(t, 2025, 1, 8, 12, minute)
		for _, dur := range []int64{60, 300} {
			if int64(minute*60)+dur > 3600 {
				continue
			}
			ok, err := cal.IsAvailable(start, dur)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok {
				t.Fatalf("expected break at %v for %ds to be unavailable", start, dur)
			}
		}
	}
}

func TestIsAvailable_ExceptionDate(t *testing.T) {
	wh := weekdayHours()
	wh.Exceptions = map[string][]TimeRange{
		"2025-01-06": {mustRange("10:00", "14:00")},
		"2025-01-11": {mustRange("10:00", "12:00")},
		"2025-01-07": {},
	}
	cal := NewProviderCalendar(wh, time.UTC)

	// Перерыв 12:00–13:00 на дату-исключение не действует.
	ok, err := cal.IsAvailable(day(t, 2025, 1, 6, 12, 0), 3600)
	if err != nil || !ok {
		t.Fatalf("expected exception window to ignore breaks, got %v %v", ok, err)
	}
	// Обычные часы заменены полностью.
	ok, _ = cal.IsAvailable(day(t, 2025, 1, 6, 9, 0), 3600)
	if ok {
		t.Fatalf("regular hours must not apply on exception date")
	}
	// Суббота открыта по исключению.
	ok, _ = cal.IsAvailable(day(t, 2025, 1, 11, 10, 30), 1800)
	if !ok {
		t.Fatalf("expected saturday exception window to be open")
	}
	// Пустое исключение — выходной.
	ok, _ = cal.IsAvailable(day(t, 2025, 1, 7, 10, 0), 3600)
	if ok {
		t.Fatalf("expected empty exception to close the day")
	}
}

func TestIsAvailable_AgreesWithIsWithinBreak(t *testing.T) {
	wh := weekdayHours()
	wh.Exceptions = map[string][]TimeRange{"2025-01-08": {mustRange("09:00", "17:00")}}
	cal := NewProviderCalendar(wh, time.UTC)

	for _, d := range []int{6, 8} {
		for minute := 9 * 60; minute < 17*60; minute += 10 {
			start := day(t, 2025, 1, d, minute/60, minute%60)
			ok, err := cal.IsAvailable(start, 60)
			if err != nil {
				t.Fatalf("unexpected error at %v: %v", start, err)
			}
			inBreak := wh.IsWithinBreak(start, start.Hour(), start.Minute())
			if ok == inBreak {
				t.Fatalf("%v: available=%v but within break=%v", start, ok, inBreak)
			}
		}
	}
}

func TestIsAvailable_DoesNotSpanAdjacentWindows(t *testing.T) {
	wh := WorkingHours{Regular: map[time.Weekday][]TimeRange{
		time.Monday: {mustRange("09:00", "12:00"), mustRange("12:00", "15:00")},
	}}
	cal := NewProviderCalendar(wh, time.UTC)

	ok, err := cal.IsAvailable(day(t, 2025, 1, 6, 11, 30), 3600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("a booking must fit a single window")
	}
}

func TestIsAvailable_UsesProviderTimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	cal := NewProviderCalendar(weekdayHours(), loc)

	// 07:00 UTC = 10:00 локального времени провайдера.
	ok, err := cal.IsAvailable(day(t, 2025, 1, 6, 7, 0), 3600)
	if err != nil || !ok {
		t.Fatalf("expected available in provider zone, got %v %v", ok, err)
	}
	// 09:30 UTC = 12:30 локального — перерыв.
	ok, _ = cal.IsAvailable(day(t, 2025, 1, 6, 9, 30), 1800)
	if ok {
		t.Fatalf("expected break in provider zone")
	}
}

func TestIsAvailable_CrossMidnight(t *testing.T) {
	wh := WorkingHours{Regular: map[time.Weekday][]TimeRange{
		time.Monday:  {mustRange("20:00", "23:59")},
		time.Tuesday: {mustRange("00:00", "06:00")},
	}}
	cal := NewProviderCalendar(wh, time.UTC)

	ok, err := cal.IsAvailable(day(t, 2025, 1, 6, 23, 30), 3600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("cross-midnight span must be unavailable")
	}
}

func TestIsAvailable_Validation(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)

	if _, err := cal.IsAvailable(time.Time{}, 3600); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for zero start, got %v", err)
	}
	for _, dur := range []int64{0, -60} {
		if _, err := cal.IsAvailable(day(t, 2025, 1, 6, 10, 0), dur); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected validation error for duration %d, got %v", dur, err)
		}
	}
}

func TestCheckBookingWindow(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)

	ok, err := cal.CheckBookingWindow(day(t, 2025, 1, 6, 16, 0), day(t, 2025, 1, 6, 17, 0))
	if err != nil || !ok {
		t.Fatalf("expected end at closing to be accepted, got %v %v", ok, err)
	}

	ok, err = cal.CheckBookingWindow(day(t, 2025, 1, 6, 16, 30), day(t, 2025, 1, 6, 17, 30))
	if err != nil || ok {
		t.Fatalf("expected end after closing to be rejected, got %v %v", ok, err)
	}

	if _, err := cal.CheckBookingWindow(day(t, 2025, 1, 6, 11, 0), day(t, 2025, 1, 6, 10, 0)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for end before start, got %v", err)
	}
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2025-01-06T13:00:00+03:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(day(t, 2025, 1, 6, 10, 0)) || got.Location() != time.UTC {
		t.Fatalf("expected 10:00 UTC, got %v", got)
	}

	for _, bad := range []string{"", "2025-01-06 10:00"} {
		if _, err := ParseInstant(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", bad, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-01-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(day(t, 2025, 1, 6, 0, 0)) {
		t.Fatalf("expected 2025-01-06, got %v", got)
	}
	for _, bad := range []string{"", "06.01.2025", "2025-13-01"} {
		if _, err := ParseDate(bad); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", bad, err)
		}
	}
}
