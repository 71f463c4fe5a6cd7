package calendar

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestSplitToSlots_Basic(t *testing.T) {
	iv := Interval{
		Start: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 1, 12, 10, 0, 0, time.UTC),
	}

	slots, err := SplitToSlots(iv, 30*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots (tail dropped), got %d", len(slots))
	}
	if !slots[3].End.Equal(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last slot %v", slots[3])
	}
}

func TestSplitToSlots_InvalidDuration(t *testing.T) {
	_, err := SplitToSlots(Interval{}, 0)
	if !errors.Is(err, ErrSlotDuration) {
		t.Fatalf("expected ErrSlotDuration, got %v", err)
	}
}

func TestFreeSlots_SkipsBreaksAndBookings(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)
	monday := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	booked := []Interval{{
		Start: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC),
	}}

	slots, err := cal.FreeSlots(monday, time.Hour, booked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 09–17 = 8 слотов, минус перерыв 12–13 и занятый 10–11.
	if len(slots) != 6 {
		t.Fatalf("expected 6 free slots, got %d: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.Start.Hour() == 10 || s.Start.Hour() == 12 {
			t.Fatalf("slot %v must be excluded", s)
		}
	}
}

func TestFreeSlots_DaylightSavingDays(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	wh := WorkingHours{Regular: map[time.Weekday][]TimeRange{
		time.Sunday: {mustRange("09:00", "12:00")},
	}}
	cal := NewProviderCalendar(wh, berlin)

	cases := []struct {
		name      string
		day       time.Time
		firstUTC  time.Time
		lastLocal string
	}{
		// 30.03.2025: 02:00 -> 03:00, UTC+2 после перехода.
		{"spring forward", time.Date(2025, 3, 30, 0, 0, 0, 0, berlin), time.Date(2025, 3, 30, 7, 0, 0, 0, time.UTC), "11:00"},
		// 26.10.2025: 03:00 -> 02:00, UTC+1 после перехода.
		{"fall back", time.Date(2025, 10, 26, 0, 0, 0, 0, berlin), time.Date(2025, 10, 26, 8, 0, 0, 0, time.UTC), "11:00"},
	}

	for _, c := range cases {
		slots, err := cal.FreeSlots(c.day, time.Hour, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if len(slots) != 3 {
			t.Fatalf("%s: expected 3 slots, got %d: %v", c.name, len(slots), slots)
		}
		if !slots[0].Start.Equal(c.firstUTC) {
			t.Fatalf("%s: expected first slot at %v, got %v", c.name, c.firstUTC, slots[0].Start)
		}
		if got := slots[2].Start.In(berlin).Format("15:04"); got != c.lastLocal {
			t.Fatalf("%s: expected last slot at %s local, got %s", c.name, c.lastLocal, got)
		}
		for _, s := range slots {
			ok, err := cal.IsAvailable(s.Start, 3600)
			if err != nil || !ok {
				t.Fatalf("%s: slot %v must pass IsAvailable, got %v %v", c.name, s, ok, err)
			}
		}
	}
}

func TestFreeSlots_ClosedDay(t *testing.T) {
	cal := NewProviderCalendar(weekdayHours(), time.UTC)

	slots, err := cal.FreeSlots(time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC), 30*time.Minute, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on saturday, got %v", slots)
	}
}

func TestFormatSlot(t *testing.T) {
	iv := Interval{
		Start: time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC),
	}

	got := FormatSlot(iv, time.FixedZone("UTC+3", 3*3600))
	want := "Monday, 06.01.2025, 10:00–11:00"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 2, 2)
	if len(p.Items) != 2 || p.Items[0] != 3 {
		t.Fatalf("unexpected page items %v", p.Items)
	}
	if !p.HasNext || !p.HasPrev || p.TotalPages != 3 || p.Total != 5 {
		t.Fatalf("unexpected page meta %+v", p)
	}

	last := Paginate(items, 10, 2)
	if len(last.Items) != 0 || last.HasNext {
		t.Fatalf("expected empty page past the end, got %+v", last)
	}

	def := Paginate(items, 0, 0)
	if def.Page != 1 || def.PageSize != DefaultPageSize || len(def.Items) != 5 {
		t.Fatalf("expected defaults, got %+v", def)
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]string{"c", "d"}, 2, 2, 5)
	if !p.HasNext || !p.HasPrev || p.TotalPages != 3 {
		t.Fatalf("unexpected page meta %+v", p)
	}

	empty := NewPage[string](nil, 0, 1000, 0)
	if empty.Items == nil || empty.Page != 1 || empty.PageSize != MaxPageSize || empty.HasNext {
		t.Fatalf("unexpected empty page %+v", empty)
	}
}
