package calendar

import (
	"errors"
	"fmt"
	"time"
)

var ErrSlotDuration = errors.New("slot duration must be positive")

// SplitToSlots разбивает интервал на слоты фиксированной длительности.
// «Хвост» короче slotDuration отбрасывается.
func SplitToSlots(iv Interval, slotDuration time.Duration) ([]Interval, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !iv.End.After(iv.Start) {
		return []Interval{}, nil
	}

	slots := []Interval{}
	for cur := iv.Start; !cur.Add(slotDuration).After(iv.End); cur = cur.Add(slotDuration) {
		slots = append(slots, Interval{Start: cur, End: cur.Add(slotDuration)})
	}
	return slots, nil
}

// FreeSlots перечисляет свободные слоты длительностью slotDuration на дату day
// (дата берётся в часовом поясе провайдера): окна дня режутся на слоты, затем
// отсеиваются слоты, не проходящие IsAvailable (перерывы), и слоты,
// пересекающиеся с booked.
func (c ProviderCalendar) FreeSlots(day time.Time, slotDuration time.Duration, booked []Interval) ([]Interval, error) {
	if slotDuration < time.Second {
		return nil, ErrSlotDuration
	}

	local := c.local(day)
	y, m, d := local.Date()
	ranges, _ := c.Hours.Resolve(time.Date(y, m, d, 0, 0, 0, 0, local.Location()))

	free := []Interval{}
	for _, r := range ranges {
		// Границы окна — по настенным часам: в день перехода на летнее время
		// от полуночи до 09:00 проходит не 9 часов.
		window := Interval{
			Start: time.Date(y, m, d, r.Start.Hour, r.Start.Minute, 0, 0, local.Location()),
			End:   time.Date(y, m, d, r.End.Hour, r.End.Minute, 0, 0, local.Location()),
		}
		candidates, err := SplitToSlots(window, slotDuration)
		if err != nil {
			return nil, err
		}
		for _, slot := range candidates {
			ok, err := c.IsAvailable(slot.Start, int64(slotDuration/time.Second))
			if err != nil {
				return nil, err
			}
			if !ok || HasConflict(slot.Start, slot.End, booked) {
				continue
			}
			free = append(free, Interval{Start: slot.Start.UTC(), End: slot.End.UTC()})
		}
	}
	return free, nil
}

// FormatSlot форматирует слот для показа пользователю: "Monday, 02.01.2006, 10:00–11:00".
// Если loc != nil, время переводится в указанный часовой пояс.
func FormatSlot(iv Interval, loc *time.Location) string {
	start, end := iv.Start, iv.End
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	return fmt.Sprintf("%s, %s, %s–%s",
		start.Weekday(),
		start.Format("02.01.2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
}
