package calendar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Leganyst/care-gateway/internal/apperr"
)

// DateLayout — ключ даты исключения в WorkingHours.Exceptions.
const DateLayout = "2006-01-02"

// TimeOfDay — время на 24-часовом циферблате без даты.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay разбирает строку формата "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, apperr.Validation("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Seconds — смещение от полуночи в секундах.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return apperr.Validation("time of day must be a string: %v", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeRange — окно [Start, End) в пределах одних суток.
// Переход через полночь не поддерживается.
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// NewTimeRange создаёт окно и проверяет Start < End.
func NewTimeRange(start, end TimeOfDay) (TimeRange, error) {
	r := TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

func (r TimeRange) Validate() error {
	if !r.Start.Valid() || !r.End.Valid() {
		return apperr.Validation("time range %s-%s is out of the 24h clock", r.Start, r.End)
	}
	if r.Start.Seconds() >= r.End.Seconds() {
		return apperr.Validation("time range start %s must be before end %s", r.Start, r.End)
	}
	return nil
}

// Contains — попадает ли момент (секунды от полуночи) в [Start, End).
func (r TimeRange) Contains(sec int) bool {
	return sec >= r.Start.Seconds() && sec < r.End.Seconds()
}

// Encloses — лежит ли [from, to) целиком внутри окна.
func (r TimeRange) Encloses(from, to int) bool {
	return from >= r.Start.Seconds() && to <= r.End.Seconds()
}

// Overlaps — пересечение полуоткрытых интервалов; касание концами не считается.
func (r TimeRange) Overlaps(from, to int) bool {
	return from < r.End.Seconds() && r.Start.Seconds() < to
}

func (r TimeRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// WorkingHours — недельное расписание провайдера.
//
//   - Regular: день недели → окна приёма (пустой список = выходной);
//   - Exceptions: дата "YYYY-MM-DD" → окна, полностью заменяющие Regular на эту дату;
//   - Breaks: день недели → перерывы, вычитаемые из Regular (на даты-исключения не действуют).
type WorkingHours struct {
	Regular    map[time.Weekday][]TimeRange
	Exceptions map[string][]TimeRange
	Breaks     map[time.Weekday][]TimeRange
}

// DefaultWorkingHours строит расписание «days, opensAt–closesAt» без перерывов.
// Используется как явный fallback для провайдеров без сохранённого расписания.
func DefaultWorkingHours(opensAt, closesAt TimeOfDay, days ...time.Weekday) WorkingHours {
	wh := WorkingHours{Regular: make(map[time.Weekday][]TimeRange, len(days))}
	for _, d := range days {
		wh.Regular[d] = []TimeRange{{Start: opensAt, End: closesAt}}
	}
	return wh
}

// Resolve возвращает окна на дату date (в её локации).
// exception = true, если для даты задано исключение; тогда regular-расписание
// не используется вовсе, даже если список исключения пуст (выходной по исключению).
func (wh WorkingHours) Resolve(date time.Time) (ranges []TimeRange, exception bool) {
	if rs, ok := wh.Exceptions[date.Format(DateLayout)]; ok {
		return rs, true
	}
	return wh.Regular[date.Weekday()], false
}

// BreaksOn — перерывы на дату; на даты-исключения перерывов нет.
func (wh WorkingHours) BreaksOn(date time.Time) []TimeRange {
	if _, ok := wh.Exceptions[date.Format(DateLayout)]; ok {
		return nil
	}
	return wh.Breaks[date.Weekday()]
}

// IsWithinBreak — попадает ли hour:minute даты date в перерыв её дня недели.
func (wh WorkingHours) IsWithinBreak(date time.Time, hour, minute int) bool {
	sec := TimeOfDay{Hour: hour, Minute: minute}.Seconds()
	for _, b := range wh.BreaksOn(date) {
		if b.Contains(sec) {
			return true
		}
	}
	return false
}

// Validate проверяет все окна и ключи дат исключений.
func (wh WorkingHours) Validate() error {
	for d, rs := range wh.Regular {
		if err := validateRanges(rs); err != nil {
			return fmt.Errorf("regular hours %s: %w", d, err)
		}
	}
	for date, rs := range wh.Exceptions {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return apperr.Validation("exception date %q must be YYYY-MM-DD", date)
		}
		if err := validateRanges(rs); err != nil {
			return fmt.Errorf("exception %s: %w", date, err)
		}
	}
	for d, rs := range wh.Breaks {
		if err := validateRanges(rs); err != nil {
			return fmt.Errorf("breaks %s: %w", d, err)
		}
	}
	return nil
}

// Normalize упорядочивает окна по началу, чтобы списки были «ordered set».
func (wh WorkingHours) Normalize() WorkingHours {
	return WorkingHours{
		Regular:    sortedWeekly(wh.Regular),
		Exceptions: sortedDated(wh.Exceptions),
		Breaks:     sortedWeekly(wh.Breaks),
	}
}

func validateRanges(rs []TimeRange) error {
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func sortRanges(rs []TimeRange) []TimeRange {
	out := append([]TimeRange(nil), rs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Seconds() < out[j].Start.Seconds() })
	return out
}

func sortedWeekly(in map[time.Weekday][]TimeRange) map[time.Weekday][]TimeRange {
	if in == nil {
		return nil
	}
	out := make(map[time.Weekday][]TimeRange, len(in))
	for d, rs := range in {
		out[d] = sortRanges(rs)
	}
	return out
}

func sortedDated(in map[string][]TimeRange) map[string][]TimeRange {
	if in == nil {
		return nil
	}
	out := make(map[string][]TimeRange, len(in))
	for d, rs := range in {
		out[d] = sortRanges(rs)
	}
	return out
}

// ===== JSON: дни недели храним по имени ("monday"), а не числом =====

type workingHoursJSON struct {
	Regular    map[string][]TimeRange `json:"regular_hours"`
	Exceptions map[string][]TimeRange `json:"exceptions,omitempty"`
	Breaks     map[string][]TimeRange `json:"breaks,omitempty"`
}

func (wh WorkingHours) MarshalJSON() ([]byte, error) {
	return json.Marshal(workingHoursJSON{
		Regular:    weekdaysToNames(wh.Regular),
		Exceptions: wh.Exceptions,
		Breaks:     weekdaysToNames(wh.Breaks),
	})
}

func (wh *WorkingHours) UnmarshalJSON(data []byte) error {
	var raw workingHoursJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	regular, err := namesToWeekdays(raw.Regular)
	if err != nil {
		return err
	}
	breaks, err := namesToWeekdays(raw.Breaks)
	if err != nil {
		return err
	}
	*wh = WorkingHours{Regular: regular, Exceptions: raw.Exceptions, Breaks: breaks}
	return nil
}

// ParseWeekday принимает полное или трёхбуквенное английское имя дня.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, apperr.Validation("unknown weekday %q", s)
}

func weekdaysToNames(in map[time.Weekday][]TimeRange) map[string][]TimeRange {
	if in == nil {
		return nil
	}
	out := make(map[string][]TimeRange, len(in))
	for d, rs := range in {
		out[strings.ToLower(d.String())] = rs
	}
	return out
}

func namesToWeekdays(in map[string][]TimeRange) (map[time.Weekday][]TimeRange, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[time.Weekday][]TimeRange, len(in))
	for name, rs := range in {
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		out[d] = rs
	}
	return out, nil
}
