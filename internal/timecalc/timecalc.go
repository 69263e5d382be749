package timecalc

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// FormatHours formats fractional hours as a human-readable string like
// "1h 40m", "45m" or "0m".
func FormatHours(hours float64) string {
	minutes := int64(math.Round(hours * 60))
	h := minutes / 60
	m := minutes % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// WeekRange returns the Monday and Sunday of the ISO week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	monday := StartOfDay(t.AddDate(0, 0, -(wd - 1)))
	return monday, EndOfDay(monday.AddDate(0, 0, 6))
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Range is an inclusive window of calendar days.
type Range struct {
	From time.Time
	To   time.Time
}

// FromDay returns the first day as YYYY-MM-DD.
func (r Range) FromDay() string { return r.From.Format(dayLayout) }

// ToDay returns the last day as YYYY-MM-DD.
func (r Range) ToDay() string { return r.To.Format(dayLayout) }

// Shift moves the window by the given number of weeks.
func (r Range) Shift(weeks int) Range {
	return Range{From: r.From.AddDate(0, 0, 7*weeks), To: r.To.AddDate(0, 0, 7*weeks)}
}

// Days lists every day of the window in order.
func (r Range) Days() []string {
	var out []string
	for d := StartOfDay(r.From); !d.After(r.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dayLayout))
	}
	return out
}

func (r Range) String() string { return r.FromDay() + " .. " + r.ToDay() }

// Label is String with the ISO week appended when the window is exactly one
// Monday to Sunday week.
func (r Range) Label() string {
	if r.From.Weekday() == time.Monday && SameDay(r.To, r.From.AddDate(0, 0, 6)) {
		return r.String() + " (" + ISOWeekLabel(r.From) + ")"
	}
	return r.String()
}

// Presets are the named windows accepted by Preset.
var Presets = []string{"last7", "last14", "last30", "last90", "week"}

// Preset resolves a named window relative to now. The "lastN" windows run
// from N days ago through today.
func Preset(name string, now time.Time) (Range, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "last7":
		return lastDays(now, 7), nil
	case "last14":
		return lastDays(now, 14), nil
	case "last30":
		return lastDays(now, 30), nil
	case "last90":
		return lastDays(now, 90), nil
	case "week":
		from, to := WeekRange(now)
		return Range{From: from, To: to}, nil
	}
	return Range{}, fmt.Errorf("unknown range preset %q (want one of %s)", name, strings.Join(Presets, ", "))
}

// ParseRange builds a window from two YYYY-MM-DD days in loc.
func ParseRange(from, to string, loc *time.Location) (Range, error) {
	f, err := time.ParseInLocation(dayLayout, from, loc)
	if err != nil {
		return Range{}, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	t, err := time.ParseInLocation(dayLayout, to, loc)
	if err != nil {
		return Range{}, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if t.Before(f) {
		return Range{}, fmt.Errorf("range end %s is before start %s", to, from)
	}
	return Range{From: f, To: EndOfDay(t)}, nil
}

func lastDays(now time.Time, n int) Range {
	return Range{From: StartOfDay(now.AddDate(0, 0, -n)), To: EndOfDay(now)}
}
