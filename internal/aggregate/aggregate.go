// Package aggregate computes per-day hour totals and classifies them against
// a user's preferred working hours. Every function is pure and recomputes
// from its input; results are never cached across store mutations.
package aggregate

import (
	"sort"

	"github.com/Tiliavir/tsheet/internal/model"
)

// GroupTotals sums record hours by day.
func GroupTotals(records []model.Record) map[string]float64 {
	return TotalsBy(records, model.Record.Day)
}

// TotalsBy sums record hours grouped by key(record).
func TotalsBy(records []model.Record, key func(model.Record) string) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range records {
		totals[key(r)] += r.Hours
	}
	return totals
}

// OwnerDay is the grouping key used by the all-users view.
func OwnerDay(r model.Record) string {
	owner := ""
	if r.Owner != nil {
		owner = r.Owner.ID
	}
	return owner + "|" + r.Day()
}

// Status is the classification of one day.
type Status struct {
	Day     string  `json:"date"`
	Total   float64 `json:"total"`
	Target  float64 `json:"preferredHours"`
	Meets   bool    `json:"meets"`
	Deficit float64 `json:"deficit"`
}

// Classify reports whether totals[day] reaches preferred. Missing days count
// as zero.
func Classify(day string, totals map[string]float64, preferred float64) Status {
	total := totals[day]
	st := Status{Day: day, Total: total, Target: preferred, Meets: total >= preferred}
	if !st.Meets {
		st.Deficit = preferred - total
	}
	return st
}

// Days returns the keys of totals in ascending order.
func Days(totals map[string]float64) []string {
	days := make([]string, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Summarize classifies every day present in records.
func Summarize(records []model.Record, preferred float64) []Status {
	totals := GroupTotals(records)
	out := make([]Status, 0, len(totals))
	for _, d := range Days(totals) {
		out = append(out, Classify(d, totals, preferred))
	}
	return out
}

// Sum returns the hours of all records.
func Sum(records []model.Record) float64 {
	var total float64
	for _, r := range records {
		total += r.Hours
	}
	return total
}
