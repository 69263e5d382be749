// Package table describes editable table columns once, so that every table
// view (own records, users, all records) validates and renders rows the same
// way.
package table

import (
	"fmt"
	"math"
	"net/mail"
	"sort"
	"strconv"
	"strings"

	"github.com/Tiliavir/tsheet/internal/model"
)

// Input is the kind of editor a column uses.
type Input uint8

const (
	InputText Input = iota
	InputNumber
	InputDate
	InputEmail
	InputSelect
	InputPassword
)

// Column describes one table column over rows of type T.
type Column[T any] struct {
	Field    string
	Title    string
	Input    Input
	Editable bool
	Required bool

	// Min and Max bound numeric input. MaxExclusive makes Max an open bound.
	Min          float64
	Max          float64
	MaxExclusive bool

	// Options lists accepted values for InputSelect.
	Options []string

	// Value extracts the raw editable value used to seed a draft.
	Value func(T) string
	// Render formats the cell for display. Value is used when nil.
	Render func(T) string
}

// Cell renders the column for row.
func (c Column[T]) Cell(row T) string {
	if c.Render != nil {
		return c.Render(row)
	}
	if c.Value != nil {
		return c.Value(row)
	}
	return ""
}

// Draft holds staged field values of a row being edited or created.
type Draft map[string]string

// Clone returns an independent copy of d.
func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Float parses a numeric field. Call it only on validated drafts.
func (d Draft) Float(field string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(d[field]), 64)
	return v
}

// Text returns a trimmed text field.
func (d Draft) Text(field string) string {
	return strings.TrimSpace(d[field])
}

// Seed builds a draft for row. Every editable field starts from its empty
// sentinel and is then overwritten with the row's value, so a draft never
// carries values over from an earlier edit.
func Seed[T any](columns []Column[T], row T) Draft {
	d := Blank(columns)
	for _, c := range columns {
		if c.Editable && c.Value != nil {
			d[c.Field] = c.Value(row)
		}
	}
	return d
}

// Blank returns a draft with every editable field set to its sentinel:
// "" for text-like fields and "0" for numbers.
func Blank[T any](columns []Column[T]) Draft {
	d := make(Draft, len(columns))
	for _, c := range columns {
		if !c.Editable {
			continue
		}
		if c.Input == InputNumber {
			d[c.Field] = "0"
		} else {
			d[c.Field] = ""
		}
	}
	return d
}

// Editable returns the editable columns in display order.
func Editable[T any](columns []Column[T]) []Column[T] {
	var out []Column[T]
	for _, c := range columns {
		if c.Editable {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the column for field.
func Find[T any](columns []Column[T], field string) (Column[T], bool) {
	for _, c := range columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column[T]{}, false
}

// ValidationError reports field-scoped problems with a draft.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks every editable column of draft and returns a
// *ValidationError, or nil when the draft is acceptable.
func Validate[T any](columns []Column[T], draft Draft) error {
	fields := map[string]string{}
	for _, c := range columns {
		if !c.Editable {
			continue
		}
		if msg := c.check(strings.TrimSpace(draft[c.Field])); msg != "" {
			fields[c.Field] = msg
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (c Column[T]) check(value string) string {
	if value == "" {
		if c.Required {
			return fmt.Sprintf("Please input %s!", c.Title)
		}
		return ""
	}

	switch c.Input {
	case InputNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Sprintf("%s is not a valid number!", c.Title)
		}
		if n < c.Min {
			return fmt.Sprintf("%s must be at least %s", c.Title, formatBound(c.Min))
		}
		if c.MaxExclusive && n >= c.Max {
			return fmt.Sprintf("%s must be less than %s", c.Title, formatBound(c.Max))
		}
		if !c.MaxExclusive && n > c.Max {
			return fmt.Sprintf("%s must be at most %s", c.Title, formatBound(c.Max))
		}
	case InputDate:
		if _, err := model.ParseDay(value); err != nil {
			return fmt.Sprintf("%s is not a valid date (YYYY-MM-DD)", c.Title)
		}
	case InputEmail:
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return "Please enter a valid email!"
		}
	case InputSelect:
		for _, o := range c.Options {
			if o == value {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", c.Title, strings.Join(c.Options, ", "))
	}
	return ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
