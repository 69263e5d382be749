package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DayLayout is the wire and display format of a calendar date.
const DayLayout = "2006-01-02"

const (
	// MaxRecordHours is the upper bound of a single record's duration.
	MaxRecordHours = 12
	// MaxPreferredHours is the exclusive upper bound of a user's daily target.
	MaxPreferredHours = 17
	// DefaultPreferredHours is used when a user has no target configured.
	DefaultPreferredHours = 8
)

// Record represents a single logged work entry.
type Record struct {
	ID          string  `json:"_id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Hours       float64 `json:"duration"`
	// Owner is only populated by endpoints that list records across users.
	Owner *Owner `json:"userId,omitempty"`
}

// Key returns the record id.
func (r Record) Key() string { return r.ID }

// Day returns the calendar date the record is booked on.
func (r Record) Day() string { return DayOf(r.Date) }

// OwnerName returns the owning user's name, or "" when unknown.
func (r Record) OwnerName() string {
	if r.Owner == nil {
		return ""
	}
	return r.Owner.Name
}

// Owner is the user a record belongs to. The backend sends either a bare
// id string or a populated user document.
type Owner struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// UnmarshalJSON accepts both `"<id>"` and `{"_id": ..., "name": ...}`.
func (o *Owner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*o = Owner{ID: id}
		return nil
	}
	type plain Owner
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding record owner: %w", err)
	}
	*o = Owner(p)
	return nil
}

// RecordInput is the payload for creating a record.
type RecordInput struct {
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Hours       float64 `json:"duration"`
}

// RecordPatch is the payload for updating a record. Nil fields are left
// untouched by the backend.
type RecordPatch struct {
	Description *string  `json:"description,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Hours       *float64 `json:"duration,omitempty"`
}

// DayOf returns the date portion of a wire date. Values such as
// "2024-01-01T00:00:00.000Z" are cut to "2024-01-01" without any timezone
// conversion.
func DayOf(value string) string {
	if len(value) > len(DayLayout) {
		return value[:len(DayLayout)]
	}
	return value
}

// ParseDay validates value as a calendar date and returns it normalised.
// Besides YYYY-MM-DD it accepts the full RFC 3339 wire form.
func ParseDay(value string) (string, error) {
	if _, err := time.Parse(DayLayout, value); err == nil {
		return value, nil
	}
	if _, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return DayOf(value), nil
	}
	return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", value)
}
