package table

import (
	"strconv"

	"github.com/Tiliavir/tsheet/internal/model"
)

// Field names shared between column sets, drafts and backends.
const (
	FieldDate           = "date"
	FieldDescription    = "description"
	FieldHours          = "duration"
	FieldUser           = "userName"
	FieldName           = "name"
	FieldEmail          = "email"
	FieldRole           = "role"
	FieldPreferredHours = "preferedHours"
	FieldPassword       = "password"
)

// FormatHours renders an hour value without trailing zeros.
func FormatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// FormatTarget renders a user's preferred hours, or "" when unset.
func FormatTarget(u model.User) string {
	if u.PreferredHours == nil {
		return ""
	}
	return FormatHours(*u.PreferredHours)
}

// RecordColumns is the column set of a user's own record table.
func RecordColumns() []Column[model.Record] {
	return []Column[model.Record]{
		{
			Field:    FieldDate,
			Title:    "Date",
			Input:    InputDate,
			Editable: true,
			Required: true,
			Value:    func(r model.Record) string { return r.Day() },
		},
		{
			Field:    FieldDescription,
			Title:    "Description",
			Input:    InputText,
			Editable: true,
			Required: true,
			Value:    func(r model.Record) string { return r.Description },
		},
		{
			Field:    FieldHours,
			Title:    "Hour(s)",
			Input:    InputNumber,
			Editable: true,
			Required: true,
			Min:      0,
			Max:      model.MaxRecordHours,
			Value:    func(r model.Record) string { return FormatHours(r.Hours) },
		},
	}
}

// AdminRecordColumns is the column set of the all-users record table. The
// owner is shown but never edited.
func AdminRecordColumns() []Column[model.Record] {
	cols := RecordColumns()
	owner := Column[model.Record]{
		Field: FieldUser,
		Title: "User",
		Input: InputText,
		Value: func(r model.Record) string { return r.OwnerName() },
		Render: func(r model.Record) string {
			if name := r.OwnerName(); name != "" {
				return name
			}
			return "No user assigned"
		},
	}
	return append([]Column[model.Record]{cols[0], owner}, cols[1:]...)
}

// UserColumns is the column set of the user management table.
func UserColumns() []Column[model.User] {
	roles := make([]string, 0, len(model.Roles()))
	for _, r := range model.Roles() {
		roles = append(roles, string(r))
	}
	return []Column[model.User]{
		{
			Field:    FieldName,
			Title:    "Name",
			Input:    InputText,
			Editable: true,
			Required: true,
			Value:    func(u model.User) string { return u.Name },
		},
		{
			Field:    FieldEmail,
			Title:    "Email",
			Input:    InputEmail,
			Editable: true,
			Required: true,
			Value:    func(u model.User) string { return u.Email },
		},
		{
			Field:    FieldRole,
			Title:    "Role",
			Input:    InputSelect,
			Editable: true,
			Required: true,
			Options:  roles,
			Value:    func(u model.User) string { return string(u.Role) },
		},
		{
			Field:        FieldPreferredHours,
			Title:        "Preferred Hours",
			Input:        InputNumber,
			Editable:     true,
			Required:     true,
			Min:          0,
			Max:          model.MaxPreferredHours,
			MaxExclusive: true,
			Value:        FormatTarget,
		},
	}
}

// AdminRecordCreateColumns is the form for booking a record on behalf of
// another user, identified by email.
func AdminRecordCreateColumns() []Column[model.Record] {
	email := Column[model.Record]{
		Field:    FieldEmail,
		Title:    "User email",
		Input:    InputEmail,
		Editable: true,
		Required: true,
	}
	return append([]Column[model.Record]{email}, RecordColumns()...)
}

// UserCreateColumns is the form for registering a user. Role and preferred
// hours may be left to the backend's defaults.
func UserCreateColumns() []Column[model.User] {
	cols := UserColumns()
	password := Column[model.User]{
		Field:    FieldPassword,
		Title:    "Password",
		Input:    InputPassword,
		Editable: true,
		Required: true,
	}
	for i := range cols {
		if cols[i].Field == FieldRole || cols[i].Field == FieldPreferredHours {
			cols[i].Required = false
		}
	}
	return append(cols[:2:2], append([]Column[model.User]{password}, cols[2:]...)...)
}
