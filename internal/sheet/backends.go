package sheet

import (
	"context"
	"errors"
	"sync"

	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/table"
	"github.com/Tiliavir/tsheet/internal/timecalc"
)

// RecordAPI is the part of the REST client the record tables use.
type RecordAPI interface {
	ListRecords(ctx context.Context, from, to string) ([]model.Record, error)
	AllRecords(ctx context.Context) ([]model.Record, error)
	CreateRecord(ctx context.Context, in model.RecordInput) (model.Record, string, error)
	CreateRecordFor(ctx context.Context, email string, in model.RecordInput) (model.Record, string, error)
	UpdateRecord(ctx context.Context, id string, patch model.RecordPatch) (model.Record, string, error)
	DeleteRecord(ctx context.Context, id string) (string, error)
}

// UserAPI is the part of the REST client the user table uses.
type UserAPI interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	Register(ctx context.Context, in gateway.Registration) (model.User, string, error)
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, string, error)
	DeleteUser(ctx context.Context, id string) (string, error)
}

func recordInput(d table.Draft) model.RecordInput {
	day, _ := model.ParseDay(d.Text(table.FieldDate))
	return model.RecordInput{
		Description: d.Text(table.FieldDescription),
		Date:        day,
		Hours:       d.Float(table.FieldHours),
	}
}

// recordPatch holds the fields of d that differ from current.
func recordPatch(current model.Record, d table.Draft) model.RecordPatch {
	in := recordInput(d)
	var p model.RecordPatch
	if in.Description != current.Description {
		p.Description = &in.Description
	}
	if in.Date != current.Day() {
		p.Date = &in.Date
	}
	if in.Hours != current.Hours {
		p.Hours = &in.Hours
	}
	return p
}

// RecordsBackend serves the signed-in user's records within Range. A zero
// Range fetches every record. Range must not be written once fetches may
// run; use Shift.
type RecordsBackend struct {
	API   RecordAPI
	Range timecalc.Range

	mu sync.Mutex
}

// Shift moves the window by weeks and returns the new window. Fetches
// started afterwards use it.
func (b *RecordsBackend) Shift(weeks int) timecalc.Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Range = b.Range.Shift(weeks)
	return b.Range
}

func (b *RecordsBackend) Fetch(ctx context.Context) ([]model.Record, error) {
	b.mu.Lock()
	r := b.Range
	b.mu.Unlock()
	if r.From.IsZero() {
		return b.API.ListRecords(ctx, "", "")
	}
	return b.API.ListRecords(ctx, r.FromDay(), r.ToDay())
}

func (b *RecordsBackend) Create(ctx context.Context, d table.Draft) (model.Record, string, error) {
	return b.API.CreateRecord(ctx, recordInput(d))
}

func (b *RecordsBackend) Update(ctx context.Context, current model.Record, d table.Draft) (model.Record, string, error) {
	return b.API.UpdateRecord(ctx, current.ID, recordPatch(current, d))
}

func (b *RecordsBackend) Delete(ctx context.Context, id string) (string, error) {
	return b.API.DeleteRecord(ctx, id)
}

// AdminRecordsBackend serves every user's records.
type AdminRecordsBackend struct {
	API RecordAPI
}

func (b *AdminRecordsBackend) Fetch(ctx context.Context) ([]model.Record, error) {
	return b.API.AllRecords(ctx)
}

// Create books a record for the user whose email is in the draft.
func (b *AdminRecordsBackend) Create(ctx context.Context, d table.Draft) (model.Record, string, error) {
	email := d.Text(table.FieldEmail)
	r, msg, err := b.API.CreateRecordFor(ctx, email, recordInput(d))
	if err == nil && r.Owner == nil {
		r.Owner = &model.Owner{Email: email}
	}
	return r, msg, err
}

func (b *AdminRecordsBackend) Update(ctx context.Context, current model.Record, d table.Draft) (model.Record, string, error) {
	r, msg, err := b.API.UpdateRecord(ctx, current.ID, recordPatch(current, d))
	if err != nil {
		return r, msg, err
	}
	// The update answer does not always populate the owner.
	if r.Owner == nil || (r.Owner.Name == "" && current.Owner != nil && r.Owner.ID == current.Owner.ID) {
		r.Owner = current.Owner
	}
	return r, msg, nil
}

func (b *AdminRecordsBackend) Delete(ctx context.Context, id string) (string, error) {
	return b.API.DeleteRecord(ctx, id)
}

// UsersBackend serves the user management table.
type UsersBackend struct {
	API UserAPI
}

func (b *UsersBackend) Fetch(ctx context.Context) ([]model.User, error) {
	return b.API.ListUsers(ctx)
}

// Create registers a new account from a form built on table.UserCreateColumns.
func (b *UsersBackend) Create(ctx context.Context, d table.Draft) (model.User, string, error) {
	u, msg, err := b.API.Register(ctx, gateway.Registration{
		Name:           d.Text(table.FieldName),
		Email:          d.Text(table.FieldEmail),
		Password:       d[table.FieldPassword],
		Role:           model.Role(d.Text(table.FieldRole)),
		PreferredHours: model.Hours(d.Float(table.FieldPreferredHours)),
	})
	if err != nil {
		return u, msg, err
	}
	if u.ID == "" {
		return u, msg, errors.New("register response did not contain the new user")
	}
	return u, msg, nil
}

// Update sends the edited user. When the backend answers with a message
// only, the draft is merged into the current row.
func (b *UsersBackend) Update(ctx context.Context, current model.User, d table.Draft) (model.User, string, error) {
	name := d.Text(table.FieldName)
	email := d.Text(table.FieldEmail)
	role := model.Role(d.Text(table.FieldRole))
	hours := d.Float(table.FieldPreferredHours)
	patch := model.UserPatch{Name: &name, Email: &email, Role: &role, PreferredHours: &hours}

	u, msg, err := b.API.UpdateUser(ctx, current.ID, patch)
	if err != nil {
		return model.User{}, "", err
	}
	if u != nil {
		return *u, msg, nil
	}
	merged := current
	merged.Name, merged.Email, merged.Role, merged.PreferredHours = name, email, role, &hours
	return merged, msg, nil
}

func (b *UsersBackend) Delete(ctx context.Context, id string) (string, error) {
	return b.API.DeleteUser(ctx, id)
}
