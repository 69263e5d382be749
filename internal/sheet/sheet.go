// Package sheet binds a record store, an edit session and a column set to a
// backend, giving every editable table the same two-phase behaviour: ask the
// backend first, then change local state only with what it returned.
package sheet

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Tiliavir/tsheet/internal/edit"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/store"
	"github.com/Tiliavir/tsheet/internal/table"
)

// Backend persists rows of type T.
type Backend[T store.Keyed] interface {
	Fetch(ctx context.Context) ([]T, error)
	Create(ctx context.Context, draft table.Draft) (T, string, error)
	Update(ctx context.Context, current T, draft table.Draft) (T, string, error)
	Delete(ctx context.Context, key string) (string, error)
}

// Sheet is one editable table. It is owned by a single goroutine.
type Sheet[T store.Keyed] struct {
	store         *store.Store[T]
	session       *edit.Session[T]
	columns       []table.Column[T]
	createColumns []table.Column[T]
	appendCreated bool
	backend       Backend[T]
	log           zerolog.Logger
}

// Option customises a Sheet.
type Option[T store.Keyed] func(*Sheet[T])

// WithCreateColumns sets the form used for new rows when it differs from
// the edit columns.
func WithCreateColumns[T store.Keyed](columns []table.Column[T]) Option[T] {
	return func(s *Sheet[T]) { s.createColumns = columns }
}

// AppendCreated adds new rows at the bottom instead of the top.
func AppendCreated[T store.Keyed]() Option[T] {
	return func(s *Sheet[T]) { s.appendCreated = true }
}

// New creates an empty sheet.
func New[T store.Keyed](columns []table.Column[T], backend Backend[T], log zerolog.Logger, opts ...Option[T]) *Sheet[T] {
	st := store.New[T]()
	s := &Sheet[T]{
		store:         st,
		session:       edit.New(st, columns),
		columns:       columns,
		createColumns: columns,
		backend:       backend,
		log:           log.With().Str("component", "sheet").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rows returns a copy of the current rows.
func (s *Sheet[T]) Rows() []T { return s.store.Items() }

// Get returns the row with key.
func (s *Sheet[T]) Get(key string) (T, bool) { return s.store.Get(key) }

// Columns returns the column set.
func (s *Sheet[T]) Columns() []table.Column[T] { return s.columns }

// Session exposes the edit session for rendering.
func (s *Sheet[T]) Session() *edit.Session[T] { return s.session }

// Backend returns the backend rows are persisted through.
func (s *Sheet[T]) Backend() Backend[T] { return s.backend }

// Reload replaces every row with a fresh fetch. An open edit is dropped.
// On failure the current rows are kept.
func (s *Sheet[T]) Reload(ctx context.Context) error {
	items, err := s.backend.Fetch(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Fetch failed")
		return err
	}
	s.Apply(items)
	return nil
}

// Apply loads the result of a fetch that was run elsewhere.
func (s *Sheet[T]) Apply(items []T) {
	s.store.Load(items)
	s.log.Debug().Int("rows", len(items)).Msg("Rows loaded")
}

// CreateColumns returns the form used for new rows.
func (s *Sheet[T]) CreateColumns() []table.Column[T] { return s.createColumns }

// Blank returns an empty draft for a new row.
func (s *Sheet[T]) Blank() table.Draft { return table.Blank(s.createColumns) }

// ValidateNew checks a draft for a new row.
func (s *Sheet[T]) ValidateNew(draft table.Draft) error {
	return table.Validate(s.createColumns, draft)
}

// Create validates draft, asks the backend to store it and inserts the
// stored row.
func (s *Sheet[T]) Create(ctx context.Context, draft table.Draft) (T, string, error) {
	var zero T
	if err := s.ValidateNew(draft); err != nil {
		return zero, "", err
	}
	item, msg, err := s.backend.Create(ctx, draft)
	if err != nil {
		s.log.Warn().Err(err).Msg("Create failed")
		return zero, "", err
	}
	s.ApplyCreated(item)
	return item, msg, nil
}

// ApplyCreated inserts a row created elsewhere. A row a reload already
// brought in is replaced in place.
func (s *Sheet[T]) ApplyCreated(item T) {
	if s.store.Replace(item) {
		return
	}
	if s.appendCreated {
		s.store.InsertAtEnd(item)
		return
	}
	s.store.Insert(item)
}

// Delete asks the backend to delete key and removes the row once it
// confirms. A row the backend no longer knows is kept until the next
// Reload.
func (s *Sheet[T]) Delete(ctx context.Context, key string) (string, error) {
	msg, err := s.backend.Delete(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Bool("not_found", errors.Is(err, gateway.ErrNotFound)).Msg("Delete failed")
		return "", err
	}
	s.ApplyDeleted(key)
	return msg, nil
}

// ApplyDeleted removes a row deleted elsewhere. An edit of that row is
// cancelled.
func (s *Sheet[T]) ApplyDeleted(key string) {
	if s.session.IsEditing(key) {
		s.session.Cancel()
	}
	s.store.Remove(key)
}

// Begin opens an edit of the row with key.
func (s *Sheet[T]) Begin(key string) bool {
	item, ok := s.store.Get(key)
	if !ok {
		return false
	}
	s.session.Begin(item)
	return true
}

// UpdateField stages a value in the open edit.
func (s *Sheet[T]) UpdateField(field, value string) error {
	return s.session.UpdateField(field, value)
}

// Cancel drops the open edit.
func (s *Sheet[T]) Cancel() { s.session.Cancel() }

// Updater returns the function that sends a prepared edit of key to the
// backend. The returned function only reads the row snapshot taken here and
// may run on another goroutine.
func (s *Sheet[T]) Updater(key string) func(ctx context.Context, draft table.Draft) (T, string, error) {
	current, _ := s.store.Get(key)
	return func(ctx context.Context, draft table.Draft) (T, string, error) {
		return s.backend.Update(ctx, current, draft)
	}
}

// Commit validates the open edit, sends it to the backend and applies the
// backend's row. On failure the store is unchanged and the edit stays open.
func (s *Sheet[T]) Commit(ctx context.Context) (T, string, error) {
	var msg string
	key := s.session.Key()
	update := s.Updater(key)
	item, err := s.session.Commit(ctx, func(ctx context.Context, _ string, draft table.Draft) (T, error) {
		item, m, err := update(ctx, draft)
		msg = m
		return item, err
	})
	if err != nil {
		var verr *table.ValidationError
		if !errors.As(err, &verr) {
			s.log.Warn().Err(err).Str("key", key).Msg("Update failed")
		}
		return item, "", err
	}
	return item, msg, nil
}
