// Package edit implements the single-slot inline edit state machine shared by
// every editable table.
//
// A Session is either Idle or Editing one row. Field edits are staged in a
// draft; the store is only touched when the backend confirms a commit, and
// then with the item the backend returned rather than the local draft.
package edit

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tiliavir/tsheet/internal/store"
	"github.com/Tiliavir/tsheet/internal/table"
)

// State is the coarse state of a Session.
type State uint8

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "idle"
}

var (
	// ErrNotEditing is returned when committing without an open edit.
	ErrNotEditing = errors.New("no edit in progress")
	// ErrCommitPending is returned when a commit is already in flight.
	ErrCommitPending = errors.New("commit already pending")
	// ErrStale is returned when the edit was cancelled, replaced or reset
	// before the backend answered. The answer is discarded.
	ErrStale = errors.New("edit was abandoned before the server replied")
)

// Updater sends a validated draft for key to the backend and returns the
// canonical item it stored.
type Updater[T store.Keyed] func(ctx context.Context, key string, draft table.Draft) (T, error)

// Outcome tells a caller what Resolve did with a backend answer.
type Outcome uint8

const (
	// Applied means the store now holds the server item and the session is Idle.
	Applied Outcome = iota
	// Rejected means the backend failed; the session is still Editing.
	Rejected
	// Stale means the answer belonged to an abandoned edit and was ignored.
	Stale
)

// Ticket identifies one in-flight commit.
type Ticket struct {
	Key   string
	Draft table.Draft

	generation uint64
	epoch      uint64
}

// Session tracks the row being edited in one table. It is owned by a single
// goroutine, typically a UI event loop.
type Session[T store.Keyed] struct {
	store   *store.Store[T]
	columns []table.Column[T]

	editing     bool
	pending     bool
	key         string
	draft       table.Draft
	fieldErrors map[string]string

	// generation changes on every Begin and Cancel so answers to abandoned
	// commits can be recognised.
	generation uint64
	// epoch is the store epoch the edit was opened under.
	epoch uint64
}

// New creates an idle session editing rows of s described by columns.
func New[T store.Keyed](s *store.Store[T], columns []table.Column[T]) *Session[T] {
	return &Session[T]{store: s, columns: columns}
}

// State returns Idle or Editing.
func (s *Session[T]) State() State {
	s.sync()
	if s.editing {
		return Editing
	}
	return Idle
}

// Key returns the key of the row being edited, or "" when idle.
func (s *Session[T]) Key() string {
	s.sync()
	return s.key
}

// IsEditing reports whether key is the row being edited.
func (s *Session[T]) IsEditing(key string) bool {
	return s.State() == Editing && s.key == key
}

// Pending reports whether a commit is in flight.
func (s *Session[T]) Pending() bool {
	s.sync()
	return s.pending
}

// Draft returns a copy of the staged values, or nil when idle.
func (s *Session[T]) Draft() table.Draft {
	s.sync()
	if !s.editing {
		return nil
	}
	return s.draft.Clone()
}

// FieldErrors returns the field messages of the last failed validation.
func (s *Session[T]) FieldErrors() map[string]string {
	return s.fieldErrors
}

// Begin opens an edit of item. An edit already open is discarded without
// touching the store.
func (s *Session[T]) Begin(item T) {
	s.generation++
	s.editing = true
	s.pending = false
	s.key = item.Key()
	s.draft = table.Seed(s.columns, item)
	s.fieldErrors = nil
	s.epoch = s.store.Epoch()
}

// UpdateField stages value for field. It does nothing while idle.
func (s *Session[T]) UpdateField(field, value string) error {
	s.sync()
	if !s.editing {
		return nil
	}
	if s.pending {
		return ErrCommitPending
	}
	col, ok := table.Find(s.columns, field)
	if !ok || !col.Editable {
		return fmt.Errorf("field %q is not editable", field)
	}
	s.draft[field] = value
	return nil
}

// Cancel closes the edit and drops the draft. An in-flight commit for it
// will be ignored when it returns.
func (s *Session[T]) Cancel() {
	s.generation++
	s.reset()
}

// Prepare validates the draft and marks a commit as in flight. On validation
// failure it returns a *table.ValidationError and the session stays open.
func (s *Session[T]) Prepare() (Ticket, error) {
	s.sync()
	if !s.editing {
		return Ticket{}, ErrNotEditing
	}
	if s.pending {
		return Ticket{}, ErrCommitPending
	}
	if err := table.Validate(s.columns, s.draft); err != nil {
		var verr *table.ValidationError
		if errors.As(err, &verr) {
			s.fieldErrors = verr.Fields
		}
		return Ticket{}, err
	}
	s.fieldErrors = nil
	s.pending = true
	return Ticket{
		Key:        s.key,
		Draft:      s.draft.Clone(),
		generation: s.generation,
		epoch:      s.epoch,
	}, nil
}

// Resolve applies the backend's answer to the commit identified by t.
func (s *Session[T]) Resolve(t Ticket, item T, err error) Outcome {
	s.sync()
	if !s.editing || t.generation != s.generation || t.epoch != s.store.Epoch() {
		return Stale
	}
	s.pending = false
	if err != nil {
		return Rejected
	}
	s.store.Replace(item)
	s.reset()
	return Applied
}

// Commit runs Prepare, calls update and resolves the answer in one step.
func (s *Session[T]) Commit(ctx context.Context, update Updater[T]) (T, error) {
	var zero T
	t, err := s.Prepare()
	if err != nil {
		return zero, err
	}
	item, err := update(ctx, t.Key, t.Draft)
	switch s.Resolve(t, item, err) {
	case Applied:
		return item, nil
	case Rejected:
		return zero, err
	default:
		if err != nil {
			return zero, fmt.Errorf("%w: %w", ErrStale, err)
		}
		return zero, ErrStale
	}
}

// sync drops an edit opened against a store generation that has since been
// reloaded.
func (s *Session[T]) sync() {
	if s.editing && s.epoch != s.store.Epoch() {
		s.generation++
		s.reset()
	}
}

func (s *Session[T]) reset() {
	s.editing = false
	s.pending = false
	s.key = ""
	s.draft = nil
	s.fieldErrors = nil
}
