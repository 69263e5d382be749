// Package store holds the server-confirmed working set of a table view.
//
// A Store never performs I/O. Callers talk to the backend first and only
// apply the confirmed result here, so a failed request can never leave the
// local copy ahead of the server.
package store

// Keyed is implemented by every entity a Store can hold.
type Keyed interface {
	Key() string
}

// Store is an ordered collection of entities matched by key.
// It is owned by a single view and is not safe for concurrent use.
type Store[T Keyed] struct {
	items []T
	epoch uint64
}

// New returns an empty store.
func New[T Keyed]() *Store[T] {
	return &Store[T]{}
}

// Load replaces the entire set with a fresh fetch result. Any edit opened
// against the previous set is invalidated through the epoch.
func (s *Store[T]) Load(items []T) {
	s.items = append(make([]T, 0, len(items)), items...)
	s.epoch++
}

// Insert prepends a newly created entity.
func (s *Store[T]) Insert(item T) {
	s.items = append([]T{item}, s.items...)
}

// InsertAtEnd appends a newly created entity.
func (s *Store[T]) InsertAtEnd(item T) {
	s.items = append(s.items, item)
}

// Replace swaps the entity sharing item's key in place. It returns false and
// leaves the store untouched when no such entity exists.
func (s *Store[T]) Replace(item T) bool {
	i := s.index(item.Key())
	if i < 0 {
		return false
	}
	s.items[i] = item
	return true
}

// Remove deletes the entity with the given key and reports whether it was
// present.
func (s *Store[T]) Remove(key string) bool {
	i := s.index(key)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return true
}

// Get looks up an entity by key.
func (s *Store[T]) Get(key string) (T, bool) {
	i := s.index(key)
	if i < 0 {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Items returns a copy of the entities in display order.
func (s *Store[T]) Items() []T {
	return append(make([]T, 0, len(s.items)), s.items...)
}

// Len returns the number of entities.
func (s *Store[T]) Len() int {
	return len(s.items)
}

// Epoch identifies the current fetch generation. It changes on every Load.
func (s *Store[T]) Epoch() uint64 {
	return s.epoch
}

func (s *Store[T]) index(key string) int {
	for i, item := range s.items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
