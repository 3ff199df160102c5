// Package store holds the process-wide event collection. Readers take an
// immutable Snapshot; every mutation publishes a new one, so a layout pass in
// flight never observes a partial update.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Snapshot is a read-only view of the collection at one version. Callers
// must not modify Events.
type Snapshot struct {
	Version uint64
	Events  []model.Event
}

// Store is a copy-on-write event collection.
type Store struct {
	current atomic.Pointer[Snapshot]

	// mu serializes writers and guards subscribers.
	mu          sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int

	newID func() string
}

// New returns a store seeded with events. Seeds are validated; invalid ones
// are logged and skipped.
func New(seed []model.Event) *Store {
	s := &Store{
		subscribers: make(map[int]func(Snapshot)),
		newID:       func() string { return uuid.NewString() },
	}

	events := make([]model.Event, 0, len(seed))
	for _, e := range seed {
		if e.ID == "" {
			e.ID = s.newID()
		}
		if err := e.Validate(); err != nil {
			appLog.Error("store: dropping invalid seed event", err, "id", e.ID)
			continue
		}
		events = append(events, e.Clone())
	}
	s.current.Store(&Snapshot{Version: 1, Events: events})
	return s
}

// Snapshot returns the current collection without locking.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Get returns a copy of the event with the given ID.
func (s *Store) Get(id string) (model.Event, error) {
	for _, e := range s.Snapshot().Events {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return model.Event{}, fmt.Errorf("store: %q: %w", id, model.ErrEventNotFound)
}

// Add validates e, assigns an ID when it has none and publishes it.
func (s *Store) Add(e model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.newID()
	}
	if err := e.Validate(); err != nil {
		return model.Event{}, err
	}

	cur := s.current.Load()
	for _, existing := range cur.Events {
		if existing.ID == e.ID {
			return model.Event{}, fmt.Errorf("store: duplicate event id %q", e.ID)
		}
	}

	next := make([]model.Event, len(cur.Events), len(cur.Events)+1)
	copy(next, cur.Events)
	next = append(next, e.Clone())
	s.publishLocked(next)
	return e, nil
}

// Update applies fn to a copy of the event and publishes the result if it is
// still valid. The ID cannot be changed.
func (s *Store) Update(id string, fn func(*model.Event)) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	idx := indexOf(cur.Events, id)
	if idx < 0 {
		return model.Event{}, fmt.Errorf("store: %q: %w", id, model.ErrEventNotFound)
	}

	updated := cur.Events[idx].Clone()
	fn(&updated)
	updated.ID = id
	if err := updated.Validate(); err != nil {
		return model.Event{}, err
	}

	next := make([]model.Event, len(cur.Events))
	copy(next, cur.Events)
	next[idx] = updated
	s.publishLocked(next)
	return updated.Clone(), nil
}

// Delete removes the event with the given ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	idx := indexOf(cur.Events, id)
	if idx < 0 {
		return fmt.Errorf("store: %q: %w", id, model.ErrEventNotFound)
	}

	next := make([]model.Event, 0, len(cur.Events)-1)
	next = append(next, cur.Events[:idx]...)
	next = append(next, cur.Events[idx+1:]...)
	s.publishLocked(next)
	return nil
}

// ReplaceSource swaps every event of sourceID for events. Local events and
// other sources keep their position; the new events are appended. Invalid
// events are skipped and counted.
func (s *Store) ReplaceSource(sourceID string, events []model.Event) (skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next := make([]model.Event, 0, len(cur.Events)+len(events))
	for _, e := range cur.Events {
		if e.SourceID != sourceID {
			next = append(next, e)
		}
	}
	for _, e := range events {
		e.SourceID = sourceID
		if e.ID == "" {
			e.ID = s.newID()
		}
		if err := e.Validate(); err != nil {
			skipped++
			continue
		}
		next = append(next, e.Clone())
	}
	s.publishLocked(next)

	if skipped > 0 {
		appLog.Warn("store: skipped invalid source events", "source", sourceID, "skipped", skipped)
	}
	return skipped
}

// Subscribe registers fn to be called with every new snapshot. Callbacks run
// synchronously under the writer lock, in publish order, and must not mutate
// the store. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) publishLocked(events []model.Event) {
	snap := &Snapshot{Version: s.current.Load().Version + 1, Events: events}
	s.current.Store(snap)

	appLog.Debug("store: published snapshot", "version", snap.Version, "count", len(events))
	for _, fn := range s.subscribers {
		fn(*snap)
	}
}

func indexOf(events []model.Event, id string) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}
