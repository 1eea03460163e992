// Package store holds the authoritative client-side cache of entity state:
// one record per entity id, replaced wholesale on every change event, with
// per-entity watcher notification so an update costs only the watchers of
// that entity, never a full broadcast.
package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dlwiest/hass-go/internal/ha"
)

// StateUnavailable is the state value reported for entities the store has no
// fresh record for. It matches the hub's own convention.
const StateUnavailable = "unavailable"

// Unavailable returns the sentinel record for an entity with no known state.
func Unavailable(entityID string) ha.State {
	return ha.State{EntityID: entityID, State: StateUnavailable}
}

// IsUnavailable reports whether a record is the unavailable sentinel or a
// record the hub itself marked unavailable.
func IsUnavailable(s ha.State) bool {
	return s.State == StateUnavailable || s.State == ""
}

// WatchFunc receives the new record each time the watched entity changes.
// Records are shared, not copied; watchers must treat them as immutable.
type WatchFunc func(ha.State)

type watcher struct {
	id int
	fn WatchFunc
}

// Store maps entity ids to their latest record. Lookups never fail: unknown
// ids yield the unavailable sentinel.
type Store struct {
	logger *zap.Logger

	mu       sync.Mutex
	records  map[string]ha.State
	watchers map[string][]watcher
	nextID   int
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	return &Store{
		logger:   logger,
		records:  make(map[string]ha.State),
		watchers: make(map[string][]watcher),
	}
}

// Get returns the latest record for entityID, or the unavailable sentinel
// when the entity has never been seen. It never blocks on I/O.
func (s *Store) Get(entityID string) ha.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[entityID]; ok {
		return rec
	}
	return Unavailable(entityID)
}

// Has reports whether the store holds a record for entityID.
func (s *Store) Has(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[entityID]
	return ok
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Apply replaces the record for st.EntityID wholesale, then synchronously
// notifies the watchers of that entity. Duplicate deliveries are passed
// through: a watcher fires once per incoming event, deduplication is not the
// store's job. The record is fully in place before any watcher runs.
func (s *Store) Apply(st ha.State) {
	s.mu.Lock()
	s.records[st.EntityID] = st
	targets := append([]watcher(nil), s.watchers[st.EntityID]...)
	s.mu.Unlock()

	for _, w := range targets {
		w.fn(st)
	}
}

// ApplyEvent applies a state_changed event. A nil NewState means the hub
// removed the entity; the record becomes the unavailable sentinel.
func (s *Store) ApplyEvent(ev ha.StateChangedEvent) {
	if ev.NewState == nil {
		s.Apply(Unavailable(ev.EntityID))
		return
	}
	s.Apply(*ev.NewState)
}

// Watch registers fn for changes to entityID and returns the deregistration
// handle. The caller owns the registration and must call the returned
// function when it stops observing, or the callback leaks.
func (s *Store) Watch(entityID string, fn WatchFunc) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[entityID] = append(s.watchers[entityID], watcher{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[entityID]
		for i, w := range ws {
			if w.id == id {
				s.watchers[entityID] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(s.watchers[entityID]) == 0 {
			delete(s.watchers, entityID)
		}
	}
}

// WatcherCount returns the number of live registrations for entityID.
func (s *Store) WatcherCount(entityID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[entityID])
}

// Reset clears every record and tells each registered watcher its entity is
// now unavailable. Registrations survive a reset; fresh data re-fires them.
func (s *Store) Reset() {
	s.mu.Lock()
	n := len(s.records)
	s.records = make(map[string]ha.State)
	notify := make(map[string][]watcher, len(s.watchers))
	for id, ws := range s.watchers {
		notify[id] = append([]watcher(nil), ws...)
	}
	s.mu.Unlock()

	s.logger.Debug("Store reset", zap.Int("records_cleared", n))

	for entityID, ws := range notify {
		sentinel := Unavailable(entityID)
		for _, w := range ws {
			w.fn(sentinel)
		}
	}
}

// MarkUnavailable flags every record as unavailable while keeping its
// attributes and timestamps, for the retain-across-reconnect policy. Watchers
// of each flagged entity are notified.
func (s *Store) MarkUnavailable() {
	s.mu.Lock()
	var updates []ha.State
	for id, rec := range s.records {
		if rec.State == StateUnavailable {
			continue
		}
		rec.State = StateUnavailable
		s.records[id] = rec
		updates = append(updates, rec)
	}
	notify := make(map[string][]watcher, len(s.watchers))
	for id, ws := range s.watchers {
		notify[id] = append([]watcher(nil), ws...)
	}
	s.mu.Unlock()

	for _, rec := range updates {
		for _, w := range notify[rec.EntityID] {
			w.fn(rec)
		}
	}
}
