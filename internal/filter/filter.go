// Package filter holds the five-dimension record filter.
//
// A record passes when, for every dimension with a non-empty selection, its
// value along that dimension is one of the selected values: AND across
// dimensions, OR within one. Values that are not canonical options of their
// dimension are dropped on every entry path and never reach the state.
package filter

import (
	"encoding/json"
	"sync"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// Sanitize returns values restricted to d's option list, de-duplicated and
// in canonical order. It returns nil when nothing survives.
func Sanitize(d model.Dimension, values []string) []string {
	if len(values) == 0 {
		return nil
	}
	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}
	var out []string
	for _, opt := range d.Options() {
		if want[opt] {
			out = append(out, opt)
		}
	}
	return out
}

// Normalize sanitizes every dimension of v.
func Normalize(v model.FilterValues) model.FilterValues {
	var out model.FilterValues
	for _, d := range model.Dimensions {
		out = out.With(d, Sanitize(d, v.Get(d)))
	}
	return out
}

// IsActive reports whether any dimension of v constrains records.
func IsActive(v model.FilterValues) bool {
	for _, d := range model.Dimensions {
		if len(v.Get(d)) > 0 {
			return true
		}
	}
	return false
}

// Matches reports whether r passes v.
func Matches(v model.FilterValues, r model.Record) bool {
	for _, d := range model.Dimensions {
		selected := v.Get(d)
		if len(selected) == 0 {
			continue
		}
		value := d.ValueOf(r)
		found := false
		for _, s := range selected {
			if s == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply returns the records passing v, in input order.
func Apply(v model.FilterValues, records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if Matches(v, r) {
			out = append(out, r)
		}
	}
	return out
}

// Store is the mutable filter state shared by every view of one session.
type Store struct {
	// writeMu is held across a mutation and its notification so listeners
	// observe snapshots in mutation order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	values    model.FilterValues
	listeners map[int]func(model.FilterValues)
	nextID    int
}

// NewStore creates an empty, inactive filter store.
func NewStore() *Store {
	return &Store{listeners: make(map[int]func(model.FilterValues))}
}

// Set replaces the selection of one dimension and returns the values that
// were accepted. Unknown dimensions are ignored.
func (s *Store) Set(d model.Dimension, values []string) []string {
	if !d.Valid() {
		return nil
	}
	accepted := Sanitize(d, values)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.values = s.values.With(d, accepted)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return append([]string(nil), accepted...)
}

// ClearAll empties every dimension.
func (s *Store) ClearAll() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.values = model.FilterValues{}
	s.mu.Unlock()
	s.notify(model.FilterValues{})
}

// IsActive reports whether any dimension is non-empty.
func (s *Store) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IsActive(s.values)
}

// Snapshot returns a copy of the current selection.
func (s *Store) Snapshot() model.FilterValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() model.FilterValues {
	var out model.FilterValues
	for _, d := range model.Dimensions {
		if v := s.values.Get(d); len(v) > 0 {
			out = out.With(d, append([]string(nil), v...))
		}
	}
	return out
}

// Hydrate replaces the whole state with v, silently dropping values that
// are not canonical options.
func (s *Store) Hydrate(v model.FilterValues) {
	clean := Normalize(v)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.values = clean
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// HydrateJSON hydrates from a persisted JSON blob. Malformed input leaves
// the store untouched and reports false.
func (s *Store) HydrateJSON(data []byte) bool {
	var v model.FilterValues
	if err := json.Unmarshal(data, &v); err != nil {
		return false
	}
	s.Hydrate(v)
	return true
}

// MarshalJSON encodes the current selection.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Matches reports whether r passes the current selection.
func (s *Store) Matches(r model.Record) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Matches(s.values, r)
}

// Apply returns the records passing the current selection.
func (s *Store) Apply(records []model.Record) []model.Record {
	return Apply(s.Snapshot(), records)
}

// OnChange registers fn to be called with a snapshot after every mutation.
// Calls are serialized in mutation order and fn must not mutate s. The
// returned func unregisters it.
func (s *Store) OnChange(fn func(model.FilterValues)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(v model.FilterValues) {
	s.mu.RLock()
	fns := make([]func(model.FilterValues), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}
