// Package selection tracks which loaded records are selected or hovered and
// keeps that state in step with other stores over a Bus.
//
// Both sets are always subsets of the loaded set: ids that are not loaded
// are ignored on local mutation, dropped from foreign messages and pruned
// when the loaded set is replaced. Foreign messages replace local state
// wholesale, newest SentAt wins.
package selection

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type idSet map[string]struct{}

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Store is the selection and hover state of one session.
type Store struct {
	mu        sync.RWMutex
	origin    string
	loaded    idSet
	selected  idSet
	hovered   idSet
	lastWrite time.Time

	bus         Bus
	unsubscribe func()
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store. When bus is non-nil the store publishes
// every mutation on it and applies foreign messages received from it.
func NewStore(bus Bus, opts ...Option) *Store {
	s := &Store{
		origin:   uuid.NewString(),
		loaded:   make(idSet),
		selected: make(idSet),
		hovered:  make(idSet),
		bus:      bus,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if bus != nil {
		s.unsubscribe = bus.Subscribe(s.receive)
	}
	return s
}

// Origin identifies this store on the bus.
func (s *Store) Origin() string { return s.origin }

// Close detaches the store from its bus.
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// SetLoaded replaces the loaded set and prunes selected and hovered ids that
// are no longer loaded. It does not publish: every store prunes against its
// own loaded set.
func (s *Store) SetLoaded(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = make(idSet, len(ids))
	for _, id := range ids {
		s.loaded[id] = struct{}{}
	}
	for id := range s.selected {
		if _, ok := s.loaded[id]; !ok {
			delete(s.selected, id)
		}
	}
	for id := range s.hovered {
		if _, ok := s.loaded[id]; !ok {
			delete(s.hovered, id)
		}
	}
}

// Toggle flips the selection of one loaded record. It reports whether the
// record is selected afterwards.
func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	if _, ok := s.loaded[id]; !ok {
		s.mu.Unlock()
		return false
	}
	_, was := s.selected[id]
	if was {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
	msg := s.stampLocked()
	s.mu.Unlock()
	s.publish(msg)
	return !was
}

// ToggleGroup toggles a group all-or-nothing: when every loaded member is
// already selected they are all removed, otherwise every unselected member is
// added. Ids that are not loaded are ignored. It returns the selection size.
func (s *Store) ToggleGroup(ids []string) int {
	s.mu.Lock()
	members := make([]string, 0, len(ids))
	allSelected := true
	for _, id := range ids {
		if _, ok := s.loaded[id]; !ok {
			continue
		}
		members = append(members, id)
		if _, ok := s.selected[id]; !ok {
			allSelected = false
		}
	}
	if len(members) == 0 {
		n := len(s.selected)
		s.mu.Unlock()
		return n
	}
	for _, id := range members {
		if allSelected {
			delete(s.selected, id)
		} else {
			s.selected[id] = struct{}{}
		}
	}
	n := len(s.selected)
	msg := s.stampLocked()
	s.mu.Unlock()
	s.publish(msg)
	return n
}

// Hover replaces the hovered set with the loaded members of ids.
func (s *Store) Hover(ids []string) {
	s.mu.Lock()
	s.hovered = make(idSet, len(ids))
	for _, id := range ids {
		if _, ok := s.loaded[id]; ok {
			s.hovered[id] = struct{}{}
		}
	}
	msg := s.stampLocked()
	s.mu.Unlock()
	s.publish(msg)
}

// ClearHover empties the hovered set.
func (s *Store) ClearHover() { s.Hover(nil) }

// Clear empties the selection.
func (s *Store) Clear() {
	s.mu.Lock()
	s.selected = make(idSet)
	msg := s.stampLocked()
	s.mu.Unlock()
	s.publish(msg)
}

// Selected returns the selected ids, sorted.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected.sorted()
}

// Hovered returns the hovered ids, sorted.
func (s *Store) Hovered() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hovered.sorted()
}

// IsSelected reports whether id is selected.
func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

func (s *Store) stampLocked() Message {
	s.lastWrite = s.now()
	return Message{
		Origin:   s.origin,
		Selected: s.selected.sorted(),
		Hovered:  s.hovered.sorted(),
		SentAt:   s.lastWrite,
	}
}

func (s *Store) publish(m Message) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(m); err != nil {
		s.logger.Warn().Err(err).Msg("publish selection")
	}
}

// receive applies a foreign message. Own messages and messages older than
// the last write are ignored; unknown ids are dropped.
func (s *Store) receive(m Message) {
	if m.Origin == s.origin || m.Origin == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.SentAt.Before(s.lastWrite) {
		s.logger.Debug().Str("origin", m.Origin).Msg("stale selection message ignored")
		return
	}
	selected := make(idSet, len(m.Selected))
	dropped := 0
	for _, id := range m.Selected {
		if _, ok := s.loaded[id]; ok {
			selected[id] = struct{}{}
		} else {
			dropped++
		}
	}
	hovered := make(idSet, len(m.Hovered))
	for _, id := range m.Hovered {
		if _, ok := s.loaded[id]; ok {
			hovered[id] = struct{}{}
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Str("origin", m.Origin).Msg("unknown ids in selection message")
	}
	s.selected, s.hovered = selected, hovered
	s.lastWrite = m.SentAt
}
