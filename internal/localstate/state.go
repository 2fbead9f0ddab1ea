// Package localstate persists per-client preferences as independent keyed
// blobs. Each blob falls back to its own default when missing or malformed;
// nothing read from storage is ever fatal.
package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/filter"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// Storage keys.
const (
	KeyPageSize           = "pageSize"
	KeySelectedErrorTypes = "selectedErrorTypes"
	KeyUIPreferences      = "uiPreferences"
	KeyFilters            = "filters"
)

// ErrInvalidPageSize is returned by SetPageSize for sizes outside
// model.PageSizes.
var ErrInvalidPageSize = errors.New("localstate: invalid page size")

// UIPreferences holds error table sort order and open accordion sections.
type UIPreferences struct {
	SortColumn     string   `json:"sortColumn" validate:"omitempty,oneof=type value message category priority count"`
	SortDescending bool     `json:"sortDescending"`
	OpenSections   []string `json:"openSections" validate:"omitempty,dive,required,max=64"`
}

// DefaultUIPreferences sorts the error table by count, largest first.
func DefaultUIPreferences() UIPreferences {
	return UIPreferences{SortColumn: "count", SortDescending: true, OpenSections: []string{}}
}

// Store reads and writes the typed blobs over a model.StateStorage.
type Store struct {
	storage  model.StateStorage
	validate *validator.Validate
	logger   zerolog.Logger
}

// New returns a Store over storage.
func New(storage model.StateStorage, logger zerolog.Logger) *Store {
	return &Store{
		storage:  storage,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// read returns the raw blob for key. Read errors are logged and reported as
// missing.
func (s *Store) read(key string) (string, bool) {
	v, ok, err := s.storage.GetState(key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("read local state")
		return "", false
	}
	return v, ok
}

func (s *Store) discard(key string, err error) {
	s.logger.Debug().Err(err).Str("key", key).Msg("discarding malformed local state")
}

func (s *Store) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.storage.PutState(key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// PageSize returns the persisted page size, or model.DefaultPageSize.
func (s *Store) PageSize() int {
	raw, ok := s.read(KeyPageSize)
	if !ok {
		return model.DefaultPageSize
	}
	var n int
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &n); err != nil {
		s.discard(KeyPageSize, err)
		return model.DefaultPageSize
	}
	if !slices.Contains(model.PageSizes, n) {
		s.discard(KeyPageSize, fmt.Errorf("%d not allowed", n))
		return model.DefaultPageSize
	}
	return n
}

// SetPageSize persists n, which must be one of model.PageSizes.
func (s *Store) SetPageSize(n int) error {
	if !slices.Contains(model.PageSizes, n) {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	return s.write(KeyPageSize, n)
}

// cleanTypes trims entries, drops empties and removes duplicates, keeping
// first-seen order.
func cleanTypes(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SelectedErrorTypes returns the persisted error value selection.
func (s *Store) SelectedErrorTypes() []string {
	raw, ok := s.read(KeySelectedErrorTypes)
	if !ok {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		s.discard(KeySelectedErrorTypes, err)
		return []string{}
	}
	return cleanTypes(values)
}

// SetSelectedErrorTypes persists values after cleaning them.
func (s *Store) SetSelectedErrorTypes(values []string) error {
	return s.write(KeySelectedErrorTypes, cleanTypes(values))
}

// PruneSelectedErrorTypes drops persisted error values that are not in
// loaded and writes the result back when anything changed.
func (s *Store) PruneSelectedErrorTypes(loaded []string) ([]string, error) {
	current := s.SelectedErrorTypes()
	keep := make([]string, 0, len(current))
	for _, v := range current {
		if slices.Contains(loaded, v) {
			keep = append(keep, v)
		}
	}
	if len(keep) == len(current) {
		return keep, nil
	}
	return keep, s.SetSelectedErrorTypes(keep)
}

// UIPreferences returns the persisted preferences, or the defaults.
func (s *Store) UIPreferences() UIPreferences {
	raw, ok := s.read(KeyUIPreferences)
	if !ok {
		return DefaultUIPreferences()
	}
	var p UIPreferences
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.discard(KeyUIPreferences, err)
		return DefaultUIPreferences()
	}
	if err := s.validate.Struct(p); err != nil {
		s.discard(KeyUIPreferences, err)
		return DefaultUIPreferences()
	}
	if p.SortColumn == "" {
		p.SortColumn = DefaultUIPreferences().SortColumn
	}
	if p.OpenSections == nil {
		p.OpenSections = []string{}
	}
	return p
}

// SetUIPreferences validates and persists p.
func (s *Store) SetUIPreferences(p UIPreferences) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("ui preferences: %w", err)
	}
	return s.write(KeyUIPreferences, p)
}

// Filters returns the persisted filter selection with unknown values
// dropped.
func (s *Store) Filters() model.FilterValues {
	raw, ok := s.read(KeyFilters)
	if !ok {
		return model.FilterValues{}
	}
	var v model.FilterValues
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.discard(KeyFilters, err)
		return model.FilterValues{}
	}
	return filter.Normalize(v)
}

// SetFilters persists v after dropping unknown values.
func (s *Store) SetFilters(v model.FilterValues) error {
	return s.write(KeyFilters, filter.Normalize(v))
}

// Bind hydrates fs from the persisted filters and persists every later
// change of fs. The returned func stops persisting.
func (s *Store) Bind(fs *filter.Store) (cancel func()) {
	fs.Hydrate(s.Filters())
	return fs.OnChange(func(v model.FilterValues) {
		if err := s.SetFilters(v); err != nil {
			s.logger.Warn().Err(err).Msg("persist filters")
		}
	})
}
