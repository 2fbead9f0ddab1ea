package aggregate

import (
	"time"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// TimelineOptions controls Timeline. A nil Range spans the records' own
// date extent. An empty Breakdown disables the per-day breakdown.
type TimelineOptions struct {
	Range     *model.DateRange
	Breakdown model.Dimension
}

// TimelineEntry is one UTC calendar day. When a breakdown is requested,
// Breakdown holds every option of the dimension, so its values sum to Total.
type TimelineEntry struct {
	Date      time.Time      `json:"date"`
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown,omitempty"`
}

// dayOf truncates t to midnight UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daySpan returns the first and last day covered by rng, or by the records
// when rng is nil. ok is false when there is nothing to span.
func daySpan(records []model.Record, rng *model.DateRange) (first, last time.Time, ok bool) {
	if rng != nil && !rng.IsZero() {
		if rng.End.Before(rng.Start) {
			return time.Time{}, time.Time{}, false
		}
		first, last = dayOf(rng.Start), dayOf(rng.End)
	} else {
		if len(records) == 0 {
			return time.Time{}, time.Time{}, false
		}
		lo, hi := records[0].CreatedAt, records[0].CreatedAt
		for _, r := range records[1:] {
			if r.CreatedAt.Before(lo) {
				lo = r.CreatedAt
			}
			if r.CreatedAt.After(hi) {
				hi = r.CreatedAt
			}
		}
		first, last = dayOf(lo), dayOf(hi)
	}
	// Only the most recent MaxRangeDays days get a bucket.
	if floor := last.AddDate(0, 0, -(model.MaxRangeDays - 1)); first.Before(floor) {
		first = floor
	}
	return first, last, true
}

// inRange reports whether r should be counted for rng.
func inRange(r model.Record, rng *model.DateRange) bool {
	return rng == nil || rng.IsZero() || rng.Contains(r.CreatedAt)
}

// Timeline buckets records per UTC day. Days without records are present
// with zero counts; records outside an explicit range are ignored.
func Timeline(records []model.Record, opts TimelineOptions) []TimelineEntry {
	first, last, ok := daySpan(records, opts.Range)
	if !ok {
		return []TimelineEntry{}
	}

	var options []string
	if opts.Breakdown.Valid() {
		options = opts.Breakdown.Options()
	}

	var out []TimelineEntry
	index := make(map[time.Time]int)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		e := TimelineEntry{Date: day}
		if options != nil {
			e.Breakdown = make(map[string]int, len(options))
			for _, opt := range options {
				e.Breakdown[opt] = 0
			}
		}
		index[day] = len(out)
		out = append(out, e)
	}

	for _, r := range records {
		if !inRange(r, opts.Range) {
			continue
		}
		i, ok := index[dayOf(r.CreatedAt)]
		if !ok {
			continue
		}
		out[i].Total++
		if options != nil {
			out[i].Breakdown[opts.Breakdown.ValueOf(r)]++
		}
	}
	return out
}
