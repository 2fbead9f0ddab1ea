// Package aggregate computes distributions, cross-tabulations, timelines and
// histograms over classified bot records.
//
// Every function is pure: it reads the records it is given and returns fresh
// values. Empty input yields empty, non-nil results. Callers that re-render
// often should memoize on (record set, options); see query.Orchestrator.
package aggregate

import (
	"sort"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// DistributionEntry is one bucket of a single-dimension distribution.
// Percentage is relative to the total of the distribution it belongs to.
type DistributionEntry struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PlatformEntry is a platform bucket with per-status-type sub-counts.
type PlatformEntry struct {
	DistributionEntry
	Platform     model.Platform           `json:"platform"`
	StatusCounts map[model.StatusType]int `json:"statusCounts"`
}

// ErrorEntry is one status value bucket of the error distribution.
type ErrorEntry struct {
	DistributionEntry
	Type     model.StatusType `json:"type"`
	Category model.Category   `json:"category"`
	Priority model.Priority   `json:"priority"`
}

// percentage returns count as a percentage of total, and exactly 0 when
// total is 0.
func percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) * 100 / float64(total)
}

func newStatusCounts() map[model.StatusType]int {
	m := make(map[model.StatusType]int, len(model.StatusTypes))
	for _, t := range model.StatusTypes {
		m[t] = 0
	}
	return m
}

// PlatformDistribution groups records by platform. Entries are sorted by
// count descending; ties are broken by platform name ascending.
func PlatformDistribution(records []model.Record) []PlatformEntry {
	byPlatform := make(map[model.Platform]*PlatformEntry)
	for _, r := range records {
		e, ok := byPlatform[r.Platform]
		if !ok {
			e = &PlatformEntry{
				DistributionEntry: DistributionEntry{Key: string(r.Platform)},
				Platform:          r.Platform,
				StatusCounts:      newStatusCounts(),
			}
			byPlatform[r.Platform] = e
		}
		e.Count++
		e.StatusCounts[r.Class.Type]++
	}

	out := make([]PlatformEntry, 0, len(byPlatform))
	for _, e := range byPlatform {
		e.Percentage = percentage(e.Count, len(records))
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// ErrorDistribution groups error and warning records by status value.
// Percentages are relative to the number of error and warning records.
func ErrorDistribution(records []model.Record) []ErrorEntry {
	return ErrorDistributionOf(FilterAndGroupErrors(records))
}

// ErrorDistributionOf builds the error distribution from already grouped
// errors. Entries are sorted by count descending, then value ascending.
func ErrorDistributionOf(g ErrorGroups) []ErrorEntry {
	total := len(g.Records)
	out := make([]ErrorEntry, 0, len(g.ByValue))
	for _, value := range g.Values {
		grp := g.ByValue[value]
		out = append(out, ErrorEntry{
			DistributionEntry: DistributionEntry{
				Key:        value,
				Count:      len(grp.Records),
				Percentage: percentage(len(grp.Records), total),
			},
			Type:     grp.Type,
			Category: grp.Category,
			Priority: grp.Priority,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// DimensionDistribution counts records by their value along d. Every option
// of d appears in canonical order, including those with a zero count.
func DimensionDistribution(records []model.Record, d model.Dimension) []DistributionEntry {
	counts := make(map[string]int)
	for _, r := range records {
		counts[d.ValueOf(r)]++
	}
	opts := d.Options()
	out := make([]DistributionEntry, 0, len(opts))
	for _, opt := range opts {
		out = append(out, DistributionEntry{
			Key:        opt,
			Count:      counts[opt],
			Percentage: percentage(counts[opt], len(records)),
		})
	}
	return out
}
