package aggregate

import (
	"math"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// durationBuckets partitions [0, ∞) seconds. Each bucket is [min, max); the
// last one has no upper bound.
var durationBuckets = []struct {
	label string
	min   float64
	max   float64 // 0 = unbounded
}{
	{"<1m", 0, 60},
	{"1-5m", 60, 300},
	{"5-15m", 300, 900},
	{"15-30m", 900, 1800},
	{"30-60m", 1800, 3600},
	{"1-2h", 3600, 7200},
	{"2h+", 7200, 0},
}

// HistogramBucket is one duration bucket. MaxSeconds is nil for the open
// last bucket.
type HistogramBucket struct {
	Label      string   `json:"label"`
	MinSeconds float64  `json:"minSeconds"`
	MaxSeconds *float64 `json:"maxSeconds"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

// bucketIndex returns the bucket for a duration in seconds. Negative and NaN
// durations count as zero.
func bucketIndex(seconds float64) int {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	for i, b := range durationBuckets {
		if b.max == 0 || seconds < b.max {
			return i
		}
	}
	return len(durationBuckets) - 1
}

// DurationHistogram counts records per duration bucket. Every bucket is
// returned, in ascending order, even when empty.
func DurationHistogram(records []model.Record) []HistogramBucket {
	counts := make([]int, len(durationBuckets))
	for _, r := range records {
		counts[bucketIndex(r.Duration)]++
	}

	out := make([]HistogramBucket, len(durationBuckets))
	for i, b := range durationBuckets {
		out[i] = HistogramBucket{
			Label:      b.label,
			MinSeconds: b.min,
			Count:      counts[i],
			Percentage: percentage(counts[i], len(records)),
		}
		if b.max != 0 {
			upper := b.max
			out[i].MaxSeconds = &upper
		}
	}
	return out
}
