package aggregate

import "github.com/Meeting-BaaS/status-sub000/internal/model"

// Options parameterizes Build.
type Options struct {
	Range     *model.DateRange `json:"range,omitempty"`
	Breakdown model.Dimension  `json:"breakdown,omitempty"`
}

// Report bundles every aggregation over one record set.
type Report struct {
	Total      int                 `json:"total"`
	Platforms  []PlatformEntry     `json:"platforms"`
	Errors     []ErrorEntry        `json:"errors"`
	ErrorTable []ErrorRow          `json:"errorTable"`
	Durations  []HistogramBucket   `json:"durations"`
	Timeline   []TimelineEntry     `json:"timeline"`
	Issues     IssueSummary        `json:"issues"`
	Statuses   []DistributionEntry `json:"statuses"`
}

// Build computes every aggregation, grouping errors once and sharing the
// groups between the error distribution and the error table.
func Build(records []model.Record, opts Options) Report {
	groups := FilterAndGroupErrors(records)
	return Report{
		Total:      len(records),
		Platforms:  PlatformDistribution(records),
		Errors:     ErrorDistributionOf(groups),
		ErrorTable: ErrorTable(groups),
		Durations:  DurationHistogram(records),
		Timeline:   Timeline(records, TimelineOptions{Range: opts.Range, Breakdown: opts.Breakdown}),
		Issues:     IssueReportSummary(records, opts.Range),
		Statuses:   DimensionDistribution(records, model.DimensionStatusType),
	}
}
