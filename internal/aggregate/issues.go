package aggregate

import (
	"time"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// IssueDay is the per-status count of user reports for one UTC day.
type IssueDay struct {
	Date   time.Time                  `json:"date"`
	Counts map[model.ReportStatus]int `json:"counts"`
}

// IssueSummary counts user-reported issues by status.
type IssueSummary struct {
	Total    int                        `json:"total"`
	Counts   map[model.ReportStatus]int `json:"counts"`
	Timeline []IssueDay                 `json:"timeline"`
}

func newReportCounts() map[model.ReportStatus]int {
	m := make(map[model.ReportStatus]int, len(model.ReportStatuses))
	for _, s := range model.ReportStatuses {
		m[s] = 0
	}
	return m
}

// IssueReportSummary counts records carrying a user report, overall and per
// day. The timeline spans rng when given, else the reported records' extent.
func IssueReportSummary(records []model.Record, rng *model.DateRange) IssueSummary {
	reported := make([]model.Record, 0)
	for _, r := range records {
		if r.Report != "" && inRange(r, rng) {
			reported = append(reported, r)
		}
	}

	summary := IssueSummary{
		Counts:   newReportCounts(),
		Timeline: []IssueDay{},
	}

	first, last, ok := daySpan(reported, rng)
	index := make(map[time.Time]int)
	if ok {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			index[day] = len(summary.Timeline)
			summary.Timeline = append(summary.Timeline, IssueDay{Date: day, Counts: newReportCounts()})
		}
	}

	for _, r := range reported {
		summary.Total++
		summary.Counts[r.Report]++
		if i, ok := index[dayOf(r.CreatedAt)]; ok {
			summary.Timeline[i].Counts[r.Report]++
		}
	}
	return summary
}
