package aggregate

import (
	"sort"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// ErrorGroup holds every error or warning record sharing one status value.
// Type, Category and Priority are taken from the first record of the group.
type ErrorGroup struct {
	Value    string
	Message  string
	Type     model.StatusType
	Category model.Category
	Priority model.Priority
	Records  []model.Record
}

// ErrorGroups is the result of FilterAndGroupErrors.
type ErrorGroups struct {
	ByValue map[string]*ErrorGroup
	// Values lists the keys of ByValue in first-seen order.
	Values []string
	// Records is the error and warning subset, in input order.
	Records []model.Record
}

// FilterAndGroupErrors selects error and warning records and groups them by
// status value in a single pass.
func FilterAndGroupErrors(records []model.Record) ErrorGroups {
	g := ErrorGroups{
		ByValue: make(map[string]*ErrorGroup),
		Values:  []string{},
		Records: []model.Record{},
	}
	for _, r := range records {
		if !r.Class.Type.IsProblem() {
			continue
		}
		g.Records = append(g.Records, r)
		grp, ok := g.ByValue[r.Status.Value]
		if !ok {
			grp = &ErrorGroup{
				Value:    r.Status.Value,
				Type:     r.Class.Type,
				Category: r.Class.Category,
				Priority: r.Class.Priority,
			}
			g.ByValue[r.Status.Value] = grp
			g.Values = append(g.Values, r.Status.Value)
		}
		if grp.Message == "" {
			grp.Message = r.Status.Message
		}
		grp.Records = append(grp.Records, r)
	}
	return g
}

// ErrorRow is one row of the error table.
type ErrorRow struct {
	Type               model.StatusType       `json:"type"`
	Value              string                 `json:"value"`
	Message            string                 `json:"message"`
	Category           model.Category         `json:"category"`
	Priority           model.Priority         `json:"priority"`
	PlatformsBreakdown map[model.Platform]int `json:"platformsBreakdown"`
	Count              int                    `json:"count"`
}

// ErrorTable builds one row per distinct status value, sorted by count
// descending then value ascending. Message falls back to the value when no
// record carried one.
func ErrorTable(g ErrorGroups) []ErrorRow {
	rows := make([]ErrorRow, 0, len(g.ByValue))
	for _, value := range g.Values {
		grp := g.ByValue[value]
		breakdown := make(map[model.Platform]int, len(model.Platforms))
		for _, p := range model.Platforms {
			breakdown[p] = 0
		}
		for _, r := range grp.Records {
			breakdown[r.Platform]++
		}
		msg := grp.Message
		if msg == "" {
			msg = grp.Value
		}
		rows = append(rows, ErrorRow{
			Type:               grp.Type,
			Value:              grp.Value,
			Message:            msg,
			Category:           grp.Category,
			Priority:           grp.Priority,
			PlatformsBreakdown: breakdown,
			Count:              len(grp.Records),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Value < rows[j].Value
	})
	return rows
}
