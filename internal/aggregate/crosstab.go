package aggregate

import "github.com/Meeting-BaaS/status-sub000/internal/model"

// CrossTabRow holds the records of one primary-dimension value, split by
// secondary-dimension value.
type CrossTabRow struct {
	Key   string                    `json:"key"`
	Cells map[string][]model.Record `json:"-"`
	Total int                       `json:"total"`
}

// Count returns the number of records in the row's cell for column.
func (r CrossTabRow) Count(column string) int {
	return len(r.Cells[column])
}

// CrossTab is a two-dimensional grouping with row, column and grand totals.
type CrossTab struct {
	Primary      model.Dimension `json:"primary"`
	Secondary    model.Dimension `json:"secondary"`
	Columns      []string        `json:"columns"`
	Rows         []CrossTabRow   `json:"rows"`
	ColumnTotals map[string]int  `json:"columnTotals"`
	GrandTotal   int             `json:"grandTotal"`
}

// CrossTabulate groups records by primary × secondary. Rows and columns
// appear in the dimensions' canonical option order and only for values that
// occur. primary and secondary must differ; this is not checked.
func CrossTabulate(records []model.Record, primary, secondary model.Dimension) CrossTab {
	ct := CrossTab{
		Primary:      primary,
		Secondary:    secondary,
		Columns:      []string{},
		Rows:         []CrossTabRow{},
		ColumnTotals: make(map[string]int),
	}

	cells := make(map[string]map[string][]model.Record)
	for _, r := range records {
		pk, sk := primary.ValueOf(r), secondary.ValueOf(r)
		row, ok := cells[pk]
		if !ok {
			row = make(map[string][]model.Record)
			cells[pk] = row
		}
		row[sk] = append(row[sk], r)
		ct.ColumnTotals[sk]++
		ct.GrandTotal++
	}

	for _, opt := range secondary.Options() {
		if ct.ColumnTotals[opt] > 0 {
			ct.Columns = append(ct.Columns, opt)
		}
	}
	for _, opt := range primary.Options() {
		row, ok := cells[opt]
		if !ok {
			continue
		}
		total := 0
		for _, subset := range row {
			total += len(subset)
		}
		ct.Rows = append(ct.Rows, CrossTabRow{Key: opt, Cells: row, Total: total})
	}
	return ct
}
