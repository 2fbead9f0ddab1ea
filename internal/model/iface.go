package model

import (
	"context"
	"time"
)

// FilterValues carries the selected values of every filter dimension.
// An empty slice leaves that dimension unconstrained.
type FilterValues struct {
	Platforms     []string `json:"platform,omitempty"`
	StatusTypes   []string `json:"statusType,omitempty"`
	UserReports   []string `json:"userReportedStatus,omitempty"`
	ErrorCategory []string `json:"errorCategory,omitempty"`
	ErrorPriority []string `json:"errorPriority,omitempty"`
}

// Get returns the values selected for d.
func (f FilterValues) Get(d Dimension) []string {
	switch d {
	case DimensionPlatform:
		return f.Platforms
	case DimensionStatusType:
		return f.StatusTypes
	case DimensionUserReport:
		return f.UserReports
	case DimensionCategory:
		return f.ErrorCategory
	case DimensionPriority:
		return f.ErrorPriority
	}
	return nil
}

// With returns a copy of f with d set to values.
func (f FilterValues) With(d Dimension, values []string) FilterValues {
	switch d {
	case DimensionPlatform:
		f.Platforms = values
	case DimensionStatusType:
		f.StatusTypes = values
	case DimensionUserReport:
		f.UserReports = values
	case DimensionCategory:
		f.ErrorCategory = values
	case DimensionPriority:
		f.ErrorPriority = values
	}
	return f
}

// RecordQuery is the paginated fetch contract shared by the upstream service
// and the local record store.
type RecordQuery struct {
	Offset  int          `json:"offset" validate:"gte=0"`
	Limit   int          `json:"limit" validate:"gte=1,lte=1000"`
	Start   time.Time    `json:"start_date" validate:"required"`
	End     time.Time    `json:"end_date" validate:"required,gtefield=Start"`
	Filters FilterValues `json:"filters"`
}

// RecordPage is one page of a RecordQuery result. Total is the number of
// matching records across all pages.
type RecordPage struct {
	Records []BotRecord `json:"records"`
	Total   int         `json:"total"`
	Offset  int         `json:"offset"`
	Limit   int         `json:"limit"`
}

// RecordFetcher is implemented by anything that can answer a RecordQuery.
type RecordFetcher interface {
	FetchPage(ctx context.Context, q RecordQuery) (RecordPage, error)
}

// StateStorage persists small keyed blobs of client state.
// Get reports ok=false when the key has never been written.
type StateStorage interface {
	GetState(key string) (value string, ok bool, err error)
	PutState(key, value string) error
}
