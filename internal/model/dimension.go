package model

// Dimension identifies one of the five filter axes.
type Dimension string

const (
	DimensionPlatform   Dimension = "platform"
	DimensionStatusType Dimension = "statusType"
	DimensionUserReport Dimension = "userReportedStatus"
	DimensionCategory   Dimension = "errorCategory"
	DimensionPriority   Dimension = "errorPriority"
)

// Dimensions lists every filter dimension in canonical order.
var Dimensions = []Dimension{
	DimensionPlatform, DimensionStatusType, DimensionUserReport,
	DimensionCategory, DimensionPriority,
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionPlatform, DimensionStatusType, DimensionUserReport,
		DimensionCategory, DimensionPriority:
		return true
	}
	return false
}

// Options returns the canonical option list for d. The returned slice is a
// fresh copy. Unknown dimensions have no options.
func (d Dimension) Options() []string {
	switch d {
	case DimensionPlatform:
		return stringsOf(Platforms)
	case DimensionStatusType:
		return stringsOf(StatusTypes)
	case DimensionUserReport:
		return append(stringsOf(ReportStatuses), ReportNone)
	case DimensionCategory:
		return stringsOf(Categories)
	case DimensionPriority:
		return stringsOf(Priorities)
	}
	return nil
}

// IsOption reports whether v is in d's canonical option list.
func (d Dimension) IsOption(v string) bool {
	for _, opt := range d.Options() {
		if opt == v {
			return true
		}
	}
	return false
}

// ValueOf returns r's value along d.
func (d Dimension) ValueOf(r Record) string {
	switch d {
	case DimensionPlatform:
		return string(r.Platform)
	case DimensionStatusType:
		return string(r.Class.Type)
	case DimensionUserReport:
		if r.Report == "" {
			return ReportNone
		}
		return string(r.Report)
	case DimensionCategory:
		return string(r.Class.Category)
	case DimensionPriority:
		return string(r.Class.Priority)
	}
	return ""
}

func stringsOf[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
