// Package urlstate maps filter selections and a date range to and from a
// compact query string.
//
// Each dimension has its own parameter carrying comma-joined short codes in
// canonical order. Decoding never fails: unknown codes are dropped and a
// missing, unparseable or inverted range falls back to the default range.
package urlstate

import (
	"net/url"
	"strings"
	"time"

	"github.com/Meeting-BaaS/status-sub000/internal/filter"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// Query parameter names.
const (
	ParamStart = "startDate"
	ParamEnd   = "endDate"
)

type dimensionCodes struct {
	param  string
	dim    model.Dimension
	codes  map[string]string // value -> code
	values map[string]string // code -> value
}

func newDimensionCodes(param string, d model.Dimension, codes map[string]string) dimensionCodes {
	values := make(map[string]string, len(codes))
	for v, c := range codes {
		values[c] = v
	}
	return dimensionCodes{param: param, dim: d, codes: codes, values: values}
}

// dimensionTable is ordered by parameter position in encoded output.
var dimensionTable = []dimensionCodes{
	newDimensionCodes("pf", model.DimensionPlatform, map[string]string{
		"zoom": "z", "google_meet": "g", "teams": "t", "unknown": "u",
	}),
	newDimensionCodes("st", model.DimensionStatusType, map[string]string{
		"success": "s", "error": "e", "warning": "w", "pending": "p",
	}),
	newDimensionCodes("ur", model.DimensionUserReport, map[string]string{
		"open": "o", "in_progress": "i", "closed": "c", "none": "n",
	}),
	newDimensionCodes("ec", model.DimensionCategory, map[string]string{
		"capacity_error":      "ca",
		"auth_error":          "au",
		"connection_error":    "co",
		"meeting_access":      "ma",
		"recording_error":     "re",
		"transcription_error": "tr",
		"api_error":           "ap",
		"stalled":             "st",
		"internal_error":      "in",
		"unknown":             "un",
		"none":                "no",
	}),
	newDimensionCodes("ep", model.DimensionPriority, map[string]string{
		"critical": "c", "high": "h", "medium": "m", "low": "l", "none": "n",
	}),
}

// ParamOf returns the query parameter used for d.
func ParamOf(d model.Dimension) string {
	for _, dc := range dimensionTable {
		if dc.dim == d {
			return dc.param
		}
	}
	return ""
}

// State is the shareable view state.
type State struct {
	Filters model.FilterValues `json:"filters"`
	Range   model.DateRange    `json:"range"`
}

// Codec encodes and decodes State. The clock determines the default range.
type Codec struct {
	now func() time.Time
}

// NewCodec returns a codec using now, or time.Now when now is nil.
func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{now: now}
}

// DefaultRange covers the last model.DefaultRangeDays days through the end
// of today, UTC.
func (c *Codec) DefaultRange() model.DateRange {
	y, m, d := c.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return model.DateRange{
		Start: today.AddDate(0, 0, -(model.DefaultRangeDays - 1)),
		End:   endOfDay(today),
	}
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Encode renders st as a query string without the leading '?'. Values that
// are not options of their dimension are left out, as are empty dimensions.
// A zero range is omitted.
func (c *Codec) Encode(st State) string {
	var parts []string
	if !st.Range.IsZero() {
		parts = append(parts,
			ParamStart+"="+url.QueryEscape(st.Range.Start.UTC().Format(time.RFC3339Nano)),
			ParamEnd+"="+url.QueryEscape(st.Range.End.UTC().Format(time.RFC3339Nano)),
		)
	}
	for _, dc := range dimensionTable {
		values := filter.Sanitize(dc.dim, st.Filters.Get(dc.dim))
		if len(values) == 0 {
			continue
		}
		codes := make([]string, len(values))
		for i, v := range values {
			codes[i] = dc.codes[v]
		}
		parts = append(parts, dc.param+"="+strings.Join(codes, ","))
	}
	return strings.Join(parts, "&")
}

// Decode parses a query string, with or without a leading '?'.
func (c *Codec) Decode(query string) State {
	// ParseQuery keeps every well-formed pair even when it reports an error.
	values, _ := url.ParseQuery(strings.TrimPrefix(query, "?"))
	return c.DecodeValues(values)
}

// DecodeValues decodes already parsed query parameters. Repeated parameters
// are merged.
func (c *Codec) DecodeValues(values url.Values) State {
	var st State
	for _, dc := range dimensionTable {
		var decoded []string
		for _, raw := range values[dc.param] {
			for _, tok := range strings.Split(raw, ",") {
				tok = strings.TrimSpace(tok)
				if v, ok := dc.values[tok]; ok {
					decoded = append(decoded, v)
				} else if dc.dim.IsOption(tok) {
					decoded = append(decoded, tok)
				}
			}
		}
		st.Filters = st.Filters.With(dc.dim, filter.Sanitize(dc.dim, decoded))
	}

	start, okStart := parseDate(values.Get(ParamStart), false)
	end, okEnd := parseDate(values.Get(ParamEnd), true)
	rng := model.DateRange{Start: start, End: end}
	if !okStart || !okEnd || end.Before(start) || rng.Days() > model.MaxRangeDays {
		rng = c.DefaultRange()
	}
	st.Range = rng
	return st
}

// parseDate accepts RFC 3339 timestamps and bare dates. A bare end date
// means the last instant of that day. Results outside years 1..9999 are
// rejected so that every accepted value re-encodes to a parseable one.
func parseDate(s string, end bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		day, derr := time.Parse(time.DateOnly, s)
		if derr != nil {
			return time.Time{}, false
		}
		t = day
		if end {
			t = endOfDay(day)
		}
	}
	t = t.UTC()
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}
