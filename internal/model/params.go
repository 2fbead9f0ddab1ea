package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query contract parameter names.
const (
	ParamOffset    = "offset"
	ParamLimit     = "limit"
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
)

// Values encodes q as query parameters. Filter values are comma-joined
// under the dimension name.
func (q RecordQuery) Values() url.Values {
	v := url.Values{}
	v.Set(ParamOffset, strconv.Itoa(q.Offset))
	v.Set(ParamLimit, strconv.Itoa(q.Limit))
	v.Set(ParamStartDate, q.Start.UTC().Format(time.RFC3339Nano))
	v.Set(ParamEndDate, q.End.UTC().Format(time.RFC3339Nano))
	for _, d := range Dimensions {
		if values := q.Filters.Get(d); len(values) > 0 {
			v.Set(string(d), strings.Join(values, ","))
		}
	}
	return v
}

// ParseRecordQuery decodes query parameters produced by Values. Missing
// offset and limit take 0 and DefaultFetchLimit; missing dates are left
// zero for Validate to reject. Bare dates are accepted, an end date
// meaning the end of that day.
func ParseRecordQuery(v url.Values) (RecordQuery, error) {
	q := RecordQuery{Limit: DefaultFetchLimit}
	var err error
	if s := v.Get(ParamOffset); s != "" {
		if q.Offset, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("offset: %w", err)
		}
	}
	if s := v.Get(ParamLimit); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("limit: %w", err)
		}
	}
	if q.Start, err = parseQueryTime(v.Get(ParamStartDate), false); err != nil {
		return q, fmt.Errorf("start_date: %w", err)
	}
	if q.End, err = parseQueryTime(v.Get(ParamEndDate), true); err != nil {
		return q, fmt.Errorf("end_date: %w", err)
	}
	for _, d := range Dimensions {
		var values []string
		for _, raw := range v[string(d)] {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					values = append(values, s)
				}
			}
		}
		q.Filters = q.Filters.With(d, values)
	}
	return q, nil
}

func parseQueryTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}
