package urlstate

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

var fixedNow = time.Date(2025, 6, 20, 15, 4, 5, 0, time.FixedZone("CEST", 2*3600))

func testCodec() *Codec {
	return NewCodec(func() time.Time { return fixedNow })
}

func requireSameState(t *testing.T, want, got State) {
	t.Helper()
	require.Equal(t, want.Filters, got.Filters)
	require.True(t, want.Range.Start.Equal(got.Range.Start), "start %v != %v", want.Range.Start, got.Range.Start)
	require.True(t, want.Range.End.Equal(got.Range.End), "end %v != %v", want.Range.End, got.Range.End)
}

func TestDefaultRange(t *testing.T) {
	r := testCodec().DefaultRange()
	assert.Equal(t, time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 6, 20, 23, 59, 59, 999999999, time.UTC), r.End)
}

func TestEncode(t *testing.T) {
	st := State{
		Filters: model.FilterValues{
			Platforms:     []string{"teams", "zoom", "teams"},
			ErrorCategory: []string{"stalled", "bogus"},
			UserReports:   []string{"none"},
		},
		Range: model.DateRange{
			Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 2, 23, 59, 59, 999999999, time.UTC),
		},
	}
	got := testCodec().Encode(st)
	assert.Equal(t,
		"startDate=2025-06-01T00%3A00%3A00Z&endDate=2025-06-02T23%3A59%3A59.999999999Z&pf=z,t&ur=n&ec=st",
		got)
}

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, "", testCodec().Encode(State{}))
}

func TestDecode(t *testing.T) {
	c := testCodec()
	st := c.Decode("?pf=t,z,x,t&pf=g&ep=c,zz&ec=au&startDate=2025-05-01&endDate=2025-05-03")

	assert.Equal(t, []string{"zoom", "google_meet", "teams"}, st.Filters.Platforms)
	assert.Equal(t, []string{"critical"}, st.Filters.ErrorPriority)
	assert.Equal(t, []string{"auth_error"}, st.Filters.ErrorCategory)
	assert.Nil(t, st.Filters.StatusTypes)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), st.Range.Start)
	assert.Equal(t, time.Date(2025, 5, 3, 23, 59, 59, 999999999, time.UTC), st.Range.End)
}

func TestDecodeAcceptsRawValues(t *testing.T) {
	st := testCodec().Decode("st=error,w&ur=in_progress")
	assert.Equal(t, []string{"error", "warning"}, st.Filters.StatusTypes)
	assert.Equal(t, []string{"in_progress"}, st.Filters.UserReports)
}

func TestDecodeRangeFallback(t *testing.T) {
	c := testCodec()
	def := c.DefaultRange()

	tests := map[string]string{
		"missing":     "pf=z",
		"only start":  "startDate=2025-01-01",
		"garbage":     "startDate=yesterday&endDate=today",
		"inverted":    "startDate=2025-02-01&endDate=2025-01-01",
		"bad escape":  "startDate=%zz&endDate=2025-01-01",
		"out of year": "startDate=0001-01-01T00:00:00%2B05:00&endDate=2025-01-01",
		"whole era":   "startDate=0001-01-01&endDate=9999-12-31",
		"too wide":    "startDate=2024-01-01&endDate=2025-01-01",
	}
	for name, q := range tests {
		t.Run(name, func(t *testing.T) {
			st := c.Decode(q)
			assert.Equal(t, def, st.Range)
		})
	}
}

func TestDecodeKeepsMaxRange(t *testing.T) {
	st := testCodec().Decode("startDate=2024-01-01&endDate=2024-12-31")
	assert.Equal(t, model.MaxRangeDays, st.Range.Days())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), st.Range.Start)
}

func TestDecodeConvertsToUTC(t *testing.T) {
	q := "startDate=" + url.QueryEscape("2025-03-01T10:00:00+02:00") + "&endDate=2025-03-01T12:00:00.5Z"
	st := testCodec().Decode(q)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), st.Range.Start)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 500000000, time.UTC), st.Range.End)
}

func TestRoundTrip(t *testing.T) {
	c := testCodec()
	st := State{
		Filters: model.FilterValues{
			Platforms:     []string{"zoom"},
			StatusTypes:   []string{"error", "warning"},
			UserReports:   []string{"open", "none"},
			ErrorCategory: []string{"capacity_error", "none"},
			ErrorPriority: []string{"high", "none"},
		},
		Range: model.DateRange{
			Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 6, 14, 23, 59, 59, 999999999, time.UTC),
		},
	}
	requireSameState(t, st, c.Decode(c.Encode(st)))
}

var decodeSeeds = []string{
	"",
	"?",
	"pf=z,z,g&st=e",
	"pf=&st=,,,&ur=n",
	"ec=ca,au,co,ma,re,tr,ap,st,in,un,no&ep=c,h,m,l,n",
	"startDate=2025-01-01&endDate=2025-01-31",
	"startDate=2025-01-31&endDate=2025-01-01",
	"startDate=2025-01-01T05:06:07.123456789Z&endDate=2025-01-01T05:06:07.123456789Z",
	"startDate=9999-12-31&endDate=9999-12-31",
	"startDate=0001-01-01&endDate=9999-12-31",
	"a=b;c=d&pf=t",
	"%gh&pf=u",
	"pf=z&pf=t&pf=zoom",
}

func TestDecodeIsIdempotent(t *testing.T) {
	c := testCodec()
	for _, s := range decodeSeeds {
		once := c.Decode(s)
		requireSameState(t, once, c.Decode(c.Encode(once)))
	}
}

func FuzzDecode(f *testing.F) {
	for _, s := range decodeSeeds {
		f.Add(s)
	}
	c := testCodec()
	f.Fuzz(func(t *testing.T, s string) {
		once := c.Decode(s)
		requireSameState(t, once, c.Decode(c.Encode(once)))
	})
}

func TestParamOf(t *testing.T) {
	assert.Equal(t, "ep", ParamOf(model.DimensionPriority))
	assert.Equal(t, "", ParamOf(model.Dimension("nope")))
}
