package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meeting-BaaS/status-sub000/internal/aggregate"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
	"github.com/Meeting-BaaS/status-sub000/internal/query"
	"github.com/Meeting-BaaS/status-sub000/internal/urlstate"
)

// Extra query parameters understood next to the URL state.
const (
	paramView      = "view"
	paramBreakdown = "breakdown"
	paramPrimary   = "primary"
	paramSecondary = "secondary"
	paramRefresh   = "refresh"
)

// viewState decodes the URL state of the request. When the query names no
// filter dimension, the shared filter store supplies the filters.
func (s *Server) viewState(c *gin.Context) urlstate.State {
	values := c.Request.URL.Query()
	st := s.deps.Codec.DecodeValues(values)
	for _, d := range model.Dimensions {
		if values.Has(urlstate.ParamOf(d)) {
			return st
		}
	}
	st.Filters = s.deps.Filters.Snapshot()
	return st
}

func recordQuery(st urlstate.State) model.RecordQuery {
	return model.RecordQuery{Start: st.Range.Start, End: st.Range.End, Filters: st.Filters}
}

func parseDimension(c *gin.Context, param string, required bool) (model.Dimension, error) {
	raw := c.Query(param)
	if raw == "" {
		if required {
			return "", fmt.Errorf("%s is required", param)
		}
		return "", nil
	}
	d := model.Dimension(raw)
	if !d.Valid() {
		return "", fmt.Errorf("%s: unknown dimension %q", param, raw)
	}
	return d, nil
}

func (s *Server) handleBots(c *gin.Context) {
	q, err := model.ParseRecordQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := q.Validate(); err != nil {
		s.fail(c, err)
		return
	}

	var page model.RecordPage
	if c.Query(paramRefresh) != "" {
		page, err = s.deps.Queries.Refresh(c.Request.Context(), q)
	} else {
		page, err = s.deps.Queries.Get(c.Request.Context(), query.ParseViewKind(c.Query(paramView)), q)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "state": s.deps.Queries.State(q)})
}

func (s *Server) handleReport(c *gin.Context) {
	breakdown, err := parseDimension(c, paramBreakdown, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st := s.viewState(c)
	kind := query.ParseViewKind(c.Query(paramView))
	q := recordQuery(st)

	rng := st.Range
	report, ds, err := s.deps.Queries.Report(c.Request.Context(), kind, q, aggregate.Options{Range: &rng, Breakdown: breakdown})
	if err != nil {
		s.fail(c, err)
		return
	}

	ids := make([]string, len(ds.Records))
	for i, r := range ds.Records {
		ids[i] = r.UUID
	}
	s.deps.Selection.SetLoaded(ids)

	values := make([]string, 0, len(report.ErrorTable))
	for _, row := range report.ErrorTable {
		values = append(values, row.Value)
	}
	if _, err := s.deps.Prefs.PruneSelectedErrorTypes(values); err != nil {
		s.logger.Warn().Err(err).Msg("prune selected error types")
	}

	c.JSON(http.StatusOK, gin.H{
		"version":  ds.Version,
		"filters":  st.Filters,
		"range":    st.Range,
		"link":     s.deps.Codec.Encode(st),
		"report":   report,
		"selected": s.deps.Selection.Selected(),
		"hovered":  s.deps.Selection.Hovered(),
	})
}

type crossTabRow struct {
	Key    string         `json:"key"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

func (s *Server) handleCrossTab(c *gin.Context) {
	primary, err := parseDimension(c, paramPrimary, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	secondary, err := parseDimension(c, paramSecondary, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if primary == secondary {
		c.JSON(http.StatusBadRequest, gin.H{"error": "primary and secondary must differ"})
		return
	}

	st := s.viewState(c)
	ds, err := s.deps.Queries.Dataset(c.Request.Context(), query.ParseViewKind(c.Query(paramView)), recordQuery(st))
	if err != nil {
		s.fail(c, err)
		return
	}

	ct := aggregate.CrossTabulate(ds.Records, primary, secondary)
	rows := make([]crossTabRow, 0, len(ct.Rows))
	for _, row := range ct.Rows {
		counts := make(map[string]int, len(ct.Columns))
		for _, col := range ct.Columns {
			counts[col] = row.Count(col)
		}
		rows = append(rows, crossTabRow{Key: row.Key, Counts: counts, Total: row.Total})
	}

	c.JSON(http.StatusOK, gin.H{
		"version":      ds.Version,
		"primary":      ct.Primary,
		"secondary":    ct.Secondary,
		"columns":      ct.Columns,
		"rows":         rows,
		"columnTotals": ct.ColumnTotals,
		"grandTotal":   ct.GrandTotal,
	})
}

// handleLink encodes the shared filters and the requested (or default)
// range into a shareable query string.
func (s *Server) handleLink(c *gin.Context) {
	st := s.deps.Codec.DecodeValues(c.Request.URL.Query())
	st.Filters = s.deps.Filters.Snapshot()
	c.JSON(http.StatusOK, gin.H{"query": s.deps.Codec.Encode(st)})
}
