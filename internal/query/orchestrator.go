// Package query fetches record pages through a model.RecordFetcher with
// request de-duplication, freshness-windowed caching and memoized
// aggregation.
//
// A fresh cache hit is served as is. A stale hit is served immediately and
// one background refetch is started. A failed fetch is remembered as a
// *FetchError for its key until Refresh.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Meeting-BaaS/status-sub000/internal/aggregate"
	"github.com/Meeting-BaaS/status-sub000/internal/filter"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
	"github.com/Meeting-BaaS/status-sub000/internal/statusclass"
)

// ErrClosed is returned by fetches started after Close.
var ErrClosed = errors.New("query: orchestrator closed")

// ViewKind selects the freshness window of a fetch.
type ViewKind string

const (
	ViewStats ViewKind = "stats"
	ViewUsage ViewKind = "usage"
)

// ParseViewKind maps a name to a ViewKind, defaulting to ViewStats.
func ParseViewKind(s string) ViewKind {
	if ViewKind(s) == ViewUsage {
		return ViewUsage
	}
	return ViewStats
}

// Config tunes an Orchestrator. Zero fields take the model defaults.
type Config struct {
	StatsFreshness time.Duration
	UsageFreshness time.Duration
	PageLimit      int
	// FetchTimeout bounds every upstream fetch.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StatsFreshness <= 0 {
		c.StatsFreshness = model.DefaultStatsFreshness
	}
	if c.UsageFreshness <= 0 {
		c.UsageFreshness = model.DefaultUsageFreshness
	}
	if c.PageLimit <= 0 || c.PageLimit > model.MaxFetchLimit {
		c.PageLimit = model.DefaultFetchLimit
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	return c
}

// Status is the lifecycle state of one cache key.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State describes one cache key for presentation.
type State struct {
	Status     Status      `json:"status"`
	FetchedAt  time.Time   `json:"fetchedAt,omitzero"`
	Version    uint64      `json:"version"`
	Refreshing bool        `json:"refreshing"`
	Err        *FetchError `json:"-"`
}

type entry struct {
	page       model.RecordPage
	hasPage    bool
	fetchedAt  time.Time
	version    uint64
	err        *FetchError
	refreshing bool
	loading    bool
}

type dataset struct {
	pages   []uint64
	version uint64
	records []model.Record
}

type memo struct {
	version uint64
	report  aggregate.Report
}

// Dataset is every record matching a query, classified.
type Dataset struct {
	Version uint64
	Records []model.Record
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	fetcher model.RecordFetcher
	cfg     Config
	group   singleflight.Group

	mu       sync.Mutex
	entries  map[string]*entry
	datasets map[string]*dataset
	reports  map[string]memo
	version  uint64
	closed   bool

	baseCtx context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup

	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator over fetcher.
func New(fetcher model.RecordFetcher, cfg Config, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		fetcher:  fetcher,
		cfg:      cfg.withDefaults(),
		entries:  make(map[string]*entry),
		datasets: make(map[string]*dataset),
		reports:  make(map[string]memo),
		baseCtx:  ctx,
		cancel:   cancel,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Close cancels background refetches and waits for them to return.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
	o.bg.Wait()
}

// Key returns the canonical cache key of q. Filter values are normalized so
// that equivalent selections share a key.
func Key(q model.RecordQuery) string {
	f := filter.Normalize(q.Filters)
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d|%d",
		q.Start.UTC().Format(time.RFC3339Nano), q.End.UTC().Format(time.RFC3339Nano), q.Offset, q.Limit)
	for _, d := range model.Dimensions {
		b.WriteString("|")
		b.WriteString(string(d))
		b.WriteString("=")
		b.WriteString(strings.Join(f.Get(d), ","))
	}
	return b.String()
}

func (o *Orchestrator) freshness(kind ViewKind) time.Duration {
	if kind == ViewUsage {
		return o.cfg.UsageFreshness
	}
	return o.cfg.StatsFreshness
}

// Get returns one page for q.
func (o *Orchestrator) Get(ctx context.Context, kind ViewKind, q model.RecordQuery) (model.RecordPage, error) {
	page, _, err := o.get(ctx, kind, q)
	if err != nil {
		return model.RecordPage{}, err
	}
	return clonePage(page), nil
}

func (o *Orchestrator) get(ctx context.Context, kind ViewKind, q model.RecordQuery) (model.RecordPage, uint64, error) {
	q.Filters = filter.Normalize(q.Filters)
	if err := q.Validate(); err != nil {
		return model.RecordPage{}, 0, err
	}
	key := Key(q)

	o.mu.Lock()
	if e, ok := o.entries[key]; ok {
		if e.hasPage {
			page, version := e.page, e.version
			stale := o.now().Sub(e.fetchedAt) > o.freshness(kind)
			if stale && !e.refreshing && e.err == nil && !o.closed {
				e.refreshing = true
				o.refetchInBackground(key, q)
			}
			o.mu.Unlock()
			return page, version, nil
		}
		if e.err != nil {
			err := e.err
			o.mu.Unlock()
			return model.RecordPage{}, 0, err
		}
	}
	o.mu.Unlock()

	return o.fetch(ctx, key, q)
}

// refetchInBackground must be called with o.mu held.
func (o *Orchestrator) refetchInBackground(key string, q model.RecordQuery) {
	o.logger.Debug().Str("key", key).Msg("stale page, refetching in background")
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		if _, _, err := o.fetch(o.baseCtx, key, q); err != nil {
			o.logger.Warn().Err(err).Msg("background refetch failed")
		}
	}()
}

// fetch calls the fetcher once per key at a time and records the outcome.
// The shared call runs on the orchestrator's own context bounded by
// FetchTimeout, so a caller that gives up only stops waiting.
func (o *Orchestrator) fetch(ctx context.Context, key string, q model.RecordQuery) (model.RecordPage, uint64, error) {
	type result struct {
		page    model.RecordPage
		version uint64
	}
	ch := o.group.DoChan(key, func() (any, error) {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, ErrClosed
		}
		o.bg.Add(1)
		defer o.bg.Done()
		e := o.entries[key]
		if e == nil {
			e = &entry{}
			o.entries[key] = e
		}
		e.loading = true
		o.mu.Unlock()

		fetchCtx, cancel := context.WithTimeout(o.baseCtx, o.cfg.FetchTimeout)
		page, err := o.fetcher.FetchPage(fetchCtx, q)
		cancel()

		o.mu.Lock()
		defer o.mu.Unlock()
		e.loading = false
		e.refreshing = false
		if o.entries[key] != e {
			// Invalidated while in flight; keep the result out of the cache.
			if err != nil {
				return nil, &FetchError{Query: q, Err: err}
			}
			o.version++
			return result{page: page, version: o.version}, nil
		}
		if err != nil {
			fe := &FetchError{Query: q, Err: err}
			if o.baseCtx.Err() != nil {
				// Shutting down: not an upstream failure.
				if !e.hasPage {
					delete(o.entries, key)
				}
				return nil, fe
			}
			e.err = fe
			return nil, fe
		}
		o.version++
		e.page, e.hasPage, e.fetchedAt, e.version, e.err = page, true, o.now(), o.version, nil
		return result{page: page, version: e.version}, nil
	})

	select {
	case <-ctx.Done():
		return model.RecordPage{}, 0, ctx.Err()
	case res := <-ch:
		if res.Shared {
			o.logger.Debug().Str("key", key).Msg("joined in-flight fetch")
		}
		if res.Err != nil {
			return model.RecordPage{}, 0, res.Err
		}
		r := res.Val.(result)
		return r.page, r.version, nil
	}
}

// Refresh drops any cached page or error for q and fetches it again. It is
// the only way to leave the error state.
func (o *Orchestrator) Refresh(ctx context.Context, q model.RecordQuery) (model.RecordPage, error) {
	q.Filters = filter.Normalize(q.Filters)
	if err := q.Validate(); err != nil {
		return model.RecordPage{}, err
	}
	key := Key(q)
	o.mu.Lock()
	delete(o.entries, key)
	o.mu.Unlock()
	o.group.Forget(key)

	page, _, err := o.fetch(ctx, key, q)
	if err != nil {
		return model.RecordPage{}, err
	}
	return clonePage(page), nil
}

// Invalidate drops every cached page, error and dataset.
func (o *Orchestrator) Invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[string]*entry)
	o.datasets = make(map[string]*dataset)
	o.reports = make(map[string]memo)
}

// State reports the cache state of q.
func (o *Orchestrator) State(q model.RecordQuery) State {
	q.Filters = filter.Normalize(q.Filters)
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[Key(q)]
	if !ok {
		return State{Status: StatusIdle}
	}
	st := State{FetchedAt: e.fetchedAt, Version: e.version, Refreshing: e.refreshing, Err: e.err}
	switch {
	case e.err != nil && !e.hasPage:
		st.Status = StatusError
	case e.hasPage:
		st.Status = StatusReady
	case e.loading:
		st.Status = StatusLoading
	default:
		st.Status = StatusIdle
	}
	return st
}

// FetchAll walks every page of q starting at q.Offset. A zero limit uses the
// configured page limit.
func (o *Orchestrator) FetchAll(ctx context.Context, kind ViewKind, q model.RecordQuery) ([]model.BotRecord, error) {
	records, _, err := o.fetchAll(ctx, kind, q)
	return records, err
}

func (o *Orchestrator) fetchAll(ctx context.Context, kind ViewKind, q model.RecordQuery) ([]model.BotRecord, []uint64, error) {
	if q.Limit <= 0 {
		q.Limit = o.cfg.PageLimit
	}
	var (
		records  []model.BotRecord
		versions []uint64
	)
	for {
		page, version, err := o.get(ctx, kind, q)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, page.Records...)
		versions = append(versions, version)
		q.Offset += q.Limit
		if len(page.Records) < q.Limit || q.Offset >= page.Total {
			break
		}
	}
	if records == nil {
		records = []model.BotRecord{}
	}
	return records, versions, nil
}

// Dataset fetches every page of q and classifies the records. The dataset
// version changes whenever any underlying page was refetched.
func (o *Orchestrator) Dataset(ctx context.Context, kind ViewKind, q model.RecordQuery) (Dataset, error) {
	q.Offset = 0
	if q.Limit <= 0 {
		q.Limit = o.cfg.PageLimit
	}
	raw, versions, err := o.fetchAll(ctx, kind, q)
	if err != nil {
		return Dataset{}, err
	}
	key := Key(q)

	o.mu.Lock()
	defer o.mu.Unlock()
	ds, ok := o.datasets[key]
	if !ok || !slices.Equal(ds.pages, versions) {
		o.version++
		ds = &dataset{pages: versions, version: o.version, records: statusclass.Records(raw)}
		o.datasets[key] = ds
	}
	return Dataset{Version: ds.version, Records: slices.Clone(ds.records)}, nil
}

func optionsKey(opts aggregate.Options) string {
	if opts.Range == nil {
		return string(opts.Breakdown)
	}
	return fmt.Sprintf("%s|%s|%s", opts.Breakdown,
		opts.Range.Start.UTC().Format(time.RFC3339Nano), opts.Range.End.UTC().Format(time.RFC3339Nano))
}

// Report aggregates the dataset of q, reusing the previous result while
// the dataset version and options are unchanged. The returned Dataset is the
// one the report was built from.
func (o *Orchestrator) Report(ctx context.Context, kind ViewKind, q model.RecordQuery, opts aggregate.Options) (aggregate.Report, Dataset, error) {
	ds, err := o.Dataset(ctx, kind, q)
	if err != nil {
		return aggregate.Report{}, Dataset{}, err
	}
	q.Offset = 0
	if q.Limit <= 0 {
		q.Limit = o.cfg.PageLimit
	}
	key := Key(q) + "#" + optionsKey(opts)

	o.mu.Lock()
	if m, ok := o.reports[key]; ok && m.version == ds.Version {
		o.mu.Unlock()
		return m.report, ds, nil
	}
	o.mu.Unlock()

	report := aggregate.Build(ds.Records, opts)

	o.mu.Lock()
	o.reports[key] = memo{version: ds.Version, report: report}
	o.mu.Unlock()
	return report, ds, nil
}

func clonePage(p model.RecordPage) model.RecordPage {
	p.Records = slices.Clone(p.Records)
	if p.Records == nil {
		p.Records = []model.BotRecord{}
	}
	return p
}
