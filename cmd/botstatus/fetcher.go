package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// recordSink stores fetched records locally.
type recordSink interface {
	InsertRecords(ctx context.Context, records []model.BotRecord) (int, error)
}

// mirrorFetcher answers queries from the upstream service and writes every
// page it receives through to the local store. Write failures are logged and
// do not fail the fetch.
type mirrorFetcher struct {
	upstream model.RecordFetcher
	local    recordSink
	logger   zerolog.Logger
}

func (m *mirrorFetcher) FetchPage(ctx context.Context, q model.RecordQuery) (model.RecordPage, error) {
	page, err := m.upstream.FetchPage(ctx, q)
	if err != nil {
		return page, err
	}
	if len(page.Records) > 0 {
		if n, err := m.local.InsertRecords(ctx, page.Records); err != nil {
			m.logger.Warn().Err(err).Int("stored", n).Int("received", len(page.Records)).Msg("mirror page")
		}
	}
	return page, nil
}
