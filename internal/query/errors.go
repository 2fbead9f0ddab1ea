package query

import (
	"fmt"
	"time"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// FetchError reports a failed page fetch. It stays attached to the cache
// key until Refresh is called; the orchestrator never retries on its own.
type FetchError struct {
	Query model.RecordQuery
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch records offset=%d limit=%d %s..%s: %v",
		e.Query.Offset, e.Query.Limit,
		e.Query.Start.UTC().Format(time.RFC3339), e.Query.End.UTC().Format(time.RFC3339), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
