package model

import "time"

// Shared defaults used by the server binary and the client-state packages.
const (
	DefaultPageSize       = 50
	DefaultFetchLimit     = 500
	MaxFetchLimit         = 1000
	DefaultRangeDays      = 14
	MaxRangeDays          = 366
	DefaultStatsFreshness = 15 * time.Minute
	DefaultUsageFreshness = 2 * time.Minute
	DefaultHoverDebounce  = 100 * time.Millisecond
)

// PageSizes lists the page sizes a client may persist.
var PageSizes = []int{10, 25, 50, 100}
