package main

import (
	"time"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

const (
	defaultBindHost        = "127.0.0.1"
	defaultAPIPort         = 3000
	defaultQueryTimeout    = 30 * time.Second
	defaultUpstreamTimeout = 30 * time.Second
	defaultRetentionDays   = 90 // days, 0 = disabled
	defaultHoverDelay      = model.DefaultHoverDebounce
	defaultStatsFreshness  = model.DefaultStatsFreshness
	defaultUsageFreshness  = model.DefaultUsageFreshness
	defaultPageLimit       = model.DefaultFetchLimit
	defaultImportBatchSize = 500
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	DBPath          string        `mapstructure:"db-path"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout"`
	RetentionDays   int           `mapstructure:"retention-days"`
	APIEnabled      bool          `mapstructure:"api-enabled"`
	APIPort         int           `mapstructure:"api-port"`
	APIAddr         string        `mapstructure:"api-addr"`
	SyncEnabled     bool          `mapstructure:"sync-enabled"`
	SocketPath      string        `mapstructure:"socket-path"`
	UpstreamURL     string        `mapstructure:"upstream-url"`
	UpstreamAPIKey  string        `mapstructure:"upstream-api-key"`
	UpstreamTimeout time.Duration `mapstructure:"upstream-timeout"`
	StatsFreshness  time.Duration `mapstructure:"stats-freshness"`
	UsageFreshness  time.Duration `mapstructure:"usage-freshness"`
	PageLimit       int           `mapstructure:"page-limit"`
	HoverDelay      time.Duration `mapstructure:"hover-delay"`
	ImportBatchSize int           `mapstructure:"import-batch-size"`
	LogLevel        string        `mapstructure:"log-level"`
	LogFormat       string        `mapstructure:"log-format"`
	ConfigPath      string        `mapstructure:"-"` // not from config file
}
