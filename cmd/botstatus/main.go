package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/Meeting-BaaS/status-sub000/internal/model"
	"github.com/Meeting-BaaS/status-sub000/internal/syncbus"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var importPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/botstatus/config.yml)")
	flag.StringVar(&importPath, "import", "", "import bot records from a JSON Lines file (- for stdin) and exit")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("botstatus - meeting bot status analytics\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if importPath != "" {
		err = runImport(cfg, importPath)
	} else {
		err = runServer(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "botstatus", "botstatus.duckdb")

	v := viper.New()
	v.SetEnvPrefix("BOTSTATUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("retention-days", defaultRetentionDays)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("sync-enabled", true)
	v.SetDefault("socket-path", syncbus.DefaultSocketPath())
	v.SetDefault("upstream-url", "")
	v.SetDefault("upstream-api-key", "")
	v.SetDefault("upstream-timeout", defaultUpstreamTimeout)
	v.SetDefault("stats-freshness", defaultStatsFreshness)
	v.SetDefault("usage-freshness", defaultUsageFreshness)
	v.SetDefault("page-limit", defaultPageLimit)
	v.SetDefault("hover-delay", defaultHoverDelay)
	v.SetDefault("import-batch-size", defaultImportBatchSize)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "botstatus", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.PageLimit < 1 || cfg.PageLimit > model.MaxFetchLimit {
		return cfg, fmt.Errorf("invalid page-limit: %d (must be 1..%d)", cfg.PageLimit, model.MaxFetchLimit)
	}
	if cfg.RetentionDays < 0 {
		return cfg, fmt.Errorf("invalid retention-days: %d", cfg.RetentionDays)
	}
	if cfg.ImportBatchSize <= 0 {
		cfg.ImportBatchSize = defaultImportBatchSize
	}

	// Expand ~ in paths
	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.SocketPath = expandHome(home, cfg.SocketPath)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
