package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Meeting-BaaS/status-sub000/internal/duckdb"
	"github.com/Meeting-BaaS/status-sub000/internal/filter"
	"github.com/Meeting-BaaS/status-sub000/internal/httpserver"
	"github.com/Meeting-BaaS/status-sub000/internal/localstate"
	"github.com/Meeting-BaaS/status-sub000/internal/logger"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
	"github.com/Meeting-BaaS/status-sub000/internal/query"
	"github.com/Meeting-BaaS/status-sub000/internal/selection"
	"github.com/Meeting-BaaS/status-sub000/internal/syncbus"
	"github.com/Meeting-BaaS/status-sub000/internal/upstream"
	"github.com/Meeting-BaaS/status-sub000/internal/urlstate"
)

// runServer wires the stores, the relay and the HTTP API and blocks until
// SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	logOut, cleanupLogger := openRuntimeLog()
	defer cleanupLogger()
	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "botstatus",
		Writer:  logOut,
	})

	store, err := duckdb.NewStore(cfg.DBPath, logger.Named(log, "duckdb"), cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: cfg.RetentionDays,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	var fetcher model.RecordFetcher = store
	if cfg.UpstreamURL != "" {
		client := upstream.New(upstream.Config{
			BaseURL: cfg.UpstreamURL,
			APIKey:  cfg.UpstreamAPIKey,
			Timeout: cfg.UpstreamTimeout,
		}, logger.Named(log, "upstream"))
		fetcher = &mirrorFetcher{upstream: client, local: store, logger: logger.Named(log, "mirror")}
	}

	orch := query.New(fetcher, query.Config{
		StatsFreshness: cfg.StatsFreshness,
		UsageFreshness: cfg.UsageFreshness,
		PageLimit:      cfg.PageLimit,
		FetchTimeout:   cfg.QueryTimeout,
	}, query.WithLogger(logger.Named(log, "query")))
	defer orch.Close()

	bus, closeBus, syncMode := openSelectionBus(cfg, log)
	defer closeBus()

	sel := selection.NewStore(bus, selection.WithLogger(logger.Named(log, "selection")))
	defer sel.Close()
	hover := selection.NewHoverDebouncer(cfg.HoverDelay, sel.Hover)
	defer hover.Stop()

	filters := filter.NewStore()
	prefs := localstate.New(store, logger.Named(log, "localstate"))
	unbind := prefs.Bind(filters)
	defer unbind()

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, httpserver.Deps{
			Records:   store,
			Queries:   orch,
			Filters:   filters,
			Selection: sel,
			Hover:     hover,
			Prefs:     prefs,
			Codec:     urlstate.NewCodec(nil),
		}, log)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			return apiServer.Stop()
		})
	}

	printStartupBanner(cfg, syncMode)

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)
	return nil
}

// openSelectionBus joins the relay at cfg.SocketPath. The first process
// hosts the hub; later ones connect to it. Without sync the bus is local to
// this process.
func openSelectionBus(cfg appConfig, log zerolog.Logger) (selection.Bus, func(), string) {
	if !cfg.SyncEnabled {
		bus := selection.NewLocalBus()
		return bus, func() { _ = bus.Close() }, "local"
	}

	var hub *syncbus.Server
	mode := "joined"
	candidate := syncbus.NewServer(cfg.SocketPath, log)
	switch err := candidate.Start(); {
	case err == nil:
		hub = candidate
		mode = "hub"
	case errors.Is(err, syncbus.ErrHubRunning):
	default:
		log.Warn().Err(err).Msg("failed to start relay hub, selection stays local")
		bus := selection.NewLocalBus()
		return bus, func() { _ = bus.Close() }, "local"
	}

	client, err := syncbus.Dial(cfg.SocketPath, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to join relay, selection stays local")
		if hub != nil {
			hub.Stop()
		}
		bus := selection.NewLocalBus()
		return bus, func() { _ = bus.Close() }, "local"
	}
	return client, func() {
		_ = client.Close()
		if hub != nil {
			hub.Stop()
		}
	}, mode
}

// openRuntimeLog opens the log file under the user's state directory,
// falling back to stderr.
func openRuntimeLog() (io.Writer, func()) {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Stderr, func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "botstatus")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return os.Stderr, func() {}
	}

	logPath := filepath.Join(logDir, "botstatus.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stderr, func() {}
	}

	return f, func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, syncMode string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╗ ╔═╗╔╦╗╔═╗╔╦╗╔═╗╔╦╗╦ ╦╔═╗
    ╠╩╗║ ║ ║ ╚═╗ ║ ╠═╣ ║ ║ ║╚═╗
    ╚═╝╚═╝ ╩ ╚═╝ ╩ ╩ ╩ ╩ ╚═╝╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}

	if syncMode == "local" {
		lines = append(lines, fmt.Sprintf("    %s  Selection Sync %s", dot, dim.Render("this process only")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Selection Sync %s %s", check, cyan.Render(shortenPath(cfg.SocketPath)), dim.Render("("+syncMode+")")))
	}
	lines = append(lines, "")

	// Data
	lines = append(lines, bold.Render("    Data"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  Storage        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	if cfg.UpstreamURL != "" {
		lines = append(lines, fmt.Sprintf("    %s  Upstream       %s", check, cyan.Render(cfg.UpstreamURL)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Upstream       %s", dot, dim.Render("none (local store)")))
	}
	if cfg.RetentionDays > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render(fmt.Sprintf("%d days", cfg.RetentionDays))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
