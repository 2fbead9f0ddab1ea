package duckdb

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	// Interval between sweeps; defaults to one hour.
	Interval time.Duration
}

// RetentionCleaner periodically deletes bot records older than the
// configured retention period.
type RetentionCleaner struct {
	store         *Store
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
	done          chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewRetentionCleaner creates a retention cleaner and runs one sweep
// immediately. Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 {
		return nil
	}
	interval := conf.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	rc := &RetentionCleaner{
		store:         store,
		retentionDays: conf.RetentionDays,
		interval:      interval,
		logger:        store.logger.With().Str("component", "retention").Logger(),
		done:          make(chan struct{}),
	}

	// Startup sweep to catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -rc.retentionDays)

	rows, err := rc.store.DeleteBefore(context.Background(), cutoff)
	if err != nil {
		rc.logger.Error().Err(err).Msg("retention cleanup")
		return
	}
	if rows > 0 {
		rc.logger.Info().Int64("deleted", rows).Int("retention_days", rc.retentionDays).Msg("deleted expired bot records")
	}
}

// Stop signals the cleaner to stop and waits for it to finish. It is safe
// to call more than once.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}
