package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Meeting-BaaS/status-sub000/internal/duckdb"
	"github.com/Meeting-BaaS/status-sub000/internal/logger"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
)

// importResult counts the outcome of an import run.
type importResult struct {
	Imported int
	Skipped  int
}

// runImport loads a JSON Lines file of bot records into the local store.
func runImport(cfg appConfig, path string) error {
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "botstatus"})

	store, err := duckdb.NewStore(cfg.DBPath, log, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	res, err := importRecords(context.Background(), store, r, cfg.ImportBatchSize, log)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d records (%d skipped) into %s\n", res.Imported, res.Skipped, shortenPath(cfg.DBPath))
	return nil
}

// importRecords reads one BotRecord per line. Blank lines are ignored;
// lines that fail to decode or carry an invalid uuid are skipped and logged.
func importRecords(ctx context.Context, sink recordSink, r io.Reader, batchSize int, log zerolog.Logger) (importResult, error) {
	if batchSize <= 0 {
		batchSize = defaultImportBatchSize
	}
	var res importResult
	batch := make([]model.BotRecord, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := sink.InsertRecords(ctx, batch)
		res.Imported += n
		res.Skipped += len(batch) - n
		if err != nil {
			log.Warn().Err(err).Int("stored", n).Int("batch", len(batch)).Msg("import batch partially failed")
		}
		batch = batch[:0]
		return ctx.Err()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec model.BotRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			log.Warn().Err(err).Int("line", line).Msg("skipping malformed record")
			res.Skipped++
			continue
		}
		if _, err := uuid.Parse(rec.UUID); err != nil {
			log.Warn().Err(err).Int("line", line).Str("uuid", rec.UUID).Msg("skipping record with invalid uuid")
			res.Skipped++
			continue
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read import: %w", err)
	}
	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}
