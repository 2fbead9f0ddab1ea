package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Meeting-BaaS/status-sub000/internal/filter"
	"github.com/Meeting-BaaS/status-sub000/internal/model"
	"github.com/Meeting-BaaS/status-sub000/internal/statusclass"
)

const recordColumns = `uuid, created_at, duration, platform_url,
	status_type, status_value, status_category, status_priority, status_message,
	report_raw, report_note`

// dimensionColumns maps each filter dimension to its derived column.
var dimensionColumns = map[model.Dimension]string{
	model.DimensionPlatform:   "platform",
	model.DimensionStatusType: "class_type",
	model.DimensionUserReport: "report_status",
	model.DimensionCategory:   "class_category",
	model.DimensionPriority:   "class_priority",
}

// InsertRecords classifies and upserts records in a single transaction.
// If the batch fails it is retried record-by-record to salvage as many
// records as possible. It returns the number of records stored.
func (s *Store) InsertRecords(ctx context.Context, records []model.BotRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertBatchTx(ctx, records); err == nil {
		return len(records), nil
	} else if ctx.Err() != nil {
		return 0, err
	}

	stored := 0
	for _, r := range records {
		if err := s.insertBatchTx(ctx, []model.BotRecord{r}); err != nil {
			s.logger.Warn().Err(err).Str("uuid", r.UUID).Msg("dropping bot record")
			continue
		}
		stored++
	}
	if stored < len(records) {
		s.logger.Warn().Int("dropped", len(records)-stored).Int("total", len(records)).Msg("batch partially failed")
	}
	return stored, nil
}

func (s *Store) insertBatchTx(ctx context.Context, records []model.BotRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bots (`+recordColumns+`,
		platform, class_type, class_category, class_priority, report_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range records {
		if b.UUID == "" {
			return fmt.Errorf("record without uuid")
		}
		r := statusclass.Record(b)

		var reportRaw, reportNote, reportStatus any
		if b.UserReportedError != nil {
			reportRaw = b.UserReportedError.Status
			reportNote = b.UserReportedError.Note
			reportStatus = string(r.Report)
		}

		if _, err := stmt.ExecContext(ctx,
			b.UUID, b.CreatedAt.UTC(), b.Duration, b.PlatformURL,
			b.Status.Type, b.Status.Value, b.Status.Category, b.Status.Priority, b.Status.Message,
			reportRaw, reportNote,
			string(r.Platform), string(r.Class.Type), string(r.Class.Category), string(r.Class.Priority), reportStatus,
		); err != nil {
			return fmt.Errorf("record insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// whereClause builds the WHERE clause for q: the date range plus one IN list
// per constrained dimension. The user-report value "none" matches rows
// without a report.
func whereClause(q model.RecordQuery) (string, []any) {
	conditions := []string{"created_at >= ?", "created_at <= ?"}
	args := []any{q.Start.UTC(), q.End.UTC()}

	f := filter.Normalize(q.Filters)
	for _, d := range model.Dimensions {
		values := f.Get(d)
		if len(values) == 0 {
			continue
		}
		col := dimensionColumns[d]
		var (
			placeholders []string
			matchNull    bool
		)
		for _, v := range values {
			if d == model.DimensionUserReport && v == model.ReportNone {
				matchNull = true
				continue
			}
			placeholders = append(placeholders, "?")
			args = append(args, v)
		}
		var parts []string
		if len(placeholders) > 0 {
			parts = append(parts, col+" IN ("+strings.Join(placeholders, ", ")+")")
		}
		if matchNull {
			parts = append(parts, col+" IS NULL")
		}
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// FetchPage implements model.RecordFetcher. Records are ordered newest
// first, ties broken by uuid.
func (s *Store) FetchPage(ctx context.Context, q model.RecordQuery) (model.RecordPage, error) {
	if err := q.Validate(); err != nil {
		return model.RecordPage{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	where, args := whereClause(q)

	page := model.RecordPage{Records: []model.BotRecord{}, Offset: q.Offset, Limit: q.Limit}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bots "+where, args...).Scan(&page.Total); err != nil {
		return model.RecordPage{}, fmt.Errorf("count bots: %w", err)
	}

	query := "SELECT " + recordColumns + " FROM bots " + where +
		" ORDER BY created_at DESC, uuid ASC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return model.RecordPage{}, fmt.Errorf("select bots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b                     model.BotRecord
			reportRaw, reportNote sql.NullString
		)
		if err := rows.Scan(&b.UUID, &b.CreatedAt, &b.Duration, &b.PlatformURL,
			&b.Status.Type, &b.Status.Value, &b.Status.Category, &b.Status.Priority, &b.Status.Message,
			&reportRaw, &reportNote); err != nil {
			s.logger.Warn().Err(err).Msg("scan bot record")
			continue
		}
		b.CreatedAt = b.CreatedAt.UTC()
		if reportRaw.Valid {
			b.UserReportedError = &model.UserReport{Status: reportRaw.String, Note: reportNote.String}
		}
		page.Records = append(page.Records, b)
	}
	return page, rows.Err()
}

// RecordCount returns the number of stored records.
func (s *Store) RecordCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bots").Scan(&n)
	return n, err
}

// DeleteBefore removes records created before cutoff and returns how many
// were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "DELETE FROM bots WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
