package duckdb

import (
	"context"
	"database/sql"
	"errors"
)

// GetState implements model.StateStorage over the local_state table.
func (s *Store) GetState(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM local_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// PutState implements model.StateStorage over the local_state table.
func (s *Store) PutState(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO local_state (key, value, updated_at) VALUES (?, ?, current_timestamp)", key, value)
	return err
}
