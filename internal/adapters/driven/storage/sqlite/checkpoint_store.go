package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

// checkpointStore implements driven.CheckpointStore on one row of the
// checkpoints table. A single-row upsert is atomic, so readers see either
// the previous token or the new one.
type checkpointStore struct {
	store *Store
	key   string
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// Load returns the checkpoint for this key, or nil if none was saved.
func (s *checkpointStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	var token, savedAt string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT token, saved_at FROM checkpoints WHERE key = ?", s.key).Scan(&token, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}

	t, err := parseTime(savedAt)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: fmt.Errorf("parsing saved_at: %w", err)}
	}
	return &domain.Checkpoint{Token: token, SavedAt: t}, nil
}

// Save replaces the token for this key.
func (s *checkpointStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return &domain.PersistenceError{Op: "save", Err: domain.ErrInvalidInput}
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO checkpoints (key, token, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			token = excluded.token,
			saved_at = excluded.saved_at
	`, s.key, token, formatTime(time.Now()))
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Clear removes the token for this key.
func (s *checkpointStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE key = ?", s.key); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}
