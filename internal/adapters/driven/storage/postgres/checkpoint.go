// Package postgres stores continuation tokens in a PostgreSQL table so
// several indexsync deployments can share one database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

const (
	// DefaultTable is the checkpoint table name.
	DefaultTable = "indexsync_checkpoints"

	// DefaultKey is the checkpoint row used when no key is configured.
	DefaultKey = "default"

	operationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps one row per key. The table is created on first use.
type CheckpointStore struct {
	dsn    string
	table  string
	key    string
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewCheckpointStore returns a store for dsn. An empty key selects DefaultKey.
func NewCheckpointStore(dsn, key string) (*CheckpointStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", domain.ErrInvalidInput)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &CheckpointStore{
		dsn:    dsn,
		table:  DefaultTable,
		key:    key,
		openDB: sql.Open,
	}, nil
}

// Load returns the checkpoint for this key, or nil if none was saved.
func (s *CheckpointStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT token, saved_at FROM %s WHERE checkpoint_key = $1", quoteIdentifier(s.table))
	var cp domain.Checkpoint
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&cp.Token, &cp.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	return &cp, nil
}

// Save upserts the token for this key in a single statement.
func (s *CheckpointStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return &domain.PersistenceError{Op: "save", Err: domain.ErrInvalidInput}
	}
	if err := s.ensureReady(ctx); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (checkpoint_key, token, saved_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (checkpoint_key)
		DO UPDATE SET token = EXCLUDED.token, saved_at = NOW()`, quoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, query, s.key, token); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Clear deletes the row for this key.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	if err := s.ensureReady(ctx); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE checkpoint_key = $1", quoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, query, s.key); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (s *CheckpointStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *CheckpointStore) ensureReady(ctx context.Context) error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("opening postgres: %w", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), operationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				checkpoint_key TEXT PRIMARY KEY,
				token TEXT NOT NULL,
				saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, quoteIdentifier(s.table))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("creating checkpoint table: %w", err)
			return
		}
		s.db = db
	})
	return s.initErr
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
