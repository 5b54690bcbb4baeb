package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

const runColumns = `id, mode, fell_back, started_at, ended_at, success, error, pages, upserted, deleted`

// runHistoryStore implements driven.RunHistoryStore.
type runHistoryStore struct {
	store *Store
}

var _ driven.RunHistoryStore = (*runHistoryStore)(nil)

// RecordRun persists a finished run. Recording the same ID twice
// overwrites the earlier row.
func (s *runHistoryStore) RecordRun(ctx context.Context, run *domain.RunRecord) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			fell_back = excluded.fell_back,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			success = excluded.success,
			error = excluded.error,
			pages = excluded.pages,
			upserted = excluded.upserted,
			deleted = excluded.deleted
	`, run.ID, string(run.Mode), boolToInt(run.FellBack),
		formatTime(run.StartedAt), formatNullableTime(run.EndedAt),
		boolToInt(run.Success), nullString(run.Error),
		run.Pages, run.Upserted, run.Deleted)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run, or nil if none exist.
func (s *runHistoryStore) LastRun(ctx context.Context) (*domain.RunRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recent first. A non-positive
// limit returns every run.
func (s *runHistoryStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	return runs, nil
}

// PruneRuns keeps the most recent 'keep' runs.
func (s *runHistoryStore) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM sync_runs
		WHERE id NOT IN (
			SELECT id FROM sync_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning sync runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning sync runs: %w", err)
	}
	return int(n), nil
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var mode, startedAt string
	var endedAt, errMsg sql.NullString
	var fellBack, success int

	if err := row.Scan(&run.ID, &mode, &fellBack, &startedAt, &endedAt,
		&success, &errMsg, &run.Pages, &run.Upserted, &run.Deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sync run: %w", err)
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	run.EndedAt = parseNullableTime(endedAt)
	run.Mode = domain.SyncMode(mode)
	run.FellBack = fellBack == 1
	run.Success = success == 1
	run.Error = errMsg.String

	return &run, nil
}
