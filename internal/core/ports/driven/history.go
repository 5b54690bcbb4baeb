package driven

import (
	"context"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// RunHistoryStore records the outcome of sync runs.
type RunHistoryStore interface {
	// RecordRun persists a finished run.
	RecordRun(ctx context.Context, run *domain.RunRecord) error

	// LastRun returns the most recent run.
	// Returns nil and no error if no run has been recorded.
	LastRun(ctx context.Context) (*domain.RunRecord, error)

	// ListRuns returns recent runs, most recent first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// PruneRuns keeps the most recent 'keep' runs and returns how many were removed.
	PruneRuns(ctx context.Context, keep int) (int, error)
}
