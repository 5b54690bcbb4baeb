package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// SyncOrchestrator keeps the search index in step with the content store.
// At most one run is active at a time; every entry point returns
// domain.ErrSyncInProgress while another run holds the sync.
type SyncOrchestrator interface {
	// Load reads the stored checkpoint into memory.
	// Runs call it lazily, so calling it up front is optional.
	Load(ctx context.Context) error

	// Sync runs an initial sync when no token is stored and an
	// incremental sync otherwise.
	Sync(ctx context.Context) error

	// RunInitial fetches every current item. Fails with
	// domain.ErrCheckpointExists when a token is already stored.
	RunInitial(ctx context.Context) error

	// RunIncremental fetches changes since the stored token. Fails with
	// domain.ErrNoCheckpoint when no token is stored.
	RunIncremental(ctx context.Context) error

	// Resync performs a full initial fetch regardless of the stored token.
	// The old token stays in place until the first new page is applied.
	Resync(ctx context.Context) error

	// Status returns the current sync status.
	Status(ctx context.Context) (*SyncStatus, error)
}

// SyncStatus represents the current state of the sync.
type SyncStatus struct {
	// Running indicates if a run is currently in progress.
	Running bool

	// HasCheckpoint is true when a continuation token is stored.
	HasCheckpoint bool

	// CheckpointSavedAt is when the token was last written.
	CheckpointSavedAt time.Time

	// ForceInitial is true when the next run will ignore the token.
	ForceInitial bool

	// LastRun is the most recent finished run, if any.
	LastRun *domain.RunRecord
}
