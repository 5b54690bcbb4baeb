package driven

import (
	"context"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// CheckpointStore persists the continuation token across restarts.
// The token is the only durable sync state.
type CheckpointStore interface {
	// Load returns the stored checkpoint.
	// Returns nil and no error if no token has ever been saved.
	Load(ctx context.Context) (*domain.Checkpoint, error)

	// Save replaces the stored token.
	// A reader never observes a partially written token: after a crash
	// Load returns either the previous token or the new one.
	Save(ctx context.Context, token string) error

	// Clear removes the stored token so the next run is an initial sync.
	Clear(ctx context.Context) error
}
