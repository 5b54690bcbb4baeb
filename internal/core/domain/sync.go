package domain

import "time"

// ChangeSet is one page of changes returned by the content store.
type ChangeSet struct {
	// Upserts are items created or modified since the previous token.
	// For an initial fetch this is every current item.
	Upserts []ContentItem

	// Deletions are ids of items removed since the previous token.
	// Always empty for an initial fetch.
	Deletions []string

	// NextToken resumes from the point after this change set.
	NextToken string

	// Initial is true when this page came from a token-less fetch.
	Initial bool

	// HasMore is true when further pages are available immediately.
	// NextToken then continues the same fetch rather than waiting for new changes.
	HasMore bool
}

// Empty reports whether the change set carries no work for the index.
func (c *ChangeSet) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletions) == 0
}

// Checkpoint is the durable continuation token.
type Checkpoint struct {
	// Token is the opaque value issued by the content store.
	Token string

	// SavedAt is when the token was last written.
	SavedAt time.Time
}

// SyncMode selects between a full fetch and a token-based fetch.
type SyncMode string

const (
	// SyncModeInitial fetches every current item without a token.
	SyncModeInitial SyncMode = "initial"

	// SyncModeIncremental fetches changes since the stored token.
	SyncModeIncremental SyncMode = "incremental"
)

// SyncState is the orchestrator's in-memory view of the sync.
type SyncState struct {
	// Token is the current continuation token; empty when absent.
	Token string

	// Loaded is true once the checkpoint store has been consulted.
	Loaded bool

	// Running is true while a run holds the sync.
	Running bool

	// ForceInitial makes the next run fetch without a token.
	// Set after the store rejects the token as expired.
	ForceInitial bool
}

// ReconcileResult counts what a reconcile pass wrote to the index.
type ReconcileResult struct {
	// Upserted is the number of records written.
	Upserted int

	// Deleted is the number of ids removed.
	Deleted int

	// UpsertCalls is the number of batched upsert calls issued.
	UpsertCalls int

	// DeleteCalls is the number of batched delete calls issued.
	DeleteCalls int
}

// Add accumulates another result into r.
func (r *ReconcileResult) Add(other ReconcileResult) {
	r.Upserted += other.Upserted
	r.Deleted += other.Deleted
	r.UpsertCalls += other.UpsertCalls
	r.DeleteCalls += other.DeleteCalls
}

// RunRecord describes one sync run for history and status reporting.
type RunRecord struct {
	// ID uniquely identifies the run.
	ID string

	// Mode is the mode the run started in.
	Mode SyncMode

	// FellBack is true when an expired token forced a switch to initial mode.
	FellBack bool

	// StartedAt is when the run began.
	StartedAt time.Time

	// EndedAt is when the run finished.
	EndedAt time.Time

	// Success indicates the run reached a saved checkpoint with nothing pending.
	Success bool

	// Error holds the failure message when Success is false.
	Error string

	// Pages is the number of change sets applied.
	Pages int

	// Upserted is the total number of records written.
	Upserted int

	// Deleted is the total number of ids removed.
	Deleted int
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
