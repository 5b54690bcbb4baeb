package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/core/ports/driving"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

const (
	// DefaultMaxFetchAttempts bounds retries of transient fetch errors.
	DefaultMaxFetchAttempts = 3

	// DefaultRetryDelay is the first backoff delay. It doubles per attempt.
	DefaultRetryDelay = 1 * time.Second

	// maxRetryDelay caps the exponential backoff.
	maxRetryDelay = 1 * time.Minute
)

// errMissingToken is returned when a fetch succeeds without a continuation token.
var errMissingToken = errors.New("change set carried no continuation token")

// runRequest selects how a run chooses its mode.
type runRequest int

const (
	requestAuto runRequest = iota
	requestInitial
	requestIncremental
	requestResync
)

// SyncOrchestrator drives fetch, reconcile and checkpoint in order.
// It is the only writer of the sync state; the mutex is held for state
// transitions only, never across fetches or index writes.
type SyncOrchestrator struct {
	fetcher     driven.ChangeFetcher
	checkpoints driven.CheckpointStore
	reconciler  *Reconciler
	history     driven.RunHistoryStore

	clock       clockwork.Clock
	maxAttempts int
	retryDelay  time.Duration

	mu      sync.Mutex
	state   domain.SyncState
	savedAt time.Time
	lastRun *domain.RunRecord
}

// SyncOption configures a SyncOrchestrator.
type SyncOption func(*SyncOrchestrator)

// WithRunHistory records every run in store.
func WithRunHistory(store driven.RunHistoryStore) SyncOption {
	return func(o *SyncOrchestrator) {
		o.history = store
	}
}

// WithClock replaces the wall clock. Used by tests.
func WithClock(clock clockwork.Clock) SyncOption {
	return func(o *SyncOrchestrator) {
		o.clock = clock
	}
}

// WithRetry sets how many times a fetch is attempted and the first backoff delay.
func WithRetry(maxAttempts int, delay time.Duration) SyncOption {
	return func(o *SyncOrchestrator) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if delay >= 0 {
			o.retryDelay = delay
		}
	}
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(
	fetcher driven.ChangeFetcher,
	checkpoints driven.CheckpointStore,
	reconciler *Reconciler,
	opts ...SyncOption,
) *SyncOrchestrator {
	o := &SyncOrchestrator{
		fetcher:     fetcher,
		checkpoints: checkpoints,
		reconciler:  reconciler,
		clock:       clockwork.NewRealClock(),
		maxAttempts: DefaultMaxFetchAttempts,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load reads the stored checkpoint into memory. Subsequent calls are no-ops.
func (o *SyncOrchestrator) Load(ctx context.Context) error {
	if !o.acquire() {
		logger.Info("Sync already in progress, skipping checkpoint load")
		return domain.ErrSyncInProgress
	}
	defer o.release()
	return o.ensureLoaded(ctx)
}

// Sync runs an initial or incremental sync depending on the stored token.
func (o *SyncOrchestrator) Sync(ctx context.Context) error {
	return o.run(ctx, requestAuto)
}

// RunInitial fetches every current item into the index.
func (o *SyncOrchestrator) RunInitial(ctx context.Context) error {
	return o.run(ctx, requestInitial)
}

// RunIncremental applies changes since the stored token.
func (o *SyncOrchestrator) RunIncremental(ctx context.Context) error {
	return o.run(ctx, requestIncremental)
}

// Resync refetches everything regardless of the stored token.
func (o *SyncOrchestrator) Resync(ctx context.Context) error {
	return o.run(ctx, requestResync)
}

// Status returns the current sync status.
func (o *SyncOrchestrator) Status(ctx context.Context) (*driving.SyncStatus, error) {
	o.mu.Lock()
	status := &driving.SyncStatus{
		Running:           o.state.Running,
		HasCheckpoint:     o.state.Token != "",
		CheckpointSavedAt: o.savedAt,
		ForceInitial:      o.state.ForceInitial,
		LastRun:           o.lastRun,
	}
	loaded := o.state.Loaded
	o.mu.Unlock()

	if !loaded {
		cp, err := o.checkpoints.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if cp != nil {
			status.HasCheckpoint = true
			status.CheckpointSavedAt = cp.SavedAt
		}
	}

	if status.LastRun == nil && o.history != nil {
		last, err := o.history.LastRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("get last run: %w", err)
		}
		status.LastRun = last
	}

	return status, nil
}

// acquire sets the running flag. Returns false if a run already holds it.
func (o *SyncOrchestrator) acquire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Running {
		return false
	}
	o.state.Running = true
	return true
}

// release clears the running flag.
func (o *SyncOrchestrator) release() {
	o.mu.Lock()
	o.state.Running = false
	o.mu.Unlock()
}

// ensureLoaded reads the checkpoint once. The caller must hold the running flag.
func (o *SyncOrchestrator) ensureLoaded(ctx context.Context) error {
	o.mu.Lock()
	loaded := o.state.Loaded
	o.mu.Unlock()
	if loaded {
		return nil
	}

	cp, err := o.checkpoints.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Loaded = true
	if cp != nil {
		o.state.Token = cp.Token
		o.savedAt = cp.SavedAt
		logger.Debug("Loaded checkpoint saved at %s", cp.SavedAt.Format(time.RFC3339))
	} else {
		logger.Debug("No checkpoint stored")
	}
	return nil
}

// run executes one sync run under the running flag.
func (o *SyncOrchestrator) run(ctx context.Context, req runRequest) error {
	if !o.acquire() {
		logger.Info("Sync already in progress, skipping")
		return domain.ErrSyncInProgress
	}
	defer o.release()

	if err := o.ensureLoaded(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	token := o.state.Token
	force := o.state.ForceInitial
	o.mu.Unlock()

	mode, err := selectMode(req, token, force)
	if err != nil {
		return err
	}

	rec := &domain.RunRecord{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: o.clock.Now(),
	}
	logger.Info("Starting %s sync (run %s)", mode, rec.ID)

	if mode == domain.SyncModeInitial {
		token = ""
	}
	err = o.execute(ctx, mode, token, rec)

	rec.EndedAt = o.clock.Now()
	if err != nil {
		rec.Error = err.Error()
		logger.Error("Sync run %s failed after %d page(s): %v", rec.ID, rec.Pages, err)
	} else {
		rec.Success = true
		logger.Info("Sync run %s complete: %d upserted, %d deleted, %d page(s) in %s",
			rec.ID, rec.Upserted, rec.Deleted, rec.Pages, rec.Duration())
	}
	o.finish(ctx, rec)

	return err
}

// selectMode validates the request against the stored token.
func selectMode(req runRequest, token string, force bool) (domain.SyncMode, error) {
	hasToken := token != "" && !force
	switch req {
	case requestInitial:
		if hasToken {
			return "", domain.ErrCheckpointExists
		}
		return domain.SyncModeInitial, nil
	case requestIncremental:
		if !hasToken {
			return "", domain.ErrNoCheckpoint
		}
		return domain.SyncModeIncremental, nil
	case requestResync:
		return domain.SyncModeInitial, nil
	default:
		if hasToken {
			return domain.SyncModeIncremental, nil
		}
		return domain.SyncModeInitial, nil
	}
}

// execute loops fetch, apply, save until the content store has no more pages.
func (o *SyncOrchestrator) execute(ctx context.Context, mode domain.SyncMode, token string, rec *domain.RunRecord) error {
	var total domain.ReconcileResult
	defer func() {
		logger.Debug("Run %s issued %d upsert and %d delete call(s)", rec.ID, total.UpsertCalls, total.DeleteCalls)
	}()
	for {
		cs, err := o.fetchWithRetry(ctx, token)
		if err != nil {
			if mode == domain.SyncModeIncremental && domain.IsTokenExpired(err) && !rec.FellBack {
				logger.Warn("Sync token rejected, falling back to initial sync: %v", err)
				o.mu.Lock()
				o.state.ForceInitial = true
				o.mu.Unlock()
				rec.FellBack = true
				mode = domain.SyncModeInitial
				token = ""
				continue
			}
			return fmt.Errorf("fetch change set: %w", err)
		}
		if cs.NextToken == "" {
			return fmt.Errorf("fetch change set: %w", domain.NewFatalFetchError(errMissingToken))
		}

		if cs.Empty() {
			logger.Debug("Fetched change set with no changes, more=%t", cs.HasMore)
		} else {
			logger.Debug("Fetched change set: %d upserts, %d deletions, more=%t",
				len(cs.Upserts), len(cs.Deletions), cs.HasMore)
		}

		res, err := o.reconciler.Apply(ctx, cs)
		total.Add(res)
		rec.Upserted, rec.Deleted = total.Upserted, total.Deleted
		if err != nil {
			return fmt.Errorf("apply change set: %w", err)
		}

		if err := o.checkpoints.Save(ctx, cs.NextToken); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}

		o.mu.Lock()
		o.state.Token = cs.NextToken
		o.state.ForceInitial = false
		o.savedAt = o.clock.Now()
		o.mu.Unlock()
		rec.Pages++

		if !cs.HasMore {
			return nil
		}
		token = cs.NextToken
	}
}

// fetchWithRetry retries transient errors with exponential backoff.
func (o *SyncOrchestrator) fetchWithRetry(ctx context.Context, token string) (*domain.ChangeSet, error) {
	delay := o.retryDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cs, err := o.fetcher.Fetch(ctx, token)
		if err == nil {
			if cs == nil {
				return nil, domain.NewFatalFetchError(errors.New("fetcher returned no change set"))
			}
			return cs, nil
		}
		if !domain.IsTransient(err) || attempt >= o.maxAttempts {
			return nil, err
		}

		wait := delay
		if hint := domain.RetryAfter(err); hint > wait {
			wait = hint
		}
		logger.Warn("Fetch attempt %d/%d failed, retrying in %s: %v", attempt, o.maxAttempts, wait, err)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-o.clock.After(wait):
			}
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// finish publishes the run record.
func (o *SyncOrchestrator) finish(ctx context.Context, rec *domain.RunRecord) {
	o.mu.Lock()
	o.lastRun = rec
	o.mu.Unlock()

	if o.history == nil {
		return
	}
	// Record even when the run's context was cancelled.
	recordCtx := context.WithoutCancel(ctx)
	if err := o.history.RecordRun(recordCtx, rec); err != nil {
		logger.Warn("Failed to record run %s: %v", rec.ID, err)
	}
}
