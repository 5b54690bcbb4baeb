package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driving"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// Ensure Coalescer implements the interface.
var _ driving.Trigger = (*Coalescer)(nil)

// DefaultTriggerDelay gives the content store time to make published
// changes visible to its sync API before the run starts.
const DefaultTriggerDelay = 60 * time.Second

// Coalescer debounces change events into sync runs.
// The first relevant event arms a timer; each further event while the
// timer is pending resets it, so a burst produces one run that starts
// one delay after the last event. There is never more than one timer.
type Coalescer struct {
	syncer driving.SyncOrchestrator
	delay  time.Duration
	kinds  map[string]struct{}
	clock  clockwork.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  clockwork.Timer
	gen    uint64
	closed bool
	stats  domain.TriggerStats
	wg     sync.WaitGroup
}

// CoalescerOption configures a Coalescer.
type CoalescerOption func(*Coalescer)

// WithCoalescerClock replaces the wall clock. Used by tests.
func WithCoalescerClock(clock clockwork.Clock) CoalescerOption {
	return func(c *Coalescer) {
		c.clock = clock
	}
}

// WithTriggerKinds sets which event kinds schedule a run.
// An empty list accepts every kind.
func WithTriggerKinds(kinds []string) CoalescerOption {
	return func(c *Coalescer) {
		c.kinds = make(map[string]struct{}, len(kinds))
		for _, k := range kinds {
			c.kinds[k] = struct{}{}
		}
	}
}

// NewCoalescer creates a coalescer that calls syncer.Sync after delay.
// A delay of zero or less uses DefaultTriggerDelay.
func NewCoalescer(syncer driving.SyncOrchestrator, delay time.Duration, opts ...CoalescerOption) *Coalescer {
	if delay <= 0 {
		delay = DefaultTriggerDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coalescer{
		syncer: syncer,
		delay:  delay,
		clock:  clockwork.NewRealClock(),
		ctx:    ctx,
		cancel: cancel,
	}
	WithTriggerKinds(domain.DefaultTriggerKinds())(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnEvent schedules or postpones the pending run.
// Returns false if the event kind is not relevant or the coalescer is closed.
func (c *Coalescer) OnEvent(event domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Received++
	if c.closed || !c.relevant(event.Kind) {
		c.stats.Ignored++
		logger.Debug("Ignoring %q event from %s", event.Kind, event.Source)
		return false
	}

	if c.timer != nil && c.timer.Stop() {
		c.timer.Reset(c.delay)
		c.stats.Coalesced++
		logger.Debug("Coalesced %q event, sync postponed by %s", event.Kind, c.delay)
		return true
	}

	c.gen++
	gen := c.gen
	c.wg.Add(1)
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(gen) })
	logger.Info("Sync scheduled in %s after %q event", c.delay, event.Kind)
	return true
}

// Cancel stops a pending run without starting it.
func (c *Coalescer) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked()
}

// Pending reports whether a run is scheduled and not yet started.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Stats returns event counters.
func (c *Coalescer) Stats() domain.TriggerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close cancels any pending run, cancels a run in flight, and waits for it to return.
func (c *Coalescer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelLocked()
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Coalescer) relevant(kind string) bool {
	if len(c.kinds) == 0 {
		return true
	}
	_, ok := c.kinds[kind]
	return ok
}

// cancelLocked stops the timer and reports whether a run was pending.
// A timer that already fired but whose callback has not taken mu yet
// still counts: bumping gen makes that callback return without a run.
// The caller must hold mu.
func (c *Coalescer) cancelLocked() bool {
	if c.timer == nil {
		return false
	}
	if c.timer.Stop() {
		// The callback will never run, so release its wait slot here.
		c.wg.Done()
	}
	c.timer = nil
	c.gen++
	return true
}

// fire runs on the timer goroutine.
func (c *Coalescer) fire(gen uint64) {
	defer c.wg.Done()

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	// Clear first so events arriving during the run arm a new timer.
	c.timer = nil
	c.stats.Fired++
	c.mu.Unlock()

	logger.Info("Debounce window elapsed, starting sync")
	if err := c.syncer.Sync(c.ctx); err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			logger.Info("Sync already running, dropping triggered run")
			return
		}
		logger.Error("Triggered sync failed: %v", err)
	}
}
