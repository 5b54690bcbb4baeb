package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
	quiet   = 30 * time.Millisecond
)

func publish() domain.Event {
	return domain.Event{Kind: domain.EventPublish, Source: "test"}
}

func newTestCoalescer(t *testing.T, syncer *mockSyncOrchestrator, delay time.Duration, opts ...CoalescerOption) (*Coalescer, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	opts = append([]CoalescerOption{WithCoalescerClock(clock)}, opts...)
	c := NewCoalescer(syncer, delay, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestNewCoalescer_Defaults(t *testing.T) {
	c := NewCoalescer(newMockSyncOrchestrator(), 0)
	defer c.Close()

	assert.Equal(t, DefaultTriggerDelay, c.delay)
	assert.True(t, c.relevant(domain.EventPublish))
	assert.False(t, c.relevant(domain.EventSave))
}

func TestCoalescer_SingleEventFiresAfterDelay(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, 60*time.Second)

	assert.True(t, c.OnEvent(publish()))
	assert.True(t, c.Pending())

	clock.Advance(59 * time.Second)
	assert.Never(t, func() bool { return syncer.calls() > 0 }, quiet, tick)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return syncer.calls() == 1 }, waitFor, tick)
	assert.False(t, c.Pending())
	assert.Equal(t, int64(1), c.Stats().Fired)
}

func TestCoalescer_BurstResetsTimer(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, 60*time.Second)

	// E1 at t=0, E2 at t=1, window 60: one run at t=61.
	c.OnEvent(publish())
	clock.Advance(time.Second)
	c.OnEvent(publish())

	clock.Advance(59 * time.Second) // t=60
	assert.Never(t, func() bool { return syncer.calls() > 0 }, quiet, tick)

	clock.Advance(time.Second) // t=61
	require.Eventually(t, func() bool { return syncer.calls() == 1 }, waitFor, tick)

	clock.Advance(5 * time.Minute)
	assert.Never(t, func() bool { return syncer.calls() > 1 }, quiet, tick)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Received)
	assert.Equal(t, int64(1), stats.Coalesced)
	assert.Equal(t, int64(1), stats.Fired)
}

func TestCoalescer_IgnoresIrrelevantKinds(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, time.Second)

	assert.False(t, c.OnEvent(domain.Event{Kind: domain.EventSave}))
	assert.False(t, c.OnEvent(domain.Event{Kind: "unknown"}))
	assert.False(t, c.Pending())

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return syncer.calls() > 0 }, quiet, tick)
	assert.Equal(t, int64(2), c.Stats().Ignored)
}

func TestCoalescer_CustomKinds(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, time.Second, WithTriggerKinds([]string{"save"}))

	assert.False(t, c.OnEvent(publish()))
	assert.True(t, c.OnEvent(domain.Event{Kind: "save"}))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return syncer.calls() == 1 }, waitFor, tick)
}

func TestCoalescer_EmptyKindsAcceptsAll(t *testing.T) {
	c, _ := newTestCoalescer(t, newMockSyncOrchestrator(), time.Second, WithTriggerKinds(nil))

	assert.True(t, c.OnEvent(domain.Event{Kind: "anything"}))
}

func TestCoalescer_Cancel(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, 10*time.Second)

	assert.False(t, c.Cancel(), "nothing pending yet")

	c.OnEvent(publish())
	assert.True(t, c.Cancel())
	assert.False(t, c.Pending())

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return syncer.calls() > 0 }, quiet, tick)

	// A later event arms a fresh timer.
	c.OnEvent(publish())
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return syncer.calls() == 1 }, waitFor, tick)
}

func TestCoalescer_CancelAfterTimerExpiredBeforeRun(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, 10*time.Second)
	c.OnEvent(publish())

	// Expire the timer while its callback cannot take the lock yet.
	c.mu.Lock()
	clock.Advance(10 * time.Second)
	pending := c.cancelLocked()
	c.mu.Unlock()

	assert.True(t, pending, "an expired timer whose run has not started is still pending")
	assert.False(t, c.Pending())
	assert.Never(t, func() bool { return syncer.calls() > 0 }, quiet, tick)
	assert.Equal(t, int64(0), c.Stats().Fired)
}

func TestCoalescer_EventDuringRunArmsNewTimer(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	syncer.block = make(chan struct{})
	c, clock := newTestCoalescer(t, syncer, 10*time.Second)

	c.OnEvent(publish())
	clock.Advance(10 * time.Second)
	<-syncer.synced

	// Run in flight: the pending slot is free again.
	assert.False(t, c.Pending())
	assert.True(t, c.OnEvent(publish()))
	assert.True(t, c.Pending())

	close(syncer.block)
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return syncer.calls() == 2 }, waitFor, tick)
}

func TestCoalescer_SyncInProgressIsDropped(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	syncer.syncErr = domain.ErrSyncInProgress
	c, clock := newTestCoalescer(t, syncer, time.Second)

	c.OnEvent(publish())
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return syncer.calls() == 1 }, waitFor, tick)

	// Nothing is queued behind the rejected run.
	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return syncer.calls() > 1 }, quiet, tick)
	assert.False(t, c.Pending())
}

func TestCoalescer_SyncErrorIsLoggedNotRetried(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	syncer.syncErr = errors.New("content store unavailable")
	c, clock := newTestCoalescer(t, syncer, time.Second)

	c.OnEvent(publish())
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return syncer.calls() == 1 }, waitFor, tick)
	assert.False(t, c.Pending())
}

func TestCoalescer_CloseCancelsPending(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	c, clock := newTestCoalescer(t, syncer, time.Second)

	c.OnEvent(publish())
	require.NoError(t, c.Close())

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return syncer.calls() > 0 }, quiet, tick)
	assert.False(t, c.OnEvent(publish()), "closed coalescer ignores events")
	require.NoError(t, c.Close(), "close is idempotent")
}

func TestCoalescer_CloseWaitsForRunInFlight(t *testing.T) {
	syncer := newMockSyncOrchestrator()
	syncer.block = make(chan struct{})
	c, clock := newTestCoalescer(t, syncer, time.Second)

	c.OnEvent(publish())
	clock.Advance(time.Second)
	<-syncer.synced

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()

	// Close cancels the run's context, which unblocks the mock.
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("close did not return after cancelling the run")
	}
	assert.ErrorIs(t, c.ctx.Err(), context.Canceled)
}
