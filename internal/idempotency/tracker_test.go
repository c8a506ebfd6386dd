package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/coordination/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestTracker() (*Tracker, *memory.Store, *fakeClock) {
	clock := &fakeClock{t: time.Now()}
	store := memory.NewStoreWithClock(clock.Now)
	return NewTrackerWithClock(store, clock.Now), store, clock
}

func TestStatusAbsent(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker()

	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, state.Status)
}

func TestBeginMarksProcessing(t *testing.T) {
	ctx := context.Background()
	tracker, _, clock := newTestTracker()

	require.NoError(t, tracker.Begin(ctx, "tx-1"))

	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, state.Status)
	assert.True(t, state.StartTimeFound)
	assert.True(t, state.StartTimeOK)
	assert.Equal(t, time.Duration(0), state.Elapsed)

	clock.Advance(3 * time.Minute)

	state, err = tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, state.Elapsed)
}

func TestCompleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	tracker, store, _ := newTestTracker()

	require.NoError(t, tracker.Begin(ctx, "tx-1"))
	require.NoError(t, tracker.Complete(ctx, "tx-1"))

	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, state.Status)

	// Completion drops the start-time companion key.
	_, found, err := store.Get(ctx, keyPrefix+"tx-1"+startTimeSuffix)
	require.NoError(t, err)
	assert.False(t, found)

	processed, err := tracker.IsProcessed(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestResetReturnsToAbsent(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker()

	require.NoError(t, tracker.Begin(ctx, "tx-1"))
	require.NoError(t, tracker.Reset(ctx, "tx-1"))

	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, state.Status)
}

func TestStatusOrphanedProcessing(t *testing.T) {
	ctx := context.Background()
	tracker, store, _ := newTestTracker()

	// Processing marker without a start-time entry.
	require.NoError(t, store.Set(ctx, keyPrefix+"tx-1", statusProcessing, 0))

	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, state.Status)
	assert.False(t, state.StartTimeFound)
	assert.False(t, state.StartTimeOK)
}

func TestStatusUnreadableStartTime(t *testing.T) {
	ctx := context.Background()
	tracker, store, _ := newTestTracker()

	require.NoError(t, store.Set(ctx, keyPrefix+"tx-1", statusProcessing, 0))
	require.NoError(t, store.Set(ctx, keyPrefix+"tx-1"+startTimeSuffix, "not-a-timestamp", 0))

	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, state.Status)
	assert.True(t, state.StartTimeFound)
	assert.False(t, state.StartTimeOK)
}

func TestRetentionExpiry(t *testing.T) {
	ctx := context.Background()
	tracker, _, clock := newTestTracker()

	require.NoError(t, tracker.Begin(ctx, "tx-1"))
	require.NoError(t, tracker.Complete(ctx, "tx-1"))

	clock.Advance(RetentionTTL + time.Hour)

	// Past retention the transaction is indistinguishable from never
	// attempted.
	state, err := tracker.Status(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, state.Status)
}

func TestTransactionIDs(t *testing.T) {
	ctx := context.Background()
	tracker, store, _ := newTestTracker()

	require.NoError(t, tracker.Begin(ctx, "tx-1"))
	require.NoError(t, tracker.Begin(ctx, "tx-2"))
	require.NoError(t, tracker.Complete(ctx, "tx-2"))
	require.NoError(t, store.Set(ctx, "unrelated:key", "x", 0))

	ids, err := tracker.TransactionIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tx-1", "tx-2"}, ids)
}
