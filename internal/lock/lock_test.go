package lock

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

func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	l := New(memory.NewStore())

	acquired, err := l.Acquire(ctx, "lock:tx:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second holder is rejected, not errored.
	acquired, err = l.Acquire(ctx, "lock:tx:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// Independent keys do not contend.
	acquired, err = l.Acquire(ctx, "lock:tx:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, l.Release(ctx, "lock:tx:1"))

	acquired, err = l.Acquire(ctx, "lock:tx:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestTTLAutoRelease(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	l := New(memory.NewStoreWithClock(clock.Now))

	acquired, err := l.Acquire(ctx, "lock:tx:1", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	clock.Advance(6 * time.Minute)

	// A crashed holder's lock expires and frees the key.
	acquired, err = l.Acquire(ctx, "lock:tx:1", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
