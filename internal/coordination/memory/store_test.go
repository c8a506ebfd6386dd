package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "k", "v", 0))

	value, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	ok, err := store.SetIfAbsent(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", value)
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	store := NewStoreWithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	clock.Advance(2 * time.Minute)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// An expired key no longer blocks set-if-absent.
	ok, err := store.SetIfAbsent(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing key is a no-op.
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestScanKeys(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	store := NewStoreWithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "tx:a", "1", 0))
	require.NoError(t, store.Set(ctx, "tx:b", "2", time.Minute))
	require.NoError(t, store.Set(ctx, "other:c", "3", 0))

	keys, err := store.ScanKeys(ctx, "tx:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tx:a", "tx:b"}, keys)

	clock.Advance(2 * time.Minute)

	keys, err = store.ScanKeys(ctx, "tx:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tx:a"}, keys)
}
