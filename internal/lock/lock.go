package lock

import (
	"context"
	"time"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
)

const lockValue = "locked"

// Lock is a TTL-bounded distributed mutex backed by the coordination store.
// Acquisition sets the key only if absent; the TTL auto-releases locks held
// by crashed processes. Release deletes the key unconditionally, so it is
// the caller's responsibility to only release locks it acquired.
type Lock struct {
	store interfaces.CoordinationStore
}

func New(store interfaces.CoordinationStore) *Lock {
	return &Lock{store: store}
}

// Acquire attempts to take the lock. Returning (false, nil) means another
// holder is active; callers should treat that as a retryable condition, not
// an error.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.store.SetIfAbsent(ctx, key, lockValue, ttl)
}

// Release frees the lock regardless of holder.
func (l *Lock) Release(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}
