package interfaces

import (
	"context"
	"time"
)

// CoordinationStore is the shared key-value store all cross-instance
// coordination flows through. A ttl of zero or less means no expiry.
type CoordinationStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
}
