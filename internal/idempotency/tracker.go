package idempotency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
)

const (
	keyPrefix       = "transaction:idempotent:"
	startTimeSuffix = ":starttime"

	statusProcessing = "processing"
	statusProcessed  = "processed"

	// RetentionTTL bounds how long idempotency markers are kept. After it
	// expires a transaction is indistinguishable from "never attempted" by
	// the tracker alone; the durable transaction log is the historical
	// source of truth.
	RetentionTTL = 48 * time.Hour

	// ProcessingTimeout is how long a transaction may sit in processing
	// before callers and the sweeper are allowed to reclaim it.
	ProcessingTimeout = 5 * time.Minute
)

// Status is the tracker's view of a transaction id.
type Status int

const (
	StatusAbsent Status = iota
	StatusProcessing
	StatusProcessed
)

// State is the result of a status query. Elapsed is the time since admission
// and is meaningful only when StartTimeOK is true.
type State struct {
	Status         Status
	Elapsed        time.Duration
	StartTimeFound bool // a start-time entry exists
	StartTimeOK    bool // the entry parsed as a timestamp
}

// Tracker records whether a transaction id is untouched, in-flight, or
// completed. It is the durable decision point that prevents double-applying
// a transfer even when the distributed lock's TTL let a second holder in.
type Tracker struct {
	store interfaces.CoordinationStore
	now   func() time.Time
}

func NewTracker(store interfaces.CoordinationStore) *Tracker {
	return NewTrackerWithClock(store, time.Now)
}

// NewTrackerWithClock creates a Tracker with an injected clock for tests.
func NewTrackerWithClock(store interfaces.CoordinationStore, now func() time.Time) *Tracker {
	return &Tracker{store: store, now: now}
}

// Begin admits a transaction: status becomes processing and the admission
// time is recorded, both retained for RetentionTTL. Overwrites any previous
// marker for the same id.
func (t *Tracker) Begin(ctx context.Context, transactionID string) error {
	key := statusKey(transactionID)
	if err := t.store.Set(ctx, key, statusProcessing, RetentionTTL); err != nil {
		return fmt.Errorf("idempotency: begin %s: %w", transactionID, err)
	}
	startTime := t.now().Format(time.RFC3339Nano)
	if err := t.store.Set(ctx, key+startTimeSuffix, startTime, RetentionTTL); err != nil {
		return fmt.Errorf("idempotency: begin %s: %w", transactionID, err)
	}
	return nil
}

// Complete marks a transaction processed and drops its start time. Processed
// is terminal until RetentionTTL expires the marker.
func (t *Tracker) Complete(ctx context.Context, transactionID string) error {
	key := statusKey(transactionID)
	if err := t.store.Set(ctx, key, statusProcessed, RetentionTTL); err != nil {
		return fmt.Errorf("idempotency: complete %s: %w", transactionID, err)
	}
	if err := t.store.Delete(ctx, key+startTimeSuffix); err != nil {
		return fmt.Errorf("idempotency: complete %s: %w", transactionID, err)
	}
	return nil
}

// Reset deletes both marker keys, returning the transaction to absent. A
// retry with the same id is then treated as a fresh attempt.
func (t *Tracker) Reset(ctx context.Context, transactionID string) error {
	key := statusKey(transactionID)
	if err := t.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("idempotency: reset %s: %w", transactionID, err)
	}
	if err := t.store.Delete(ctx, key+startTimeSuffix); err != nil {
		return fmt.Errorf("idempotency: reset %s: %w", transactionID, err)
	}
	return nil
}

// Status reports the current state of a transaction id.
func (t *Tracker) Status(ctx context.Context, transactionID string) (State, error) {
	key := statusKey(transactionID)

	flag, found, err := t.store.Get(ctx, key)
	if err != nil {
		return State{}, fmt.Errorf("idempotency: status %s: %w", transactionID, err)
	}
	if !found {
		return State{Status: StatusAbsent}, nil
	}

	switch flag {
	case statusProcessed:
		return State{Status: StatusProcessed}, nil
	case statusProcessing:
		state := State{Status: StatusProcessing}
		raw, found, err := t.store.Get(ctx, key+startTimeSuffix)
		if err != nil {
			return State{}, fmt.Errorf("idempotency: status %s: %w", transactionID, err)
		}
		if !found {
			return state, nil
		}
		state.StartTimeFound = true
		startTime, parseErr := time.Parse(time.RFC3339Nano, raw)
		if parseErr != nil {
			return state, nil
		}
		state.StartTimeOK = true
		state.Elapsed = t.now().Sub(startTime)
		return state, nil
	default:
		// Unknown sentinel, treat as absent.
		return State{Status: StatusAbsent}, nil
	}
}

// IsProcessed reports whether the transaction has completed successfully.
func (t *Tracker) IsProcessed(ctx context.Context, transactionID string) (bool, error) {
	state, err := t.Status(ctx, transactionID)
	if err != nil {
		return false, err
	}
	return state.Status == StatusProcessed, nil
}

// TransactionIDs enumerates every transaction id currently tracked.
func (t *Tracker) TransactionIDs(ctx context.Context) ([]string, error) {
	keys, err := t.store.ScanKeys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("idempotency: scan: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, startTimeSuffix) {
			continue
		}
		ids = append(ids, strings.TrimPrefix(key, keyPrefix))
	}
	return ids, nil
}

func statusKey(transactionID string) string {
	return keyPrefix + transactionID
}
