package recovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/idempotency"
)

// SweepInterval is the period between recovery runs.
const SweepInterval = 2 * time.Minute

// Sweeper periodically reclaims idempotency markers stuck in processing,
// typically left by a process that died mid-transfer. Each key's deletion is
// independently idempotent, so sweeps are safe to run concurrently with live
// orchestrations.
type Sweeper struct {
	tracker  *idempotency.Tracker
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(tracker *idempotency.Tracker, logger *zap.Logger) *Sweeper {
	return NewWithInterval(tracker, logger, SweepInterval)
}

func NewWithInterval(tracker *idempotency.Tracker, logger *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic sweep goroutine.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop ends the periodic sweep cooperatively: an in-flight sweep finishes
// before the goroutine exits. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			reclaimed, err := s.Sweep(context.Background())
			switch {
			case err != nil:
				s.logger.Error("transaction recovery sweep failed", zap.Error(err))
			case reclaimed > 0:
				s.logger.Info("recovered stale transactions", zap.Int("count", reclaimed))
			default:
				s.logger.Debug("no stale transactions found")
			}
		}
	}
}

// Sweep reclaims every tracked transaction stuck in processing past the
// timeout, plus orphaned processing markers that have no start time at all.
// Processed entries and fresh processing entries are left untouched.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.tracker.TransactionIDs(ctx)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, id := range ids {
		state, err := s.tracker.Status(ctx, id)
		if err != nil {
			s.logger.Warn("failed to read transaction state during sweep",
				zap.String("transaction_id", id), zap.Error(err))
			continue
		}
		if state.Status != idempotency.StatusProcessing {
			continue
		}

		switch {
		case !state.StartTimeFound:
			// Legacy marker without a start time.
			if err := s.tracker.Reset(ctx, id); err != nil {
				s.logger.Warn("failed to clean orphaned transaction",
					zap.String("transaction_id", id), zap.Error(err))
				continue
			}
			s.logger.Info("cleaned up transaction without start time",
				zap.String("transaction_id", id))
			reclaimed++
		case state.StartTimeOK && state.Elapsed > idempotency.ProcessingTimeout:
			if err := s.tracker.Reset(ctx, id); err != nil {
				s.logger.Warn("failed to reclaim stale transaction",
					zap.String("transaction_id", id), zap.Error(err))
				continue
			}
			s.logger.Info("recovered stale transaction",
				zap.String("transaction_id", id),
				zap.Duration("elapsed", state.Elapsed))
			reclaimed++
		}
	}
	return reclaimed, nil
}
