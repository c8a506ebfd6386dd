package executor

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/ledger"
)

const (
	maxAttempts    = 3
	retryBaseDelay = 100 * time.Millisecond
)

// Executor applies signed balance deltas to single accounts. Same-process
// contention is serialized by a per-account mutex; cross-process contention
// is resolved by the durable store's version check, retried with exponential
// backoff. It does not enforce sufficient funds; callers validate that
// precondition before invoking a debit.
type Executor struct {
	ledger *ledger.Ledger
	logger *zap.Logger

	muMap map[string]*sync.Mutex // per-account locks, created on demand
	mapMu sync.Mutex             // protects muMap itself

	sleep func(time.Duration)
}

func New(accountLedger *ledger.Ledger, logger *zap.Logger) *Executor {
	return NewWithSleep(accountLedger, logger, time.Sleep)
}

// NewWithSleep creates an Executor with an injected sleep for tests.
func NewWithSleep(accountLedger *ledger.Ledger, logger *zap.Logger, sleep func(time.Duration)) *Executor {
	return &Executor{
		ledger: accountLedger,
		logger: logger,
		muMap:  make(map[string]*sync.Mutex),
		sleep:  sleep,
	}
}

func (e *Executor) getAccountLock(accountNumber string) *sync.Mutex {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	if _, exists := e.muMap[accountNumber]; !exists {
		e.muMap[accountNumber] = &sync.Mutex{}
	}
	return e.muMap[accountNumber]
}

// Apply adds delta to the account's balance. Returns false when the account
// is missing, the store errors, or the version check keeps failing after all
// retries; it never panics past this boundary.
func (e *Executor) Apply(ctx context.Context, accountNumber string, delta decimal.Decimal) bool {
	mu := e.getAccountLock(accountNumber)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			e.sleep(retryBaseDelay << (attempt - 1))
		}

		account, err := e.ledger.LoadFresh(ctx, accountNumber)
		if err != nil {
			e.logger.Error("balance update read failed",
				zap.String("account_number", accountNumber), zap.Error(err))
			return false
		}
		if account == nil {
			e.logger.Warn("account not found for balance update",
				zap.String("account_number", accountNumber))
			return false
		}

		newBalance := account.Balance.Add(delta)
		swapped, err := e.ledger.CompareAndSwapBalance(ctx, accountNumber, account.Version, newBalance)
		if err != nil {
			e.logger.Error("balance update write failed",
				zap.String("account_number", accountNumber), zap.Error(err))
			return false
		}
		if swapped {
			account.Balance = newBalance
			account.Version++
			e.ledger.RefreshCache(ctx, account)
			e.logger.Info("account balance updated",
				zap.String("account_number", accountNumber),
				zap.String("delta", delta.String()),
				zap.String("new_balance", newBalance.String()))
			return true
		}

		e.logger.Debug("balance version conflict, retrying",
			zap.String("account_number", accountNumber), zap.Int("attempt", attempt+1))
	}

	e.logger.Warn("balance update retries exhausted",
		zap.String("account_number", accountNumber), zap.String("delta", delta.String()))
	return false
}
