package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
)

const (
	cacheKeyPrefix  = "accounts::"
	accountCacheTTL = time.Hour
)

// Ledger owns per-account balance reads and writes against the durable store,
// with a read-through cache in the coordination store. Cache writes are best
// effort; a cache failure never fails the underlying operation.
type Ledger struct {
	store  interfaces.AccountStore
	cache  interfaces.CoordinationStore
	logger *zap.Logger
}

func New(store interfaces.AccountStore, cache interfaces.CoordinationStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, cache: cache, logger: logger}
}

// FindByAccountNumber returns the account, consulting the cache first and
// populating it on a durable-store hit. Returns (nil, nil) when the account
// does not exist.
func (l *Ledger) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	if account := l.fromCache(ctx, accountNumber); account != nil {
		return account, nil
	}

	account, err := l.store.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("ledger: find account %s: %w", accountNumber, err)
	}
	if account == nil {
		return nil, nil
	}

	l.RefreshCache(ctx, account)
	return account, nil
}

// UpdateAccount writes the full entity through to the durable store and
// refreshes the cache. This bypasses the balance executor's retry path and
// is meant for callers that already hold the updated entity.
func (l *Ledger) UpdateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if err := l.store.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("ledger: update account %s: %w", account.AccountNumber, err)
	}
	l.RefreshCache(ctx, account)
	return account, nil
}

// LoadFresh reads the account directly from the durable store, bypassing the
// cache. The compare-and-swap path must see the current version, which a
// cached copy cannot guarantee.
func (l *Ledger) LoadFresh(ctx context.Context, accountNumber string) (*models.Account, error) {
	account, err := l.store.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("ledger: load account %s: %w", accountNumber, err)
	}
	return account, nil
}

// CompareAndSwapBalance applies newBalance only if the stored version is
// unchanged.
func (l *Ledger) CompareAndSwapBalance(ctx context.Context, accountNumber string, expectedVersion int64, newBalance decimal.Decimal) (bool, error) {
	swapped, err := l.store.CompareAndSwapBalance(ctx, accountNumber, expectedVersion, newBalance)
	if err != nil {
		return false, fmt.Errorf("ledger: swap balance %s: %w", accountNumber, err)
	}
	return swapped, nil
}

// RefreshCache overwrites the cache entry for the account. Best effort.
func (l *Ledger) RefreshCache(ctx context.Context, account *models.Account) {
	payload, err := json.Marshal(account)
	if err != nil {
		l.logger.Warn("failed to encode account for cache",
			zap.String("account_number", account.AccountNumber), zap.Error(err))
		return
	}
	if err := l.cache.Set(ctx, cacheKeyPrefix+account.AccountNumber, string(payload), accountCacheTTL); err != nil {
		l.logger.Warn("failed to refresh account cache",
			zap.String("account_number", account.AccountNumber), zap.Error(err))
	}
}

func (l *Ledger) fromCache(ctx context.Context, accountNumber string) *models.Account {
	payload, found, err := l.cache.Get(ctx, cacheKeyPrefix+accountNumber)
	if err != nil {
		l.logger.Warn("account cache read failed",
			zap.String("account_number", accountNumber), zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var account models.Account
	if err := json.Unmarshal([]byte(payload), &account); err != nil {
		l.logger.Warn("corrupt account cache entry",
			zap.String("account_number", accountNumber), zap.Error(err))
		return nil
	}
	return &account
}
