package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/coordination/memory"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
)

// countingStore tracks how often the durable store is hit.
type countingStore struct {
	accounts map[string]models.Account
	finds    int
	saves    int
}

func newCountingStore(accounts ...models.Account) *countingStore {
	s := &countingStore{accounts: make(map[string]models.Account)}
	for _, a := range accounts {
		s.accounts[a.AccountNumber] = a
	}
	return s
}

func (s *countingStore) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	s.finds++
	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (s *countingStore) CompareAndSwapBalance(ctx context.Context, accountNumber string, expectedVersion int64, newBalance decimal.Decimal) (bool, error) {
	account, ok := s.accounts[accountNumber]
	if !ok || account.Version != expectedVersion {
		return false, nil
	}
	account.Balance = newBalance
	account.Version++
	s.accounts[accountNumber] = account
	return true, nil
}

func (s *countingStore) Save(ctx context.Context, account *models.Account) error {
	s.saves++
	s.accounts[account.AccountNumber] = *account
	return nil
}

func newTestLedger(store *countingStore) *Ledger {
	return New(store, memory.NewStore(), zap.NewNop())
}

func TestFindByAccountNumberReadThrough(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(models.Account{AccountNumber: "ACC-1", Balance: decimal.NewFromInt(100)})
	l := newTestLedger(store)

	account, err := l.FindByAccountNumber(ctx, "ACC-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "100", account.Balance.String())
	assert.Equal(t, 1, store.finds)

	// Second read is served from the cache.
	account, err = l.FindByAccountNumber(ctx, "ACC-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, 1, store.finds)
}

func TestFindByAccountNumberMissing(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	l := newTestLedger(store)

	account, err := l.FindByAccountNumber(ctx, "ACC-404")
	require.NoError(t, err)
	assert.Nil(t, account)

	// Misses are not cached.
	_, err = l.FindByAccountNumber(ctx, "ACC-404")
	require.NoError(t, err)
	assert.Equal(t, 2, store.finds)
}

func TestUpdateAccountWriteThrough(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	l := newTestLedger(store)

	updated, err := l.UpdateAccount(ctx, &models.Account{AccountNumber: "ACC-1", Balance: decimal.NewFromInt(75), Version: 3})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 1, store.saves)

	// The write populated the cache, so a read skips the store.
	account, err := l.FindByAccountNumber(ctx, "ACC-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "75", account.Balance.String())
	assert.Equal(t, 0, store.finds)
}

func TestLoadFreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(models.Account{AccountNumber: "ACC-1", Balance: decimal.NewFromInt(100)})
	l := newTestLedger(store)

	_, err := l.FindByAccountNumber(ctx, "ACC-1") // populates cache
	require.NoError(t, err)

	_, err = l.LoadFresh(ctx, "ACC-1")
	require.NoError(t, err)
	_, err = l.LoadFresh(ctx, "ACC-1")
	require.NoError(t, err)
	assert.Equal(t, 3, store.finds)
}

func TestRefreshCacheOverwritesStaleEntry(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(models.Account{AccountNumber: "ACC-1", Balance: decimal.NewFromInt(100)})
	l := newTestLedger(store)

	_, err := l.FindByAccountNumber(ctx, "ACC-1")
	require.NoError(t, err)

	l.RefreshCache(ctx, &models.Account{AccountNumber: "ACC-1", Balance: decimal.NewFromInt(40), Version: 1})

	account, err := l.FindByAccountNumber(ctx, "ACC-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "40", account.Balance.String())
}
