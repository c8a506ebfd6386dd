package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
)

// Store is an in-memory implementation of the durable account store and
// transaction log. Thread-safe; intended for local runs and tests.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	transactions []models.Transaction
	txIndex      map[string]int // transaction id -> position in transactions
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]models.Account),
		txIndex:  make(map[string]int),
	}
}

func (s *Store) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountNumber]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (s *Store) CompareAndSwapBalance(ctx context.Context, accountNumber string, expectedVersion int64, newBalance decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountNumber]
	if !ok || account.Version != expectedVersion {
		return false, nil
	}
	account.Balance = newBalance
	account.Version++
	s.accounts[accountNumber] = account
	return true, nil
}

func (s *Store) Save(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.AccountNumber] = *account
	return nil
}

func (s *Store) Append(ctx context.Context, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txIndex[tx.TransactionID] = len(s.transactions)
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.txIndex[transactionID]
	if !ok {
		return nil, nil
	}
	tx := s.transactions[pos]
	return &tx, nil
}

func (s *Store) FindAll(ctx context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.Transaction, len(s.transactions))
	copy(copied, s.transactions)
	return copied, nil
}

// Compile-time checks: Store implements both durable interfaces.
var (
	_ interfaces.AccountStore   = (*Store)(nil)
	_ interfaces.TransactionLog = (*Store)(nil)
)
