package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
)

// Store is the postgres implementation of the durable account store and
// transaction log.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	const query = `SELECT account_number, balance, version FROM accounts WHERE account_number = $1`

	var account models.Account
	err := s.db.QueryRowContext(ctx, query, accountNumber).Scan(
		&account.AccountNumber,
		&account.Balance,
		&account.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) CompareAndSwapBalance(ctx context.Context, accountNumber string, expectedVersion int64, newBalance decimal.Decimal) (bool, error) {
	const query = `UPDATE accounts SET balance = $1, version = version + 1
	WHERE account_number = $2 AND version = $3`

	result, err := s.db.ExecContext(ctx, query, newBalance, accountNumber, expectedVersion)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store) Save(ctx context.Context, account *models.Account) error {
	const query = `INSERT INTO accounts (account_number, balance, version)
	VALUES ($1, $2, $3)
	ON CONFLICT (account_number) DO UPDATE SET balance = EXCLUDED.balance, version = EXCLUDED.version`

	_, err := s.db.ExecContext(ctx, query, account.AccountNumber, account.Balance, account.Version)
	return err
}

func (s *Store) Append(ctx context.Context, tx models.Transaction) error {
	const query = `INSERT INTO transactions (transaction_id, source_account, destination_account, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, tx.TransactionID, tx.SourceAccount, tx.DestinationAccount, tx.Amount, tx.Timestamp)
	return err
}

func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	const query = `SELECT transaction_id, source_account, destination_account, amount, created_at
	FROM transactions WHERE transaction_id = $1 LIMIT 1`

	var tx models.Transaction
	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(
		&tx.TransactionID,
		&tx.SourceAccount,
		&tx.DestinationAccount,
		&tx.Amount,
		&tx.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) FindAll(ctx context.Context) ([]models.Transaction, error) {
	const query = `SELECT transaction_id, source_account, destination_account, amount, created_at FROM transactions`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.TransactionID, &tx.SourceAccount, &tx.DestinationAccount, &tx.Amount, &tx.Timestamp); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// Compile-time checks: Store implements both durable interfaces.
var (
	_ interfaces.AccountStore   = (*Store)(nil)
	_ interfaces.TransactionLog = (*Store)(nil)
)
