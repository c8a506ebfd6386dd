package interfaces

import (
	"context"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
	"github.com/shopspring/decimal"
)

// AccountStore is the durable account table. FindByAccountNumber returns
// (nil, nil) when the account does not exist.
type AccountStore interface {
	FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	// CompareAndSwapBalance writes newBalance and bumps the version, but only
	// if the stored version still equals expectedVersion. Returns false on a
	// version conflict or a missing row.
	CompareAndSwapBalance(ctx context.Context, accountNumber string, expectedVersion int64, newBalance decimal.Decimal) (bool, error)
	Save(ctx context.Context, account *models.Account) error
}
