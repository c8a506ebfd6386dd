package interfaces

import (
	"context"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
)

// TransactionLog is the append-only record of completed transfers.
// FindByTransactionID returns (nil, nil) when no record exists.
type TransactionLog interface {
	Append(ctx context.Context, tx models.Transaction) error
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	FindAll(ctx context.Context) ([]models.Transaction, error)
}
