package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
)

// ErrEmptyBatch is returned when ProcessBatch receives no transactions.
var ErrEmptyBatch = errors.New("orchestrator: at least one transaction is required")

// ProcessBatch runs the transfers sequentially in input order. Items already
// marked processed get a synthesized success without re-invoking the
// orchestrator; a failure in one item never aborts the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, transactions []models.Transaction) (models.BatchResult, error) {
	if len(transactions) == 0 {
		return models.BatchResult{}, ErrEmptyBatch
	}

	batch := models.BatchResult{
		BatchID:           uuid.New().String(),
		TotalTransactions: len(transactions),
		Results:           make([]models.TransactionResult, 0, len(transactions)),
	}

	for i := range transactions {
		result := o.processBatchItem(ctx, transactions[i])
		batch.Results = append(batch.Results, result)
		if result.Success {
			batch.SuccessfulTransactions++
		} else {
			batch.FailedTransactions++
		}
	}

	o.logger.Info("batch processing completed",
		zap.String("batch_id", batch.BatchID),
		zap.Int("total", batch.TotalTransactions),
		zap.Int("successful", batch.SuccessfulTransactions),
		zap.Int("failed", batch.FailedTransactions))
	return batch, nil
}

// processBatchItem converts a panic while processing one item into a failed
// result for that item only.
func (o *Orchestrator) processBatchItem(ctx context.Context, tx models.Transaction) (result models.TransactionResult) {
	defer func() {
		if r := recover(); r != nil {
			transactionID := tx.TransactionID
			if transactionID == "" {
				transactionID = "unknown"
			}
			o.logger.Error("panic while processing batch item",
				zap.String("transaction_id", transactionID), zap.Any("panic", r))
			result = models.NewFailedResult(transactionID,
				fmt.Sprintf("Unexpected error: %v", r), models.CodeInternal)
		}
	}()

	if tx.TransactionID == "" {
		tx.TransactionID = uuid.New().String()
	}
	if o.IsTransactionProcessed(ctx, tx.TransactionID) {
		return models.NewTransactionResult(tx.TransactionID, true, "Already processed")
	}
	return o.ProcessTransaction(ctx, tx)
}
