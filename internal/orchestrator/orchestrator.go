package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/executor"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/idempotency"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/interfaces"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/ledger"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/lock"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models"
	"github.com/sheikh-saqib/distributed-transaction-orchestrator/internal/models/events"
)

const (
	lockKeyPrefix  = "transaction:lock:"
	lockTTL        = 5 * time.Minute
	completedTopic = "transaction_completed"
)

// Orchestrator drives a single transfer end to end: distributed lock,
// idempotency admission, debit/credit with compensation on partial failure,
// durable record, and idempotency finalization. Every outcome is returned as
// a TransactionResult; nothing escapes its public surface as an error.
type Orchestrator struct {
	locks     *lock.Lock
	tracker   *idempotency.Tracker
	ledger    *ledger.Ledger
	executor  *executor.Executor
	txLog     interfaces.TransactionLog
	publisher interfaces.EventPublisher // optional
	logger    *zap.Logger
	now       func() time.Time
}

type Params struct {
	Locks          *lock.Lock
	Tracker        *idempotency.Tracker
	Ledger         *ledger.Ledger
	Executor       *executor.Executor
	TransactionLog interfaces.TransactionLog
	Publisher      interfaces.EventPublisher
	Logger         *zap.Logger
	Now            func() time.Time
}

func New(p Params) *Orchestrator {
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Orchestrator{
		locks:     p.Locks,
		tracker:   p.Tracker,
		ledger:    p.Ledger,
		executor:  p.Executor,
		txLog:     p.TransactionLog,
		publisher: p.Publisher,
		logger:    p.Logger,
		now:       p.Now,
	}
}

// ProcessTransaction applies the transfer at most once for its transaction
// id, regardless of retries or concurrent invocations.
func (o *Orchestrator) ProcessTransaction(ctx context.Context, tx models.Transaction) models.TransactionResult {
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.New().String()
	}

	lockKey := lockKeyPrefix + tx.TransactionID
	acquired, err := o.locks.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		o.logger.Error("failed to attempt transaction lock",
			zap.String("transaction_id", tx.TransactionID), zap.Error(err))
		return models.NewFailedResult(tx.TransactionID,
			"Failed to process transaction: "+err.Error(), models.CodeInternal)
	}
	if !acquired {
		o.logger.Warn("failed to acquire lock for transaction",
			zap.String("transaction_id", tx.TransactionID))
		return models.NewFailedResult(tx.TransactionID,
			"Transaction is being processed by another instance", models.CodeConflict)
	}
	defer func() {
		if err := o.locks.Release(ctx, lockKey); err != nil {
			o.logger.Error("failed to release transaction lock",
				zap.String("transaction_id", tx.TransactionID), zap.Error(err))
		}
	}()

	if tx.SourceAccount == "" || tx.DestinationAccount == "" {
		return models.NewFailedResult(tx.TransactionID,
			"Source and destination accounts are required", models.CodeValidation)
	}
	if !tx.Amount.IsPositive() {
		return models.NewFailedResult(tx.TransactionID,
			"Transaction amount must be positive", models.CodeValidation)
	}

	state, err := o.tracker.Status(ctx, tx.TransactionID)
	if err != nil {
		o.logger.Error("idempotency check failed",
			zap.String("transaction_id", tx.TransactionID), zap.Error(err))
		return models.NewFailedResult(tx.TransactionID,
			"Failed to process transaction: "+err.Error(), models.CodeInternal)
	}

	switch state.Status {
	case idempotency.StatusProcessed:
		o.logger.Info("transaction already processed",
			zap.String("transaction_id", tx.TransactionID))
		return models.NewTransactionResult(tx.TransactionID, true, "Already processed")
	case idempotency.StatusProcessing:
		if state.StartTimeOK && state.Elapsed <= idempotency.ProcessingTimeout {
			o.logger.Warn("transaction is already processing",
				zap.String("transaction_id", tx.TransactionID))
			return models.NewFailedResult(tx.TransactionID,
				"Transaction is already processing", models.CodeConflict)
		}
		if state.StartTimeOK {
			o.logger.Warn("transaction processing timeout, resetting state",
				zap.String("transaction_id", tx.TransactionID),
				zap.Duration("elapsed", state.Elapsed))
			if err := o.tracker.Reset(ctx, tx.TransactionID); err != nil {
				return o.abort(ctx, tx.TransactionID, err)
			}
		}
		// Missing or unreadable start time: admission below overwrites the
		// stale marker.
	}

	if err := o.tracker.Begin(ctx, tx.TransactionID); err != nil {
		return o.abort(ctx, tx.TransactionID, err)
	}

	return o.execute(ctx, tx)
}

// execute runs the stages after admission. Any unexpected store failure in
// here resets both idempotency keys; the business exits (account not found,
// insufficient balance, update failure) intentionally leave the marker in
// processing, to age out by timeout or the sweeper.
func (o *Orchestrator) execute(ctx context.Context, tx models.Transaction) models.TransactionResult {
	source, err := o.ledger.FindByAccountNumber(ctx, tx.SourceAccount)
	if err != nil {
		return o.abort(ctx, tx.TransactionID, err)
	}
	dest, err := o.ledger.FindByAccountNumber(ctx, tx.DestinationAccount)
	if err != nil {
		return o.abort(ctx, tx.TransactionID, err)
	}

	if source == nil {
		o.logger.Warn("source account not found",
			zap.String("transaction_id", tx.TransactionID),
			zap.String("account_number", tx.SourceAccount))
		return models.NewFailedResult(tx.TransactionID,
			"Source account not found: "+tx.SourceAccount, models.CodeNotFound)
	}
	if dest == nil {
		o.logger.Warn("destination account not found",
			zap.String("transaction_id", tx.TransactionID),
			zap.String("account_number", tx.DestinationAccount))
		return models.NewFailedResult(tx.TransactionID,
			"Destination account not found: "+tx.DestinationAccount, models.CodeNotFound)
	}

	if source.Balance.LessThan(tx.Amount) {
		o.logger.Warn("insufficient balance",
			zap.String("transaction_id", tx.TransactionID),
			zap.String("account_number", source.AccountNumber),
			zap.String("balance", source.Balance.String()),
			zap.String("amount", tx.Amount.String()))
		return models.NewFailedResult(tx.TransactionID,
			"Insufficient balance for account: "+source.AccountNumber, models.CodeValidation)
	}

	sourceUpdated := o.executor.Apply(ctx, source.AccountNumber, tx.Amount.Neg())
	destUpdated := o.executor.Apply(ctx, dest.AccountNumber, tx.Amount)

	if !sourceUpdated || !destUpdated {
		// Best-effort compensation: reverse deltas on both sides, no retry
		// beyond the executor's own. Failures here leave the ledger for
		// manual reconciliation.
		o.executor.Apply(ctx, source.AccountNumber, tx.Amount)
		o.executor.Apply(ctx, dest.AccountNumber, tx.Amount.Neg())
		o.logger.Error("transaction update failed, rolled back",
			zap.String("transaction_id", tx.TransactionID),
			zap.Bool("source_updated", sourceUpdated),
			zap.Bool("destination_updated", destUpdated))
		return models.NewFailedResult(tx.TransactionID,
			"Transaction update failed. Changes have been rolled back.", models.CodeInternal)
	}

	record := tx
	record.Timestamp = o.now()
	if err := o.txLog.Append(ctx, record); err != nil {
		return o.abort(ctx, tx.TransactionID, err)
	}
	if err := o.tracker.Complete(ctx, tx.TransactionID); err != nil {
		return o.abort(ctx, tx.TransactionID, err)
	}

	o.publishCompleted(record)
	o.logger.Info("transaction processed successfully",
		zap.String("transaction_id", tx.TransactionID))
	return models.NewTransactionResult(tx.TransactionID, true, "Success")
}

func (o *Orchestrator) abort(ctx context.Context, transactionID string, cause error) models.TransactionResult {
	if err := o.tracker.Reset(ctx, transactionID); err != nil {
		o.logger.Error("failed to reset idempotency state",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}
	o.logger.Error("unexpected error processing transaction",
		zap.String("transaction_id", transactionID), zap.Error(cause))
	return models.NewFailedResult(transactionID,
		"Failed to process transaction: "+cause.Error(), models.CodeInternal)
}

func (o *Orchestrator) publishCompleted(tx models.Transaction) {
	if o.publisher == nil {
		return
	}
	event := events.TransactionCompleted{
		TransactionID:      tx.TransactionID,
		SourceAccount:      tx.SourceAccount,
		DestinationAccount: tx.DestinationAccount,
		Amount:             tx.Amount,
		OccurredAt:         tx.Timestamp,
	}
	if err := o.publisher.Publish(completedTopic, event); err != nil {
		o.logger.Warn("failed to publish completion event",
			zap.String("transaction_id", tx.TransactionID), zap.Error(err))
	}
}

// IsTransactionProcessed reports whether the id has completed successfully.
// Store errors degrade to false.
func (o *Orchestrator) IsTransactionProcessed(ctx context.Context, transactionID string) bool {
	if transactionID == "" {
		return false
	}
	processed, err := o.tracker.IsProcessed(ctx, transactionID)
	if err != nil {
		o.logger.Error("processed check failed",
			zap.String("transaction_id", transactionID), zap.Error(err))
		return false
	}
	return processed
}

// GetTransactionResult derives the current outcome for an id from the
// tracker, falling back to the durable transaction log when the tracker has
// no entry. A log hit re-marks the tracker processed so subsequent lookups
// are served directly.
func (o *Orchestrator) GetTransactionResult(ctx context.Context, transactionID string) models.TransactionResult {
	if transactionID == "" {
		return models.NewFailedResult("unknown", "Transaction ID is required", models.CodeValidation)
	}

	state, err := o.tracker.Status(ctx, transactionID)
	if err != nil {
		o.logger.Error("failed to read idempotency state",
			zap.String("transaction_id", transactionID), zap.Error(err))
		return models.NewFailedResult(transactionID,
			"Failed to retrieve transaction result: "+err.Error(), models.CodeInternal)
	}

	switch state.Status {
	case idempotency.StatusProcessed:
		return models.NewTransactionResult(transactionID, true, "Transaction processed successfully")
	case idempotency.StatusProcessing:
		if state.StartTimeOK && state.Elapsed > idempotency.ProcessingTimeout {
			return models.NewFailedResult(transactionID,
				"Transaction processing timeout", models.CodeTimeout)
		}
		return models.NewFailedResult(transactionID,
			"Transaction is processing", models.CodeConflict)
	}

	record, err := o.txLog.FindByTransactionID(ctx, transactionID)
	if err != nil {
		o.logger.Error("transaction log lookup failed",
			zap.String("transaction_id", transactionID), zap.Error(err))
		return models.NewFailedResult(transactionID,
			"Failed to retrieve transaction result: "+err.Error(), models.CodeInternal)
	}
	if record != nil {
		if err := o.tracker.Complete(ctx, transactionID); err != nil {
			o.logger.Warn("failed to re-mark transaction processed",
				zap.String("transaction_id", transactionID), zap.Error(err))
		}
		return models.NewTransactionResult(transactionID, true, "Transaction processed successfully")
	}

	return models.NewFailedResult(transactionID, "Transaction not found", models.CodeNotFound)
}
