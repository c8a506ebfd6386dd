package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents an intent to move funds between two accounts.
// TransactionID doubles as the idempotency key.
type Transaction struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Timestamp          time.Time       `json:"timestamp"`
}
