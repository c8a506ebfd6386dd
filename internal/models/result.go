package models

// Error codes carried by TransactionResult. Kept as strings so results pass
// through the wire layer unchanged; the HTTP layer maps them to status codes.
const (
	CodeValidation = "400"
	CodeNotFound   = "404"
	CodeTimeout    = "408"
	CodeConflict   = "409"
	CodeInternal   = "500"
)

// TransactionResult is the synchronous outcome of a single transfer attempt.
// It is a value type, never persisted.
type TransactionResult struct {
	TransactionID string `json:"transaction_id"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ErrorCode     string `json:"error_code,omitempty"`
}

func NewTransactionResult(transactionID string, success bool, message string) TransactionResult {
	return TransactionResult{
		TransactionID: transactionID,
		Success:       success,
		Message:       message,
	}
}

func NewFailedResult(transactionID, message, errorCode string) TransactionResult {
	return TransactionResult{
		TransactionID: transactionID,
		Message:       message,
		ErrorCode:     errorCode,
	}
}

// BatchResult aggregates per-item outcomes of a batch submission.
// Results preserves input order.
type BatchResult struct {
	BatchID                string              `json:"batch_id"`
	TotalTransactions      int                 `json:"total_transactions"`
	SuccessfulTransactions int                 `json:"successful_transactions"`
	FailedTransactions     int                 `json:"failed_transactions"`
	Results                []TransactionResult `json:"results"`
}
