package models

import "github.com/shopspring/decimal"

// Account is a single durable account row. Version is the optimistic-concurrency
// counter; every successful balance swap increments it.
type Account struct {
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Version       int64           `json:"version"`
}
