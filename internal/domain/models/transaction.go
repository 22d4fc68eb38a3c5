package models

import (
	"time"

	"github.com/surajguptakr/grocery/internal/domain/money"
)

type TransactionType string

const (
	TransactionBorrow TransactionType = "borrow"
	TransactionRepay  TransactionType = "repay"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionBorrow || t == TransactionRepay
}

// Transaction is an immutable ledger entry. Entries are never updated or
// deleted except through a customer-deletion cascade.
type Transaction struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Type       TransactionType `json:"type"`
	Amount     money.Amount    `json:"amount"`
	CreatedBy  *string         `json:"created_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Signed returns the entry's contribution to the customer's outstanding
// balance: positive for borrow, negative for repay.
func (t *Transaction) Signed() money.Amount {
	if t.Type == TransactionRepay {
		return money.Zero().Sub(t.Amount)
	}
	return t.Amount
}
