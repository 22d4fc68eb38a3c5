package models

import (
	"time"

	"github.com/surajguptakr/grocery/internal/domain/money"
)

type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentPending  PaymentStatus = "pending"
	PaymentBorrowed PaymentStatus = "borrowed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPaid || s == PaymentPending || s == PaymentBorrowed
}

// Sale is a completed checkout. CustomerID is nil for walk-in sales.
// TotalAmount always equals the sum of the line items at their snapshot
// prices.
type Sale struct {
	ID            string        `json:"id"`
	CustomerID    *string       `json:"customer_id,omitempty"`
	TotalAmount   money.Amount  `json:"total_amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedBy     *string       `json:"created_by,omitempty"`
	Items         []SaleItem    `json:"items,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// SaleItem is one line of a sale. Price is the unit price snapshot captured
// at sale time, independent of later product price changes.
type SaleItem struct {
	ID        string       `json:"id"`
	SaleID    string       `json:"sale_id"`
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Price     money.Amount `json:"price"`
}
