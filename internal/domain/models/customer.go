package models

import (
	"time"

	"github.com/surajguptakr/grocery/internal/domain/money"
)

// Customer is a credit customer. TotalBorrowed and TotalRepaid are cached
// projections of the append-only transaction ledger and are maintained in
// the same atomic unit as every ledger insert.
type Customer struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	Email         string       `json:"email,omitempty"`
	Address       string       `json:"address,omitempty"`
	TotalBorrowed money.Amount `json:"total_borrowed"`
	TotalRepaid   money.Amount `json:"total_repaid"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Outstanding is the customer's current debt: total borrowed minus total
// repaid.
func (c *Customer) Outstanding() money.Amount {
	return c.TotalBorrowed.Sub(c.TotalRepaid)
}
