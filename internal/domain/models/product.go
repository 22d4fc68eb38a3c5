package models

import (
	"time"

	"github.com/surajguptakr/grocery/internal/domain/money"
)

const (
	DefaultLowStockThreshold = 20
	DefaultUnit              = "piece"
)

// Product is a stocked item. Stock never goes negative; the storage layer
// enforces the check-and-decrement atomically.
type Product struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Category          string       `json:"category"`
	Price             money.Amount `json:"price"`
	Stock             int          `json:"stock"`
	LowStockThreshold int          `json:"low_stock_threshold"`
	Unit              string       `json:"unit"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
