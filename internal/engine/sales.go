package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Sales orchestrates checkouts across the inventory and ledger paths. A
// sale either applies completely — stock decrements, sale and line items,
// and the borrow transaction for borrowed sales — or not at all.
type Sales struct {
	store  storage.Store
	logger *slog.Logger
}

func NewSales(store storage.Store, logger *slog.Logger) *Sales {
	return &Sales{store: store, logger: logger}
}

// SaleLine is one requested line of a checkout.
type SaleLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SaleInput carries a checkout request. Total is optional; when supplied it
// must match the computed sum of the lines at snapshot prices, which is
// authoritative either way. CustomerID is required for borrowed sales and
// nil for walk-ins.
type SaleInput struct {
	CustomerID    *string              `json:"customer_id"`
	Items         []SaleLine           `json:"items"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Total         *money.Amount        `json:"total_amount"`
	CreatedBy     *string              `json:"-"`
}

func (in SaleInput) validate() error {
	if len(in.Items) == 0 {
		return storage.Invalid("items", "must not be empty")
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return storage.Invalid("quantity", "must be greater than zero")
		}
		if it.ProductID == "" {
			return storage.Invalid("product_id", "must not be empty")
		}
	}
	if !in.PaymentStatus.Valid() {
		return storage.Invalid("payment_status", "must be paid, pending or borrowed")
	}
	if in.PaymentStatus == models.PaymentBorrowed && in.CustomerID == nil {
		return storage.Invalid("customer_id", "customer required for borrowed sales")
	}
	return nil
}

// RecordSale applies a checkout as one atomic unit. If any line's stock
// check fails, nothing is applied: no partial sale, no partial decrement,
// no orphan transaction.
func (s *Sales) RecordSale(ctx context.Context, in SaleInput) (*models.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var sale *models.Sale
	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		if in.CustomerID != nil {
			if _, err := tx.GetCustomer(ctx, *in.CustomerID); err != nil {
				return err
			}
		}

		saleID := uuid.NewString()
		total := money.Zero()
		items := make([]models.SaleItem, 0, len(in.Items))
		for _, line := range in.Items {
			// Decrement through the inventory path so the stock guard and
			// the low-stock alert apply exactly as in a direct adjustment.
			p, err := applyStockDelta(ctx, tx, line.ProductID, -line.Quantity)
			if err != nil {
				return err
			}
			items = append(items, models.SaleItem{
				ID:        uuid.NewString(),
				SaleID:    saleID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     p.Price,
			})
			total = total.Add(p.Price.Mul(int64(line.Quantity)))
		}

		if in.Total != nil && !in.Total.Equal(total) {
			return storage.Invalid("total_amount", "does not match the sum of line items")
		}

		sale = &models.Sale{
			ID:            saleID,
			CustomerID:    in.CustomerID,
			TotalAmount:   total,
			PaymentStatus: in.PaymentStatus,
			CreatedBy:     in.CreatedBy,
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		for idx := range items {
			if err := tx.InsertSaleItem(ctx, &items[idx]); err != nil {
				return err
			}
		}
		sale.Items = items

		// A zero-priced checkout incurs no debt, so no ledger entry.
		if in.PaymentStatus == models.PaymentBorrowed && total.IsPositive() {
			if _, err := recordTransaction(ctx, tx, *in.CustomerID, models.TransactionBorrow, total, in.CreatedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale recorded",
		slog.String("sale_id", sale.ID),
		slog.String("total", sale.TotalAmount.String()),
		slog.String("payment_status", string(sale.PaymentStatus)),
		slog.Int("items", len(sale.Items)),
	)
	return sale, nil
}

func (s *Sales) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	return s.store.GetSale(ctx, id)
}

func (s *Sales) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.store.ListSales(ctx)
}

// UpdatePaymentStatus transitions a sale's payment status with the same
// atomicity as creation. Moving a pending sale to borrowed records the
// borrow transaction in the same unit; transitions away from borrowed are
// rejected because the ledger entry already exists and no reversal policy
// is defined.
func (s *Sales) UpdatePaymentStatus(ctx context.Context, saleID string, status models.PaymentStatus, updatedBy *string) (*models.Sale, error) {
	if !status.Valid() {
		return nil, storage.Invalid("payment_status", "must be paid, pending or borrowed")
	}

	var sale *models.Sale
	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		sale, err = tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.PaymentStatus == status {
			return nil
		}
		if sale.PaymentStatus == models.PaymentBorrowed {
			return storage.Invalid("payment_status", "borrowed sales cannot change status")
		}

		if status == models.PaymentBorrowed {
			if sale.CustomerID == nil {
				return storage.Invalid("customer_id", "customer required for borrowed sales")
			}
			if sale.TotalAmount.IsPositive() {
				if _, err := recordTransaction(ctx, tx, *sale.CustomerID, models.TransactionBorrow, sale.TotalAmount, updatedBy); err != nil {
					return err
				}
			}
		}
		if err := tx.SetSalePaymentStatus(ctx, saleID, status); err != nil {
			return err
		}
		sale.PaymentStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale status updated",
		slog.String("sale_id", saleID),
		slog.String("payment_status", string(status)),
	)
	return sale, nil
}
