package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Inventory applies stock deltas. A delta that would drive stock negative
// fails with ErrInsufficientStock; a delta that takes stock from above the
// low-stock threshold to at-or-below it emits a low_stock notification in
// the same atomic unit.
type Inventory struct {
	store  storage.Store
	logger *slog.Logger
}

func NewInventory(store storage.Store, logger *slog.Logger) *Inventory {
	return &Inventory{store: store, logger: logger}
}

// AdjustStock applies delta to the product's stock atomically.
func (i *Inventory) AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, storage.Invalid("delta", "must not be zero")
	}

	var p *models.Product
	err := i.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		p, err = applyStockDelta(ctx, tx, productID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("stock adjusted",
		slog.String("product_id", productID),
		slog.Int("delta", delta),
		slog.Int("stock", p.Stock),
	)
	return p, nil
}

// applyStockDelta is the tx-scoped stock mutation shared with the sale
// engine. The threshold check is edge-triggered: the alert fires only on
// the crossing, not on every further decrement while already low.
func applyStockDelta(ctx context.Context, tx storage.Tx, productID string, delta int) (*models.Product, error) {
	prev, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	p, err := tx.AdjustStock(ctx, productID, delta)
	if err != nil {
		return nil, err
	}

	if prev.Stock > p.LowStockThreshold && p.Stock <= p.LowStockThreshold {
		n := &models.Notification{
			ID:      uuid.NewString(),
			Message: fmt.Sprintf("%s is low on stock: %d %s left", p.Name, p.Stock, p.Unit),
			Type:    models.NotificationLowStock,
		}
		if err := tx.InsertNotification(ctx, n); err != nil {
			return nil, err
		}
	}
	return p, nil
}
