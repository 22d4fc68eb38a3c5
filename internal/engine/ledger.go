package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Ledger applies borrow/repay transactions. Every entry is inserted in the
// same atomic unit as the bump of the customer's cached totals, so the
// running balance can never diverge from the ledger.
type Ledger struct {
	store  storage.Store
	logger *slog.Logger
}

func NewLedger(store storage.Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger}
}

// RecordTransaction appends an immutable ledger entry for the customer and
// updates the cached totals atomically.
func (l *Ledger) RecordTransaction(ctx context.Context, customerID string, typ models.TransactionType, amount money.Amount, createdBy *string) (*models.Transaction, error) {
	if !typ.Valid() {
		return nil, storage.Invalid("type", "must be borrow or repay")
	}
	if !amount.IsPositive() {
		return nil, storage.Invalid("amount", "must be greater than zero")
	}

	var t *models.Transaction
	err := l.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		t, err = recordTransaction(ctx, tx, customerID, typ, amount, createdBy)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("transaction recorded",
		slog.String("customer_id", customerID),
		slog.String("type", string(typ)),
		slog.String("amount", amount.String()),
	)
	return t, nil
}

// recordTransaction is the tx-scoped ledger append, shared with the sale
// engine for borrowed sales. The customer row is locked first so the totals
// move under the same lock as the insert.
func recordTransaction(ctx context.Context, tx storage.Tx, customerID string, typ models.TransactionType, amount money.Amount, createdBy *string) (*models.Transaction, error) {
	if _, err := tx.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Type:       typ,
		Amount:     amount,
		CreatedBy:  createdBy,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}

	borrowed, repaid := money.Zero(), money.Zero()
	if typ == models.TransactionBorrow {
		borrowed = amount
	} else {
		repaid = amount
	}
	if err := tx.AddCustomerTotals(ctx, customerID, borrowed, repaid); err != nil {
		return nil, err
	}
	return t, nil
}

// Statement lists a customer's ledger entries in order, the feed for
// statements and reminder generation.
func (l *Ledger) Statement(ctx context.Context, customerID string) ([]models.Transaction, error) {
	return l.store.ListTransactions(ctx, customerID)
}

// Reconciliation is the result of checking the cached totals against the
// append-only ledger.
type Reconciliation struct {
	CustomerID        string       `json:"customer_id"`
	LedgerOutstanding money.Amount `json:"ledger_outstanding"`
	CachedOutstanding money.Amount `json:"cached_outstanding"`
	Consistent        bool         `json:"consistent"`
}

// Reconcile recomputes the signed transaction sum for a customer and
// compares it with the cached total_borrowed - total_repaid. The two must
// always agree; a divergence indicates corruption outside the engine. Both
// reads happen in one atomic unit so concurrent ledger writes cannot show
// up as a spurious divergence.
func (l *Ledger) Reconcile(ctx context.Context, customerID string) (*Reconciliation, error) {
	var (
		c       *models.Customer
		entries []models.Transaction
	)
	err := l.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		if c, err = tx.GetCustomer(ctx, customerID); err != nil {
			return err
		}
		entries, err = tx.ListTransactions(ctx, customerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	sum := money.Zero()
	for i := range entries {
		sum = sum.Add(entries[i].Signed())
	}

	rec := &Reconciliation{
		CustomerID:        customerID,
		LedgerOutstanding: sum,
		CachedOutstanding: c.Outstanding(),
		Consistent:        sum.Equal(c.Outstanding()),
	}
	if !rec.Consistent {
		l.logger.Error("ledger divergence detected",
			slog.String("customer_id", customerID),
			slog.String("ledger", rec.LedgerOutstanding.String()),
			slog.String("cached", rec.CachedOutstanding.String()),
		)
	}
	return rec, nil
}
