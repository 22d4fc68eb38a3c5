package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage"
)

func TestRecordSalePaid(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	apples := te.mustProduct(t, "Apples", "5.00", 30, 5)
	honey := te.mustProduct(t, "Honey", "10.00", 8, 2)

	sale, err := te.sales.RecordSale(ctx, SaleInput{
		Items: []SaleLine{
			{ProductID: apples.ID, Quantity: 3},
			{ProductID: honey.ID, Quantity: 1},
		},
		PaymentStatus: models.PaymentPaid,
	})
	require.NoError(t, err)
	require.Equal(t, "25.00", sale.TotalAmount.String())
	require.Nil(t, sale.CustomerID)
	require.Len(t, sale.Items, 2)

	got, err := te.sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, got.PaymentStatus)
	require.Len(t, got.Items, 2)

	a, err := te.entities.GetProduct(ctx, apples.ID)
	require.NoError(t, err)
	require.Equal(t, 27, a.Stock)
	h, err := te.entities.GetProduct(ctx, honey.ID)
	require.NoError(t, err)
	require.Equal(t, 7, h.Stock)
}

func TestRecordSaleBorrowedWritesLedger(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	c := te.mustCustomer(t, "Anil", "555-2000")
	p := te.mustProduct(t, "Oil", "12.50", 10, 2)

	sale, err := te.sales.RecordSale(ctx, SaleInput{
		CustomerID:    &c.ID,
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 2}},
		PaymentStatus: models.PaymentBorrowed,
	})
	require.NoError(t, err)
	require.Equal(t, "25.00", sale.TotalAmount.String())

	got, err := te.entities.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "25.00", got.TotalBorrowed.String())
	require.Equal(t, "25.00", got.Outstanding().String())

	entries, err := te.ledger.Statement(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.TransactionBorrow, entries[0].Type)
	require.Equal(t, "25.00", entries[0].Amount.String())
}

func TestRecordSaleBorrowedZeroTotal(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	c := te.mustCustomer(t, "Veena", "555-2003")
	free := te.mustProduct(t, "Sample Pack", "0.00", 10, 2)

	sale, err := te.sales.RecordSale(ctx, SaleInput{
		CustomerID:    &c.ID,
		Items:         []SaleLine{{ProductID: free.ID, Quantity: 1}},
		PaymentStatus: models.PaymentBorrowed,
	})
	require.NoError(t, err)
	require.True(t, sale.TotalAmount.IsZero())

	// no debt, so no ledger entry and nothing to reconcile against
	entries, err := te.ledger.Statement(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	got, err := te.entities.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.TotalBorrowed.IsZero())

	rec, err := te.ledger.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, rec.Consistent)

	// the same applies when a zero-total pending sale turns borrowed
	pending, err := te.sales.RecordSale(ctx, SaleInput{
		CustomerID:    &c.ID,
		Items:         []SaleLine{{ProductID: free.ID, Quantity: 2}},
		PaymentStatus: models.PaymentPending,
	})
	require.NoError(t, err)
	_, err = te.sales.UpdatePaymentStatus(ctx, pending.ID, models.PaymentBorrowed, nil)
	require.NoError(t, err)

	entries, err = te.ledger.Statement(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSaleItemPriceIsSnapshot(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	p := te.mustProduct(t, "Butter", "3.00", 10, 2)

	sale, err := te.sales.RecordSale(ctx, SaleInput{
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 1}},
		PaymentStatus: models.PaymentPaid,
	})
	require.NoError(t, err)

	threshold := p.LowStockThreshold
	_, err = te.entities.UpdateProduct(ctx, p.ID, ProductInput{
		Name:              p.Name,
		Category:          p.Category,
		Price:             money.MustParse("4.50"),
		Stock:             9,
		LowStockThreshold: &threshold,
		Unit:              p.Unit,
	})
	require.NoError(t, err)

	got, err := te.sales.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, "3.00", got.Items[0].Price.String())
	require.Equal(t, "3.00", got.TotalAmount.String())
}

func TestRecordSaleInsufficientStockRollsBack(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	c := te.mustCustomer(t, "Kiran", "555-2001")
	plenty := te.mustProduct(t, "Bread", "2.00", 50, 5)
	scarce := te.mustProduct(t, "Ghee", "15.00", 1, 1)

	_, err := te.sales.RecordSale(ctx, SaleInput{
		CustomerID: &c.ID,
		Items: []SaleLine{
			{ProductID: plenty.ID, Quantity: 10},
			{ProductID: scarce.ID, Quantity: 3},
		},
		PaymentStatus: models.PaymentBorrowed,
	})
	require.ErrorIs(t, err, storage.ErrInsufficientStock)

	// the first line's decrement did not stick
	b, err := te.entities.GetProduct(ctx, plenty.ID)
	require.NoError(t, err)
	require.Equal(t, 50, b.Stock)
	g, err := te.entities.GetProduct(ctx, scarce.ID)
	require.NoError(t, err)
	require.Equal(t, 1, g.Stock)

	// no sale, no ledger entry, no notification
	sales, err := te.sales.ListSales(ctx)
	require.NoError(t, err)
	require.Empty(t, sales)
	got, err := te.entities.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.TotalBorrowed.IsZero())
	ns, err := te.notifications.List(ctx, storage.NotificationFilter{})
	require.NoError(t, err)
	require.Empty(t, ns)
}

func TestRecordSaleValidation(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	p := te.mustProduct(t, "Jam", "6.00", 10, 2)

	var ve *storage.ValidationError

	_, err := te.sales.RecordSale(ctx, SaleInput{PaymentStatus: models.PaymentPaid})
	require.ErrorAs(t, err, &ve)

	_, err = te.sales.RecordSale(ctx, SaleInput{
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 0}},
		PaymentStatus: models.PaymentPaid,
	})
	require.ErrorAs(t, err, &ve)

	_, err = te.sales.RecordSale(ctx, SaleInput{
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 1}},
		PaymentStatus: "card",
	})
	require.ErrorAs(t, err, &ve)

	// borrowed needs a customer
	_, err = te.sales.RecordSale(ctx, SaleInput{
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 1}},
		PaymentStatus: models.PaymentBorrowed,
	})
	require.ErrorAs(t, err, &ve)

	// a supplied total must match the computed sum
	wrong := money.MustParse("5.00")
	_, err = te.sales.RecordSale(ctx, SaleInput{
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 1}},
		PaymentStatus: models.PaymentPaid,
		Total:         &wrong,
	})
	require.ErrorAs(t, err, &ve)

	right := money.MustParse("6.00")
	_, err = te.sales.RecordSale(ctx, SaleInput{
		Items:         []SaleLine{{ProductID: p.ID, Quantity: 1}},
		PaymentStatus: models.PaymentPaid,
		Total:         &right,
	})
	require.NoError(t, err)
}

func TestConcurrentSalesLastUnit(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	p := te.mustProduct(t, "Cake", "20.00", 1, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = te.sales.RecordSale(ctx, SaleInput{
				Items:         []SaleLine{{ProductID: p.ID, Quantity: 1}},
				PaymentStatus: models.PaymentPaid,
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, storage.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, insufficient)

	got, err := te.entities.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.Stock)

	sales, err := te.sales.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 1)
}

func TestUpdatePaymentStatus(t *testing.T) {
	te := newTestEngines(t)
	ctx := context.Background()
	c := te.mustCustomer(t, "Lata", "555-2002")
	p := te.mustProduct(t, "Soap", "1.00", 100, 5)

	newPending := func(customer *string) *models.Sale {
		s, err := te.sales.RecordSale(ctx, SaleInput{
			CustomerID:    customer,
			Items:         []SaleLine{{ProductID: p.ID, Quantity: 2}},
			PaymentStatus: models.PaymentPending,
		})
		require.NoError(t, err)
		return s
	}

	// pending -> paid
	s1 := newPending(&c.ID)
	got, err := te.sales.UpdatePaymentStatus(ctx, s1.ID, models.PaymentPaid, nil)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, got.PaymentStatus)

	// pending -> borrowed records the borrow entry
	s2 := newPending(&c.ID)
	_, err = te.sales.UpdatePaymentStatus(ctx, s2.ID, models.PaymentBorrowed, nil)
	require.NoError(t, err)
	cust, err := te.entities.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "2.00", cust.TotalBorrowed.String())

	// borrowed sales are terminal
	var ve *storage.ValidationError
	_, err = te.sales.UpdatePaymentStatus(ctx, s2.ID, models.PaymentPaid, nil)
	require.ErrorAs(t, err, &ve)

	// same-status update is a no-op
	got, err = te.sales.UpdatePaymentStatus(ctx, s1.ID, models.PaymentPaid, nil)
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, got.PaymentStatus)

	// a walk-in sale cannot become borrowed
	s3 := newPending(nil)
	_, err = te.sales.UpdatePaymentStatus(ctx, s3.ID, models.PaymentBorrowed, nil)
	require.ErrorAs(t, err, &ve)

	_, err = te.sales.UpdatePaymentStatus(ctx, "missing", models.PaymentPaid, nil)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
