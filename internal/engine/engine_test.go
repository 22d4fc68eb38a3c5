package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage/memory"
)

type testEngines struct {
	store         *memory.Store
	entities      *Entities
	ledger        *Ledger
	inventory     *Inventory
	sales         *Sales
	notifications *Notifications
}

func newTestEngines(t *testing.T) *testEngines {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEngines{
		store:         store,
		entities:      NewEntities(store, logger),
		ledger:        NewLedger(store, logger),
		inventory:     NewInventory(store, logger),
		sales:         NewSales(store, logger),
		notifications: NewNotifications(store, logger),
	}
}

func (te *testEngines) mustCustomer(t *testing.T, name, phone string) *models.Customer {
	t.Helper()
	c, err := te.entities.CreateCustomer(context.Background(), CustomerInput{Name: name, Phone: phone})
	require.NoError(t, err)
	return c
}

func (te *testEngines) mustProduct(t *testing.T, name, price string, stock, threshold int) *models.Product {
	t.Helper()
	p, err := te.entities.CreateProduct(context.Background(), ProductInput{
		Name:              name,
		Category:          "grocery",
		Price:             money.MustParse(price),
		Stock:             stock,
		LowStockThreshold: &threshold,
	})
	require.NoError(t, err)
	return p
}
