// Package storage defines the persistence boundary of the engine: a Store
// of entities plus Transact, which runs a function as one atomic unit.
// Everything the engines change in a multi-step operation goes through a Tx
// so that either all row changes commit or none do.
package storage

import (
	"context"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
)

// NotificationFilter narrows ListNotifications. Nil / zero fields match
// everything.
type NotificationFilter struct {
	Type       models.NotificationType
	UserID     *string
	CustomerID *string
	UnreadOnly bool
}

// Store is the persistence interface shared by the postgres and memory
// implementations. Save and Update calls refresh the entity's timestamps as
// a side effect; unique-constraint violations surface as ErrConflict and
// absent ids as ErrNotFound.
type Store interface {
	// Users
	SaveUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Customers
	SaveCustomer(ctx context.Context, c *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	// DeleteCustomer cascades to the customer's transactions and
	// notifications and nulls out references from sales.
	DeleteCustomer(ctx context.Context, id string) error

	// Products
	SaveProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	// DeleteProduct fails with ErrConflict while sale items reference the
	// product, preserving historical pricing.
	DeleteProduct(ctx context.Context, id string) error

	// Transactions (read side; inserts go through Tx)
	ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error)

	// Sales (read side; inserts go through Tx)
	GetSale(ctx context.Context, id string) (*models.Sale, error)
	ListSales(ctx context.Context) ([]models.Sale, error)

	// Notifications
	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error

	// Transact runs fn as a single atomic unit. If fn returns an error the
	// unit rolls back completely and the error is returned unchanged.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes the primitives engines compose inside one atomic unit. Reads
// through a Tx lock the row against concurrent writers for the duration of
// the unit.
type Tx interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetSale(ctx context.Context, id string) (*models.Sale, error)

	InsertTransaction(ctx context.Context, t *models.Transaction) error

	// ListTransactions reads a customer's ledger entries under the unit's
	// locks; callers lock the customer row first via GetCustomer.
	ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error)

	// AddCustomerTotals bumps the cached ledger projections and refreshes
	// the customer's updated_at.
	AddCustomerTotals(ctx context.Context, customerID string, borrowed, repaid money.Amount) error

	// AdjustStock applies a stock delta if and only if the resulting stock
	// stays non-negative, returning the refreshed product. Fails with
	// ErrInsufficientStock otherwise, leaving the row untouched.
	AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error)

	InsertSale(ctx context.Context, s *models.Sale) error
	InsertSaleItem(ctx context.Context, it *models.SaleItem) error
	SetSalePaymentStatus(ctx context.Context, saleID string, status models.PaymentStatus) error

	InsertNotification(ctx context.Context, n *models.Notification) error
}
