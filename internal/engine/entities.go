// Package engine holds the business engines that apply every state change
// as an atomic, invariant-preserving unit: entity CRUD, the borrow/repay
// ledger, inventory adjustment with low-stock alerting, sale recording and
// the notification sink.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Entities is the validated CRUD layer over users, customers and products.
type Entities struct {
	store  storage.Store
	logger *slog.Logger
}

func NewEntities(store storage.Store, logger *slog.Logger) *Entities {
	return &Entities{store: store, logger: logger}
}

// UserInput carries the fields for creating a user. The password arrives in
// clear and is bcrypt-hashed before it touches storage.
type UserInput struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
	Name     string      `json:"name"`
}

func (e *Entities) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	if strings.TrimSpace(in.Username) == "" {
		return nil, storage.Invalid("username", "must not be empty")
	}
	if len(in.Password) < 8 {
		return nil, storage.Invalid("password", "must be at least 8 characters")
	}
	if !in.Role.Valid() {
		return nil, storage.Invalid("role", "must be owner or staff")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, storage.Invalid("name", "must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		Name:         in.Name,
	}
	if err := e.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}

	e.logger.Info("user created", slog.String("username", u.Username), slog.String("role", string(u.Role)))
	return u, nil
}

// Authenticate verifies a username/password pair against the stored hash.
// Failures are reported uniformly as ErrNotFound so callers cannot probe
// for usernames.
func (e *Entities) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := e.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (e *Entities) GetUser(ctx context.Context, id string) (*models.User, error) {
	return e.store.GetUser(ctx, id)
}

func (e *Entities) ListUsers(ctx context.Context) ([]models.User, error) {
	return e.store.ListUsers(ctx)
}

func (e *Entities) DeleteUser(ctx context.Context, id string) error {
	return e.store.DeleteUser(ctx, id)
}

// CustomerInput carries the editable customer fields.
type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (in CustomerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return storage.Invalid("name", "must not be empty")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return storage.Invalid("phone", "must not be empty")
	}
	return nil
}

func (e *Entities) CreateCustomer(ctx context.Context, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &models.Customer{
		ID:      uuid.NewString(),
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   in.Email,
		Address: in.Address,
	}
	if err := e.store.SaveCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Entities) UpdateCustomer(ctx context.Context, id string, in CustomerInput) (*models.Customer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &models.Customer{
		ID:      id,
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   in.Email,
		Address: in.Address,
	}
	if err := e.store.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Entities) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	return e.store.GetCustomer(ctx, id)
}

func (e *Entities) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return e.store.ListCustomers(ctx)
}

// DeleteCustomer removes the customer together with their ledger entries
// and notifications; sales referencing them are kept with a null customer.
func (e *Entities) DeleteCustomer(ctx context.Context, id string) error {
	return e.store.DeleteCustomer(ctx, id)
}

// ProductInput carries the editable product fields. A zero LowStockThreshold
// and an empty Unit take the schema defaults.
type ProductInput struct {
	Name              string       `json:"name"`
	Category          string       `json:"category"`
	Price             money.Amount `json:"price"`
	Stock             int          `json:"stock"`
	LowStockThreshold *int         `json:"low_stock_threshold"`
	Unit              string       `json:"unit"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return storage.Invalid("name", "must not be empty")
	}
	if in.Price.IsNegative() {
		return storage.Invalid("price", "must not be negative")
	}
	if in.Stock < 0 {
		return storage.Invalid("stock", "must not be negative")
	}
	if in.LowStockThreshold != nil && *in.LowStockThreshold < 0 {
		return storage.Invalid("low_stock_threshold", "must not be negative")
	}
	return nil
}

func (in ProductInput) toModel(id string) *models.Product {
	p := &models.Product{
		ID:                id,
		Name:              in.Name,
		Category:          in.Category,
		Price:             in.Price,
		Stock:             in.Stock,
		LowStockThreshold: models.DefaultLowStockThreshold,
		Unit:              in.Unit,
	}
	if in.LowStockThreshold != nil {
		p.LowStockThreshold = *in.LowStockThreshold
	}
	if p.Unit == "" {
		p.Unit = models.DefaultUnit
	}
	return p
}

func (e *Entities) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := in.toModel(uuid.NewString())
	if err := e.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Entities) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := in.toModel(id)
	if err := e.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Entities) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return e.store.GetProduct(ctx, id)
}

func (e *Entities) ListProducts(ctx context.Context) ([]models.Product, error) {
	return e.store.ListProducts(ctx)
}

// DeleteProduct fails with ErrConflict while sale items reference the
// product.
func (e *Entities) DeleteProduct(ctx context.Context, id string) error {
	return e.store.DeleteProduct(ctx, id)
}
