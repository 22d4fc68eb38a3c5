// Package memory provides an in-process Store used by tests and
// single-terminal deployments. Transact clones the whole state, runs the
// unit against the clone and swaps it in on success, so rollback is free
// and partial effects are never observable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage"
)

type state struct {
	users         map[string]models.User
	customers     map[string]models.Customer
	products      map[string]models.Product
	transactions  map[string]models.Transaction
	sales         map[string]models.Sale
	saleItems     map[string]models.SaleItem
	notifications map[string]models.Notification
}

func newState() *state {
	return &state{
		users:         make(map[string]models.User),
		customers:     make(map[string]models.Customer),
		products:      make(map[string]models.Product),
		transactions:  make(map[string]models.Transaction),
		sales:         make(map[string]models.Sale),
		saleItems:     make(map[string]models.SaleItem),
		notifications: make(map[string]models.Notification),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	for k, v := range st.sales {
		v.Items = nil
		c.sales[k] = v
	}
	for k, v := range st.saleItems {
		c.saleItems[k] = v
	}
	for k, v := range st.notifications {
		c.notifications[k] = v
	}
	return c
}

// Store is the in-memory Store implementation. A single mutex serializes
// atomic units; reads take it shared.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func now() time.Time { return time.Now().UTC() }

// Users

func (s *Store) SaveUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.st.users {
		if existing.Username == u.Username && existing.ID != u.ID {
			return storage.ErrConflict
		}
	}
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	s.st.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.st.users[id]; ok {
		return &u, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.st.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.st.users, id)

	// created_by is a weak reference: attributions go null, rows stay.
	for k, t := range s.st.transactions {
		if t.CreatedBy != nil && *t.CreatedBy == id {
			t.CreatedBy = nil
			s.st.transactions[k] = t
		}
	}
	for k, sale := range s.st.sales {
		if sale.CreatedBy != nil && *sale.CreatedBy == id {
			sale.CreatedBy = nil
			s.st.sales[k] = sale
		}
	}
	for k, n := range s.st.notifications {
		if n.UserID != nil && *n.UserID == id {
			delete(s.st.notifications, k)
		}
	}
	return nil
}

// Customers

func (s *Store) SaveCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.st.checkPhone(c); err != nil {
		return err
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	s.st.customers[c.ID] = *c
	return nil
}

func (st *state) checkPhone(c *models.Customer) error {
	for _, existing := range st.customers {
		if existing.Phone == c.Phone && existing.ID != c.ID {
			return storage.ErrConflict
		}
	}
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.st.customers[id]; ok {
		return &c, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListCustomers(_ context.Context) ([]models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.customers[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := s.st.checkPhone(c); err != nil {
		return err
	}
	// contact edits never touch the cached ledger totals
	c.TotalBorrowed = existing.TotalBorrowed
	c.TotalRepaid = existing.TotalRepaid
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = now()
	s.st.customers[c.ID] = *c
	return nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.customers[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.st.customers, id)

	for k, t := range s.st.transactions {
		if t.CustomerID == id {
			delete(s.st.transactions, k)
		}
	}
	for k, n := range s.st.notifications {
		if n.CustomerID != nil && *n.CustomerID == id {
			delete(s.st.notifications, k)
		}
	}
	for k, sale := range s.st.sales {
		if sale.CustomerID != nil && *sale.CustomerID == id {
			sale.CustomerID = nil
			s.st.sales[k] = sale
		}
	}
	return nil
}

// Products

func (s *Store) SaveProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	s.st.products[p.ID] = *p
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.st.products[id]; ok {
		return &p, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.st.products[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now()
	s.st.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.products[id]; !ok {
		return storage.ErrNotFound
	}
	// restrict: historical sale lines keep their pricing.
	for _, it := range s.st.saleItems {
		if it.ProductID == id {
			return storage.ErrConflict
		}
	}
	delete(s.st.products, id)
	return nil
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, customerID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.listTransactions(customerID)
}

func (st *state) listTransactions(customerID string) ([]models.Transaction, error) {
	if _, ok := st.customers[customerID]; !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]models.Transaction, 0)
	for _, t := range st.transactions {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Sales

func (st *state) saleWithItems(id string) (*models.Sale, error) {
	sale, ok := st.sales[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	items := make([]models.SaleItem, 0)
	for _, it := range st.saleItems {
		if it.SaleID == id {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	sale.Items = items
	return &sale, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.saleWithItems(id)
}

func (s *Store) ListSales(_ context.Context) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Sale, 0, len(s.st.sales))
	for _, sale := range s.st.sales {
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Notifications

func (s *Store) SaveNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.CreatedAt = now()
	s.st.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListNotifications(_ context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Notification, 0)
	for _, n := range s.st.notifications {
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.UserID != nil && (n.UserID == nil || *n.UserID != *f.UserID) {
			continue
		}
		if f.CustomerID != nil && (n.CustomerID == nil || *n.CustomerID != *f.CustomerID) {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.st.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.IsRead = true
	s.st.notifications[id] = n
	return nil
}

// Transact clones the state, runs fn against the clone and swaps the clone
// in on success. Failure discards the clone, so the unit is all-or-nothing
// by construction.
func (s *Store) Transact(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.st.clone()
	if err := fn(&memTx{st: working}); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// memTx is a Tx over a working clone of the state.
type memTx struct {
	st *state
}

var _ storage.Tx = (*memTx)(nil)

func (tx *memTx) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	if c, ok := tx.st.customers[id]; ok {
		return &c, nil
	}
	return nil, storage.ErrNotFound
}

func (tx *memTx) GetProduct(_ context.Context, id string) (*models.Product, error) {
	if p, ok := tx.st.products[id]; ok {
		return &p, nil
	}
	return nil, storage.ErrNotFound
}

func (tx *memTx) GetSale(_ context.Context, id string) (*models.Sale, error) {
	return tx.st.saleWithItems(id)
}

func (tx *memTx) ListTransactions(_ context.Context, customerID string) ([]models.Transaction, error) {
	return tx.st.listTransactions(customerID)
}

func (tx *memTx) InsertTransaction(_ context.Context, t *models.Transaction) error {
	if _, ok := tx.st.customers[t.CustomerID]; !ok {
		return storage.ErrNotFound
	}
	t.CreatedAt = now()
	tx.st.transactions[t.ID] = *t
	return nil
}

func (tx *memTx) AddCustomerTotals(_ context.Context, customerID string, borrowed, repaid money.Amount) error {
	c, ok := tx.st.customers[customerID]
	if !ok {
		return storage.ErrNotFound
	}
	c.TotalBorrowed = c.TotalBorrowed.Add(borrowed)
	c.TotalRepaid = c.TotalRepaid.Add(repaid)
	c.UpdatedAt = now()
	tx.st.customers[customerID] = c
	return nil
}

func (tx *memTx) AdjustStock(_ context.Context, productID string, delta int) (*models.Product, error) {
	p, ok := tx.st.products[productID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, storage.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = now()
	tx.st.products[productID] = p
	return &p, nil
}

func (tx *memTx) InsertSale(_ context.Context, s *models.Sale) error {
	if s.CustomerID != nil {
		if _, ok := tx.st.customers[*s.CustomerID]; !ok {
			return storage.ErrNotFound
		}
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	stored := *s
	stored.Items = nil
	tx.st.sales[s.ID] = stored
	return nil
}

func (tx *memTx) InsertSaleItem(_ context.Context, it *models.SaleItem) error {
	if _, ok := tx.st.sales[it.SaleID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := tx.st.products[it.ProductID]; !ok {
		return storage.ErrNotFound
	}
	tx.st.saleItems[it.ID] = *it
	return nil
}

func (tx *memTx) SetSalePaymentStatus(_ context.Context, saleID string, status models.PaymentStatus) error {
	sale, ok := tx.st.sales[saleID]
	if !ok {
		return storage.ErrNotFound
	}
	sale.PaymentStatus = status
	sale.UpdatedAt = now()
	tx.st.sales[saleID] = sale
	return nil
}

func (tx *memTx) InsertNotification(_ context.Context, n *models.Notification) error {
	n.CreatedAt = now()
	tx.st.notifications[n.ID] = *n
	return nil
}
