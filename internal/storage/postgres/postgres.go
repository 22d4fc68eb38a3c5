// Package postgres implements storage.Store on PostgreSQL via database/sql
// and lib/pq. Atomic units map to SQL transactions; stock sufficiency is
// enforced with a conditional UPDATE so concurrent sales can never both
// pass the check and oversell.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/storage"
)

type Storage struct {
	db *sql.DB
}

var _ storage.Store = (*Storage)(nil)

func New(dbURL string) (*Storage, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// classify maps driver errors onto the shared sentinel kinds. Anything not
// recognized passes through for the caller to wrap.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return storage.ErrConflict
		case "23503": // foreign_key_violation (restrict)
			return storage.ErrConflict
		case "23514": // check_violation
			return storage.ErrConflict
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return storage.ErrConcurrency
		}
		if pqErr.Code.Class() == "08" { // connection exceptions
			return storage.ErrUnavailable
		}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return storage.ErrUnavailable
	}
	return err
}

// Users

func (s *Storage) SaveUser(ctx context.Context, u *models.User) error {
	const op = "storage.postgres.SaveUser"

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, password, role, name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.Name,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.postgres.GetUser"

	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, name, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(op, row)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.GetUserByUsername"

	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, role, name, created_at, updated_at
		FROM users WHERE username = $1`, username)
	return scanUser(op, row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(op string, row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return &u, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.postgres.ListUsers"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, role, name, created_at, updated_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteUser"
	return s.deleteByID(ctx, op, "users", id)
}

func (s *Storage) deleteByID(ctx context.Context, op, table, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// Customers

func (s *Storage) SaveCustomer(ctx context.Context, c *models.Customer) error {
	const op = "storage.postgres.SaveCustomer"

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (id, name, phone, email, address, total_borrowed, total_repaid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Phone, nullable(c.Email), nullable(c.Address), c.TotalBorrowed, c.TotalRepaid,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

const customerSelect = `
	SELECT id, name, phone, COALESCE(email, ''), COALESCE(address, ''),
	       total_borrowed, total_repaid, created_at, updated_at
	FROM customers`

func scanCustomer(op string, row rowScanner) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address,
		&c.TotalBorrowed, &c.TotalRepaid, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return &c, nil
}

func (s *Storage) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	const op = "storage.postgres.GetCustomer"

	row := s.db.QueryRowContext(ctx, customerSelect+` WHERE id = $1`, id)
	return scanCustomer(op, row)
}

func (s *Storage) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	const op = "storage.postgres.ListCustomers"

	rows, err := s.db.QueryContext(ctx, customerSelect+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		c, err := scanCustomer(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Storage) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	const op = "storage.postgres.UpdateCustomer"

	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, address = $5, updated_at = now()
		WHERE id = $1
		RETURNING total_borrowed, total_repaid, created_at, updated_at`,
		c.ID, c.Name, c.Phone, nullable(c.Email), nullable(c.Address),
	).Scan(&c.TotalBorrowed, &c.TotalRepaid, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (s *Storage) DeleteCustomer(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteCustomer"
	// transactions and notifications cascade, sales.customer_id nulls out
	// via the schema's FK actions.
	return s.deleteByID(ctx, op, "customers", id)
}

// Products

func (s *Storage) SaveProduct(ctx context.Context, p *models.Product) error {
	const op = "storage.postgres.SaveProduct"

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, category, price, stock, low_stock_threshold, unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Category, p.Price, p.Stock, p.LowStockThreshold, p.Unit,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

const productSelect = `
	SELECT id, name, category, price, stock, low_stock_threshold, unit, created_at, updated_at
	FROM products`

func scanProduct(op string, row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock,
		&p.LowStockThreshold, &p.Unit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return &p, nil
}

func (s *Storage) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	const op = "storage.postgres.GetProduct"

	row := s.db.QueryRowContext(ctx, productSelect+` WHERE id = $1`, id)
	return scanProduct(op, row)
}

func (s *Storage) ListProducts(ctx context.Context) ([]models.Product, error) {
	const op = "storage.postgres.ListProducts"

	rows, err := s.db.QueryContext(ctx, productSelect+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Storage) UpdateProduct(ctx context.Context, p *models.Product) error {
	const op = "storage.postgres.UpdateProduct"

	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price = $4, stock = $5,
		    low_stock_threshold = $6, unit = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Category, p.Price, p.Stock, p.LowStockThreshold, p.Unit,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (s *Storage) DeleteProduct(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteProduct"
	// sale_items reference products with ON DELETE RESTRICT; the FK
	// violation surfaces as ErrConflict.
	return s.deleteByID(ctx, op, "products", id)
}

// Transactions

func (s *Storage) ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error) {
	const op = "storage.postgres.ListTransactions"

	if _, err := s.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return selectTransactions(ctx, op, s.db, customerID)
}

type txQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func selectTransactions(ctx context.Context, op string, q txQuerier, customerID string) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, customer_id, type, amount, created_by, created_at
		FROM transactions WHERE customer_id = $1
		ORDER BY created_at, id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Type, &t.Amount, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Sales

const saleSelect = `
	SELECT id, customer_id, total_amount, payment_status, created_by, created_at, updated_at
	FROM sales`

func scanSale(op string, row rowScanner) (*models.Sale, error) {
	var sale models.Sale
	err := row.Scan(&sale.ID, &sale.CustomerID, &sale.TotalAmount, &sale.PaymentStatus,
		&sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return &sale, nil
}

func (s *Storage) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	const op = "storage.postgres.GetSale"

	sale, err := scanSale(op, s.db.QueryRowContext(ctx, saleSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadSaleItems(ctx, op, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Storage) loadSaleItems(ctx context.Context, op string, sale *models.Sale) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, price
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, sale.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var it models.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		sale.Items = append(sale.Items, it)
	}
	return rows.Err()
}

func (s *Storage) ListSales(ctx context.Context) ([]models.Sale, error) {
	const op = "storage.postgres.ListSales"

	rows, err := s.db.QueryContext(ctx, saleSelect+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []models.Sale
	for rows.Next() {
		sale, err := scanSale(op, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sale)
	}
	return out, rows.Err()
}

// Notifications

func (s *Storage) SaveNotification(ctx context.Context, n *models.Notification) error {
	const op = "storage.postgres.SaveNotification"
	return insertNotification(ctx, op, s.db, n)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertNotification(ctx context.Context, op string, q querier, n *models.Notification) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, customer_id, message, type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		n.ID, n.UserID, n.CustomerID, n.Message, n.Type, n.IsRead,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (s *Storage) ListNotifications(ctx context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	const op = "storage.postgres.ListNotifications"

	query := `
		SELECT id, user_id, customer_id, message, type, is_read, created_at
		FROM notifications WHERE 1=1`
	var args []any
	if f.Type != "" {
		args = append(args, f.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.UnreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.CustomerID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id string) error {
	const op = "storage.postgres.MarkNotificationRead"

	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// Transact runs fn inside one SQL transaction.
func (s *Storage) Transact(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "storage.postgres.Transact"

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

var _ storage.Tx = (*pgTx)(nil)

// GetCustomer reads the row FOR UPDATE so the customer's totals cannot move
// under the unit.
func (tx *pgTx) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	const op = "storage.postgres.tx.GetCustomer"

	row := tx.tx.QueryRowContext(ctx, customerSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanCustomer(op, row)
}

func (tx *pgTx) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	const op = "storage.postgres.tx.GetProduct"

	row := tx.tx.QueryRowContext(ctx, productSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanProduct(op, row)
}

func (tx *pgTx) GetSale(ctx context.Context, id string) (*models.Sale, error) {
	const op = "storage.postgres.tx.GetSale"

	sale, err := scanSale(op, tx.tx.QueryRowContext(ctx, saleSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	rows, err := tx.tx.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, price
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var it models.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sale.Items = append(sale.Items, it)
	}
	return sale, rows.Err()
}

func (tx *pgTx) ListTransactions(ctx context.Context, customerID string) ([]models.Transaction, error) {
	const op = "storage.postgres.tx.ListTransactions"
	return selectTransactions(ctx, op, tx.tx, customerID)
}

func (tx *pgTx) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	const op = "storage.postgres.tx.InsertTransaction"

	err := tx.tx.QueryRowContext(ctx, `
		INSERT INTO transactions (id, customer_id, type, amount, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		t.ID, t.CustomerID, t.Type, t.Amount, t.CreatedBy,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (tx *pgTx) AddCustomerTotals(ctx context.Context, customerID string, borrowed, repaid money.Amount) error {
	const op = "storage.postgres.tx.AddCustomerTotals"

	res, err := tx.tx.ExecContext(ctx, `
		UPDATE customers
		SET total_borrowed = total_borrowed + $2,
		    total_repaid = total_repaid + $3,
		    updated_at = now()
		WHERE id = $1`,
		customerID, borrowed, repaid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// AdjustStock is the linearizable check-and-decrement: the WHERE clause
// rejects any delta that would drive stock negative, so two concurrent
// sales cannot both take the last unit.
func (tx *pgTx) AdjustStock(ctx context.Context, productID string, delta int) (*models.Product, error) {
	const op = "storage.postgres.tx.AdjustStock"

	row := tx.tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING id, name, category, price, stock, low_stock_threshold, unit, created_at, updated_at`,
		productID, delta)

	p, err := scanProduct(op, row)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		// The guard and a missing row both yield no rows; tell them apart.
		var exists bool
		checkErr := tx.tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
		if checkErr != nil {
			return nil, fmt.Errorf("%s: %w", op, classify(checkErr))
		}
		if exists {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrInsufficientStock)
		}
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil, err
}

func (tx *pgTx) InsertSale(ctx context.Context, s *models.Sale) error {
	const op = "storage.postgres.tx.InsertSale"

	err := tx.tx.QueryRowContext(ctx, `
		INSERT INTO sales (id, customer_id, total_amount, payment_status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		s.ID, s.CustomerID, s.TotalAmount, s.PaymentStatus, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (tx *pgTx) InsertSaleItem(ctx context.Context, it *models.SaleItem) error {
	const op = "storage.postgres.tx.InsertSaleItem"

	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`,
		it.ID, it.SaleID, it.ProductID, it.Quantity, it.Price)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	return nil
}

func (tx *pgTx) SetSalePaymentStatus(ctx context.Context, saleID string, status models.PaymentStatus) error {
	const op = "storage.postgres.tx.SetSalePaymentStatus"

	res, err := tx.tx.ExecContext(ctx, `
		UPDATE sales SET payment_status = $2, updated_at = now() WHERE id = $1`,
		saleID, status)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

func (tx *pgTx) InsertNotification(ctx context.Context, n *models.Notification) error {
	const op = "storage.postgres.tx.InsertNotification"
	return insertNotification(ctx, op, tx.tx, n)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
