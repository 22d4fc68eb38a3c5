package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surajguptakr/grocery/internal/config"
	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/engine"
	"github.com/surajguptakr/grocery/internal/storage"
	"github.com/surajguptakr/grocery/internal/storage/memory"
)

const testSecret = "test-secret"

type testServer struct {
	srv        *APIServer
	ownerToken string
	staffToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engines := Engines{
		Entities:      engine.NewEntities(store, logger),
		Ledger:        engine.NewLedger(store, logger),
		Inventory:     engine.NewInventory(store, logger),
		Sales:         engine.NewSales(store, logger),
		Notifications: engine.NewNotifications(store, logger),
	}

	cfg := &config.Config{
		Env:       "local",
		ApiHost:   "localhost",
		ApiPort:   8080,
		TokenTTL:  time.Hour,
		OpTimeout: 5 * time.Second,
	}
	ts := &testServer{srv: New(cfg, logger, engines, []byte(testSecret))}

	seed := func(username string, role models.Role) string {
		_, err := engines.Entities.CreateUser(context.Background(), engine.UserInput{
			Username: username,
			Password: "testpassword",
			Role:     role,
			Name:     username,
		})
		require.NoError(t, err)
		return ts.login(t, username, "testpassword")
	}
	ts.ownerToken = seed("owner", models.RoleOwner)
	ts.staffToken = seed("staff", models.RoleStaff)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "owner",
		"password": "wrongpassword",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/products", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/products", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUserRoutesOwnerOnly(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{
		"username": "newstaff",
		"password": "testpassword",
		"role":     "staff",
		"name":     "New Staff",
	}

	rec := ts.do(t, http.MethodPost, "/api/users", ts.staffToken, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/users", ts.ownerToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	u := decodeBody[models.User](t, rec)
	require.Equal(t, "newstaff", u.Username)

	rec = ts.do(t, http.MethodGet, "/api/users", ts.ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]models.User](t, rec), 3)
}

func TestCustomerLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/customers", ts.staffToken, map[string]string{
		"name":  "Ravi",
		"phone": "555-0100",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decodeBody[models.Customer](t, rec)

	// duplicate phone
	rec = ts.do(t, http.MethodPost, "/api/customers", ts.staffToken, map[string]string{
		"name":  "Other",
		"phone": "555-0100",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// missing phone
	rec = ts.do(t, http.MethodPost, "/api/customers", ts.staffToken, map[string]string{"name": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/customers/"+c.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/customers/does-not-exist", ts.staffToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/customers/"+c.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLedgerOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/customers", ts.staffToken, map[string]string{
		"name":  "Meera",
		"phone": "555-0200",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decodeBody[models.Customer](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/customers/"+c.ID+"/transactions", ts.staffToken, map[string]any{
		"type":   "borrow",
		"amount": "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	txn := decodeBody[models.Transaction](t, rec)
	require.NotNil(t, txn.CreatedBy)

	rec = ts.do(t, http.MethodPost, "/api/customers/"+c.ID+"/transactions", ts.staffToken, map[string]any{
		"type":   "repay",
		"amount": "40.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/customers/"+c.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[models.Customer](t, rec)
	require.Equal(t, "60.00", got.Outstanding().String())

	rec = ts.do(t, http.MethodGet, "/api/customers/"+c.ID+"/transactions", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]models.Transaction](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/api/customers/"+c.ID+"/reconcile", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recon := decodeBody[engine.Reconciliation](t, rec)
	require.True(t, recon.Consistent)

	// bad amount
	rec = ts.do(t, http.MethodPost, "/api/customers/"+c.ID+"/transactions", ts.staffToken, map[string]any{
		"type":   "borrow",
		"amount": "-5.00",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaleFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/customers", ts.staffToken, map[string]string{
		"name":  "Anil",
		"phone": "555-0300",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decodeBody[models.Customer](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/products", ts.staffToken, map[string]any{
		"name":                "Rice 5kg",
		"price":               "12.50",
		"stock":               6,
		"low_stock_threshold": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[models.Product](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/sales", ts.staffToken, map[string]any{
		"customer_id": c.ID,
		"items": []map[string]any{
			{"product_id": p.ID, "quantity": 2},
		},
		"payment_status": "borrowed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sale := decodeBody[models.Sale](t, rec)
	require.Equal(t, "25.00", sale.TotalAmount.String())
	require.NotNil(t, sale.CreatedBy)

	// the decrement crossed the threshold, so a low_stock alert exists
	rec = ts.do(t, http.MethodGet, "/api/notifications?type=low_stock&unread=true", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decodeBody[[]models.Notification](t, rec)
	require.Len(t, alerts, 1)

	rec = ts.do(t, http.MethodPost, "/api/notifications/"+alerts[0].ID+"/read", ts.staffToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/notifications?type=low_stock&unread=true", ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeBody[[]models.Notification](t, rec))

	// the borrow landed on the ledger
	rec = ts.do(t, http.MethodGet, "/api/customers/"+c.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[models.Customer](t, rec)
	require.Equal(t, "25.00", got.TotalBorrowed.String())

	// oversell is rejected with 422 and changes nothing
	rec = ts.do(t, http.MethodPost, "/api/sales", ts.staffToken, map[string]any{
		"items": []map[string]any{
			{"product_id": p.ID, "quantity": 100},
		},
		"payment_status": "paid",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/products/"+p.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 4, decodeBody[models.Product](t, rec).Stock)
}

func TestSaleStatusOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/customers", ts.staffToken, map[string]string{
		"name":  "Lata",
		"phone": "555-0400",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	c := decodeBody[models.Customer](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/products", ts.staffToken, map[string]any{
		"name":  "Soap",
		"price": "1.00",
		"stock": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[models.Product](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/sales", ts.staffToken, map[string]any{
		"customer_id": c.ID,
		"items": []map[string]any{
			{"product_id": p.ID, "quantity": 3},
		},
		"payment_status": "pending",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sale := decodeBody[models.Sale](t, rec)

	rec = ts.do(t, http.MethodPatch, "/api/sales/"+sale.ID+"/status", ts.staffToken, map[string]string{
		"payment_status": "borrowed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.PaymentBorrowed, decodeBody[models.Sale](t, rec).PaymentStatus)

	// borrowed is terminal
	rec = ts.do(t, http.MethodPatch, "/api/sales/"+sale.ID+"/status", ts.staffToken, map[string]string{
		"payment_status": "paid",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStockAdjustmentOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/products", ts.staffToken, map[string]any{
		"name":  "Tea",
		"price": "4.00",
		"stock": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[models.Product](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/products/"+p.ID+"/stock", ts.staffToken, map[string]int{"delta": -4})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 6, decodeBody[models.Product](t, rec).Stock)

	rec = ts.do(t, http.MethodPost, "/api/products/"+p.ID+"/stock", ts.staffToken, map[string]int{"delta": -100})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// product deletion is owner-gated
	rec = ts.do(t, http.MethodDelete, "/api/products/"+p.ID, ts.staffToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/products/"+p.ID, ts.ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", storage.Invalid("field", "bad"), http.StatusBadRequest},
		{"not found", storage.ErrNotFound, http.StatusNotFound},
		{"conflict", storage.ErrConflict, http.StatusConflict},
		{"insufficient stock", storage.ErrInsufficientStock, http.StatusUnprocessableEntity},
		{"concurrency", storage.ErrConcurrency, http.StatusConflict},
		{"wrapped concurrency", fmt.Errorf("op: %w", storage.ErrConcurrency), http.StatusConflict},
		{"unavailable", storage.ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ts.srv.writeError(rec, tt.err)
			require.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestCreateNotificationOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/notifications", ts.staffToken, map[string]any{
		"type":    "general",
		"message": "closing early today",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// low_stock alerts only come from the inventory path
	rec = ts.do(t, http.MethodPost, "/api/notifications", ts.staffToken, map[string]any{
		"type":    "low_stock",
		"message": "nope",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/notifications?type=bogus", ts.staffToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
