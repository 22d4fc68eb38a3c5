package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/domain/money"
	"github.com/surajguptakr/grocery/internal/engine"
	"github.com/surajguptakr/grocery/internal/lib/jwt"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Auth

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *APIServer) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}

		user, err := s.engines.Entities.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, errResponse{Error: "invalid credentials"})
			return
		}

		ttl := s.config.TokenTTL
		if ttl == 0 {
			ttl = 24 * time.Hour
		}
		token, err := jwt.NewToken(user, string(s.jwtSecret), ttl)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.logger.Info("user logged in", "username", user.Username)
		s.writeJSON(w, http.StatusOK, loginResponse{Token: token})
	}
}

// Users

func (s *APIServer) createUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.UserInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		u, err := s.engines.Entities.CreateUser(r.Context(), in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, u)
	}
}

func (s *APIServer) listUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.engines.Entities.ListUsers(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, users)
	}
}

func (s *APIServer) deleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.engines.Entities.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Customers

func (s *APIServer) createCustomerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.CustomerInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		c, err := s.engines.Entities.CreateCustomer(r.Context(), in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, c)
	}
}

func (s *APIServer) listCustomersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := s.engines.Entities.ListCustomers(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, customers)
	}
}

func (s *APIServer) getCustomerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.engines.Entities.GetCustomer(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, c)
	}
}

func (s *APIServer) updateCustomerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.CustomerInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		c, err := s.engines.Entities.UpdateCustomer(r.Context(), mux.Vars(r)["id"], in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, c)
	}
}

func (s *APIServer) deleteCustomerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.engines.Entities.DeleteCustomer(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Ledger

type transactionRequest struct {
	Type   models.TransactionType `json:"type"`
	Amount money.Amount           `json:"amount"`
}

func (s *APIServer) recordTransactionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transactionRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		t, err := s.engines.Ledger.RecordTransaction(r.Context(), mux.Vars(r)["id"], req.Type, req.Amount, callerID(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, t)
	}
}

func (s *APIServer) statementHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.engines.Ledger.Statement(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, entries)
	}
}

func (s *APIServer) reconcileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.engines.Ledger.Reconcile(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
	}
}

// Products

func (s *APIServer) createProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.ProductInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		p, err := s.engines.Entities.CreateProduct(r.Context(), in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, p)
	}
}

func (s *APIServer) listProductsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := s.engines.Entities.ListProducts(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, products)
	}
}

func (s *APIServer) getProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.engines.Entities.GetProduct(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

func (s *APIServer) updateProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.ProductInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		p, err := s.engines.Entities.UpdateProduct(r.Context(), mux.Vars(r)["id"], in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

func (s *APIServer) deleteProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.engines.Entities.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Inventory

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

func (s *APIServer) adjustStockHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustStockRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		p, err := s.engines.Inventory.AdjustStock(r.Context(), mux.Vars(r)["id"], req.Delta)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

// Sales

func (s *APIServer) recordSaleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.SaleInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		in.CreatedBy = callerID(r)
		sale, err := s.engines.Sales.RecordSale(r.Context(), in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, sale)
	}
}

func (s *APIServer) listSalesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sales, err := s.engines.Sales.ListSales(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sales)
	}
}

func (s *APIServer) getSaleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sale, err := s.engines.Sales.GetSale(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sale)
	}
}

type saleStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status"`
}

func (s *APIServer) updateSaleStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saleStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		sale, err := s.engines.Sales.UpdatePaymentStatus(r.Context(), mux.Vars(r)["id"], req.PaymentStatus, callerID(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sale)
	}
}

// Notifications

func (s *APIServer) listNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := storage.NotificationFilter{
			Type:       models.NotificationType(q.Get("type")),
			UnreadOnly: q.Get("unread") == "true",
		}
		if v := q.Get("user_id"); v != "" {
			f.UserID = &v
		}
		if v := q.Get("customer_id"); v != "" {
			f.CustomerID = &v
		}
		if f.Type != "" && !f.Type.Valid() {
			s.writeError(w, storage.Invalid("type", "unknown notification type"))
			return
		}

		notifications, err := s.engines.Notifications.List(r.Context(), f)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, notifications)
	}
}

func (s *APIServer) createNotificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in engine.NotificationInput
		if err := decodeJSON(r, &in); err != nil {
			s.writeError(w, err)
			return
		}
		n, err := s.engines.Notifications.Create(r.Context(), in)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, n)
	}
}

func (s *APIServer) markNotificationReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.engines.Notifications.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
