// Package api exposes the engines over an authenticated JSON HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/surajguptakr/grocery/internal/config"
	"github.com/surajguptakr/grocery/internal/domain/models"
	"github.com/surajguptakr/grocery/internal/engine"
	"github.com/surajguptakr/grocery/internal/lib/jwt"
	"github.com/surajguptakr/grocery/internal/storage"
)

// Engines bundles the business engines the API fronts.
type Engines struct {
	Entities      *engine.Entities
	Ledger        *engine.Ledger
	Inventory     *engine.Inventory
	Sales         *engine.Sales
	Notifications *engine.Notifications
}

type APIServer struct {
	config    *config.Config
	logger    *slog.Logger
	server    *http.Server
	engines   Engines
	jwtSecret []byte
}

func New(cfg *config.Config, logger *slog.Logger, engines Engines, jwtSecret []byte) *APIServer {
	s := &APIServer{
		config: cfg,
		logger: logger,
		server: &http.Server{
			Addr: cfg.ApiHost + ":" + strconv.Itoa(cfg.ApiPort),
		},
		engines:   engines,
		jwtSecret: jwtSecret,
	}
	s.configureRouter()
	return s
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting server", slog.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

// Handler returns the configured router, used directly by tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()

	router.HandleFunc("/api/auth/login", s.loginHandler()).Methods("POST")

	router.HandleFunc("/api/users", s.authenticate(s.requireOwner(s.createUserHandler()))).Methods("POST")
	router.HandleFunc("/api/users", s.authenticate(s.requireOwner(s.listUsersHandler()))).Methods("GET")
	router.HandleFunc("/api/users/{id}", s.authenticate(s.requireOwner(s.deleteUserHandler()))).Methods("DELETE")

	router.HandleFunc("/api/customers", s.authenticate(s.createCustomerHandler())).Methods("POST")
	router.HandleFunc("/api/customers", s.authenticate(s.listCustomersHandler())).Methods("GET")
	router.HandleFunc("/api/customers/{id}", s.authenticate(s.getCustomerHandler())).Methods("GET")
	router.HandleFunc("/api/customers/{id}", s.authenticate(s.updateCustomerHandler())).Methods("PUT")
	router.HandleFunc("/api/customers/{id}", s.authenticate(s.deleteCustomerHandler())).Methods("DELETE")
	router.HandleFunc("/api/customers/{id}/transactions", s.authenticate(s.recordTransactionHandler())).Methods("POST")
	router.HandleFunc("/api/customers/{id}/transactions", s.authenticate(s.statementHandler())).Methods("GET")
	router.HandleFunc("/api/customers/{id}/reconcile", s.authenticate(s.reconcileHandler())).Methods("GET")

	router.HandleFunc("/api/products", s.authenticate(s.createProductHandler())).Methods("POST")
	router.HandleFunc("/api/products", s.authenticate(s.listProductsHandler())).Methods("GET")
	router.HandleFunc("/api/products/{id}", s.authenticate(s.getProductHandler())).Methods("GET")
	router.HandleFunc("/api/products/{id}", s.authenticate(s.updateProductHandler())).Methods("PUT")
	router.HandleFunc("/api/products/{id}", s.authenticate(s.requireOwner(s.deleteProductHandler()))).Methods("DELETE")
	router.HandleFunc("/api/products/{id}/stock", s.authenticate(s.adjustStockHandler())).Methods("POST")

	router.HandleFunc("/api/sales", s.authenticate(s.recordSaleHandler())).Methods("POST")
	router.HandleFunc("/api/sales", s.authenticate(s.listSalesHandler())).Methods("GET")
	router.HandleFunc("/api/sales/{id}", s.authenticate(s.getSaleHandler())).Methods("GET")
	router.HandleFunc("/api/sales/{id}/status", s.authenticate(s.updateSaleStatusHandler())).Methods("PATCH")

	router.HandleFunc("/api/notifications", s.authenticate(s.listNotificationsHandler())).Methods("GET")
	router.HandleFunc("/api/notifications", s.authenticate(s.createNotificationHandler())).Methods("POST")
	router.HandleFunc("/api/notifications/{id}/read", s.authenticate(s.markNotificationReadHandler())).Methods("POST")

	s.server.Handler = router
}

type ctxKey string

const (
	ctxUserID ctxKey = "uid"
	ctxRole   ctxKey = "role"
)

// authenticate validates the bearer token, stores the caller's id and role
// in the request context and bounds the request with the operation timeout.
func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			s.writeJSON(w, http.StatusUnauthorized, errResponse{Error: "missing token"})
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.writeJSON(w, http.StatusUnauthorized, errResponse{Error: "malformed token"})
			return
		}

		claims, err := jwt.ParseToken(parts[1], string(s.jwtSecret))
		if err != nil {
			s.writeJSON(w, http.StatusUnauthorized, errResponse{Error: "invalid token"})
			return
		}

		uid, _ := claims["uid"].(string)
		role, _ := claims["role"].(string)

		ctx, cancel := context.WithTimeout(r.Context(), s.config.OpTimeout)
		defer cancel()
		ctx = context.WithValue(ctx, ctxUserID, uid)
		ctx = context.WithValue(ctx, ctxRole, role)
		next(w, r.WithContext(ctx))
	}
}

func (s *APIServer) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(ctxRole).(string); role != string(models.RoleOwner) {
			s.writeJSON(w, http.StatusForbidden, errResponse{Error: "owner role required"})
			return
		}
		next(w, r)
	}
}

// callerID returns the authenticated user's id as a nullable attribution.
func callerID(r *http.Request) *string {
	if uid, ok := r.Context().Value(ctxUserID).(string); ok && uid != "" {
		return &uid
	}
	return nil
}

type errResponse struct {
	Error string `json:"error"`
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeError translates the error taxonomy onto HTTP statuses. Validation
// and business-rule failures carry enough detail to correct the input;
// storage and concurrency failures stay generic.
func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	var ve *storage.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusBadRequest, errResponse{Error: ve.Error()})
	case errors.Is(err, storage.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errResponse{Error: "not found"})
	case errors.Is(err, storage.ErrConflict):
		s.writeJSON(w, http.StatusConflict, errResponse{Error: "conflict with existing record"})
	case errors.Is(err, storage.ErrInsufficientStock):
		s.writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "insufficient stock"})
	case storage.IsRetryable(err):
		s.writeJSON(w, http.StatusConflict, errResponse{Error: "concurrent update, please retry"})
	case errors.Is(err, storage.ErrUnavailable):
		s.writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: "storage unavailable"})
	default:
		s.logger.Error("Internal error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return storage.Invalid("body", "invalid request body")
	}
	return nil
}
