//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/orders"
	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

type Storage interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	ListOrders(ctx context.Context) ([]orders.Order, error)
	ListReturns(ctx context.Context, q repository.ReturnQuery) (*orders.ReturnPage, error)
	GetOrderHistory(ctx context.Context, orderID string) ([]*repository.HistoryEntry, error)
	GetProduct(ctx context.Context, slug string) (*orders.Product, error)
	SetOrderStatus(ctx context.Context, orderID, newStatus string, shipping *orders.ShippingInfo) (*orders.Order, error)
	SetReturnStatus(ctx context.Context, orderID, productID, newStatus string) (*orders.Order, error)
	MarkPickedUp(ctx context.Context, orderID, productID string) (*orders.Order, error)
	CreateReplacement(ctx context.Context, orderID string, products []orders.ReplacementRequest) (*orders.Order, error)
	ProcessRefund(ctx context.Context, orderID, productID string) (*orders.Order, error)
}

type UserRepo interface {
	ValidateUser(ctx context.Context, username, password string) (bool, error)
	CreateSession(ctx context.Context, token, username string, expiresAt time.Time) error
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

type Server struct {
	storage      Storage
	userRepo     UserRepo
	logger       *zap.Logger
	server       *http.Server
	AuditManager *AuditManager
}

func New(storage Storage, userRepo UserRepo, logger *zap.Logger) *Server {
	auditManager := NewAuditManager(2, 5, 500*time.Millisecond, logger)
	return &Server{
		storage:      storage,
		userRepo:     userRepo,
		logger:       logger,
		AuditManager: auditManager,
	}
}

func (s *Server) Run(ctx context.Context, port string) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.AuditManager.Start(ctx)

	s.logger.Info("server starting", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("HTTP server shutdown completed")

	s.AuditManager.Shutdown(ctx)
	return nil
}

func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", s.handleLogout).Methods(http.MethodPost)

	session := router.NewRoute().Subrouter()
	session.Use(s.sessionMiddleware)
	session.HandleFunc("/api/auth/session", s.handleSession).Methods(http.MethodGet)
	session.HandleFunc("/api/products/{slug}", s.handleGetProduct).Methods(http.MethodGet)

	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.Use(s.sessionMiddleware, s.auditLogMiddleware)

	admin.HandleFunc("/returns", s.handleListReturns).Methods(http.MethodGet)
	admin.HandleFunc("/returns/{orderId}/replacement", s.handleCreateReplacement).Methods(http.MethodPost)
	admin.HandleFunc("/returns/{orderId}/{productId}/pickup", s.handleMarkPickedUp).Methods(http.MethodPut)
	admin.HandleFunc("/returns/{orderId}/{productId}", s.handleSetReturnStatus).Methods(http.MethodPut)

	admin.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{orderId}/status", s.handleUpdateOrderStatus).Methods(http.MethodPut)
	admin.HandleFunc("/orders/{orderId}/history", s.handleOrderHistory).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{orderId}/{productId}/refund", s.handleProcessRefund).Methods(http.MethodPost)

	// Bare order lookup; registered last so it cannot shadow the routes above.
	admin.HandleFunc("/{orderId}", s.handleGetOrder).Methods(http.MethodGet)

	return router
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStorageError maps the storage error taxonomy onto HTTP statuses:
// validation 400, unknown object 404, precondition/stale state 409.
func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrObjectNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleListReturns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := repository.ReturnQuery{
		Status:   query.Get("status"),
		OrderID:  query.Get("orderId"),
		Email:    query.Get("email"),
		Search:   query.Get("search"),
		Page:     1,
		PageSize: 10,
	}

	if startDate := query.Get("startDate"); startDate != "" {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid startDate. Use YYYY-MM-DD")
			return
		}
		q.StartDate = parsed.UTC()
	}
	if endDate := query.Get("endDate"); endDate != "" {
		parsed, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid endDate. Use YYYY-MM-DD")
			return
		}
		// endDate is inclusive in the UI, so filter on the next midnight.
		q.EndDate = parsed.UTC().AddDate(0, 0, 1)
	}
	if pageStr := query.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'page' parameter")
			return
		}
		q.Page = page
	}
	if pageSizeStr := query.Get("pageSize"); pageSizeStr != "" {
		pageSize, err := strconv.Atoi(pageSizeStr)
		if err != nil || pageSize <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid value for 'pageSize' parameter")
			return
		}
		q.PageSize = pageSize
	}

	page, err := s.storage.ListReturns(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list returns", zap.Error(err))
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.storage.ListOrders(r.Context())
	if err != nil {
		s.logger.Error("failed to list orders", zap.Error(err))
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	order, err := s.storage.GetOrder(r.Context(), orderID)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var statusRequest struct {
		Status          string `json:"status"`
		ShippedFrom     string `json:"shippedFrom"`
		TrackingNumber  string `json:"trackingNumber"`
		ShippingCarrier string `json:"shippingCarrier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var shipping *orders.ShippingInfo
	if statusRequest.Status == orders.OrderStatusShipped {
		shipping = &orders.ShippingInfo{
			ShippedFrom:     statusRequest.ShippedFrom,
			TrackingNumber:  statusRequest.TrackingNumber,
			ShippingCarrier: statusRequest.ShippingCarrier,
		}
	}

	order, err := s.storage.SetOrderStatus(r.Context(), orderID, statusRequest.Status, shipping)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]*orders.Order{"order": order})
}

func (s *Server) handleSetReturnStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID, productID := vars["orderId"], vars["productId"]

	var statusRequest struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&statusRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := s.storage.SetReturnStatus(r.Context(), orderID, productID, statusRequest.Status)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleMarkPickedUp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	order, err := s.storage.MarkPickedUp(r.Context(), vars["orderId"], vars["productId"])
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleCreateReplacement(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var replacementRequest struct {
		Products []orders.ReplacementRequest `json:"products"`
	}
	if err := json.NewDecoder(r.Body).Decode(&replacementRequest); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := s.storage.CreateReplacement(r.Context(), orderID, replacementRequest.Products)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleProcessRefund(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if _, err := s.storage.ProcessRefund(r.Context(), vars["orderId"], vars["productId"]); err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Refund processed successfully",
	})
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	history, err := s.storage.GetOrderHistory(r.Context(), orderID)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	product, err := s.storage.GetProduct(r.Context(), slug)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]*orders.Product{"product": product})
}
