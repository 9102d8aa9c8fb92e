package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/domain/order"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// OrderService is the order domain as seen by HTTP.
type OrderService interface {
	Place(ctx context.Context, req order.PlaceOrder) (*order.Order, error)
	Transition(ctx context.Context, id string, status order.Status) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error)
	List(ctx context.Context) ([]*order.Order, error)
}

type Handlers struct {
	orders OrderService
	logger *zap.Logger
}

func NewHandlers(orders OrderService, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{orders: orders, logger: logger}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateOrder handles POST /api/orders
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrder
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	created, err := h.orders.Place(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyOrder),
			errors.Is(err, order.ErrMissingCustomer),
			errors.Is(err, order.ErrInvalidItem):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("create order failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to create order")
		}
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// MyOrders handles GET /api/orders/my-orders?customerId=
func (h *Handlers) MyOrders(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(r.URL.Query().Get("customerId"))
	if customerID == "" {
		respondError(w, http.StatusBadRequest, "Customer ID is required")
		return
	}

	orders, err := h.orders.ListByCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.Error("list customer orders failed", zap.String("customer_id", customerID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/{orderID}
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ListOrders handles GET /api/orders for staff
func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.logger.Error("list orders failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/orders/{orderID}/status
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.orders.Transition(r.Context(), chi.URLParam(r, "orderID"), status)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrInvalidStatus),
			errors.Is(err, order.ErrOrderCancelled),
			errors.Is(err, order.ErrOrderDelivered),
			errors.Is(err, order.ErrOrderShipped):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.respondLookupError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handlers) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, order.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "Order not found")
		return
	}
	h.logger.Error("order lookup failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
