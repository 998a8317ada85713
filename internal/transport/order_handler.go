package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/middleware"
	"streetbasket/internal/service"
)

// PlaceOrderRequest represents an order placement payload
type PlaceOrderRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// StatusRequest represents an order status change
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderListResponse wraps order listings
type OrderListResponse struct {
	Orders []*domain.Order `json:"orders"`
}

// OrderHandler handles HTTP requests for order operations
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes; every one requires authentication
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.With(middleware.RequireRole(h.logger, domain.RoleVendor)).Post("/api/orders", h.Place)
		r.Get("/api/orders/{id}", h.Get)
		r.Patch("/api/orders/{id}/status", h.AdvanceStatus)
		r.Get("/api/accounts/me/orders", h.ListMine)
		r.Get("/api/accounts/me/sales", h.ListSales)
	})
}

// Place records an order for the calling vendor
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	order, err := h.orderService.Place(r.Context(), caller.AccountID, req.ProductID, req.Quantity)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to place order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// Get returns an order visible to the caller
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := pathID(w, chi.URLParam(r, "id"), "order id")
	if !ok {
		return
	}

	order, err := h.orderService.Get(r.Context(), id, caller)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// AdvanceStatus moves an order to its next status
func (h *OrderHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := pathID(w, chi.URLParam(r, "id"), "order id")
	if !ok {
		return
	}

	var req StatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	order, err := h.orderService.AdvanceStatus(r.Context(), id, caller, req.Status)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ListMine returns the orders the caller placed, newest first
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orderService.ListForVendor(r.Context(), caller.AccountID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{Orders: nonNil(orders)})
}

// ListSales returns orders placed against the caller's products, newest first
func (h *OrderHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orderService.ListForSupplier(r.Context(), caller.AccountID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list sales")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{Orders: nonNil(orders)})
}

func nonNil(orders []*domain.Order) []*domain.Order {
	if orders == nil {
		return []*domain.Order{}
	}
	return orders
}
