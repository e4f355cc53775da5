package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateOrderStatusRequest is the body of the admin status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

// OrderHandler handles checkout and order lookups
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
	dev    bool
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger, dev bool) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
		dev:    dev,
	}
}

// RegisterRoutes registers order routes; all of them need a signed-in user
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Checkout)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
	})

	r.Route("/api/admin/orders", func(r chi.Router) {
		r.Use(authMiddleware, middleware.RequireAdmin(h.logger))
		r.Patch("/{id}/status", h.UpdateStatus)
	})
}

// Checkout turns the caller's cart into an order
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	order, err := h.orders.Checkout(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.orders.ListForUser(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	middleware.RespondWithSuccess(w, http.StatusOK, orders)
}

// GetOrder returns one order to its owner or an admin
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	orderID, ok := idParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), orderID, userID, middleware.IsAdmin(r.Context()))
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, order)
}

// UpdateStatus moves an order along its lifecycle
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.logger.Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithSuccess(w, http.StatusOK, order)
}
