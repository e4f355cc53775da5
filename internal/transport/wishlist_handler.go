package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WishlistRequest is the body of POST /api/wishlist/items
type WishlistRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// WishlistHandler serves the signed-in user's wishlist
type WishlistHandler struct {
	wishlist service.WishlistService
	logger   *zap.Logger
	dev      bool
}

// NewWishlistHandler creates a new WishlistHandler
func NewWishlistHandler(wishlist service.WishlistService, logger *zap.Logger, dev bool) *WishlistHandler {
	return &WishlistHandler{
		wishlist: wishlist,
		logger:   logger,
		dev:      dev,
	}
}

func (h *WishlistHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/wishlist", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/items", h.Add)
		r.Delete("/items/{productId}", h.Remove)
	})
}

func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.wishlist.List(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, items)
}

// Add answers 201 for a new save and 200 when the product was already saved
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req WishlistRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}
	productID := uuid.MustParse(req.ProductID)

	created, err := h.wishlist.Add(r.Context(), userID, productID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	middleware.RespondWithSuccess(w, status, map[string]string{"product_id": productID.String()})
}

func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.wishlist.Remove(r.Context(), userID, productID); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
