package transport

import (
	"net/http"

	"storefront/internal/cartcookie"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddCartItemRequest is the body of POST /api/cart/items
type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=9999"`
}

// UpdateCartItemRequest is the body of PUT /api/cart/items/{productId}
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=9999"`
}

// CartHandler serves the cart to guests, from the cart cookie, and to
// signed-in users, from the database
type CartHandler struct {
	cartService service.CartService
	cookie      cartcookie.Options
	logger      *zap.Logger
	dev         bool
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, cookie cartcookie.Options, logger *zap.Logger, dev bool) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		cookie:      cookie,
		logger:      logger,
		dev:         dev,
	}
}

// RegisterRoutes registers the cart routes. optionalAuth must resolve the
// caller without rejecting guests.
func (h *CartHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateItem)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Post("/sync", h.Sync)
	})
}

// openStore picks the database cart for signed-in callers and the cookie
// cart otherwise. guest is nil for database carts.
func (h *CartHandler) openStore(r *http.Request) (store service.CartStore, guest *service.GuestStore, err error) {
	if userID, ok := middleware.GetUserUUID(r.Context()); ok {
		account, err := h.cartService.OpenAccountCart(r.Context(), userID)
		if err != nil {
			return nil, nil, err
		}
		return account, nil, nil
	}

	guest = h.cartService.OpenGuestCart(cartcookie.FromRequest(r, h.cookie.Name))
	return guest, guest, nil
}

// persistGuest writes the mutated guest cart back as a cookie. It must run
// before the response status is written.
func (h *CartHandler) persistGuest(w http.ResponseWriter, guest *service.GuestStore) error {
	if guest == nil {
		return nil
	}
	cookie, err := cartcookie.NewCookie(guest.Cart(), h.cookie)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

// respondWithCart finishes a request with the current cart view
func (h *CartHandler) respondWithCart(w http.ResponseWriter, r *http.Request, store service.CartStore, guest *service.GuestStore, status int) {
	view, err := h.cartService.View(r.Context(), store)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}
	if err := h.persistGuest(w, guest); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}
	middleware.RespondWithSuccess(w, status, view)
}

// GetCart returns the cart view
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, _, err := h.openStore(r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	view, err := h.cartService.View(r.Context(), store)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, view)
}

// AddItem adds units of a product; 201 for a new line, 200 when merged
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add to cart validation failed", zap.Error(err))
		middleware.RespondToDecodeError(w, err)
		return
	}
	productID := uuid.MustParse(req.ProductID)

	store, guest, err := h.openStore(r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	created, err := h.cartService.AddItem(r.Context(), store, productID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.respondWithCart(w, r, store, guest, status)
}

// UpdateItem sets an absolute quantity; zero removes the line
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}

	store, guest, err := h.openStore(r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	if err := h.cartService.UpdateItemQuantity(r.Context(), store, productID, *req.Quantity); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.respondWithCart(w, r, store, guest, http.StatusOK)
}

// RemoveItem deletes one line
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	store, guest, err := h.openStore(r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	if err := h.cartService.RemoveItem(r.Context(), store, productID); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.respondWithCart(w, r, store, guest, http.StatusOK)
}

// ClearCart empties the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, guest, err := h.openStore(r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	if err := h.cartService.Clear(r.Context(), store); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	h.respondWithCart(w, r, store, guest, http.StatusOK)
}

// Sync merges the guest cookie cart into the caller's account cart and
// drops the cookie, whatever happened to the individual lines
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserUUID(r.Context())
	guest := cartcookie.FromRequest(r, h.cookie.Name)

	result, err := h.cartService.Sync(r.Context(), userID, guest)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	http.SetCookie(w, cartcookie.ExpiredCookie(h.cookie))
	middleware.RespondWithSuccess(w, http.StatusOK, result)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return uuid.Nil, false
	}
	return productID, true
}
