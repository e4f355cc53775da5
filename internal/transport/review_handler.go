package transport

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ReviewRequest is the body of PUT /api/reviews/products/{productId}
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewPage is one page of a product's reviews with its rating summary
type ReviewPage struct {
	Items    []*domain.Review     `json:"items"`
	Summary  domain.RatingSummary `json:"summary"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ReviewHandler serves product reviews
type ReviewHandler struct {
	reviews service.ReviewService
	logger  *zap.Logger
	dev     bool
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviews service.ReviewService, logger *zap.Logger, dev bool) *ReviewHandler {
	return &ReviewHandler{
		reviews: reviews,
		logger:  logger,
		dev:     dev,
	}
}

// RegisterRoutes registers review routes. Reading is public; writing needs a
// signed-in user.
func (h *ReviewHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/reviews", func(r chi.Router) {
		r.Get("/products/{productId}", h.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Put("/products/{productId}", h.SubmitReview)
			r.Delete("/{id}", h.DeleteReview)
		})
	})
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	page, pageSize = repository.NormalizePage(page, pageSize)

	reviews, total, summary, err := h.reviews.ListForProduct(r.Context(), productID, page, pageSize)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, ReviewPage{
		Items:    reviews,
		Summary:  summary,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// SubmitReview creates the caller's review (201) or replaces it (200)
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}

	review, created, err := h.reviews.Submit(r.Context(), userID, productID, req.Rating, req.Comment)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	middleware.RespondWithSuccess(w, status, review)
}

// DeleteReview lets authors remove their review and staff remove any
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reviewID, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.reviews.Delete(r.Context(), reviewID, userID, isStaff(r)); err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
