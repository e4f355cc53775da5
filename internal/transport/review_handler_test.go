package transport

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubReviewService keeps one review per user and product
type stubReviewService struct {
	reviews map[uuid.UUID]*domain.Review
}

func newStubReviewService() *stubReviewService {
	return &stubReviewService{reviews: make(map[uuid.UUID]*domain.Review)}
}

func (s *stubReviewService) Submit(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*domain.Review, bool, error) {
	for _, r := range s.reviews {
		if r.UserID == userID && r.ProductID == productID {
			r.Rating = rating
			r.Comment = comment
			return r, false, nil
		}
	}
	r := &domain.Review{ID: uuid.New(), ProductID: productID, UserID: userID, Rating: rating, Comment: comment}
	s.reviews[r.ID] = r
	return r, true, nil
}

func (s *stubReviewService) ListForProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]*domain.Review, int, domain.RatingSummary, error) {
	var out []*domain.Review
	summary := domain.RatingSummary{}
	for _, r := range s.reviews {
		if r.ProductID == productID {
			out = append(out, r)
			summary.Count++
			summary.Average = float64(r.Rating)
		}
	}
	return out, len(out), summary, nil
}

func (s *stubReviewService) Delete(ctx context.Context, reviewID, requesterID uuid.UUID, canModerate bool) error {
	r, ok := s.reviews[reviewID]
	if !ok {
		return domain.ErrReviewNotFound
	}
	if !canModerate && r.UserID != requesterID {
		return domain.ErrForbidden
	}
	delete(s.reviews, reviewID)
	return nil
}

func newReviewRouter(reviews service.ReviewService) chi.Router {
	logger := zap.NewNop()
	router := chi.NewRouter()
	NewReviewHandler(reviews, logger, true).RegisterRoutes(router, middleware.AuthMiddleware(testSecret, logger))
	return router
}

func TestReviewHandler_SubmitAndList(t *testing.T) {
	reviews := newStubReviewService()
	router := newReviewRouter(reviews)
	userID := uuid.New()
	productID := uuid.New()
	path := "/api/reviews/products/" + productID.String()

	w := serve(router, http.MethodPut, path, bearer(t, userID, domain.RoleUser), ReviewRequest{Rating: 4, Comment: "good"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(router, http.MethodPut, path, bearer(t, userID, domain.RoleUser), ReviewRequest{Rating: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(router, http.MethodGet, path+"?page=0&page_size=500", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope[ReviewPage](t, w)
	assert.Equal(t, 1, env.Data.Total)
	assert.Equal(t, 1, env.Data.Page)
	assert.Equal(t, 20, env.Data.PageSize)
	require.Len(t, env.Data.Items, 1)
	assert.Equal(t, 2, env.Data.Items[0].Rating)
}

func TestReviewHandler_SubmitValidation(t *testing.T) {
	router := newReviewRouter(newStubReviewService())
	path := "/api/reviews/products/" + uuid.NewString()

	tests := []struct {
		name   string
		auth   string
		path   string
		body   interface{}
		status int
	}{
		{"guest", "", path, ReviewRequest{Rating: 4}, http.StatusUnauthorized},
		{"rating too high", bearer(t, uuid.New(), domain.RoleUser), path, ReviewRequest{Rating: 6}, http.StatusBadRequest},
		{"missing rating", bearer(t, uuid.New(), domain.RoleUser), path, map[string]string{"comment": "x"}, http.StatusBadRequest},
		{"malformed product id", bearer(t, uuid.New(), domain.RoleUser), "/api/reviews/products/42", ReviewRequest{Rating: 4}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodPut, tt.path, tt.auth, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestReviewHandler_Delete(t *testing.T) {
	reviews := newStubReviewService()
	router := newReviewRouter(reviews)
	author := uuid.New()

	review, _, err := reviews.Submit(context.Background(), author, uuid.New(), 5, "")
	require.NoError(t, err)
	path := "/api/reviews/" + review.ID.String()

	w := serve(router, http.MethodDelete, path, bearer(t, uuid.New(), domain.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(router, http.MethodDelete, path, bearer(t, uuid.New(), domain.RoleModerator), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(router, http.MethodDelete, path, bearer(t, author, domain.RoleUser), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
