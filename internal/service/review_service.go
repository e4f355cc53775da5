package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewService lets signed-in users rate products
type ReviewService interface {
	// Submit creates or replaces the user's review of an active product
	Submit(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*domain.Review, bool, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]*domain.Review, int, domain.RatingSummary, error)
	// Delete removes a review. Only its author or a moderator may do so.
	Delete(ctx context.Context, reviewID, requesterID uuid.UUID, canModerate bool) error
}

type reviewService struct {
	reviews  repository.ReviewRepository
	products ProductGetter
	logger   *zap.Logger
}

// NewReviewService creates a new instance of ReviewService
func NewReviewService(reviews repository.ReviewRepository, products ProductGetter, logger *zap.Logger) ReviewService {
	return &reviewService{
		reviews:  reviews,
		products: products,
		logger:   logger,
	}
}

func (s *reviewService) Submit(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*domain.Review, bool, error) {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, false, domain.ErrInvalidRating
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	if !product.IsActive {
		return nil, false, domain.ErrProductUnavailable
	}

	review := &domain.Review{
		ID:        uuid.New(),
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	created, err := s.reviews.Upsert(ctx, review)
	if err != nil {
		return nil, false, err
	}

	saved, err := s.reviews.FindByID(ctx, review.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload review: %w", err)
	}

	s.logger.Info("review saved",
		zap.String("review_id", saved.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Bool("created", created),
	)
	return saved, created, nil
}

func (s *reviewService) ListForProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]*domain.Review, int, domain.RatingSummary, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, 0, domain.RatingSummary{}, err
	}

	reviews, total, err := s.reviews.ListByProduct(ctx, productID, page, pageSize)
	if err != nil {
		return nil, 0, domain.RatingSummary{}, err
	}
	summary, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return nil, 0, domain.RatingSummary{}, err
	}

	return reviews, total, summary, nil
}

func (s *reviewService) Delete(ctx context.Context, reviewID, requesterID uuid.UUID, canModerate bool) error {
	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if !canModerate && review.UserID != requesterID {
		return domain.ErrForbidden
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return err
	}

	if review.UserID != requesterID {
		s.logger.Info("review removed by moderator",
			zap.String("review_id", reviewID.String()),
			zap.String("moderator_id", requesterID.String()),
		)
	}
	return nil
}
