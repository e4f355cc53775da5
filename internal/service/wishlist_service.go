package service

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WishlistService keeps the products a user saved for later
type WishlistService interface {
	Add(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error)
}

type wishlistService struct {
	wishlist repository.WishlistRepository
	products ProductGetter
	logger   *zap.Logger
}

// NewWishlistService creates a new instance of WishlistService
func NewWishlistService(wishlist repository.WishlistRepository, products ProductGetter, logger *zap.Logger) WishlistService {
	return &wishlistService{
		wishlist: wishlist,
		products: products,
		logger:   logger,
	}
}

// Add saves an active product. Out-of-stock products may be saved.
func (s *wishlistService) Add(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if !product.IsActive {
		return false, domain.ErrProductUnavailable
	}
	return s.wishlist.Add(ctx, userID, productID)
}

func (s *wishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return s.wishlist.Remove(ctx, userID, productID)
}

// List includes products deactivated after they were saved; the product's
// is_active flag tells the storefront to grey them out.
func (s *wishlistService) List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error) {
	return s.wishlist.List(ctx, userID)
}
