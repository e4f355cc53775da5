package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")

	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("cart item %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrReviewNotFound   = fmt.Errorf("review %w", ErrNotFound)
	ErrConsentNotFound  = fmt.Errorf("consent %w", ErrNotFound)

	ErrProductUnavailable = errors.New("product is not available")
	ErrUnauthorized       = errors.New("authentication required")
	ErrCartEmpty          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrForbidden          = errors.New("not allowed to change this resource")
	ErrInvalidRating      = fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)
)

// InsufficientStockError is returned when a requested cart quantity exceeds
// the product stock.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}
