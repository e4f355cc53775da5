package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergePolicy decides whether an incoming line may be folded into a
// destination that already holds existing units of the same product.
type MergePolicy interface {
	Admit(ctx context.Context, incoming domain.CartLine, existing int) error
}

// ProductGetter reads the current product row
type ProductGetter interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// SumCappedByStock admits a line when the product exists, is active, and the
// summed quantity still fits in stock.
type SumCappedByStock struct {
	Products ProductGetter
}

func (p SumCappedByStock) Admit(ctx context.Context, incoming domain.CartLine, existing int) error {
	product, err := p.Products.GetProduct(ctx, incoming.ProductID)
	if err != nil {
		return err
	}
	if !product.Purchasable() {
		return domain.ErrProductUnavailable
	}
	if domain.ExceedsStock(existing, incoming.Quantity, product.Stock) {
		return &domain.InsufficientStockError{
			ProductID: product.ID,
			Available: product.Stock,
			Requested: domain.SumQuantities(existing, incoming.Quantity),
		}
	}
	return nil
}

// Merge folds every line of src into dst, one line at a time. A line the
// policy rejects, or that dst fails to store, is reported in the result and
// leaves dst unchanged for that product; the remaining lines are still
// merged. New lines keep the price recorded in src. src is not modified.
func Merge(ctx context.Context, src, dst CartStore, policy MergePolicy) (*domain.SyncResult, error) {
	lines, err := src.Lines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source cart: %w", err)
	}

	log := logger.FromContext(ctx, zap.NewNop())
	result := &domain.SyncResult{}

	for _, line := range lines {
		if err := mergeLine(ctx, dst, policy, line); err != nil {
			result.SkippedItems++
			result.Errors = append(result.Errors, domain.SyncItemError{
				ProductID: line.ProductID.String(),
				Reason:    mergeFailureReason(err),
			})
			log.Warn("cart line skipped during merge",
				zap.String("product_id", line.ProductID.String()),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
			continue
		}
		result.SyncedItems++
	}

	return result, nil
}

func mergeLine(ctx context.Context, dst CartStore, policy MergePolicy, line domain.CartLine) error {
	existing, err := dst.Quantity(ctx, line.ProductID)
	if err != nil {
		return err
	}
	if err := policy.Admit(ctx, line, existing); err != nil {
		return err
	}
	_, err = dst.Increment(ctx, line)
	return err
}

func mergeFailureReason(err error) string {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return fmt.Sprintf("insufficient stock: available %d, requested %d", stockErr.Available, stockErr.Requested)
	case errors.Is(err, repository.ErrStockExceeded):
		return "insufficient stock"
	case errors.Is(err, domain.ErrNotFound):
		return "product not found"
	case errors.Is(err, domain.ErrProductUnavailable):
		return "product is not available"
	default:
		return "item could not be added"
	}
}
