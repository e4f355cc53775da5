package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/cartcookie"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService implements cart operations over either storage mode
type CartService interface {
	OpenAccountCart(ctx context.Context, userID uuid.UUID) (*AccountStore, error)
	OpenGuestCart(cart cartcookie.Cart) *GuestStore
	View(ctx context.Context, store CartStore) (*domain.CartView, error)
	AddItem(ctx context.Context, store CartStore, productID uuid.UUID, quantity int) (created bool, err error)
	UpdateItemQuantity(ctx context.Context, store CartStore, productID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, store CartStore, productID uuid.UUID) error
	Clear(ctx context.Context, store CartStore) error
	Sync(ctx context.Context, userID uuid.UUID, guest cartcookie.Cart) (*domain.SyncResult, error)
}

type cartService struct {
	cartRepo repository.CartRepository
	catalog  CatalogService
	logger   *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(cartRepo repository.CartRepository, catalog CatalogService, logger *zap.Logger) CartService {
	return &cartService{
		cartRepo: cartRepo,
		catalog:  catalog,
		logger:   logger,
	}
}

// OpenAccountCart returns the user's database cart, creating it on first use
func (s *cartService) OpenAccountCart(ctx context.Context, userID uuid.UUID) (*AccountStore, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}
	return NewAccountStore(s.cartRepo, cart.ID), nil
}

func (s *cartService) OpenGuestCart(cart cartcookie.Cart) *GuestStore {
	return NewGuestStore(cart)
}

// View builds the UI cart. Database carts are joined with product rows in
// one query and keep every line. Guest lines are resolved one by one through
// the product cache, and lines whose product is gone or inactive are left
// out without an error.
func (s *cartService) View(ctx context.Context, store CartStore) (*domain.CartView, error) {
	var joined []domain.CartLineProduct

	if lister, ok := store.(lineProductLister); ok {
		var err error
		if joined, err = lister.LinesWithProducts(ctx); err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
	} else {
		lines, err := store.Lines(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		for _, line := range lines {
			product, err := s.catalog.LookupProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("failed to load product %s: %w", line.ProductID, err)
			}
			if !product.Purchasable() {
				continue
			}
			joined = append(joined, domain.CartLineProduct{Line: line, Product: *product})
		}
	}

	return buildView(store.Source(), joined), nil
}

func buildView(source domain.CartSource, joined []domain.CartLineProduct) *domain.CartView {
	view := &domain.CartView{
		Items:       make([]domain.CartViewItem, 0, len(joined)),
		TotalAmount: decimal.Zero,
		Source:      source,
	}

	for _, lp := range joined {
		subtotal := lp.Line.PriceAtAdd.Mul(decimal.NewFromInt(int64(lp.Line.Quantity)))
		view.Items = append(view.Items, domain.CartViewItem{
			ProductID:    lp.Line.ProductID,
			Name:         lp.Product.Name,
			ImageURL:     lp.Product.ImageURL,
			CurrentPrice: lp.Product.Price,
			PriceAtAdd:   lp.Line.PriceAtAdd,
			Quantity:     lp.Line.Quantity,
			Subtotal:     subtotal,
			Stock:        lp.Product.Stock,
			IsActive:     lp.Product.IsActive,
		})
		view.TotalAmount = view.TotalAmount.Add(subtotal)
		view.ItemCount += lp.Line.Quantity
	}

	return view
}

// AddItem adds quantity units of the product, priced at the current product
// price for new lines. The summed quantity must fit in stock.
func (s *cartService) AddItem(ctx context.Context, store CartStore, productID uuid.UUID, quantity int) (bool, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if !product.Purchasable() {
		return false, domain.ErrProductUnavailable
	}

	existing, err := store.Quantity(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("failed to read cart line: %w", err)
	}
	if domain.ExceedsStock(existing, quantity, product.Stock) {
		return false, &domain.InsufficientStockError{
			ProductID: productID,
			Available: product.Stock,
			Requested: domain.SumQuantities(existing, quantity),
		}
	}

	created, err := store.Increment(ctx, domain.CartLine{
		ProductID:  productID,
		Quantity:   quantity,
		PriceAtAdd: product.Price,
	})
	if errors.Is(err, repository.ErrStockExceeded) {
		// Lost a race with another writer; report what the row holds now.
		return false, s.rejection(ctx, store, productID, quantity)
	}
	if err != nil {
		return false, fmt.Errorf("failed to add cart item: %w", err)
	}

	return created, nil
}

// UpdateItemQuantity sets an absolute quantity; zero removes the line
func (s *cartService) UpdateItemQuantity(ctx context.Context, store CartStore, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, store, productID)
	}

	existing, err := store.Quantity(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to read cart line: %w", err)
	}
	if existing == 0 {
		return domain.ErrCartItemNotFound
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Purchasable() {
		return domain.ErrProductUnavailable
	}
	if quantity > product.Stock {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Available: product.Stock,
			Requested: quantity,
		}
	}

	return store.SetQuantity(ctx, productID, quantity)
}

func (s *cartService) RemoveItem(ctx context.Context, store CartStore, productID uuid.UUID) error {
	return store.Remove(ctx, productID)
}

// Clear empties the cart; a database cart row is kept
func (s *cartService) Clear(ctx context.Context, store CartStore) error {
	return store.Clear(ctx)
}

// Sync merges the guest cart into the user's account cart. Individual lines
// may be skipped; only a missing user or a storage failure fails the call.
// The caller retires the guest cookie whatever the outcome.
func (s *cartService) Sync(ctx context.Context, userID uuid.UUID, guest cartcookie.Cart) (*domain.SyncResult, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	if guest.IsEmpty() {
		return &domain.SyncResult{}, nil
	}

	account, err := s.OpenAccountCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := Merge(ctx, NewGuestStore(guest), account, SumCappedByStock{Products: s.catalog})
	if err != nil {
		return nil, err
	}

	s.logger.Info("guest cart synced",
		zap.String("user_id", userID.String()),
		zap.Int("synced", result.SyncedItems),
		zap.Int("skipped", result.SkippedItems),
	)

	return result, nil
}

func (s *cartService) rejection(ctx context.Context, store CartStore, productID uuid.UUID, quantity int) error {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Purchasable() {
		return domain.ErrProductUnavailable
	}
	existing, err := store.Quantity(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to read cart line: %w", err)
	}
	return &domain.InsufficientStockError{
		ProductID: productID,
		Available: product.Stock,
		Requested: domain.SumQuantities(existing, quantity),
	}
}
