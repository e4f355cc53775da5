package service

import (
	"context"
	"errors"
	"sync"

	"storefront/internal/cartcookie"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// CartStore is the storage capability shared by the guest cookie cart and
// the per-user database cart. Product ids are unique within a store.
type CartStore interface {
	Source() domain.CartSource
	Lines(ctx context.Context) ([]domain.CartLine, error)
	// Quantity returns 0 when the product has no line.
	Quantity(ctx context.Context, productID uuid.UUID) (int, error)
	// Increment adds line.Quantity to an existing line, keeping its price,
	// or creates the line at line.PriceAtAdd. It reports whether a line was
	// created.
	Increment(ctx context.Context, line domain.CartLine) (bool, error)
	SetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error
	Remove(ctx context.Context, productID uuid.UUID) error
	Clear(ctx context.Context) error
}

// lineProductLister is implemented by stores that can join their lines with
// live product rows in one query
type lineProductLister interface {
	LinesWithProducts(ctx context.Context) ([]domain.CartLineProduct, error)
}

// GuestStore is a CartStore over a decoded guest cart cookie. Mutations
// only change the in-memory copy; the caller writes Cart() back to the
// response.
type GuestStore struct {
	mu   sync.Mutex
	cart cartcookie.Cart
}

func NewGuestStore(cart cartcookie.Cart) *GuestStore {
	return &GuestStore{cart: cart}
}

// Cart returns the current cookie payload
func (g *GuestStore) Cart() cartcookie.Cart {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cart
}

func (g *GuestStore) Source() domain.CartSource {
	return domain.CartSourceCookie
}

func (g *GuestStore) Lines(_ context.Context) ([]domain.CartLine, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cart.Lines(), nil
}

func (g *GuestStore) Quantity(_ context.Context, productID uuid.UUID) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, ok := g.cart.Find(productID.String())
	if !ok {
		return 0, nil
	}
	return item.Quantity, nil
}

func (g *GuestStore) Increment(_ context.Context, line domain.CartLine) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, exists := g.cart.Find(line.ProductID.String())
	g.cart = cartcookie.AddItem(g.cart, line.ProductID.String(), line.Quantity, line.PriceAtAdd)
	return !exists, nil
}

func (g *GuestStore) SetQuantity(_ context.Context, productID uuid.UUID, quantity int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cart.Find(productID.String()); !ok {
		return domain.ErrCartItemNotFound
	}
	g.cart = cartcookie.UpdateQuantity(g.cart, productID.String(), quantity)
	return nil
}

// Remove reports ErrCartItemNotFound for absent lines so both stores behave
// the same over HTTP.
func (g *GuestStore) Remove(_ context.Context, productID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.cart.Find(productID.String()); !ok {
		return domain.ErrCartItemNotFound
	}
	g.cart = cartcookie.RemoveItem(g.cart, productID.String())
	return nil
}

func (g *GuestStore) Clear(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cart = cartcookie.Clear()
	return nil
}

// AccountStore is a CartStore over one user's database cart
type AccountStore struct {
	repo   repository.CartRepository
	cartID uuid.UUID
}

func NewAccountStore(repo repository.CartRepository, cartID uuid.UUID) *AccountStore {
	return &AccountStore{repo: repo, cartID: cartID}
}

// CartID is the id of the backing cart row
func (a *AccountStore) CartID() uuid.UUID {
	return a.cartID
}

func (a *AccountStore) Source() domain.CartSource {
	return domain.CartSourceDatabase
}

func (a *AccountStore) Lines(ctx context.Context) ([]domain.CartLine, error) {
	joined, err := a.repo.ListLines(ctx, a.cartID)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, len(joined))
	for i, lp := range joined {
		lines[i] = lp.Line
	}
	return lines, nil
}

func (a *AccountStore) LinesWithProducts(ctx context.Context) ([]domain.CartLineProduct, error) {
	return a.repo.ListLines(ctx, a.cartID)
}

func (a *AccountStore) Quantity(ctx context.Context, productID uuid.UUID) (int, error) {
	item, err := a.repo.FindItem(ctx, a.cartID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return item.Quantity, nil
}

// Increment is guarded by stock in the database; a rejected write surfaces
// as repository.ErrStockExceeded.
func (a *AccountStore) Increment(ctx context.Context, line domain.CartLine) (bool, error) {
	_, created, err := a.repo.IncrementItem(ctx, a.cartID, line.ProductID, line.Quantity, line.PriceAtAdd)
	return created, err
}

func (a *AccountStore) SetQuantity(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return a.repo.DeleteItem(ctx, a.cartID, productID)
	}
	return a.repo.SetItemQuantity(ctx, a.cartID, productID, quantity)
}

func (a *AccountStore) Remove(ctx context.Context, productID uuid.UUID) error {
	return a.repo.DeleteItem(ctx, a.cartID, productID)
}

func (a *AccountStore) Clear(ctx context.Context) error {
	return a.repo.ClearItems(ctx, a.cartID)
}
