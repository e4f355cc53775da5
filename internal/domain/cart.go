package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartSource tells which storage a cart view was built from
type CartSource string

const (
	CartSourceDatabase CartSource = "database"
	CartSourceCookie   CartSource = "cookie"
)

// MaxLineQuantity is the most units one cart line may hold
const MaxLineQuantity = 9999

// SumQuantities adds two non-negative quantities, saturating at math.MaxInt
// instead of wrapping.
func SumQuantities(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// ExceedsStock reports whether adding quantity to existing units would go
// past stock. existing is assumed to be within stock already.
func ExceedsStock(existing, quantity, stock int) bool {
	return quantity > stock-existing
}

// Cart is the persisted per-user cart header. One row per user; lines are
// read separately. Cart types use the camelCase field names of the guest
// cart cookie.
type Cart struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CartItem is a persisted cart line. (cart_id, product_id) is unique.
type CartItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	CartID     uuid.UUID       `json:"cartId" db:"cart_id"`
	ProductID  uuid.UUID       `json:"productId" db:"product_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	PriceAtAdd decimal.Decimal `json:"priceAtAdd" db:"price_at_add"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

// CartLine is the storage-neutral view of one cart entry, shared by the
// cookie cart and the database cart.
type CartLine struct {
	ProductID  uuid.UUID
	Quantity   int
	PriceAtAdd decimal.Decimal
}

// CartLineProduct pairs a stored line with the live product row.
type CartLineProduct struct {
	Line    CartLine
	Product Product
}

// CartView is the UI-ready cart, identical in shape for both storage modes.
type CartView struct {
	Items       []CartViewItem  `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	Source      CartSource      `json:"source"`
}

// CartViewItem is one line of a CartView joined with its product snapshot.
type CartViewItem struct {
	ProductID    uuid.UUID       `json:"productId"`
	Name         string          `json:"name"`
	ImageURL     string          `json:"imageUrl"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	PriceAtAdd   decimal.Decimal `json:"priceAtAdd"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Stock        int             `json:"stock"`
	IsActive     bool            `json:"isActive"`
}

// SyncResult reports the outcome of merging a guest cart into an account cart.
type SyncResult struct {
	SyncedItems  int             `json:"syncedItems"`
	SkippedItems int             `json:"skippedItems"`
	Errors       []SyncItemError `json:"errors,omitempty"`
}

// SyncItemError explains why one guest line was not merged.
type SyncItemError struct {
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}
