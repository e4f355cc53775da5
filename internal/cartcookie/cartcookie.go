// Package cartcookie encodes the guest cart that lives entirely in the
// browser. The cookie value is URL-encoded JSON readable by client scripts:
//
//	{"items":[{"productId":"...","quantity":2,"priceAtAdd":"12.50"}],"updatedAt":"..."}
//
// Every helper that changes a cart returns a new value and leaves its input
// untouched.
package cartcookie

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultName = "guest_cart"

	// MaxSize is the largest value browsers reliably keep for one cookie.
	MaxSize = 4096
)

var ErrCookieTooLarge = errors.New("guest cart does not fit in a cookie")

// now is replaced in tests
var now = time.Now

// Item is one guest cart line. ProductID is a canonical UUID string.
type Item struct {
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"priceAtAdd"`
}

// Cart is the decoded cookie payload. Product ids are unique within Items.
type Cart struct {
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Options control how the cookie is written
type Options struct {
	Name    string
	MaxAge  time.Duration
	Secure  bool
	MaxSize int
}

func (o Options) name() string {
	if o.Name == "" {
		return DefaultName
	}
	return o.Name
}

func (o Options) maxSize() int {
	if o.MaxSize <= 0 {
		return MaxSize
	}
	return o.MaxSize
}

// Clear returns an empty cart
func Clear() Cart {
	return Cart{Items: []Item{}, UpdatedAt: now().UTC()}
}

// Parse decodes a raw cookie value. Missing or malformed values yield an
// empty cart. Lines with a bad product id or a quantity below one are
// dropped, and repeated product ids are folded into one line. Quantities are
// clamped to domain.MaxLineQuantity.
func Parse(value string) Cart {
	if value == "" {
		return Clear()
	}

	raw, err := url.PathUnescape(value)
	if err != nil {
		return Clear()
	}

	var decoded Cart
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Clear()
	}

	cart := Cart{Items: make([]Item, 0, len(decoded.Items)), UpdatedAt: decoded.UpdatedAt}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = now().UTC()
	}

	index := make(map[string]int, len(decoded.Items))
	for _, item := range decoded.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil || item.Quantity < 1 || item.PriceAtAdd.IsNegative() {
			continue
		}
		key := id.String()
		if i, ok := index[key]; ok {
			cart.Items[i].Quantity = addCapped(cart.Items[i].Quantity, item.Quantity)
			continue
		}
		index[key] = len(cart.Items)
		cart.Items = append(cart.Items, Item{ProductID: key, Quantity: addCapped(0, item.Quantity), PriceAtAdd: item.PriceAtAdd})
	}

	return cart
}

// FromRequest reads the guest cart cookie named name from r
func FromRequest(r *http.Request, name string) Cart {
	if name == "" {
		name = DefaultName
	}
	c, err := r.Cookie(name)
	if err != nil {
		return Clear()
	}
	return Parse(c.Value)
}

// Encode serializes the cart into a cookie-safe value
func Encode(cart Cart) (string, error) {
	if cart.Items == nil {
		cart.Items = []Item{}
	}
	raw, err := json.Marshal(cart)
	if err != nil {
		return "", fmt.Errorf("failed to encode guest cart: %w", err)
	}
	return url.PathEscape(string(raw)), nil
}

// NewCookie builds the Set-Cookie value for cart. The cookie is readable by
// client scripts so the storefront can show a badge without a round trip.
func NewCookie(cart Cart, opts Options) (*http.Cookie, error) {
	value, err := Encode(cart)
	if err != nil {
		return nil, err
	}
	if len(value) > opts.maxSize() {
		return nil, ErrCookieTooLarge
	}

	return &http.Cookie{
		Name:     opts.name(),
		Value:    value,
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: false,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// ExpiredCookie tells the browser to drop the guest cart
func ExpiredCookie(opts Options) *http.Cookie {
	return &http.Cookie{
		Name:     opts.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// AddItem adds quantity to an existing line, keeping its original price,
// or appends a new line priced at price. The line never holds more than
// domain.MaxLineQuantity.
func AddItem(cart Cart, productID string, quantity int, price decimal.Decimal) Cart {
	out := cart.clone()
	if i := out.indexOf(productID); i >= 0 {
		out.Items[i].Quantity = addCapped(out.Items[i].Quantity, quantity)
	} else {
		out.Items = append(out.Items, Item{ProductID: productID, Quantity: addCapped(0, quantity), PriceAtAdd: price})
	}
	out.UpdatedAt = now().UTC()
	return out
}

// UpdateQuantity sets an absolute quantity; zero or less removes the line
func UpdateQuantity(cart Cart, productID string, quantity int) Cart {
	if quantity <= 0 {
		return RemoveItem(cart, productID)
	}
	out := cart.clone()
	if i := out.indexOf(productID); i >= 0 {
		out.Items[i].Quantity = min(quantity, domain.MaxLineQuantity)
	}
	out.UpdatedAt = now().UTC()
	return out
}

// RemoveItem drops the line for productID. Removing an absent line is a no-op.
func RemoveItem(cart Cart, productID string) Cart {
	out := Cart{Items: make([]Item, 0, len(cart.Items)), UpdatedAt: now().UTC()}
	for _, item := range cart.Items {
		if item.ProductID != productID {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

// Find returns the line for productID
func (c Cart) Find(productID string) (Item, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// ItemCount is the total number of units in the cart
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Lines converts the cookie payload into storage-neutral cart lines.
// Items with unparsable ids are skipped; Parse never produces them.
func (c Cart) Lines() []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(c.Items))
	for _, item := range c.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			continue
		}
		lines = append(lines, domain.CartLine{ProductID: id, Quantity: item.Quantity, PriceAtAdd: item.PriceAtAdd})
	}
	return lines
}

func addCapped(a, b int) int {
	return min(domain.SumQuantities(a, b), domain.MaxLineQuantity)
}

func (c Cart) indexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	items := make([]Item, len(c.Items), len(c.Items)+1)
	copy(items, c.Items)
	return Cart{Items: items, UpdatedAt: c.UpdatedAt}
}
