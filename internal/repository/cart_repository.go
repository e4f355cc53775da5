package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrCartItemNotFound = domain.ErrCartItemNotFound

	// ErrStockExceeded means the increment guard rejected the write: the
	// product is inactive or gone, or the summed quantity would pass stock.
	ErrStockExceeded = errors.New("cart quantity would exceed product stock")
)

// CartRepository defines data access for per-user carts and their lines
type CartRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error)
	ListLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLineProduct, error)
	IncrementItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, priceAtAdd decimal.Decimal) (*domain.CartItem, bool, error)
	SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

const cartItemColumns = `id, cart_id, product_id, quantity, price_at_add, created_at, updated_at`

func scanCartItem(row rowScanner, item *domain.CartItem, extra ...any) error {
	dest := []any{
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.PriceAtAdd,
		&item.CreatedAt,
		&item.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// GetOrCreate returns the user's cart header, creating the row on first use.
// Lines are not loaded; use ListLines or FindItem. Safe to call concurrently
// for the same user.
func (r *cartRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	insert := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	cart := &domain.Cart{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	item := &domain.CartItem{}
	if err := scanCartItem(r.db.QueryRowContext(ctx, query, cartID, productID), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	return item, nil
}

// ListLines returns every line of the cart joined with the live product row
func (r *cartRepository) ListLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLineProduct, error) {
	query := `
		SELECT ci.product_id, ci.quantity, ci.price_at_add,
		       p.id, p.name, COALESCE(p.description, ''), p.price, p.category_id,
		       COALESCE(p.image_url, ''), p.stock, p.is_active, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.product_id
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLineProduct{}
	for rows.Next() {
		var lp domain.CartLineProduct
		err := rows.Scan(
			&lp.Line.ProductID,
			&lp.Line.Quantity,
			&lp.Line.PriceAtAdd,
			&lp.Product.ID,
			&lp.Product.Name,
			&lp.Product.Description,
			&lp.Product.Price,
			&lp.Product.CategoryID,
			&lp.Product.ImageURL,
			&lp.Product.Stock,
			&lp.Product.IsActive,
			&lp.Product.CreatedAt,
			&lp.Product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

// IncrementItem inserts the line or adds quantity to the existing one in a
// single statement. The product must be active and the resulting quantity
// must fit in stock, otherwise nothing is written and ErrStockExceeded is
// returned. priceAtAdd is only used when the line is created. The bool
// reports whether a new line was inserted.
func (r *cartRepository) IncrementItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, priceAtAdd decimal.Decimal) (*domain.CartItem, bool, error) {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price_at_add, created_at, updated_at)
		SELECT $1, $2, p.id, $4, $5, NOW(), NOW()
		FROM products p
		WHERE p.id = $3 AND p.is_active AND p.stock >= $4
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    updated_at = NOW()
		WHERE cart_items.quantity + EXCLUDED.quantity <= (
			SELECT stock FROM products WHERE id = EXCLUDED.product_id
		)
		RETURNING ` + cartItemColumns + `, (xmax = 0) AS inserted
	`

	item := &domain.CartItem{}
	var inserted bool
	err := scanCartItem(
		r.db.QueryRowContext(ctx, query, uuid.New(), cartID, productID, quantity, priceAtAdd),
		item, &inserted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrStockExceeded
		}
		return nil, false, fmt.Errorf("failed to increment cart item: %w", err)
	}

	return item, inserted, nil
}

// SetItemQuantity overwrites the quantity of an existing line
func (r *cartRepository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE cart_id = $1 AND product_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	return expectOneRow(result, ErrCartItemNotFound)
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return expectOneRow(result, ErrCartItemNotFound)
}

// ClearItems deletes every line; the cart row itself is kept
func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
