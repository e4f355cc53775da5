package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var ErrWishlistItemNotFound = fmt.Errorf("wishlist item %w", domain.ErrNotFound)

// WishlistRepository defines data access for saved products
type WishlistRepository interface {
	// Add saves the product for the user. Saving it twice is a no-op; the
	// result reports whether a row was created.
	Add(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error)
}

type wishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository creates a new instance of WishlistRepository
func NewWishlistRepository(db *sql.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) Add(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO wishlist_items (id, user_id, product_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, uuid.New(), userID, productID)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return false, ErrProductNotFound
		}
		return false, fmt.Errorf("failed to add wishlist item: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *wishlistRepository) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	return expectOneRow(result, ErrWishlistItemNotFound)
}

// List returns the newest saves first, each joined with its product row
func (r *wishlistRepository) List(ctx context.Context, userID uuid.UUID) ([]*domain.WishlistItem, error) {
	query := `
		SELECT w.id, w.user_id, w.created_at,
		       p.id, p.name, COALESCE(p.description, ''), p.price, p.category_id,
		       COALESCE(p.image_url, ''), p.stock, p.is_active, p.created_at, p.updated_at
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC, w.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	items := []*domain.WishlistItem{}
	for rows.Next() {
		item := &domain.WishlistItem{Product: &domain.Product{}}
		p := item.Product
		err := rows.Scan(
			&item.ID, &item.UserID, &item.CreatedAt,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID,
			&p.ImageURL, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		item.ProductID = p.ID
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist: %w", err)
	}

	return items, nil
}
