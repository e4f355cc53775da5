package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var ErrReviewNotFound = domain.ErrReviewNotFound

// ReviewRepository defines data access for product reviews
type ReviewRepository interface {
	// Upsert stores the user's review of the product, replacing an earlier
	// one. It reports whether a new row was created.
	Upsert(ctx context.Context, review *domain.Review) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error)
	Summary(ctx context.Context, productID uuid.UUID) (domain.RatingSummary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type reviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

const reviewColumns = `r.id, r.product_id, r.user_id, u.first_name, r.rating, r.comment, r.created_at, r.updated_at`

func scanReview(row rowScanner, review *domain.Review) error {
	return row.Scan(
		&review.ID,
		&review.ProductID,
		&review.UserID,
		&review.Author,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
}

// Upsert only writes while the product is active; otherwise it returns
// domain.ErrProductUnavailable.
func (r *reviewRepository) Upsert(ctx context.Context, review *domain.Review) (bool, error) {
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, comment, created_at, updated_at)
		SELECT $1, p.id, $3, $4, $5, NOW(), NOW()
		FROM products p
		WHERE p.id = $2 AND p.is_active
		ON CONFLICT (product_id, user_id) DO UPDATE
		SET rating = EXCLUDED.rating,
		    comment = EXCLUDED.comment
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		review.ID, review.ProductID, review.UserID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt, &inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrProductUnavailable
		}
		return false, fmt.Errorf("failed to save review: %w", err)
	}

	return inserted, nil
}

func (r *reviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`

	review := &domain.Review{}
	if err := scanReview(r.db.QueryRowContext(ctx, query, id), review); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}

	return review, nil
}

// ListByProduct returns the newest reviews first
func (r *reviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) ([]*domain.Review, int, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = $1`, productID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	query := `SELECT ` + reviewColumns + `
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC, r.id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, productID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		review := &domain.Review{}
		if err := scanReview(rows, review); err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, total, nil
}

func (r *reviewRepository) Summary(ctx context.Context, productID uuid.UUID) (domain.RatingSummary, error) {
	var summary domain.RatingSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8 FROM reviews WHERE product_id = $1`, productID,
	).Scan(&summary.Count, &summary.Average)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("failed to summarize reviews: %w", err)
	}
	return summary, nil
}

func (r *reviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return expectOneRow(result, ErrReviewNotFound)
}
