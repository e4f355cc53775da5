package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var ErrConsentNotFound = domain.ErrConsentNotFound

// ConsentRepository stores the cookie consent audit trail
type ConsentRepository interface {
	Record(ctx context.Context, record *domain.ConsentRecord) error
	Latest(ctx context.Context, visitorID uuid.UUID) (*domain.ConsentRecord, error)
}

type consentRepository struct {
	db *sql.DB
}

// NewConsentRepository creates a new instance of ConsentRepository
func NewConsentRepository(db *sql.DB) ConsentRepository {
	return &consentRepository{db: db}
}

func (r *consentRepository) Record(ctx context.Context, record *domain.ConsentRecord) error {
	query := `
		INSERT INTO cookie_consents
			(id, visitor_id, user_id, necessary, analytics, marketing, policy_version, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.VisitorID,
		record.UserID,
		record.Necessary,
		record.Analytics,
		record.Marketing,
		record.PolicyVersion,
		record.IPAddress,
		record.UserAgent,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}
	return nil
}

// Latest returns the decision currently in force for the visitor
func (r *consentRepository) Latest(ctx context.Context, visitorID uuid.UUID) (*domain.ConsentRecord, error) {
	query := `
		SELECT id, visitor_id, user_id, necessary, analytics, marketing, policy_version,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM cookie_consents
		WHERE visitor_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	record := &domain.ConsentRecord{}
	err := r.db.QueryRowContext(ctx, query, visitorID).Scan(
		&record.ID,
		&record.VisitorID,
		&record.UserID,
		&record.Necessary,
		&record.Analytics,
		&record.Marketing,
		&record.PolicyVersion,
		&record.IPAddress,
		&record.UserAgent,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to load consent: %w", err)
	}

	return record, nil
}
