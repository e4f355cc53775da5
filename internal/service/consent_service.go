package service

import (
	"context"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsentInput is one consent decision as submitted by the browser
type ConsentInput struct {
	// VisitorID is uuid.Nil for a visitor who never decided before
	VisitorID   uuid.UUID
	UserID      *uuid.UUID
	Preferences domain.ConsentPreferences
	IPAddress   string
	UserAgent   string
}

// ConsentService records cookie consent decisions against the current
// policy version
type ConsentService interface {
	Save(ctx context.Context, input ConsentInput) (*domain.ConsentRecord, error)
	Latest(ctx context.Context, visitorID uuid.UUID) (*domain.ConsentRecord, error)
	PolicyVersion() string
}

type consentService struct {
	consents      repository.ConsentRepository
	policyVersion string
	logger        *zap.Logger
}

// NewConsentService creates a new instance of ConsentService
func NewConsentService(consents repository.ConsentRepository, policyVersion string, logger *zap.Logger) ConsentService {
	return &consentService{
		consents:      consents,
		policyVersion: policyVersion,
		logger:        logger,
	}
}

func (s *consentService) PolicyVersion() string {
	return s.policyVersion
}

// Save appends a new record; earlier decisions are kept for audit
func (s *consentService) Save(ctx context.Context, input ConsentInput) (*domain.ConsentRecord, error) {
	visitorID := input.VisitorID
	if visitorID == uuid.Nil {
		visitorID = uuid.New()
	}

	record := &domain.ConsentRecord{
		ID:            uuid.New(),
		VisitorID:     visitorID,
		UserID:        input.UserID,
		Necessary:     true,
		Analytics:     input.Preferences.Analytics,
		Marketing:     input.Preferences.Marketing,
		PolicyVersion: s.policyVersion,
		IPAddress:     input.IPAddress,
		UserAgent:     input.UserAgent,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.consents.Record(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("cookie consent recorded",
		zap.String("visitor_id", visitorID.String()),
		zap.Bool("analytics", record.Analytics),
		zap.Bool("marketing", record.Marketing),
		zap.String("policy_version", s.policyVersion),
	)
	return record, nil
}

func (s *consentService) Latest(ctx context.Context, visitorID uuid.UUID) (*domain.ConsentRecord, error) {
	return s.consents.Latest(ctx, visitorID)
}
