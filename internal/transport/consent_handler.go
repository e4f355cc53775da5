package transport

import (
	"errors"
	"net/http"

	"storefront/internal/consentcookie"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConsentRequest is the body of PUT /api/consent. Necessary cookies are
// always on and not part of the request.
type ConsentRequest struct {
	Analytics *bool `json:"analytics" validate:"required"`
	Marketing *bool `json:"marketing" validate:"required"`
}

// ConsentStatus tells the storefront whether to show the consent banner
type ConsentStatus struct {
	VisitorID     string `json:"visitor_id,omitempty"`
	Necessary     bool   `json:"necessary"`
	Analytics     bool   `json:"analytics"`
	Marketing     bool   `json:"marketing"`
	PolicyVersion string `json:"policy_version"`
	// Required is true when the visitor has not decided on the current policy
	Required bool `json:"required"`
}

// ConsentHandler records cookie consent for guests and signed-in users
type ConsentHandler struct {
	consents service.ConsentService
	cookie   consentcookie.Options
	logger   *zap.Logger
	dev      bool
}

// NewConsentHandler creates a new ConsentHandler
func NewConsentHandler(consents service.ConsentService, cookie consentcookie.Options, logger *zap.Logger, dev bool) *ConsentHandler {
	return &ConsentHandler{
		consents: consents,
		cookie:   cookie,
		logger:   logger,
		dev:      dev,
	}
}

// RegisterRoutes registers the consent routes. optionalAuth links a decision
// to the account when the caller is signed in.
func (h *ConsentHandler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Route("/api/consent", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.GetConsent)
		r.Put("/", h.SaveConsent)
	})
}

// GetConsent reads the stored decision of the visitor named by the cookie
func (h *ConsentHandler) GetConsent(w http.ResponseWriter, r *http.Request) {
	status := ConsentStatus{
		Necessary:     true,
		PolicyVersion: h.consents.PolicyVersion(),
		Required:      true,
	}

	current, ok := consentcookie.FromRequest(r, h.cookie.Name)
	if !ok {
		middleware.RespondWithSuccess(w, http.StatusOK, status)
		return
	}

	record, err := h.consents.Latest(r.Context(), current.VisitorID)
	if errors.Is(err, domain.ErrConsentNotFound) {
		middleware.RespondWithSuccess(w, http.StatusOK, status)
		return
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	status.VisitorID = record.VisitorID.String()
	status.Analytics = record.Analytics
	status.Marketing = record.Marketing
	status.Required = record.PolicyVersion != h.consents.PolicyVersion()
	middleware.RespondWithSuccess(w, http.StatusOK, status)
}

// SaveConsent records a new decision and refreshes the cookie
func (h *ConsentHandler) SaveConsent(w http.ResponseWriter, r *http.Request) {
	var req ConsentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondToDecodeError(w, err)
		return
	}

	input := service.ConsentInput{
		Preferences: domain.ConsentPreferences{Analytics: *req.Analytics, Marketing: *req.Marketing},
		IPAddress:   middleware.ClientIP(r),
		UserAgent:   r.UserAgent(),
	}
	if current, ok := consentcookie.FromRequest(r, h.cookie.Name); ok {
		input.VisitorID = current.VisitorID
	}
	if userID, ok := middleware.GetUserUUID(r.Context()); ok && userID != uuid.Nil {
		input.UserID = &userID
	}

	record, err := h.consents.Save(r.Context(), input)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}

	cookie, err := consentcookie.NewCookie(consentcookie.FromRecord(record), h.cookie)
	if err != nil {
		respondWithServiceError(w, r, h.logger, h.dev, err)
		return
	}
	http.SetCookie(w, cookie)

	middleware.RespondWithSuccess(w, http.StatusOK, ConsentStatus{
		VisitorID:     record.VisitorID.String(),
		Necessary:     true,
		Analytics:     record.Analytics,
		Marketing:     record.Marketing,
		PolicyVersion: record.PolicyVersion,
	})
}
