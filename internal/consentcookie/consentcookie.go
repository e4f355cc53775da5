// Package consentcookie encodes the visitor's cookie consent choice. The
// value is URL-encoded JSON that client scripts read before loading any
// optional tracker:
//
//	{"visitorId":"...","analytics":true,"marketing":false,"version":"2024-05","updatedAt":"..."}
package consentcookie

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

const DefaultName = "cookie_consent"

// Consent is the decoded cookie payload
type Consent struct {
	VisitorID uuid.UUID `json:"visitorId"`
	Analytics bool      `json:"analytics"`
	Marketing bool      `json:"marketing"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Options control how the cookie is written
type Options struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (o Options) name() string {
	if o.Name == "" {
		return DefaultName
	}
	return o.Name
}

// FromRecord builds the cookie payload for a stored decision
func FromRecord(record *domain.ConsentRecord) Consent {
	return Consent{
		VisitorID: record.VisitorID,
		Analytics: record.Analytics,
		Marketing: record.Marketing,
		Version:   record.PolicyVersion,
		UpdatedAt: record.CreatedAt,
	}
}

// Parse decodes a raw cookie value. ok is false for missing, malformed or
// anonymous values.
func Parse(value string) (consent Consent, ok bool) {
	if value == "" {
		return Consent{}, false
	}
	raw, err := url.PathUnescape(value)
	if err != nil {
		return Consent{}, false
	}
	if err := json.Unmarshal([]byte(raw), &consent); err != nil {
		return Consent{}, false
	}
	if consent.VisitorID == uuid.Nil {
		return Consent{}, false
	}
	return consent, true
}

// FromRequest reads the consent cookie named name from r
func FromRequest(r *http.Request, name string) (Consent, bool) {
	if name == "" {
		name = DefaultName
	}
	c, err := r.Cookie(name)
	if err != nil {
		return Consent{}, false
	}
	return Parse(c.Value)
}

// NewCookie builds the Set-Cookie value. Like the cart cookie it is not
// HttpOnly.
func NewCookie(consent Consent, opts Options) (*http.Cookie, error) {
	raw, err := json.Marshal(consent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode consent: %w", err)
	}

	return &http.Cookie{
		Name:     opts.name(),
		Value:    url.PathEscape(string(raw)),
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: false,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}
