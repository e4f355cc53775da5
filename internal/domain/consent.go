package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConsentPreferences are the cookie categories a visitor agreed to.
// Necessary cookies cannot be refused.
type ConsentPreferences struct {
	Analytics bool `json:"analytics"`
	Marketing bool `json:"marketing"`
}

// ConsentRecord is one stored consent decision. Records are never updated;
// the newest one for a visitor is in force.
type ConsentRecord struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	VisitorID     uuid.UUID  `json:"visitor_id" db:"visitor_id"`
	UserID        *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Necessary     bool       `json:"necessary" db:"necessary"`
	Analytics     bool       `json:"analytics" db:"analytics"`
	Marketing     bool       `json:"marketing" db:"marketing"`
	PolicyVersion string     `json:"policy_version" db:"policy_version"`
	IPAddress     string     `json:"-" db:"ip_address"`
	UserAgent     string     `json:"-" db:"user_agent"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Preferences returns the optional categories of the record
func (c *ConsentRecord) Preferences() ConsentPreferences {
	return ConsentPreferences{Analytics: c.Analytics, Marketing: c.Marketing}
}
