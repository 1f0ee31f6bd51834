package service

import (
	"time"

	"github.com/harborlight-org/tokend/internal/token"
)

// SessionRequest exchanges an upstream ID token for a session token.
type SessionRequest struct {
	// IDToken is the raw upstream identity-provider token.
	IDToken string

	// Provider is optional. If empty, auto-discovery via the token's
	// "iss" claim is attempted.
	Provider string

	// request-context attributes, all optional
	ClientIP    string
	UserAgent   string
	Timezone    string
	Coordinates *token.Coordinates
}

// CheckinRequest mints a pantry check-in token valid only on the
// appointment's calendar day.
type CheckinRequest struct {
	Subject       string    `json:"subject"`
	OrgID         string    `json:"org_id"`
	Appointment   time.Time `json:"appointment"`
	Points        int       `json:"points"`
	HouseholdSize int       `json:"household_size"`
}
