package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "session.issue", "session.revoke")
	Action string `json:"action"`

	// Subject identifies who made the request
	Subject string `json:"subject,omitempty"`
	OrgID   string `json:"org_id,omitempty"`

	// Scope of the token involved, if any
	Scope string `json:"scope,omitempty"`

	// TokenID is the "jti" of the token involved, if any
	TokenID string `json:"token_id,omitempty"`

	// TokenFingerprint of the token involved, if any
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// Granted indicates whether the operation succeeded
	Granted bool `json:"granted"`

	// Error is the short failure reason shown to operators
	Error string `json:"error,omitempty"`

	// Stacktrace carries the underlying error chain, never echoed to clients
	Stacktrace string `json:"stacktrace,omitempty"`

	// Metadata contains extra details (e.g. policy name, client IP)
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditSearcher is implemented by auditors that support querying,
// e.g. the in-memory auditor. The file auditor is write-only.
type AuditSearcher interface {
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
