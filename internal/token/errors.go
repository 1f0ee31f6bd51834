package token

import (
	"errors"
	"fmt"
)

// Verification failures form a closed taxonomy. Callers distinguish
// cases with errors.Is / errors.As and map them to HTTP statuses at the
// boundary; the underlying crypto or parse error stays in the chain for
// logging and is never echoed to clients.
var (
	// ErrMalformed means the input is not a token at all
	// (e.g. not three dot-separated base64url segments).
	ErrMalformed = errors.New("malformed token")

	// ErrBadSignature means the token parsed but its signature does not
	// verify against the expected public key.
	ErrBadSignature = errors.New("invalid token signature")

	// ErrExpired means verification time is past the token's "exp".
	ErrExpired = errors.New("token expired")

	// ErrNotYetValid means verification time is before the token's "nbf".
	ErrNotYetValid = errors.New("token not yet valid")

	// ErrRevoked means the token's "jti" is on the revocation list.
	ErrRevoked = errors.New("token revoked")
)

// PolicyError reports which policy check rejected an otherwise valid token.
type PolicyError struct {
	// Check names the failed check (e.g. "entitlements", "geofence").
	Check string

	// Reason is a human-readable explanation.
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy check %q failed: %s", e.Check, e.Reason)
}

func policyDenied(check, format string, args ...any) *PolicyError {
	return &PolicyError{
		Check:  check,
		Reason: fmt.Sprintf(format, args...),
	}
}
