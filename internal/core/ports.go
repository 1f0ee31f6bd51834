package core

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned by a Directory when no organizational
	// record exists for the subject.
	ErrRecordNotFound = errors.New("no organizational record for subject")

	// ErrNoSigningKey is returned by a KeySource that cannot sign,
	// e.g. one backed by a remote JWKS endpoint.
	ErrNoSigningKey = errors.New("no signing key configured")
)

// Identity is a verified external identity assertion.
type Identity struct {
	// Subject is the stable subject identifier asserted by the provider.
	Subject string

	Email         string
	EmailVerified bool
	Name          string
	Picture       string

	// Provider is the name of the identity verifier that produced this identity.
	Provider string

	// Attributes are the remaining claims from the upstream token.
	Attributes map[string]any
}

// OrgRecord is the organizational record backing a subject.
type OrgRecord struct {
	// OrgID becomes the token's "sub_id" claim.
	OrgID string `firestore:"org" json:"org" yaml:"org"`

	Roles        []string `firestore:"roles" json:"roles" yaml:"roles"`
	Entitlements []string `firestore:"entitlements" json:"entitlements" yaml:"entitlements"`
}

// IdentityVerifier verifies upstream identity-provider tokens.
// Implementations: OIDC verifier, static verifier (dev/tests).
type IdentityVerifier interface {
	// Name returns the identifier of this verifier (as used in config).
	Name() string

	// Verify validates a raw ID token and returns the asserted identity.
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// Directory looks up organizational records by subject id.
type Directory interface {
	// Lookup returns the record for the subject or ErrRecordNotFound.
	Lookup(ctx context.Context, subject string) (*OrgRecord, error)
}

// KeySource provides the signing/verification key pair.
// The core never generates or rotates keys itself.
type KeySource interface {
	// KeyID identifies the key for the JWT "kid" header and the JWKS document.
	KeyID() string

	// SigningKey returns the private key, or ErrNoSigningKey.
	SigningKey(ctx context.Context) (*rsa.PrivateKey, error)

	// VerificationKey returns the public key matching the signer.
	VerificationKey(ctx context.Context) (*rsa.PublicKey, error)
}

// RevocationList tracks revoked token IDs ("jti") until they would have
// expired anyway.
type RevocationList interface {
	// Revoke marks the token ID revoked for the given remaining lifetime.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether the token ID has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenMetadata records an issued token for auditing and revocation.
type TokenMetadata struct {
	// ID is the token's "jti" claim.
	ID string `json:"id"`

	// CorrelationID is the request that created the token.
	CorrelationID string `json:"correlation_id"`

	Subject string `json:"subject"`
	OrgID   string `json:"org_id,omitempty"`
	Scope   string `json:"scope"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Revoked bool `json:"revoked"`

	// Fingerprint is a hash of the token value for tracing without
	// storing the token itself.
	Fingerprint string `json:"fingerprint"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// TokenStore manages the lifecycle records of issued tokens.
type TokenStore interface {
	// Save records a newly issued token.
	Save(ctx context.Context, meta TokenMetadata) error

	// ListActive returns tokens that have not expired yet.
	ListActive(ctx context.Context) ([]TokenMetadata, error)

	// FindByID returns the record for a token ID.
	FindByID(ctx context.Context, jti string) (*TokenMetadata, error)

	// SetRevoked marks the record revoked.
	SetRevoked(ctx context.Context, jti string) error

	// DeleteExpired removes expired records, returning how many were dropped.
	DeleteExpired(ctx context.Context) (int64, error)
}
