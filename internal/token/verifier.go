package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/golang-jwt/jwt/v5"

	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/geo"
)

// Verifier validates token strings against declarative policies.
// Verification is a pure function of (token, policy, key material,
// current time) plus one revocation-list read; it never mutates shared
// state, so a single Verifier is safe for concurrent use.
type Verifier struct {
	keys    core.KeySource
	revoked core.RevocationList // optional

	clock func() time.Time
}

func NewVerifier(keys core.KeySource, revoked core.RevocationList) *Verifier {
	return &Verifier{
		keys:    keys,
		revoked: revoked,
		clock:   time.Now,
	}
}

// Verify validates the token and evaluates the policy, first failure
// short-circuiting. On success it returns the full decoded claim set.
// Expected failures are returned as the taxonomy in errors.go, never
// panics: the caller inspects them with errors.Is / errors.As.
func (v *Verifier) Verify(ctx context.Context, tokenStr string, policy core.Policy, reqCtx core.RequestContext) (*core.Claims, error) {
	// 1. structural check: not three dot-separated segments means this
	// is not a token at all, as opposed to an invalid one.
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	key, err := v.keys.VerificationKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching verification key: %w", err)
	}

	// 2. parse and verify the signature. Time validation is disabled
	// here; the window check below uses our own clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
		}
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}
	claims := core.ClaimsFromMap(mapClaims)

	// 3. time window
	now := v.clock()
	if claims.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformed)
	}
	if !claims.NotBefore.IsZero() && now.Before(claims.NotBefore) {
		return nil, ErrNotYetValid
	}
	if now.After(claims.ExpiresAt) {
		return nil, ErrExpired
	}

	// 4. revocation list
	if v.revoked != nil && claims.ID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking revocation list: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	// 5. policy
	if err := evaluatePolicy(policy, claims, reqCtx); err != nil {
		return nil, err
	}

	return claims, nil
}

// evaluatePolicy runs the enumerated checks in a fixed order.
func evaluatePolicy(p core.Policy, c *core.Claims, reqCtx core.RequestContext) error {
	for _, name := range p.RequiredClaims {
		if !c.Has(name) {
			return policyDenied("claims", "required claim %q not present", name)
		}
	}

	if p.Audience != "" && c.Audience != p.Audience {
		return policyDenied("audience", "expected %q, token has %q", p.Audience, c.Audience)
	}
	if p.Issuer != "" && c.Issuer != p.Issuer {
		return policyDenied("issuer", "expected %q, token has %q", p.Issuer, c.Issuer)
	}
	if p.Scope != "" && c.Scope != p.Scope {
		return policyDenied("scope", "expected %q, token has %q", p.Scope, c.Scope)
	}

	if len(p.Roles) > 0 {
		matched := false
		for _, role := range p.Roles {
			if c.HasRole(role) {
				matched = true
				break
			}
		}
		if !matched {
			return policyDenied("roles", "token roles %v do not intersect required %v", c.Roles, p.Roles)
		}
	}

	for _, ent := range p.Entitlements {
		if !c.HasEntitlement(ent) {
			return policyDenied("entitlements", "missing entitlement %q", ent)
		}
	}

	if p.BindIP && c.ClientIP != reqCtx.ClientIP {
		return policyDenied("cdniip", "token bound to a different client address")
	}
	if p.BindUserAgent && c.UserAgent != reqCtx.UserAgent {
		return policyDenied("swname", "token bound to a different user agent")
	}

	if p.Geofence != nil {
		f := p.Geofence
		if !geo.WithinRadius(c.Geohash, f.Lat, f.Lon, f.RadiusMeters) {
			return policyDenied("geofence", "token location outside allowed radius")
		}
	}

	if p.OrgID != "" && c.OrgID != p.OrgID {
		return policyDenied("sub_id", "token scoped to a different organization")
	}

	if p.CompiledExpr != nil {
		out, err := expr.Run(p.CompiledExpr, map[string]any{"claims": c})
		if err != nil {
			return policyDenied("expr", "error evaluating expression: %v", err)
		}
		if b, ok := out.(bool); !ok || !b {
			return policyDenied("expr", "expression evaluated to false")
		}
	}

	return nil
}
