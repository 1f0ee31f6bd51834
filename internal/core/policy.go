package core

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Geofence restricts a token to the vicinity of a reference point.
// The token's stored geohash cell center must lie within RadiusMeters
// of (Lat, Lon). This is a soft anti-abuse signal, not a security
// boundary: a 6-character geohash cell is roughly 1.2 km x 0.6 km.
type Geofence struct {
	Lat          float64 `yaml:"lat" json:"lat"`
	Lon          float64 `yaml:"lon" json:"lon"`
	RadiusMeters float64 `yaml:"radius_meters" json:"radius_meters"`
}

// Policy declares what an endpoint requires from a token.
// Every field is optional; an empty Policy accepts any valid token.
// Checks are evaluated in a fixed order (see token.Verifier).
type Policy struct {
	// Name is a human-readable identifier for logs/debugging.
	Name string `yaml:"name" json:"name"`

	// Scope must match the token's scope exactly when set.
	Scope string `yaml:"scope" json:"scope"`

	// Issuer must match the token's "iss" exactly when set.
	Issuer string `yaml:"issuer" json:"issuer"`

	// Audience must match the token's "aud" exactly when set.
	Audience string `yaml:"audience" json:"audience"`

	// Roles is OR-matched: the token needs at least one of these.
	Roles []string `yaml:"roles" json:"roles"`

	// Entitlements is AND-matched: the token needs every one of these.
	Entitlements []string `yaml:"entitlements" json:"entitlements"`

	// RequiredClaims lists claim names that must be present on the token.
	RequiredClaims []string `yaml:"claims" json:"claims"`

	// OrgID must match the token's "sub_id" exactly when set. Handlers
	// fill this at request time to pin a caller to their own organization.
	OrgID string `yaml:"-" json:"org_id,omitempty"`

	// BindIP compares the requesting client IP to the token's "cdniip" claim.
	BindIP bool `yaml:"bind_ip" json:"bind_ip"`

	// BindUserAgent compares the request User-Agent to the token's "swname" claim.
	BindUserAgent bool `yaml:"bind_user_agent" json:"bind_user_agent"`

	// Geofence restricts the token's stored geohash to a radius around a point.
	Geofence *Geofence `yaml:"geofence" json:"geofence,omitempty"`

	// Expr is an optional expression evaluated against the claim set for
	// checks the enumerated fields cannot express. It must yield a bool.
	Expr string `yaml:"expr" json:"expr,omitempty"`

	// CompiledExpr holds the pre-compiled form of Expr.
	CompiledExpr *vm.Program `yaml:"-" json:"-"`
}

// Compile validates the policy and pre-compiles its expression, if any.
func (p *Policy) Compile() error {
	if p.Geofence != nil && p.Geofence.RadiusMeters <= 0 {
		return fmt.Errorf("geofence radius must be positive")
	}
	if p.Expr == "" {
		return nil
	}
	prog, err := expr.Compile(p.Expr, expr.AsBool())
	if err != nil {
		return fmt.Errorf("compiling policy expression: %w", err)
	}
	p.CompiledExpr = prog
	return nil
}

// RequestContext carries per-request attributes used by binding checks.
type RequestContext struct {
	ClientIP  string
	UserAgent string
}
