package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// Scope values partition token families. Verifiers reject tokens whose
// scope does not match the one they expect.
const (
	ScopeAPI    = "api"
	ScopePantry = "pantry"
	ScopeSlack  = "slack"
)

// Claims is the decoded payload of a signed token.
// Registered claims and the well-known custom claims are modeled as
// struct fields; everything else lands in Extra.
type Claims struct {
	// registered claims (RFC 7519)
	Issuer    string    `json:"iss,omitempty"`
	Audience  string    `json:"aud,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	ID        string    `json:"jti,omitempty"`
	IssuedAt  time.Time `json:"iat,omitzero"`
	NotBefore time.Time `json:"nbf,omitzero"`
	ExpiresAt time.Time `json:"exp,omitzero"`

	// OrgID is the secondary subject identifier ("sub_id"), scoping
	// per-organization resources.
	OrgID string `json:"sub_id,omitempty"`

	// Scope is the token family tag (see Scope* constants).
	Scope string `json:"scope,omitempty"`

	// Roles are coarse role strings (e.g. "admin", "guest").
	Roles []string `json:"roles,omitempty"`

	// Entitlements are fine-grained permission strings (e.g. "events:create").
	Entitlements []string `json:"entitlements,omitempty"`

	// context-binding claims, captured at issuance
	Geohash   string `json:"geohash,omitempty"`
	ClientIP  string `json:"cdniip,omitempty"`
	UserAgent string `json:"swname,omitempty"`
	Timezone  string `json:"zoneinfo,omitempty"`

	// profile claims copied from the upstream identity
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Picture       string `json:"picture,omitempty"`

	// Extra holds domain-specific claims that have no struct field,
	// e.g. "authorization_details" for pantry check-in tokens.
	Extra map[string]any `json:"extra,omitempty"`
}

// PantryAuthorization is the typed shape of the "authorization_details"
// extension claim carried by pantry check-in tokens.
type PantryAuthorization struct {
	Points        int    `mapstructure:"points" json:"points"`
	HouseholdSize int    `mapstructure:"household_size" json:"household_size"`
	Appointment   string `mapstructure:"appointment" json:"appointment"` // YYYY-MM-DD
}

const authorizationDetailsClaim = "authorization_details"

// HasRole reports whether the claim set carries the given role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasEntitlement reports whether the claim set carries the given entitlement.
func (c *Claims) HasEntitlement(ent string) bool {
	for _, e := range c.Entitlements {
		if e == ent {
			return true
		}
	}
	return false
}

// AuthorizationDetails decodes the pantry authorization extension claim.
// It returns nil without error if the claim is absent.
func (c *Claims) AuthorizationDetails() (*PantryAuthorization, error) {
	raw, ok := c.Extra[authorizationDetailsClaim]
	if !ok {
		return nil, nil
	}
	var details PantryAuthorization
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &details,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder for %s: %w", authorizationDetailsClaim, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", authorizationDetailsClaim, err)
	}
	return &details, nil
}

// SetAuthorizationDetails attaches the pantry authorization extension claim.
func (c *Claims) SetAuthorizationDetails(details PantryAuthorization) {
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[authorizationDetailsClaim] = map[string]any{
		"points":         details.Points,
		"household_size": details.HouseholdSize,
		"appointment":    details.Appointment,
	}
}

// structFields are claim names with a dedicated Claims field.
// Anything else round-trips through Extra.
var structFields = map[string]struct{}{
	"iss": {}, "aud": {}, "sub": {}, "jti": {},
	"iat": {}, "nbf": {}, "exp": {},
	"sub_id": {}, "scope": {}, "roles": {}, "entitlements": {},
	"geohash": {}, "cdniip": {}, "swname": {}, "zoneinfo": {},
	"name": {}, "email": {}, "email_verified": {}, "picture": {},
}

// MapClaims converts the claim set into the wire shape used for signing.
func (c *Claims) MapClaims() jwt.MapClaims {
	m := jwt.MapClaims{
		"iss": c.Issuer,
		"aud": c.Audience,
		"sub": c.Subject,
		"jti": c.ID,
		"iat": c.IssuedAt.Unix(),
		"nbf": c.NotBefore.Unix(),
		"exp": c.ExpiresAt.Unix(),
	}
	if c.OrgID != "" {
		m["sub_id"] = c.OrgID
	}
	if c.Scope != "" {
		m["scope"] = c.Scope
	}
	if len(c.Roles) > 0 {
		m["roles"] = c.Roles
	}
	if len(c.Entitlements) > 0 {
		m["entitlements"] = c.Entitlements
	}
	if c.Geohash != "" {
		m["geohash"] = c.Geohash
	}
	if c.ClientIP != "" {
		m["cdniip"] = c.ClientIP
	}
	if c.UserAgent != "" {
		m["swname"] = c.UserAgent
	}
	if c.Timezone != "" {
		m["zoneinfo"] = c.Timezone
	}
	if c.Name != "" {
		m["name"] = c.Name
	}
	if c.Email != "" {
		m["email"] = c.Email
		m["email_verified"] = c.EmailVerified
	}
	if c.Picture != "" {
		m["picture"] = c.Picture
	}
	for k, v := range c.Extra {
		if _, reserved := structFields[k]; reserved {
			continue
		}
		m[k] = v
	}
	return m
}

// ClaimsFromMap rebuilds a Claims struct from a decoded token payload.
func ClaimsFromMap(m jwt.MapClaims) *Claims {
	c := &Claims{
		Issuer:    stringClaim(m, "iss"),
		Audience:  stringClaim(m, "aud"),
		Subject:   stringClaim(m, "sub"),
		ID:        stringClaim(m, "jti"),
		IssuedAt:  timeClaim(m, "iat"),
		NotBefore: timeClaim(m, "nbf"),
		ExpiresAt: timeClaim(m, "exp"),
		OrgID:     stringClaim(m, "sub_id"),
		Scope:     stringClaim(m, "scope"),
		Geohash:   stringClaim(m, "geohash"),
		ClientIP:  stringClaim(m, "cdniip"),
		UserAgent: stringClaim(m, "swname"),
		Timezone:  stringClaim(m, "zoneinfo"),
		Name:      stringClaim(m, "name"),
		Email:     stringClaim(m, "email"),
		Picture:   stringClaim(m, "picture"),
	}
	if v, ok := m["email_verified"].(bool); ok {
		c.EmailVerified = v
	}
	c.Roles = stringSliceClaim(m, "roles")
	c.Entitlements = stringSliceClaim(m, "entitlements")

	for k, v := range m {
		if _, reserved := structFields[k]; reserved {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return c
}

// Has reports whether the named claim is present, either as a non-zero
// struct field or as an Extra entry. Used for policy claim-presence checks.
func (c *Claims) Has(name string) bool {
	switch name {
	case "iss":
		return c.Issuer != ""
	case "aud":
		return c.Audience != ""
	case "sub":
		return c.Subject != ""
	case "jti":
		return c.ID != ""
	case "iat":
		return !c.IssuedAt.IsZero()
	case "nbf":
		return !c.NotBefore.IsZero()
	case "exp":
		return !c.ExpiresAt.IsZero()
	case "sub_id":
		return c.OrgID != ""
	case "scope":
		return c.Scope != ""
	case "roles":
		return len(c.Roles) > 0
	case "entitlements":
		return len(c.Entitlements) > 0
	case "geohash":
		return c.Geohash != ""
	case "cdniip":
		return c.ClientIP != ""
	case "swname":
		return c.UserAgent != ""
	case "zoneinfo":
		return c.Timezone != ""
	case "name":
		return c.Name != ""
	case "email":
		return c.Email != ""
	case "email_verified":
		return c.Email != ""
	case "picture":
		return c.Picture != ""
	default:
		_, ok := c.Extra[name]
		return ok
	}
}

func stringClaim(m jwt.MapClaims, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	// "aud" may arrive as a single-element list
	if list, ok := m[key].([]any); ok && len(list) == 1 {
		if s, ok := list[0].(string); ok {
			return s
		}
	}
	return ""
}

func timeClaim(m jwt.MapClaims, key string) time.Time {
	switch v := m[key].(type) {
	case float64:
		return time.Unix(int64(v), 0)
	case int64:
		return time.Unix(v, 0)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0)
		}
	}
	return time.Time{}
}

func stringSliceClaim(m jwt.MapClaims, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
