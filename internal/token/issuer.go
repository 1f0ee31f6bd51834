package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/geo"
)

// Coordinates are best-effort network-derived caller coordinates.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Request describes a token to be minted. The issuer fills in the
// registered claims (iss, aud, iat, nbf, exp, jti) itself.
type Request struct {
	Subject string
	OrgID   string
	Scope   string

	Roles        []string
	Entitlements []string

	// TTL sets exp = now + TTL with iat = nbf = now. Ignored when
	// NotBefore/ExpiresAt are both set (e.g. pantry day windows).
	TTL       time.Duration
	NotBefore time.Time
	ExpiresAt time.Time

	// profile claims copied from the verified upstream identity
	Name          string
	Email         string
	EmailVerified bool
	Picture       string

	// optional request-context bindings
	ClientIP    string
	UserAgent   string
	Timezone    string
	Coordinates *Coordinates

	// Extra claims are carried verbatim (e.g. authorization_details).
	Extra map[string]any
}

// Token is the result of a successful Issue operation.
type Token struct {
	// Value is the compact signed token string.
	Value string `json:"value"`

	// ID is the token's "jti", handed back so callers can track token
	// identity without reading the cookie.
	ID string `json:"id"`

	// ExpiresAt indicates when this token becomes invalid.
	ExpiresAt time.Time `json:"expires_at"`

	// Claims is the full minted claim set.
	Claims *core.Claims `json:"-"`
}

// Issuer mints scoped, signed tokens bound to a verified identity.
type Issuer struct {
	keys     core.KeySource
	issuer   string
	audience string

	// clock is swapped in tests
	clock func() time.Time
}

func NewIssuer(keys core.KeySource, issuerURL, audience string) *Issuer {
	return &Issuer{
		keys:     keys,
		issuer:   issuerURL,
		audience: audience,
		clock:    time.Now,
	}
}

// Issue mints a signed token for the request. It fails with
// core.ErrNoSigningKey (mapped to NotImplemented at the boundary) when
// the key source cannot sign.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Token, error) {
	key, err := i.keys.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching signing key: %w", err)
	}

	now := i.clock().Truncate(time.Second)
	nbf, exp := now, now.Add(req.TTL)
	if !req.NotBefore.IsZero() && !req.ExpiresAt.IsZero() {
		nbf, exp = req.NotBefore, req.ExpiresAt
	}
	if !exp.After(nbf) {
		return nil, fmt.Errorf("token window is empty: nbf %s, exp %s", nbf, exp)
	}

	claims := &core.Claims{
		Issuer:        i.issuer,
		Audience:      i.audience,
		Subject:       req.Subject,
		ID:            uuid.NewString(),
		IssuedAt:      now,
		NotBefore:     nbf,
		ExpiresAt:     exp,
		OrgID:         req.OrgID,
		Scope:         req.Scope,
		Roles:         req.Roles,
		Entitlements:  req.Entitlements,
		ClientIP:      req.ClientIP,
		UserAgent:     req.UserAgent,
		Timezone:      req.Timezone,
		Name:          req.Name,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		Picture:       req.Picture,
		Extra:         req.Extra,
	}
	if req.Coordinates != nil {
		claims.Geohash = geo.Encode(req.Coordinates.Lat, req.Coordinates.Lon)
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodRS256, claims.MapClaims())
	jwtToken.Header["kid"] = i.keys.KeyID()

	signed, err := jwtToken.SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &Token{
		Value:     signed,
		ID:        claims.ID,
		ExpiresAt: exp,
		Claims:    claims,
	}, nil
}

// DayWindow returns the [00:00, 23:59:59] bounds of the given calendar
// day in the given location. Pantry check-in tokens are valid only for
// the scheduled appointment's day.
func DayWindow(day time.Time, loc *time.Location) (nbf, exp time.Time) {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()
	nbf = time.Date(y, m, d, 0, 0, 0, 0, loc)
	exp = nbf.Add(24*time.Hour - time.Second)
	return nbf, exp
}
