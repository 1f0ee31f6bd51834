package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/keys"
	"github.com/harborlight-org/tokend/internal/revocation"
)

const (
	testIssuer   = "https://auth.harborlight.org"
	testAudience = "https://harborlight.org"
)

func testKeys(t *testing.T) *keys.StaticSource {
	t.Helper()
	key, err := keys.Generate(2048)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	return keys.NewStaticSource("test-key", key)
}

func testPair(t *testing.T) (*Issuer, *Verifier) {
	t.Helper()
	src := testKeys(t)
	return NewIssuer(src, testIssuer, testAudience), NewVerifier(src, nil)
}

func adminRequest() Request {
	return Request{
		Subject:      "user-123",
		OrgID:        "org-456",
		Scope:        core.ScopeAPI,
		Roles:        []string{"admin"},
		Entitlements: []string{"events:create"},
		TTL:          1800 * time.Second,
		Email:        "admin@example.com",
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	if minted.ID == "" {
		t.Error("minted token has no jti")
	}

	policy := core.Policy{
		Roles:        []string{"admin"},
		Entitlements: []string{"events:create"},
	}
	claims, err := verifier.Verify(ctx, minted.Value, policy, core.RequestContext{})
	if err != nil {
		t.Fatalf("verifying token: %v", err)
	}

	if claims.Subject != "user-123" {
		t.Errorf("sub = %q, want user-123", claims.Subject)
	}
	if claims.OrgID != "org-456" {
		t.Errorf("sub_id = %q, want org-456", claims.OrgID)
	}
	if diff := cmp.Diff(minted.Claims.Entitlements, claims.Entitlements); diff != "" {
		t.Errorf("entitlements mismatch (-minted +verified):\n%s", diff)
	}
	if !claims.IssuedAt.Equal(claims.NotBefore) {
		t.Errorf("iat %s != nbf %s", claims.IssuedAt, claims.NotBefore)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt); got != 1800*time.Second {
		t.Errorf("ttl = %s, want 30m", got)
	}
}

func TestVerifyExpired(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	verifier.clock = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := verifier.Verify(ctx, minted.Value, core.Policy{}, core.RequestContext{}); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyNotYetValid(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	req := adminRequest()
	req.NotBefore = time.Now().Add(time.Hour)
	req.ExpiresAt = time.Now().Add(2 * time.Hour)
	minted, err := issuer.Issue(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.Verify(ctx, minted.Value, core.Policy{}, core.RequestContext{}); !errors.Is(err, ErrNotYetValid) {
		t.Errorf("expected ErrNotYetValid, got %v", err)
	}
}

func TestVerifyMissingEntitlement(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	policy := core.Policy{Entitlements: []string{"events:delete"}}
	_, err = verifier.Verify(ctx, minted.Value, policy, core.RequestContext{})

	var denied *PolicyError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	if denied.Check != "entitlements" {
		t.Errorf("failed check = %q, want entitlements", denied.Check)
	}
}

func TestVerifyRoleIntersection(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	req := adminRequest()
	req.Roles = []string{"guest"}
	minted, err := issuer.Issue(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	// OR-match: any common role suffices
	okPolicy := core.Policy{Roles: []string{"admin", "guest"}}
	if _, err := verifier.Verify(ctx, minted.Value, okPolicy, core.RequestContext{}); err != nil {
		t.Errorf("expected success with intersecting roles, got %v", err)
	}

	denyPolicy := core.Policy{Roles: []string{"admin", "staff"}}
	var denied *PolicyError
	if _, err := verifier.Verify(ctx, minted.Value, denyPolicy, core.RequestContext{}); !errors.As(err, &denied) || denied.Check != "roles" {
		t.Errorf("expected roles PolicyError, got %v", err)
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	// swap the subject inside the payload, keeping header and signature
	parts := strings.Split(minted.Value, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatal(err)
	}
	m["sub"] = "user-999"
	forged, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)
	tampered := strings.Join(parts, ".")

	if _, err := verifier.Verify(ctx, tampered, core.Policy{}, core.RequestContext{}); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	_, verifier := testPair(t)
	ctx := context.Background()

	for _, input := range []string{"", "not-a-token", "only.one-dot", "a.b.c.d"} {
		if _, err := verifier.Verify(ctx, input, core.Policy{}, core.RequestContext{}); !errors.Is(err, ErrMalformed) {
			t.Errorf("Verify(%q): expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestVerifyGeofence(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	req := adminRequest()
	req.Coordinates = &Coordinates{Lat: 35.6, Lon: -118.4}
	minted, err := issuer.Issue(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if minted.Claims.Geohash == "" {
		t.Fatal("expected geohash claim from coordinates")
	}

	near := core.Policy{Geofence: &core.Geofence{Lat: 35.6, Lon: -118.4, RadiusMeters: 10000}}
	if _, err := verifier.Verify(ctx, minted.Value, near, core.RequestContext{}); err != nil {
		t.Errorf("expected success inside fence, got %v", err)
	}

	// fence centered roughly 50 km east with a 10 km radius
	far := core.Policy{Geofence: &core.Geofence{Lat: 35.6, Lon: -117.85, RadiusMeters: 10000}}
	var denied *PolicyError
	if _, err := verifier.Verify(ctx, minted.Value, far, core.RequestContext{}); !errors.As(err, &denied) || denied.Check != "geofence" {
		t.Errorf("expected geofence PolicyError, got %v", err)
	}
}

func TestVerifyGeofenceWithoutGeohash(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	fence := core.Policy{Geofence: &core.Geofence{Lat: 35.6, Lon: -118.4, RadiusMeters: 1e9}}
	var denied *PolicyError
	if _, err := verifier.Verify(ctx, minted.Value, fence, core.RequestContext{}); !errors.As(err, &denied) || denied.Check != "geofence" {
		t.Errorf("token without geohash must fail fenced policies, got %v", err)
	}
}

func TestVerifyScopeAndIdentifiers(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		policy    core.Policy
		wantCheck string // empty means success expected
	}{
		{"matching scope", core.Policy{Scope: core.ScopeAPI}, ""},
		{"wrong scope", core.Policy{Scope: core.ScopePantry}, "scope"},
		{"matching audience", core.Policy{Audience: testAudience}, ""},
		{"wrong audience", core.Policy{Audience: "https://other.example"}, "audience"},
		{"matching issuer", core.Policy{Issuer: testIssuer}, ""},
		{"wrong issuer", core.Policy{Issuer: "https://rogue.example"}, "issuer"},
		{"required claims present", core.Policy{RequiredClaims: []string{"sub", "email", "sub_id"}}, ""},
		{"required claim missing", core.Policy{RequiredClaims: []string{"geohash"}}, "claims"},
		{"matching org", core.Policy{OrgID: "org-456"}, ""},
		{"foreign org", core.Policy{OrgID: "org-999"}, "sub_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, minted.Value, tt.policy, core.RequestContext{})
			if tt.wantCheck == "" {
				if err != nil {
					t.Errorf("expected success, got %v", err)
				}
				return
			}
			var denied *PolicyError
			if !errors.As(err, &denied) || denied.Check != tt.wantCheck {
				t.Errorf("expected %q PolicyError, got %v", tt.wantCheck, err)
			}
		})
	}
}

func TestVerifyContextBinding(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	req := adminRequest()
	req.ClientIP = "203.0.113.7"
	req.UserAgent = "Mozilla/5.0"
	minted, err := issuer.Issue(ctx, req)
	if err != nil {
		t.Fatal(err)
	}

	policy := core.Policy{BindIP: true, BindUserAgent: true}

	same := core.RequestContext{ClientIP: "203.0.113.7", UserAgent: "Mozilla/5.0"}
	if _, err := verifier.Verify(ctx, minted.Value, policy, same); err != nil {
		t.Errorf("expected success with matching bindings, got %v", err)
	}

	otherIP := core.RequestContext{ClientIP: "198.51.100.1", UserAgent: "Mozilla/5.0"}
	var denied *PolicyError
	if _, err := verifier.Verify(ctx, minted.Value, policy, otherIP); !errors.As(err, &denied) || denied.Check != "cdniip" {
		t.Errorf("expected cdniip PolicyError, got %v", err)
	}

	otherUA := core.RequestContext{ClientIP: "203.0.113.7", UserAgent: "curl/8.0"}
	if _, err := verifier.Verify(ctx, minted.Value, policy, otherUA); !errors.As(err, &denied) || denied.Check != "swname" {
		t.Errorf("expected swname PolicyError, got %v", err)
	}
}

func TestVerifyRevoked(t *testing.T) {
	src := testKeys(t)
	issuer := NewIssuer(src, testIssuer, testAudience)
	revoked := revocation.NewInMemoryList()
	verifier := NewVerifier(src, revoked)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.Verify(ctx, minted.Value, core.Policy{}, core.RequestContext{}); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	if err := revoked.Revoke(ctx, minted.ID, time.Until(minted.ExpiresAt)); err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.Verify(ctx, minted.Value, core.Policy{}, core.RequestContext{}); !errors.Is(err, ErrRevoked) {
		t.Errorf("expected ErrRevoked, got %v", err)
	}
}

func TestVerifyExprPolicy(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	minted, err := issuer.Issue(ctx, adminRequest())
	if err != nil {
		t.Fatal(err)
	}

	policy := core.Policy{Expr: `claims.Email endsWith "@example.com"`}
	if err := policy.Compile(); err != nil {
		t.Fatalf("compiling policy: %v", err)
	}
	if _, err := verifier.Verify(ctx, minted.Value, policy, core.RequestContext{}); err != nil {
		t.Errorf("expected success, got %v", err)
	}

	policy = core.Policy{Expr: `claims.Email endsWith "@other.org"`}
	if err := policy.Compile(); err != nil {
		t.Fatalf("compiling policy: %v", err)
	}
	var denied *PolicyError
	if _, err := verifier.Verify(ctx, minted.Value, policy, core.RequestContext{}); !errors.As(err, &denied) || denied.Check != "expr" {
		t.Errorf("expected expr PolicyError, got %v", err)
	}
}

func TestIssueWithoutSigningKey(t *testing.T) {
	issuer := NewIssuer(keys.NewStaticSource("none", nil), testIssuer, testAudience)
	if _, err := issuer.Issue(context.Background(), adminRequest()); !errors.Is(err, core.ErrNoSigningKey) {
		t.Errorf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}

	day := time.Date(2025, 9, 12, 15, 30, 0, 0, loc)
	nbf, exp := DayWindow(day, loc)

	if nbf.Hour() != 0 || nbf.Minute() != 0 || nbf.Second() != 0 {
		t.Errorf("nbf = %s, want midnight", nbf)
	}
	if exp.Hour() != 23 || exp.Minute() != 59 || exp.Second() != 59 {
		t.Errorf("exp = %s, want 23:59:59", exp)
	}
	if nbf.Day() != 12 || exp.Day() != 12 {
		t.Errorf("window [%s, %s] not within the appointment day", nbf, exp)
	}
}

func TestPantryCheckinToken(t *testing.T) {
	issuer, verifier := testPair(t)
	ctx := context.Background()

	claims := &core.Claims{}
	claims.SetAuthorizationDetails(core.PantryAuthorization{
		Points:        40,
		HouseholdSize: 4,
		Appointment:   "2025-09-12",
	})

	nbf, exp := DayWindow(time.Now(), time.Local)
	minted, err := issuer.Issue(ctx, Request{
		Subject:   "user-123",
		OrgID:     "org-456",
		Scope:     core.ScopePantry,
		NotBefore: nbf,
		ExpiresAt: exp,
		Extra:     claims.Extra,
	})
	if err != nil {
		t.Fatal(err)
	}

	verified, err := verifier.Verify(ctx, minted.Value, core.Policy{Scope: core.ScopePantry}, core.RequestContext{})
	if err != nil {
		t.Fatal(err)
	}

	details, err := verified.AuthorizationDetails()
	if err != nil {
		t.Fatalf("decoding authorization_details: %v", err)
	}
	want := &core.PantryAuthorization{Points: 40, HouseholdSize: 4, Appointment: "2025-09-12"}
	if diff := cmp.Diff(want, details); diff != "" {
		t.Errorf("authorization_details mismatch (-want +got):\n%s", diff)
	}
}
