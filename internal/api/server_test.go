package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harborlight-org/tokend/internal/audit"
	"github.com/harborlight-org/tokend/internal/config"
	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/directory"
	"github.com/harborlight-org/tokend/internal/identity"
	"github.com/harborlight-org/tokend/internal/keys"
	"github.com/harborlight-org/tokend/internal/revocation"
	"github.com/harborlight-org/tokend/internal/service"
	"github.com/harborlight-org/tokend/internal/store"
	"github.com/harborlight-org/tokend/internal/tasks"
	"github.com/harborlight-org/tokend/internal/token"
)

const (
	adminIDToken    = "static-admin-token"
	memberIDToken   = "static-member-token"
	noEmailIDToken  = "static-unverified-token"
	orphanIDToken   = "static-orphan-token"
	testIssuerURL   = "https://tokend.test"
	testAudience    = "harborlight"
	testSigningKID  = "test-key"
	testSessionTTL  = 30 * time.Minute
	pantryTestZone  = "America/Los_Angeles"
	adminSubject    = "admin-1"
	memberSubject   = "member-1"
	orphanSubject   = "orphan-1"
)

func newTestHandler(t *testing.T) (http.Handler, *store.InMemoryTokenStore) {
	t.Helper()

	key, err := keys.Generate(2048)
	if err != nil {
		t.Fatalf("generating test key: %v", err)
	}
	keySource := keys.NewStaticSource(testSigningKID, key)

	cfg := &config.Config{
		Issuer: config.IssuerConfig{
			URL:        testIssuerURL,
			Audience:   testAudience,
			KeyID:      testSigningKID,
			SessionTTL: testSessionTTL,
		},
		Pantry: config.PantryConfig{Timezone: pantryTestZone},
		Policies: []core.Policy{
			{Name: "events-admin", Scope: core.ScopeAPI, Entitlements: []string{"events:create"}},
		},
	}

	registry, err := identity.BuildRegistry(context.Background(), []config.ProviderConfig{
		{
			Name: "static",
			Type: "static",
			Config: map[string]any{
				"token_map": map[string]any{
					adminIDToken: map[string]any{
						"sub":            adminSubject,
						"email":          "admin@example.org",
						"email_verified": true,
						"name":           "Admin One",
					},
					memberIDToken: map[string]any{
						"sub":            memberSubject,
						"email":          "member@example.org",
						"email_verified": true,
						"name":           "Member One",
					},
					noEmailIDToken: map[string]any{
						"sub":            "unverified-1",
						"email":          "unverified@example.org",
						"email_verified": false,
					},
					orphanIDToken: map[string]any{
						"sub":            orphanSubject,
						"email":          "orphan@example.org",
						"email_verified": true,
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("building identity registry: %v", err)
	}

	dir := directory.NewInMemoryDirectory(map[string]core.OrgRecord{
		adminSubject: {
			OrgID:        "org-1",
			Roles:        []string{"admin"},
			Entitlements: []string{"events:create", "pantry:schedule"},
		},
		memberSubject: {
			OrgID: "org-1",
			Roles: []string{"member"},
		},
	})

	revoked := revocation.NewInMemoryList()
	tokenStore := store.NewInMemoryTokenStore()
	auditor := audit.NewInMemoryAuditor()

	issuer := token.NewIssuer(keySource, cfg.Issuer.URL, cfg.Issuer.Audience)
	verifier := token.NewVerifier(keySource, revoked)

	loc, err := cfg.Pantry.Location()
	if err != nil {
		t.Fatalf("resolving pantry timezone: %v", err)
	}

	svc := service.NewTokenService(registry, dir, issuer, revoked, tokenStore, auditor, cfg.Issuer.SessionTTL, loc)
	srv := NewServer(cfg, keySource, verifier, tasks.NewManager(), auditor, tokenStore, svc)
	return srv.Routes(), tokenStore
}

func createSession(t *testing.T, handler http.Handler, idToken string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, SessionRoute,
		strings.NewReader(`{"provider": "static"}`))
	req.Header.Set("Authorization", "Bearer "+idToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("session creation returned %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "org-jwt" {
			return c
		}
	}
	t.Fatal("no org-jwt cookie in session response")
	return nil
}

func TestCreateSession(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, SessionRoute,
		strings.NewReader(`{"provider": "static"}`))
	req.Header.Set("Authorization", "Bearer "+adminIDToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TokenID == "" {
		t.Error("expected a token ID in the response")
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Errorf("expected a future expiry, got %v", resp.ExpiresAt)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "org-jwt" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no org-jwt cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if cookie.Path != "/api/" {
		t.Errorf("session cookie path = %q, want /api/", cookie.Path)
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Error("session cookie must be SameSite=Strict")
	}
}

func TestCreateSessionFailures(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing credential", "", http.StatusUnauthorized},
		{"unknown upstream token", "Bearer bogus", http.StatusUnauthorized},
		{"unverified email", "Bearer " + noEmailIDToken, http.StatusForbidden},
		{"no org record", "Bearer " + orphanIDToken, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, SessionRoute,
				strings.NewReader(`{"provider": "static"}`))
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("got %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestDeleteSessionRevokesToken(t *testing.T) {
	handler, _ := newTestHandler(t)
	cookie := createSession(t, handler, adminIDToken)

	req := httptest.NewRequest(http.MethodDelete, SessionRoute, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("sign-out returned %d: %s", rec.Code, rec.Body.String())
	}

	// cookie must be expired
	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "org-jwt" {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Error("expected the session cookie to be expired on sign-out")
	}

	// the revoked token no longer verifies
	verifyReq := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
		strings.NewReader(`{"token": "`+cookie.Value+`"}`))
	verifyRec := httptest.NewRecorder()
	handler.ServeHTTP(verifyRec, verifyReq)

	var resp VerifyResponse
	if err := json.NewDecoder(verifyRec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding verify response: %v", err)
	}
	if resp.Active {
		t.Error("expected the revoked session to be inactive")
	}
}

func TestVerifyEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	cookie := createSession(t, handler, adminIDToken)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
			strings.NewReader(`{"token": "`+cookie.Value+`"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp VerifyResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !resp.Active {
			t.Fatalf("expected active token, got error %q", resp.Error)
		}
		if resp.Claims.Subject != adminSubject {
			t.Errorf("sub = %q, want %q", resp.Claims.Subject, adminSubject)
		}
		if resp.Claims.OrgID != "org-1" {
			t.Errorf("sub_id = %q, want org-1", resp.Claims.OrgID)
		}
	})

	t.Run("named policy grants entitled holder", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
			strings.NewReader(`{"token": "`+cookie.Value+`", "policy": "events-admin"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		var resp VerifyResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !resp.Active {
			t.Fatalf("expected active, got error %q", resp.Error)
		}
	})

	t.Run("named policy denies missing entitlement", func(t *testing.T) {
		memberCookie := createSession(t, handler, memberIDToken)
		req := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
			strings.NewReader(`{"token": "`+memberCookie.Value+`", "policy": "events-admin"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		var resp VerifyResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Active {
			t.Fatal("expected inactive for missing entitlement")
		}
		if resp.Check != "entitlements" {
			t.Errorf("check = %q, want entitlements", resp.Check)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
			strings.NewReader(`{"token": "not.a.jwt"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp VerifyResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Active {
			t.Error("expected inactive for malformed token")
		}
	})

	t.Run("unknown policy", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
			strings.NewReader(`{"token": "`+cookie.Value+`", "policy": "nope"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	handler, _ := newTestHandler(t)

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, ListActiveTokensRoute, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("member", func(t *testing.T) {
		cookie := createSession(t, handler, memberIDToken)
		req := httptest.NewRequest(http.MethodGet, ListActiveTokensRoute, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("admin", func(t *testing.T) {
		cookie := createSession(t, handler, adminIDToken)
		req := httptest.NewRequest(http.MethodGet, ListActiveTokensRoute, nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var tokens []core.TokenMetadata
		if err := json.NewDecoder(rec.Body).Decode(&tokens); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(tokens) == 0 {
			t.Error("expected at least the admin's own session in the active list")
		}
	})
}

func TestAdminRevoke(t *testing.T) {
	handler, _ := newTestHandler(t)
	adminCookie := createSession(t, handler, adminIDToken)
	victimCookie := createSession(t, handler, memberIDToken)

	// extract the victim's jti via introspection
	verifyReq := httptest.NewRequest(http.MethodPost, VerifyTokenRoute,
		strings.NewReader(`{"token": "`+victimCookie.Value+`"}`))
	verifyRec := httptest.NewRecorder()
	handler.ServeHTTP(verifyRec, verifyReq)
	var verifyResp VerifyResponse
	if err := json.NewDecoder(verifyRec.Body).Decode(&verifyResp); err != nil {
		t.Fatalf("decoding verify response: %v", err)
	}
	jti := verifyResp.Claims.ID

	revokePath := AdminParent + "tokens/" + jti + "/revoke"
	req := httptest.NewRequest(http.MethodPost, revokePath, nil)
	req.AddCookie(adminCookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke returned %d: %s", rec.Code, rec.Body.String())
	}

	// revoking again reports the token as gone
	req = httptest.NewRequest(http.MethodPost, revokePath, nil)
	req.AddCookie(adminCookie)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusGone {
		t.Errorf("second revoke returned %d, want 410", rec.Code)
	}

	// the member's session no longer opens admin-free endpoints
	deleteReq := httptest.NewRequest(http.MethodDelete, SessionRoute, nil)
	deleteReq.AddCookie(victimCookie)
	deleteRec := httptest.NewRecorder()
	handler.ServeHTTP(deleteRec, deleteReq)
	if deleteRec.Code != http.StatusForbidden {
		t.Errorf("revoked session returned %d, want 403", deleteRec.Code)
	}
}

func TestPantryCheckinIssuance(t *testing.T) {
	handler, _ := newTestHandler(t)
	cookie := createSession(t, handler, adminIDToken)

	day := time.Now().Add(48 * time.Hour).Format("2006-01-02")
	body := `{"subject": "household-9", "org_id": "org-1", "appointment": "` + day + `", "points": 120, "household_size": 4}`

	req := httptest.NewRequest(http.MethodPost, PantryCheckinRoute, strings.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CheckinResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Token == "" || resp.TokenID == "" {
		t.Fatal("expected a minted token and its ID")
	}

	t.Run("member lacks issuing entitlement", func(t *testing.T) {
		memberCookie := createSession(t, handler, memberIDToken)
		req := httptest.NewRequest(http.MethodPost, PantryCheckinRoute, strings.NewReader(body))
		req.AddCookie(memberCookie)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("bad appointment date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, PantryCheckinRoute,
			strings.NewReader(`{"subject": "h", "org_id": "org-1", "appointment": "tomorrow"}`))
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestJWKSEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, JWKSRoute, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decoding jwks: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected one key, got %d", len(doc.Keys))
	}
	if kid := doc.Keys[0]["kid"]; kid != testSigningKID {
		t.Errorf("kid = %v, want %q", kid, testSigningKID)
	}
	if _, leaked := doc.Keys[0]["d"]; leaked {
		t.Error("jwks must not contain private key material")
	}
}

func TestHealthAndAbout(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthCheckRoute, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz returned %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, AboutRoute, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("about returned %d", rec.Code)
	}
}
