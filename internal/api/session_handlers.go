package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harborlight-org/tokend/internal/api/middleware"
	"github.com/harborlight-org/tokend/internal/api/presenter"
	"github.com/harborlight-org/tokend/internal/service"
	"github.com/harborlight-org/tokend/internal/token"
)

type SessionPayload struct {
	// Provider specifies the desired identity provider to verify the
	// upstream token against. It skips provider auto-discovery.
	Provider string `json:"provider"`

	// Timezone is the caller's IANA zone name, e.g. "America/Los_Angeles".
	Timezone string `json:"timezone"`

	// Lat and Lon, if both given, pin the session to the caller's
	// location via a geohash claim.
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type SessionResponse struct {
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires"`
}

// handleCreateSession exchanges an upstream identity token for a scoped
// session cookie.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload SessionPayload
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		logger.Warn().Err(err).Msg("failed to decode session request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	// read the upstream ID token from the Authorization header
	authHeader := r.Header.Get("Authorization")
	idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if idToken == "" {
		logger.Warn().Msg("missing or empty Authorization header")
		presenter.Error(w, r, "missing Authorization header", http.StatusUnauthorized)
		return
	}

	req := service.SessionRequest{
		IDToken:   idToken,
		Provider:  payload.Provider,
		ClientIP:  middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Timezone:  payload.Timezone,
	}
	if payload.Lat != nil && payload.Lon != nil {
		req.Coordinates = &token.Coordinates{Lat: *payload.Lat, Lon: *payload.Lon}
	}

	minted, err := s.tokenService.IssueSession(ctx, req)
	if err != nil {
		presenter.Err(w, r, err, "session issuance failed")
		return
	}

	http.SetCookie(w, sessionCookie(minted.Value, minted.ExpiresAt))
	presenter.JSON(w, r, SessionResponse{
		TokenID:   minted.ID,
		ExpiresAt: minted.ExpiresAt,
	}, http.StatusCreated)
}

type SignOutResponse struct {
	Status string `json:"status"`
}

// handleDeleteSession revokes the caller's own session and expires the
// cookie. Sign-out always clears the cookie, even when the revocation
// bookkeeping fails.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.ClaimsCtx(ctx)

	if claims != nil && claims.ID != "" {
		if _, err := s.tokenService.RevokeToken(ctx, claims.ID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("jti", claims.ID).Msg("sign-out revocation incomplete")
		}
	}

	http.SetCookie(w, expiredSessionCookie())
	presenter.JSON(w, r, SignOutResponse{Status: "signed_out"}, http.StatusOK)
}

// sessionCookie builds the org-jwt cookie. Partitioned plus
// SameSite=Strict keeps the credential off cross-site requests.
func sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:        middleware.SessionCookieName,
		Value:       value,
		Path:        "/api/",
		Expires:     expires,
		HttpOnly:    true,
		Secure:      true,
		SameSite:    http.SameSiteStrictMode,
		Partitioned: true,
	}
}

func expiredSessionCookie() *http.Cookie {
	c := sessionCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}
