package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/harborlight-org/tokend/internal/api/presenter"
	"github.com/harborlight-org/tokend/internal/core"
)

// SessionCookieName is where the browser keeps the session token.
// Scoped to /api/ so it never rides along on static asset requests.
const SessionCookieName = "org-jwt"

const claimsKey = "token_claims"

// TokenVerifier validates a compact token against a policy.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenStr string, policy core.Policy, reqCtx core.RequestContext) (*core.Claims, error)
}

// ClaimsCtx retrieves the verified claims placed by RequireToken.
func ClaimsCtx(ctx context.Context) *core.Claims {
	claims, ok := ctx.Value(claimsKey).(*core.Claims)
	if !ok {
		return nil
	}
	return claims
}

// TokenFromRequest reads the session token from the org-jwt cookie,
// falling back to a bearer Authorization header for non-browser callers.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
}

// RequestContextFrom captures the caller attributes that policies can
// bind tokens to.
func RequestContextFrom(r *http.Request) core.RequestContext {
	return core.RequestContext{
		ClientIP:  ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ClientIP prefers the first X-Forwarded-For hop, as set by the edge
// proxy, over the raw peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireToken gates a handler behind a verified session token. An
// absent credential is a 401; a present but failing one is a 403.
func RequireToken(verifier TokenVerifier, policy core.Policy) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := TokenFromRequest(r)
			if tokenStr == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(r.Context(), tokenStr, policy, RequestContextFrom(r))
			if err != nil {
				presenter.Error(w, r, "invalid session token", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
