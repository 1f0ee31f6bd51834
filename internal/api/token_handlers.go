package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/harborlight-org/tokend/internal/api/middleware"
	"github.com/harborlight-org/tokend/internal/api/presenter"
	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/token"
)

type VerifyPayload struct {
	// Token is the compact token to introspect. If empty, the session
	// cookie or Authorization header is used instead.
	Token string `json:"token"`

	// Policy names a configured policy to evaluate the claims against.
	// If empty, only issuer, audience and scope are checked.
	Policy string `json:"policy"`
}

type VerifyResponse struct {
	Active bool         `json:"active"`
	Claims *core.Claims `json:"claims,omitempty"`
	Error  string       `json:"error,omitempty"`

	// Check names the policy check that failed, if any.
	Check string `json:"check,omitempty"`
}

// handleVerify introspects a token against a named policy. The outcome
// is reported in the body; a well-formed request is always a 200.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload VerifyPayload
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		logger.Warn().Err(err).Msg("failed to decode verify request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	tokenStr := payload.Token
	if tokenStr == "" {
		tokenStr = middleware.TokenFromRequest(r)
	}
	if tokenStr == "" {
		presenter.Error(w, r, "no token to verify", http.StatusBadRequest)
		return
	}

	policy := s.sessionPolicy()
	if payload.Policy != "" {
		p, ok := s.cfg.PolicyByName(payload.Policy)
		if !ok {
			presenter.Error(w, r, "requested policy not found", http.StatusBadRequest)
			return
		}
		policy = p
	}

	claims, err := s.verifier.Verify(ctx, tokenStr, policy, middleware.RequestContextFrom(r))
	if err != nil {
		resp := VerifyResponse{Error: err.Error()}
		var policyErr *token.PolicyError
		if errors.As(err, &policyErr) {
			resp.Check = policyErr.Check
		}
		presenter.JSON(w, r, resp, http.StatusOK)
		return
	}

	presenter.JSON(w, r, VerifyResponse{Active: true, Claims: claims}, http.StatusOK)
}

// handleAdminRevoke puts a token on the revocation list by its ID.
func (s *Server) handleAdminRevoke(w http.ResponseWriter, r *http.Request) {
	jti := r.PathValue("jti")
	if jti == "" {
		presenter.Error(w, r, "missing token id", http.StatusBadRequest)
		return
	}

	meta, err := s.tokenService.RevokeToken(r.Context(), jti)
	if err != nil {
		presenter.Err(w, r, err, "revocation failed")
		return
	}

	presenter.JSON(w, r, meta, http.StatusOK)
}
