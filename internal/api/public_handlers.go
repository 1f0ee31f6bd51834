package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/harborlight-org/tokend/internal/api/presenter"
	"github.com/harborlight-org/tokend/internal/buildinfo"
	"github.com/harborlight-org/tokend/internal/keys"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleJWKS publishes the verification key set. A server without a
// configured key publishes an empty set rather than an error, so
// relying parties can keep polling.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pub, err := s.keys.VerificationKey(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("no verification key available for jwks")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"keys":[]}`))
		return
	}

	doc, err := keys.MarshalJWKS(s.keys.KeyID(), pub)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to marshal jwks")
		presenter.Error(w, r, "failed to marshal key set", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
