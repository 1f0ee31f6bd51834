package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harborlight-org/tokend/internal/api/presenter"
	"github.com/harborlight-org/tokend/internal/service"
)

type PantryCheckinPayload struct {
	Subject       string `json:"subject"`
	OrgID         string `json:"org_id"`
	Appointment   string `json:"appointment"`
	Points        int    `json:"points"`
	HouseholdSize int    `json:"household_size"`
}

type CheckinResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"expires"`
}

// handlePantryCheckin mints a check-in token for a scheduled pantry
// appointment. The appointment is a calendar date in the pantry's zone.
func (s *Server) handlePantryCheckin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var payload PantryCheckinPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode check-in request payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	loc, err := s.cfg.Pantry.Location()
	if err != nil {
		logger.Error().Err(err).Msg("pantry timezone misconfigured")
		presenter.Error(w, r, "pantry timezone misconfigured", http.StatusInternalServerError)
		return
	}

	appointment, err := time.ParseInLocation("2006-01-02", payload.Appointment, loc)
	if err != nil {
		presenter.Error(w, r, "appointment must be a YYYY-MM-DD date", http.StatusBadRequest)
		return
	}

	minted, err := s.tokenService.IssueCheckin(ctx, service.CheckinRequest{
		Subject:       payload.Subject,
		OrgID:         payload.OrgID,
		Appointment:   appointment,
		Points:        payload.Points,
		HouseholdSize: payload.HouseholdSize,
	})
	if err != nil {
		presenter.Err(w, r, err, "check-in issuance failed")
		return
	}

	presenter.JSON(w, r, CheckinResponse{
		Token:     minted.Value,
		TokenID:   minted.ID,
		ExpiresAt: minted.ExpiresAt,
	}, http.StatusCreated)
}
