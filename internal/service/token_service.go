package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harborlight-org/tokend/internal/api/middleware"
	"github.com/harborlight-org/tokend/internal/audit"
	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/identity"
	"github.com/harborlight-org/tokend/internal/token"
)

// VerificationMailer requests a verification email for an address whose
// ownership has not been confirmed yet. Issuance for unverified emails
// is refused, but we still nudge the user.
type VerificationMailer interface {
	RequestVerification(ctx context.Context, email string) error
}

// LogMailer is the default VerificationMailer: it only records the
// request. Wiring an actual mail provider happens outside this service.
type LogMailer struct{}

func (LogMailer) RequestVerification(ctx context.Context, email string) error {
	log.Ctx(ctx).Info().Str("email", email).Msg("verification email requested")
	return nil
}

// TokenService orchestrates session and check-in token issuance.
type TokenService struct {
	providers  *identity.Registry
	directory  core.Directory
	issuer     *token.Issuer
	revoked    core.RevocationList
	tokenStore core.TokenStore
	auditor    core.Auditor
	mailer     VerificationMailer

	sessionTTL time.Duration
	pantryLoc  *time.Location
}

func NewTokenService(
	providers *identity.Registry,
	directory core.Directory,
	issuer *token.Issuer,
	revoked core.RevocationList,
	tokenStore core.TokenStore,
	auditor core.Auditor,
	sessionTTL time.Duration,
	pantryLoc *time.Location,
) *TokenService {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &TokenService{
		providers:  providers,
		directory:  directory,
		issuer:     issuer,
		revoked:    revoked,
		tokenStore: tokenStore,
		auditor:    auditor,
		mailer:     LogMailer{},
		sessionTTL: sessionTTL,
		pantryLoc:  pantryLoc,
	}
}

// SetMailer swaps the verification-email collaborator.
func (s *TokenService) SetMailer(m VerificationMailer) {
	s.mailer = m
}

// IssueSession exchanges a verified upstream identity for a scoped
// session token bound to the caller's organizational record.
func (s *TokenService) IssueSession(ctx context.Context, req SessionRequest) (*token.Token, error) {
	logger := log.Ctx(ctx)
	reqID := middleware.CorrelationCtx(ctx)

	auditEntry := core.AuditEntry{
		ID:     reqID,
		Time:   time.Now(),
		Action: "session.issue",
		Scope:  core.ScopeAPI,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for session issuance")
		}
	}()

	// identify the upstream provider that verifies the ID token
	var provider core.IdentityVerifier
	if req.Provider != "" {
		var ok bool
		if provider, ok = s.providers.Get(req.Provider); !ok {
			auditEntry.Error = "requested provider not found"
			return nil, httpError(http.StatusBadRequest,
				fmt.Errorf("requested identity provider '%s' not found", req.Provider))
		}
		logger.Debug().Str("provider", provider.Name()).Msg("using explicit identity provider")
	} else {
		var err error
		if provider, err = s.providers.Identify(req.IDToken); err != nil {
			auditEntry.Error = "provider auto-discovery failed"
			auditEntry.Stacktrace = err.Error()
			return nil, httpError(http.StatusUnauthorized,
				fmt.Errorf("identity provider auto-discovery failed: %w", err))
		}
		logger.Debug().Str("provider", provider.Name()).Msg("using discovered identity provider")
	}

	ident, err := provider.Verify(ctx, req.IDToken)
	if err != nil {
		auditEntry.Error = "identity verification failed"
		auditEntry.Stacktrace = err.Error()
		return nil, httpError(http.StatusUnauthorized,
			fmt.Errorf("identity verification failed: %w", err))
	}

	// a structurally incomplete assertion is an upstream fault, not ours
	if ident.Subject == "" || ident.Email == "" {
		auditEntry.Error = "incomplete identity assertion"
		return nil, httpError(http.StatusBadGateway,
			fmt.Errorf("identity assertion missing subject or email"))
	}
	auditEntry.Subject = ident.Subject

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("sub", ident.Subject)
	})

	if !ident.EmailVerified {
		if err := s.mailer.RequestVerification(ctx, ident.Email); err != nil {
			logger.Error().Err(err).Msg("failed to request verification email")
		}
		auditEntry.Error = "email not verified"
		return nil, httpError(http.StatusForbidden,
			fmt.Errorf("email address not verified"))
	}

	record, err := s.directory.Lookup(ctx, ident.Subject)
	if err != nil {
		if errors.Is(err, core.ErrRecordNotFound) {
			auditEntry.Error = "no organizational record"
			return nil, httpError(http.StatusNotFound,
				fmt.Errorf("no organizational record for subject"))
		}
		auditEntry.Error = "directory lookup failed"
		auditEntry.Stacktrace = err.Error()
		return nil, httpError(http.StatusInternalServerError,
			fmt.Errorf("directory lookup failed: %w", err))
	}
	auditEntry.OrgID = record.OrgID

	minted, err := s.issuer.Issue(ctx, token.Request{
		Subject:       ident.Subject,
		OrgID:         record.OrgID,
		Scope:         core.ScopeAPI,
		Roles:         record.Roles,
		Entitlements:  record.Entitlements,
		TTL:           s.sessionTTL,
		Name:          ident.Name,
		Email:         ident.Email,
		EmailVerified: ident.EmailVerified,
		Picture:       ident.Picture,
		ClientIP:      req.ClientIP,
		UserAgent:     req.UserAgent,
		Timezone:      req.Timezone,
		Coordinates:   req.Coordinates,
	})
	if err != nil {
		if errors.Is(err, core.ErrNoSigningKey) {
			auditEntry.Error = "signing key not configured"
			return nil, httpError(http.StatusNotImplemented,
				fmt.Errorf("token issuance is not configured on this server"))
		}
		auditEntry.Error = "minting failed"
		auditEntry.Stacktrace = err.Error()
		return nil, httpError(http.StatusInternalServerError,
			fmt.Errorf("minting session token: %w", err))
	}

	auditEntry.Granted = true
	auditEntry.TokenID = minted.ID
	auditEntry.TokenFingerprint = audit.Fingerprint(minted.Value)

	s.saveMetadata(ctx, minted, reqID, map[string]any{
		"client_ip":  req.ClientIP,
		"user_agent": req.UserAgent,
	})

	return minted, nil
}

// IssueCheckin mints a pantry check-in token valid only on the
// appointment's calendar day, carrying the household's point budget.
func (s *TokenService) IssueCheckin(ctx context.Context, req CheckinRequest) (*token.Token, error) {
	logger := log.Ctx(ctx)
	reqID := middleware.CorrelationCtx(ctx)

	auditEntry := core.AuditEntry{
		ID:      reqID,
		Time:    time.Now(),
		Action:  "pantry.issue",
		Scope:   core.ScopePantry,
		Subject: req.Subject,
		OrgID:   req.OrgID,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for check-in issuance")
		}
	}()

	if req.Subject == "" {
		auditEntry.Error = "missing subject"
		return nil, httpError(http.StatusBadRequest, fmt.Errorf("subject is required"))
	}
	if req.Appointment.IsZero() {
		auditEntry.Error = "missing appointment"
		return nil, httpError(http.StatusBadRequest, fmt.Errorf("appointment date is required"))
	}

	claims := &core.Claims{}
	claims.SetAuthorizationDetails(core.PantryAuthorization{
		Points:        req.Points,
		HouseholdSize: req.HouseholdSize,
		Appointment:   req.Appointment.In(s.pantryLoc).Format("2006-01-02"),
	})

	nbf, exp := token.DayWindow(req.Appointment, s.pantryLoc)
	minted, err := s.issuer.Issue(ctx, token.Request{
		Subject:   req.Subject,
		OrgID:     req.OrgID,
		Scope:     core.ScopePantry,
		NotBefore: nbf,
		ExpiresAt: exp,
		Extra:     claims.Extra,
	})
	if err != nil {
		if errors.Is(err, core.ErrNoSigningKey) {
			auditEntry.Error = "signing key not configured"
			return nil, httpError(http.StatusNotImplemented,
				fmt.Errorf("token issuance is not configured on this server"))
		}
		auditEntry.Error = "minting failed"
		auditEntry.Stacktrace = err.Error()
		return nil, httpError(http.StatusInternalServerError,
			fmt.Errorf("minting check-in token: %w", err))
	}

	auditEntry.Granted = true
	auditEntry.TokenID = minted.ID
	auditEntry.TokenFingerprint = audit.Fingerprint(minted.Value)

	s.saveMetadata(ctx, minted, reqID, map[string]any{
		"appointment": req.Appointment.Format("2006-01-02"),
	})

	return minted, nil
}

// RevokeToken puts the token ID on the revocation list for the rest of
// its lifetime and marks its metadata record.
func (s *TokenService) RevokeToken(ctx context.Context, jti string) (*core.TokenMetadata, error) {
	logger := log.Ctx(ctx)
	reqID := middleware.CorrelationCtx(ctx)

	auditEntry := core.AuditEntry{
		ID:      reqID,
		Time:    time.Now(),
		Action:  "session.revoke",
		TokenID: jti,
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for token revocation")
		}
	}()

	meta, err := s.tokenStore.FindByID(ctx, jti)
	if err != nil {
		auditEntry.Error = "unknown token"
		auditEntry.Stacktrace = err.Error()
		return nil, httpError(http.StatusNotFound, fmt.Errorf("unknown token"))
	}
	if meta.Revoked {
		auditEntry.Error = "already revoked"
		return nil, httpError(http.StatusGone, fmt.Errorf("already revoked"))
	}

	if err := s.revoked.Revoke(ctx, jti, time.Until(meta.ExpiresAt)); err != nil {
		auditEntry.Error = "revocation failed"
		auditEntry.Stacktrace = err.Error()
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("revocation failed: %w", err))
	}

	if err := s.tokenStore.SetRevoked(ctx, jti); err != nil {
		logger.Error().Err(err).Msg("failed to mark token revoked in store")
	}

	auditEntry.Subject = meta.Subject
	auditEntry.OrgID = meta.OrgID
	auditEntry.Granted = true
	return meta, nil
}

func (s *TokenService) saveMetadata(ctx context.Context, minted *token.Token, reqID string, extra map[string]any) {
	meta := core.TokenMetadata{
		ID:            minted.ID,
		CorrelationID: reqID,
		Subject:       minted.Claims.Subject,
		OrgID:         minted.Claims.OrgID,
		Scope:         minted.Claims.Scope,
		IssuedAt:      minted.Claims.IssuedAt,
		ExpiresAt:     minted.ExpiresAt,
		Fingerprint:   audit.Fingerprint(minted.Value),
		Metadata:      extra,
	}
	if err := s.tokenStore.Save(ctx, meta); err != nil {
		// issuance still succeeds; the admin token view is best-effort
		log.Ctx(ctx).Error().Err(err).Msg("failed to save token metadata")
	}
}
