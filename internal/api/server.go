package api

import (
	"net/http"

	"github.com/harborlight-org/tokend/internal/api/middleware"
	"github.com/harborlight-org/tokend/internal/audit"
	"github.com/harborlight-org/tokend/internal/config"
	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/service"
	"github.com/harborlight-org/tokend/internal/tasks"
	"github.com/harborlight-org/tokend/internal/token"
)

const adminRole = "admin"

// pantryIssueEntitlement guards the check-in minting endpoint. Held by
// pantry coordinators, not by regular members.
const pantryIssueEntitlement = "pantry:schedule"

type Server struct {
	cfg          *config.Config
	keys         core.KeySource
	verifier     *token.Verifier
	taskManager  *tasks.Manager
	auditor      core.Auditor
	tokenStore   core.TokenStore
	tokenService *service.TokenService
}

func NewServer(
	cfg *config.Config,
	keys core.KeySource,
	verifier *token.Verifier,
	taskManager *tasks.Manager,
	auditor core.Auditor,
	tokenStore core.TokenStore,
	tokenService *service.TokenService,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	return &Server{
		cfg:          cfg,
		keys:         keys,
		verifier:     verifier,
		taskManager:  taskManager,
		auditor:      auditor,
		tokenStore:   tokenStore,
		tokenService: tokenService,
	}
}

// sessionPolicy gates endpoints that only require a live session.
func (s *Server) sessionPolicy() core.Policy {
	return core.Policy{
		Name:     "session",
		Scope:    core.ScopeAPI,
		Issuer:   s.cfg.Issuer.URL,
		Audience: s.cfg.Issuer.Audience,
	}
}

// adminPolicy additionally requires the admin role.
func (s *Server) adminPolicy() core.Policy {
	p := s.sessionPolicy()
	p.Name = "admin"
	p.Roles = []string{adminRole}
	return p
}

// pantryIssuePolicy gates check-in token minting.
func (s *Server) pantryIssuePolicy() core.Policy {
	p := s.sessionPolicy()
	p.Name = "pantry-issue"
	p.Entitlements = []string{pantryIssueEntitlement}
	return p
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("GET "+JWKSRoute, s.handleJWKS)
	mux.HandleFunc("POST "+VerifyTokenRoute, s.handleVerify)

	// session lifecycle
	mux.HandleFunc("POST "+SessionRoute, s.handleCreateSession)
	mux.Handle("DELETE "+SessionRoute,
		middleware.RequireToken(s.verifier, s.sessionPolicy())(
			http.HandlerFunc(s.handleDeleteSession)))

	// pantry coordination
	mux.Handle("POST "+PantryCheckinRoute,
		middleware.RequireToken(s.verifier, s.pantryIssuePolicy())(
			http.HandlerFunc(s.handlePantryCheckin)))

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListActiveTokensRoute, s.handleAdminTokens)
	adminMux.HandleFunc("POST "+RevokeTokenRoute, s.handleAdminRevoke)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.RequireToken(s.verifier, s.adminPolicy())(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
