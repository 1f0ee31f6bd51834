package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"
	JWKSRoute        = "/.well-known/jwks.json"

	SessionRoute       = "/api/session"
	PantryCheckinRoute = "/api/pantry/checkin-token"

	VerifyTokenRoute = "/v1/token/verify"

	AdminParent           = "/v1/admin/"
	ListAuditsRoute       = AdminParent + "audits"
	ListActiveTokensRoute = AdminParent + "tokens"
	RevokeTokenRoute      = AdminParent + "tokens/{jti}/revoke"

	TaskParent       = AdminParent + "tasks/"
	ListTasksRoute   = TaskParent
	TriggerTaskRoute = TaskParent + "{name}/trigger"
	LogsForTaskRoute = TaskParent + "{name}/logs"
)
