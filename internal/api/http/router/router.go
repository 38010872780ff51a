package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dtroode/authgate/internal/api/http/handler"
	"github.com/dtroode/authgate/internal/api/http/middleware"
	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/rbac"
)

// Router builds the HTTP routing table.
type Router struct {
	authService    handler.AuthService
	sessions       handler.SessionService
	gate           *gate.Gate
	registry       *rbac.Registry
	contextManager model.ContextManager
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	logger         *logger.Logger
}

// New creates new HTTP Router instance. metrics and gatherer may be nil,
// in which case requests are not instrumented and /metrics is not served.
func New(
	authService handler.AuthService,
	sessions handler.SessionService,
	g *gate.Gate,
	registry *rbac.Registry,
	contextManager model.ContextManager,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		sessions:       sessions,
		gate:           g,
		registry:       registry,
		contextManager: contextManager,
		metrics:        m,
		gatherer:       gatherer,
		logger:         logger,
	}
}

// Register returns the root handler with every route and request logging.
func (r *Router) Register() http.Handler {
	mux := http.NewServeMux()

	authorize := middleware.NewAuthorize(r.gate, r.contextManager, r.logger)
	auth := handler.NewAuth(r.authService, r.logger)
	identity := handler.NewIdentity(r.sessions, r.gate, r.registry, r.contextManager, r.logger)

	r.handle(mux, "POST /v1/auth/register", auth.Register)
	r.handle(mux, "POST /v1/auth/login", auth.Login)
	r.handle(mux, "POST /v1/auth/refresh", auth.Refresh)
	r.handle(mux, "POST /v1/auth/logout", auth.Logout)

	r.handle(mux, "GET /v1/auth/me", identity.Me, authorize.Authenticate)
	r.handle(mux, "GET /v1/whoami", identity.WhoAmI, authorize.Optional)
	r.handle(mux, "GET /v1/sessions", identity.Sessions, authorize.Authenticate)
	r.handle(mux, "DELETE /v1/users/{id}/sessions", identity.RevokeUserSessions,
		authorize.Authenticate,
		authorize.RequirePermissions(rbac.PermDeleteUser))
	r.handle(mux, "GET /v1/policy", identity.Policy,
		authorize.Authenticate,
		authorize.RequireRoles(rbac.RoleAdmin, "moderator"),
		authorize.RequireAnyPermission(rbac.PermReadUser, rbac.PermWriteUser))

	r.handle(mux, "GET /healthz", handler.Health)
	if r.gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(r.gatherer))
	}

	return middleware.NewLogging(r.logger).Handle(mux)
}

func (r *Router) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
	mux.Handle(pattern, r.metrics.Instrument(middleware.Chain(h, mws...)))
}
