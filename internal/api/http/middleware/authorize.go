package middleware

import (
	"net/http"

	"github.com/dtroode/authgate/internal/api/http/response"
	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

const authorizationHeader = "Authorization"

// Authorize adapts gate.Gate to net/http middleware.
type Authorize struct {
	gate           *gate.Gate
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthorize creates a new Authorize middleware instance.
func NewAuthorize(g *gate.Gate, contextManager model.ContextManager, logger *logger.Logger) *Authorize {
	return &Authorize{gate: g, contextManager: contextManager, logger: logger}
}

// Authenticate requires a valid bearer token and attaches its identity to
// the request context.
func (m *Authorize) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.gate.Authenticate(r.Header.Get(authorizationHeader))
		if err != nil {
			m.reject(w, r, err)
			return
		}

		ctx := m.contextManager.SetIdentityToContext(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the identity of a valid bearer token, or an anonymous
// one, and always proceeds.
func (m *Authorize) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := m.gate.AuthenticateOptional(r.Header.Get(authorizationHeader))
		ctx := m.contextManager.SetIdentityToContext(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles passes callers whose role is any of roles.
func (m *Authorize) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return m.check(func(identity *model.Identity) error {
		return m.gate.RequireRoles(identity, roles...)
	})
}

// RequirePermissions passes callers whose role grants all of permissions.
func (m *Authorize) RequirePermissions(permissions ...string) func(http.Handler) http.Handler {
	return m.check(func(identity *model.Identity) error {
		return m.gate.RequirePermissions(identity, permissions...)
	})
}

// RequireAnyPermission passes callers whose role grants at least one of
// permissions.
func (m *Authorize) RequireAnyPermission(permissions ...string) func(http.Handler) http.Handler {
	return m.check(func(identity *model.Identity) error {
		return m.gate.RequireAnyPermission(identity, permissions...)
	})
}

func (m *Authorize) check(fn func(*model.Identity) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := m.contextManager.GetIdentityFromContext(r.Context())
			if err := fn(identity); err != nil {
				m.reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Authorize) reject(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.Debug("Authorize middleware: request rejected",
		"request_id", RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err.Error())
	response.Reject(w, err)
}

// Chain applies middlewares so that the first one runs outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
