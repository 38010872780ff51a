// Package gate decides whether a request may proceed based on its bearer
// credential, the caller's role and the permissions that role grants.
// Transports translate the returned *Rejection into status codes.
package gate

import (
	"slices"
	"strings"

	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
)

const bearerPrefix = "Bearer "

// Verifier validates access tokens.
type Verifier interface {
	VerifyAccess(token string) (model.Identity, bool)
}

// PermissionResolver maps a role to its permissions. Unknown roles resolve
// to an empty set.
type PermissionResolver interface {
	Permissions(role string) []string
}

type Gate struct {
	verifier    Verifier
	permissions PermissionResolver
	metrics     *metrics.Metrics
}

type Option func(*Gate)

// WithMetrics counts rejections by code.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(verifier Verifier, permissions PermissionResolver, opts ...Option) *Gate {
	g := &Gate{verifier: verifier, permissions: permissions}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// extractBearer returns the token carried by an Authorization header value.
func extractBearer(header string) (string, *Rejection) {
	if header == "" {
		return "", unauthenticated(ReasonMissingHeader)
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", unauthenticated(ReasonMalformedScheme)
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", unauthenticated(ReasonEmptyToken)
	}
	return token, nil
}

// Authenticate resolves the identity behind an Authorization header value.
// The error is always a *Rejection.
func (g *Gate) Authenticate(header string) (*model.Identity, error) {
	token, r := extractBearer(header)
	if r != nil {
		return nil, g.reject(r)
	}
	return g.AuthenticateToken(token)
}

// AuthenticateToken verifies a bare token. A verifier panic is reported as
// a verification failure.
func (g *Gate) AuthenticateToken(token string) (*model.Identity, error) {
	identity, ok, failed := g.verify(token)
	if failed {
		return nil, g.reject(invalidToken(ReasonVerificationFailure))
	}
	if !ok {
		return nil, g.reject(invalidToken(ReasonInvalidToken))
	}
	return &identity, nil
}

// AuthenticateOptional is Authenticate that never rejects: any failure
// yields a nil identity.
func (g *Gate) AuthenticateOptional(header string) *model.Identity {
	token, r := extractBearer(header)
	if r != nil {
		return nil
	}
	identity, ok, failed := g.verify(token)
	if failed || !ok {
		return nil
	}
	return &identity
}

// RequireRoles passes when the identity's role is one of roles.
func (g *Gate) RequireRoles(identity *model.Identity, roles ...string) error {
	if identity == nil {
		return g.reject(unauthenticated(ReasonAuthenticationRequired))
	}
	role, ok := identity.RoleName()
	if !ok {
		return g.reject(roleUndefined())
	}
	if !slices.Contains(roles, role) {
		return g.reject(accessDenied(roles, role))
	}
	return nil
}

// RequirePermissions passes when the identity's role grants every one of
// permissions.
func (g *Gate) RequirePermissions(identity *model.Identity, permissions ...string) error {
	granted, err := g.granted(identity)
	if err != nil {
		return err
	}

	var missing []string
	for _, p := range permissions {
		if !slices.Contains(granted, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return g.reject(missingPermissions(permissions, missing, granted))
	}
	return nil
}

// RequireAnyPermission passes when the identity's role grants at least one
// of permissions.
func (g *Gate) RequireAnyPermission(identity *model.Identity, permissions ...string) error {
	granted, err := g.granted(identity)
	if err != nil {
		return err
	}

	for _, p := range permissions {
		if slices.Contains(granted, p) {
			return nil
		}
	}
	return g.reject(noneOfPermissions(permissions, granted))
}

// Permissions returns the permissions granted to identity. A nil identity
// or one without a role has none.
func (g *Gate) Permissions(identity *model.Identity) []string {
	if identity == nil {
		return []string{}
	}
	role, ok := identity.RoleName()
	if !ok {
		return []string{}
	}
	return g.permissions.Permissions(role)
}

func (g *Gate) granted(identity *model.Identity) ([]string, error) {
	if identity == nil {
		return nil, g.reject(unauthenticated(ReasonAuthenticationRequired))
	}
	role, ok := identity.RoleName()
	if !ok {
		return nil, g.reject(roleUndefined())
	}
	granted := g.permissions.Permissions(role)
	if granted == nil {
		granted = []string{}
	}
	return granted, nil
}

func (g *Gate) verify(token string) (identity model.Identity, ok bool, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			identity, ok, failed = model.Identity{}, false, true
		}
	}()

	identity, ok = g.verifier.VerifyAccess(token)
	if ok && identity.ID == "" {
		return model.Identity{}, false, false
	}
	return identity, ok, false
}

func (g *Gate) reject(r *Rejection) error {
	g.metrics.GateRejected(string(r.Code))
	return r
}
