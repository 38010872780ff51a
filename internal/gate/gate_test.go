package gate

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/rbac"
)

type verifierFunc func(token string) (model.Identity, bool)

func (f verifierFunc) VerifyAccess(token string) (model.Identity, bool) {
	return f(token)
}

var identities = map[string]model.Identity{
	"admin-token":  {ID: "1", Email: "admin@x.com", Role: rbac.RoleAdmin},
	"user-token":   {ID: "2", Email: "user@x.com", Role: rbac.RoleUser},
	"guest-token":  {ID: "3", Role: rbac.RoleGuest},
	"norole-token": {ID: "4", Email: "norole@x.com"},
	"mod-token":    {ID: "5", Role: "moderator"},
}

func newTestGate(opts ...Option) *Gate {
	verifier := verifierFunc(func(token string) (model.Identity, bool) {
		if token == "panic-token" {
			panic("verifier exploded")
		}
		identity, ok := identities[token]
		return identity, ok
	})
	return New(verifier, rbac.NewRegistry(rbac.DefaultPolicy()), opts...)
}

func requireRejection(t *testing.T, err error, code Code, reason string) *Rejection {
	t.Helper()
	var r *Rejection
	require.True(t, errors.As(err, &r), "expected *Rejection, got %v", err)
	assert.Equal(t, code, r.Code)
	assert.Equal(t, reason, r.Reason)
	return r
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		name   string
		header string
		token  string
		reason string
	}{
		{name: "valid", header: "Bearer abc.def.ghi", token: "abc.def.ghi"},
		{name: "surrounding spaces", header: "Bearer   abc  ", token: "abc"},
		{name: "missing", header: "", reason: ReasonMissingHeader},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", reason: ReasonMalformedScheme},
		{name: "lowercase scheme", header: "bearer abc", reason: ReasonMalformedScheme},
		{name: "no separator", header: "Bearer", reason: ReasonMalformedScheme},
		{name: "raw token", header: "abc.def.ghi", reason: ReasonMalformedScheme},
		{name: "empty token", header: "Bearer ", reason: ReasonEmptyToken},
		{name: "blank token", header: "Bearer    ", reason: ReasonEmptyToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, r := extractBearer(tc.header)
			if tc.reason == "" {
				require.Nil(t, r)
				assert.Equal(t, tc.token, token)
				return
			}
			require.NotNil(t, r)
			assert.Equal(t, CodeUnauthenticated, r.Code)
			assert.Equal(t, tc.reason, r.Reason)
			assert.True(t, r.Unauthenticated())
		})
	}
}

func TestGate_Authenticate(t *testing.T) {
	g := newTestGate()

	identity, err := g.Authenticate("Bearer admin-token")
	require.NoError(t, err)
	assert.Equal(t, identities["admin-token"], *identity)

	_, err = g.Authenticate("")
	requireRejection(t, err, CodeUnauthenticated, ReasonMissingHeader)

	_, err = g.Authenticate("Token admin-token")
	requireRejection(t, err, CodeUnauthenticated, ReasonMalformedScheme)

	_, err = g.Authenticate("Bearer ")
	requireRejection(t, err, CodeUnauthenticated, ReasonEmptyToken)

	_, err = g.Authenticate("Bearer forged-token")
	r := requireRejection(t, err, CodeInvalidToken, ReasonInvalidToken)
	assert.False(t, r.Unauthenticated())
}

func TestGate_Authenticate_VerifierPanic(t *testing.T) {
	g := newTestGate()

	assert.NotPanics(t, func() {
		_, err := g.Authenticate("Bearer panic-token")
		requireRejection(t, err, CodeInvalidToken, ReasonVerificationFailure)
	})
}

func TestGate_Authenticate_EmptySubject(t *testing.T) {
	g := New(verifierFunc(func(string) (model.Identity, bool) {
		return model.Identity{Role: "admin"}, true
	}), rbac.NewRegistry(nil))

	_, err := g.Authenticate("Bearer anything")
	requireRejection(t, err, CodeInvalidToken, ReasonInvalidToken)
}

func TestGate_AuthenticateOptional(t *testing.T) {
	g := newTestGate()

	assert.Nil(t, g.AuthenticateOptional(""))
	assert.Nil(t, g.AuthenticateOptional("Basic abc"))
	assert.Nil(t, g.AuthenticateOptional("Bearer "))
	assert.Nil(t, g.AuthenticateOptional("Bearer forged-token"))
	assert.NotPanics(t, func() {
		assert.Nil(t, g.AuthenticateOptional("Bearer panic-token"))
	})

	identity := g.AuthenticateOptional("Bearer user-token")
	require.NotNil(t, identity)
	assert.Equal(t, "2", identity.ID)
}

func identityFor(t *testing.T, token string) *model.Identity {
	t.Helper()
	identity, ok := identities[token]
	require.True(t, ok)
	return &identity
}

func TestGate_RequireRoles(t *testing.T) {
	g := newTestGate()

	require.NoError(t, g.RequireRoles(identityFor(t, "admin-token"), "admin"))
	require.NoError(t, g.RequireRoles(identityFor(t, "user-token"), "admin", "user"), "roles are OR-combined")
	require.NoError(t, g.RequireRoles(identityFor(t, "mod-token"), "admin", "moderator"))

	err := g.RequireRoles(identityFor(t, "user-token"), "admin", "moderator")
	r := requireRejection(t, err, CodeAccessDenied, ReasonAccessDenied)
	assert.Equal(t, "Required roles: admin, moderator. Your role: user", r.Message)

	err = g.RequireRoles(identityFor(t, "norole-token"), "admin")
	requireRejection(t, err, CodeRoleUndefined, ReasonRoleUndefined)

	err = g.RequireRoles(nil, "admin")
	requireRejection(t, err, CodeUnauthenticated, ReasonAuthenticationRequired)

	err = g.RequireRoles(identityFor(t, "admin-token"))
	requireRejection(t, err, CodeAccessDenied, ReasonAccessDenied)
}

func TestGate_RequirePermissions(t *testing.T) {
	g := newTestGate()

	require.NoError(t, g.RequirePermissions(identityFor(t, "admin-token"), rbac.PermReadUser, rbac.PermDeleteUser))
	require.NoError(t, g.RequirePermissions(identityFor(t, "user-token"), rbac.PermReadUser))
	require.NoError(t, g.RequirePermissions(identityFor(t, "user-token")), "an empty requirement always passes")

	err := g.RequirePermissions(identityFor(t, "user-token"), rbac.PermDeleteUser)
	r := requireRejection(t, err, CodeInsufficientPermissions, ReasonInsufficientPermissions)
	assert.Equal(t, "Missing permissions: delete:user", r.Message)
	assert.Equal(t, []string{rbac.PermDeleteUser}, r.Required)
	assert.Equal(t, []string{rbac.PermReadUser}, r.UserPermissions)

	err = g.RequirePermissions(identityFor(t, "user-token"), rbac.PermReadUser, "nonexistent:permission")
	r = requireRejection(t, err, CodeInsufficientPermissions, ReasonInsufficientPermissions)
	assert.Equal(t, "Missing permissions: nonexistent:permission", r.Message, "only the missing subset is named")
	assert.Equal(t, []string{rbac.PermReadUser, "nonexistent:permission"}, r.Required)

	err = g.RequirePermissions(identityFor(t, "guest-token"), rbac.PermReadUser)
	r = requireRejection(t, err, CodeInsufficientPermissions, ReasonInsufficientPermissions)
	require.NotNil(t, r.UserPermissions)
	assert.Empty(t, r.UserPermissions)

	err = g.RequirePermissions(identityFor(t, "mod-token"), rbac.PermReadUser)
	r = requireRejection(t, err, CodeInsufficientPermissions, ReasonInsufficientPermissions)
	assert.Empty(t, r.UserPermissions, "unknown role grants nothing")

	err = g.RequirePermissions(identityFor(t, "norole-token"), rbac.PermReadUser)
	requireRejection(t, err, CodeRoleUndefined, ReasonRoleUndefined)

	err = g.RequirePermissions(nil, rbac.PermReadUser)
	requireRejection(t, err, CodeUnauthenticated, ReasonAuthenticationRequired)
}

func TestGate_RequireAnyPermission(t *testing.T) {
	g := newTestGate()

	require.NoError(t, g.RequireAnyPermission(identityFor(t, "user-token"), rbac.PermWriteUser, rbac.PermReadUser))
	require.NoError(t, g.RequireAnyPermission(identityFor(t, "admin-token"), rbac.PermDeleteUser))

	err := g.RequireAnyPermission(identityFor(t, "user-token"), rbac.PermWriteUser, rbac.PermDeleteUser)
	r := requireRejection(t, err, CodeInsufficientPermissions, ReasonInsufficientPermissions)
	assert.Equal(t, "Need at least one of: write:user, delete:user", r.Message)
	assert.Equal(t, []string{rbac.PermWriteUser, rbac.PermDeleteUser}, r.Required)
	assert.Equal(t, []string{rbac.PermReadUser}, r.UserPermissions)

	err = g.RequireAnyPermission(identityFor(t, "admin-token"))
	requireRejection(t, err, CodeInsufficientPermissions, ReasonInsufficientPermissions)

	err = g.RequireAnyPermission(identityFor(t, "norole-token"), rbac.PermReadUser)
	requireRejection(t, err, CodeRoleUndefined, ReasonRoleUndefined)

	err = g.RequireAnyPermission(nil, rbac.PermReadUser)
	requireRejection(t, err, CodeUnauthenticated, ReasonAuthenticationRequired)
}

func TestGate_PolicySwapTakesEffect(t *testing.T) {
	registry := rbac.NewRegistry(rbac.DefaultPolicy())
	g := New(verifierFunc(func(string) (model.Identity, bool) { return model.Identity{}, false }), registry)
	user := identityFor(t, "user-token")

	require.Error(t, g.RequirePermissions(user, rbac.PermWriteUser))

	registry.Swap(rbac.NewPolicy(map[string][]string{rbac.RoleUser: {rbac.PermReadUser, rbac.PermWriteUser}}))

	require.NoError(t, g.RequirePermissions(user, rbac.PermWriteUser))
	assert.Equal(t, []string{rbac.PermReadUser, rbac.PermWriteUser}, g.Permissions(user))
}

func TestGate_Permissions(t *testing.T) {
	g := newTestGate()

	assert.Empty(t, g.Permissions(nil))
	assert.Empty(t, g.Permissions(identityFor(t, "norole-token")))
	assert.Len(t, g.Permissions(identityFor(t, "admin-token")), 3)
}

func TestGate_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := newTestGate(WithMetrics(metrics.New(reg)))

	_, _ = g.Authenticate("")
	_, _ = g.Authenticate("Bearer forged-token")
	_ = g.RequireRoles(identityFor(t, "user-token"), "admin")
	require.NoError(t, g.RequireRoles(identityFor(t, "admin-token"), "admin"))

	expected := `
# HELP authgate_gate_rejections_total Number of requests rejected by the authorization gate.
# TYPE authgate_gate_rejections_total counter
authgate_gate_rejections_total{code="access_denied"} 1
authgate_gate_rejections_total{code="invalid_token"} 1
authgate_gate_rejections_total{code="unauthenticated"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "authgate_gate_rejections_total"))
}

func TestRejection_Error(t *testing.T) {
	assert.Equal(t, "unauthenticated: missing header", unauthenticated(ReasonMissingHeader).Error())
	assert.Equal(t,
		"access_denied: access denied: Required roles: admin. Your role: user",
		accessDenied([]string{"admin"}, "user").Error())
}
