package context

import (
	"context"

	"github.com/dtroode/authgate/internal/model"
)

type identityKey struct{}

var _ model.ContextManager = (*Manager)(nil)

// Manager stores the authenticated caller identity in a request context.
// It is shared by the HTTP and gRPC transports.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetIdentityToContext returns a copy of ctx carrying identity. A nil
// identity records an anonymous caller, which optional authentication uses
// to tell "checked, nobody" apart from "never checked".
func (m *Manager) SetIdentityToContext(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentityFromContext returns the identity stored in ctx. ok is false
// when no identity, or an anonymous one, is attached.
func (m *Manager) GetIdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, _ := ctx.Value(identityKey{}).(*model.Identity)
	if identity == nil {
		return nil, false
	}
	return identity, true
}

// GetUserIDFromContext is a shorthand for the identity id.
func (m *Manager) GetUserIDFromContext(ctx context.Context) (string, bool) {
	identity, ok := m.GetIdentityFromContext(ctx)
	if !ok {
		return "", false
	}
	return identity.ID, true
}
