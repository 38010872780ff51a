package model

import "context"

// ContextManager attaches the resolved caller identity to a request context.
type ContextManager interface {
	SetIdentityToContext(ctx context.Context, identity *Identity) context.Context
	GetIdentityFromContext(ctx context.Context) (*Identity, bool)
	GetUserIDFromContext(ctx context.Context) (string, bool)
}
