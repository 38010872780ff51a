package middleware

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

const authorizationKey = "authorization"

// Authenticate validates bearer tokens and injects the caller identity into context.
type Authenticate struct {
	gate           *gate.Gate
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(g *gate.Gate, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{gate: g, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the authorization metadata, verifies the token and returns
// a context carrying the identity.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			header = values[0]
		}
	}

	identity, err := m.gate.Authenticate(header)
	if err != nil {
		m.logger.Debug("Authenticate middleware: request rejected",
			"error", err.Error())
		return nil, RejectionStatus(err)
	}

	return m.contextManager.SetIdentityToContext(ctx, identity), nil
}

// Authorize enforces per-method permission requirements on authenticated calls.
type Authorize struct {
	gate           *gate.Gate
	contextManager model.ContextManager
	permissions    map[string][]string
}

// NewAuthorize creates an Authorize interceptor. permissions maps a full
// method name to the permissions it requires; unlisted methods pass.
func NewAuthorize(g *gate.Gate, contextManager model.ContextManager, permissions map[string][]string) *Authorize {
	return &Authorize{gate: g, contextManager: contextManager, permissions: permissions}
}

// UnaryServerInterceptor rejects calls whose identity lacks a required permission.
func (m *Authorize) UnaryServerInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	required, ok := m.permissions[info.FullMethod]
	if !ok {
		return handler(ctx, req)
	}

	identity, _ := m.contextManager.GetIdentityFromContext(ctx)
	if err := m.gate.RequirePermissions(identity, required...); err != nil {
		return nil, RejectionStatus(err)
	}

	return handler(ctx, req)
}

// RejectionStatus converts a gate rejection into a gRPC status error.
// Missing credentials map to Unauthenticated, everything else the gate
// refuses maps to PermissionDenied.
func RejectionStatus(err error) error {
	var r *gate.Rejection
	if !errors.As(err, &r) {
		return status.Error(codes.Internal, "internal server error")
	}

	msg := r.Reason
	if r.Message != "" {
		msg = r.Reason + ": " + r.Message
	}
	if r.Unauthenticated() {
		return status.Error(codes.Unauthenticated, msg)
	}
	return status.Error(codes.PermissionDenied, msg)
}
