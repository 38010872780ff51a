package router

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dtroode/authgate/internal/api/grpc/handler"
	"github.com/dtroode/authgate/internal/api/grpc/middleware"
	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/rbac"
)

// Router represents a gRPC router for token operations.
// It manages gRPC service registration and middleware configuration.
type Router struct {
	authService    handler.AuthService
	sessions       handler.SessionService
	gate           *gate.Gate
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	authService handler.AuthService,
	sessions handler.SessionService,
	g *gate.Gate,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		sessions:       sessions,
		gate:           g,
		contextManager: contextManager,
		logger:         logger,
	}
}

// methodPermissions lists the permissions each guarded method requires on
// top of authentication.
var methodPermissions = map[string][]string{
	handler.Tokens_RevokeUser_FullMethodName: {rbac.PermDeleteUser},
}

func requiresAuth(_ context.Context, c interceptors.CallMeta) bool {
	switch c.FullMethod() {
	case handler.Tokens_Introspect_FullMethodName, handler.Tokens_RevokeUser_FullMethodName:
		return true
	}
	return false
}

// Register registers all gRPC services and middleware.
// It sets up the gRPC server with request logging, authentication and
// permission interceptors, health checking and reflection.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.gate, r.contextManager, r.logger)
	authorize := middleware.NewAuthorize(r.gate, r.contextManager, methodPermissions)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(requiresAuth),
			),
			authorize.UnaryServerInterceptor,
		),
	)

	tokens := handler.NewTokens(r.authService, r.sessions, r.gate, r.contextManager, r.logger)
	handler.RegisterTokensServer(s, tokens)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.Tokens_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	reflection.Register(s)

	return s
}
