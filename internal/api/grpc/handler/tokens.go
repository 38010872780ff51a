package handler

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// AuthService defines login, renewal and logout operations.
type AuthService interface {
	Login(ctx context.Context, email, password string) (model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// SessionService revokes every session of a user.
type SessionService interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// PermissionResolver resolves the permissions granted to an identity.
type PermissionResolver interface {
	Permissions(identity *model.Identity) []string
}

// Tokens handles gRPC endpoints for the token lifecycle.
type Tokens struct {
	UnimplementedTokensServer
	authService    AuthService
	sessions       SessionService
	permissions    PermissionResolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewTokens creates a new Tokens handler.
func NewTokens(
	authService AuthService,
	sessions SessionService,
	permissions PermissionResolver,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Tokens {
	return &Tokens{
		authService:    authService,
		sessions:       sessions,
		permissions:    permissions,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Login exchanges {email, password} for a token pair.
func (h *Tokens) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	email := fields["email"].GetStringValue()
	password := fields["password"].GetStringValue()

	h.logger.Debug("Tokens handler: processing login request",
		"email", email)

	pair, err := h.authService.Login(ctx, email, password)
	if err != nil {
		h.logger.Info("Tokens handler: login failed",
			"email", email,
			"error", err.Error())
		return nil, handleError(err)
	}

	return tokenPairStruct(pair)
}

// Refresh rotates a refresh token into a new pair.
func (h *Tokens) Refresh(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	pair, err := h.authService.Refresh(ctx, req.GetValue())
	if err != nil {
		h.logger.Info("Tokens handler: refresh failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return tokenPairStruct(pair)
}

// Revoke deletes the session of a refresh token.
func (h *Tokens) Revoke(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	if err := h.authService.Logout(ctx, req.GetValue()); err != nil {
		h.logger.Error("Tokens handler: revoke failed",
			"error", err.Error())
		return nil, handleError(err)
	}

	return &emptypb.Empty{}, nil
}

// Introspect describes the caller's identity and permissions.
func (h *Tokens) Introspect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	identity, ok := h.contextManager.GetIdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	permissions := h.permissions.Permissions(identity)
	granted := make([]any, len(permissions))
	for i, p := range permissions {
		granted[i] = p
	}

	fields := map[string]any{
		"id":          identity.ID,
		"permissions": granted,
	}
	if email, ok := identity.EmailAddress(); ok {
		fields["email"] = email
	}
	if role, ok := identity.RoleName(); ok {
		fields["role"] = role
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, handleError(fmt.Errorf("encode identity: %w", err))
	}
	return out, nil
}

// RevokeUser deletes every session of the given user id.
func (h *Tokens) RevokeUser(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}

	if err := h.sessions.RevokeAllForUser(ctx, req.GetValue()); err != nil {
		h.logger.Error("Tokens handler: revoke user sessions failed",
			"user_id", req.GetValue(),
			"error", err.Error())
		return nil, handleError(err)
	}

	h.logger.Info("Tokens handler: user sessions revoked",
		"user_id", req.GetValue())

	return &emptypb.Empty{}, nil
}

func tokenPairStruct(pair model.TokenPair) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"tokenType":    "Bearer",
		"expiresIn":    model.AccessTokenTTL.Seconds(),
	})
	if err != nil {
		return nil, handleError(fmt.Errorf("encode token pair: %w", err))
	}
	return out, nil
}
