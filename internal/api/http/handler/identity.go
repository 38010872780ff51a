package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dtroode/authgate/internal/api/http/response"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/rbac"
)

// SessionService lists and revokes refresh sessions.
type SessionService interface {
	Sessions(ctx context.Context, userID string) ([]model.RefreshSession, error)
	RevokeAllForUser(ctx context.Context, userID string) error
}

// PermissionResolver resolves the permissions granted to an identity.
type PermissionResolver interface {
	Permissions(identity *model.Identity) []string
}

// PolicyProvider exposes the active policy snapshot.
type PolicyProvider interface {
	Policy() *rbac.Policy
}

type identityResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions"`
}

type whoAmIResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *identityResponse `json:"user,omitempty"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type policyResponse struct {
	Roles map[string][]string `json:"roles"`
}

// sessionIDLength is how much of the token hash identifies a session to its owner.
const sessionIDLength = 16

// Identity serves endpoints that act on the caller's identity.
type Identity struct {
	sessions       SessionService
	permissions    PermissionResolver
	policy         PolicyProvider
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewIdentity creates a new Identity handler.
func NewIdentity(
	sessions SessionService,
	permissions PermissionResolver,
	policy PolicyProvider,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Identity {
	return &Identity{
		sessions:       sessions,
		permissions:    permissions,
		policy:         policy,
		contextManager: contextManager,
		logger:         logger,
	}
}

func (h *Identity) describe(identity *model.Identity) *identityResponse {
	out := &identityResponse{
		ID:          identity.ID,
		Permissions: h.permissions.Permissions(identity),
	}
	if email, ok := identity.EmailAddress(); ok {
		out.Email = email
	}
	if role, ok := identity.RoleName(); ok {
		out.Role = role
	}
	return out
}

// Me returns the authenticated caller with resolved permissions.
func (h *Identity) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		handleError(w, model.ErrInvalidToken)
		return
	}
	response.JSON(w, http.StatusOK, h.describe(identity))
}

// WhoAmI reports the caller when one authenticated and an anonymous marker
// otherwise.
func (h *Identity) WhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		response.JSON(w, http.StatusOK, whoAmIResponse{Authenticated: false})
		return
	}
	response.JSON(w, http.StatusOK, whoAmIResponse{Authenticated: true, User: h.describe(identity)})
}

// Sessions lists the caller's active refresh sessions.
func (h *Identity) Sessions(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.contextManager.GetIdentityFromContext(r.Context())
	if !ok {
		handleError(w, model.ErrInvalidToken)
		return
	}

	sessions, err := h.sessions.Sessions(r.Context(), identity.ID)
	if err != nil {
		h.logger.Error("Identity handler: failed to list sessions",
			"user_id", identity.ID,
			"error", err.Error())
		handleError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		id := s.TokenHash
		if len(id) > sessionIDLength {
			id = id[:sessionIDLength]
		}
		out = append(out, sessionResponse{ID: id, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt})
	}
	response.JSON(w, http.StatusOK, out)
}

// RevokeUserSessions deletes every session of the user named in the path.
func (h *Identity) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		handleError(w, model.ErrInvalidInput)
		return
	}

	if err := h.sessions.RevokeAllForUser(r.Context(), userID); err != nil {
		h.logger.Error("Identity handler: failed to revoke sessions",
			"user_id", userID,
			"error", err.Error())
		handleError(w, err)
		return
	}

	caller, _ := h.contextManager.GetUserIDFromContext(r.Context())
	h.logger.Info("Identity handler: sessions revoked",
		"user_id", userID,
		"by", caller)

	w.WriteHeader(http.StatusNoContent)
}

// Policy returns the active role to permission map.
func (h *Identity) Policy(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, policyResponse{Roles: h.policy.Policy().Map()})
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
