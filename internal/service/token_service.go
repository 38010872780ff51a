package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
)

// TokenService issues, verifies and revokes tokens. It composes the
// TokenManager and the SessionStore.
type TokenService struct {
	manager model.TokenManager
	store   model.SessionStore
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// TokenServiceOption configures TokenService.
type TokenServiceOption func(*TokenService)

// WithMetrics records issuance and verification counters.
func WithMetrics(m *metrics.Metrics) TokenServiceOption {
	return func(s *TokenService) {
		s.metrics = m
	}
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		s.now = now
	}
}

func NewTokenService(manager model.TokenManager, store model.SessionStore, logger *logger.Logger, opts ...TokenServiceOption) *TokenService {
	s := &TokenService{manager: manager, store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueAccessToken mints an access token for identity.
func (s *TokenService) IssueAccessToken(identity *model.Identity) (string, error) {
	if identity == nil || identity.ID == "" {
		return "", model.ErrInvalidIdentity
	}

	access, err := s.manager.GenerateAccessToken(*identity)
	if err != nil {
		return "", fmt.Errorf("issue access: %w", err)
	}
	s.metrics.TokenIssued(metrics.KindAccess)

	return access, nil
}

// IssueRefreshToken mints a refresh token that carries only the identity id.
func (s *TokenService) IssueRefreshToken(identity *model.Identity) (string, error) {
	if identity == nil || identity.ID == "" {
		return "", model.ErrInvalidIdentity
	}

	refresh, err := s.manager.GenerateRefreshToken(identity.ID)
	if err != nil {
		return "", fmt.Errorf("issue refresh: %w", err)
	}
	s.metrics.TokenIssued(metrics.KindRefresh)

	return refresh, nil
}

// PersistRefreshToken records a refresh session for token. A token that is
// already persisted yields model.ErrConflict.
func (s *TokenService) PersistRefreshToken(ctx context.Context, userID, token string) error {
	now := s.now()
	session := model.RefreshSession{
		UserID:    userID,
		TokenHash: hashRefresh(token),
		ExpiresAt: now.Add(model.RefreshTokenTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, session); err != nil {
		return storeFailure("persist refresh", err)
	}

	return nil
}

// Issue mints an access token and a persisted refresh token for identity.
func (s *TokenService) Issue(ctx context.Context, identity *model.Identity) (model.TokenPair, error) {
	access, err := s.IssueAccessToken(identity)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, err := s.IssueRefreshToken(identity)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.PersistRefreshToken(ctx, identity.ID, refresh); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess returns the identity of a valid access token. Any invalid
// token, including a malformed or expired one, yields false.
func (s *TokenService) VerifyAccess(token string) (model.Identity, bool) {
	identity, err := s.manager.ParseAccessToken(token)
	if err != nil {
		s.logger.Debug("Token service: access token rejected", "error", err.Error())
		s.metrics.TokenVerified(metrics.KindAccess, metrics.ResultInvalid)
		return model.Identity{}, false
	}

	s.metrics.TokenVerified(metrics.KindAccess, metrics.ResultValid)
	return identity, true
}

// VerifyRefresh checks the token signature and expiry, then requires a live
// session record for the same token and user. ok is false for invalid,
// revoked or expired tokens; err is set only when the store fails.
func (s *TokenService) VerifyRefresh(ctx context.Context, token string) (userID string, ok bool, err error) {
	userID, err = s.manager.ParseRefreshToken(token)
	if err != nil {
		s.logger.Debug("Token service: refresh token rejected", "error", err.Error())
		s.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultInvalid)
		return "", false, nil
	}

	session, err := s.store.FindOne(ctx, hashRefresh(token), userID)
	if errors.Is(err, model.ErrNotFound) {
		s.logger.Debug("Token service: refresh session not found", "user_id", userID)
		s.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultInvalid)
		return "", false, nil
	}
	if err != nil {
		s.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultError)
		return "", false, storeFailure("find refresh session", err)
	}

	if session.Expired(s.now()) {
		if _, err := s.store.DeleteOne(ctx, session.TokenHash); err != nil {
			s.logger.Warn("Token service: failed to delete expired refresh session",
				"user_id", userID,
				"error", err.Error())
		}
		s.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultInvalid)
		return "", false, nil
	}

	s.metrics.TokenVerified(metrics.KindRefresh, metrics.ResultValid)
	return userID, true, nil
}

// RevokeRefresh deletes the session of token. Revoking an unknown token is not an error.
func (s *TokenService) RevokeRefresh(ctx context.Context, token string) error {
	if _, err := s.store.DeleteOne(ctx, hashRefresh(token)); err != nil {
		return storeFailure("revoke refresh", err)
	}
	return nil
}

// Rotate consumes the session of a verified refresh token and issues a new
// pair for identity. Losing a concurrent rotation of the same token yields
// model.ErrInvalidToken.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string, identity *model.Identity) (model.TokenPair, error) {
	deleted, err := s.store.DeleteOne(ctx, hashRefresh(refreshToken))
	if err != nil {
		return model.TokenPair{}, storeFailure("revoke old refresh", err)
	}
	if !deleted {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	return s.Issue(ctx, identity)
}

// Sessions lists the unexpired sessions of userID.
func (s *TokenService) Sessions(ctx context.Context, userID string) ([]model.RefreshSession, error) {
	sessions, err := s.store.Find(ctx, userID)
	if err != nil {
		return nil, storeFailure("list refresh sessions", err)
	}

	now := s.now()
	active := make([]model.RefreshSession, 0, len(sessions))
	for _, session := range sessions {
		if !session.Expired(now) {
			active = append(active, session)
		}
	}

	return active, nil
}

// RevokeAllForUser deletes every session of userID.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return storeFailure("revoke user sessions", err)
	}
	return nil
}

// SweepExpired deletes sessions whose expiry has passed.
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storeFailure("sweep expired sessions", err)
	}
	s.metrics.SessionsSwept(n)
	return n, nil
}

func hashRefresh(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func storeFailure(op string, err error) error {
	if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}
