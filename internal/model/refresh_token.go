package model

import (
	"context"
	"time"
)

// SessionStore persists refresh sessions. Implementations must enforce
// uniqueness of TokenHash themselves and return ErrConflict on violation.
// FindOne returns ErrNotFound when no session matches both keys. DeleteOne
// reports whether a session existed and never fails for a missing one.
type SessionStore interface {
	Create(ctx context.Context, session RefreshSession) error
	FindOne(ctx context.Context, tokenHash, userID string) (RefreshSession, error)
	DeleteOne(ctx context.Context, tokenHash string) (bool, error)
	Find(ctx context.Context, userID string) ([]RefreshSession, error)
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshSession is the persisted record of an issued refresh token.
type RefreshSession struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s RefreshSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
