package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

// SessionRepository keeps refresh sessions in process memory.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]model.RefreshSession
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]model.RefreshSession)}
}

func (r *SessionRepository) Create(ctx context.Context, session model.RefreshSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.TokenHash]; exists {
		return model.ErrConflict
	}

	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.sessions[session.TokenHash] = session
	return nil
}

func (r *SessionRepository) FindOne(ctx context.Context, tokenHash, userID string) (model.RefreshSession, error) {
	if err := ctx.Err(); err != nil {
		return model.RefreshSession{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[tokenHash]
	if !ok || session.UserID != userID {
		return model.RefreshSession{}, model.ErrNotFound
	}
	return session, nil
}

func (r *SessionRepository) DeleteOne(ctx context.Context, tokenHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.sessions[tokenHash]
	delete(r.sessions, tokenHash)
	return existed, nil
}

func (r *SessionRepository) Find(ctx context.Context, userID string) ([]model.RefreshSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := []model.RefreshSession{}
	for _, session := range r.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, hash)
		}
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}
