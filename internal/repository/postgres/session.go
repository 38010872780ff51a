package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	db *Connection
}

func NewSessionRepository(db *Connection) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session model.RefreshSession) error {
	const query = `
        INSERT INTO refresh_sessions (token_hash, user_id, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
    `

	if _, err := r.db.Exec(ctx, query, session.TokenHash, session.UserID, session.ExpiresAt); err != nil {
		return translate(err, "create refresh session")
	}
	return nil
}

func (r *SessionRepository) FindOne(ctx context.Context, tokenHash, userID string) (model.RefreshSession, error) {
	const query = `
        SELECT token_hash, user_id, expires_at, created_at, updated_at
        FROM refresh_sessions WHERE token_hash = $1 AND user_id = $2
    `

	var s model.RefreshSession
	err := r.db.QueryRow(ctx, query, tokenHash, userID).Scan(
		&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.RefreshSession{}, model.ErrNotFound
		}
		return model.RefreshSession{}, fmt.Errorf("failed to get refresh session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) DeleteOne(ctx context.Context, tokenHash string) (bool, error) {
	const query = `DELETE FROM refresh_sessions WHERE token_hash = $1`

	tag, err := r.db.Exec(ctx, query, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepository) Find(ctx context.Context, userID string) ([]model.RefreshSession, error) {
	const query = `
        SELECT token_hash, user_id, expires_at, created_at, updated_at
        FROM refresh_sessions WHERE user_id = $1
        ORDER BY created_at DESC
    `

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh sessions: %w", err)
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RefreshSession, error) {
		var s model.RefreshSession
		err := row.Scan(&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan refresh sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM refresh_sessions WHERE user_id = $1`

	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete refresh sessions by user: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM refresh_sessions WHERE expires_at < $1`

	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
