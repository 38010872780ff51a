package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

func (r *SessionRepository) Create(ctx context.Context, session model.RefreshSession) error {
	const query = `INSERT INTO refresh_sessions (token_hash, user_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx, query,
		session.TokenHash, session.UserID, formatTime(session.ExpiresAt), now, now,
	)
	if err != nil {
		return translate(err, "create refresh session")
	}
	return nil
}

func (r *SessionRepository) FindOne(ctx context.Context, tokenHash, userID string) (model.RefreshSession, error) {
	const query = `SELECT token_hash, user_id, expires_at, created_at, updated_at
		FROM refresh_sessions WHERE token_hash = ? AND user_id = ?`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, tokenHash, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshSession{}, model.ErrNotFound
		}
		return model.RefreshSession{}, fmt.Errorf("failed to get refresh session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) DeleteOne(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted refresh sessions: %w", err)
	}
	return n > 0, nil
}

func (r *SessionRepository) Find(ctx context.Context, userID string) ([]model.RefreshSession, error) {
	const query = `SELECT token_hash, user_id, expires_at, created_at, updated_at
		FROM refresh_sessions WHERE user_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.RefreshSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refresh session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refresh sessions: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete refresh sessions by user: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired refresh sessions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (model.RefreshSession, error) {
	var s model.RefreshSession
	var expiresAt, createdAt, updatedAt string

	if err := row.Scan(&s.TokenHash, &s.UserID, &expiresAt, &createdAt, &updatedAt); err != nil {
		return model.RefreshSession{}, err
	}

	var err error
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return model.RefreshSession{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.RefreshSession{}, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.RefreshSession{}, err
	}
	return s, nil
}
