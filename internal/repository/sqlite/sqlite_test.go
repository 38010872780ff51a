package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authgate/internal/model"
)

func openTestDB(t *testing.T) *SessionRepository {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "authgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSessionRepository(db)
}

func TestUserRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	sessions := openTestDB(t)
	users := NewUserRepository(sessions.db)

	now := time.Now()
	u := model.User{ID: uuid.NewString(), Email: "User@Example.com", PasswordHash: "hash", Role: "admin", CreatedAt: now, UpdatedAt: now}

	saved, err := users.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, u.ID, saved.ID)

	got, err := users.GetByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "admin", got.Role)
	assert.True(t, now.Equal(got.CreatedAt), "timestamps keep nanosecond precision")

	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)

	_, err = users.Create(ctx, model.User{ID: uuid.NewString(), Email: "user@example.COM", PasswordHash: "x", Role: "user"})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = users.Create(ctx, model.User{ID: u.ID, Email: "other@example.com", PasswordHash: "x", Role: "user"})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = users.GetByID(ctx, "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSessionRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	now := time.Now()

	live := model.RefreshSession{UserID: "u1", TokenHash: "live", ExpiresAt: now.Add(time.Hour)}
	stale := model.RefreshSession{UserID: "u1", TokenHash: "stale", ExpiresAt: now.Add(-time.Hour)}
	other := model.RefreshSession{UserID: "u2", TokenHash: "other", ExpiresAt: now.Add(time.Hour)}
	for _, s := range []model.RefreshSession{live, stale, other} {
		require.NoError(t, repo.Create(ctx, s))
	}
	require.ErrorIs(t, repo.Create(ctx, live), model.ErrConflict)

	got, err := repo.FindOne(ctx, "live", "u1")
	require.NoError(t, err)
	assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

	_, err = repo.FindOne(ctx, "live", "u2")
	require.ErrorIs(t, err, model.ErrNotFound)

	list, err := repo.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = repo.Find(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := repo.DeleteOne(ctx, "live")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.DeleteOne(ctx, "live")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, repo.DeleteByUser(ctx, "u2"))
	_, err = repo.FindOne(ctx, "other", "u2")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSessionRepository_ConcurrentDeleteOne(t *testing.T) {
	ctx := context.Background()
	repo := openTestDB(t)
	require.NoError(t, repo.Create(ctx, model.RefreshSession{UserID: "u1", TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour)}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deleted, err := repo.DeleteOne(ctx, "h")
			assert.NoError(t, err)
			if deleted {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
