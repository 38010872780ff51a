//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/authgate/internal/model"
	repo "github.com/dtroode/authgate/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "authgate_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/authgate_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ur := repo.NewUserRepository(conn)
	u := model.User{
		ID:           uuid.NewString(),
		Email:        "user@example.com",
		PasswordHash: "hash",
		Role:         model.DefaultRole,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	saved, err := ur.Create(ctx, u)
	require.NoError(t, err)
	require.Equal(t, u.ID, saved.ID)

	byEmail, err := ur.GetByEmail(ctx, "USER@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byID, err := ur.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)
	require.Equal(t, u.Role, byID.Role)

	_, err = ur.Create(ctx, model.User{ID: uuid.NewString(), Email: "User@Example.com", PasswordHash: "x", Role: "user", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = ur.GetByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	sr := repo.NewSessionRepository(conn)
	userID := uuid.NewString()
	now := time.Now()

	live := model.RefreshSession{UserID: userID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour)}
	stale := model.RefreshSession{UserID: userID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, sr.Create(ctx, live))
	require.NoError(t, sr.Create(ctx, stale))
	require.ErrorIs(t, sr.Create(ctx, live), model.ErrConflict)

	got, err := sr.FindOne(ctx, live.TokenHash, userID)
	require.NoError(t, err)
	assert.WithinDuration(t, live.ExpiresAt, got.ExpiresAt, time.Millisecond)

	_, err = sr.FindOne(ctx, live.TokenHash, "someone-else")
	require.ErrorIs(t, err, model.ErrNotFound)

	list, err := sr.Find(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := sr.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	deleted, err := sr.DeleteOne(ctx, live.TokenHash)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = sr.DeleteOne(ctx, live.TokenHash)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, sr.Create(ctx, model.RefreshSession{UserID: userID, TokenHash: uuid.NewString(), ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sr.DeleteByUser(ctx, userID))
	list, err = sr.Find(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
