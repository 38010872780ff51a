package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authgate/internal/mocks"
	"github.com/dtroode/authgate/internal/model"
	"github.com/dtroode/authgate/internal/testutil"
)

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestAuth_Register(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.On("Register", mock.Anything, "a@b.c", "secret").
		Return(model.User{ID: "u1", Email: "a@b.c", Role: "user", PasswordHash: "hash", CreatedAt: created}, nil).Once()

	h := NewAuth(svc, testutil.MakeNoopLogger())
	rec := post(h.Register, `{"email":"a@b.c","password":"secret"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "u1", body["id"])
	assert.Equal(t, "user", body["role"])
	assert.NotContains(t, body, "passwordHash")
}

func TestAuth_Register_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "duplicate", err: model.ErrConflict, wantStatus: http.StatusConflict, wantCode: CodeConflict},
		{name: "invalid", err: model.ErrInvalidInput, wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput},
		{name: "store down", err: model.ErrStoreUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: CodeUnavailable},
		{name: "unexpected", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: CodeInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := mocks.NewAuthService(t)
			svc.On("Register", mock.Anything, "a@b.c", "secret").Return(model.User{}, tt.err).Once()

			rec := post(NewAuth(svc, testutil.MakeNoopLogger()).Register, `{"email":"a@b.c","password":"secret"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			decodeBody(t, rec, &body)
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestAuth_MalformedBody(t *testing.T) {
	t.Parallel()

	h := NewAuth(mocks.NewAuthService(t), testutil.MakeNoopLogger())

	for _, fn := range []http.HandlerFunc{h.Register, h.Login, h.Refresh, h.Logout} {
		rec := post(fn, `{"email":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestAuth_Login(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	svc.On("Login", mock.Anything, "a@b.c", "secret").
		Return(model.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, nil).Once()

	rec := post(NewAuth(svc, testutil.MakeNoopLogger()).Login, `{"email":"a@b.c","password":"secret"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body tokenPairResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "acc", body.AccessToken)
	assert.Equal(t, "ref", body.RefreshToken)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.Equal(t, int64(900), body.ExpiresIn)
}

func TestAuth_Login_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	svc.On("Login", mock.Anything, "a@b.c", "wrong").Return(model.TokenPair{}, model.ErrInvalidCredentials).Once()

	rec := post(NewAuth(svc, testutil.MakeNoopLogger()).Login, `{"email":"a@b.c","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_Refresh(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	svc.On("Refresh", mock.Anything, "old").Return(model.TokenPair{AccessToken: "acc", RefreshToken: "new"}, nil).Once()
	svc.On("Refresh", mock.Anything, "stale").Return(model.TokenPair{}, model.ErrInvalidToken).Once()

	h := NewAuth(svc, testutil.MakeNoopLogger())

	rec := post(h.Refresh, `{"refreshToken":"old"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body tokenPairResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "new", body.RefreshToken)

	rec = post(h.Refresh, `{"refreshToken":"stale"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(h.Refresh, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_Logout(t *testing.T) {
	t.Parallel()

	svc := mocks.NewAuthService(t)
	svc.On("Logout", mock.Anything, "ref").Return(nil).Once()

	rec := post(NewAuth(svc, testutil.MakeNoopLogger()).Logout, `{"refreshToken":"ref"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
