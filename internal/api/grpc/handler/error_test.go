package handler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/model"
)

func TestHandleError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       error
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "invalid input -> InvalidArgument",
			in:       fmt.Errorf("decode: %w", model.ErrInvalidInput),
			wantCode: codes.InvalidArgument,
			wantMsg:  "invalid input",
		},
		{
			name:     "invalid credentials -> Unauthenticated",
			in:       model.ErrInvalidCredentials,
			wantCode: codes.Unauthenticated,
			wantMsg:  "invalid credentials",
		},
		{
			name:     "invalid token -> Unauthenticated",
			in:       model.ErrInvalidToken,
			wantCode: codes.Unauthenticated,
			wantMsg:  "invalid or expired token",
		},
		{
			name:     "conflict -> AlreadyExists",
			in:       fmt.Errorf("create: %w", model.ErrConflict),
			wantCode: codes.AlreadyExists,
			wantMsg:  "resource already exists",
		},
		{
			name:     "model not found -> NotFound",
			in:       model.ErrNotFound,
			wantCode: codes.NotFound,
			wantMsg:  "not found",
		},
		{
			name:     "store unavailable -> Unavailable",
			in:       fmt.Errorf("find: %w: %w", model.ErrStoreUnavailable, errors.New("dial tcp")),
			wantCode: codes.Unavailable,
			wantMsg:  "store unavailable",
		},
		{
			name:     "rejection -> PermissionDenied",
			in:       &gate.Rejection{Code: gate.CodeAccessDenied, Reason: gate.ReasonAccessDenied},
			wantCode: codes.PermissionDenied,
			wantMsg:  gate.ReasonAccessDenied,
		},
		{
			name:     "other -> Internal",
			in:       errors.New("boom"),
			wantCode: codes.Internal,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := handleError(tt.in)
			st, ok := status.FromError(err)
			assert.True(t, ok)
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMsg, st.Message())
		})
	}
}
