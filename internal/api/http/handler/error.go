package handler

import (
	"errors"
	"net/http"

	"github.com/dtroode/authgate/internal/api/http/response"
	"github.com/dtroode/authgate/internal/gate"
	"github.com/dtroode/authgate/internal/model"
)

// Error codes of non-gate failures.
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeConflict           = "conflict"
	CodeNotFound           = "not_found"
	CodeUnavailable        = "unavailable"
	CodeInternal           = "internal"
)

func handleError(w http.ResponseWriter, err error) {
	var rejection *gate.Rejection
	switch {
	case errors.As(err, &rejection):
		response.Reject(w, err)
	case errors.Is(err, model.ErrInvalidInput):
		response.Fail(w, http.StatusBadRequest, CodeInvalidInput, "invalid input")
	case errors.Is(err, model.ErrInvalidCredentials):
		response.Fail(w, http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, model.ErrInvalidToken):
		response.Fail(w, http.StatusUnauthorized, CodeInvalidToken, "invalid or expired token")
	case errors.Is(err, model.ErrConflict):
		response.Fail(w, http.StatusConflict, CodeConflict, "resource already exists")
	case errors.Is(err, model.ErrNotFound):
		response.Fail(w, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, model.ErrStoreUnavailable):
		response.Fail(w, http.StatusServiceUnavailable, CodeUnavailable, "service unavailable")
	default:
		response.Fail(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
