// Package response writes JSON bodies for the HTTP transport.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dtroode/authgate/internal/gate"
)

// Error is the body of every failed request. UserPermissions is present
// whenever a permission check ran, even if the caller holds none.
type Error struct {
	Error           string   `json:"error"`
	Code            string   `json:"code"`
	Message         string   `json:"message,omitempty"`
	Required        []string `json:"required,omitempty"`
	UserPermissions []string `json:"userPermissions,omitzero"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Fail writes an Error body.
func Fail(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Error{Error: message, Code: code})
}

// Reject writes a gate rejection. Missing credentials map to 401, refused
// credentials and failed role or permission checks map to 403.
func Reject(w http.ResponseWriter, err error) {
	var r *gate.Rejection
	if !errors.As(err, &r) {
		Fail(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	JSON(w, RejectionStatus(r), Error{
		Error:           r.Reason,
		Code:            string(r.Code),
		Message:         r.Message,
		Required:        r.Required,
		UserPermissions: r.UserPermissions,
	})
}

// RejectionStatus maps a rejection to its HTTP status.
func RejectionStatus(r *gate.Rejection) int {
	if r.Unauthenticated() {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}
