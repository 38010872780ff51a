package model

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by stores when a unique constraint is violated.
	ErrConflict = errors.New("resource conflict")
	// ErrStoreUnavailable wraps underlying persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidIdentity is returned when a token is requested for a missing identity.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidToken is returned when a refresh token cannot be renewed.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput is returned when request parameters are malformed.
	ErrInvalidInput = errors.New("invalid input")
)
