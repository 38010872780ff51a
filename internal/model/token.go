package model

import "time"

const (
	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL is the lifetime of a refresh token and its session record.
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenManager signs and parses access and refresh tokens.
type TokenManager interface {
	GenerateAccessToken(identity Identity) (string, error)
	GenerateRefreshToken(userID string) (string, error)
	ParseAccessToken(token string) (Identity, error)
	ParseRefreshToken(token string) (userID string, err error)
}

// TokenPair is an access token together with its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
