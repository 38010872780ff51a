package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/model"
)

var errMissingSubject = errors.New("token has no subject id")

// AccessClaims are the claims of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

// RefreshClaims are the claims of a refresh token. The registered jti claim
// makes every issued refresh token unique.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

// JWT implements TokenManager backed by symmetric HMAC with one key per token type.
type JWT struct {
	accessKey  []byte
	refreshKey []byte
	now        func() time.Time
}

// Option configures JWT.
type Option func(*JWT)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(j *JWT) {
		j.now = now
	}
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a new JWT token manager with independent access and refresh keys.
func NewJWT(accessSecret, refreshSecret string, opts ...Option) *JWT {
	j := &JWT{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// GenerateAccessToken creates a short-lived access token carrying the full identity.
func (j *JWT) GenerateAccessToken(identity model.Identity) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(model.AccessTokenTTL)),
		},
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   identity.Role,
	})

	tokenString, err := token.SignedString(j.accessKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// GenerateRefreshToken creates a long-lived refresh token carrying only the user id.
func (j *JWT) GenerateRefreshToken(userID string) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(model.RefreshTokenTTL)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(j.refreshKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return tokenString, nil
}

// ParseAccessToken validates an access token and returns the embedded identity.
func (j *JWT) ParseAccessToken(tokenString string) (model.Identity, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenString, claims, j.accessKey); err != nil {
		return model.Identity{}, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.UserID == "" {
		return model.Identity{}, errMissingSubject
	}

	return model.Identity{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// ParseRefreshToken validates a refresh token and returns the owning user id.
func (j *JWT) ParseRefreshToken(tokenString string) (string, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenString, claims, j.refreshKey); err != nil {
		return "", fmt.Errorf("failed to parse refresh token: %w", err)
	}
	if claims.UserID == "" {
		return "", errMissingSubject
	}

	return claims.UserID, nil
}

func (j *JWT) parse(tokenString string, claims jwt.Claims, key []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("token is invalid")
	}
	return nil
}
