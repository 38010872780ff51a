package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/model"
)

// Auth implements account registration, login, renewal and logout on top
// of TokenService.
type Auth struct {
	userStore    model.UserStore
	hasher       model.PasswordHasher
	tokenService *TokenService
	logger       *logger.Logger

	decoyOnce sync.Once
	decoyHash string
}

// decoyPassword is hashed once to give unknown-email logins the same
// hashing cost as a wrong password.
const decoyPassword = "authgate-decoy-password"

func NewAuth(
	userStore model.UserStore,
	hasher model.PasswordHasher,
	tokenService *TokenService,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		userStore:    userStore,
		hasher:       hasher,
		tokenService: tokenService,
		logger:       logger,
	}
}

// Register creates an account with the default role.
func (a *Auth) Register(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return model.User{}, err
	}

	a.logger.Debug("Auth service: starting user registration",
		"email", email)

	hash, err := a.hasher.Hash(password)
	if err != nil {
		a.logger.Error("Auth service: failed to hash password",
			"email", email,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user, err := a.userStore.Create(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         model.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrConflict) {
		a.logger.Info("Auth service: email already registered",
			"email", email)
		return model.User{}, fmt.Errorf("email %q: %w", email, model.ErrConflict)
	}
	if err != nil {
		a.logger.Error("Auth service: failed to create user",
			"email", email,
			"error", err.Error())
		return model.User{}, storeFailure("create user", err)
	}

	a.logger.Info("Auth service: user registered",
		"email", email,
		"user_id", user.ID)

	return user, nil
}

// Login verifies the password and issues a token pair.
func (a *Auth) Login(ctx context.Context, email, password string) (model.TokenPair, error) {
	email = strings.TrimSpace(email)
	a.logger.Debug("Auth service: starting user login",
		"email", email)

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.compareDecoy(password)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, storeFailure("get user by email", err)
	}

	if !a.hasher.Compare(user.PasswordHash, password) {
		a.logger.Info("Auth service: password mismatch",
			"user_id", user.ID)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	identity := user.Identity()
	pair, err := a.tokenService.Issue(ctx, &identity)
	if err != nil {
		a.logger.Error("Auth service: failed to issue tokens",
			"user_id", user.ID,
			"error", err.Error())
		return model.TokenPair{}, fmt.Errorf("failed to issue token: %w", err)
	}

	a.logger.Info("Auth service: user logged in",
		"user_id", user.ID)

	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair. The old session is
// consumed and the access token carries the user's current role.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	userID, ok, err := a.tokenService.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !ok {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	user, err := a.userStore.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: refresh for unknown user",
			"user_id", userID)
		if err := a.tokenService.RevokeRefresh(ctx, refreshToken); err != nil {
			a.logger.Warn("Auth service: failed to revoke orphaned session",
				"user_id", userID,
				"error", err.Error())
		}
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.TokenPair{}, storeFailure("get user by id", err)
	}

	identity := user.Identity()
	pair, err := a.tokenService.Rotate(ctx, refreshToken, &identity)
	if err != nil {
		return model.TokenPair{}, err
	}

	a.logger.Debug("Auth service: tokens refreshed",
		"user_id", userID)

	return pair, nil
}

// Logout revokes the session of refreshToken.
func (a *Auth) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return model.ErrInvalidInput
	}
	return a.tokenService.RevokeRefresh(ctx, refreshToken)
}

// compareDecoy runs a password comparison that always fails.
func (a *Auth) compareDecoy(password string) {
	a.decoyOnce.Do(func() {
		hash, err := a.hasher.Hash(decoyPassword)
		if err != nil {
			a.logger.Warn("Auth service: failed to prepare decoy hash",
				"error", err.Error())
			return
		}
		a.decoyHash = hash
	})
	if a.decoyHash != "" {
		a.hasher.Compare(a.decoyHash, password)
	}
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required: %w", model.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("malformed email %q: %w", email, model.ErrInvalidInput)
	}
	return nil
}
