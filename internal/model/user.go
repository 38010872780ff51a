package model

import (
	"context"
	"time"
)

// DefaultRole is assigned to newly registered users.
const DefaultRole = "user"

// UserStore defines persistence operations for users.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, user User) (User, error)
}

// User represents a stored account with its password hash.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity returns the token identity of the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// PasswordHasher is a one-way password function with a verify counterpart.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}
