package idp

import (
	"context"
	"errors"
)

// User is an identity-provider account
type User struct {
	ID    string `json:"user_id"`
	Email string `json:"email"`
}

// Client is the surface the backend needs from the identity provider.
// Role-name add/remove are idempotent: adding a name the user already
// holds, or removing one they don't, succeeds without effect.
type Client interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, email string) (*User, error)
	DeleteUser(ctx context.Context, userID string) error

	AddRoleName(ctx context.Context, userID, roleName string) error
	RemoveRoleName(ctx context.Context, userID, roleName string) error
	ListRoleNames(ctx context.Context, userID string) ([]string, error)

	Ping(ctx context.Context) error
}

// Error kinds mapped from provider HTTP status codes
var (
	ErrNotFound   = errors.New("identity provider: not found")
	ErrConflict   = errors.New("identity provider: already exists")
	ErrBadRequest = errors.New("identity provider: bad request")
	ErrForbidden  = errors.New("identity provider: forbidden")
)
