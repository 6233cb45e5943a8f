package core

import (
	"context"
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user_not_found")

// User is a local account as seen by the SSO flow.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Meta         map[string]string
	CreatedAt    time.Time
}

// NewUser is the input for provisioning an account.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// UserStore is the host platform's user-record storage.
//
// GetUserByUsername matches the username exactly and returns ErrUserNotFound
// (possibly wrapped) when no account has it.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, u NewUser) (int64, error)
	SetUserMeta(ctx context.Context, userID int64, key, value string) error
}

// Session is the host platform's authenticated session for the current request.
//
// After Establish succeeds, Current must report the new user for the rest of
// the request; after Clear, Current must report no user.
type Session interface {
	Current(ctx context.Context) (userID int64, ok bool)
	Clear(ctx context.Context) error
	Establish(ctx context.Context, userID int64) error
}
