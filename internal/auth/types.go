package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already used")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrInvalidToken       = errors.New("invalid reset token")
)

// User is the identity record. The password hash never leaves the
// repository layer except through this struct; handlers must not expose it.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

// Session proves an authenticated request context. Its ID is the cookie
// value. Fresh is set by the session store when the session was just
// created or rotated and its cookie must be written to the response.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	Fresh     bool
	CreatedAt time.Time
}

// VerificationCode is a short-lived proof of email ownership. At most one
// code exists per user; issuing a new one replaces the previous.
type VerificationCode struct {
	ID        int64
	UserID    string
	Email     string
	Code      string
	ExpiresAt time.Time
}

// ResetToken is a short-lived proof of a password-reset request. Only the
// SHA-256 hash of the raw token is ever persisted.
type ResetToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Create(ctx context.Context, id, email, passwordHash string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetEmailVerified(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SessionRepository defines the interface for session persistence.
type SessionRepository interface {
	Create(ctx context.Context, id, userID string, expiresAt time.Time) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) error
}

// VerificationCodeRepository persists email verification codes.
// Replace deletes any code the user still has and inserts the new one in
// a single transaction, so the one-outstanding-code invariant holds even
// under concurrent requests.
type VerificationCodeRepository interface {
	Replace(ctx context.Context, userID, email, code string, expiresAt time.Time) (*VerificationCode, error)
	GetByUserID(ctx context.Context, userID string) (*VerificationCode, error)
	DeleteByID(ctx context.Context, id int64) error
}

// ResetTokenRepository persists password reset tokens, keyed by token hash.
type ResetTokenRepository interface {
	Replace(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*ResetToken, error)
	GetByHash(ctx context.Context, tokenHash string) (*ResetToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
}
