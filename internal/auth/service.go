package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// EmailSender defines the interface for delivering account emails.
// Delivery is best-effort from the service's perspective; a failure never
// rolls back the flow that triggered it.
type EmailSender interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, resetLink string) error
}

// SessionStore is the slice of the session manager the auth service
// needs: starting sessions and tearing them down in bulk.
type SessionStore interface {
	Create(ctx context.Context, userID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	InvalidateUser(ctx context.Context, userID string) error
}

// Service orchestrates the signup, login, email-verification, and
// password-reset flows. It holds no entity state of its own.
type Service struct {
	users       UserRepository
	sessions    SessionStore
	tokens      *TokenService
	emailSender EmailSender
	baseURL     string
	logger      *slog.Logger
}

// NewService creates a new auth service. baseURL is the public URL the
// password reset link is built from.
func NewService(
	users UserRepository,
	sessions SessionStore,
	tokens *TokenService,
	emailSender EmailSender,
	baseURL string,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		emailSender: emailSender,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger,
	}
}

// SignupInput contains the data needed to create an account.
type SignupInput struct {
	Email    string
	Password string
}

// Validate validates the signup input.
func (i *SignupInput) Validate() error {
	i.Email = strings.TrimSpace(strings.ToLower(i.Email))

	if i.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(i.Email, "@") {
		return errors.New("invalid email format")
	}
	if len(i.Password) < 8 || len(i.Password) > 64 {
		return errors.New("password must be between 8 and 64 characters")
	}
	return nil
}

// Signup creates an account, issues a verification code, emails it, and
// starts a session. The email is best-effort: a delivery failure does
// not roll back the account.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, NewUserID(), input.Email, passwordHash)
	if err != nil {
		return nil, err
	}

	code, err := s.tokens.IssueVerificationCode(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.emailSender.SendVerificationCode(ctx, user.Email, code); err != nil {
		s.logger.Error("failed to send verification code", "error", err, "user_id", user.ID)
	}

	return s.sessions.Create(ctx, user.ID)
}

// LoginInput contains the data needed to log in.
type LoginInput struct {
	Email    string
	Password string
}

// Validate validates the login input.
func (i *LoginInput) Validate() error {
	i.Email = strings.TrimSpace(strings.ToLower(i.Email))

	if i.Email == "" {
		return errors.New("email is required")
	}
	if i.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// Login authenticates a user and starts a session. An unknown email and
// a wrong password both yield ErrInvalidCredentials so the response does
// not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Session, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	return s.sessions.Create(ctx, user.ID)
}

// Logout invalidates a single session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// VerifyEmail consumes the user's verification code. On success every
// existing session for the user is invalidated, the email-verified flag
// is set, and a fresh session is returned so the caller stays logged in.
func (s *Service) VerifyEmail(ctx context.Context, user *User, code string) (*Session, error) {
	ok, err := s.tokens.ConsumeVerificationCode(ctx, user.ID, code, user.Email)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCode
	}

	if err := s.sessions.InvalidateUser(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}

	return s.sessions.Create(ctx, user.ID)
}

// RequestPasswordReset issues a reset token and emails the reset link.
// It silently succeeds for unknown emails and for accounts that never
// verified their email, so the response cannot be used to enumerate
// accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.EmailVerified {
		return nil
	}

	token, err := s.tokens.IssueResetToken(ctx, user.ID)
	if err != nil {
		return err
	}

	resetLink := fmt.Sprintf("%s/user/reset-password/%s", s.baseURL, token)
	if err := s.emailSender.SendPasswordReset(ctx, user.Email, resetLink); err != nil {
		s.logger.Error("failed to send password reset email", "error", err, "user_id", user.ID)
	}
	return nil
}

// ResetPasswordInput contains the data needed to reset a password.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

// Validate validates the reset password input.
func (i *ResetPasswordInput) Validate() error {
	if i.Token == "" {
		return errors.New("token is required")
	}
	if len(i.NewPassword) < 8 || len(i.NewPassword) > 64 {
		return errors.New("password must be between 8 and 64 characters")
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the password, kills
// every session the user had, and starts a new one.
func (s *Service) ResetPassword(ctx context.Context, input ResetPasswordInput) (*Session, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	userID, err := s.tokens.ConsumeResetToken(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.InvalidateUser(ctx, userID); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(input.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return nil, err
	}

	return s.sessions.Create(ctx, userID)
}
