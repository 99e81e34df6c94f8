package auth

import (
	"context"
	"crypto/subtle"
	"time"
)

const (
	// Verification codes are typed by hand, so the window is short.
	verificationCodeTTL = 15 * time.Minute
	// Reset tokens travel by email link and get a longer window.
	resetTokenTTL = 2 * time.Hour
)

// TokenService owns the two single-use secrets: email verification codes
// and password reset tokens. Both are invalidated on first use, whether
// or not that use succeeds.
type TokenService struct {
	codes  VerificationCodeRepository
	resets ResetTokenRepository
	now    func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(codes VerificationCodeRepository, resets ResetTokenRepository) *TokenService {
	return &TokenService{
		codes:  codes,
		resets: resets,
		now:    time.Now,
	}
}

// IssueVerificationCode replaces any outstanding code for the user with a
// freshly generated numeric code and returns the raw code for delivery.
func (t *TokenService) IssueVerificationCode(ctx context.Context, userID, email string) (string, error) {
	code, err := NewVerificationCode()
	if err != nil {
		return "", err
	}
	if _, err := t.codes.Replace(ctx, userID, email, code, t.now().Add(verificationCodeTTL)); err != nil {
		return "", err
	}
	return code, nil
}

// ConsumeVerificationCode checks a presented code against the user's
// outstanding one. The stored row is deleted as soon as it is found, so
// any attempt burns the code: a wrong guess followed by the right code
// still fails. After deletion the code must match, be unexpired, and
// have been issued for the email the account currently has.
func (t *TokenService) ConsumeVerificationCode(ctx context.Context, userID, code, expectedEmail string) (bool, error) {
	stored, err := t.codes.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, nil
	}

	if err := t.codes.DeleteByID(ctx, stored.ID); err != nil {
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return false, nil
	}
	if !t.now().Before(stored.ExpiresAt) {
		return false, nil
	}
	if stored.Email != expectedEmail {
		return false, nil
	}
	return true, nil
}

// IssueResetToken replaces any outstanding reset token for the user and
// returns the raw token. Only its hash is persisted; the raw value
// cannot be recovered after this call.
func (t *TokenService) IssueResetToken(ctx context.Context, userID string) (string, error) {
	token, err := NewResetToken()
	if err != nil {
		return "", err
	}
	if _, err := t.resets.Replace(ctx, userID, HashToken(token), t.now().Add(resetTokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeResetToken resolves a raw token to the owning user id. The
// stored row is deleted on first lookup regardless of validity; a
// missing or expired token yields ErrInvalidToken.
func (t *TokenService) ConsumeResetToken(ctx context.Context, rawToken string) (string, error) {
	stored, err := t.resets.GetByHash(ctx, HashToken(rawToken))
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", ErrInvalidToken
	}

	if err := t.resets.DeleteByHash(ctx, stored.TokenHash); err != nil {
		return "", err
	}

	if !t.now().Before(stored.ExpiresAt) {
		return "", ErrInvalidToken
	}
	return stored.UserID, nil
}
