package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const (
	// Verification codes are numeric so they can be typed from a phone.
	verificationCodeLength = 8

	sessionIDBytes  = 25
	resetTokenBytes = 32
)

// NewUserID returns a new opaque user id. IDs are generated at signup and
// never reused.
func NewUserID() string {
	return uuid.NewString()
}

// NewSessionID returns an unpredictable session identifier suitable for
// use as a cookie value.
func NewSessionID() (string, error) {
	return randomString(sessionIDBytes)
}

// NewResetToken returns the raw password-reset token. The raw value is
// emailed to the user and never stored; persist HashToken(token) instead.
func NewResetToken() (string, error) {
	return randomString(resetTokenBytes)
}

// NewVerificationCode returns a fixed-length numeric code (digits 0-9).
// Bytes of 250 and above are rejected so every digit is equally likely;
// a plain modulo would skew toward 0-5.
func NewVerificationCode() (string, error) {
	code := make([]byte, 0, verificationCodeLength)
	buf := make([]byte, verificationCodeLength)
	for len(code) < verificationCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		for _, b := range buf {
			if b >= 250 || len(code) == verificationCodeLength {
				continue
			}
			code = append(code, '0'+b%10)
		}
	}
	return string(code), nil
}

// HashToken returns the SHA-256 hash of a token, encoded for storage.
// Lookups are always by hash, never by the raw value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.URLEncoding.EncodeToString(sum[:])
}

// VerifyTokenHash compares a raw token against a stored hash in constant
// time.
func VerifyTokenHash(token, tokenHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(tokenHash)) == 1
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
