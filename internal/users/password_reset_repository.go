package users

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citytransit/backend/internal/auth"
)

// PasswordResetRepository implements auth.ResetTokenRepository using
// PostgreSQL. Only token hashes are stored; the raw token exists solely
// in the email sent to the user.
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordResetRepository creates a new password reset repository.
func NewPasswordResetRepository(pool *pgxpool.Pool) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Replace deletes any outstanding token for the user and inserts the new
// one in a single transaction.
func (r *PasswordResetRepository) Replace(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*auth.ResetToken, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE user_id = $1
	`, userID); err != nil {
		return nil, err
	}

	var rt auth.ResetToken
	err = tx.QueryRow(ctx, `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING token_hash, user_id, expires_at
	`, tokenHash, userID, expiresAt).Scan(
		&rt.TokenHash,
		&rt.UserID,
		&rt.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rt, nil
}

// GetByHash retrieves a reset token by its hash, or nil if none.
func (r *PasswordResetRepository) GetByHash(ctx context.Context, tokenHash string) (*auth.ResetToken, error) {
	var rt auth.ResetToken
	err := r.pool.QueryRow(ctx, `
		SELECT token_hash, user_id, expires_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&rt.TokenHash,
		&rt.UserID,
		&rt.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// DeleteByHash deletes a reset token row.
func (r *PasswordResetRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE token_hash = $1`, tokenHash)
	return err
}
