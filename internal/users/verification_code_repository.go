package users

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citytransit/backend/internal/auth"
)

// VerificationCodeRepository implements auth.VerificationCodeRepository
// using PostgreSQL.
type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationCodeRepository creates a new verification code repository.
func NewVerificationCodeRepository(pool *pgxpool.Pool) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: pool}
}

// Replace deletes any outstanding code for the user and inserts the new
// one. Both statements run in one transaction so a concurrent request
// can never observe two live codes for the same user.
func (r *VerificationCodeRepository) Replace(ctx context.Context, userID, email, code string, expiresAt time.Time) (*auth.VerificationCode, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM email_verification_codes WHERE user_id = $1
	`, userID); err != nil {
		return nil, err
	}

	var vc auth.VerificationCode
	err = tx.QueryRow(ctx, `
		INSERT INTO email_verification_codes (user_id, email, code, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, email, code, expires_at
	`, userID, email, code, expiresAt).Scan(
		&vc.ID,
		&vc.UserID,
		&vc.Email,
		&vc.Code,
		&vc.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &vc, nil
}

// GetByUserID retrieves the user's outstanding code, or nil if none.
func (r *VerificationCodeRepository) GetByUserID(ctx context.Context, userID string) (*auth.VerificationCode, error) {
	var vc auth.VerificationCode
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, email, code, expires_at
		FROM email_verification_codes
		WHERE user_id = $1
	`, userID).Scan(
		&vc.ID,
		&vc.UserID,
		&vc.Email,
		&vc.Code,
		&vc.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

// DeleteByID deletes a single code row.
func (r *VerificationCodeRepository) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM email_verification_codes WHERE id = $1`, id)
	return err
}
