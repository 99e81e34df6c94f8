package users

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citytransit/backend/internal/auth"
)

// Repository implements auth.UserRepository using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new user repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user. The unique constraint on email is the
// authority on duplicates; a violation maps to auth.ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, id, email, passwordHash string) (*auth.User, error) {
	var user auth.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, email_verified)
		VALUES ($1, $2, $3, false)
		RETURNING id, email, password_hash, email_verified, created_at
	`, id, email, passwordHash).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, auth.ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return r.get(ctx, `
		SELECT id, email, password_hash, email_verified, created_at
		FROM users
		WHERE id = $1
	`, id)
}

// GetByEmail retrieves a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.get(ctx, `
		SELECT id, email, password_hash, email_verified, created_at
		FROM users
		WHERE email = $1
	`, email)
}

func (r *Repository) get(ctx context.Context, query, arg string) (*auth.User, error) {
	var user auth.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetEmailVerified marks the user's email as verified. Idempotent.
func (r *Repository) SetEmailVerified(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email_verified = true
		WHERE id = $1
	`, id)
	return err
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1
		WHERE id = $2
	`, passwordHash, id)
	return err
}
