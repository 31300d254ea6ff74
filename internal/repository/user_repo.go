package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ayuda-red/internal/domain"
)

// ErrDuplicateEmail indica violación de unicidad del email en la creación.
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateVerificationToken(ctx context.Context, id int64, token string, expiresAt time.Time) error
	SetEmailVerified(ctx context.Context, id int64) error
	UpdateRefreshToken(ctx context.Context, id int64, token string) error
	UpdatePasswordResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, email, name, phone, password_hash, role, is_email_verified,
	verification_token, token_expires_at,
	password_reset_token_hash, reset_token_expires_at,
	refresh_token, created_at
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (email, name, phone, password_hash, role, is_email_verified,
			verification_token, token_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.Name,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.IsEmailVerified,
		user.VerificationToken,
		user.TokenExpiresAt,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) UpdateVerificationToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET verification_token = $2, token_expires_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, query, id, token, expiresAt)
}

func (r *PgUserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	const query = `
		UPDATE users
		SET is_email_verified = TRUE, verification_token = '', token_expires_at = NULL
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *PgUserRepository) UpdateRefreshToken(ctx context.Context, id int64, token string) error {
	const query = `UPDATE users SET refresh_token = $2 WHERE id = $1`
	return r.exec(ctx, query, id, token)
}

func (r *PgUserRepository) UpdatePasswordResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token_hash = $2, reset_token_expires_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, query, id, tokenHash, expiresAt)
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, password_reset_token_hash = '', reset_token_expires_at = NULL
		WHERE id = $1
	`
	return r.exec(ctx, query, id, passwordHash)
}

func (r *PgUserRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Phone,
		&u.PasswordHash,
		&u.Role,
		&u.IsEmailVerified,
		&u.VerificationToken,
		&u.TokenExpiresAt,
		&u.PasswordResetTokenHash,
		&u.ResetTokenExpiresAt,
		&u.RefreshToken,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
