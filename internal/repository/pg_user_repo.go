package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"edu-consult/internal/domain"
)

const pgUniqueViolation = "23505"

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const pgUserColumns = `id, full_name, email, password_hash, phone_number, role, reset_code, reset_code_expires, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, full_name, email, password_hash, phone_number, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		nullIfEmpty(user.PhoneNumber),
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapPgError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + pgUserColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) Save(ctx context.Context, user domain.User) error {
	const query = `
		UPDATE users
		SET full_name = $2, email = $3, password_hash = $4, phone_number = $5, role = $6, updated_at = $7
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		nullIfEmpty(user.PhoneNumber),
		string(user.Role),
		user.UpdatedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) SetResetCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_code = $2, reset_code_expires = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, code, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) ConsumeResetCode(ctx context.Context, email, code string, now time.Time, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $4, reset_code = NULL, reset_code_expires = NULL, updated_at = $3
		WHERE email = $1 AND reset_code = $2 AND reset_code_expires > $3
	`
	tag, err := r.pool.Exec(ctx, query, email, code, now, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		role      string
		phone     *string
		resetCode *string
	)
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&phone,
		&role,
		&resetCode,
		&u.ResetCodeExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	if phone != nil {
		u.PhoneNumber = *phone
	}
	if resetCode != nil {
		u.ResetCode = *resetCode
	}
	return u, nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "phone") {
			return &DuplicateError{Field: FieldPhone}
		}
		return &DuplicateError{Field: FieldEmail}
	}
	return err
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
