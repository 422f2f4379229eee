package repository

import (
	"context"
	"time"

	"cipe-auth/internal/db"
	"cipe-auth/internal/domain"
)

// PgAccountRepository implementa AccountRepository sobre pgx.
type PgAccountRepository struct {
	db db.DBTX
}

func NewPgAccountRepository(conn db.DBTX) *PgAccountRepository {
	return &PgAccountRepository{db: conn}
}

const accountColumns = `id, email, display_name, password_hash, role, verified, blocked,
		otp_code, otp_expires_at, last_login_at, created_at`

func (r *PgAccountRepository) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (id, email, display_name, password_hash, role, verified, blocked,
			otp_code, otp_expires_at, last_login_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.Email,
		a.DisplayName,
		a.PasswordHash,
		string(a.Role),
		a.Verified,
		a.Blocked,
		a.OtpCode,
		a.OtpExpiresAt,
		a.LastLoginAt,
		a.CreatedAt,
	)
	return mapPgError(err)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return r.scanOne(ctx, query, email)
}

func (r *PgAccountRepository) GetByEmailForUpdate(ctx context.Context, email string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1) FOR UPDATE`
	return r.scanOne(ctx, query, email)
}

func (r *PgAccountRepository) UpdateOTP(ctx context.Context, id string, code string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts
		SET otp_code = $2, otp_expires_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, code, expiresAt)
}

func (r *PgAccountRepository) MarkLoggedIn(ctx context.Context, id string, code string, at time.Time) error {
	const query = `
		UPDATE accounts
		SET otp_code = NULL, otp_expires_at = NULL, last_login_at = $3
		WHERE id = $1 AND otp_code = $2
	`
	return r.execOne(ctx, query, id, code, at)
}

func (r *PgAccountRepository) ResetPassword(ctx context.Context, id string, code string, passwordHash string) error {
	const query = `
		UPDATE accounts
		SET password_hash = $3, otp_code = NULL, otp_expires_at = NULL
		WHERE id = $1 AND otp_code = $2
	`
	return r.execOne(ctx, query, id, code, passwordHash)
}

func (r *PgAccountRepository) UpdateProfile(ctx context.Context, id string, displayName, email, passwordHash string) error {
	const query = `
		UPDATE accounts
		SET display_name = $2, email = $3, password_hash = $4
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, displayName, email, passwordHash)
}

// lockByID toma un lock de fila sobre la cuenta hasta el fin de la transacción.
func (r *PgAccountRepository) lockByID(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return mapPgError(err)
}

func (r *PgAccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgAccountRepository) scanOne(ctx context.Context, query string, arg any) (domain.Account, error) {
	var (
		a    domain.Account
		role string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&a.DisplayName,
		&a.PasswordHash,
		&role,
		&a.Verified,
		&a.Blocked,
		&a.OtpCode,
		&a.OtpExpiresAt,
		&a.LastLoginAt,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.Account{}, mapPgError(err)
	}
	a.Role = domain.Role(role)
	return a, nil
}
