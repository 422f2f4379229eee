package repository

import (
	"context"

	"cipe-auth/internal/db"
	"cipe-auth/internal/domain"
)

// PgRefreshCredentialRepository implementa RefreshCredentialRepository sobre pgx.
type PgRefreshCredentialRepository struct {
	db db.DBTX
}

func NewPgRefreshCredentialRepository(conn db.DBTX) *PgRefreshCredentialRepository {
	return &PgRefreshCredentialRepository{db: conn}
}

// Replace serializa el reemplazo por cuenta con un lock de fila sobre accounts.
// El índice parcial refresh_credentials_live_account_uq queda como respaldo.
func (r *PgRefreshCredentialRepository) Replace(ctx context.Context, cred domain.RefreshCredential) error {
	if err := NewPgAccountRepository(r.db).lockByID(ctx, cred.AccountID); err != nil {
		return err
	}
	if _, err := r.DeleteByAccount(ctx, cred.AccountID); err != nil {
		return err
	}
	const query = `
		INSERT INTO refresh_credentials (id, account_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		cred.ID,
		cred.AccountID,
		cred.TokenHash,
		cred.ExpiresAt,
		cred.Revoked,
		cred.CreatedAt,
	)
	return mapPgError(err)
}

func (r *PgRefreshCredentialRepository) GetByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshCredential, error) {
	const query = `
		SELECT id, account_id, token_hash, expires_at, revoked, created_at
		FROM refresh_credentials
		WHERE token_hash = $1
	`
	var c domain.RefreshCredential
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&c.ID,
		&c.AccountID,
		&c.TokenHash,
		&c.ExpiresAt,
		&c.Revoked,
		&c.CreatedAt,
	)
	if err != nil {
		return domain.RefreshCredential{}, mapPgError(err)
	}
	return c, nil
}

func (r *PgRefreshCredentialRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_credentials WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, mapPgError(err)
	}
	return tag.RowsAffected(), nil
}
