package repository

import (
	"context"

	"cipe-auth/internal/db"
)

// PgStore implementa Store sobre un pool de pgx.
type PgStore struct {
	conn     db.DBTX
	beginner db.TxBeginner
}

// NewPgStore recibe normalmente un *pgxpool.Pool, que cumple ambos contratos.
func NewPgStore(conn db.DBTX, beginner db.TxBeginner) *PgStore {
	return &PgStore{conn: conn, beginner: beginner}
}

func (s *PgStore) Accounts() AccountRepository {
	return NewPgAccountRepository(s.conn)
}

func (s *PgStore) RefreshCredentials() RefreshCredentialRepository {
	return NewPgRefreshCredentialRepository(s.conn)
}

func (s *PgStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	// Ya dentro de una transacción: se reutiliza.
	if s.beginner == nil {
		return fn(ctx, s)
	}
	return db.WithTx(ctx, s.beginner, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &PgStore{conn: tx})
	})
}
