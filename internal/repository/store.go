package repository

import (
	"context"
	"time"

	"cipe-auth/internal/domain"
)

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	// GetByEmailForUpdate bloquea la fila hasta el fin de la transacción.
	GetByEmailForUpdate(ctx context.Context, email string) (domain.Account, error)
	// UpdateOTP reemplaza sin condiciones el desafío vigente.
	UpdateOTP(ctx context.Context, id string, code string, expiresAt time.Time) error
	// MarkLoggedIn consume el OTP code y sella el último login.
	// Devuelve ErrNotFound si la cuenta no existe o el código vigente ya no es code.
	MarkLoggedIn(ctx context.Context, id string, code string, at time.Time) error
	// ResetPassword consume el OTP code y cambia el hash, con la misma condición.
	ResetPassword(ctx context.Context, id string, code string, passwordHash string) error
	// UpdateProfile persiste nombre, email y hash sin tocar el OTP.
	UpdateProfile(ctx context.Context, id string, displayName, email, passwordHash string) error
}

// RefreshCredentialRepository define el contrato para credenciales de refresco.
type RefreshCredentialRepository interface {
	// Replace borra cualquier credencial previa de la cuenta e inserta la nueva.
	// Debe ejecutarse dentro de una transacción.
	Replace(ctx context.Context, cred domain.RefreshCredential) error
	GetByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshCredential, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
}

// Store agrupa los repositorios y la unidad de trabajo transaccional.
type Store interface {
	Accounts() AccountRepository
	RefreshCredentials() RefreshCredentialRepository
	// WithTx ejecuta fn con repositorios ligados a una única transacción.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
