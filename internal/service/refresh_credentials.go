package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"cipe-auth/internal/domain"
	"cipe-auth/internal/repository"
)

const (
	defaultRefreshTTL = 24 * time.Hour
	refreshTokenBytes = 32
)

// RefreshCredentials emite y resuelve credenciales de refresco opacas.
// Solo el hash SHA-256 llega al almacenamiento.
type RefreshCredentials struct {
	ttl time.Duration
	now func() time.Time
}

func NewRefreshCredentials(ttl time.Duration) *RefreshCredentials {
	if ttl <= 0 {
		ttl = defaultRefreshTTL
	}
	return &RefreshCredentials{
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Issue reemplaza cualquier credencial previa de la cuenta.
// repo debe estar ligado a la transacción del llamador.
func (r *RefreshCredentials) Issue(ctx context.Context, repo repository.RefreshCredentialRepository, accountID string) (string, domain.RefreshCredential, error) {
	now := r.now()
	plain, err := newOpaqueToken(refreshTokenBytes)
	if err != nil {
		return "", domain.RefreshCredential{}, err
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", domain.RefreshCredential{}, err
	}
	cred := domain.RefreshCredential{
		ID:        id.String(),
		AccountID: accountID,
		TokenHash: hashRefreshToken(plain),
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}
	if err := repo.Replace(ctx, cred); err != nil {
		return "", domain.RefreshCredential{}, fmt.Errorf("replace refresh credential: %w", err)
	}
	return plain, cred, nil
}

// Resolve distingue entre valor desconocido y credencial inutilizable.
func (r *RefreshCredentials) Resolve(ctx context.Context, repo repository.RefreshCredentialRepository, plain string) (domain.RefreshCredential, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return domain.RefreshCredential{}, ErrRefreshTokenNotFound
	}
	cred, err := repo.GetByTokenHash(ctx, hashRefreshToken(plain))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.RefreshCredential{}, ErrRefreshTokenNotFound
		}
		return domain.RefreshCredential{}, err
	}
	if !cred.Usable(r.now()) {
		return domain.RefreshCredential{}, ErrRefreshTokenRevokedOrExpired
	}
	return cred, nil
}

// RevokeAll borra todas las credenciales de la cuenta; es idempotente.
func (r *RefreshCredentials) RevokeAll(ctx context.Context, repo repository.RefreshCredentialRepository, accountID string) (int64, error) {
	return repo.DeleteByAccount(ctx, accountID)
}

func newOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
