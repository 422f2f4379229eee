package domain

import "time"

// RefreshCredential ancla una sesión de larga duración.
// Solo se persiste el hash del valor opaco.
type RefreshCredential struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired es perezoso: now igual a la expiración todavía es válido.
func (c RefreshCredential) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Usable indica si la credencial puede emitir access tokens.
func (c RefreshCredential) Usable(now time.Time) bool {
	return !c.Revoked && !c.IsExpired(now)
}
