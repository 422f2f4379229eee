package domain

import "time"

// Account es el dueño de la identidad y del desafío OTP vigente.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Verified     bool       `json:"is_verified"`
	Blocked      bool       `json:"is_blocked"`
	OtpCode      *string    `json:"-"`
	OtpExpiresAt *time.Time `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasPendingOTP indica si hay un código y una expiración guardados.
func (a Account) HasPendingOTP() bool {
	return a.OtpCode != nil && a.OtpExpiresAt != nil
}

// ClearOTP borra el desafío vigente.
func (a *Account) ClearOTP() {
	a.OtpCode = nil
	a.OtpExpiresAt = nil
}

// AccountView es la vista pública de una cuenta.
type AccountView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"name"`
	Role        Role       `json:"role"`
	Verified    bool       `json:"is_verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a Account) View() AccountView {
	return AccountView{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		Verified:    a.Verified,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}
