package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cipe-auth/internal/domain"
	"cipe-auth/internal/repository"
)

// EventRecorder recibe el resultado de cada operación de autenticación.
type EventRecorder interface {
	RecordAuthEvent(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string, string) {}

// UpdateProfileInput lleva los cambios pedidos; un campo vacío no se modifica.
type UpdateProfileInput struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
}

// SessionGrant es el resultado de una verificación OTP exitosa.
type SessionGrant struct {
	AccessToken      AccessToken
	RefreshToken     string
	RefreshExpiresAt time.Time
	StaySignedIn     bool
	Account          domain.AccountView
}

// SessionService compone las piezas de identidad en los flujos de sesión.
// Cada operación es atómica respecto de la fila de su cuenta.
type SessionService struct {
	logger  *zap.Logger
	store   repository.Store
	hasher  PasswordHasher
	otp     *OTPEngine
	refresh *RefreshCredentials
	tokens  *AccessTokenIssuer
	events  EventRecorder
	now     func() time.Time
}

func NewSessionService(
	logger *zap.Logger,
	store repository.Store,
	hasher PasswordHasher,
	otp *OTPEngine,
	refresh *RefreshCredentials,
	tokens *AccessTokenIssuer,
	events EventRecorder,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = nopRecorder{}
	}
	return &SessionService{
		logger:  logger,
		store:   store,
		hasher:  hasher,
		otp:     otp,
		refresh: refresh,
		tokens:  tokens,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionService) Register(ctx context.Context, input RegisterInput) (view domain.AccountView, err error) {
	defer func() { s.record("register", err) }()

	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.AccountView{}, ErrInvalidEmail
	}
	// ADMIN nunca se acepta aunque la validación de entrada lo deje pasar.
	if !input.Role.SelfAssignable() {
		return domain.AccountView{}, ErrRoleNotAllowed
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.AccountView{}, fmt.Errorf("hash password: %w", err)
	}

	acc := domain.Account{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  strings.TrimSpace(input.Name),
		PasswordHash: hash,
		Role:         input.Role,
		Verified:     input.Role == domain.LowestRole,
		CreatedAt:    s.now(),
	}

	var challenge OTPChallenge
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		_, err := tx.Accounts().GetByEmail(ctx, emailAddr)
		if err == nil {
			return ErrEmailAlreadyExists
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if err := tx.Accounts().Create(ctx, acc); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrEmailAlreadyExists
			}
			return err
		}
		challenge, err = s.otp.Issue(ctx, tx.Accounts(), &acc, OTPPurposeRegistration)
		return err
	})
	if err != nil {
		return domain.AccountView{}, err
	}

	s.otp.Notify(ctx, challenge)
	s.logger.Info("account registered",
		zap.String("account_id", acc.ID),
		zap.String("role", string(acc.Role)),
	)
	return acc.View(), nil
}

// Login nunca autentica una sesión: solo emite un desafío OTP.
func (s *SessionService) Login(ctx context.Context, emailAddr, password string) (err error) {
	defer func() { s.record("login", err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return ErrInvalidCredentials
	}
	acc, err := s.store.Accounts().GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if !s.hasher.Verify(acc.PasswordHash, password) {
		return ErrInvalidCredentials
	}

	challenge, err := s.otp.Issue(ctx, s.store.Accounts(), &acc, OTPPurposeLogin)
	if err != nil {
		return err
	}
	s.otp.Notify(ctx, challenge)
	return nil
}

// VerifyOTP confirma el login y reemplaza la credencial de refresco de la cuenta.
// Un código incorrecto no toca el desafío pendiente.
func (s *SessionService) VerifyOTP(ctx context.Context, emailAddr, code string, staySignedIn bool) (grant SessionGrant, err error) {
	defer func() { s.record("verify_otp", err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return SessionGrant{}, ErrAccountNotFound
	}

	attempt := func(ctx context.Context, tx repository.Store) error {
		acc, err := tx.Accounts().GetByEmailForUpdate(ctx, emailAddr)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if err := s.otp.Verify(acc, code); err != nil {
			return err
		}

		now := s.now()
		// Condicional al código: una verificación concurrente que ya lo consumió gana.
		if err := tx.Accounts().MarkLoggedIn(ctx, acc.ID, code, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredOTP
			}
			return err
		}
		acc.ClearOTP()
		acc.LastLoginAt = &now

		plain, cred, err := s.refresh.Issue(ctx, tx.RefreshCredentials(), acc.ID)
		if err != nil {
			return err
		}
		token, err := s.tokens.Mint(acc.ID, acc.Role)
		if err != nil {
			return err
		}

		grant = SessionGrant{
			AccessToken:      token,
			RefreshToken:     plain,
			RefreshExpiresAt: cred.ExpiresAt,
			StaySignedIn:     staySignedIn,
			Account:          acc.View(),
		}
		return nil
	}

	err = s.store.WithTx(ctx, attempt)
	if errors.Is(err, repository.ErrConflict) {
		// Otra verificación concurrente ganó el índice de credencial viva.
		s.logger.Warn("refresh credential conflict, retrying", zap.String("email", emailAddr))
		err = s.store.WithTx(ctx, attempt)
	}
	if err != nil {
		return SessionGrant{}, err
	}
	return grant, nil
}

// Refresh emite un access token nuevo sin rotar la credencial de refresco.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (token AccessToken, err error) {
	defer func() { s.record("refresh", err) }()

	cred, err := s.refresh.Resolve(ctx, s.store.RefreshCredentials(), refreshToken)
	if err != nil {
		return AccessToken{}, err
	}
	acc, err := s.store.Accounts().GetByID(ctx, cred.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AccessToken{}, ErrRefreshTokenNotFound
		}
		return AccessToken{}, err
	}
	return s.tokens.Mint(acc.ID, acc.Role)
}

// InitiatePasswordReset nunca revela si el email existe.
func (s *SessionService) InitiatePasswordReset(ctx context.Context, emailAddr string) (err error) {
	defer func() { s.record("forgot_password", err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil
	}
	acc, err := s.store.Accounts().GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	challenge, err := s.otp.Issue(ctx, s.store.Accounts(), &acc, OTPPurposePasswordReset)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			s.logger.Warn("password reset otp rate limited", zap.String("email", emailAddr))
			return nil
		}
		return err
	}
	s.otp.Notify(ctx, challenge)
	return nil
}

// ResetPassword no revoca las credenciales de refresco existentes.
func (s *SessionService) ResetPassword(ctx context.Context, emailAddr, code, newPassword string) (err error) {
	defer func() { s.record("reset_password", err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrAccountNotFound
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		acc, err := tx.Accounts().GetByEmailForUpdate(ctx, emailAddr)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if err := s.otp.Verify(acc, code); err != nil {
			return err
		}
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.Accounts().ResetPassword(ctx, acc.ID, code, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredOTP
			}
			return err
		}
		return nil
	})
}

// UpdateProfile cambia nombre, email o contraseña de la cuenta autenticada.
// La contraseña nueva exige la actual. No toca las credenciales de refresco.
func (s *SessionService) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (view domain.AccountView, err error) {
	defer func() { s.record("update_profile", err) }()

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		if name := strings.TrimSpace(input.Name); name != "" {
			acc.DisplayName = name
		}
		if strings.TrimSpace(input.Email) != "" {
			emailAddr := normalizeEmail(input.Email)
			if emailAddr != acc.Email {
				_, err := tx.Accounts().GetByEmail(ctx, emailAddr)
				if err == nil {
					return ErrEmailAlreadyExists
				}
				if !errors.Is(err, repository.ErrNotFound) {
					return err
				}
				acc.Email = emailAddr
			}
		}
		if input.NewPassword != "" {
			if !s.hasher.Verify(acc.PasswordHash, input.CurrentPassword) {
				return ErrCurrentPasswordMismatch
			}
			hash, err := s.hasher.Hash(input.NewPassword)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			acc.PasswordHash = hash
		}

		if err := tx.Accounts().UpdateProfile(ctx, acc.ID, acc.DisplayName, acc.Email, acc.PasswordHash); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrEmailAlreadyExists
			}
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		view = acc.View()
		return nil
	})
	if err != nil {
		return domain.AccountView{}, err
	}
	s.logger.Info("profile updated", zap.String("account_id", view.ID))
	return view, nil
}

// Logout borra todas las credenciales de la cuenta; repetirlo no es un error.
func (s *SessionService) Logout(ctx context.Context, accountID string) (err error) {
	defer func() { s.record("logout", err) }()

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil
	}
	n, err := s.refresh.RevokeAll(ctx, s.store.RefreshCredentials(), accountID)
	if err != nil {
		return err
	}
	s.logger.Info("logout", zap.String("account_id", accountID), zap.Int64("credentials_deleted", n))
	return nil
}

func (s *SessionService) CurrentAccount(ctx context.Context, accountID string) (domain.AccountView, error) {
	acc, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.AccountView{}, ErrAccountNotFound
		}
		return domain.AccountView{}, err
	}
	return acc.View(), nil
}

// VerifyAccessToken expone el verificador para la capa de transporte.
func (s *SessionService) VerifyAccessToken(token string) (domain.AccessClaims, error) {
	return s.tokens.Verify(token)
}

func (s *SessionService) record(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = outcomeFor(err)
	}
	s.events.RecordAuthEvent(operation, outcome)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailAlreadyExists):
		return "email_exists"
	case errors.Is(err, ErrInvalidOrExpiredOTP):
		return "invalid_otp"
	case errors.Is(err, ErrRefreshTokenNotFound):
		return "refresh_not_found"
	case errors.Is(err, ErrRefreshTokenRevokedOrExpired):
		return "refresh_unusable"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrCurrentPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, ErrRoleNotAllowed), errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrPasswordTooLong):
		return "rejected"
	default:
		return "error"
	}
}
