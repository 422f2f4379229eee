package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"time"

	"go.uber.org/zap"

	"cipe-auth/internal/domain"
	"cipe-auth/internal/repository"
)

const (
	defaultOTPTTL = 5 * time.Minute
	testModeOTP   = "000000"
)

// OTPPurpose indica qué flujo emitió el desafío.
type OTPPurpose string

const (
	OTPPurposeRegistration  OTPPurpose = "registration"
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// OTPNotifier entrega el código fuera de banda. Los errores se registran y se descartan.
type OTPNotifier interface {
	SendOTP(ctx context.Context, to string, purpose string, code string, expiresAt time.Time) error
}

// OTPChallenge es un desafío ya persistido, pendiente de notificar.
type OTPChallenge struct {
	Email     string
	Purpose   OTPPurpose
	Code      string
	ExpiresAt time.Time
}

type OTPConfig struct {
	TTL      time.Duration
	TestMode bool
}

// OTPEngine genera, guarda y verifica el código de un solo uso.
// Emitir un desafío nuevo pisa el anterior sin condiciones.
type OTPEngine struct {
	logger   *zap.Logger
	notifier OTPNotifier
	limiter  OTPRateLimiter
	ttl      time.Duration
	testMode bool
	now      func() time.Time
	random   io.Reader
}

func NewOTPEngine(logger *zap.Logger, cfg OTPConfig, notifier OTPNotifier, limiter OTPRateLimiter) *OTPEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if cfg.TestMode {
		logger.Warn("otp test mode enabled: every challenge uses a fixed code")
	}
	return &OTPEngine{
		logger:   logger,
		notifier: notifier,
		limiter:  limiter,
		ttl:      ttl,
		testMode: cfg.TestMode,
		now:      func() time.Time { return time.Now().UTC() },
		random:   rand.Reader,
	}
}

// Issue genera un código, fija la expiración y persiste ambos sobre la cuenta.
// La notificación se dispara aparte con Notify, una vez confirmada la transacción.
func (e *OTPEngine) Issue(ctx context.Context, accounts repository.AccountRepository, acc *domain.Account, purpose OTPPurpose) (OTPChallenge, error) {
	if e.limiter != nil && !e.limiter.Allow(ctx, acc.Email) {
		return OTPChallenge{}, ErrRateLimited
	}

	code, err := e.generateCode()
	if err != nil {
		return OTPChallenge{}, err
	}
	expiresAt := e.now().Add(e.ttl)

	if err := accounts.UpdateOTP(ctx, acc.ID, code, expiresAt); err != nil {
		return OTPChallenge{}, fmt.Errorf("store otp: %w", err)
	}
	acc.OtpCode = &code
	acc.OtpExpiresAt = &expiresAt

	return OTPChallenge{
		Email:     acc.Email,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: expiresAt,
	}, nil
}

// Notify es best-effort: el desafío ya es válido aunque la entrega falle.
func (e *OTPEngine) Notify(ctx context.Context, ch OTPChallenge) {
	if e.notifier == nil {
		e.logger.Warn("otp notifier not configured", zap.String("email", ch.Email))
		return
	}
	if err := e.notifier.SendOTP(ctx, ch.Email, string(ch.Purpose), ch.Code, ch.ExpiresAt); err != nil {
		e.logger.Warn("send otp failed",
			zap.Error(err),
			zap.String("email", ch.Email),
			zap.String("purpose", string(ch.Purpose)),
		)
	}
}

// Verify no limpia el desafío; cada flujo lo limpia a su manera.
// El instante exacto de expiración todavía es válido.
func (e *OTPEngine) Verify(acc domain.Account, supplied string) error {
	if !acc.HasPendingOTP() {
		return ErrInvalidOrExpiredOTP
	}
	if e.now().After(*acc.OtpExpiresAt) {
		return ErrInvalidOrExpiredOTP
	}
	if subtle.ConstantTimeCompare([]byte(*acc.OtpCode), []byte(supplied)) != 1 {
		return ErrInvalidOrExpiredOTP
	}
	return nil
}

func (e *OTPEngine) generateCode() (string, error) {
	if e.testMode {
		return testModeOTP, nil
	}
	n, err := rand.Int(e.random, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
