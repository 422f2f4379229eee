package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/auth")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "self", cfg.JWTIssuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 24*time.Hour, cfg.RefreshTokenTTL)
	require.Equal(t, 5*time.Minute, cfg.OTPTTL)
	require.Equal(t, 30*24*time.Hour, cfg.StaySignedInMaxAge)
	require.Equal(t, "/refresh", cfg.CookiePath)
	require.True(t, cfg.CookieSecure)
	require.False(t, cfg.OTPTestMode)
	require.Zero(t, cfg.OTPRateLimitMax)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("JWT_SECRET")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/auth")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("OTP_TEST_MODE", "true")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("COOKIE_SAME_SITE", "Lax")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.OTPTestMode)
	require.Equal(t, 90*time.Second, cfg.OTPTTL)
	require.Equal(t, "Lax", cfg.CookieSameSite)
}

type fakeSecretGetter struct {
	out *secretsmanager.GetSecretValueOutput
	err error
}

func (f *fakeSecretGetter) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.out, f.err
}

func TestApplySecret_RespectsExistingValues(t *testing.T) {
	payload := `{"AUTH_TEST_SECRET_A":"from-secret","AUTH_TEST_SECRET_B":"b"}`
	getter := &fakeSecretGetter{out: &secretsmanager.GetSecretValueOutput{SecretString: &payload}}
	t.Setenv("AUTH_TEST_SECRET_A", "local")
	t.Setenv("AUTH_TEST_SECRET_B", "")

	n, err := applySecret(context.Background(), getter, "id", false)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "local", os.Getenv("AUTH_TEST_SECRET_A"))
	require.Equal(t, "b", os.Getenv("AUTH_TEST_SECRET_B"))
}

func TestApplySecret_Overwrite(t *testing.T) {
	payload := `{"AUTH_TEST_SECRET_A":"from-secret"}`
	getter := &fakeSecretGetter{out: &secretsmanager.GetSecretValueOutput{SecretString: &payload}}
	t.Setenv("AUTH_TEST_SECRET_A", "local")

	n, err := applySecret(context.Background(), getter, "id", true)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "from-secret", os.Getenv("AUTH_TEST_SECRET_A"))
}

func TestApplySecret_Errors(t *testing.T) {
	_, err := applySecret(context.Background(), &fakeSecretGetter{err: errors.New("denied")}, "id", false)
	require.ErrorContains(t, err, "denied")

	_, err = applySecret(context.Background(), &fakeSecretGetter{out: &secretsmanager.GetSecretValueOutput{}}, "id", false)
	require.Error(t, err)

	bad := "not-json"
	_, err = applySecret(context.Background(), &fakeSecretGetter{out: &secretsmanager.GetSecretValueOutput{SecretString: &bad}}, "id", false)
	require.ErrorContains(t, err, "JSON")
}

func TestLoadSecrets_NoSecretID(t *testing.T) {
	t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "")
	n, err := LoadSecrets(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}
