package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cipe-auth/internal/db"
	"cipe-auth/internal/domain"
)

// Requiere TEST_DATABASE_URL apuntando a una base descartable.
func newTestPgStore(t *testing.T) *PgStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE refresh_credentials, accounts`)
	require.NoError(t, err)
	return NewPgStore(pool, pool)
}

func TestPgStoreAccountLifecycle(t *testing.T) {
	s := newTestPgStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	acc := newAccount(uuid.NewString(), "ana@example.com")
	acc.CreatedAt = now
	require.NoError(t, s.Accounts().Create(ctx, acc))

	dup := newAccount(uuid.NewString(), "ana@example.com")
	require.ErrorIs(t, s.Accounts().Create(ctx, dup), ErrConflict)

	exp := now.Add(5 * time.Minute)
	require.NoError(t, s.Accounts().UpdateOTP(ctx, acc.ID, "123456", exp))

	got, err := s.Accounts().GetByEmail(ctx, "Ana@Example.com")
	require.NoError(t, err)
	require.True(t, got.HasPendingOTP())
	assert.Equal(t, domain.RoleChild, got.Role)

	require.ErrorIs(t, s.Accounts().MarkLoggedIn(ctx, acc.ID, "000000", now), ErrNotFound)
	require.NoError(t, s.Accounts().MarkLoggedIn(ctx, acc.ID, "123456", now))
	got, err = s.Accounts().GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.HasPendingOTP())
	require.NotNil(t, got.LastLoginAt)

	require.NoError(t, s.Accounts().UpdateOTP(ctx, acc.ID, "654321", exp))
	require.NoError(t, s.Accounts().ResetPassword(ctx, acc.ID, "654321", "new-hash"))
	require.ErrorIs(t, s.Accounts().ResetPassword(ctx, acc.ID, "654321", "again"), ErrNotFound)

	other := newAccount(uuid.NewString(), "eva@example.com")
	require.NoError(t, s.Accounts().Create(ctx, other))
	require.ErrorIs(t, s.Accounts().UpdateProfile(ctx, acc.ID, "Ana", "eva@example.com", "new-hash"), ErrConflict)
	require.NoError(t, s.Accounts().UpdateProfile(ctx, acc.ID, "Ana Maria", "ana.maria@example.com", "new-hash"))
	got, err = s.Accounts().GetByEmail(ctx, "ana.maria@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.DisplayName)
	assert.Equal(t, "new-hash", got.PasswordHash)

	require.ErrorIs(t, s.Accounts().ResetPassword(ctx, uuid.NewString(), "654321", "x"), ErrNotFound)
}

// Dos transacciones que intentan consumir el mismo código: el lock de fila
// hace que la segunda lea el OTP ya limpiado.
func TestPgStoreConcurrentOTPConsumeWinsOnce(t *testing.T) {
	s := newTestPgStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	acc := newAccount(uuid.NewString(), "carla@example.com")
	require.NoError(t, s.Accounts().Create(ctx, acc))
	require.NoError(t, s.Accounts().UpdateOTP(ctx, acc.ID, "000000", now.Add(5*time.Minute)))

	errConsumed := errors.New("otp already consumed")
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.WithTx(ctx, func(ctx context.Context, tx Store) error {
				got, err := tx.Accounts().GetByEmailForUpdate(ctx, "carla@example.com")
				if err != nil {
					return err
				}
				if !got.HasPendingOTP() || *got.OtpCode != "000000" {
					return errConsumed
				}
				return tx.Accounts().MarkLoggedIn(ctx, got.ID, "000000", now)
			})
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, errConsumed) || errors.Is(err, ErrNotFound), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)
}

func countLive(t *testing.T, s *PgStore, accountID string, now time.Time) int {
	t.Helper()
	const query = `
		SELECT count(*)
		FROM refresh_credentials
		WHERE account_id = $1 AND NOT revoked AND expires_at >= $2
	`
	var n int
	require.NoError(t, s.conn.QueryRow(context.Background(), query, accountID, now).Scan(&n))
	return n
}

func TestPgStoreConcurrentReplaceKeepsOneLive(t *testing.T) {
	s := newTestPgStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	acc := newAccount(uuid.NewString(), "bob@example.com")
	require.NoError(t, s.Accounts().Create(ctx, acc))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred := domain.RefreshCredential{
				ID:        uuid.NewString(),
				AccountID: acc.ID,
				TokenHash: uuid.NewString(),
				ExpiresAt: now.Add(time.Hour),
				CreatedAt: now,
			}
			err := s.WithTx(ctx, func(ctx context.Context, tx Store) error {
				return tx.RefreshCredentials().Replace(ctx, cred)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, countLive(t, s, acc.ID, now))

	deleted, err := s.RefreshCredentials().DeleteByAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
