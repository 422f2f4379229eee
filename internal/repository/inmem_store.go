package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cipe-auth/internal/domain"
)

type inmemState struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts map[string]domain.Account
	byEmail  map[string]string
	creds    map[string]domain.RefreshCredential
}

// InMemoryStore implementa Store en memoria con la misma semántica de
// unicidad que el esquema SQL. Las transacciones se serializan y se
// revierten restaurando una copia del estado.
type InMemoryStore struct {
	st   *inmemState
	inTx bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{st: &inmemState{
		accounts: make(map[string]domain.Account),
		byEmail:  make(map[string]string),
		creds:    make(map[string]domain.RefreshCredential),
	}}
}

func (s *InMemoryStore) Accounts() AccountRepository {
	return &inmemAccounts{st: s.st}
}

func (s *InMemoryStore) RefreshCredentials() RefreshCredentialRepository {
	return &inmemCredentials{st: s.st}
}

func (s *InMemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) (err error) {
	if s.inTx {
		return fn(ctx, s)
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	snap := s.st.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.st.restore(snap)
			panic(p)
		}
		if err != nil {
			s.st.restore(snap)
		}
	}()
	return fn(ctx, &InMemoryStore{st: s.st, inTx: true})
}

type inmemSnapshot struct {
	accounts map[string]domain.Account
	byEmail  map[string]string
	creds    map[string]domain.RefreshCredential
}

func (st *inmemState) snapshot() inmemSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := inmemSnapshot{
		accounts: make(map[string]domain.Account, len(st.accounts)),
		byEmail:  make(map[string]string, len(st.byEmail)),
		creds:    make(map[string]domain.RefreshCredential, len(st.creds)),
	}
	for k, v := range st.accounts {
		snap.accounts[k] = v
	}
	for k, v := range st.byEmail {
		snap.byEmail[k] = v
	}
	for k, v := range st.creds {
		snap.creds[k] = v
	}
	return snap
}

func (st *inmemState) restore(snap inmemSnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.accounts = snap.accounts
	st.byEmail = snap.byEmail
	st.creds = snap.creds
}

type inmemAccounts struct {
	st *inmemState
}

func (r *inmemAccounts) Create(_ context.Context, a domain.Account) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.accounts[a.ID]; ok {
		return fmt.Errorf("%w: accounts_pkey", ErrConflict)
	}
	key := emailKey(a.Email)
	if _, ok := r.st.byEmail[key]; ok {
		return fmt.Errorf("%w: accounts_email_lower_uq", ErrConflict)
	}
	r.st.accounts[a.ID] = cloneAccount(a)
	r.st.byEmail[key] = a.ID
	return nil
}

func (r *inmemAccounts) GetByID(_ context.Context, id string) (domain.Account, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	a, ok := r.st.accounts[id]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (r *inmemAccounts) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	id, ok := r.st.byEmail[emailKey(email)]
	if !ok {
		return domain.Account{}, ErrNotFound
	}
	return cloneAccount(r.st.accounts[id]), nil
}

// GetByEmailForUpdate no necesita lock propio: WithTx ya serializa.
func (r *inmemAccounts) GetByEmailForUpdate(ctx context.Context, email string) (domain.Account, error) {
	return r.GetByEmail(ctx, email)
}

func (r *inmemAccounts) UpdateOTP(_ context.Context, id string, code string, expiresAt time.Time) error {
	return r.update(id, func(a *domain.Account) error {
		a.OtpCode = &code
		a.OtpExpiresAt = &expiresAt
		return nil
	})
}

func (r *inmemAccounts) MarkLoggedIn(_ context.Context, id string, code string, at time.Time) error {
	return r.update(id, func(a *domain.Account) error {
		if !otpMatches(*a, code) {
			return ErrNotFound
		}
		a.ClearOTP()
		a.LastLoginAt = &at
		return nil
	})
}

func (r *inmemAccounts) ResetPassword(_ context.Context, id string, code string, passwordHash string) error {
	return r.update(id, func(a *domain.Account) error {
		if !otpMatches(*a, code) {
			return ErrNotFound
		}
		a.PasswordHash = passwordHash
		a.ClearOTP()
		return nil
	})
}

func (r *inmemAccounts) UpdateProfile(_ context.Context, id string, displayName, email, passwordHash string) error {
	return r.update(id, func(a *domain.Account) error {
		oldKey, newKey := emailKey(a.Email), emailKey(email)
		if owner, ok := r.st.byEmail[newKey]; ok && owner != id {
			return fmt.Errorf("%w: accounts_email_lower_uq", ErrConflict)
		}
		delete(r.st.byEmail, oldKey)
		r.st.byEmail[newKey] = id
		a.DisplayName = displayName
		a.Email = email
		a.PasswordHash = passwordHash
		return nil
	})
}

func (r *inmemAccounts) update(id string, fn func(a *domain.Account) error) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	a, ok := r.st.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&a); err != nil {
		return err
	}
	r.st.accounts[id] = cloneAccount(a)
	return nil
}

func otpMatches(a domain.Account, code string) bool {
	return a.OtpCode != nil && *a.OtpCode == code
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

type inmemCredentials struct {
	st *inmemState
}

func (r *inmemCredentials) Replace(_ context.Context, cred domain.RefreshCredential) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.accounts[cred.AccountID]; !ok {
		return ErrNotFound
	}
	for id, c := range r.st.creds {
		if c.AccountID == cred.AccountID {
			delete(r.st.creds, id)
		}
	}
	for _, c := range r.st.creds {
		if c.TokenHash == cred.TokenHash {
			return fmt.Errorf("%w: refresh_credentials_token_hash_key", ErrConflict)
		}
	}
	r.st.creds[cred.ID] = cred
	return nil
}

func (r *inmemCredentials) GetByTokenHash(_ context.Context, tokenHash string) (domain.RefreshCredential, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, c := range r.st.creds {
		if c.TokenHash == tokenHash {
			return c, nil
		}
	}
	return domain.RefreshCredential{}, ErrNotFound
}

func (r *inmemCredentials) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, c := range r.st.creds {
		if c.AccountID == accountID {
			delete(r.st.creds, id)
			n++
		}
	}
	return n, nil
}

// CountLive cuenta las credenciales usables de la cuenta; lo usan los tests
// para comprobar que nunca hay más de una viva.
func (s *InMemoryStore) CountLive(accountID string, now time.Time) int {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	n := 0
	for _, c := range s.st.creds {
		if c.AccountID == accountID && c.Usable(now) {
			n++
		}
	}
	return n
}

// cloneAccount evita compartir los punteros del OTP con el llamador.
func cloneAccount(a domain.Account) domain.Account {
	if a.OtpCode != nil {
		code := *a.OtpCode
		a.OtpCode = &code
	}
	if a.OtpExpiresAt != nil {
		exp := *a.OtpExpiresAt
		a.OtpExpiresAt = &exp
	}
	if a.LastLoginAt != nil {
		at := *a.LastLoginAt
		a.LastLoginAt = &at
	}
	return a
}
