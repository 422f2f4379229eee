package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cipe-auth/internal/domain"
)

func newTestIssuer(now *time.Time) *AccessTokenIssuer {
	issuer := NewAccessTokenIssuer("secret", "self", 15*time.Minute)
	issuer.now = func() time.Time { return *now }
	return issuer
}

func TestAccessTokenIssuer_MintVerify(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(&now)

	token, err := issuer.Mint("acc-1", domain.RoleEditor)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if token.Token == "" || token.TokenType != "Bearer" || token.ExpiresIn != 900 {
		t.Fatalf("unexpected token: %+v", token)
	}
	if !token.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", token.ExpiresAt)
	}

	claims, err := issuer.Verify(token.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acc-1" || claims.Role != domain.RoleEditor {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Fatalf("unexpected iat %v", claims.IssuedAt)
	}
}

func TestAccessTokenIssuer_Expired(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(&now)

	token, err := issuer.Mint("acc-1", domain.RoleChild)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	now = now.Add(14 * time.Minute)
	if _, err := issuer.Verify(token.Token); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := issuer.Verify(token.Token); !errors.Is(err, ErrAccessTokenExpired) {
		t.Fatalf("expected ErrAccessTokenExpired, got %v", err)
	}
}

func TestAccessTokenIssuer_RejectsEmptySecret(t *testing.T) {
	issuer := NewAccessTokenIssuer("", "self", time.Minute)
	if _, err := issuer.Mint("acc-1", domain.RoleChild); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid on empty secret, got %v", err)
	}
	if _, err := issuer.Verify("anything"); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid on empty secret, got %v", err)
	}
}

func TestAccessTokenIssuer_RejectsForeignSignature(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	other := NewAccessTokenIssuer("other-secret", "self", time.Minute)
	other.now = func() time.Time { return now }
	token, err := other.Mint("acc-1", domain.RoleChild)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	issuer := newTestIssuer(&now)
	if _, err := issuer.Verify(token.Token); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for foreign signature, got %v", err)
	}
	if _, err := issuer.Verify(token.Token + "x"); !errors.Is(err, ErrAccessTokenInvalid) {
		t.Fatalf("expected ErrAccessTokenInvalid for tampered token, got %v", err)
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAccessTokenIssuer_RejectsBadClaims(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(&now)
	valid := jwt.RegisteredClaims{
		Issuer:    "self",
		Subject:   "acc-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}

	cases := map[string]string{}

	wrongIssuer := valid
	wrongIssuer.Issuer = "other-issuer"
	cases["wrong issuer"] = signClaims(t, jwt.SigningMethodHS256, []byte("secret"), accessTokenClaims{Scope: "ENFANT", RegisteredClaims: wrongIssuer})

	noSubject := valid
	noSubject.Subject = ""
	cases["missing subject"] = signClaims(t, jwt.SigningMethodHS256, []byte("secret"), accessTokenClaims{Scope: "ENFANT", RegisteredClaims: noSubject})

	noExpiry := valid
	noExpiry.ExpiresAt = nil
	cases["missing expiry"] = signClaims(t, jwt.SigningMethodHS256, []byte("secret"), accessTokenClaims{Scope: "ENFANT", RegisteredClaims: noExpiry})

	cases["unknown scope"] = signClaims(t, jwt.SigningMethodHS256, []byte("secret"), accessTokenClaims{Scope: "ROOT", RegisteredClaims: valid})
	cases["other hmac alg"] = signClaims(t, jwt.SigningMethodHS512, []byte("secret"), accessTokenClaims{Scope: "ENFANT", RegisteredClaims: valid})
	cases["alg none"] = signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, accessTokenClaims{Scope: "ENFANT", RegisteredClaims: valid})
	cases["malformed"] = "not.a.jwt"

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Verify(token); !errors.Is(err, ErrAccessTokenInvalid) {
				t.Fatalf("expected ErrAccessTokenInvalid, got %v", err)
			}
		})
	}
}
