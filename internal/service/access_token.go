package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cipe-auth/internal/domain"
)

const defaultAccessTokenTTL = 15 * time.Minute

// AccessToken es el valor bearer que se entrega al cliente; nunca se persiste.
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"-"`
}

type accessTokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AccessTokenIssuer firma y valida tokens HS256 con una clave de proceso.
type AccessTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAccessTokenIssuer(secret, issuer string, ttl time.Duration) *AccessTokenIssuer {
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "self"
	}
	return &AccessTokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (i *AccessTokenIssuer) Mint(accountID string, role domain.Role) (AccessToken, error) {
	if len(i.secret) == 0 || strings.TrimSpace(accountID) == "" {
		return AccessToken{}, ErrAccessTokenInvalid
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := accessTokenClaims{
		Scope: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresIn: int64(i.ttl.Seconds()),
		ExpiresAt: exp,
	}, nil
}

// Verify falla cerrado ante firma, algoritmo, emisor, expiración o claims inválidos.
func (i *AccessTokenIssuer) Verify(token string) (domain.AccessClaims, error) {
	if len(i.secret) == 0 || strings.TrimSpace(token) == "" {
		return domain.AccessClaims{}, ErrAccessTokenInvalid
	}
	var claims accessTokenClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.AccessClaims{}, ErrAccessTokenExpired
		}
		return domain.AccessClaims{}, ErrAccessTokenInvalid
	}

	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return domain.AccessClaims{}, ErrAccessTokenInvalid
	}
	role, ok := domain.ParseRole(claims.Scope)
	if !ok {
		return domain.AccessClaims{}, ErrAccessTokenInvalid
	}
	return domain.AccessClaims{
		Subject:   claims.Subject,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
