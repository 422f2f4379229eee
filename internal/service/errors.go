package service

import "errors"

var (
	ErrInvalidCredentials           = errors.New("invalid credentials")
	ErrEmailAlreadyExists           = errors.New("email already exists")
	ErrInvalidOrExpiredOTP          = errors.New("invalid or expired otp")
	ErrRefreshTokenNotFound         = errors.New("refresh token not found")
	ErrRefreshTokenRevokedOrExpired = errors.New("refresh token revoked or expired")
	ErrAccountNotFound              = errors.New("account not found")
	ErrRoleNotAllowed               = errors.New("role not allowed")
	ErrInvalidEmail                 = errors.New("invalid email")
	ErrRateLimited                  = errors.New("rate limited")
	ErrPasswordTooLong              = errors.New("password too long")
	ErrCurrentPasswordMismatch      = errors.New("current password mismatch")

	ErrAccessTokenInvalid = errors.New("access token invalid")
	ErrAccessTokenExpired = errors.New("access token expired")
)
