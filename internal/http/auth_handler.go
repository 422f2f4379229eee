package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cipe-auth/internal/domain"
	"cipe-auth/internal/service"
)

// AuthHandler expone los flujos de sesión sobre HTTP.
type AuthHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
	cookies  CookieConfig
}

func NewAuthHandler(logger *zap.Logger, sessions *service.SessionService, cookies CookieConfig) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		logger:   logger,
		sessions: sessions,
		cookies:  cookies,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,password"`
		Name     string `json:"name" binding:"required,name"`
		Role     string `json:"role" binding:"required,role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	role, _ := domain.ParseRole(req.Role)

	view, err := h.sessions.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
	})
	if err != nil {
		h.writeError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": view})
}

// Login maneja POST /auth/login. Solo emite el OTP.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.sessions.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		h.writeError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "otp_sent"})
}

// VerifyOTP maneja POST /auth/verify-otp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email        string `json:"email" binding:"required,email"`
		Code         string `json:"code" binding:"required,len=6,numeric"`
		StaySignedIn bool   `json:"stay_signed_in"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	grant, err := h.sessions.VerifyOTP(c.Request.Context(), req.Email, req.Code, req.StaySignedIn)
	if err != nil {
		h.writeError(c, "verify otp", err)
		return
	}

	http.SetCookie(c.Writer, h.cookies.refreshCookie(grant.RefreshToken, grant.StaySignedIn))
	c.JSON(http.StatusOK, gin.H{
		"access_token": grant.AccessToken.Token,
		"token_type":   grant.AccessToken.TokenType,
		"expires_in":   grant.AccessToken.ExpiresIn,
		"user":         grant.Account,
	})
}

// Refresh maneja POST /refresh con la cookie de refresco.
func (h *AuthHandler) Refresh(c *gin.Context) {
	value, err := c.Cookie(refreshCookieName)
	if err != nil || value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	token, err := h.sessions.Refresh(c.Request.Context(), value)
	if err != nil {
		h.writeError(c, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// ForgotPassword maneja POST /auth/forgot-password; la respuesta nunca revela si el email existe.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.sessions.InitiatePasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.Error("forgot password failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "if an account exists for this email, a code has been sent"})
}

// ResetPassword maneja POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Code        string `json:"code" binding:"required,len=6,numeric"`
		NewPassword string `json:"new_password" binding:"required,password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.sessions.ResetPassword(c.Request.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.writeError(c, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

// Logout maneja POST /auth/logout; requiere JWTAuthMiddleware.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.sessions.Logout(c.Request.Context(), claims.Subject); err != nil {
		h.writeError(c, "logout", err)
		return
	}
	http.SetCookie(c.Writer, h.cookies.expiredRefreshCookie())
	c.Status(http.StatusNoContent)
}

// Me maneja GET /users/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	view, err := h.sessions.CurrentAccount(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		h.writeError(c, "current account", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": view})
}

// UpdateProfile maneja PUT /users/me. Cambiar la contraseña exige current_password.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		Name            string `json:"name" binding:"required,name"`
		Email           string `json:"email" binding:"required,email"`
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password" binding:"omitempty,password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	view, err := h.sessions.UpdateProfile(c.Request.Context(), claims.Subject, service.UpdateProfileInput{
		Name:            req.Name,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.writeError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": view})
}

func (h *AuthHandler) writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, service.ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
	case errors.Is(err, service.ErrInvalidOrExpiredOTP):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired otp"})
	case errors.Is(err, service.ErrRefreshTokenNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token not found"})
	case errors.Is(err, service.ErrRefreshTokenRevokedOrExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token revoked or expired"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	case errors.Is(err, service.ErrCurrentPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
	case errors.Is(err, service.ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too long"})
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrRoleNotAllowed),
		errors.Is(err, service.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
