package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cipe-auth/internal/domain"
)

const authClaimsKey = "auth_claims"

// TokenVerifier valida access tokens; lo implementa service.SessionService.
type TokenVerifier interface {
	VerifyAccessToken(token string) (domain.AccessClaims, error)
}

// JWTAuthMiddleware valida el bearer token y guarda los claims en el contexto.
func JWTAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene la identidad verificada del contexto.
func GetAuthClaims(c *gin.Context) (domain.AccessClaims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return domain.AccessClaims{}, false
	}
	claims, ok := val.(domain.AccessClaims)
	return claims, ok
}
