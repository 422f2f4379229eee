package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cipe-auth/internal/metrics"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	m *metrics.Metrics,
	authH *AuthHandler,
	healthH *HealthHandler,
	verifier TokenVerifier,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery, métricas y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	if m != nil {
		r.Use(metricsMiddleware(m))
	}
	r.Use(jsonContentTypeMiddleware())

	requireAuth := JWTAuthMiddleware(verifier)

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/verify-otp", authH.VerifyOTP)
	auth.POST("/forgot-password", authH.ForgotPassword)
	auth.POST("/reset-password", authH.ResetPassword)
	auth.POST("/logout", requireAuth, authH.Logout)

	r.POST("/refresh", authH.Refresh)
	r.GET("/users/me", requireAuth, authH.Me)
	r.PUT("/users/me", requireAuth, authH.UpdateProfile)

	r.GET("/healthz", healthH.Healthz)
	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware usa la ruta registrada como etiqueta para acotar la cardinalidad.
func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
