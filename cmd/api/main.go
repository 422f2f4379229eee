package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cipe-auth/internal/config"
	"cipe-auth/internal/db"
	"cipe-auth/internal/email"
	apihttp "cipe-auth/internal/http"
	"cipe-auth/internal/metrics"
	"cipe-auth/internal/repository"
	"cipe-auth/internal/service"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	if n, err := config.LoadSecrets(ctx); err != nil {
		log.Fatalf("load secrets: %v", err)
	} else if n > 0 {
		log.Printf("loaded %d values from secrets manager", n)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	m := metrics.New()

	sender, closeSender, err := newSender(cfg, logger)
	if err != nil {
		logger.Fatal("email sender init", zap.Error(err))
	}
	defer closeSender()

	templates, err := email.LoadTemplates()
	if err != nil {
		logger.Fatal("email templates", zap.Error(err))
	}
	dispatcher := email.NewDispatcher(logger, sender, m, email.DispatcherConfig{
		QueueSize: cfg.MailQueueSize,
		Workers:   cfg.MailWorkers,
	})

	var otpLimiter service.OTPRateLimiter
	if cfg.OTPRateLimitMax > 0 {
		otpLimiter = newOTPLimiter(ctx, cfg, logger)
	}

	store := repository.NewPgStore(pool, pool)
	otpEngine := service.NewOTPEngine(logger, service.OTPConfig{
		TTL:      cfg.OTPTTL,
		TestMode: cfg.OTPTestMode,
	}, email.NewOTPNotifier(templates, dispatcher), otpLimiter)

	sessions := service.NewSessionService(
		logger,
		store,
		service.NewBcryptHasher(0),
		otpEngine,
		service.NewRefreshCredentials(cfg.RefreshTokenTTL),
		service.NewAccessTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL),
		m,
	)

	if err := apihttp.RegisterValidators(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}
	authHandler := apihttp.NewAuthHandler(logger, sessions, apihttp.CookieConfig{
		Secure:             cfg.CookieSecure,
		SameSite:           apihttp.ParseSameSite(cfg.CookieSameSite),
		Path:               cfg.CookiePath,
		StaySignedInMaxAge: cfg.StaySignedInMaxAge,
	})
	healthHandler := apihttp.NewHealthHandler(logger, pool)
	router := apihttp.NewRouter(logger, m, authHandler, healthHandler, sessions)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("email queue not drained", zap.Error(err))
	}
}

// newSender elige el transporte de correo según MAIL_TRANSPORT.
func newSender(cfg *config.Config, logger *zap.Logger) (email.Sender, func(), error) {
	noop := func() {}
	switch cfg.MailTransport {
	case "smtp":
		s, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "amqp":
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, noop, err
		}
		s, ch, err := email.NewAMQPSender(conn, cfg.AMQPQueue)
		if err != nil {
			_ = conn.Close()
			return nil, noop, err
		}
		return s, func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	default:
		if cfg.MailTransport != "log" {
			logger.Warn("unknown mail transport, using log", zap.String("transport", cfg.MailTransport))
		}
		return email.NewLogSender(logger), noop, nil
	}
}

// newOTPLimiter usa Redis si está configurado y responde; si no, memoria local.
func newOTPLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) service.OTPRateLimiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := client.Ping(ctxPing).Err()
		if err == nil {
			return service.NewRedisOTPRateLimiter(client, logger, cfg.OTPRateLimitWindow, cfg.OTPRateLimitMax)
		}
		logger.Warn("redis ping failed, using in-memory otp limiter", zap.Error(err))
		_ = client.Close()
	}
	return service.NewMemoryOTPRateLimiter(cfg.OTPRateLimitWindow, cfg.OTPRateLimitMax)
}
