package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	JWTSecret      string        `env:"JWT_SECRET,required"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"self"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`

	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite     string        `env:"COOKIE_SAME_SITE" envDefault:"Strict"`
	CookiePath         string        `env:"COOKIE_PATH" envDefault:"/refresh"`
	StaySignedInMaxAge time.Duration `env:"STAY_SIGNED_IN_MAX_AGE" envDefault:"720h"`

	OTPTTL             time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPTestMode        bool          `env:"OTP_TEST_MODE" envDefault:"false"`
	OTPRateLimitMax    int           `env:"OTP_RATE_LIMIT_MAX" envDefault:"0"`
	OTPRateLimitWindow time.Duration `env:"OTP_RATE_LIMIT_WINDOW" envDefault:"10m"`

	MailTransport string `env:"MAIL_TRANSPORT" envDefault:"log"`
	MailQueueSize int    `env:"MAIL_QUEUE_SIZE" envDefault:"256"`
	MailWorkers   int    `env:"MAIL_WORKERS" envDefault:"2"`
	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPass      string `env:"SMTP_PASS"`
	SMTPFrom      string `env:"SMTP_FROM"`
	SMTPFromName  string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS    bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	AMQPURL       string `env:"AMQP_URL"`
	AMQPQueue     string `env:"AMQP_QUEUE" envDefault:"auth.notifications"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MailerConfig es el subconjunto que necesita el worker de correo.
type MailerConfig struct {
	AMQPURL      string `env:"AMQP_URL,required"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"auth.notifications"`
	SMTPHost     string `env:"SMTP_HOST,required"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM,required"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

// LoadMailerConfig carga la configuración del worker de correo.
func LoadMailerConfig() (*MailerConfig, error) {
	var cfg MailerConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
