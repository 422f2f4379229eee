package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisOTPAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

const redisOTPTimeout = 500 * time.Millisecond

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisOTPRateLimiter comparte el conteo entre réplicas; ventana fija por clave.
type redisOTPRateLimiter struct {
	client redisEvaler
	logger *zap.Logger
	window time.Duration
	max    int
	prefix string
}

func NewRedisOTPRateLimiter(client *redis.Client, logger *zap.Logger, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisOTPRateLimiter{
		client: client,
		logger: logger,
		window: window,
		max:    max,
		prefix: "auth:otp:rl:",
	}
}

// Allow deja pasar si Redis no responde.
func (l *redisOTPRateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := normalizeEmail(key)
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, redisOTPTimeout)
	defer cancel()

	seconds := int(l.window.Seconds())
	if seconds <= 0 {
		seconds = 60
	}
	count, err := l.client.Eval(ctx, redisOTPAllowScript, []string{l.prefix + normalizedKey}, seconds).Int()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("otp rate limiter unavailable", zap.Error(err))
		}
		return true
	}
	return count <= l.max
}
