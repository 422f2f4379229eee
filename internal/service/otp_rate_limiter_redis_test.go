package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type mockRedisEvaler struct {
	lastScript string
	lastKeys   []string
	lastArgs   []interface{}
	result     int64
	err        error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastScript = script
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(m.result)
	return cmd
}

func newTestRedisLimiter(client redisEvaler, window time.Duration, max int) *redisOTPRateLimiter {
	return &redisOTPRateLimiter{
		client: client,
		logger: zap.NewNop(),
		window: window,
		max:    max,
		prefix: "auth:otp:rl:",
	}
}

func TestRedisOTPRateLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisOTPRateLimiter
		if !l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("nil client returns nil limiter", func(t *testing.T) {
		if l := NewRedisOTPRateLimiter(nil, nil, time.Minute, 3); l != nil {
			t.Fatalf("expected nil limiter without client")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := newTestRedisLimiter(&mockRedisEvaler{result: 1}, time.Minute, 3)
		if l.Allow(ctx, "   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("allow when count within max", func(t *testing.T) {
		mock := &mockRedisEvaler{result: 2}
		l := newTestRedisLimiter(mock, 2*time.Minute, 3)
		if !l.Allow(ctx, " User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "auth:otp:rl:user@example.com" {
			t.Fatalf("unexpected key normalization, got %+v", mock.lastKeys)
		}
		if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 120 {
			t.Fatalf("expected TTL seconds=120, got %+v", mock.lastArgs)
		}
		if mock.lastScript != redisOTPAllowScript {
			t.Fatalf("expected script to match")
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := newTestRedisLimiter(&mockRedisEvaler{result: 4}, time.Minute, 3)
		if l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := newTestRedisLimiter(&mockRedisEvaler{err: errors.New("redis down")}, time.Minute, 3)
		if !l.Allow(ctx, "user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestMemoryOTPRateLimiterWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryOTPRateLimiter(time.Minute, 2).(*memoryOTPRateLimiter)
	l.now = func() time.Time { return now }

	if !l.Allow(ctx, "a@example.com") || !l.Allow(ctx, "A@example.com ") {
		t.Fatalf("expected first two hits to pass")
	}
	if l.Allow(ctx, "a@example.com") {
		t.Fatalf("expected third hit inside window to be denied")
	}
	if !l.Allow(ctx, "b@example.com") {
		t.Fatalf("expected other keys to be independent")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow(ctx, "a@example.com") {
		t.Fatalf("expected hit after window to pass")
	}
	if l.Allow(ctx, "") {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestMemoryOTPRateLimiterForgetsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryOTPRateLimiter(time.Minute, 2).(*memoryOTPRateLimiter)
	l.now = func() time.Time { return now }

	for _, key := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if !l.Allow(ctx, key) {
			t.Fatalf("expected %s to pass", key)
		}
	}

	now = now.Add(2 * time.Minute)
	if !l.Allow(ctx, "d@example.com") {
		t.Fatalf("expected d@example.com to pass")
	}
	if len(l.hits) != 1 {
		t.Fatalf("expected idle keys to be dropped, got %d keys", len(l.hits))
	}
	if _, ok := l.hits["d@example.com"]; !ok {
		t.Fatalf("expected active key to be kept")
	}
}
