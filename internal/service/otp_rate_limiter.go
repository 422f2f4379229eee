package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// OTPRateLimiter limita la emisión de OTP por clave (email normalizado).
type OTPRateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type memoryOTPRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	swept  time.Time
	now    func() time.Time
}

// NewMemoryOTPRateLimiter crea un limitador de ventana deslizante en memoria.
func NewMemoryOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryOTPRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryOTPRateLimiter) Allow(_ context.Context, key string) bool {
	key = normalizeEmail(key)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.swept) >= l.window {
		l.sweep(cutoff)
		l.swept = now
	}
	kept := pruneHits(l.hits[key], cutoff)
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep borra las claves sin hits dentro de la ventana.
func (l *memoryOTPRateLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if kept := pruneHits(entries, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

func pruneHits(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
