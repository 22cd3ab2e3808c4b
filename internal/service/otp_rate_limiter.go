package service

import (
	"context"
	"sync"
	"time"
)

// OTPRateLimiter limita la frecuencia de solicitudes de OTP por clave.
type OTPRateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type otpRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewOTPRateLimiter crea un rate limiter en memoria.
func NewOTPRateLimiter(window time.Duration, max int) OTPRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &otpRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *otpRateLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)

	// Las claves vienen del cliente: una vez por ventana se descartan las inactivas.
	if now.Sub(l.lastSweep) > l.window {
		for k, entries := range l.hits {
			if kept := pruneBefore(entries, cutoff); len(kept) == 0 {
				delete(l.hits, k)
			} else {
				l.hits[k] = kept
			}
		}
		l.lastSweep = now
	}

	kept := pruneBefore(l.hits[key], cutoff)
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

func (l *otpRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
