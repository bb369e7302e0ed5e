package ratelimit

import (
	"context"
	"sync"
	"time"

	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/service"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// memoryLimiter keeps one token bucket per key in process memory. A key may
// burst maxAttempts times and then regains one attempt every window/maxAttempts.
type memoryLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewMemoryLimiter is the single-instance fallback used when Redis is not configured.
func NewMemoryLimiter(maxAttempts int, window time.Duration) service.RateLimiter {
	return newMemoryLimiter(maxAttempts, window, time.Now)
}

func newMemoryLimiter(maxAttempts int, window time.Duration, now func() time.Time) *memoryLimiter {
	return &memoryLimiter{
		buckets:     make(map[string]*bucket),
		maxAttempts: maxAttempts,
		window:      window,
		now:         now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	b, ok := l.buckets[key]
	if !ok {
		every := rate.Every(l.window / time.Duration(max(l.maxAttempts, 1)))
		b = &bucket{limiter: rate.NewLimiter(every, l.maxAttempts)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return domainerrors.ErrTooManyRequests
	}

	return nil
}

// prune drops buckets idle for a full window; they would be full again anyway.
func (l *memoryLimiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.window {
			delete(l.buckets, key)
		}
	}
}
