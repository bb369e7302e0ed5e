package service

import "context"

// RateLimiter counts attempts per key within a window.
type RateLimiter interface {
	// Allow records an attempt for key and fails with ErrTooManyRequests once the limit is exceeded.
	Allow(ctx context.Context, key string) error
}
