// Package ratelimit throttles abuse-prone operations such as reset requests.
package ratelimit

import (
	"context"
	"time"

	domainerrors "reviewhub/internal/domain/errors"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rhrl:"

// redisLimiter is a fixed-window counter shared by every replica.
type redisLimiter struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
}

// NewRedisLimiter allows maxAttempts per key within each window.
func NewRedisLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) service.RateLimiter {
	return &redisLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) error {
	key = keyPrefix + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "increment rate limit counter")
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return errors.Wrap(err, "set rate limit window")
		}
	}

	if count > int64(l.maxAttempts) {
		return domainerrors.ErrTooManyRequests
	}

	return nil
}
