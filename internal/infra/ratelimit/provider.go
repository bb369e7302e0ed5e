package ratelimit

import (
	"context"
	"log/slog"

	"reviewhub/config"
	"reviewhub/internal/domain/lifecycle"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params holds dependencies for NewRateLimiter, injected by Fx.
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewRateLimiter uses Redis when configured so limits hold across replicas.
func NewRateLimiter(params Params) service.RateLimiter {
	limits := params.Config.PasswordReset.RateLimit
	redisCfg := params.Config.Redis

	if redisCfg == nil || redisCfg.Addr == "" {
		params.Logger.Info("Redis not configured, using in-process rate limiter")

		return NewMemoryLimiter(limits.MaxAttempts, limits.Window)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	params.Lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "failed to ping Redis")
			}
			params.Logger.Info("Redis rate limiter ready", slog.String("addr", redisCfg.Addr))

			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return NewRedisLimiter(client, limits.MaxAttempts, limits.Window)
}
