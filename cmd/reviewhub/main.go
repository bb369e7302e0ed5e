package main

import (
	"context"
	"log/slog"
	"os"

	"reviewhub/config"
	"reviewhub/internal/delivery"
	"reviewhub/internal/delivery/api"
	"reviewhub/internal/delivery/api/middleware"
	"reviewhub/internal/delivery/api/router/handler"
	"reviewhub/internal/infra/auth"
	"reviewhub/internal/infra/auth/facebook"
	"reviewhub/internal/infra/auth/google"
	logs "reviewhub/internal/infra/log"
	"reviewhub/internal/infra/persistence"
	"reviewhub/internal/infra/pubsub"
	"reviewhub/internal/infra/ratelimit"
	"reviewhub/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			ratelimit.NewRateLimiter,
		),
		pubsub.Module,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			persistence.NewStorage,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewPasswordPolicy,
			auth.NewJWTService,
			auth.NewCredentialVerifier,
			auth.NewExternalVerifierRegistry,
			fx.Annotate(
				google.NewVerifier,
				fx.ResultTags(`group:"external_verifiers"`),
			),
			fx.Annotate(
				facebook.NewVerifier,
				fx.ResultTags(`group:"external_verifiers"`),
			),
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewIdentityLinker,
			impl.NewAccountService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAccountHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
