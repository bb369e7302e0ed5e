package pubsub

import (
	"context"
	"log/slog"

	"reviewhub/config"
	"reviewhub/internal/domain/constants"
	"reviewhub/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// noopSender drops messages when no transport is configured.
type noopSender struct {
	logger *slog.Logger
}

func (s *noopSender) Send(ctx context.Context, msg *service.EmailMessage) error {
	s.logger.DebugContext(ctx, "[NoopPubSub] Email delivery disabled, skipping",
		slog.String("subject", msg.Subject),
	)

	return nil
}

func (s *noopSender) Close() error {
	return nil
}

// SenderParams holds dependencies for EmailSender, injected by Fx
type SenderParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEmailSender creates an EmailSender based on configuration
func NewEmailSender(params SenderParams) (service.EmailSender, error) {
	cfg := params.Config.PubSub
	logger := params.Logger

	if cfg == nil || cfg.Provider == "" {
		logger.Info("PubSub not configured, emails will not be delivered")

		return &noopSender{logger: logger}, nil
	}

	var sender service.EmailSender
	var err error

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP email sender",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		sender = NewLocalHTTPSender(cfg.LocalEndpoint, logger)

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for google provider")
		}

		sender, err = NewGoogleEmailSender(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", cfg.Provider)
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing EmailSender")

			return sender.Close()
		},
	})

	return sender, nil
}

// Module provides the Pub/Sub FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEmailSender),
)
