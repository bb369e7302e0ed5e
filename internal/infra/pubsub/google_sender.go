package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"reviewhub/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

// googleEmailSender queues email messages on a Google Cloud Pub/Sub topic
// consumed by the mail worker.
type googleEmailSender struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

// NewGoogleEmailSender creates a sender publishing to projects/<projectID>/topics/<topicID>.
func NewGoogleEmailSender(ctx context.Context, projectID, topicID string, logger *slog.Logger) (service.EmailSender, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err = client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: topicPath,
	})
	if err != nil {
		client.Close()

		return nil, errors.Wrapf(err, "failed to get topic %s", topicID)
	}

	logger.Info("Google Pub/Sub email sender initialized",
		slog.String("project_id", projectID),
		slog.String("topic_id", topicID),
	)

	return &googleEmailSender{
		client:    client,
		publisher: client.Publisher(topicID),
		logger:    logger,
	}, nil
}

func (s *googleEmailSender) Send(ctx context.Context, msg *service.EmailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WithStack(err)
	}

	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: messageAttributes(msg),
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	s.logger.InfoContext(ctx, "[GooglePubSub] Email queued",
		slog.String("subject", msg.Subject),
		slog.String("server_id", serverID),
	)

	return nil
}

func (s *googleEmailSender) Close() error {
	if s.publisher != nil {
		s.publisher.Stop()
	}
	if s.client != nil {
		return errors.WithStack(s.client.Close())
	}

	return nil
}

// messageAttributes exposes routing metadata without the body, which may carry secrets.
func messageAttributes(msg *service.EmailMessage) map[string]string {
	attributes := map[string]string{
		"kind":    "email",
		"subject": msg.Subject,
	}
	if msg.RequestID != "" {
		attributes["request_id"] = msg.RequestID
	}

	return attributes
}
