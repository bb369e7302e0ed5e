package pubsub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"reviewhub/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const localSubscription = "projects/local/subscriptions/email-sub"

// localHTTPSender posts messages to a local endpoint in the Pub/Sub push
// format, standing in for the real topic during development.
type localHTTPSender struct {
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// PushMessage is the envelope Google Pub/Sub uses when pushing to HTTP endpoints.
type PushMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// NewLocalHTTPSender creates a development sender posting to endpoint.
func NewLocalHTTPSender(endpoint string, logger *slog.Logger) service.EmailSender {
	return &localHTTPSender{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now:    time.Now,
		logger: logger,
	}
}

func (s *localHTTPSender) Send(ctx context.Context, msg *service.EmailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WithStack(err)
	}

	push := PushMessage{Subscription: localSubscription}
	push.Message.Data = base64.StdEncoding.EncodeToString(data)
	push.Message.Attributes = messageAttributes(msg)
	push.Message.MessageID = uuid.NewString()
	push.Message.PublishTime = s.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(push)
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if msg.RequestID != "" {
		req.Header.Set("X-Request-Id", msg.RequestID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("mail worker returned non-success status: %d", resp.StatusCode)
	}

	s.logger.InfoContext(ctx, "[LocalPubSub] Email queued",
		slog.String("endpoint", s.endpoint),
		slog.String("message_id", push.Message.MessageID),
	)

	return nil
}

func (s *localHTTPSender) Close() error {
	return nil
}
