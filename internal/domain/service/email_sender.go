package service

import "context"

// EmailMessage is an outbound email handed to the delivery pipeline.
type EmailMessage struct {
	RequestID string   `json:"request_id,omitempty"` // For distributed tracing
	To        []string `json:"to"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
}

// EmailSender queues email messages for delivery.
type EmailSender interface {
	// Send returns once the message is accepted; delivery happens asynchronously.
	Send(ctx context.Context, msg *EmailMessage) error

	// Close releases any resources held by the sender
	Close() error
}
