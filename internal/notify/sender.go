package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrInvalidToken reports a permanent delivery failure. Tokens that fail with
// it are removed.
var ErrInvalidToken = errors.New("invalid device token")

// Message is the reminder payload.
type Message struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	URL          string `json:"url"`
	ExperimentID string `json:"experimentId,omitempty"`
}

// Sender delivers a message to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, token string, msg Message) error

func (f SenderFunc) Send(ctx context.Context, token string, msg Message) error {
	return f(ctx, token, msg)
}

// LogSender writes each message to the log instead of a push gateway.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, token string, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"token", redact(token),
		"title", msg.Title,
		"body", msg.Body,
		"url", msg.URL,
		"experiment_id", msg.ExperimentID,
	)
	return nil
}

func redact(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}
