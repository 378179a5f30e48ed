// Package email defines the outbound email boundary. The real provider is
// external; a misconfigured or absent sender degrades to skipped sends,
// never to thrown errors.
package email

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

// ErrNotConfigured signals that no email provider is wired up. Executors
// translate it into a skipped outcome.
var ErrNotConfigured = errors.New("email sender not configured")

// Sender delivers one message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (messageID string, err error)
}

// bodyPolicy strips scripts and event handlers from HTML bodies while
// keeping basic formatting. Generated email content passes through a model,
// so it is sanitized like any other untrusted markup.
var bodyPolicy = bluemonday.UGCPolicy()

// SanitizeBody returns body with unsafe HTML removed.
func SanitizeBody(body string) string {
	return bodyPolicy.Sanitize(body)
}

// LogSender is the development sender: it logs the message instead of
// delivering it and fabricates a message id.
type LogSender struct {
	From string
}

// Send logs the outbound message and returns a generated message id.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	messageID := uuid.NewString()
	log.Info().
		Str("from", s.From).
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Str("message_id", messageID).
		Msg("email_logged_not_delivered")
	return messageID, nil
}

// Disabled is the sender used when email is explicitly off; every send
// reports ErrNotConfigured.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, string) (string, error) {
	return "", ErrNotConfigured
}
