package email

import (
	"context"

	"github.com/At4lian/editra/internal/logger"
)

// Attachment is a binary file attached to an outgoing email.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is a fully composed outgoing email.
type Message struct {
	To          []string
	Bcc         []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Sender defines the interface for sending emails.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LoggingSender is a mock implementation that just logs email details.
// Used when no email provider is configured.
type LoggingSender struct{}

// NewLoggingSender creates a sender that logs instead of sending.
func NewLoggingSender() Sender {
	return &LoggingSender{}
}

// Send logs the email details instead of sending.
func (s *LoggingSender) Send(ctx context.Context, msg *Message) error {
	log := logger.WithComponent("email")
	evt := log.Info().
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments))
	if len(msg.Bcc) > 0 {
		evt = evt.Strs("bcc", msg.Bcc)
	}
	evt.Msg("Email logged (no provider configured)")
	log.Debug().Str("body", msg.Text).Msg("Email body")
	return nil
}
