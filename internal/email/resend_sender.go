package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/logger"
)

// ResendSender implements the Sender interface using the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	log    zerolog.Logger
}

// NewResendSender creates a ResendSender, or falls back to the logging
// sender when no API key or sender address is configured.
func NewResendSender(cfg *config.Config) Sender {
	if cfg.ResendAPIKey == "" || cfg.InvoiceSenderEmail == "" {
		log := logger.WithComponent("email")
		log.Warn().Msg("Resend not configured, using logging email sender")
		return NewLoggingSender()
	}
	return &ResendSender{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.InvoiceSenderEmail,
		log:    logger.WithComponent("email"),
	}
}

// Send delivers the message through Resend.
func (s *ResendSender) Send(ctx context.Context, msg *Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
		Text:    msg.Text,
	}
	for _, att := range msg.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename: att.Filename,
			Content:  att.Content,
		})
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.log.Error().Err(err).Strs("to", msg.To).Str("subject", msg.Subject).Msg("Resend send failed")
		return fmt.Errorf("resend error: %w", err)
	}
	s.log.Info().Str("id", sent.Id).Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email sent via Resend")
	return nil
}
