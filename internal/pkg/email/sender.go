// internal/pkg/email/sender.go
package email

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/config"
)

// Message represents a single outbound email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message to one recipient
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender when SMTP is configured and a
// console sender otherwise (development default, mirrors the console
// email backend used in development deployments).
func NewSender(cfg *config.Config) Sender {
	if cfg.Email.SMTPHost != "" {
		return NewSMTPSender(cfg)
	}
	return NewConsoleSender()
}

// ConsoleSender logs messages instead of delivering them
type ConsoleSender struct{}

// NewConsoleSender creates a console sender
func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{}
}

// Send logs the message
func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("email (console backend)")
	return nil
}
