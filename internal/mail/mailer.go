package mail

import (
	"fmt"

	"github.com/chamapesa/chamapesa-backend/internal/config"
	"gopkg.in/gomail.v2"
)

// Sender delivers a single email message.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// NoOpSender discards mail. Used when SMTP is not configured.
type NoOpSender struct{}

func NewNoOpSender() *NoOpSender { return &NoOpSender{} }

func (s *NoOpSender) Send(to, subject, htmlBody string) error { return nil }
