package notify

import (
	"context"
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/disktools/diskwatch/internal/config"
)

// sender abstracts gomail's dial-and-send so tests can intercept the
// outgoing message without an SMTP server.
type sender func(msg *gomail.Message) error

func smtpSender(cfg *config.Settings) sender {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.GmailUser, cfg.GmailPass)
	return func(msg *gomail.Message) error {
		return dialer.DialAndSend(msg)
	}
}

// emailNotifier delivers the full finding list over SMTP.
type emailNotifier struct {
	from string
	to   string
	send sender
}

func newEmail(cfg *config.Settings) (Notifier, error) {
	if cfg.GmailUser == "" && cfg.Recipient == "" {
		return nil, nil
	}
	if cfg.GmailUser == "" || cfg.GmailPass == "" || cfg.Recipient == "" {
		return nil, fmt.Errorf("email: %w: GMAIL_USER, GMAIL_PASS and RECIPIENT are required", ErrMisconfigured)
	}
	return &emailNotifier{
		from: cfg.GmailUser,
		to:   cfg.Recipient,
		send: smtpSender(cfg),
	}, nil
}

func (e *emailNotifier) Name() string { return "email" }

func (e *emailNotifier) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body)

	if err := e.send(m); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

// smsNotifier delivers a trimmed message through a carrier's
// email-to-SMS gateway, reusing the SMTP credentials.
type smsNotifier struct {
	from string
	to   string
	send sender
}

func newSMS(cfg *config.Settings) (Notifier, error) {
	if cfg.Phone == "" {
		return nil, nil
	}
	if cfg.GmailUser == "" || cfg.GmailPass == "" || cfg.SMSGateway == "" {
		return nil, fmt.Errorf("sms: %w: PHONE requires GMAIL_USER, GMAIL_PASS and SMS_GATEWAY", ErrMisconfigured)
	}
	return &smsNotifier{
		from: cfg.GmailUser,
		to:   fmt.Sprintf("%s@%s", cfg.Phone, cfg.SMSGateway),
		send: smtpSender(cfg),
	}, nil
}

func (s *smsNotifier) Name() string { return "sms" }

func (s *smsNotifier) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", truncateBody(msg.Body, 320))

	if err := s.send(m); err != nil {
		return fmt.Errorf("sms: failed to send: %w", err)
	}
	return nil
}

// truncateBody caps the SMS payload; carrier gateways reject long bodies.
func truncateBody(body string, n int) string {
	body = strings.TrimSpace(body)
	if len(body) <= n {
		return body
	}
	return body[:n-3] + "..."
}
