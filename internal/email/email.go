package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/kitcasinillo/backend-server/config"
)

var ErrNotConfigured = errors.New("email service not configured")

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	cfg config.EmailConfig
}

func NewSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if s.cfg.SMTPHost == "" {
		return ErrNotConfigured
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s", s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}

var _ Sender = (*SMTPSender)(nil)
