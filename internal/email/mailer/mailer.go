// Package mailer sends verification mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Message is one outbound mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig addresses the relay. Auth is skipped when User is empty.
type SMTPConfig struct {
	Addr     string
	Host     string
	User     string
	Password string
	From     string
}

// SMTP sends through a relay with PLAIN auth.
type SMTP struct {
	cfg  SMTPConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Send is not context-aware; the relay dial inherits net/smtp defaults.
func (m *SMTP) Send(_ context.Context, msg Message) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(e, m.cfg.Addr, auth); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Log writes mail to the log instead of sending it. Used when no relay is set.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Log{logger: logger}
}

func (m *Log) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "mail not sent, no smtp relay configured",
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
