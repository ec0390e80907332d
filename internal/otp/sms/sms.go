// Package sms delivers one-time codes. Senders are selected by SMS_PROVIDER.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wishguard/pkg/platform/privacy"
)

const (
	ProviderLog       = "log"
	ProviderKavenegar = "kavenegar"
	ProviderTwilio    = "twilio"
)

var (
	ErrNotConfigured = errors.New("sms service not configured")
	ErrRejected      = errors.New("sms provider rejected the message")
	ErrUnavailable   = errors.New("sms provider unavailable")
)

// Sender delivers a text message to a canonical 09xxxxxxxxx number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Category returns the client-safe description of a send failure.
func Category(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return ErrNotConfigured.Error()
	case errors.Is(err, ErrRejected):
		return ErrRejected.Error()
	default:
		return ErrUnavailable.Error()
	}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, phone, message string) error {
	s.logger.InfoContext(ctx, "sms not sent, log provider active",
		"phone", privacy.MaskPhone(phone),
		"message", message,
	)
	return nil
}

// Config selects and configures a provider.
type Config struct {
	Provider         string
	KavenegarAPIKey  string
	KavenegarSender  string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// New builds the sender for cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", ProviderLog:
		return NewLogSender(logger), nil
	case ProviderKavenegar:
		if cfg.KavenegarAPIKey == "" {
			return nil, fmt.Errorf("kavenegar: %w", ErrNotConfigured)
		}
		return NewKavenegar(cfg.KavenegarAPIKey, cfg.KavenegarSender), nil
	case ProviderTwilio:
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
			return nil, fmt.Errorf("twilio: %w", ErrNotConfigured)
		}
		return NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}
