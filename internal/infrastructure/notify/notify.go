// Package notify selects the outbound notification backend.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/infrastructure/amqp"
	"github.com/go-auth-api/internal/infrastructure/smtp"
	"github.com/go-auth-api/internal/infrastructure/sns"
)

// Sender delivers one plaintext message to one mailbox.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them. It is
// meant for local development only: bodies may contain one-time codes.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "notification", "to", to, "subject", subject, "body", body)
	return nil
}

// New builds the Sender named by cfg.NotifyBackend. The returned close func
// is never nil.
func New(ctx context.Context, cfg *config.Config) (Sender, func() error, error) {
	noop := func() error { return nil }

	switch cfg.NotifyBackend {
	case config.NotifyLog:
		return NewLogSender(slog.Default()), noop, nil
	case config.NotifySMTP:
		return smtp.NewMailer(cfg), noop, nil
	case config.NotifySNS:
		s, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("sns sender: %w", err)
		}
		return s, noop, nil
	case config.NotifyAMQP:
		p, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, noop, fmt.Errorf("amqp publisher: %w", err)
		}
		return p, p.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown notification backend %q", cfg.NotifyBackend)
	}
}
