package notification

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/payops/payops/internal/domain/outbox"
	sharedConfig "github.com/payops/payops/internal/shared/config"
	"github.com/payops/payops/internal/shared/id"
	"github.com/payops/payops/internal/shared/logger"
	"github.com/payops/payops/internal/shared/utils"
)

var ErrEmailNotConfigured = errors.New("email service not configured")

// SMTPEmailSender delivers rendered messages through an SMTP relay.
type SMTPEmailSender struct {
	config   sharedConfig.SMTPConfig
	dialer   *gomail.Dialer
	renderer *Renderer
	logger   logger.Interface
}

func NewSMTPEmailSender(cfg sharedConfig.SMTPConfig, renderer *Renderer, log logger.Interface) *SMTPEmailSender {
	var dialer *gomail.Dialer
	if cfg.Host != "" {
		dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	}
	return &SMTPEmailSender{config: cfg, dialer: dialer, renderer: renderer, logger: log}
}

// SendEmail returns the Message-Id header it generated.
func (s *SMTPEmailSender) SendEmail(ctx context.Context, msg outbox.Message) (string, error) {
	if s.dialer == nil {
		return "", ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rendered, err := s.renderer.Render(msg)
	if err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", id.New(id.PrefixMessage), s.config.Host)
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.config.FromAddress, s.config.FromName))
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", rendered.Subject)
	m.SetHeader("Message-Id", messageID)
	m.SetBody("text/plain", rendered.Text)
	m.AddAlternative("text/html", rendered.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warnw("failed to send email",
			"template", msg.TemplateKey,
			"client_id", msg.ClientID,
			"recipient", utils.MaskEmail(msg.Recipient),
			"error", err,
		)
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return messageID, nil
}
