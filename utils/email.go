package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// ErrEmailNotConfigured is returned by NewSendGridSender without an API key.
var ErrEmailNotConfigured = errors.New("SENDGRID_API_KEY is not set in environment variables")

// Email is one outbound message
type Email struct {
	ToName      string
	ToAddress   string
	Subject     string
	TextContent string
	HTMLContent string
}

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers Email values through the SendGrid v3 API
type SendGridSender struct {
	client sendGridClient
	from   *mail.Email
	logger *zap.Logger
}

// NewSendGridSender builds a sender authenticated with apiKey.
func NewSendGridSender(apiKey, fromName, fromAddress string, logger *zap.Logger) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, ErrEmailNotConfigured
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
		logger: logger,
	}, nil
}

// Send sends a single email using SendGrid
func (s *SendGridSender) Send(ctx context.Context, e Email) error {
	to := mail.NewEmail(e.ToName, e.ToAddress)
	message := mail.NewSingleEmail(s.from, e.Subject, to, e.TextContent, e.HTMLContent)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Warn("Error sending email", zap.String("to", e.ToAddress), zap.Error(err))
		return err
	}

	if response.StatusCode >= 400 {
		s.logger.Warn("SendGrid API error",
			zap.String("to", e.ToAddress),
			zap.Int("status_code", response.StatusCode),
			zap.String("body", response.Body),
		)
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	s.logger.Debug("Email sent", zap.String("to", e.ToAddress), zap.Int("status_code", response.StatusCode))
	return nil
}

// LogSender writes emails to the log instead of delivering them. It stands in
// for SendGrid in development when no API key is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, e Email) error {
	s.logger.Info("Email not delivered (log sender)",
		zap.String("to", e.ToAddress),
		zap.String("subject", e.Subject),
		zap.String("text", e.TextContent),
	)
	return nil
}
