// Package notification renders and delivers the emails of the birthday club.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/raushankrgupta/birthday-club/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sender delivers one email. utils.SendGridSender and utils.LogSender satisfy it.
type Sender interface {
	Send(ctx context.Context, e utils.Email) error
}

type Recipient struct {
	Name  string
	Email string
}

// Delivery is the outcome for one address
type Delivery struct {
	Email    string
	Attempts int
	Err      error
}

func (d Delivery) OK() bool { return d.Err == nil }

// Notifier sends templated emails in batches with a fixed-delay retry per
// message.
type Notifier struct {
	sender     Sender
	logger     *zap.Logger
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

type Option func(*Notifier)

func WithBatchSize(n int) Option {
	return func(no *Notifier) {
		if n > 0 {
			no.batchSize = n
		}
	}
}

// WithRetry sets the total attempts per message and the pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(no *Notifier) {
		if attempts > 0 {
			no.maxRetries = attempts
		}
		if delay >= 0 {
			no.retryDelay = delay
		}
	}
}

func New(sender Sender, logger *zap.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		sender:     sender,
		logger:     logger,
		batchSize:  10,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SendVerificationCode mails a freshly issued code to the registrant
func (n *Notifier) SendVerificationCode(ctx context.Context, to Recipient, code string, expiresAt time.Time) error {
	html, text, err := render(verificationTemplate, verificationData{
		Name:      displayName(to.Name),
		Code:      code,
		ValidFor:  fmt.Sprintf("%d minutes", int(utils.OTPValidity.Minutes())),
		ExpiresAt: expiresAt.UTC().Format("15:04 MST"),
	})
	if err != nil {
		return err
	}

	d := n.deliver(ctx, utils.Email{
		ToName:      to.Name,
		ToAddress:   to.Email,
		Subject:     "Your Birthday Club verification code",
		TextContent: text,
		HTMLContent: html,
	})
	return d.Err
}

// SendBirthdayNotices tells every recipient about the celebrant. Results are
// returned in recipient order; one failed address never stops the rest.
func (n *Notifier) SendBirthdayNotices(ctx context.Context, celebrant Recipient, recipients []Recipient) []Delivery {
	results := make([]Delivery, len(recipients))
	celebrantName := displayName(celebrant.Name)
	subject := fmt.Sprintf("🎉 It's %s's Birthday Today!", celebrantName)

	for start := 0; start < len(recipients); start += n.batchSize {
		end := start + n.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		if err := ctx.Err(); err != nil {
			for i := start; i < len(recipients); i++ {
				results[i] = Delivery{Email: recipients[i].Email, Err: err}
			}
			break
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				to := recipients[i]
				html, text, err := render(birthdayTemplate, birthdayData{
					RecipientName:  displayName(to.Name),
					CelebrantName:  celebrantName,
					CelebrantEmail: celebrant.Email,
				})
				if err != nil {
					results[i] = Delivery{Email: to.Email, Err: err}
					return nil
				}
				results[i] = n.deliver(ctx, utils.Email{
					ToName:      to.Name,
					ToAddress:   to.Email,
					Subject:     subject,
					TextContent: text,
					HTMLContent: html,
				})
				return nil
			})
		}
		_ = g.Wait()

		n.logger.Debug("Birthday batch processed",
			zap.String("celebrant", celebrant.Email),
			zap.Int("from", start),
			zap.Int("to", end),
		)
	}
	return results
}

// deliver sends e, retrying with a fixed delay until the attempts run out or
// ctx is cancelled.
func (n *Notifier) deliver(ctx context.Context, e utils.Email) Delivery {
	d := Delivery{Email: e.ToAddress}
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		d.Attempts = attempt
		d.Err = n.sender.Send(ctx, e)
		if d.Err == nil {
			return d
		}
		n.logger.Warn("Email attempt failed",
			zap.String("to", e.ToAddress),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", n.maxRetries),
			zap.Error(d.Err),
		)
		if attempt == n.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			d.Err = ctx.Err()
			return d
		case <-time.After(n.retryDelay):
		}
	}
	return d
}
