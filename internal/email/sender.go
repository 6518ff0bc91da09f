// Package email renders and delivers customer-facing mail.
package email

import (
	"context"
	"errors"

	"nordflytt_backend/platform/config"
)

// Sender is the delivery port used by the notification subscribers.
type Sender interface {
	SendQuoteIssuedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64, validUntil string) error
	SendQuoteAcceptedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64) error
	SendQuoteSupersededEmail(ctx context.Context, toEmail, customerName, quoteNumber string, oldTotalOre, newTotalOre int64, reconsented bool) error
	SendQuoteExpiredEmail(ctx context.Context, toEmail, customerName, quoteNumber string) error
	SendPriceReconciledEmail(ctx context.Context, toEmail, customerName string, finalOre, deltaOre int64) error
}

// NewSender builds the configured Sender. With email disabled it returns the
// NoopSender so callers never branch on delivery being off.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	if cfg.GetSMTPHost() == "" {
		return nil, errors.New("email enabled but SMTP_HOST not set")
	}

	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

// NoopSender satisfies Sender without delivering anything. Used when SMTP is
// not configured, so the rest of the system never branches on email being off.
type NoopSender struct{}

var _ Sender = (*NoopSender)(nil)

func (NoopSender) SendQuoteIssuedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64, validUntil string) error {
	return nil
}

func (NoopSender) SendQuoteAcceptedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64) error {
	return nil
}

func (NoopSender) SendQuoteSupersededEmail(ctx context.Context, toEmail, customerName, quoteNumber string, oldTotalOre, newTotalOre int64, reconsented bool) error {
	return nil
}

func (NoopSender) SendQuoteExpiredEmail(ctx context.Context, toEmail, customerName, quoteNumber string) error {
	return nil
}

func (NoopSender) SendPriceReconciledEmail(ctx context.Context, toEmail, customerName string, finalOre, deltaOre int64) error {
	return nil
}
