// Package notification subscribes to domain events and sends the matching
// customer emails. It inverts the dependency: the quote and job modules never
// know about email providers or templates.
package notification

import (
	"context"

	"nordflytt_backend/internal/email"
	"nordflytt_backend/internal/events"
	"nordflytt_backend/platform/logger"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	sender email.Sender
	log    *logger.Logger
}

// New creates a new notification module.
func New(sender email.Sender, log *logger.Logger) *Module {
	return &Module{sender: sender, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.QuoteIssued{}.EventName(), m)
	bus.Subscribe(events.QuoteAccepted{}.EventName(), m)
	bus.Subscribe(events.QuoteSuperseded{}.EventName(), m)
	bus.Subscribe(events.QuoteExpired{}.EventName(), m)
	bus.Subscribe(events.JobPriceReconciled{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.QuoteIssued:
		return m.handleQuoteIssued(ctx, e)
	case events.QuoteAccepted:
		return m.handleQuoteAccepted(ctx, e)
	case events.QuoteSuperseded:
		return m.handleQuoteSuperseded(ctx, e)
	case events.QuoteExpired:
		return m.handleQuoteExpired(ctx, e)
	case events.JobPriceReconciled:
		return m.handleJobPriceReconciled(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleQuoteIssued(ctx context.Context, e events.QuoteIssued) error {
	validUntil := ""
	if e.ValidUntil != nil {
		validUntil = e.ValidUntil.Format("2006-01-02")
	}
	if err := m.sender.SendQuoteIssuedEmail(ctx, e.CustomerEmail, e.CustomerName, e.QuoteNumber, e.TotalOre, validUntil); err != nil {
		m.log.Error("failed to send quote issued email",
			"quoteId", e.QuoteID,
			"email", e.CustomerEmail,
			"error", err,
		)
		return err
	}
	m.log.Info("quote issued email sent", "quoteId", e.QuoteID, "email", e.CustomerEmail)
	return nil
}

func (m *Module) handleQuoteAccepted(ctx context.Context, e events.QuoteAccepted) error {
	if err := m.sender.SendQuoteAcceptedEmail(ctx, e.CustomerEmail, e.CustomerName, e.QuoteNumber, e.TotalOre); err != nil {
		m.log.Error("failed to send quote accepted email",
			"quoteId", e.QuoteID,
			"email", e.CustomerEmail,
			"error", err,
		)
		return err
	}
	m.log.Info("quote accepted email sent", "quoteId", e.QuoteID, "email", e.CustomerEmail)
	return nil
}

func (m *Module) handleQuoteSuperseded(ctx context.Context, e events.QuoteSuperseded) error {
	if err := m.sender.SendQuoteSupersededEmail(ctx, e.CustomerEmail, e.CustomerName, e.QuoteNumber, e.OldTotalOre, e.NewTotalOre, e.Reconsented); err != nil {
		m.log.Error("failed to send quote superseded email",
			"oldQuoteId", e.OldQuoteID,
			"newQuoteId", e.NewQuoteID,
			"email", e.CustomerEmail,
			"error", err,
		)
		return err
	}
	m.log.Info("quote superseded email sent", "newQuoteId", e.NewQuoteID, "email", e.CustomerEmail)
	return nil
}

func (m *Module) handleQuoteExpired(ctx context.Context, e events.QuoteExpired) error {
	if err := m.sender.SendQuoteExpiredEmail(ctx, e.CustomerEmail, e.CustomerName, e.QuoteNumber); err != nil {
		m.log.Error("failed to send quote expired email",
			"quoteId", e.QuoteID,
			"email", e.CustomerEmail,
			"error", err,
		)
		return err
	}
	m.log.Info("quote expired email sent", "quoteId", e.QuoteID, "email", e.CustomerEmail)
	return nil
}

func (m *Module) handleJobPriceReconciled(ctx context.Context, e events.JobPriceReconciled) error {
	if err := m.sender.SendPriceReconciledEmail(ctx, e.CustomerEmail, e.CustomerName, e.FinalOre, e.DeltaOre); err != nil {
		m.log.Error("failed to send price reconciled email",
			"jobId", e.JobID,
			"email", e.CustomerEmail,
			"error", err,
		)
		return err
	}
	m.log.Info("price reconciled email sent", "jobId", e.JobID, "email", e.CustomerEmail)
	return nil
}
