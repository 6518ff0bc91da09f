package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"nordflytt_backend/internal/events"
	"nordflytt_backend/platform/logger"
)

type recordingSender struct {
	issued     []string
	accepted   []string
	superseded []string
	expired    []string
	reconciled []string
	lastTotal  int64
	reconsent  bool
}

func (r *recordingSender) SendQuoteIssuedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64, validUntil string) error {
	r.issued = append(r.issued, toEmail)
	r.lastTotal = totalOre
	return nil
}

func (r *recordingSender) SendQuoteAcceptedEmail(ctx context.Context, toEmail, customerName, quoteNumber string, totalOre int64) error {
	r.accepted = append(r.accepted, toEmail)
	r.lastTotal = totalOre
	return nil
}

func (r *recordingSender) SendQuoteSupersededEmail(ctx context.Context, toEmail, customerName, quoteNumber string, oldTotalOre, newTotalOre int64, reconsented bool) error {
	r.superseded = append(r.superseded, toEmail)
	r.lastTotal = newTotalOre
	r.reconsent = reconsented
	return nil
}

func (r *recordingSender) SendQuoteExpiredEmail(ctx context.Context, toEmail, customerName, quoteNumber string) error {
	r.expired = append(r.expired, toEmail)
	return nil
}

func (r *recordingSender) SendPriceReconciledEmail(ctx context.Context, toEmail, customerName string, finalOre, deltaOre int64) error {
	r.reconciled = append(r.reconciled, toEmail)
	r.lastTotal = finalOre
	return nil
}

func newTestModule() (*Module, *recordingSender) {
	sender := &recordingSender{}
	return New(sender, logger.New("development")), sender
}

func TestHandleQuoteIssued(t *testing.T) {
	m, sender := newTestModule()
	validUntil := time.Now().Add(30 * 24 * time.Hour)

	err := m.Handle(context.Background(), events.QuoteIssued{
		BaseEvent:     events.NewBaseEvent(),
		QuoteID:       uuid.New(),
		QuoteNumber:   "QUO-2026-0001",
		CustomerEmail: "anna@example.se",
		CustomerName:  "Anna Lindqvist",
		TotalOre:      100000,
		ValidUntil:    &validUntil,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.issued) != 1 || sender.issued[0] != "anna@example.se" {
		t.Fatalf("issued emails: %v", sender.issued)
	}
	if sender.lastTotal != 100000 {
		t.Fatalf("total: want 100000, got %d", sender.lastTotal)
	}
}

func TestHandleQuoteSupersededCarriesReconsentFlag(t *testing.T) {
	m, sender := newTestModule()

	err := m.Handle(context.Background(), events.QuoteSuperseded{
		BaseEvent:     events.NewBaseEvent(),
		OldQuoteID:    uuid.New(),
		NewQuoteID:    uuid.New(),
		QuoteNumber:   "QUO-2026-0002",
		CustomerEmail: "anna@example.se",
		CustomerName:  "Anna Lindqvist",
		OldTotalOre:   100000,
		NewTotalOre:   150000,
		Reconsented:   true,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.superseded) != 1 {
		t.Fatalf("superseded emails: %v", sender.superseded)
	}
	if !sender.reconsent {
		t.Fatalf("reconsent flag not carried to sender")
	}

	// An automatic immaterial replacement keeps the flag off.
	err = m.Handle(context.Background(), events.QuoteSuperseded{
		BaseEvent:     events.NewBaseEvent(),
		OldQuoteID:    uuid.New(),
		NewQuoteID:    uuid.New(),
		QuoteNumber:   "QUO-2026-0003",
		CustomerEmail: "anna@example.se",
		CustomerName:  "Anna Lindqvist",
		OldTotalOre:   100000,
		NewTotalOre:   101000,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.superseded) != 2 {
		t.Fatalf("superseded emails: %v", sender.superseded)
	}
	if sender.reconsent {
		t.Fatalf("reconsent flag set for an automatic replacement")
	}
}

func TestHandleJobPriceReconciled(t *testing.T) {
	m, sender := newTestModule()

	err := m.Handle(context.Background(), events.JobPriceReconciled{
		BaseEvent:     events.NewBaseEvent(),
		JobID:         uuid.New(),
		CustomerEmail: "anna@example.se",
		CustomerName:  "Anna Lindqvist",
		FinalOre:      1080000,
		DeltaOre:      80000,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.reconciled) != 1 {
		t.Fatalf("reconciled emails: %v", sender.reconciled)
	}
	if sender.lastTotal != 1080000 {
		t.Fatalf("final: want 1080000, got %d", sender.lastTotal)
	}
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	m, _ := newTestModule()

	if err := m.Handle(context.Background(), events.QuoteExpired{
		BaseEvent:     events.NewBaseEvent(),
		QuoteID:       uuid.New(),
		QuoteNumber:   "QUO-2026-0003",
		CustomerEmail: "anna@example.se",
		CustomerName:  "Anna Lindqvist",
	}); err != nil {
		t.Fatalf("Handle expired: %v", err)
	}
}
