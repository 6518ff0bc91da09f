// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"nordflytt_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Quote Domain Events
// =============================================================================

// QuoteIssued is published when a quote is issued to a customer.
type QuoteIssued struct {
	BaseEvent
	QuoteID       uuid.UUID  `json:"quoteId"`
	QuoteNumber   string     `json:"quoteNumber"`
	CustomerEmail string     `json:"customerEmail"`
	CustomerName  string     `json:"customerName"`
	TotalOre      int64      `json:"totalOre"`
	ValidUntil    *time.Time `json:"validUntil,omitempty"`
}

func (e QuoteIssued) EventName() string { return "quotes.quote.issued" }

// QuoteAccepted is published when a customer accepts a quote. Downstream
// handlers create the job and booking records.
type QuoteAccepted struct {
	BaseEvent
	QuoteID       uuid.UUID `json:"quoteId"`
	QuoteNumber   string    `json:"quoteNumber"`
	JobID         uuid.UUID `json:"jobId"`
	BookingID     uuid.UUID `json:"bookingId"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerName  string    `json:"customerName"`
	TotalOre      int64     `json:"totalOre"`
}

func (e QuoteAccepted) EventName() string { return "quotes.quote.accepted" }

// QuoteSuperseded is published when a recalculation replaces a quote with a
// new one, typically after an address change. Reconsented distinguishes a
// replacement the customer explicitly approved from an immaterial one
// committed automatically.
type QuoteSuperseded struct {
	BaseEvent
	OldQuoteID    uuid.UUID `json:"oldQuoteId"`
	NewQuoteID    uuid.UUID `json:"newQuoteId"`
	QuoteNumber   string    `json:"quoteNumber"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerName  string    `json:"customerName"`
	OldTotalOre   int64     `json:"oldTotalOre"`
	NewTotalOre   int64     `json:"newTotalOre"`
	Reconsented   bool      `json:"reconsented"`
}

func (e QuoteSuperseded) EventName() string { return "quotes.quote.superseded" }

// QuoteExpired is published when the expiry sweep marks a quote expired.
type QuoteExpired struct {
	BaseEvent
	QuoteID       uuid.UUID `json:"quoteId"`
	QuoteNumber   string    `json:"quoteNumber"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerName  string    `json:"customerName"`
}

func (e QuoteExpired) EventName() string { return "quotes.quote.expired" }

// =============================================================================
// Job Domain Events
// =============================================================================

// JobPriceReconciled is published after a successful price reconciliation.
// DeltaOre is the change to the job's final price; zero-delta reconciliations
// are not published.
type JobPriceReconciled struct {
	BaseEvent
	JobID         uuid.UUID `json:"jobId"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerName  string    `json:"customerName"`
	FinalOre      int64     `json:"finalOre"`
	DeltaOre      int64     `json:"deltaOre"`
}

func (e JobPriceReconciled) EventName() string { return "jobs.price.reconciled" }

// JobPriceLocked is published when repeated reconciliation conflicts lock a
// job's price pending manual review.
type JobPriceLocked struct {
	BaseEvent
	JobID  uuid.UUID `json:"jobId"`
	Reason string    `json:"reason"`
}

func (e JobPriceLocked) EventName() string { return "jobs.price.locked" }
