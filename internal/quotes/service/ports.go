package service

import (
	"context"

	"github.com/google/uuid"
)

// JobPort is the narrow view of the jobs module the quote lifecycle needs.
// Implemented by an adapter over the jobs service.
type JobPort interface {
	// CreateFromQuote opens a job seeded with the accepted quote's price.
	CreateFromQuote(ctx context.Context, params CreateJobParams) (uuid.UUID, error)
	// UpdateOriginalPrice replaces a job's frozen original price after a
	// consented recalculation. The jobs module re-derives the final price and
	// propagates the booking total itself.
	UpdateOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre int64) error
}

// CreateJobParams carries the quote facts a new job is seeded with.
type CreateJobParams struct {
	QuoteID          uuid.UUID
	OriginalPriceOre int64
	OriginalVolumeM3 float64
	CustomerName     string
	CustomerEmail    string
}

// BookingPort is the narrow view of the bookings module the quote lifecycle needs.
type BookingPort interface {
	CreateFromQuote(ctx context.Context, params CreateBookingParams) (uuid.UUID, error)
	Get(ctx context.Context, bookingID uuid.UUID) (BookingRef, error)
	// SetQuote repoints a booking at the quote that now governs its price,
	// along with the updated addresses.
	SetQuote(ctx context.Context, bookingID, quoteID uuid.UUID, origin, destination string) error
}

// CreateBookingParams carries the facts a new booking is created with.
type CreateBookingParams struct {
	QuoteID            uuid.UUID
	JobID              uuid.UUID
	CustomerName       string
	CustomerEmail      string
	OriginAddress      string
	DestinationAddress string
	TotalOre           int64
}

// BookingRef is the read model a recalculation starts from.
type BookingRef struct {
	ID      uuid.UUID
	JobID   uuid.UUID
	QuoteID uuid.UUID
}
