// Package adapters bridges the narrow ports each module declares to the
// services of its sibling modules, keeping the modules free of direct
// dependencies on each other.
package adapters

import (
	"context"

	bookingsvc "nordflytt_backend/internal/bookings/service"
	jobsvc "nordflytt_backend/internal/jobs/service"
	quotesvc "nordflytt_backend/internal/quotes/service"

	"github.com/google/uuid"
)

// JobAdapter implements the quotes module's JobPort over the jobs service.
type JobAdapter struct {
	jobs *jobsvc.Service
}

// NewJobAdapter wraps the jobs service.
func NewJobAdapter(jobs *jobsvc.Service) *JobAdapter {
	return &JobAdapter{jobs: jobs}
}

var _ quotesvc.JobPort = (*JobAdapter)(nil)

// CreateFromQuote opens a job seeded with the accepted quote's price.
func (a *JobAdapter) CreateFromQuote(ctx context.Context, params quotesvc.CreateJobParams) (uuid.UUID, error) {
	job, err := a.jobs.Create(ctx, jobsvc.CreateParams{
		QuoteID:          params.QuoteID,
		OriginalPriceOre: params.OriginalPriceOre,
		OriginalVolumeM3: params.OriginalVolumeM3,
		CustomerName:     params.CustomerName,
		CustomerEmail:    params.CustomerEmail,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// UpdateOriginalPrice replaces a job's frozen original price after a
// consented recalculation.
func (a *JobAdapter) UpdateOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre int64) error {
	return a.jobs.UpdateOriginalPrice(ctx, jobID, originalOre)
}

// BookingAdapter implements the quotes module's BookingPort over the
// bookings service.
type BookingAdapter struct {
	bookings *bookingsvc.Service
}

// NewBookingAdapter wraps the bookings service.
func NewBookingAdapter(bookings *bookingsvc.Service) *BookingAdapter {
	return &BookingAdapter{bookings: bookings}
}

var _ quotesvc.BookingPort = (*BookingAdapter)(nil)

// CreateFromQuote opens a booking seeded with the accepted quote's total.
func (a *BookingAdapter) CreateFromQuote(ctx context.Context, params quotesvc.CreateBookingParams) (uuid.UUID, error) {
	booking, err := a.bookings.Create(ctx, bookingsvc.CreateParams{
		QuoteID:            params.QuoteID,
		JobID:              params.JobID,
		CustomerName:       params.CustomerName,
		CustomerEmail:      params.CustomerEmail,
		OriginAddress:      params.OriginAddress,
		DestinationAddress: params.DestinationAddress,
		TotalOre:           params.TotalOre,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return booking.ID, nil
}

// Get returns the read model a recalculation starts from.
func (a *BookingAdapter) Get(ctx context.Context, bookingID uuid.UUID) (quotesvc.BookingRef, error) {
	booking, err := a.bookings.Get(ctx, bookingID)
	if err != nil {
		return quotesvc.BookingRef{}, err
	}
	return quotesvc.BookingRef{
		ID:      booking.ID,
		JobID:   booking.JobID,
		QuoteID: booking.QuoteID,
	}, nil
}

// SetQuote repoints a booking at the quote that now governs its price.
func (a *BookingAdapter) SetQuote(ctx context.Context, bookingID, quoteID uuid.UUID, origin, destination string) error {
	return a.bookings.SetQuote(ctx, bookingID, quoteID, origin, destination)
}

// Compile-time check: the bookings service satisfies the jobs module's
// BookingPort directly, no adapter needed.
var _ jobsvc.BookingPort = (*bookingsvc.Service)(nil)
