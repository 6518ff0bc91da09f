// Package service implements booking reads and the snapshot writes performed
// on behalf of the quote and job modules.
package service

import (
	"context"
	"time"

	"nordflytt_backend/internal/bookings/repository"
	"nordflytt_backend/platform/logger"

	"github.com/google/uuid"
)

// Service manages bookings. Bookings never compute prices: the total is a
// snapshot pushed in by quote acceptance and price reconciliation.
type Service struct {
	store repository.Store
	log   *logger.Logger
}

// New creates the bookings service.
func New(store repository.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// CreateParams carries the facts a new booking is opened with.
type CreateParams struct {
	QuoteID            uuid.UUID
	JobID              uuid.UUID
	CustomerName       string
	CustomerEmail      string
	OriginAddress      string
	DestinationAddress string
	TotalOre           int64
}

// Create opens a booking seeded with the accepted quote's total.
func (s *Service) Create(ctx context.Context, params CreateParams) (*repository.Booking, error) {
	now := time.Now()
	booking := &repository.Booking{
		ID:                 uuid.New(),
		QuoteID:            params.QuoteID,
		JobID:              params.JobID,
		CustomerName:       params.CustomerName,
		CustomerEmail:      params.CustomerEmail,
		OriginAddress:      params.OriginAddress,
		DestinationAddress: params.DestinationAddress,
		TotalPriceOre:      params.TotalOre,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.Create(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// Get returns a booking by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Booking, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all bookings, newest first.
func (s *Service) List(ctx context.Context) ([]repository.Booking, error) {
	return s.store.List(ctx)
}

// SetQuote repoints a booking at the quote now governing its price.
func (s *Service) SetQuote(ctx context.Context, bookingID, quoteID uuid.UUID, origin, destination string) error {
	return s.store.SetQuote(ctx, bookingID, quoteID, origin, destination)
}

// UpdateTotalForJob overwrites the booking's price snapshot after the job's
// price was reconciled.
func (s *Service) UpdateTotalForJob(ctx context.Context, jobID uuid.UUID, totalOre int64) error {
	if err := s.store.SetTotalByJobID(ctx, jobID, totalOre); err != nil {
		return err
	}
	s.log.Info("booking total updated", "job_id", jobID.String(), "total_ore", totalOre)
	return nil
}
