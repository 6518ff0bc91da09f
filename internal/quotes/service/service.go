// Package service implements the quote lifecycle: pricing, issuance,
// acceptance, expiry, and post-issuance recalculation.
package service

import (
	"context"
	"time"

	"nordflytt_backend/internal/events"
	"nordflytt_backend/internal/geo"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/internal/quotes/repository"
	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/config"
	"nordflytt_backend/platform/logger"
	"nordflytt_backend/platform/phone"
	"nordflytt_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Service orchestrates the quote lifecycle. The calculator and allocator are
// pure; all I/O goes through the store, the resolver, and the job/booking ports.
type Service struct {
	store     repository.Store
	calc      *pricing.Calculator
	allocator *pricing.RUTAllocator
	resolver  geo.Resolver
	jobs      JobPort
	bookings  BookingPort
	policy    config.QuotePolicyConfig
	log       *logger.Logger
	eventBus  events.Bus
}

// New creates the quote service.
func New(
	store repository.Store,
	calc *pricing.Calculator,
	allocator *pricing.RUTAllocator,
	resolver geo.Resolver,
	jobs JobPort,
	bookings BookingPort,
	policy config.QuotePolicyConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		store:     store,
		calc:      calc,
		allocator: allocator,
		resolver:  resolver,
		jobs:      jobs,
		bookings:  bookings,
		policy:    policy,
		log:       log,
	}
}

// SetEventBus attaches the event bus for domain event publication.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

// CreateParams is the input to Create. Distance is never accepted from the
// caller; it is resolved server-side from the addresses.
type CreateParams struct {
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	OriginAddress      string
	DestinationAddress string
	VolumeM3           float64
	LivingAreaM2       float64
	OriginAccess       pricing.SideAccess
	DestinationAccess  pricing.SideAccess
	Packing            bool
	Cleaning           bool
	LongCarry          bool
	CarryExtraMeters   float64
	// PriorRUTUsageOre is the customer's known deduction usage this year,
	// nil when the lookup failed. Nil means the quote carries no deduction.
	PriorRUTUsageOre *int64
}

// Create prices a move and stores the result as a draft quote. A distance
// resolution failure fails the whole operation; a quote is never priced on a
// guessed distance.
func (s *Service) Create(ctx context.Context, params CreateParams) (*repository.Quote, error) {
	params.CustomerName = sanitize.Text(params.CustomerName)
	params.CustomerPhone = phone.NormalizeE164(params.CustomerPhone)
	params.OriginAddress = sanitize.Text(params.OriginAddress)
	params.DestinationAddress = sanitize.Text(params.DestinationAddress)

	distanceKm, err := s.resolver.Distance(ctx, params.OriginAddress, params.DestinationAddress)
	if err != nil {
		return nil, err
	}

	spec := pricing.MoveSpec{
		VolumeM3:         params.VolumeM3,
		DistanceKm:       distanceKm,
		Origin:           params.OriginAccess,
		Destination:      params.DestinationAccess,
		LivingAreaM2:     params.LivingAreaM2,
		Packing:          params.Packing,
		Cleaning:         params.Cleaning,
		LongCarry:        params.LongCarry,
		CarryExtraMeters: params.CarryExtraMeters,
	}

	breakdown, err := s.calc.Compute(spec)
	if err != nil {
		return nil, err
	}

	alloc, err := s.allocator.Allocate(breakdown, params.PriorRUTUsageOre)
	if err != nil {
		return nil, err
	}

	number, err := s.store.NextQuoteNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quote := &repository.Quote{
		ID:                 uuid.New(),
		QuoteNumber:        number,
		Status:             repository.StatusDraft,
		CustomerName:       params.CustomerName,
		CustomerEmail:      params.CustomerEmail,
		CustomerPhone:      params.CustomerPhone,
		OriginAddress:      params.OriginAddress,
		DestinationAddress: params.DestinationAddress,
		Spec:               spec,
		Breakdown:          breakdown,
		GrossOre:           alloc.GrossOre,
		EligibleOre:        alloc.EligibleOre,
		DiscountOre:        alloc.DiscountOre,
		TotalOre:           alloc.TotalOre,
		PartialDeduction:   alloc.PartialDeduction,
		RUTReason:          string(alloc.Reason),
		PriorRUTUsageOre:   params.PriorRUTUsageOre,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.Create(ctx, quote); err != nil {
		return nil, err
	}

	return quote, nil
}

// Get returns a quote by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Quote, error) {
	return s.store.GetByID(ctx, id)
}

// List returns quotes with filtering and pagination.
func (s *Service) List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return s.store.List(ctx, params)
}

// Issue transitions a draft quote to issued and stamps its validity window.
func (s *Service) Issue(ctx context.Context, id uuid.UUID) (*repository.Quote, error) {
	validUntil := time.Now().Add(s.policy.GetQuoteValidity())
	if err := s.store.MarkIssued(ctx, id, validUntil); err != nil {
		return nil, err
	}

	quote, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.QuoteIssued{
		BaseEvent:     events.NewBaseEvent(),
		QuoteID:       quote.ID,
		QuoteNumber:   quote.QuoteNumber,
		CustomerEmail: quote.CustomerEmail,
		CustomerName:  quote.CustomerName,
		TotalOre:      quote.TotalOre,
		ValidUntil:    quote.ValidUntil,
	})

	return quote, nil
}

// Accept transitions an issued quote to accepted. A fresh acceptance opens a
// job and booking; accepting a recalculated quote instead re-prices the
// booking it belongs to and retires the quote it supersedes.
func (s *Service) Accept(ctx context.Context, id uuid.UUID) (*repository.Quote, error) {
	quote, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if quote.Status == repository.StatusIssued && quote.ValidUntil != nil && quote.ValidUntil.Before(time.Now()) {
		if err := s.store.Transition(ctx, id, repository.StatusIssued, repository.StatusExpired); err != nil {
			return nil, err
		}
		s.publishExpired(ctx, quote)
		return nil, apperr.Gone("quote has expired")
	}

	if err := s.store.Transition(ctx, id, repository.StatusIssued, repository.StatusAccepted); err != nil {
		return nil, err
	}

	if quote.BookingID != nil {
		if err := s.commitRecalculated(ctx, quote); err != nil {
			return nil, err
		}
	} else {
		if err := s.openJobAndBooking(ctx, quote); err != nil {
			return nil, err
		}
	}

	return s.store.GetByID(ctx, id)
}

// openJobAndBooking seeds the job and booking from a freshly accepted quote.
func (s *Service) openJobAndBooking(ctx context.Context, quote *repository.Quote) error {
	jobID, err := s.jobs.CreateFromQuote(ctx, CreateJobParams{
		QuoteID:          quote.ID,
		OriginalPriceOre: quote.TotalOre,
		OriginalVolumeM3: quote.Spec.VolumeM3,
		CustomerName:     quote.CustomerName,
		CustomerEmail:    quote.CustomerEmail,
	})
	if err != nil {
		return err
	}

	bookingID, err := s.bookings.CreateFromQuote(ctx, CreateBookingParams{
		QuoteID:            quote.ID,
		JobID:              jobID,
		CustomerName:       quote.CustomerName,
		CustomerEmail:      quote.CustomerEmail,
		OriginAddress:      quote.OriginAddress,
		DestinationAddress: quote.DestinationAddress,
		TotalOre:           quote.TotalOre,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.QuoteAccepted{
		BaseEvent:     events.NewBaseEvent(),
		QuoteID:       quote.ID,
		QuoteNumber:   quote.QuoteNumber,
		JobID:         jobID,
		BookingID:     bookingID,
		CustomerEmail: quote.CustomerEmail,
		CustomerName:  quote.CustomerName,
		TotalOre:      quote.TotalOre,
	})

	return nil
}

// commitRecalculated applies an accepted recalculation: the replaced quote is
// retired and the job is re-priced, which propagates the booking total.
func (s *Service) commitRecalculated(ctx context.Context, quote *repository.Quote) error {
	if quote.SupersedesID == nil {
		return apperr.Internal("recalculated quote has no predecessor")
	}

	old, err := s.store.GetByID(ctx, *quote.SupersedesID)
	if err != nil {
		return err
	}

	booking, err := s.bookings.Get(ctx, *quote.BookingID)
	if err != nil {
		return err
	}

	if err := s.store.MarkSuperseded(ctx, old.ID, quote.ID); err != nil {
		return err
	}

	if err := s.bookings.SetQuote(ctx, booking.ID, quote.ID, quote.OriginAddress, quote.DestinationAddress); err != nil {
		return err
	}

	if err := s.jobs.UpdateOriginalPrice(ctx, booking.JobID, quote.TotalOre); err != nil {
		return err
	}

	s.publish(ctx, events.QuoteSuperseded{
		BaseEvent:     events.NewBaseEvent(),
		OldQuoteID:    old.ID,
		NewQuoteID:    quote.ID,
		QuoteNumber:   quote.QuoteNumber,
		CustomerEmail: quote.CustomerEmail,
		CustomerName:  quote.CustomerName,
		OldTotalOre:   old.TotalOre,
		NewTotalOre:   quote.TotalOre,
		Reconsented:   true,
	})

	return nil
}

// ExpireDue transitions every overdue issued quote to expired. Returns the
// number of quotes expired. Called by the scheduler sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListExpiredDue(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, quote := range due {
		if err := s.store.Transition(ctx, quote.ID, repository.StatusIssued, repository.StatusExpired); err != nil {
			// Raced with an acceptance or another sweep; skip, don't abort.
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return expired, err
		}
		expired++
		s.publishExpired(ctx, &quote)
	}

	return expired, nil
}

func (s *Service) publishExpired(ctx context.Context, quote *repository.Quote) {
	s.publish(ctx, events.QuoteExpired{
		BaseEvent:     events.NewBaseEvent(),
		QuoteID:       quote.ID,
		QuoteNumber:   quote.QuoteNumber,
		CustomerEmail: quote.CustomerEmail,
		CustomerName:  quote.CustomerName,
	})
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, event)
	}
}
