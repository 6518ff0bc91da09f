package service

import (
	"context"
	"time"

	"nordflytt_backend/internal/events"
	"nordflytt_backend/internal/quotes/repository"
	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/sanitize"

	"github.com/google/uuid"
)

// RecalculationResult is the outcome of an address-change recalculation.
type RecalculationResult struct {
	Quote      *repository.Quote
	DistanceKm float64
	DeltaOre   int64
	// RequiresReconsent is set when the delta exceeds the materiality
	// threshold. The booking total is untouched until the customer accepts
	// the new quote.
	RequiresReconsent bool
}

// Recalculate re-prices a booking after its addresses changed. The new
// distance comes from the resolver or not at all; a resolution failure aborts
// the recalculation with no state change. An immaterial delta is committed
// immediately; a material one produces an issued quote awaiting re-consent.
func (s *Service) Recalculate(ctx context.Context, bookingID uuid.UUID, newOrigin, newDestination string) (*RecalculationResult, error) {
	newOrigin = sanitize.Text(newOrigin)
	newDestination = sanitize.Text(newDestination)

	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	old, err := s.store.GetByID(ctx, booking.QuoteID)
	if err != nil {
		return nil, err
	}
	// Expired and superseded quotes are not usable baselines; only the
	// accepted quote behind the booking can be re-priced.
	if old.Status != repository.StatusAccepted {
		return nil, apperr.Validation("only an accepted quote can be recalculated")
	}

	distanceKm, err := s.resolver.Distance(ctx, newOrigin, newDestination)
	if err != nil {
		return nil, err
	}

	spec := old.Spec
	spec.DistanceKm = distanceKm

	breakdown, err := s.calc.Compute(spec)
	if err != nil {
		return nil, err
	}

	alloc, err := s.allocator.Allocate(breakdown, old.PriorRUTUsageOre)
	if err != nil {
		return nil, err
	}

	delta := alloc.TotalOre - old.TotalOre
	material := s.exceedsMateriality(old.TotalOre, delta)

	number, err := s.store.NextQuoteNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	validUntil := now.Add(s.policy.GetQuoteValidity())
	newQuote := &repository.Quote{
		ID:                 uuid.New(),
		QuoteNumber:        number,
		CustomerName:       old.CustomerName,
		CustomerEmail:      old.CustomerEmail,
		CustomerPhone:      old.CustomerPhone,
		OriginAddress:      newOrigin,
		DestinationAddress: newDestination,
		Spec:               spec,
		Breakdown:          breakdown,
		GrossOre:           alloc.GrossOre,
		EligibleOre:        alloc.EligibleOre,
		DiscountOre:        alloc.DiscountOre,
		TotalOre:           alloc.TotalOre,
		PartialDeduction:   alloc.PartialDeduction,
		RUTReason:          string(alloc.Reason),
		PriorRUTUsageOre:   old.PriorRUTUsageOre,
		SupersedesID:       &old.ID,
		BookingID:          &booking.ID,
		ValidUntil:         &validUntil,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if material {
		// Price changes above the threshold are trust-sensitive: nothing is
		// overwritten until the customer accepts the new quote.
		newQuote.Status = repository.StatusIssued
		if err := s.store.Create(ctx, newQuote); err != nil {
			return nil, err
		}

		s.publish(ctx, events.QuoteIssued{
			BaseEvent:     events.NewBaseEvent(),
			QuoteID:       newQuote.ID,
			QuoteNumber:   newQuote.QuoteNumber,
			CustomerEmail: newQuote.CustomerEmail,
			CustomerName:  newQuote.CustomerName,
			TotalOre:      newQuote.TotalOre,
			ValidUntil:    newQuote.ValidUntil,
		})

		s.log.PriceEvent("recalculation_requires_reconsent", booking.JobID.String(), delta)
		return &RecalculationResult{
			Quote:             newQuote,
			DistanceKm:        distanceKm,
			DeltaOre:          delta,
			RequiresReconsent: true,
		}, nil
	}

	newQuote.Status = repository.StatusAccepted
	if err := s.store.Create(ctx, newQuote); err != nil {
		return nil, err
	}
	if err := s.store.MarkSuperseded(ctx, old.ID, newQuote.ID); err != nil {
		return nil, err
	}
	if err := s.bookings.SetQuote(ctx, booking.ID, newQuote.ID, newOrigin, newDestination); err != nil {
		return nil, err
	}
	if err := s.jobs.UpdateOriginalPrice(ctx, booking.JobID, newQuote.TotalOre); err != nil {
		return nil, err
	}

	s.publish(ctx, events.QuoteSuperseded{
		BaseEvent:     events.NewBaseEvent(),
		OldQuoteID:    old.ID,
		NewQuoteID:    newQuote.ID,
		QuoteNumber:   newQuote.QuoteNumber,
		CustomerEmail: newQuote.CustomerEmail,
		CustomerName:  newQuote.CustomerName,
		OldTotalOre:   old.TotalOre,
		NewTotalOre:   newQuote.TotalOre,
	})

	s.log.PriceEvent("recalculation_committed", booking.JobID.String(), delta)
	return &RecalculationResult{
		Quote:      newQuote,
		DistanceKm: distanceKm,
		DeltaOre:   delta,
	}, nil
}

// exceedsMateriality reports whether delta crosses the configured threshold
// in basis points of the accepted total. Integer arithmetic only.
func (s *Service) exceedsMateriality(acceptedOre, deltaOre int64) bool {
	if deltaOre < 0 {
		deltaOre = -deltaOre
	}
	if acceptedOre <= 0 {
		return deltaOre != 0
	}
	return deltaOre*10000 > acceptedOre*s.policy.GetMaterialityThresholdBps()
}
