// Package service implements the job lifecycle, the append-only service
// ledger, and the price reconciler.
package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"nordflytt_backend/internal/events"
	"nordflytt_backend/internal/jobs/repository"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/logger"

	"github.com/google/uuid"
)

// reconcileAttempts bounds the optimistic-lock retry loop. Exhausting it is a
// consistency defect, not a transient condition.
const reconcileAttempts = 3

// ledgerToleranceOre is the accepted rounding slack between a submitted total
// and quantity × unit price.
const ledgerToleranceOre = 1

// BookingPort propagates a reconciled final price to the booking snapshot.
type BookingPort interface {
	UpdateTotalForJob(ctx context.Context, jobID uuid.UUID, totalOre int64) error
}

// Service orchestrates jobs, their ledgers, and price reconciliation.
type Service struct {
	store    repository.Store
	bookings BookingPort
	rates    pricing.RateCard
	log      *logger.Logger
	eventBus events.Bus
}

// New creates the jobs service.
func New(store repository.Store, bookings BookingPort, rates pricing.RateCard, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		bookings: bookings,
		rates:    rates,
		log:      log,
	}
}

// SetEventBus attaches the event bus for domain event publication.
func (s *Service) SetEventBus(bus events.Bus) {
	s.eventBus = bus
}

// CreateParams seeds a job from an accepted quote.
type CreateParams struct {
	QuoteID          uuid.UUID
	OriginalPriceOre int64
	OriginalVolumeM3 float64
	CustomerName     string
	CustomerEmail    string
}

// Create opens a scheduled job with the quote's discounted total frozen as
// the original price.
func (s *Service) Create(ctx context.Context, params CreateParams) (*repository.Job, error) {
	if params.OriginalPriceOre < 0 {
		return nil, apperr.Validation("original price must not be negative")
	}

	now := time.Now()
	job := &repository.Job{
		ID:               uuid.New(),
		QuoteID:          params.QuoteID,
		CustomerName:     params.CustomerName,
		CustomerEmail:    params.CustomerEmail,
		Status:           repository.StatusScheduled,
		OriginalPriceOre: params.OriginalPriceOre,
		FinalPriceOre:    params.OriginalPriceOre,
		OriginalVolumeM3: params.OriginalVolumeM3,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns a job by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*repository.Job, error) {
	return s.store.GetJob(ctx, id)
}

// List returns jobs, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *repository.Status) ([]repository.Job, error) {
	return s.store.ListJobs(ctx, status)
}

// validTransitions is the job lifecycle: forward only, never deleted.
var validTransitions = map[repository.Status]repository.Status{
	repository.StatusScheduled:  repository.StatusInProgress,
	repository.StatusInProgress: repository.StatusCompleted,
	repository.StatusCompleted:  repository.StatusInvoiced,
}

// Advance moves a job to the next lifecycle status.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, to repository.Status) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if validTransitions[job.Status] != to {
		return apperr.Validation(fmt.Sprintf("cannot move a %s job to %s", job.Status, to))
	}
	return s.store.TransitionJob(ctx, id, job.Status, to)
}

// AppendParams describes a ledger entry to append. TotalPriceOre is the
// submitting client's computation and is validated, never trusted.
type AppendParams struct {
	Category      repository.EntryCategory
	Description   string
	Quantity      float64
	Unit          string
	UnitPriceOre  int64
	TotalPriceOre int64
	RUTEligible   bool
	AddedBy       string
}

// Append validates and appends a ledger entry. The ledger is append-only:
// mistakes are reversed by appending a correction entry, never by editing.
func (s *Service) Append(ctx context.Context, jobID uuid.UUID, params AppendParams) (*repository.LedgerEntry, error) {
	if err := validateEntry(params); err != nil {
		return nil, err
	}
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	entry := &repository.LedgerEntry{
		ID:            uuid.New(),
		JobID:         jobID,
		Category:      params.Category,
		Description:   params.Description,
		Quantity:      params.Quantity,
		Unit:          params.Unit,
		UnitPriceOre:  params.UnitPriceOre,
		TotalPriceOre: params.TotalPriceOre,
		RUTEligible:   params.RUTEligible,
		AddedBy:       params.AddedBy,
		CreatedAt:     time.Now(),
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func validateEntry(params AppendParams) error {
	switch params.Category {
	case repository.CategoryPacking, repository.CategoryMaterials, repository.CategoryOther,
		repository.CategoryCorrection, repository.CategoryVolumeOverage:
	default:
		return apperr.Validation("unknown ledger category")
	}

	if math.IsNaN(params.Quantity) || math.IsInf(params.Quantity, 0) || params.Quantity <= 0 {
		return apperr.Validation("quantity must be a finite positive number")
	}
	if params.UnitPriceOre < 0 {
		return apperr.Validation("unit price must not be negative")
	}

	expected := int64(math.Round(params.Quantity * float64(params.UnitPriceOre)))
	if params.Category == repository.CategoryCorrection {
		// Corrections reverse a prior entry: same magnitude, negated.
		expected = -expected
	}
	if diff := params.TotalPriceOre - expected; diff > ledgerToleranceOre || diff < -ledgerToleranceOre {
		return apperr.Validation(fmt.Sprintf(
			"total price %d does not match quantity × unit price (%d)", params.TotalPriceOre, expected))
	}

	return nil
}

// ListEntries returns a job's ledger in append order.
func (s *Service) ListEntries(ctx context.Context, jobID uuid.UUID) ([]repository.LedgerEntry, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, jobID)
}

// ReconcileResult is the outcome of a reconciliation.
type ReconcileResult struct {
	JobID            uuid.UUID `json:"jobId"`
	AddedServicesOre int64     `json:"addedServicesOre"`
	FinalPriceOre    int64     `json:"finalPriceOre"`
	DeltaOre         int64     `json:"deltaOre"`
}

// Reconcile derives the job's authoritative final price from its original
// price plus the ledger aggregate, writes it under the optimistic version
// check, and propagates the new total to the booking snapshot. Idempotent: a
// second call without a ledger change reports a zero delta, skips the job
// write, and re-propagates the unchanged total to the booking.
//
// Exhausting the retry budget means the stored totals cannot be trusted; the
// job's price is latched locked and the failure is surfaced as a consistency
// error rather than swallowed.
func (s *Service) Reconcile(ctx context.Context, jobID uuid.UUID) (*ReconcileResult, error) {
	for attempt := 1; attempt <= reconcileAttempts; attempt++ {
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.PriceLocked {
			return nil, apperr.Consistency("job price is locked pending manual reconciliation")
		}

		added, err := s.store.SumEntries(ctx, jobID)
		if err != nil {
			return nil, err
		}

		final := job.OriginalPriceOre + added
		delta := final - job.FinalPriceOre

		if delta == 0 && added == job.AddedServicesOre {
			// The job row is already correct, but a prior attempt may have
			// written it and then failed before the booking copy. The snapshot
			// is re-propagated even when the job row needs no write.
			if err := s.propagate(ctx, job, final, 0); err != nil {
				return nil, err
			}
			return &ReconcileResult{
				JobID:            jobID,
				AddedServicesOre: added,
				FinalPriceOre:    final,
			}, nil
		}

		err = s.store.UpdateDerivedPrice(ctx, jobID, added, final, job.Version)
		if apperr.Is(err, apperr.KindConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.propagate(ctx, job, final, delta); err != nil {
			return nil, err
		}

		return &ReconcileResult{
			JobID:            jobID,
			AddedServicesOre: added,
			FinalPriceOre:    final,
			DeltaOre:         delta,
		}, nil
	}

	// Stored totals may diverge from the ledger. Block further price writes
	// until someone looks.
	if err := s.store.SetPriceLocked(ctx, jobID, true); err != nil {
		return nil, err
	}
	if job, err := s.store.GetJob(ctx, jobID); err == nil {
		derived, sumErr := s.store.SumEntries(ctx, jobID)
		if sumErr == nil {
			s.log.ConsistencyDefect(jobID.String(), job.FinalPriceOre, job.OriginalPriceOre+derived)
		}
	}
	s.publish(ctx, events.JobPriceLocked{
		BaseEvent: events.NewBaseEvent(),
		JobID:     jobID,
		Reason:    "reconciliation retries exhausted",
	})

	return nil, apperr.Consistency("reconciliation retries exhausted; job price locked")
}

// propagate copies the reconciled total onto the booking and discloses the
// delta. The booking total is a snapshot, updated here and nowhere else.
func (s *Service) propagate(ctx context.Context, job *repository.Job, finalOre, deltaOre int64) error {
	if err := s.bookings.UpdateTotalForJob(ctx, job.ID, finalOre); err != nil {
		return err
	}

	if deltaOre != 0 {
		s.log.PriceEvent("job_reconciled", job.ID.String(), deltaOre)
		s.publish(ctx, events.JobPriceReconciled{
			BaseEvent:     events.NewBaseEvent(),
			JobID:         job.ID,
			CustomerEmail: job.CustomerEmail,
			CustomerName:  job.CustomerName,
			FinalOre:      finalOre,
			DeltaOre:      deltaOre,
		})
	}
	return nil
}

// UpdateOriginalPrice replaces the frozen original price after a consented
// recalculation, then re-derives the final price.
func (s *Service) UpdateOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre int64) error {
	if originalOre < 0 {
		return apperr.Validation("original price must not be negative")
	}

	for attempt := 1; attempt <= reconcileAttempts; attempt++ {
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return err
		}

		err = s.store.SetOriginalPrice(ctx, jobID, originalOre, job.Version)
		if apperr.Is(err, apperr.KindConflict) {
			continue
		}
		if err != nil {
			return err
		}

		_, err = s.Reconcile(ctx, jobID)
		return err
	}

	return apperr.Conflict("could not update original price: job version kept changing")
}

// UnlockPrice clears the consistency latch after manual review.
func (s *Service) UnlockPrice(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.PriceLocked {
		return apperr.Validation("job price is not locked")
	}

	if err := s.store.SetPriceLocked(ctx, jobID, false); err != nil {
		return err
	}
	s.log.Info("job price unlocked", "job_id", jobID.String())
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, event)
	}
}
