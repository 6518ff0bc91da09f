package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"nordflytt_backend/internal/jobs/repository"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/logger"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubBookings struct {
	mu     sync.Mutex
	totals map[uuid.UUID]int64
	calls  int
	err    error
}

func newStubBookings() *stubBookings {
	return &stubBookings{totals: make(map[uuid.UUID]int64)}
}

func (s *stubBookings) UpdateTotalForJob(ctx context.Context, jobID uuid.UUID, totalOre int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.totals[jobID] = totalOre
	return nil
}

// conflictingStore injects version conflicts into derived-price writes to
// simulate concurrent reconcilers racing on the same job.
type conflictingStore struct {
	repository.Store
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingStore) UpdateDerivedPrice(ctx context.Context, jobID uuid.UUID, addedOre, finalOre, expectedVersion int64) error {
	c.mu.Lock()
	remaining := c.conflicts
	if remaining > 0 {
		c.conflicts--
	}
	c.mu.Unlock()

	if remaining > 0 {
		return apperr.Conflict("job version changed during price update")
	}
	return c.Store.UpdateDerivedPrice(ctx, jobID, addedOre, finalOre, expectedVersion)
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

type fixture struct {
	svc      *Service
	store    *repository.Memory
	bookings *stubBookings
}

// testRates bills volume overages at 100 kr per m³.
func testRates() pricing.RateCard {
	return pricing.RateCard{
		BaseRateSmallOre:    10000,
		BaseRateMidOre:      10000,
		BaseRateLargeOre:    10000,
		BaseRateBulkOre:     10000,
		TruckCapacityM3:     1000,
		ExtraVolumeOrePerM3: 10000,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    repository.NewMemory(),
		bookings: newStubBookings(),
	}
	f.svc = New(f.store, f.bookings, testRates(), logger.New("development"))
	return f
}

// newJob creates a scheduled job with a 10 000 kr original price and a
// 20 m³ quoted volume.
func newJob(t *testing.T, f *fixture) *repository.Job {
	t.Helper()
	job, err := f.svc.Create(context.Background(), CreateParams{
		QuoteID:          uuid.New(),
		OriginalPriceOre: 1000000,
		OriginalVolumeM3: 20,
		CustomerName:     "Anna Lindqvist",
		CustomerEmail:    "anna@example.se",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func packingEntry(totalOre int64) AppendParams {
	return AppendParams{
		Category:      repository.CategoryPacking,
		Description:   "Packing help, bedroom",
		Quantity:      2,
		Unit:          "hour",
		UnitPriceOre:  totalOre / 2,
		TotalPriceOre: totalOre,
		RUTEligible:   true,
		AddedBy:       "crew-7",
	}
}

// ── Job lifecycle ─────────────────────────────────────────────────────────────

func TestCreateFreezesOriginalPrice(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)

	if job.Status != repository.StatusScheduled {
		t.Fatalf("status: want scheduled, got %s", job.Status)
	}
	if job.OriginalPriceOre != 1000000 || job.FinalPriceOre != 1000000 {
		t.Fatalf("original/final: want 1000000/1000000, got %d/%d",
			job.OriginalPriceOre, job.FinalPriceOre)
	}
	if job.AddedServicesOre != 0 {
		t.Fatalf("added services: want 0, got %d", job.AddedServicesOre)
	}
	if job.Version != 1 {
		t.Fatalf("version: want 1, got %d", job.Version)
	}
}

func TestAdvanceFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	steps := []repository.Status{
		repository.StatusInProgress,
		repository.StatusCompleted,
		repository.StatusInvoiced,
	}
	for _, to := range steps {
		if err := f.svc.Advance(ctx, job.ID, to); err != nil {
			t.Fatalf("Advance to %s: %v", to, err)
		}
	}

	if err := f.svc.Advance(ctx, job.ID, repository.StatusScheduled); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("backwards transition: want validation error, got %v", err)
	}
}

func TestAdvanceRejectsSkippedStatus(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)

	err := f.svc.Advance(context.Background(), job.ID, repository.StatusCompleted)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

// ── Ledger validation ─────────────────────────────────────────────────────────

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*AppendParams)
	}{
		{"unknown category", func(p *AppendParams) { p.Category = "discount" }},
		{"zero quantity", func(p *AppendParams) { p.Quantity = 0 }},
		{"negative quantity", func(p *AppendParams) { p.Quantity = -1 }},
		{"negative unit price", func(p *AppendParams) { p.UnitPriceOre = -100; p.TotalPriceOre = -200 }},
		{"total mismatch", func(p *AppendParams) { p.TotalPriceOre += 500 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := packingEntry(50000)
			tc.mutate(&params)
			if _, err := f.svc.Append(ctx, job.ID, params); !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestAppendToleratesOneOreRounding(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)

	params := AppendParams{
		Category:      repository.CategoryMaterials,
		Description:   "Moving boxes",
		Quantity:      3,
		Unit:          "pcs",
		UnitPriceOre:  3333,
		TotalPriceOre: 10000, // 3 × 3333 = 9999, off by one öre
		AddedBy:       "crew-7",
	}
	if _, err := f.svc.Append(context.Background(), job.ID, params); err != nil {
		t.Fatalf("Append within tolerance: %v", err)
	}
}

func TestAppendCorrectionMustNegate(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	correction := AppendParams{
		Category:      repository.CategoryCorrection,
		Description:   "Reversal: packing entered twice",
		Quantity:      2,
		Unit:          "hour",
		UnitPriceOre:  25000,
		TotalPriceOre: -50000,
		AddedBy:       "office",
	}
	if _, err := f.svc.Append(ctx, job.ID, correction); err != nil {
		t.Fatalf("Append correction: %v", err)
	}

	// A correction carrying a positive total is a mistake, not a reversal.
	correction.TotalPriceOre = 50000
	if _, err := f.svc.Append(ctx, job.ID, correction); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("positive correction: want validation error, got %v", err)
	}
}

func TestAppendUnknownJob(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Append(context.Background(), uuid.New(), packingEntry(50000))
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

// ── Reconciliation ────────────────────────────────────────────────────────────

func TestReconcileDerivesFinalPrice(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := f.svc.Append(ctx, job.ID, packingEntry(30000)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	result, err := f.svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.FinalPriceOre != 1080000 {
		t.Fatalf("final: want 1080000, got %d", result.FinalPriceOre)
	}
	if result.DeltaOre != 80000 {
		t.Fatalf("delta: want 80000, got %d", result.DeltaOre)
	}

	// The booking snapshot carries the reconciled total.
	if f.bookings.totals[job.ID] != 1080000 {
		t.Fatalf("booking total: want 1080000, got %d", f.bookings.totals[job.ID])
	}

	stored, err := f.svc.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.FinalPriceOre != 1080000 || stored.AddedServicesOre != 80000 {
		t.Fatalf("stored final/added: want 1080000/80000, got %d/%d",
			stored.FinalPriceOre, stored.AddedServicesOre)
	}
	if stored.Version != 2 {
		t.Fatalf("version after reconcile: want 2, got %d", stored.Version)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := f.svc.Reconcile(ctx, job.ID); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	versionAfterFirst := mustGet(t, f, job.ID).Version

	result, err := f.svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if result.DeltaOre != 0 {
		t.Fatalf("second delta: want 0, got %d", result.DeltaOre)
	}
	if result.FinalPriceOre != 1050000 {
		t.Fatalf("second final: want 1050000, got %d", result.FinalPriceOre)
	}

	// No job write happened, and the booking snapshot still matches.
	if got := mustGet(t, f, job.ID).Version; got != versionAfterFirst {
		t.Fatalf("version changed on idempotent reconcile: %d → %d", versionAfterFirst, got)
	}
	if f.bookings.totals[job.ID] != 1050000 {
		t.Fatalf("booking total: want 1050000, got %d", f.bookings.totals[job.ID])
	}
}

func TestReconcileRepairsBookingAfterFailedPropagation(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// The job write commits, then the booking write fails.
	f.bookings.err = fmt.Errorf("booking store unavailable")
	if _, err := f.svc.Reconcile(ctx, job.ID); err == nil {
		t.Fatalf("expected Reconcile to surface the booking failure")
	}
	stored := mustGet(t, f, job.ID)
	if stored.FinalPriceOre != 1050000 {
		t.Fatalf("job final after failed propagation: want 1050000, got %d", stored.FinalPriceOre)
	}
	if _, ok := f.bookings.totals[job.ID]; ok {
		t.Fatalf("booking total written despite failure")
	}

	// The next reconcile finds nothing to re-derive but still heals the
	// stale booking snapshot.
	f.bookings.err = nil
	result, err := f.svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("Reconcile after recovery: %v", err)
	}
	if result.DeltaOre != 0 || result.FinalPriceOre != 1050000 {
		t.Fatalf("final/delta: want 1050000/0, got %d/%d", result.FinalPriceOre, result.DeltaOre)
	}
	if f.bookings.totals[job.ID] != 1050000 {
		t.Fatalf("booking total not healed: want 1050000, got %d", f.bookings.totals[job.ID])
	}
}

func TestReconcileRetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	racing := &conflictingStore{Store: f.store, conflicts: 2}
	svc := New(racing, f.bookings, testRates(), logger.New("development"))

	result, err := svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("Reconcile with conflicts: %v", err)
	}
	if result.FinalPriceOre != 1050000 {
		t.Fatalf("final: want 1050000, got %d", result.FinalPriceOre)
	}
}

func TestReconcileLocksPriceOnExhaustedRetries(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	racing := &conflictingStore{Store: f.store, conflicts: 3}
	svc := New(racing, f.bookings, testRates(), logger.New("development"))

	_, err := svc.Reconcile(ctx, job.ID)
	if !apperr.Is(err, apperr.KindConsistency) {
		t.Fatalf("want consistency error, got %v", err)
	}

	stored := mustGet(t, f, job.ID)
	if !stored.PriceLocked {
		t.Fatalf("job price not locked after exhausted retries")
	}
	if stored.FinalPriceOre != 1000000 {
		t.Fatalf("final price changed despite lock: got %d", stored.FinalPriceOre)
	}

	// The latch blocks further price writes until cleared.
	if _, err := f.svc.Reconcile(ctx, job.ID); !apperr.Is(err, apperr.KindConsistency) {
		t.Fatalf("reconcile on locked job: want consistency error, got %v", err)
	}
	if err := f.svc.UpdateOriginalPrice(ctx, job.ID, 900000); !apperr.Is(err, apperr.KindConsistency) {
		t.Fatalf("original price write on locked job: want consistency error, got %v", err)
	}

	if err := f.svc.UnlockPrice(ctx, job.ID); err != nil {
		t.Fatalf("UnlockPrice: %v", err)
	}
	if _, err := f.svc.Reconcile(ctx, job.ID); err != nil {
		t.Fatalf("Reconcile after unlock: %v", err)
	}
	if mustGet(t, f, job.ID).FinalPriceOre != 1050000 {
		t.Fatalf("final after unlock: want 1050000, got %d", mustGet(t, f, job.ID).FinalPriceOre)
	}
}

func TestReconcileAfterCorrection(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := f.svc.Append(ctx, job.ID, AppendParams{
		Category:      repository.CategoryCorrection,
		Description:   "Reversal: packing not performed",
		Quantity:      2,
		Unit:          "hour",
		UnitPriceOre:  25000,
		TotalPriceOre: -50000,
		AddedBy:       "office",
	}); err != nil {
		t.Fatalf("Append correction: %v", err)
	}

	result, err := f.svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.FinalPriceOre != 1000000 {
		t.Fatalf("final after reversal: want 1000000, got %d", result.FinalPriceOre)
	}

	// Both entries remain in the ledger; nothing was edited away.
	entries, err := f.svc.ListEntries(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries: want 2, got %d", len(entries))
	}
}

func TestConcurrentAppendsNeverLoseEntries(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Append(ctx, job.ID, AppendParams{
				Category:      repository.CategoryOther,
				Description:   fmt.Sprintf("extra stop %d", i),
				Quantity:      1,
				Unit:          "pcs",
				UnitPriceOre:  1000,
				TotalPriceOre: 1000,
				AddedBy:       "crew-7",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Append: %v", err)
		}
	}

	result, err := f.svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.AddedServicesOre != workers*1000 {
		t.Fatalf("added services: want %d, got %d", workers*1000, result.AddedServicesOre)
	}
}

// ── Original price updates ────────────────────────────────────────────────────

func TestUpdateOriginalPriceRederivesFinal(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)
	ctx := context.Background()

	if _, err := f.svc.Append(ctx, job.ID, packingEntry(50000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := f.svc.Reconcile(ctx, job.ID); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if err := f.svc.UpdateOriginalPrice(ctx, job.ID, 1200000); err != nil {
		t.Fatalf("UpdateOriginalPrice: %v", err)
	}

	stored := mustGet(t, f, job.ID)
	if stored.OriginalPriceOre != 1200000 {
		t.Fatalf("original: want 1200000, got %d", stored.OriginalPriceOre)
	}
	if stored.FinalPriceOre != 1250000 {
		t.Fatalf("final: want 1250000, got %d", stored.FinalPriceOre)
	}
	if f.bookings.totals[job.ID] != 1250000 {
		t.Fatalf("booking total: want 1250000, got %d", f.bookings.totals[job.ID])
	}
}

// ── Volume adjustments ────────────────────────────────────────────────────────

func TestVolumeOverageIsBilled(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f) // 20 m³ quoted
	ctx := context.Background()

	entry, err := f.svc.RecordVolumeAdjustment(ctx, job.ID, 25, "crew-7")
	if err != nil {
		t.Fatalf("RecordVolumeAdjustment: %v", err)
	}
	if entry == nil {
		t.Fatalf("expected an overage entry")
	}
	// 5 m³ extra at 100 kr per m³.
	if entry.TotalPriceOre != 50000 {
		t.Fatalf("overage total: want 50000, got %d", entry.TotalPriceOre)
	}
	if entry.Category != repository.CategoryVolumeOverage {
		t.Fatalf("category: want volume_overage, got %s", entry.Category)
	}
	if !entry.RUTEligible {
		t.Fatalf("overage labour should be RUT-eligible")
	}

	stored := mustGet(t, f, job.ID)
	if stored.ActualVolumeM3 == nil || *stored.ActualVolumeM3 != 25 {
		t.Fatalf("actual volume not stored")
	}
}

func TestVolumeUnderageIsNeverRefunded(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f) // 20 m³ quoted
	ctx := context.Background()

	entry, err := f.svc.RecordVolumeAdjustment(ctx, job.ID, 18, "crew-7")
	if err != nil {
		t.Fatalf("RecordVolumeAdjustment: %v", err)
	}
	if entry != nil {
		t.Fatalf("underage produced a ledger entry: %+v", entry)
	}

	// The measurement is stored even though nothing was billed.
	stored := mustGet(t, f, job.ID)
	if stored.ActualVolumeM3 == nil || *stored.ActualVolumeM3 != 18 {
		t.Fatalf("actual volume not stored")
	}

	entries, err := f.svc.ListEntries(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("ledger entries: want 0, got %d", len(entries))
	}

	result, err := f.svc.Reconcile(ctx, job.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.FinalPriceOre != 1000000 || result.DeltaOre != 0 {
		t.Fatalf("final/delta: want 1000000/0, got %d/%d", result.FinalPriceOre, result.DeltaOre)
	}
}

func TestVolumeAdjustmentRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	job := newJob(t, f)

	if _, err := f.svc.RecordVolumeAdjustment(context.Background(), job.ID, -1, "crew-7"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func mustGet(t *testing.T, f *fixture, id uuid.UUID) *repository.Job {
	t.Helper()
	job, err := f.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return job
}
