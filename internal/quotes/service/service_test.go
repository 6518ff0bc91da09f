package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"nordflytt_backend/internal/events"
	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/internal/quotes/repository"
	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/logger"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubResolver struct {
	km    float64
	err   error
	calls int
}

func (s *stubResolver) Distance(ctx context.Context, origin, destination string) (float64, error) {
	s.calls++
	return s.km, s.err
}

type stubJobs struct {
	created      []CreateJobParams
	priceUpdates map[uuid.UUID]int64
	nextJobID    uuid.UUID
}

func newStubJobs() *stubJobs {
	return &stubJobs{priceUpdates: make(map[uuid.UUID]int64), nextJobID: uuid.New()}
}

func (s *stubJobs) CreateFromQuote(ctx context.Context, params CreateJobParams) (uuid.UUID, error) {
	s.created = append(s.created, params)
	return s.nextJobID, nil
}

func (s *stubJobs) UpdateOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre int64) error {
	s.priceUpdates[jobID] = originalOre
	return nil
}

type stubBookings struct {
	created   []CreateBookingParams
	refs      map[uuid.UUID]BookingRef
	nextID    uuid.UUID
	setQuotes int
}

func newStubBookings() *stubBookings {
	return &stubBookings{refs: make(map[uuid.UUID]BookingRef), nextID: uuid.New()}
}

func (s *stubBookings) CreateFromQuote(ctx context.Context, params CreateBookingParams) (uuid.UUID, error) {
	s.created = append(s.created, params)
	s.refs[s.nextID] = BookingRef{ID: s.nextID, JobID: params.JobID, QuoteID: params.QuoteID}
	return s.nextID, nil
}

func (s *stubBookings) Get(ctx context.Context, bookingID uuid.UUID) (BookingRef, error) {
	ref, ok := s.refs[bookingID]
	if !ok {
		return BookingRef{}, apperr.NotFound("booking not found")
	}
	return ref, nil
}

func (s *stubBookings) SetQuote(ctx context.Context, bookingID, quoteID uuid.UUID, origin, destination string) error {
	ref := s.refs[bookingID]
	ref.QuoteID = quoteID
	s.refs[bookingID] = ref
	s.setQuotes++
	return nil
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func (b *recordingBus) lastSuperseded(t *testing.T) events.QuoteSuperseded {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.published) - 1; i >= 0; i-- {
		if e, ok := b.published[i].(events.QuoteSuperseded); ok {
			return e
		}
	}
	t.Fatal("no QuoteSuperseded event published")
	return events.QuoteSuperseded{}
}

type stubPolicy struct {
	validity     time.Duration
	thresholdBps int64
}

func (s stubPolicy) GetQuoteValidity() time.Duration   { return s.validity }
func (s stubPolicy) GetMaterialityThresholdBps() int64 { return s.thresholdBps }

// ── Fixtures ──────────────────────────────────────────────────────────────────

// flatRateCard prices 100 kr per m³ and 10 kr per billable km with nothing
// else, which makes expected totals trivial to derive in tests.
func flatRateCard() pricing.RateCard {
	return pricing.RateCard{
		BaseRateSmallOre: 10000,
		BaseRateMidOre:   10000,
		BaseRateLargeOre: 10000,
		BaseRateBulkOre:  10000,
		RegionalKmOre:    1000,
		LongHaulKmOre:    1000,
		LongHaulFromKm:   10000,
		TruckCapacityM3:  1000,
	}
}

type fixture struct {
	svc      *Service
	store    *repository.Memory
	resolver *stubResolver
	jobs     *stubJobs
	bookings *stubBookings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	card := flatRateCard()
	if err := card.Validate(); err != nil {
		t.Fatalf("rate card: %v", err)
	}

	allocator, err := pricing.NewRUTAllocator(5000, 7500000)
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}

	f := &fixture{
		store:    repository.NewMemory(),
		resolver: &stubResolver{km: 50},
		jobs:     newStubJobs(),
		bookings: newStubBookings(),
	}
	f.svc = New(
		f.store,
		pricing.NewCalculator(card, nil),
		allocator,
		f.resolver,
		f.jobs,
		f.bookings,
		stubPolicy{validity: 30 * 24 * time.Hour, thresholdBps: 200},
		logger.New("development"),
	)
	return f
}

func createParams() CreateParams {
	return CreateParams{
		CustomerName:       "Anna Lindqvist",
		CustomerEmail:      "anna@example.se",
		OriginAddress:      "Sveavägen 1, Stockholm",
		DestinationAddress: "Avenyn 1, Göteborg",
		VolumeM3:           10,
		OriginAccess:       pricing.SideAccess{Elevator: pricing.ElevatorNone},
		DestinationAccess:  pricing.SideAccess{Elevator: pricing.ElevatorNone},
		PriorRUTUsageOre:   int64Ptr(0),
	}
}

// acceptedQuote drives a quote through create → issue → accept and returns it
// with the booking it opened.
func acceptedQuote(t *testing.T, f *fixture) (*repository.Quote, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	quote, err := f.svc.Create(ctx, createParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Issue(ctx, quote.ID); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	quote, err = f.svc.Accept(ctx, quote.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return quote, f.bookings.nextID
}

// ── Lifecycle tests ───────────────────────────────────────────────────────────

func TestCreatePricesServerSide(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Create(context.Background(), createParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// 10 m³ × 100 kr + 50 km × 10 kr = 1500 kr gross, 50% RUT on the base.
	if quote.GrossOre != 150000 {
		t.Fatalf("gross: want 150000, got %d", quote.GrossOre)
	}
	if quote.DiscountOre != 50000 {
		t.Fatalf("discount: want 50000, got %d", quote.DiscountOre)
	}
	if quote.TotalOre != 100000 {
		t.Fatalf("total: want 100000, got %d", quote.TotalOre)
	}
	if quote.Status != repository.StatusDraft {
		t.Fatalf("status: want draft, got %s", quote.Status)
	}
	if quote.Spec.DistanceKm != 50 {
		t.Fatalf("distance must come from the resolver, got %f", quote.Spec.DistanceKm)
	}
	if quote.QuoteNumber == "" {
		t.Fatal("quote number not assigned")
	}
}

func TestCreateWithoutUsageFigureGrantsNoDeduction(t *testing.T) {
	f := newFixture(t)

	params := createParams()
	params.PriorRUTUsageOre = nil
	quote, err := f.svc.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if quote.DiscountOre != 0 || quote.TotalOre != quote.GrossOre {
		t.Fatalf("unknown usage must not discount: %+v", quote)
	}
	if quote.RUTReason != string(pricing.ReasonRUTUnavailable) {
		t.Fatalf("expected rut_unavailable reason, got %q", quote.RUTReason)
	}
}

func TestCreateFailsWhenDistanceUnresolvable(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = apperr.Unavailable("distance could not be resolved")

	_, err := f.svc.Create(context.Background(), createParams())
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	result, err := f.svc.List(context.Background(), repository.ListParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 0 {
		t.Fatalf("no quote may be stored on a failed resolution, got %d", result.Total)
	}
}

func TestIssueStampsValidity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quote, err := f.svc.Create(ctx, createParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	issued, err := f.svc.Issue(ctx, quote.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Status != repository.StatusIssued {
		t.Fatalf("status: want issued, got %s", issued.Status)
	}
	if issued.ValidUntil == nil || !issued.ValidUntil.After(time.Now()) {
		t.Fatalf("validity window not stamped: %+v", issued.ValidUntil)
	}

	// Issuing twice conflicts.
	if _, err := f.svc.Issue(ctx, quote.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double issue, got %v", err)
	}
}

func TestAcceptOpensJobAndBooking(t *testing.T) {
	f := newFixture(t)

	params := createParams()
	params.PriorRUTUsageOre = int64Ptr(0)
	ctx := context.Background()
	quote, err := f.svc.Create(ctx, params)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Issue(ctx, quote.ID); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	accepted, err := f.svc.Accept(ctx, quote.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != repository.StatusAccepted {
		t.Fatalf("status: want accepted, got %s", accepted.Status)
	}

	if len(f.jobs.created) != 1 {
		t.Fatalf("expected one job, got %d", len(f.jobs.created))
	}
	job := f.jobs.created[0]
	if job.OriginalPriceOre != accepted.TotalOre {
		t.Fatalf("job seeded with %d, want the discounted total %d", job.OriginalPriceOre, accepted.TotalOre)
	}
	if job.OriginalVolumeM3 != 10 {
		t.Fatalf("job volume: want 10, got %f", job.OriginalVolumeM3)
	}

	if len(f.bookings.created) != 1 {
		t.Fatalf("expected one booking, got %d", len(f.bookings.created))
	}
	if f.bookings.created[0].TotalOre != accepted.TotalOre {
		t.Fatalf("booking total: want %d, got %d", accepted.TotalOre, f.bookings.created[0].TotalOre)
	}
}

func TestAcceptDraftQuoteConflicts(t *testing.T) {
	f := newFixture(t)

	quote, err := f.svc.Create(context.Background(), createParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Accept(context.Background(), quote.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict accepting a draft, got %v", err)
	}
}

func TestAcceptExpiredQuoteIsGone(t *testing.T) {
	f := newFixture(t)
	f.svc.policy = stubPolicy{validity: -time.Hour, thresholdBps: 200}
	ctx := context.Background()

	quote, err := f.svc.Create(ctx, createParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Issue(ctx, quote.ID); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := f.svc.Accept(ctx, quote.ID); !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone error, got %v", err)
	}

	stored, err := f.svc.Get(ctx, quote.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != repository.StatusExpired {
		t.Fatalf("status: want expired, got %s", stored.Status)
	}
	if len(f.jobs.created) != 0 {
		t.Fatal("expired acceptance must not open a job")
	}
}

func TestExpireDueSweep(t *testing.T) {
	f := newFixture(t)
	f.svc.policy = stubPolicy{validity: time.Minute, thresholdBps: 200}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		quote, err := f.svc.Create(ctx, createParams())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := f.svc.Issue(ctx, quote.ID); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}

	expired, err := f.svc.ExpireDue(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 3 {
		t.Fatalf("expected 3 expired, got %d", expired)
	}

	// Second sweep finds nothing.
	expired, err = f.svc.ExpireDue(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if expired != 0 {
		t.Fatalf("second sweep must be a no-op, got %d", expired)
	}
}

// ── Recalculation tests ───────────────────────────────────────────────────────

func TestRecalculateImmaterialDeltaCommits(t *testing.T) {
	f := newFixture(t)
	quote, bookingID := acceptedQuote(t, f) // total 100000 öre

	// 51 km instead of 50: the extra kilometer adds 1000 öre, all of it
	// outside the deduction, so the total moves 1% — below the 2% threshold.
	f.resolver.km = 51
	result, err := f.svc.Recalculate(context.Background(), bookingID, "Sveavägen 2, Stockholm", "Avenyn 1, Göteborg")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if result.RequiresReconsent {
		t.Fatal("1% delta must not require re-consent")
	}
	if result.DeltaOre != 1000 {
		t.Fatalf("delta: want 1000, got %d", result.DeltaOre)
	}
	if result.Quote.Status != repository.StatusAccepted {
		t.Fatalf("committed quote status: want accepted, got %s", result.Quote.Status)
	}
	if result.Quote.SupersedesID == nil || *result.Quote.SupersedesID != quote.ID {
		t.Fatal("new quote must reference the quote it replaces")
	}

	old, err := f.svc.Get(context.Background(), quote.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if old.Status != repository.StatusSuperseded {
		t.Fatalf("old status: want superseded, got %s", old.Status)
	}
	if old.SupersededByID == nil || *old.SupersededByID != result.Quote.ID {
		t.Fatal("old quote must carry the replacement back-reference")
	}

	if got := f.jobs.priceUpdates[f.jobs.nextJobID]; got != result.Quote.TotalOre {
		t.Fatalf("job re-priced to %d, want %d", got, result.Quote.TotalOre)
	}
	if f.bookings.refs[bookingID].QuoteID != result.Quote.ID {
		t.Fatal("booking must now reference the replacement quote")
	}
}

func TestRecalculateMaterialDeltaRequiresReconsent(t *testing.T) {
	f := newFixture(t)
	quote, bookingID := acceptedQuote(t, f) // total 100000 öre

	// 100 km instead of 50: total climbs to 150000 öre, a 50% delta.
	f.resolver.km = 100
	result, err := f.svc.Recalculate(context.Background(), bookingID, "Storgatan 1, Uppsala", "Avenyn 1, Göteborg")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if !result.RequiresReconsent {
		t.Fatal("50% delta must require re-consent")
	}
	if result.Quote.Status != repository.StatusIssued {
		t.Fatalf("pending quote status: want issued, got %s", result.Quote.Status)
	}

	// Nothing is overwritten until the customer accepts.
	old, err := f.svc.Get(context.Background(), quote.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if old.Status != repository.StatusAccepted {
		t.Fatalf("old quote must stay accepted, got %s", old.Status)
	}
	if len(f.jobs.priceUpdates) != 0 {
		t.Fatal("job price must not change before re-consent")
	}
	if f.bookings.refs[bookingID].QuoteID != quote.ID {
		t.Fatal("booking must keep its accepted quote before re-consent")
	}

	// Customer accepts the new price: now everything commits.
	accepted, err := f.svc.Accept(context.Background(), result.Quote.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != repository.StatusAccepted {
		t.Fatalf("status: want accepted, got %s", accepted.Status)
	}
	old, _ = f.svc.Get(context.Background(), quote.ID)
	if old.Status != repository.StatusSuperseded {
		t.Fatalf("old quote must be superseded after re-consent, got %s", old.Status)
	}
	if got := f.jobs.priceUpdates[f.jobs.nextJobID]; got != accepted.TotalOre {
		t.Fatalf("job re-priced to %d, want %d", got, accepted.TotalOre)
	}
	if f.bookings.refs[bookingID].QuoteID != accepted.ID {
		t.Fatal("booking must reference the re-consented quote")
	}
	if len(f.jobs.created) != 1 {
		t.Fatal("re-consent must not open a second job")
	}
}

func TestSupersededEventDistinguishesReconsent(t *testing.T) {
	f := newFixture(t)
	bus := &recordingBus{}
	f.svc.SetEventBus(bus)
	_, bookingID := acceptedQuote(t, f) // total 100000 öre
	ctx := context.Background()

	// An immaterial delta commits automatically: no re-consent happened.
	f.resolver.km = 51
	if _, err := f.svc.Recalculate(ctx, bookingID, "Sveavägen 2, Stockholm", "Avenyn 1, Göteborg"); err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if e := bus.lastSuperseded(t); e.Reconsented {
		t.Fatal("automatic commit must not report re-consent")
	}

	// A material delta commits only after the customer accepts the new quote.
	f.resolver.km = 100
	result, err := f.svc.Recalculate(ctx, bookingID, "Storgatan 1, Uppsala", "Avenyn 1, Göteborg")
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if !result.RequiresReconsent {
		t.Fatal("50% delta must require re-consent")
	}
	if _, err := f.svc.Accept(ctx, result.Quote.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	e := bus.lastSuperseded(t)
	if !e.Reconsented {
		t.Fatal("re-consented commit must report re-consent")
	}
	if e.NewQuoteID != result.Quote.ID {
		t.Fatalf("event references quote %s, want %s", e.NewQuoteID, result.Quote.ID)
	}
}

func TestRecalculateAbortsOnResolutionFailure(t *testing.T) {
	f := newFixture(t)
	quote, bookingID := acceptedQuote(t, f)

	f.resolver.err = apperr.Unavailable("distance could not be resolved")
	_, err := f.svc.Recalculate(context.Background(), bookingID, "Okänd väg 1", "Avenyn 1, Göteborg")
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	// No state change of any kind.
	old, _ := f.svc.Get(context.Background(), quote.ID)
	if old.Status != repository.StatusAccepted {
		t.Fatalf("quote must be untouched, got %s", old.Status)
	}
	if len(f.jobs.priceUpdates) != 0 {
		t.Fatal("job must be untouched")
	}
}

func TestRecalculateRejectsNonAcceptedBaseline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quote, err := f.svc.Create(ctx, createParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bookingID := uuid.New()
	f.bookings.refs[bookingID] = BookingRef{ID: bookingID, JobID: uuid.New(), QuoteID: quote.ID}

	_, err = f.svc.Recalculate(ctx, bookingID, "a", "b")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for draft baseline, got %v", err)
	}
}

func TestExceedsMaterialityThreshold(t *testing.T) {
	f := newFixture(t) // 200 bps

	// Accepted 10 000 kr: a 50 kr delta is 0.5%, a 300 kr delta is 3%.
	if f.svc.exceedsMateriality(1000000, 5000) {
		t.Fatal("0.5% delta flagged material at a 2% threshold")
	}
	if !f.svc.exceedsMateriality(1000000, 30000) {
		t.Fatal("3% delta not flagged material at a 2% threshold")
	}
	// Negative deltas count by magnitude.
	if !f.svc.exceedsMateriality(1000000, -30000) {
		t.Fatal("-3% delta not flagged material")
	}
	// Exactly at the threshold is not material.
	if f.svc.exceedsMateriality(1000000, 20000) {
		t.Fatal("exactly 2% must not exceed a 2% threshold")
	}
}

func int64Ptr(v int64) *int64 { return &v }
