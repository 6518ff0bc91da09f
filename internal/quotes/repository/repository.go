// Package repository provides persistence for quotes.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Status is the quote lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusIssued     Status = "issued"
	StatusAccepted   Status = "accepted"
	StatusExpired    Status = "expired"
	StatusSuperseded Status = "superseded"
)

// Quote is the database model for a priced, time-bounded offer.
// All monetary columns are integer öre.
type Quote struct {
	ID                 uuid.UUID
	QuoteNumber        string
	Status             Status
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	OriginAddress      string
	DestinationAddress string
	Spec               pricing.MoveSpec
	Breakdown          pricing.PriceBreakdown
	GrossOre           int64
	EligibleOre        int64
	DiscountOre        int64
	TotalOre           int64
	PartialDeduction   bool
	RUTReason          string
	// PriorRUTUsageOre is the customer's known deduction usage at quote time,
	// nil when it could not be obtained. Kept so recalculations reuse the same
	// allowance context instead of guessing.
	PriorRUTUsageOre *int64
	// SupersedesID points at the quote this one replaces after a recalculation.
	SupersedesID *uuid.UUID
	// SupersededByID is the back-reference filled in on the replaced quote.
	SupersededByID *uuid.UUID
	// BookingID is set on recalculated quotes awaiting re-consent: accepting
	// such a quote updates this booking instead of creating a new one.
	BookingID  *uuid.UUID
	ValidUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ListParams contains parameters for listing quotes
type ListParams struct {
	Status   *Status
	Search   string
	Page     int
	PageSize int
}

// ListResult contains the paginated result of listing quotes
type ListResult struct {
	Items      []Quote
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Store is the persistence port for quotes. The pgx Repository is the
// production implementation; tests use the in-memory one.
type Store interface {
	NextQuoteNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, quote *Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*Quote, error)
	// MarkIssued transitions draft → issued and stamps the validity window.
	MarkIssued(ctx context.Context, id uuid.UUID, validUntil time.Time) error
	// Transition moves a quote from one status to another, guarded: the write
	// only happens when the stored status equals from.
	Transition(ctx context.Context, id uuid.UUID, from, to Status) error
	// MarkSuperseded transitions a quote to superseded and records which quote
	// replaced it.
	MarkSuperseded(ctx context.Context, id, byID uuid.UUID) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	// ListExpiredDue returns issued quotes whose validity lapsed before now.
	ListExpiredDue(ctx context.Context, now time.Time) ([]Quote, error)
}

// ── Repository ────────────────────────────────────────────────────────────────

const quoteNotFoundMsg = "quote not found"

const quoteColumns = `
	id, quote_number, status, customer_name, customer_email, customer_phone,
	origin_address, destination_address, move_spec, breakdown,
	gross_ore, eligible_ore, discount_ore, total_ore,
	partial_deduction, rut_reason, prior_rut_usage_ore,
	supersedes_id, superseded_by_id, booking_id,
	valid_until, created_at, updated_at`

// Repository provides database operations for quotes
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new quotes repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// NextQuoteNumber atomically generates the next quote number
func (r *Repository) NextQuoteNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()

	var nextNum int
	query := `
		INSERT INTO quote_counters (year, last_number)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_number = quote_counters.last_number + 1
		RETURNING last_number`

	if err := r.pool.QueryRow(ctx, query, year).Scan(&nextNum); err != nil {
		return "", fmt.Errorf("failed to generate quote number: %w", err)
	}

	return fmt.Sprintf("QUO-%d-%04d", year, nextNum), nil
}

// Create inserts a quote
func (r *Repository) Create(ctx context.Context, quote *Quote) error {
	specJSON, err := json.Marshal(quote.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode move spec: %w", err)
	}
	breakdownJSON, err := json.Marshal(quote.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}

	query := `
		INSERT INTO quotes (` + quoteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	if _, err := r.pool.Exec(ctx, query,
		quote.ID, quote.QuoteNumber, quote.Status, quote.CustomerName, quote.CustomerEmail, quote.CustomerPhone,
		quote.OriginAddress, quote.DestinationAddress, specJSON, breakdownJSON,
		quote.GrossOre, quote.EligibleOre, quote.DiscountOre, quote.TotalOre,
		quote.PartialDeduction, quote.RUTReason, quote.PriorRUTUsageOre,
		quote.SupersedesID, quote.SupersededByID, quote.BookingID,
		quote.ValidUntil, quote.CreatedAt, quote.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

// GetByID retrieves a quote by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	quote, err := scanQuote(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(quoteNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return quote, nil
}

// MarkIssued transitions draft → issued and stamps the validity window.
func (r *Repository) MarkIssued(ctx context.Context, id uuid.UUID, validUntil time.Time) error {
	query := `
		UPDATE quotes SET status = $2, valid_until = $3, updated_at = $4
		WHERE id = $1 AND status = $5`
	result, err := r.pool.Exec(ctx, query, id, StatusIssued, validUntil, time.Now(), StatusDraft)
	if err != nil {
		return fmt.Errorf("failed to issue quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, id, StatusDraft)
	}
	return nil
}

// Transition moves a quote between statuses with a guard on the current one.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	query := `UPDATE quotes SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.pool.Exec(ctx, query, id, to, time.Now(), from)
	if err != nil {
		return fmt.Errorf("failed to transition quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, id, from)
	}
	return nil
}

// MarkSuperseded records the replacing quote and retires this one.
func (r *Repository) MarkSuperseded(ctx context.Context, id, byID uuid.UUID) error {
	query := `
		UPDATE quotes SET status = $2, superseded_by_id = $3, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)`
	result, err := r.pool.Exec(ctx, query, id, StatusSuperseded, byID, time.Now(), StatusIssued, StatusAccepted)
	if err != nil {
		return fmt.Errorf("failed to supersede quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.transitionFailure(ctx, id, StatusAccepted)
	}
	return nil
}

// transitionFailure distinguishes a missing quote from a wrong-state one.
func (r *Repository) transitionFailure(ctx context.Context, id uuid.UUID, want Status) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Conflict(fmt.Sprintf("quote is %s, expected %s", current.Status, want))
}

// List retrieves quotes with filtering and pagination
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	var statusParam interface{}
	if params.Status != nil {
		statusParam = string(*params.Status)
	}

	var searchParam interface{}
	if params.Search != "" {
		searchParam = "%" + params.Search + "%"
	}

	baseQuery := `
		FROM quotes
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::text IS NULL OR quote_number ILIKE $2 OR customer_name ILIKE $2 OR customer_email ILIKE $2)
	`
	args := []interface{}{statusParam, searchParam}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count quotes: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := `SELECT ` + quoteColumns + baseQuery + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var items []Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		items = append(items, *quote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ListExpiredDue returns issued quotes whose validity lapsed before now.
func (r *Repository) ListExpiredDue(ctx context.Context, now time.Time) ([]Quote, error) {
	query := `SELECT ` + quoteColumns + `
		FROM quotes
		WHERE status = $1 AND valid_until IS NOT NULL AND valid_until < $2
		ORDER BY valid_until ASC`

	rows, err := r.pool.Query(ctx, query, StatusIssued, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired quotes: %w", err)
	}
	defer rows.Close()

	var items []Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired quote: %w", err)
		}
		items = append(items, *quote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired quotes: %w", err)
	}
	return items, nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var specJSON, breakdownJSON []byte

	if err := row.Scan(
		&q.ID, &q.QuoteNumber, &q.Status, &q.CustomerName, &q.CustomerEmail, &q.CustomerPhone,
		&q.OriginAddress, &q.DestinationAddress, &specJSON, &breakdownJSON,
		&q.GrossOre, &q.EligibleOre, &q.DiscountOre, &q.TotalOre,
		&q.PartialDeduction, &q.RUTReason, &q.PriorRUTUsageOre,
		&q.SupersedesID, &q.SupersededByID, &q.BookingID,
		&q.ValidUntil, &q.CreatedAt, &q.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(specJSON, &q.Spec); err != nil {
		return nil, fmt.Errorf("failed to decode move spec: %w", err)
	}
	if err := json.Unmarshal(breakdownJSON, &q.Breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}

	return &q, nil
}
