// Package repository provides persistence for bookings.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nordflytt_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// Booking is the customer-facing record of a confirmed move. TotalPriceOre is
// a snapshot of the governing price: it is written when the booking is opened
// and again at each reconciliation, never derived here.
type Booking struct {
	ID                 uuid.UUID
	QuoteID            uuid.UUID
	JobID              uuid.UUID
	CustomerName       string
	CustomerEmail      string
	OriginAddress      string
	DestinationAddress string
	TotalPriceOre      int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Store is the persistence port for bookings.
type Store interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*Booking, error)
	List(ctx context.Context) ([]Booking, error)
	// SetQuote repoints the booking at the quote now governing its price and
	// records the addresses that quote was computed for.
	SetQuote(ctx context.Context, id, quoteID uuid.UUID, origin, destination string) error
	// SetTotalByJobID overwrites the price snapshot after a reconciliation.
	SetTotalByJobID(ctx context.Context, jobID uuid.UUID, totalOre int64) error
}

// ── Repository ────────────────────────────────────────────────────────────────

const bookingNotFoundMsg = "booking not found"

const bookingColumns = `
	id, quote_id, job_id, customer_name, customer_email,
	origin_address, destination_address, total_price_ore,
	created_at, updated_at`

// Repository provides database operations for bookings
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new bookings repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a booking
func (r *Repository) Create(ctx context.Context, booking *Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := r.pool.Exec(ctx, query,
		booking.ID, booking.QuoteID, booking.JobID, booking.CustomerName, booking.CustomerEmail,
		booking.OriginAddress, booking.DestinationAddress, booking.TotalPriceOre,
		booking.CreatedAt, booking.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByJobID retrieves the booking attached to a job
func (r *Repository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE job_id = $1`
	return r.get(ctx, query, jobID)
}

func (r *Repository) get(ctx context.Context, query string, arg interface{}) (*Booking, error) {
	booking, err := scanBooking(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(bookingNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// List retrieves all bookings, newest first
func (r *Repository) List(ctx context.Context) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var items []Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		items = append(items, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return items, nil
}

// SetQuote repoints the booking at its new governing quote.
func (r *Repository) SetQuote(ctx context.Context, id, quoteID uuid.UUID, origin, destination string) error {
	query := `
		UPDATE bookings SET quote_id = $2, origin_address = $3, destination_address = $4, updated_at = $5
		WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, quoteID, origin, destination, time.Now())
	if err != nil {
		return fmt.Errorf("failed to repoint booking quote: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(bookingNotFoundMsg)
	}
	return nil
}

// SetTotalByJobID overwrites the price snapshot after a reconciliation.
func (r *Repository) SetTotalByJobID(ctx context.Context, jobID uuid.UUID, totalOre int64) error {
	query := `UPDATE bookings SET total_price_ore = $2, updated_at = $3 WHERE job_id = $1`
	result, err := r.pool.Exec(ctx, query, jobID, totalOre, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update booking total: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(bookingNotFoundMsg)
	}
	return nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(
		&b.ID, &b.QuoteID, &b.JobID, &b.CustomerName, &b.CustomerEmail,
		&b.OriginAddress, &b.DestinationAddress, &b.TotalPriceOre,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}
