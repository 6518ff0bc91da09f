// Package repository provides persistence for jobs and their service ledgers.
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

// Status is the job lifecycle state. Jobs are never deleted, only
// status-transitioned.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusInvoiced   Status = "invoiced"
)

// Job is the accepted unit of work. OriginalPriceOre is frozen from the
// accepted quote; AddedServicesOre and FinalPriceOre are derived from the
// ledger and only ever written through the version-guarded update.
type Job struct {
	ID               uuid.UUID
	QuoteID          uuid.UUID
	CustomerName     string
	CustomerEmail    string
	Status           Status
	OriginalPriceOre int64
	AddedServicesOre int64
	FinalPriceOre    int64
	OriginalVolumeM3 float64
	ActualVolumeM3   *float64
	// Version is the optimistic concurrency token for derived-price writes.
	Version int64
	// PriceLocked blocks all price writes after a consistency defect until a
	// manual unlock.
	PriceLocked bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EntryCategory classifies a ledger entry.
type EntryCategory string

const (
	CategoryPacking   EntryCategory = "packing"
	CategoryMaterials EntryCategory = "materials"
	CategoryOther     EntryCategory = "other"
	// CategoryCorrection marks an appended reversal of a mistaken entry. Its
	// total is negative; the original entry stays in the ledger for audit.
	CategoryCorrection EntryCategory = "correction"
	// CategoryVolumeOverage is the server-generated billing entry for actual
	// volume above the booked volume.
	CategoryVolumeOverage EntryCategory = "volume_overage"
)

// LedgerEntry is one immutable on-site service addition. Entries are never
// edited or deleted.
type LedgerEntry struct {
	ID            uuid.UUID
	JobID         uuid.UUID
	Category      EntryCategory
	Description   string
	Quantity      float64
	Unit          string
	UnitPriceOre  int64
	TotalPriceOre int64
	RUTEligible   bool
	AddedBy       string
	CreatedAt     time.Time
}

// Store is the persistence port for jobs and ledgers.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, status *Status) ([]Job, error)
	// TransitionJob moves a job between statuses, guarded on the current one.
	TransitionJob(ctx context.Context, id uuid.UUID, from, to Status) error

	AppendEntry(ctx context.Context, entry *LedgerEntry) error
	ListEntries(ctx context.Context, jobID uuid.UUID) ([]LedgerEntry, error)
	// SumEntries aggregates the ledger total database-side; no client-side
	// intermediate sum exists to race on.
	SumEntries(ctx context.Context, jobID uuid.UUID) (int64, error)

	// UpdateDerivedPrice writes the derived totals if and only if the stored
	// version still equals expectedVersion, bumping the version. A lost race
	// returns a conflict error.
	UpdateDerivedPrice(ctx context.Context, jobID uuid.UUID, addedOre, finalOre, expectedVersion int64) error
	// SetOriginalPrice replaces the frozen original price, version-guarded the
	// same way.
	SetOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre, expectedVersion int64) error
	SetActualVolume(ctx context.Context, jobID uuid.UUID, actualM3 float64) error
	SetPriceLocked(ctx context.Context, jobID uuid.UUID, locked bool) error
}

// ── Repository ────────────────────────────────────────────────────────────────

const (
	jobNotFoundMsg = "job not found"

	jobColumns = `
		id, quote_id, customer_name, customer_email, status,
		original_price_ore, added_services_ore, final_price_ore,
		original_volume_m3, actual_volume_m3,
		version, price_locked, created_at, updated_at`

	entryColumns = `
		id, job_id, category, description, quantity, unit,
		unit_price_ore, total_price_ore, rut_eligible, added_by, created_at`
)

// Repository provides database operations for jobs
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new jobs repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// CreateJob inserts a job
func (r *Repository) CreateJob(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	if _, err := r.pool.Exec(ctx, query,
		job.ID, job.QuoteID, job.CustomerName, job.CustomerEmail, job.Status,
		job.OriginalPriceOre, job.AddedServicesOre, job.FinalPriceOre,
		job.OriginalVolumeM3, job.ActualVolumeM3,
		job.Version, job.PriceLocked, job.CreatedAt, job.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by its ID
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(jobNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs retrieves jobs, optionally filtered by status
func (r *Repository) ListJobs(ctx context.Context, status *Status) ([]Job, error) {
	var statusParam interface{}
	if status != nil {
		statusParam = string(*status)
	}

	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, statusParam)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

// TransitionJob moves a job between statuses with a guard on the current one.
func (r *Repository) TransitionJob(ctx context.Context, id uuid.UUID, from, to Status) error {
	query := `UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.pool.Exec(ctx, query, id, to, time.Now(), from)
	if err != nil {
		return fmt.Errorf("failed to transition job: %w", err)
	}
	if result.RowsAffected() == 0 {
		current, err := r.GetJob(ctx, id)
		if err != nil {
			return err
		}
		return apperr.Conflict(fmt.Sprintf("job is %s, expected %s", current.Status, from))
	}
	return nil
}

// AppendEntry inserts a ledger entry. Appends are independent inserts, safe
// under concurrency without locking.
func (r *Repository) AppendEntry(ctx context.Context, entry *LedgerEntry) error {
	query := `
		INSERT INTO job_ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if _, err := r.pool.Exec(ctx, query,
		entry.ID, entry.JobID, entry.Category, entry.Description, entry.Quantity, entry.Unit,
		entry.UnitPriceOre, entry.TotalPriceOre, entry.RUTEligible, entry.AddedBy, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListEntries retrieves a job's ledger in append order
func (r *Repository) ListEntries(ctx context.Context, jobID uuid.UUID) ([]LedgerEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM job_ledger_entries
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.JobID, &e.Category, &e.Description, &e.Quantity, &e.Unit,
			&e.UnitPriceOre, &e.TotalPriceOre, &e.RUTEligible, &e.AddedBy, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SumEntries aggregates the ledger total in the database.
func (r *Repository) SumEntries(ctx context.Context, jobID uuid.UUID) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(total_price_ore), 0) FROM job_ledger_entries WHERE job_id = $1`
	if err := r.pool.QueryRow(ctx, query, jobID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

// UpdateDerivedPrice writes derived totals under the optimistic version check.
func (r *Repository) UpdateDerivedPrice(ctx context.Context, jobID uuid.UUID, addedOre, finalOre, expectedVersion int64) error {
	query := `
		UPDATE jobs SET
			added_services_ore = $2, final_price_ore = $3,
			version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $5 AND NOT price_locked`
	result, err := r.pool.Exec(ctx, query, jobID, addedOre, finalOre, time.Now(), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update derived price: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.priceWriteFailure(ctx, jobID)
	}
	return nil
}

// SetOriginalPrice replaces the frozen original price under the version check.
func (r *Repository) SetOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre, expectedVersion int64) error {
	query := `
		UPDATE jobs SET original_price_ore = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4 AND NOT price_locked`
	result, err := r.pool.Exec(ctx, query, jobID, originalOre, time.Now(), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to set original price: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.priceWriteFailure(ctx, jobID)
	}
	return nil
}

// priceWriteFailure distinguishes a missing job, a locked price, and a lost
// version race.
func (r *Repository) priceWriteFailure(ctx context.Context, jobID uuid.UUID) error {
	job, err := r.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.PriceLocked {
		return apperr.Consistency("job price is locked pending manual reconciliation")
	}
	return apperr.Conflict("job version changed during price update")
}

// SetActualVolume records the measured on-site volume.
func (r *Repository) SetActualVolume(ctx context.Context, jobID uuid.UUID, actualM3 float64) error {
	query := `UPDATE jobs SET actual_volume_m3 = $2, updated_at = $3 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, jobID, actualM3, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set actual volume: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(jobNotFoundMsg)
	}
	return nil
}

// SetPriceLocked latches or clears the consistency lock.
func (r *Repository) SetPriceLocked(ctx context.Context, jobID uuid.UUID, locked bool) error {
	query := `UPDATE jobs SET price_locked = $2, updated_at = $3 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, jobID, locked, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set price lock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(jobNotFoundMsg)
	}
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	if err := row.Scan(
		&j.ID, &j.QuoteID, &j.CustomerName, &j.CustomerEmail, &j.Status,
		&j.OriginalPriceOre, &j.AddedServicesOre, &j.FinalPriceOre,
		&j.OriginalVolumeM3, &j.ActualVolumeM3,
		&j.Version, &j.PriceLocked, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}
