package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nordflytt_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used by service tests. It mirrors the
// version-guard and lock semantics of the pgx repository, including under
// concurrent access.
type Memory struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*Job
	entries map[uuid.UUID][]LedgerEntry
}

// NewMemory creates an empty in-memory job store.
func NewMemory() *Memory {
	return &Memory{
		jobs:    make(map[uuid.UUID]*Job),
		entries: make(map[uuid.UUID][]LedgerEntry),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *Memory) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, apperr.NotFound(jobNotFoundMsg)
	}
	clone := *job
	return &clone, nil
}

func (m *Memory) ListJobs(ctx context.Context, status *Status) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var jobs []Job
	for _, job := range m.jobs {
		if status != nil && job.Status != *status {
			continue
		}
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (m *Memory) TransitionJob(ctx context.Context, id uuid.UUID, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return apperr.NotFound(jobNotFoundMsg)
	}
	if job.Status != from {
		return apperr.Conflict(fmt.Sprintf("job is %s, expected %s", job.Status, from))
	}
	job.Status = to
	job.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) AppendEntry(ctx context.Context, entry *LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[entry.JobID]; !ok {
		return apperr.NotFound(jobNotFoundMsg)
	}
	m.entries[entry.JobID] = append(m.entries[entry.JobID], *entry)
	return nil
}

func (m *Memory) ListEntries(ctx context.Context, jobID uuid.UUID) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]LedgerEntry, len(m.entries[jobID]))
	copy(entries, m.entries[jobID])
	return entries, nil
}

func (m *Memory) SumEntries(ctx context.Context, jobID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, entry := range m.entries[jobID] {
		sum += entry.TotalPriceOre
	}
	return sum, nil
}

func (m *Memory) UpdateDerivedPrice(ctx context.Context, jobID uuid.UUID, addedOre, finalOre, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(jobNotFoundMsg)
	}
	if err := priceWriteGuard(job, expectedVersion); err != nil {
		return err
	}
	job.AddedServicesOre = addedOre
	job.FinalPriceOre = finalOre
	job.Version++
	job.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetOriginalPrice(ctx context.Context, jobID uuid.UUID, originalOre, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(jobNotFoundMsg)
	}
	if err := priceWriteGuard(job, expectedVersion); err != nil {
		return err
	}
	job.OriginalPriceOre = originalOre
	job.Version++
	job.UpdatedAt = time.Now()
	return nil
}

func priceWriteGuard(job *Job, expectedVersion int64) error {
	if job.PriceLocked {
		return apperr.Consistency("job price is locked pending manual reconciliation")
	}
	if job.Version != expectedVersion {
		return apperr.Conflict("job version changed during price update")
	}
	return nil
}

func (m *Memory) SetActualVolume(ctx context.Context, jobID uuid.UUID, actualM3 float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(jobNotFoundMsg)
	}
	actual := actualM3
	job.ActualVolumeM3 = &actual
	job.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetPriceLocked(ctx context.Context, jobID uuid.UUID, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return apperr.NotFound(jobNotFoundMsg)
	}
	job.PriceLocked = locked
	job.UpdatedAt = time.Now()
	return nil
}
