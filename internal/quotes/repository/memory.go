package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"nordflytt_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used by service tests. It mirrors the guarded
// transition semantics of the pgx repository.
type Memory struct {
	mu      sync.Mutex
	quotes  map[uuid.UUID]*Quote
	lastNum int
}

// NewMemory creates an empty in-memory quote store.
func NewMemory() *Memory {
	return &Memory{quotes: make(map[uuid.UUID]*Quote)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) NextQuoteNumber(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastNum++
	return fmt.Sprintf("QUO-%d-%04d", time.Now().Year(), m.lastNum), nil
}

func (m *Memory) Create(ctx context.Context, quote *Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *quote
	m.quotes[quote.ID] = &clone
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quote, ok := m.quotes[id]
	if !ok {
		return nil, apperr.NotFound(quoteNotFoundMsg)
	}
	clone := *quote
	return &clone, nil
}

func (m *Memory) MarkIssued(ctx context.Context, id uuid.UUID, validUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	quote, ok := m.quotes[id]
	if !ok {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	if quote.Status != StatusDraft {
		return apperr.Conflict(fmt.Sprintf("quote is %s, expected %s", quote.Status, StatusDraft))
	}
	quote.Status = StatusIssued
	until := validUntil
	quote.ValidUntil = &until
	quote.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) Transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	quote, ok := m.quotes[id]
	if !ok {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	if quote.Status != from {
		return apperr.Conflict(fmt.Sprintf("quote is %s, expected %s", quote.Status, from))
	}
	quote.Status = to
	quote.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) MarkSuperseded(ctx context.Context, id, byID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	quote, ok := m.quotes[id]
	if !ok {
		return apperr.NotFound(quoteNotFoundMsg)
	}
	if quote.Status != StatusIssued && quote.Status != StatusAccepted {
		return apperr.Conflict(fmt.Sprintf("quote is %s, expected %s", quote.Status, StatusAccepted))
	}
	quote.Status = StatusSuperseded
	replacedBy := byID
	quote.SupersededByID = &replacedBy
	quote.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) List(ctx context.Context, params ListParams) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Quote
	for _, quote := range m.quotes {
		if params.Status != nil && quote.Status != *params.Status {
			continue
		}
		if params.Search != "" && !matchesSearch(quote, params.Search) {
			continue
		}
		matched = append(matched, *quote)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	totalPages := (total + params.PageSize - 1) / params.PageSize
	start := (params.Page - 1) * params.PageSize
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}

	return &ListResult{
		Items:      matched[start:end],
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (m *Memory) ListExpiredDue(ctx context.Context, now time.Time) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []Quote
	for _, quote := range m.quotes {
		if quote.Status == StatusIssued && quote.ValidUntil != nil && quote.ValidUntil.Before(now) {
			due = append(due, *quote)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ValidUntil.Before(*due[j].ValidUntil)
	})
	return due, nil
}

func matchesSearch(quote *Quote, search string) bool {
	needle := strings.ToLower(search)
	for _, haystack := range []string{quote.QuoteNumber, quote.CustomerName, quote.CustomerEmail} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}
