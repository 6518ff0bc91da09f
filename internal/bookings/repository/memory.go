package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"nordflytt_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used by service tests.
type Memory struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*Booking
}

// NewMemory creates an empty in-memory booking store.
func NewMemory() *Memory {
	return &Memory{bookings: make(map[uuid.UUID]*Booking)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Create(ctx context.Context, booking *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *booking
	m.bookings[booking.ID] = &clone
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, apperr.NotFound(bookingNotFoundMsg)
	}
	clone := *booking
	return &clone, nil
}

func (m *Memory) GetByJobID(ctx context.Context, jobID uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, booking := range m.bookings {
		if booking.JobID == jobID {
			clone := *booking
			return &clone, nil
		}
	}
	return nil, apperr.NotFound(bookingNotFoundMsg)
}

func (m *Memory) List(ctx context.Context) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []Booking
	for _, booking := range m.bookings {
		items = append(items, *booking)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (m *Memory) SetQuote(ctx context.Context, id, quoteID uuid.UUID, origin, destination string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return apperr.NotFound(bookingNotFoundMsg)
	}
	booking.QuoteID = quoteID
	booking.OriginAddress = origin
	booking.DestinationAddress = destination
	booking.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetTotalByJobID(ctx context.Context, jobID uuid.UUID, totalOre int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, booking := range m.bookings {
		if booking.JobID == jobID {
			booking.TotalPriceOre = totalOre
			booking.UpdatedAt = time.Now()
			return nil
		}
	}
	return apperr.NotFound(bookingNotFoundMsg)
}
