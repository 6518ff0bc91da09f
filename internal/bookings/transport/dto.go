// Package transport defines the response shapes for the bookings API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"nordflytt_backend/internal/bookings/repository"
)

// BookingResponse is the API view of a booking.
type BookingResponse struct {
	ID                 uuid.UUID `json:"id"`
	QuoteID            uuid.UUID `json:"quoteId"`
	JobID              uuid.UUID `json:"jobId"`
	CustomerName       string    `json:"customerName"`
	CustomerEmail      string    `json:"customerEmail"`
	OriginAddress      string    `json:"originAddress"`
	DestinationAddress string    `json:"destinationAddress"`
	TotalPriceOre      int64     `json:"totalPriceOre"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ToBookingResponse converts a repository booking to the API shape.
func ToBookingResponse(b *repository.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		QuoteID:            b.QuoteID,
		JobID:              b.JobID,
		CustomerName:       b.CustomerName,
		CustomerEmail:      b.CustomerEmail,
		OriginAddress:      b.OriginAddress,
		DestinationAddress: b.DestinationAddress,
		TotalPriceOre:      b.TotalPriceOre,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

// ToBookingListResponse converts bookings to the API shape.
func ToBookingListResponse(bookings []repository.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, ToBookingResponse(&bookings[i]))
	}
	return out
}
