// Package transport defines the request and response shapes for the quotes API.
// All monetary fields are integer öre; floating point never crosses the wire
// for money.
package transport

import (
	"time"

	"github.com/google/uuid"

	"nordflytt_backend/internal/pricing"
	"nordflytt_backend/internal/quotes/repository"
	"nordflytt_backend/internal/quotes/service"
)

// SideAccessRequest describes carrying conditions at one side of the move.
type SideAccessRequest struct {
	Elevator string `json:"elevator" binding:"required,oneof=none small large"`
	Floors   int    `json:"floors" binding:"gte=0"`
}

// CreateQuoteRequest is the payload for POST /quotes. The distance is never
// part of the request; it is resolved server-side from the addresses.
type CreateQuoteRequest struct {
	CustomerName       string            `json:"customerName" binding:"required,min=2,max=200"`
	CustomerEmail      string            `json:"customerEmail" binding:"required,email"`
	CustomerPhone      string            `json:"customerPhone" binding:"omitempty,max=30"`
	OriginAddress      string            `json:"originAddress" binding:"required,min=3"`
	DestinationAddress string            `json:"destinationAddress" binding:"required,min=3"`
	VolumeM3           float64           `json:"volumeM3" binding:"gte=0"`
	LivingAreaM2       float64           `json:"livingAreaM2" binding:"gte=0"`
	Origin             SideAccessRequest `json:"origin" binding:"required"`
	Destination        SideAccessRequest `json:"destination" binding:"required"`
	Packing            bool              `json:"packing"`
	Cleaning           bool              `json:"cleaning"`
	LongCarry          bool              `json:"longCarry"`
	CarryExtraMeters   float64           `json:"carryExtraMeters" binding:"gte=0"`
	// PriorRutUsageOre is the customer's known RUT usage this year. Omitting
	// it means the figure is unavailable and no deduction will be granted.
	PriorRutUsageOre *int64 `json:"priorRutUsageOre" binding:"omitempty,gte=0"`
}

// ToParams converts the request to service-level create parameters.
func (r CreateQuoteRequest) ToParams() service.CreateParams {
	return service.CreateParams{
		CustomerName:       r.CustomerName,
		CustomerEmail:      r.CustomerEmail,
		CustomerPhone:      r.CustomerPhone,
		OriginAddress:      r.OriginAddress,
		DestinationAddress: r.DestinationAddress,
		VolumeM3:           r.VolumeM3,
		LivingAreaM2:       r.LivingAreaM2,
		OriginAccess:       pricing.SideAccess{Elevator: pricing.ElevatorClass(r.Origin.Elevator), Floors: r.Origin.Floors},
		DestinationAccess:  pricing.SideAccess{Elevator: pricing.ElevatorClass(r.Destination.Elevator), Floors: r.Destination.Floors},
		Packing:            r.Packing,
		Cleaning:           r.Cleaning,
		LongCarry:          r.LongCarry,
		CarryExtraMeters:   r.CarryExtraMeters,
		PriorRUTUsageOre:   r.PriorRutUsageOre,
	}
}

// ListQuotesRequest holds the query parameters for GET /quotes.
type ListQuotesRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=draft issued accepted expired superseded"`
	Search   string `form:"search"`
	Page     int    `form:"page,default=1" binding:"gte=0"`
	PageSize int    `form:"pageSize,default=20" binding:"gte=0,lte=100"`
}

// ToParams converts the query to repository list parameters.
func (r ListQuotesRequest) ToParams() repository.ListParams {
	params := repository.ListParams{
		Search:   r.Search,
		Page:     r.Page,
		PageSize: r.PageSize,
	}
	if r.Status != "" {
		status := repository.Status(r.Status)
		params.Status = &status
	}
	return params
}

// RecalculateRequest is the payload for a booking address change.
type RecalculateRequest struct {
	OriginAddress      string `json:"originAddress" binding:"required,min=3"`
	DestinationAddress string `json:"destinationAddress" binding:"required,min=3"`
}

// QuoteResponse is the API view of a quote.
type QuoteResponse struct {
	ID                 uuid.UUID              `json:"id"`
	QuoteNumber        string                 `json:"quoteNumber"`
	Status             string                 `json:"status"`
	CustomerName       string                 `json:"customerName"`
	CustomerEmail      string                 `json:"customerEmail"`
	CustomerPhone      string                 `json:"customerPhone,omitempty"`
	OriginAddress      string                 `json:"originAddress"`
	DestinationAddress string                 `json:"destinationAddress"`
	DistanceKm         float64                `json:"distanceKm"`
	Breakdown          []pricing.Line         `json:"breakdown"`
	GrossOre           int64                  `json:"grossOre"`
	RutEligibleOre     int64                  `json:"rutEligibleOre"`
	RutDiscountOre     int64                  `json:"rutDiscountOre"`
	TotalOre           int64                  `json:"totalOre"`
	PartialDeduction   bool                   `json:"partialDeduction"`
	RutReason          string                 `json:"rutReason,omitempty"`
	SupersedesID       *uuid.UUID             `json:"supersedesId,omitempty"`
	SupersededByID     *uuid.UUID             `json:"supersededById,omitempty"`
	ValidUntil         *time.Time             `json:"validUntil,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// ToQuoteResponse converts a repository quote to the API shape.
func ToQuoteResponse(q *repository.Quote) QuoteResponse {
	return QuoteResponse{
		ID:                 q.ID,
		QuoteNumber:        q.QuoteNumber,
		Status:             string(q.Status),
		CustomerName:       q.CustomerName,
		CustomerEmail:      q.CustomerEmail,
		CustomerPhone:      q.CustomerPhone,
		OriginAddress:      q.OriginAddress,
		DestinationAddress: q.DestinationAddress,
		DistanceKm:         q.Spec.DistanceKm,
		Breakdown:          q.Breakdown.Lines(),
		GrossOre:           q.GrossOre,
		RutEligibleOre:     q.EligibleOre,
		RutDiscountOre:     q.DiscountOre,
		TotalOre:           q.TotalOre,
		PartialDeduction:   q.PartialDeduction,
		RutReason:          q.RUTReason,
		SupersedesID:       q.SupersedesID,
		SupersededByID:     q.SupersededByID,
		ValidUntil:         q.ValidUntil,
		CreatedAt:          q.CreatedAt,
		UpdatedAt:          q.UpdatedAt,
	}
}

// ListQuotesResponse is the paginated list view.
type ListQuotesResponse struct {
	Items      []QuoteResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
}

// ToListResponse converts a repository list result to the API shape.
func ToListResponse(result *repository.ListResult) ListQuotesResponse {
	items := make([]QuoteResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, ToQuoteResponse(&result.Items[i]))
	}
	return ListQuotesResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
}

// RecalculationResponse is the outcome of an address-change recalculation.
type RecalculationResponse struct {
	Quote             QuoteResponse `json:"quote"`
	DistanceKm        float64       `json:"distanceKm"`
	DeltaOre          int64         `json:"deltaOre"`
	RequiresReconsent bool          `json:"requiresReconsent"`
}
