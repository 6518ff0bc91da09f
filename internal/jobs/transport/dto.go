// Package transport defines the request and response shapes for the jobs API.
// All monetary fields are integer öre; floating point never crosses the wire
// for money.
package transport

import (
	"time"

	"github.com/google/uuid"

	"nordflytt_backend/internal/jobs/repository"
	"nordflytt_backend/internal/jobs/service"
)

// AppendEntryRequest is the payload for POST /jobs/:id/entries. TotalPriceOre
// is the caller's computation and is re-validated server-side against
// quantity × unit price.
type AppendEntryRequest struct {
	Category      string  `json:"category" binding:"required,oneof=packing materials other correction"`
	Description   string  `json:"description" binding:"required,min=3,max=500"`
	Quantity      float64 `json:"quantity" binding:"required"`
	Unit          string  `json:"unit" binding:"required,max=20"`
	UnitPriceOre  int64   `json:"unitPriceOre" binding:"gte=0"`
	TotalPriceOre int64   `json:"totalPriceOre"`
	RutEligible   bool    `json:"rutEligible"`
	AddedBy       string  `json:"addedBy" binding:"required,max=100"`
}

// ToParams converts the request to service-level append parameters.
func (r AppendEntryRequest) ToParams() service.AppendParams {
	return service.AppendParams{
		Category:      repository.EntryCategory(r.Category),
		Description:   r.Description,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		UnitPriceOre:  r.UnitPriceOre,
		TotalPriceOre: r.TotalPriceOre,
		RUTEligible:   r.RutEligible,
		AddedBy:       r.AddedBy,
	}
}

// VolumeAdjustmentRequest is the payload for the crew's on-site measurement.
type VolumeAdjustmentRequest struct {
	ActualVolumeM3 float64 `json:"actualVolumeM3" binding:"gte=0"`
	AddedBy        string  `json:"addedBy" binding:"required,max=100"`
}

// UpdateStatusRequest advances the job lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=in_progress completed invoiced"`
}

// ListJobsRequest holds the query parameters for GET /jobs.
type ListJobsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=scheduled in_progress completed invoiced"`
}

// JobResponse is the API view of a job.
type JobResponse struct {
	ID               uuid.UUID `json:"id"`
	QuoteID          uuid.UUID `json:"quoteId"`
	CustomerName     string    `json:"customerName"`
	CustomerEmail    string    `json:"customerEmail"`
	Status           string    `json:"status"`
	OriginalPriceOre int64     `json:"originalPriceOre"`
	AddedServicesOre int64     `json:"addedServicesOre"`
	FinalPriceOre    int64     `json:"finalPriceOre"`
	OriginalVolumeM3 float64   `json:"originalVolumeM3"`
	ActualVolumeM3   *float64  `json:"actualVolumeM3,omitempty"`
	PriceLocked      bool      `json:"priceLocked"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ToJobResponse converts a repository job to the API shape.
func ToJobResponse(j *repository.Job) JobResponse {
	return JobResponse{
		ID:               j.ID,
		QuoteID:          j.QuoteID,
		CustomerName:     j.CustomerName,
		CustomerEmail:    j.CustomerEmail,
		Status:           string(j.Status),
		OriginalPriceOre: j.OriginalPriceOre,
		AddedServicesOre: j.AddedServicesOre,
		FinalPriceOre:    j.FinalPriceOre,
		OriginalVolumeM3: j.OriginalVolumeM3,
		ActualVolumeM3:   j.ActualVolumeM3,
		PriceLocked:      j.PriceLocked,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// EntryResponse is the API view of a ledger entry.
type EntryResponse struct {
	ID            uuid.UUID `json:"id"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Quantity      float64   `json:"quantity"`
	Unit          string    `json:"unit"`
	UnitPriceOre  int64     `json:"unitPriceOre"`
	TotalPriceOre int64     `json:"totalPriceOre"`
	RutEligible   bool      `json:"rutEligible"`
	AddedBy       string    `json:"addedBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ToEntryResponse converts a ledger entry to the API shape.
func ToEntryResponse(e *repository.LedgerEntry) EntryResponse {
	return EntryResponse{
		ID:            e.ID,
		Category:      string(e.Category),
		Description:   e.Description,
		Quantity:      e.Quantity,
		Unit:          e.Unit,
		UnitPriceOre:  e.UnitPriceOre,
		TotalPriceOre: e.TotalPriceOre,
		RutEligible:   e.RUTEligible,
		AddedBy:       e.AddedBy,
		CreatedAt:     e.CreatedAt,
	}
}

// ToEntryListResponse converts a ledger to the API shape.
func ToEntryListResponse(entries []repository.LedgerEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToEntryResponse(&entries[i]))
	}
	return out
}

// VolumeAdjustmentResponse reports the stored measurement and, when the
// measured volume exceeded the quote, the entry that billed the overage.
type VolumeAdjustmentResponse struct {
	Job          JobResponse    `json:"job"`
	OverageEntry *EntryResponse `json:"overageEntry,omitempty"`
}
