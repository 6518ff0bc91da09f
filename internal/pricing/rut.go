package pricing

import "nordflytt_backend/platform/apperr"

// RUTReason explains why a quote's deduction is reduced or absent.
type RUTReason string

const (
	// ReasonNone means the full deduction applied.
	ReasonNone RUTReason = ""
	// ReasonCapReached means the customer's remaining annual allowance was
	// smaller than the computed deduction.
	ReasonCapReached RUTReason = "rut_cap_reached"
	// ReasonRUTUnavailable means the customer's prior-usage figure could not
	// be obtained, so no deduction was granted at all.
	ReasonRUTUnavailable RUTReason = "rut_unavailable"
)

// RUTAllocation is the customer-facing price after the tax deduction split.
// TotalOre is always GrossOre minus DiscountOre; the invariant holds by
// construction.
type RUTAllocation struct {
	GrossOre         int64     `json:"grossOre"`
	EligibleOre      int64     `json:"eligibleOre"`
	DiscountOre      int64     `json:"discountOre"`
	TotalOre         int64     `json:"totalOre"`
	PartialDeduction bool      `json:"partialDeduction"`
	Reason           RUTReason `json:"reason,omitempty"`
}

// RUTAllocator partitions a breakdown into the deducted and payable parts
// under the Swedish RUT scheme. Rate is in basis points of the eligible
// subtotal; the annual cap is per customer and per calendar year.
type RUTAllocator struct {
	rateBps int
	capOre  int64
}

// NewRUTAllocator validates the scheme parameters and returns an allocator.
func NewRUTAllocator(rateBps int, capOre int64) (*RUTAllocator, error) {
	if rateBps < 0 || rateBps > 10000 {
		return nil, apperr.Validation("rut rate must be between 0 and 10000 basis points")
	}
	if capOre < 0 {
		return nil, apperr.Validation("rut annual cap must not be negative")
	}
	return &RUTAllocator{rateBps: rateBps, capOre: capOre}, nil
}

// Allocate computes the deduction for a breakdown given the customer's prior
// deduction usage for the year, in öre.
//
// priorUsageOre is nil when the usage figure is unknown (lookup failed or the
// customer declined). An unknown figure never guesses: the quote is issued
// with no deduction and the reason is surfaced to the caller so the customer
// sees why their price is undiscounted.
func (a *RUTAllocator) Allocate(b PriceBreakdown, priorUsageOre *int64) (RUTAllocation, error) {
	gross := b.GrossOre()
	eligible := b.RUTEligibleOre()
	if eligible > gross {
		return RUTAllocation{}, apperr.Consistency("eligible subtotal exceeds gross total")
	}

	alloc := RUTAllocation{
		GrossOre:    gross,
		EligibleOre: eligible,
		TotalOre:    gross,
	}

	if priorUsageOre == nil {
		alloc.Reason = ReasonRUTUnavailable
		return alloc, nil
	}
	if *priorUsageOre < 0 {
		return RUTAllocation{}, apperr.Validation("prior rut usage must not be negative")
	}

	discount := eligible * int64(a.rateBps) / 10000

	remaining := a.capOre - *priorUsageOre
	if remaining < 0 {
		remaining = 0
	}
	if discount > remaining {
		discount = remaining
		alloc.PartialDeduction = true
		alloc.Reason = ReasonCapReached
	}

	alloc.DiscountOre = discount
	alloc.TotalOre = gross - discount
	return alloc, nil
}
