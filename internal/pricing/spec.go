// Package pricing implements the move-cost quote calculator and the RUT
// deduction allocator. Everything in this package is pure: no I/O, no mutation,
// deterministic for identical input. All monetary amounts are integer öre.
package pricing

import "nordflytt_backend/platform/apperr"

// ElevatorClass describes the elevator situation at one side of a move.
type ElevatorClass string

const (
	ElevatorNone  ElevatorClass = "none"
	ElevatorSmall ElevatorClass = "small"
	ElevatorLarge ElevatorClass = "large"
)

// SideAccess describes carrying conditions at origin or destination.
type SideAccess struct {
	Elevator ElevatorClass `json:"elevator"`
	Floors   int           `json:"floors"`
}

// MoveSpec is the structural description of a move, the sole input to Compute.
type MoveSpec struct {
	VolumeM3         float64    `json:"volumeM3"`
	DistanceKm       float64    `json:"distanceKm"`
	Origin           SideAccess `json:"origin"`
	Destination      SideAccess `json:"destination"`
	LivingAreaM2     float64    `json:"livingAreaM2"`
	Packing          bool       `json:"packing"`
	Cleaning         bool       `json:"cleaning"`
	LongCarry        bool       `json:"longCarry"`
	CarryExtraMeters float64    `json:"carryExtraMeters"`
}

// Category names a cost component of a quote. The set is closed; a breakdown
// always carries every category, zero-valued when not applicable.
type Category string

const (
	CategoryBaseVolume        Category = "base_volume"
	CategoryDistance          Category = "distance"
	CategoryOriginFloors      Category = "origin_floors"
	CategoryDestinationFloors Category = "destination_floors"
	CategoryLongCarry         Category = "long_carry"
	CategoryPacking           Category = "packing"
	CategoryCleaning          Category = "cleaning"
)

// rutEligible is the fixed category→eligibility table for the RUT deduction.
// Labor components qualify; the distance surcharge is transport, not labor.
var rutEligible = map[Category]bool{
	CategoryBaseVolume:        true,
	CategoryDistance:          false,
	CategoryOriginFloors:      true,
	CategoryDestinationFloors: true,
	CategoryLongCarry:         true,
	CategoryPacking:           true,
	CategoryCleaning:          true,
}

// Line is one category amount within a breakdown, in öre.
type Line struct {
	Category  Category `json:"category"`
	AmountOre int64    `json:"amountOre"`
}

// PriceBreakdown is the priced decomposition of a move. Every amount is a
// non-negative integer number of öre; construction goes through Compute which
// validates each category as it is produced.
type PriceBreakdown struct {
	BaseVolumeOre        int64 `json:"baseVolumeOre"`
	DistanceOre          int64 `json:"distanceOre"`
	OriginFloorsOre      int64 `json:"originFloorsOre"`
	DestinationFloorsOre int64 `json:"destinationFloorsOre"`
	LongCarryOre         int64 `json:"longCarryOre"`
	PackingOre           int64 `json:"packingOre"`
	CleaningOre          int64 `json:"cleaningOre"`
}

// Lines returns the breakdown as an ordered category list.
func (b PriceBreakdown) Lines() []Line {
	return []Line{
		{CategoryBaseVolume, b.BaseVolumeOre},
		{CategoryDistance, b.DistanceOre},
		{CategoryOriginFloors, b.OriginFloorsOre},
		{CategoryDestinationFloors, b.DestinationFloorsOre},
		{CategoryLongCarry, b.LongCarryOre},
		{CategoryPacking, b.PackingOre},
		{CategoryCleaning, b.CleaningOre},
	}
}

// GrossOre is the sum of all categories.
func (b PriceBreakdown) GrossOre() int64 {
	var total int64
	for _, line := range b.Lines() {
		total += line.AmountOre
	}
	return total
}

// RUTEligibleOre is the subtotal of deduction-eligible labor categories.
func (b PriceBreakdown) RUTEligibleOre() int64 {
	var total int64
	for _, line := range b.Lines() {
		if rutEligible[line.Category] {
			total += line.AmountOre
		}
	}
	return total
}

// validateSpec rejects malformed specs before any arithmetic happens.
func validateSpec(spec MoveSpec) error {
	if !isFinite(spec.VolumeM3) || spec.VolumeM3 < 0 {
		return apperr.Validation("volumeM3 must be a finite non-negative number")
	}
	if !isFinite(spec.DistanceKm) || spec.DistanceKm < 0 {
		return apperr.Validation("distanceKm must be a finite non-negative number")
	}
	if !isFinite(spec.LivingAreaM2) || spec.LivingAreaM2 < 0 {
		return apperr.Validation("livingAreaM2 must be a finite non-negative number")
	}
	if !isFinite(spec.CarryExtraMeters) || spec.CarryExtraMeters < 0 {
		return apperr.Validation("carryExtraMeters must be a finite non-negative number")
	}
	if spec.Origin.Floors < 0 || spec.Destination.Floors < 0 {
		return apperr.Validation("floor count must not be negative")
	}
	if !validElevator(spec.Origin.Elevator) {
		return apperr.Validation("unknown origin elevator class")
	}
	if !validElevator(spec.Destination.Elevator) {
		return apperr.Validation("unknown destination elevator class")
	}
	return nil
}

func validElevator(class ElevatorClass) bool {
	switch class {
	case ElevatorNone, ElevatorSmall, ElevatorLarge:
		return true
	}
	return false
}
