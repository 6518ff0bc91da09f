package pricing

import (
	"fmt"
	"math"

	"nordflytt_backend/platform/apperr"
	"nordflytt_backend/platform/logger"
)

// Calculator computes price breakdowns from move specs. It holds only the
// immutable rate card and a logger; safe for concurrent use.
type Calculator struct {
	rates RateCard
	log   *logger.Logger
}

// NewCalculator creates a calculator for the given rate card.
func NewCalculator(rates RateCard, log *logger.Logger) *Calculator {
	return &Calculator{rates: rates, log: log}
}

// RateCard returns the calculator's rate card.
func (c *Calculator) RateCard() RateCard {
	return c.rates
}

// Compute derives the full price breakdown for a move spec.
//
// Every category amount is validated finite and non-negative as it is
// produced; a bad intermediate value is a programmer error surfaced as a
// validation error, never silently coerced to zero. A zero-volume move prices
// to zero across the board regardless of the remaining fields.
func (c *Calculator) Compute(spec MoveSpec) (PriceBreakdown, error) {
	if err := validateSpec(spec); err != nil {
		return PriceBreakdown{}, err
	}

	// Floor counts and carry meters are meaningless without volume.
	if spec.VolumeM3 == 0 {
		return PriceBreakdown{}, nil
	}

	var breakdown PriceBreakdown
	var err error

	if breakdown.BaseVolumeOre, err = c.amount(CategoryBaseVolume, c.baseCost(spec)); err != nil {
		return PriceBreakdown{}, err
	}
	if breakdown.DistanceOre, err = c.amount(CategoryDistance, c.distanceSurcharge(spec)); err != nil {
		return PriceBreakdown{}, err
	}
	if breakdown.OriginFloorsOre, err = c.amount(CategoryOriginFloors, c.floorSurcharge(spec.Origin, spec.VolumeM3, "origin")); err != nil {
		return PriceBreakdown{}, err
	}
	if breakdown.DestinationFloorsOre, err = c.amount(CategoryDestinationFloors, c.floorSurcharge(spec.Destination, spec.VolumeM3, "destination")); err != nil {
		return PriceBreakdown{}, err
	}
	if breakdown.LongCarryOre, err = c.amount(CategoryLongCarry, c.carrySurcharge(spec)); err != nil {
		return PriceBreakdown{}, err
	}
	if breakdown.PackingOre, err = c.amount(CategoryPacking, c.areaAddon(spec.Packing, spec.LivingAreaM2, c.rates.PackingOrePerM2)); err != nil {
		return PriceBreakdown{}, err
	}
	if breakdown.CleaningOre, err = c.amount(CategoryCleaning, c.areaAddon(spec.Cleaning, spec.LivingAreaM2, c.rates.CleaningOrePerM2)); err != nil {
		return PriceBreakdown{}, err
	}

	return breakdown, nil
}

// amount rounds a float-öre value to an integer after checking it is a valid
// monetary amount. Filtering bad values at aggregation time is forbidden;
// they fail here, at the point they were produced.
func (c *Calculator) amount(category Category, value float64) (int64, error) {
	if !isFinite(value) {
		return 0, apperr.Validation(fmt.Sprintf("non-finite amount computed for category %s", category))
	}
	if value < 0 {
		return 0, apperr.Validation(fmt.Sprintf("negative amount computed for category %s", category))
	}
	return int64(math.Round(value)), nil
}

func (c *Calculator) baseCost(spec MoveSpec) float64 {
	cost := spec.VolumeM3 * c.rates.baseRatePerM3(spec.VolumeM3)
	if cost < float64(c.rates.MinimumBaseOre) {
		cost = float64(c.rates.MinimumBaseOre)
	}
	return cost
}

// distanceSurcharge bills only the kilometers beyond the free threshold.
// Moves needing more than one truck pay a reduced multiple per extra truck.
func (c *Calculator) distanceSurcharge(spec MoveSpec) float64 {
	billableKm := spec.DistanceKm - c.rates.FreeDistanceKm
	if billableKm <= 0 {
		return 0
	}

	perKm := float64(c.rates.RegionalKmOre)
	if spec.DistanceKm > c.rates.LongHaulFromKm {
		perKm = float64(c.rates.LongHaulKmOre)
	}

	trucks := math.Ceil(spec.VolumeM3 / c.rates.TruckCapacityM3)
	if trucks < 1 {
		trucks = 1
	}
	multiplier := trucks*0.7 + 0.3

	return billableKm * perKm * multiplier
}

// floorSurcharge prices the carry work per floor, scaled by volume. A large
// elevator removes the surcharge entirely; a provided floor count is clamped
// and logged because it indicates a sloppy caller, not an error.
func (c *Calculator) floorSurcharge(side SideAccess, volumeM3 float64, label string) float64 {
	if side.Elevator == ElevatorLarge {
		if side.Floors != 0 && c.log != nil {
			c.log.Warn("floor count ignored for large elevator", "side", label, "floors", side.Floors)
		}
		return 0
	}

	perFloor := float64(c.rates.FloorStairsOrePerM3)
	if side.Elevator == ElevatorSmall {
		perFloor = float64(c.rates.FloorSmallLiftOrePerM3)
	}

	return float64(side.Floors) * perFloor * volumeM3
}

func (c *Calculator) carrySurcharge(spec MoveSpec) float64 {
	if !spec.LongCarry {
		return 0
	}

	meters := spec.CarryExtraMeters
	if meters > c.rates.CarryMaxExtraMeters {
		meters = c.rates.CarryMaxExtraMeters
	}

	return meters * float64(c.rates.CarryOrePerM3Meter) * spec.VolumeM3
}

func (c *Calculator) areaAddon(enabled bool, areaM2 float64, ratePerM2 int64) float64 {
	if !enabled {
		return 0
	}
	return areaM2 * float64(ratePerM2)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
