package pricing

import (
	"fmt"

	"nordflytt_backend/platform/config"
)

// RateCard is the explicit, validated pricing configuration. It is loaded once
// per process and treated as immutable for the lifetime of every calculation.
// Monetary rates are öre; the per-m³ base rate is interpolated between volume
// anchors, mirroring the company's tiered pricing policy.
type RateCard struct {
	// Base rate anchors, öre per m³. Small applies at or below the small
	// anchor volume, Bulk at or above the bulk anchor volume, linear in between.
	BaseRateSmallOre int64
	BaseRateMidOre   int64
	BaseRateLargeOre int64
	BaseRateBulkOre  int64
	MinimumBaseOre   int64

	FreeDistanceKm  float64
	RegionalKmOre   int64
	LongHaulKmOre   int64
	LongHaulFromKm  float64
	TruckCapacityM3 float64

	// Floor surcharge rates, öre per m³ per floor. Large elevators carry
	// no surcharge at all.
	FloorStairsOrePerM3    int64
	FloorSmallLiftOrePerM3 int64

	// Long-carry rate, öre per m³ per extra meter beyond the free threshold.
	CarryOrePerM3Meter  int64
	CarryMaxExtraMeters float64

	PackingOrePerM2  int64
	CleaningOrePerM2 int64

	// Billing rate for on-site volume overages, öre per m³.
	ExtraVolumeOrePerM3 int64
}

// Volume anchors for the base rate interpolation, in m³.
const (
	baseAnchorSmall = 5.0
	baseAnchorMid   = 15.0
	baseAnchorLarge = 40.0
	baseAnchorBulk  = 57.0
)

// NewRateCard builds a rate card from configuration and validates it.
func NewRateCard(cfg config.PricingConfig) (RateCard, error) {
	card := RateCard{
		BaseRateSmallOre:       cfg.GetBaseRateSmallOre(),
		BaseRateMidOre:         cfg.GetBaseRateMidOre(),
		BaseRateLargeOre:       cfg.GetBaseRateLargeOre(),
		BaseRateBulkOre:        cfg.GetBaseRateBulkOre(),
		MinimumBaseOre:         cfg.GetMinimumBaseOre(),
		FreeDistanceKm:         cfg.GetFreeDistanceKm(),
		RegionalKmOre:          cfg.GetRegionalKmOre(),
		LongHaulKmOre:          cfg.GetLongHaulKmOre(),
		LongHaulFromKm:         cfg.GetLongHaulFromKm(),
		TruckCapacityM3:        cfg.GetTruckCapacityM3(),
		FloorStairsOrePerM3:    cfg.GetFloorStairsOrePerM3(),
		FloorSmallLiftOrePerM3: cfg.GetFloorSmallLiftOrePerM3(),
		CarryOrePerM3Meter:     cfg.GetCarryOrePerM3Meter(),
		CarryMaxExtraMeters:    cfg.GetCarryMaxExtraMeters(),
		PackingOrePerM2:        cfg.GetPackingOrePerM2(),
		CleaningOrePerM2:       cfg.GetCleaningOrePerM2(),
		ExtraVolumeOrePerM3:    cfg.GetExtraVolumeOrePerM3(),
	}
	if err := card.Validate(); err != nil {
		return RateCard{}, err
	}
	return card, nil
}

// Validate checks the rate card for values that would corrupt calculations.
func (r RateCard) Validate() error {
	rates := map[string]int64{
		"base rate small":  r.BaseRateSmallOre,
		"base rate mid":    r.BaseRateMidOre,
		"base rate large":  r.BaseRateLargeOre,
		"base rate bulk":   r.BaseRateBulkOre,
		"minimum base":     r.MinimumBaseOre,
		"regional km":      r.RegionalKmOre,
		"long haul km":     r.LongHaulKmOre,
		"floor stairs":     r.FloorStairsOrePerM3,
		"floor small lift": r.FloorSmallLiftOrePerM3,
		"carry meter":      r.CarryOrePerM3Meter,
		"packing m2":       r.PackingOrePerM2,
		"cleaning m2":      r.CleaningOrePerM2,
		"extra volume m3":  r.ExtraVolumeOrePerM3,
	}
	for name, value := range rates {
		if value < 0 {
			return fmt.Errorf("rate card: %s rate must not be negative", name)
		}
	}
	if r.BaseRateSmallOre == 0 {
		return fmt.Errorf("rate card: base rate small must be positive")
	}
	if r.TruckCapacityM3 <= 0 {
		return fmt.Errorf("rate card: truck capacity must be positive")
	}
	if r.FreeDistanceKm < 0 || r.LongHaulFromKm < 0 || r.CarryMaxExtraMeters < 0 {
		return fmt.Errorf("rate card: thresholds must not be negative")
	}
	return nil
}

// baseRatePerM3 interpolates the öre-per-m³ rate for the given volume.
// Small moves pay the highest unit rate, bulk moves the lowest.
func (r RateCard) baseRatePerM3(volumeM3 float64) float64 {
	small := float64(r.BaseRateSmallOre)
	mid := float64(r.BaseRateMidOre)
	large := float64(r.BaseRateLargeOre)
	bulk := float64(r.BaseRateBulkOre)

	switch {
	case volumeM3 <= baseAnchorSmall:
		return small
	case volumeM3 >= baseAnchorBulk:
		return bulk
	case volumeM3 <= baseAnchorMid:
		return interpolate(volumeM3, baseAnchorSmall, baseAnchorMid, small, mid)
	case volumeM3 <= baseAnchorLarge:
		return interpolate(volumeM3, baseAnchorMid, baseAnchorLarge, mid, large)
	default:
		return interpolate(volumeM3, baseAnchorLarge, baseAnchorBulk, large, bulk)
	}
}

func interpolate(x, x0, x1, y0, y1 float64) float64 {
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
