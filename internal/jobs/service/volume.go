package service

import (
	"context"
	"fmt"
	"math"

	"nordflytt_backend/internal/jobs/repository"
	"nordflytt_backend/platform/apperr"

	"github.com/google/uuid"
)

// RecordVolumeAdjustment records the volume measured by the crew on site.
// The measured volume is always stored. Only a strict overage — measured
// volume above the quoted volume — produces a billable ledger entry; a move
// that comes in under the quoted volume is never refunded.
//
// The returned entry is nil when no overage was billed.
func (s *Service) RecordVolumeAdjustment(ctx context.Context, jobID uuid.UUID, actualM3 float64, addedBy string) (*repository.LedgerEntry, error) {
	if math.IsNaN(actualM3) || math.IsInf(actualM3, 0) || actualM3 < 0 {
		return nil, apperr.Validation("actual volume must be a finite non-negative number")
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetActualVolume(ctx, jobID, actualM3); err != nil {
		return nil, err
	}

	extra := actualM3 - job.OriginalVolumeM3
	if extra <= 0 {
		s.log.Info("volume adjustment recorded, no overage",
			"job_id", jobID.String(),
			"quoted_m3", job.OriginalVolumeM3,
			"actual_m3", actualM3)
		return nil, nil
	}

	totalOre := int64(math.Round(extra * float64(s.rates.ExtraVolumeOrePerM3)))
	entry, err := s.Append(ctx, jobID, AppendParams{
		Category:      repository.CategoryVolumeOverage,
		Description:   fmt.Sprintf("Volume overage: %.1f m³ quoted, %.1f m³ measured", job.OriginalVolumeM3, actualM3),
		Quantity:      extra,
		Unit:          "m3",
		UnitPriceOre:  s.rates.ExtraVolumeOrePerM3,
		TotalPriceOre: totalOre,
		RUTEligible:   true,
		AddedBy:       addedBy,
	})
	if err != nil {
		return nil, err
	}

	s.log.PriceEvent("volume_overage_billed", jobID.String(), totalOre)
	return entry, nil
}
