package zscore

import (
	"math"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/stats"
)

// UnprecedentedThreshold flags Z-scores beyond this many standard
// deviations. The value is reported unclipped; clipping would destroy
// information the confidence scoring relies on.
const UnprecedentedThreshold = 5.0

// Calculator converts a current indicator value into Z-scores at the
// four fixed horizons. Horizons are independent: one horizon lacking
// history yields nil for that horizon only.
type Calculator struct{}

// NewCalculator builds a multi-horizon Z-score calculator.
func NewCalculator() *Calculator { return &Calculator{} }

// Compute evaluates all horizons against one shared series snapshot.
// The series must be ordered oldest first; the same slice serves every
// horizon so no horizon ever compares stale against fresh data.
func (c *Calculator) Compute(indicator string, current float64, series []models.Observation) models.IndicatorZScores {
	out := models.IndicatorZScores{
		Indicator: indicator,
		Current:   current,
		ByHorizon: make(map[models.Horizon]models.ZScoreResult, len(models.Horizons)),
	}
	for _, h := range models.Horizons {
		out.ByHorizon[h] = c.computeHorizon(h, current, series)
	}
	return out
}

func (c *Calculator) computeHorizon(h models.Horizon, current float64, series []models.Observation) models.ZScoreResult {
	res := models.ZScoreResult{Horizon: h}
	window := models.HorizonWindows[h]
	if len(series) < window {
		return res
	}
	st := stats.Rolling(stats.Tail(series, window), window)
	if !st.Usable() {
		return res
	}
	z := (current - st.Mean) / st.SampleStdDev
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return res
	}
	res.Value = &z
	res.Unprecedented = math.Abs(z) > UnprecedentedThreshold
	return res
}
