package zscore

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// Indicator names as stored in the series store.
const (
	IndicatorRSI      = "rsi"
	IndicatorMACD     = "macd"
	IndicatorPercentB = "percent_b"
	IndicatorMAGap    = "ma_gap"
	IndicatorMomentum = "momentum"
	IndicatorATR      = "atr"
)

// DirectionalWeights is the fixed composite weight table. ATR is absent
// on purpose: volatility modifies the composite multiplicatively, it is
// not a directional component.
var DirectionalWeights = map[string]float64{
	IndicatorRSI:      0.25,
	IndicatorMACD:     0.35,
	IndicatorPercentB: 0.15,
	IndicatorMAGap:    0.20,
	IndicatorMomentum: 0.05,
}

// Classification thresholds on the composite score.
const (
	buyThreshold    = 1.0
	strongThreshold = 1.96
	volAmplifier    = 0.1
)

// Engine combines per-indicator Z-score contributions into one
// composite score and discrete signal.
type Engine struct{}

// NewEngine builds a composite score engine.
func NewEngine() *Engine { return &Engine{} }

// Compose builds the composite signal from per-indicator Z-scores.
// Indicators without a contribution at a horizon simply drop out; their
// weight is not redistributed, so a thin sample shrinks the score toward
// zero, i.e. toward HOLD.
func (e *Engine) Compose(zs map[string]models.IndicatorZScores) models.CompositeSignal {
	horizonScores := make(map[models.Horizon]float64, len(models.Horizons))
	contributing := make(map[models.Horizon]bool, len(models.Horizons))

	for _, h := range models.Horizons {
		var raw float64
		any := false
		for name, weight := range DirectionalWeights {
			iz, ok := zs[name]
			if !ok {
				continue
			}
			c := Transform(iz.At(h))
			if c == nil {
				continue
			}
			v := *c
			// High band position is statistically overbought, so the
			// mean-reversion indicator contributes with inverted sign.
			if name == IndicatorPercentB {
				v = -v
			}
			raw += weight * v
			any = true
		}
		if !any {
			continue
		}
		// High-volatility regimes amplify signal strength without
		// altering its sign.
		if atr, ok := zs[IndicatorATR]; ok {
			if vz := atr.At(h); vz != nil {
				raw *= 1 + volAmplifier*math.Abs(*vz)
			}
		}
		horizonScores[h] = raw
		contributing[h] = true
	}

	score, ok := primaryScore(horizonScores)
	sig := models.CompositeSignal{
		HorizonScores:  horizonScores,
		Classification: models.ClassificationHold,
	}
	if !ok {
		return sig
	}
	sig.Score = score
	sig.Strength = math.Abs(score)
	sig.Classification = Classify(score)
	return sig
}

// primaryScore prefers the medium horizon and otherwise falls back to
// the longest horizon that produced a score. Never fabricates one.
func primaryScore(scores map[models.Horizon]float64) (float64, bool) {
	if s, ok := scores[models.HorizonMedium]; ok {
		return s, true
	}
	for i := len(models.Horizons) - 1; i >= 0; i-- {
		if s, ok := scores[models.Horizons[i]]; ok {
			return s, true
		}
	}
	return 0, false
}

// Classify maps a composite score to its discrete signal. Pure function
// of the score and the fixed thresholds; a score crossing the strong
// threshold keeps the same class with higher strength.
func Classify(score float64) models.Classification {
	switch {
	case score >= buyThreshold:
		return models.ClassificationBuy
	case score <= -buyThreshold:
		return models.ClassificationSell
	default:
		return models.ClassificationHold
	}
}

// Strong reports whether the score clears the 95% confidence threshold.
func Strong(score float64) bool {
	return math.Abs(score) >= strongThreshold
}
