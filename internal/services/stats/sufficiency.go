package stats

import (
	"MarketPulse/internal/domain/errs"
	"MarketPulse/internal/domain/models"
)

const (
	// DefaultMinObservations is the minimum history length before any
	// signal computation is attempted for a symbol.
	DefaultMinObservations = 180
	// VarianceEpsilon is the smallest stddev considered statistically
	// meaningful.
	VarianceEpsilon = 1e-8
)

// SufficiencyGate refuses computation when the sample is too small or
// degenerate, so callers surface a typed insufficient-data state instead
// of fabricating numbers.
type SufficiencyGate struct {
	MinObservations int
	Epsilon         float64
}

// NewSufficiencyGate builds a gate with the given minimum; zero or
// negative falls back to the default.
func NewSufficiencyGate(minObs int) *SufficiencyGate {
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}
	return &SufficiencyGate{MinObservations: minObs, Epsilon: VarianceEpsilon}
}

// Check validates one indicator series for a symbol. It returns a
// reason-coded *errs.InsufficientDataError on reject, nil on pass.
func (g *SufficiencyGate) Check(symbol, indicator string, series []models.Observation) error {
	if len(series) == 0 {
		return &errs.InsufficientDataError{
			Symbol: symbol, Indicator: indicator,
			Reason: errs.ReasonNoData,
		}
	}
	if len(series) < g.MinObservations {
		return &errs.InsufficientDataError{
			Symbol: symbol, Indicator: indicator,
			Reason: errs.ReasonInsufficientBars,
			Count:  len(series),
		}
	}
	st := Rolling(Tail(series, g.MinObservations), g.MinObservations)
	if !st.Usable() || st.SampleStdDev < g.Epsilon {
		return &errs.InsufficientDataError{
			Symbol: symbol, Indicator: indicator,
			Reason: errs.ReasonDegenerateStdDev,
			Count:  len(series),
		}
	}
	return nil
}
