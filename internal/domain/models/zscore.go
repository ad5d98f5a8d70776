package models

// Horizon is a fixed lookback window length, in observations.
type Horizon string

const (
	HorizonShort     Horizon = "short"
	HorizonMedium    Horizon = "medium"
	HorizonLong      Horizon = "long"
	HorizonUltraLong Horizon = "ultra_long"
)

// HorizonWindows maps each horizon to its window length.
// Short covers roughly a quarter of trading days, medium a year,
// long three years, ultra-long five years.
var HorizonWindows = map[Horizon]int{
	HorizonShort:     63,
	HorizonMedium:    252,
	HorizonLong:      756,
	HorizonUltraLong: 1260,
}

// Horizons in ascending window order.
var Horizons = []Horizon{HorizonShort, HorizonMedium, HorizonLong, HorizonUltraLong}

// MaxLookback is the longest window any horizon needs, doubled so the
// series is fetched once and reused across all horizons.
const MaxLookback = 2520

// RollingStatistics holds mean and sample standard deviation over a
// bounded tail window. Count reflects the actual number of observations
// used, which may be smaller than the requested window.
type RollingStatistics struct {
	WindowSize   int
	Mean         float64
	SampleStdDev float64
	Count        int

	// Degenerate is set when Count < 2 or the stddev is zero or non-finite;
	// callers must not divide by SampleStdDev.
	Degenerate bool
	// Corrupted is set when every value in the window is bit-identical,
	// a known upstream corruption signature. Treated like insufficient data.
	Corrupted bool
}

// Usable reports whether SampleStdDev is safe to divide by.
func (s RollingStatistics) Usable() bool {
	return !s.Degenerate && !s.Corrupted
}

// ZScoreResult is the outcome of one horizon's Z-score computation.
// Value is nil when history is too short or variance is degenerate for
// that horizon; nil is never coerced to 0, because 0 is a meaningful
// Z-score.
type ZScoreResult struct {
	Horizon Horizon  `json:"horizon"`
	Value   *float64 `json:"value"`

	// Unprecedented marks |z| > 5. The value is kept unclipped; bounding
	// happens in the signal transform, not here.
	Unprecedented bool `json:"unprecedented,omitempty"`
}

// IndicatorZScores holds the per-horizon Z-scores of one indicator.
type IndicatorZScores struct {
	Indicator string                   `json:"indicator"`
	Current   float64                  `json:"current"`
	ByHorizon map[Horizon]ZScoreResult `json:"by_horizon"`
}

// Primary returns the longest horizon that produced a value, or nil.
func (z IndicatorZScores) Primary() *ZScoreResult {
	for i := len(Horizons) - 1; i >= 0; i-- {
		if r, ok := z.ByHorizon[Horizons[i]]; ok && r.Value != nil {
			return &r
		}
	}
	return nil
}

// At returns the Z-score value at a horizon, or nil when unavailable.
func (z IndicatorZScores) At(h Horizon) *float64 {
	if r, ok := z.ByHorizon[h]; ok {
		return r.Value
	}
	return nil
}
