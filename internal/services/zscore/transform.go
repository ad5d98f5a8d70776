package zscore

import "math"

// Confidence band cutoffs (two-sided normal) and the bounded
// contribution each band maps to. Banded rather than linear so the
// contribution reflects statistical significance, not raw magnitude.
const (
	band99 = 2.58
	band95 = 1.96
	band68 = 1.00

	contrib99 = 1.0
	contrib95 = 0.75
	contrib68 = 0.5

	// Below one sigma the contribution tapers linearly.
	taperSlope = 0.25
)

// Transform maps one Z-score into a bounded signal contribution.
// A nil input yields nil: no contribution, no weight consumed.
func Transform(z *float64) *float64 {
	if z == nil {
		return nil
	}
	abs := math.Abs(*z)
	sign := 1.0
	if *z < 0 {
		sign = -1.0
	}
	var c float64
	switch {
	case abs > band99:
		c = sign * contrib99
	case abs > band95:
		c = sign * contrib95
	case abs > band68:
		c = sign * contrib68
	default:
		c = *z * taperSlope
	}
	return &c
}
