package stats

import (
	"math"

	"MarketPulse/internal/domain/models"
)

// Rolling computes mean and sample standard deviation over the most
// recent `window` values using Welford's single-pass recurrence.
// Sample variance (divisor n-1) is deliberate: population variance
// underestimates dispersion and inflates downstream Z-scores.
func Rolling(values []float64, window int) models.RollingStatistics {
	st := models.RollingStatistics{WindowSize: window}
	if window < 1 || len(values) == 0 {
		st.Degenerate = true
		return st
	}

	tail := values
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}

	var mean, m2 float64
	n := 0
	identical := true
	for i, v := range tail {
		if i > 0 && v != tail[0] {
			identical = false
		}
		n++
		delta := v - mean
		mean += delta / float64(n)
		m2 += delta * (v - mean)
	}

	st.Mean = mean
	st.Count = n

	if n < 2 {
		st.Degenerate = true
		return st
	}

	variance := m2 / float64(n-1)
	st.SampleStdDev = math.Sqrt(variance)

	if st.SampleStdDev == 0 || math.IsNaN(st.SampleStdDev) || math.IsInf(st.SampleStdDev, 0) {
		st.Degenerate = true
	}
	// A run of bit-identical values is an upstream corruption signature,
	// not a legitimate zero-variance market state.
	if identical && n >= 2 {
		st.Corrupted = true
	}
	return st
}

// Tail returns the values of the most recent n observations.
func Tail(series []models.Observation, n int) []float64 {
	if n > len(series) {
		n = len(series)
	}
	out := make([]float64, 0, n)
	for _, o := range series[len(series)-n:] {
		out = append(out, o.Value)
	}
	return out
}
