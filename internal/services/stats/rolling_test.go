package stats

import (
	"math"
	"testing"

	"MarketPulse/internal/domain/errs"
	"MarketPulse/internal/domain/models"
)

func TestRollingSampleStdDev(t *testing.T) {
	// mean 14, sample variance with divisor 4 -> stddev ~= 2.7386
	st := Rolling([]float64{10, 12, 14, 16, 18}, 5)
	if st.Degenerate || st.Corrupted {
		t.Fatalf("unexpected flags: %+v", st)
	}
	if st.Mean != 14 {
		t.Fatalf("mean = %v, want 14", st.Mean)
	}
	if math.Abs(st.SampleStdDev-math.Sqrt(10)) > 1e-9 {
		t.Fatalf("stddev = %v, want sqrt(10)", st.SampleStdDev)
	}
	if st.Count != 5 {
		t.Fatalf("count = %d, want 5", st.Count)
	}
}

func TestRollingWindowTail(t *testing.T) {
	// only the last 3 values participate
	st := Rolling([]float64{100, 100, 1, 2, 3}, 3)
	if st.Mean != 2 {
		t.Fatalf("mean = %v, want 2", st.Mean)
	}
	if st.Count != 3 {
		t.Fatalf("count = %d, want 3", st.Count)
	}
}

func TestRollingShortSampleDegenerate(t *testing.T) {
	for _, vals := range [][]float64{nil, {}, {42}} {
		st := Rolling(vals, 5)
		if !st.Degenerate {
			t.Fatalf("n=%d: expected degenerate", len(vals))
		}
	}
}

func TestRollingIdenticalValuesCorrupted(t *testing.T) {
	for w := 2; w <= 10; w++ {
		vals := make([]float64, w)
		for i := range vals {
			vals[i] = 52.5
		}
		st := Rolling(vals, w)
		if !st.Corrupted {
			t.Fatalf("w=%d: expected corrupted flag", w)
		}
		if st.Usable() {
			t.Fatalf("w=%d: corrupted stats must not be usable", w)
		}
	}
}

func TestRollingNonFiniteDegenerate(t *testing.T) {
	st := Rolling([]float64{1, math.Inf(1), 3}, 3)
	if !st.Degenerate {
		t.Fatalf("expected degenerate on non-finite input, got %+v", st)
	}
}

func TestTail(t *testing.T) {
	series := []models.Observation{{Value: 1}, {Value: 2}, {Value: 3}}
	got := Tail(series, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("tail = %v", got)
	}
	if got := Tail(series, 10); len(got) != 3 {
		t.Fatalf("over-length tail = %v", got)
	}
}

func TestSufficiencyGateRejectsShortSeries(t *testing.T) {
	g := NewSufficiencyGate(180)
	series := make([]models.Observation, 5)
	for i := range series {
		series[i] = models.Observation{Value: float64(i)}
	}
	err := g.Check("SPY", "rsi", series)
	ie, ok := errs.AsInsufficient(err)
	if !ok {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ie.Reason != errs.ReasonInsufficientBars {
		t.Fatalf("reason = %s", ie.Reason)
	}
	if ie.Count != 5 {
		t.Fatalf("count = %d", ie.Count)
	}
}

func TestSufficiencyGateRejectsEmpty(t *testing.T) {
	g := NewSufficiencyGate(0)
	err := g.Check("SPY", "rsi", nil)
	ie, ok := errs.AsInsufficient(err)
	if !ok || ie.Reason != errs.ReasonNoData {
		t.Fatalf("expected no_data, got %v", err)
	}
}

func TestSufficiencyGateRejectsFlatSeries(t *testing.T) {
	g := NewSufficiencyGate(180)
	series := make([]models.Observation, 200)
	for i := range series {
		series[i] = models.Observation{Value: 50}
	}
	err := g.Check("SPY", "rsi", series)
	ie, ok := errs.AsInsufficient(err)
	if !ok || ie.Reason != errs.ReasonDegenerateStdDev {
		t.Fatalf("expected degenerate_stddev, got %v", err)
	}
}

func TestSufficiencyGatePasses(t *testing.T) {
	g := NewSufficiencyGate(180)
	series := make([]models.Observation, 200)
	for i := range series {
		series[i] = models.Observation{Value: 50 + math.Sin(float64(i))*5}
	}
	if err := g.Check("SPY", "rsi", series); err != nil {
		t.Fatalf("unexpected reject: %v", err)
	}
}
