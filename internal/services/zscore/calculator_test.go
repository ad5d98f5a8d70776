package zscore

import (
	"math"
	"testing"

	"MarketPulse/internal/domain/models"
)

func obsSeries(values []float64) []models.Observation {
	out := make([]models.Observation, len(values))
	for i, v := range values {
		out[i] = models.Observation{Value: v}
	}
	return out
}

func synthSeries(n int, base, amp float64) []models.Observation {
	out := make([]models.Observation, n)
	for i := range out {
		out[i] = models.Observation{Value: base + amp*math.Sin(float64(i)*0.7)}
	}
	return out
}

func TestComputeShortHistoryAllNil(t *testing.T) {
	c := NewCalculator()
	series := obsSeries([]float64{10, 12, 14, 16, 18})
	// below every horizon window: all horizons nil
	zs := c.Compute("rsi", 20, series)
	for _, h := range models.Horizons {
		if zs.ByHorizon[h].Value != nil {
			t.Fatalf("horizon %s: expected nil on short history", h)
		}
	}
}

func TestComputeHorizonFormula(t *testing.T) {
	c := NewCalculator()
	// 63 observations alternating around mean 14 with the documented
	// five-point pattern repeated; verify against a direct computation.
	vals := make([]float64, 63)
	pattern := []float64{10, 12, 14, 16, 18}
	for i := range vals {
		vals[i] = pattern[i%len(pattern)]
	}
	res := c.computeHorizon(models.HorizonShort, 20, obsSeries(vals))
	if res.Value == nil {
		t.Fatalf("expected value")
	}
	// direct: z = (20 - mean) / sample stddev
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / 63
	var m2 float64
	for _, v := range vals {
		m2 += (v - mean) * (v - mean)
	}
	want := (20 - mean) / math.Sqrt(m2/62)
	if math.Abs(*res.Value-want) > 1e-12 {
		t.Fatalf("z = %v, want %v", *res.Value, want)
	}
}

func TestComputeHorizonsIndependent(t *testing.T) {
	c := NewCalculator()
	series := synthSeries(300, 50, 5) // enough for short+medium only
	zs := c.Compute("rsi", 52, series)
	if zs.ByHorizon[models.HorizonShort].Value == nil {
		t.Fatalf("short horizon should have data")
	}
	if zs.ByHorizon[models.HorizonMedium].Value == nil {
		t.Fatalf("medium horizon should have data")
	}
	if zs.ByHorizon[models.HorizonLong].Value != nil {
		t.Fatalf("long horizon should be nil with 300 observations")
	}
	if zs.ByHorizon[models.HorizonUltraLong].Value != nil {
		t.Fatalf("ultra-long horizon should be nil with 300 observations")
	}
}

func TestComputeCorruptedSeriesYieldsNil(t *testing.T) {
	c := NewCalculator()
	vals := make([]float64, 1300)
	for i := range vals {
		vals[i] = 42
	}
	zs := c.Compute("rsi", 42, obsSeries(vals))
	for _, h := range models.Horizons {
		if zs.ByHorizon[h].Value != nil {
			t.Fatalf("horizon %s: identical-value series must yield nil", h)
		}
	}
}

func TestComputeUnprecedentedFlag(t *testing.T) {
	c := NewCalculator()
	series := synthSeries(100, 50, 1)
	res := c.computeHorizon(models.HorizonShort, 500, series)
	if res.Value == nil {
		t.Fatalf("expected value")
	}
	if !res.Unprecedented {
		t.Fatalf("|z| far beyond 5 sigma must be flagged, z=%v", *res.Value)
	}
	// the value itself stays unclipped
	if math.Abs(*res.Value) <= UnprecedentedThreshold {
		t.Fatalf("value must not be clipped: %v", *res.Value)
	}
}

func TestPrimaryPrefersLongestAvailable(t *testing.T) {
	c := NewCalculator()
	zs := c.Compute("rsi", 52, synthSeries(800, 50, 5))
	p := zs.Primary()
	if p == nil {
		t.Fatalf("expected a primary horizon")
	}
	if p.Horizon != models.HorizonLong {
		t.Fatalf("primary = %s, want long", p.Horizon)
	}
}
