package zscore

import (
	"math"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestTransformBands(t *testing.T) {
	cases := []struct {
		z    float64
		want float64
	}{
		{3.0, 1.0},
		{-3.0, -1.0},
		{2.59, 1.0},
		{2.2, 0.75},
		{-2.0, -0.75},
		{1.5, 0.5},
		{-1.2, -0.5},
		{0.8, 0.2},
		{-0.4, -0.1},
		{0, 0},
	}
	for _, tc := range cases {
		got := Transform(fptr(tc.z))
		if got == nil {
			t.Fatalf("z=%v: unexpected nil", tc.z)
		}
		if math.Abs(*got-tc.want) > 1e-12 {
			t.Fatalf("z=%v: contribution = %v, want %v", tc.z, *got, tc.want)
		}
	}
}

func TestTransformBandBoundaries(t *testing.T) {
	// boundaries are exclusive: exactly 1.00 stays in the linear taper
	if got := Transform(fptr(1.0)); *got != 0.25 {
		t.Fatalf("z=1.0: got %v, want 0.25", *got)
	}
	if got := Transform(fptr(1.96)); *got != 0.5 {
		t.Fatalf("z=1.96: got %v, want 0.5", *got)
	}
	if got := Transform(fptr(2.58)); *got != 0.75 {
		t.Fatalf("z=2.58: got %v, want 0.75", *got)
	}
}

func TestTransformNilPassThrough(t *testing.T) {
	if Transform(nil) != nil {
		t.Fatalf("nil Z-score must yield nil contribution")
	}
}

func TestTransformBounded(t *testing.T) {
	for _, z := range []float64{8, -12, 100, -5.01} {
		got := Transform(fptr(z))
		if math.Abs(*got) > 1.0 {
			t.Fatalf("z=%v: contribution %v exceeds bound", z, *got)
		}
	}
}
