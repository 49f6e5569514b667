package ddc

import "testing"

func TestPMDesignLength(t *testing.T) {
	bands := []Band{
		{Start: 0, End: 0.1, Desired: 1, Weight: ConstantWeight(1)},
		{Start: 0.15, End: 0.5, Desired: 0, Weight: ConstantWeight(10)},
	}
	d, err := PMDesign(21, bands)
	if err != nil {
		t.Fatalf("PMDesign failed: %v", err)
	}
	if len(d.Coefficients) != 21 {
		t.Fatalf("PMDesign returned %d taps, want 21", len(d.Coefficients))
	}
}

func TestPMDesignSymmetric(t *testing.T) {
	bands := []Band{
		{Start: 0, End: 0.1, Desired: 1, Weight: ConstantWeight(1)},
		{Start: 0.15, End: 0.5, Desired: 0, Weight: ConstantWeight(10)},
	}
	d, err := PMDesign(15, bands)
	if err != nil {
		t.Fatalf("PMDesign failed: %v", err)
	}
	n := len(d.Coefficients)
	for i := 0; i < n/2; i++ {
		if diff := d.Coefficients[i] - d.Coefficients[n-1-i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("PMDesign impulse response not symmetric at %d/%d: %v vs %v", i, n-1-i, d.Coefficients[i], d.Coefficients[n-1-i])
		}
	}
}

func TestPMDesignEvenLengthPromotedToOdd(t *testing.T) {
	bands := []Band{
		{Start: 0, End: 0.1, Desired: 1, Weight: ConstantWeight(1)},
		{Start: 0.15, End: 0.5, Desired: 0, Weight: ConstantWeight(10)},
	}
	d, err := PMDesign(20, bands)
	if err != nil {
		t.Fatalf("PMDesign failed: %v", err)
	}
	if len(d.Coefficients)%2 != 1 {
		t.Fatalf("even numTaps request should be promoted to odd, got %d", len(d.Coefficients))
	}
}

func TestLinearWeightEndpoints(t *testing.T) {
	w := LinearWeight(0.2, 0.5, 1.0, 10.0)
	if got := w(0.2); got < 0.999 || got > 1.001 {
		t.Fatalf("LinearWeight at start = %v, want ~1.0", got)
	}
	if got := w(0.5); got < 9.999 || got > 10.001 {
		t.Fatalf("LinearWeight at end = %v, want ~10.0", got)
	}
}
