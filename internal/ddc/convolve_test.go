package ddc

import "testing"

func TestZeroPack(t *testing.T) {
	got := ZeroPack([]float64{1, 2, 3}, 2)
	want := []float64{1, 0, 2, 0, 3, 0}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("ZeroPack mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestConvolve(t *testing.T) {
	got := Convolve([]float64{1, 2, 3}, []float64{1, 2, 3})
	want := []float64{1, 4, 10, 12, 9}
	if len(got) != len(want) {
		t.Fatalf("Convolve length mismatch: got %d want %d", len(got), len(want))
	}
	for i, v := range want {
		if got[i] != v {
			t.Fatalf("Convolve mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestConvolveEmpty(t *testing.T) {
	if got := Convolve(nil, []float64{1, 2}); got != nil {
		t.Fatalf("Convolve with empty input should return nil, got %v", got)
	}
}
