package ddc

import "testing"

func TestQuantizeStageRespectsCoefficientBound(t *testing.T) {
	h := []float64{0.001, -0.5, 1.0, -0.5, 0.001}
	q := quantizeStage(h, h, G1)
	for _, c := range q.Coefficients {
		if c > MaxCoeffValue || c < MinCoeffValue {
			t.Fatalf("quantized coefficient %d out of signed-18-bit range", c)
		}
	}
}

func TestQuantizeStageMaxScaleNeverOverflows(t *testing.T) {
	// spec.md §8 "FIR passband invariance under quantization": h_q =
	// round(scale*h) with scale <= (2^17-1)/max|h| implies
	// max|h_q| <= 2^17-1.
	h := []float64{2.0, -4.0, 8.0, -4.0, 2.0}
	q := quantizeStage(h, h, G1) // desired = 2^21/20 = 104857.6 exceeds max_scale = 131071/8, so max_scale is used
	var maxAbsQ int32
	for _, c := range q.Coefficients {
		if c < 0 {
			c = -c
		}
		if c > maxAbsQ {
			maxAbsQ = c
		}
	}
	if maxAbsQ > MaxCoeffValue {
		t.Fatalf("max|h_q|=%d exceeds 2^17-1=%d", maxAbsQ, MaxCoeffValue)
	}
}

func TestQuantizeCascadeGainBound(t *testing.T) {
	// spec.md §8 "DDC cascade gain bound": Sum|h_q_cascade| *
	// 2^(-Sum_growth) <= 1 when the desired scale is selected (i.e.
	// when desired <= max_scale, so quantizeStage actually used
	// desired). With growth G3 = 18 and Sum|h| = 1, desired = 2^18 =
	// 262144 is below max_scale = 131071/0.3 = 436903.
	h := []float64{0.05, 0.1, 0.2, 0.3, 0.2, 0.1, 0.05}
	q := quantizeStage(h, h, G3)
	var sumAbsQ float64
	for _, c := range q.Coefficients {
		sumAbsQ += absInt32(c)
	}
	bound := sumAbsQ / pow2(G3)
	if bound > 1.0001 {
		t.Fatalf("cascade gain bound violated: Sum|h_q|*2^-G3 = %v > 1", bound)
	}
}

func TestQuantizeThreeStageCascade(t *testing.T) {
	fr := floatResult{
		FIR1: floatStage{Coefficients: []float64{0.1, 0.3, 0.3, 0.1}, Decimation: 4},
		FIR2: &floatStage{Coefficients: []float64{0.2, 0.6, 0.2}, Decimation: 2},
		FIR3: &floatStage{Coefficients: []float64{0.5, 0.5}, Decimation: 2},
	}
	q := Quantize(fr)
	if len(q.FIR1.Coefficients) != 4 {
		t.Fatalf("FIR1 coefficient count changed: got %d want 4", len(q.FIR1.Coefficients))
	}
	if q.FIR2 == nil || len(q.FIR2.Coefficients) != 3 {
		t.Fatalf("FIR2 missing or wrong length: %+v", q.FIR2)
	}
	if q.FIR3 == nil || len(q.FIR3.Coefficients) != 2 {
		t.Fatalf("FIR3 missing or wrong length: %+v", q.FIR3)
	}
}

func absInt32(v int32) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}

func pow2(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}
