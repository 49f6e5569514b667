package ddc

import "math"

// quantizedStage is one stage's coefficients after fixed-point
// scaling (spec.md §4.F step 5).
type quantizedStage struct {
	Coefficients []int32
}

type quantizedResult struct {
	FIR1 quantizedStage
	FIR2 *quantizedStage
	FIR3 *quantizedStage
}

// Quantize converts a cascade of float stage designs into fixed-point
// coefficients with stage-accurate growth-aware scaling (spec.md §4.F
// step 5, grounded on original_source/maia-httpd/src/ddc.rs's
// quantize): for each stage, scale is the smaller of max_scale (keeps
// |h_q| within a signed 18-bit coefficient) and a gain-budget scale
// desired = 2^Sum(growth)/Sum(|h_convolved|), where h_convolved is the
// full cascaded impulse response up to that stage, accounting for the
// upstream zero-packing a downstream decimation imposes on earlier
// stages' impulse responses.
func Quantize(fr floatResult) quantizedResult {
	cascade := fr.FIR1.Coefficients
	out := quantizedResult{FIR1: quantizeStage(fr.FIR1.Coefficients, cascade, G1)}

	if fr.FIR2 != nil {
		cascade = Convolve(cascade, ZeroPack(fr.FIR2.Coefficients, int(fr.FIR1.Decimation)))
		q := quantizeStage(fr.FIR2.Coefficients, cascade, G2)
		out.FIR2 = &q
	}

	if fr.FIR3 != nil {
		upstreamDecimation := int(fr.FIR1.Decimation)
		if fr.FIR2 != nil {
			upstreamDecimation *= int(fr.FIR2.Decimation)
		}
		cascade = Convolve(cascade, ZeroPack(fr.FIR3.Coefficients, upstreamDecimation))
		q := quantizeStage(fr.FIR3.Coefficients, cascade, G3)
		out.FIR3 = &q
	}

	return out
}

// quantizeStage picks scale = min(desired, max_scale) for one stage's
// own coefficients h, using the full cascaded response (h or its
// zero-packed convolution with upstream stages) to compute the
// gain-budget scale, then rounds h*scale to int32.
func quantizeStage(h, cascade []float64, growth int) quantizedStage {
	maxAbsH := maxAbs(h)
	maxScale := math.Inf(1)
	if maxAbsH > 0 {
		maxScale = float64(MaxCoeffValue) / maxAbsH
	}

	sumAbsCascade := sumAbs(cascade)
	desired := math.Inf(1)
	if sumAbsCascade > 0 {
		desired = math.Pow(2, float64(growth)) / sumAbsCascade
	}

	scale := desired
	if maxScale < scale {
		scale = maxScale
	}

	q := make([]int32, len(h))
	for i, v := range h {
		r := math.Round(v * scale)
		if r > MaxCoeffValue {
			r = MaxCoeffValue
		}
		if r < MinCoeffValue {
			r = MinCoeffValue
		}
		q[i] = int32(r)
	}
	return quantizedStage{Coefficients: q}
}

func maxAbs(x []float64) float64 {
	var m float64
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

func sumAbs(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += math.Abs(v)
	}
	return s
}
