// Package ddc implements component F: the digital down-converter
// design engine (Ichige tap estimation, Parks-McClellan/Remez design,
// stage factoring under FPGA capacity constraints, and growth-aware
// fixed-point quantization), grounded on
// original_source/maia-httpd/src/ddc.rs and its sibling
// ddc/constants.rs.
package ddc

// Hardware constants, ground-truth values taken from
// original_source/maia-httpd/src/ddc/constants.rs.
const (
	CoefficientBits      = 18
	MaxDecimation        = (1 << 7) - 1 // 127
	MaxOperations        = 1 << 7       // 128
	MaxCoefficients4DSP  = 256
	MaxCoefficients2DSP  = 128
	ClockFrequencyHz     = 187_500_000.0
)

// maccTrunc and widthGrowth are per-stage fixed-point growth
// parameters (ddc/constants.rs: MACC_TRUNC = [17,18,18], WIDTH_GROWTH
// = [4,0,0]).
var (
	maccTrunc   = [3]int{17, 18, 18}
	widthGrowth = [3]int{4, 0, 0}
)

// Stage growth budgets used by Quantize (spec.md §4.F step 5).
//
// G2 is 18, not the 17 that appears in spec.md's prose: computing
// MACC_TRUNC[1]+WIDTH_GROWTH[1] from the original source's own
// constants.rs gives 18+0=18. See DESIGN.md's "Resolved Open
// Questions" for the justification; the original source's constants
// are authoritative over the spec's inconsistent prose.
var (
	G1 = maccTrunc[0] + widthGrowth[0] // 21
	G2 = maccTrunc[1] + widthGrowth[1] // 18
	G3 = maccTrunc[2] + widthGrowth[2] // 18
)

// MaxCoeffValue / MinCoeffValue bound a signed 18-bit coefficient (spec.md §3).
const (
	MaxCoeffValue = (1 << (CoefficientBits - 1)) - 1
	MinCoeffValue = -(1 << (CoefficientBits - 1))
)
