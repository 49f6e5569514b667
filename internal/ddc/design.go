package ddc

import (
	"fmt"
	"math"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

// Tolerances are the user-facing design parameters (spec.md §4.F).
type Tolerances struct {
	DeltaF   float64 // transition bandwidth
	DeltaP   float64 // passband ripple
	DeltaS   float64 // stopband attenuation (linear)
	OneOverF bool
}

// DefaultTolerances matches original_source/maia-httpd/src/ddc.rs's
// Config::default(): delta_f=0.05, delta_p=0.01, delta_s=1e-3,
// one_over_f=true.
func DefaultTolerances() Tolerances {
	return Tolerances{DeltaF: 0.05, DeltaP: 0.01, DeltaS: 0.001, OneOverF: true}
}

// StageResult is one quantized, realizable FIR stage.
type StageResult struct {
	Coefficients []int32
	Decimation   uint32
}

// Result is a full (1-3 stage) DDC design.
type Result struct {
	FIR1 StageResult
	FIR2 *StageResult
	FIR3 *StageResult
}

// Design runs the full pipeline of spec.md §4.F: factor the requested
// decimation into 1-3 FPGA-realizable stages, design each stage with
// Parks-McClellan seeded by Ichige, and quantize with growth-aware
// fixed-point scaling.
func Design(decimation uint32, inputSampRate float64, tol Tolerances) (Result, error) {
	split, err := stagesDesign(decimation, inputSampRate, tol)
	if err != nil {
		return Result{}, err
	}

	floatStages, err := splitDesign(split, inputSampRate, tol)
	if err != nil {
		return Result{}, err
	}

	quantized := Quantize(floatStages)

	result := Result{FIR1: StageResult{Coefficients: quantized.FIR1.Coefficients, Decimation: floatStages.FIR1.Decimation}}
	if quantized.FIR2 != nil {
		result.FIR2 = &StageResult{Coefficients: quantized.FIR2.Coefficients, Decimation: floatStages.FIR2.Decimation}
	}
	if quantized.FIR3 != nil {
		result.FIR3 = &StageResult{Coefficients: quantized.FIR3.Coefficients, Decimation: floatStages.FIR3.Decimation}
	}
	return result, nil
}

// stageSplit is a factoring of the requested decimation into 1-3
// FPGA-realizable stages (spec.md §4.F step 1-3).
type stageSplit struct {
	decimations []uint32 // 1, 2, or 3 entries, non-increasing
	fourDSP     []bool   // per-stage DSP geometry
	capacities  []int    // per-stage coefficient-RAM capacity bound
}

// stagesDesign factors decimation into up to three stages honoring
// FPGA constraints and picks the split minimizing estimated
// Sum(taps)/cumulative_decimation (spec.md §4.F steps 1-3), grounded
// on original_source ddc.rs's stages_design/split_cost_estimate.
func stagesDesign(decimation uint32, inputSampRate float64, tol Tolerances) (stageSplit, error) {
	factorizations := factorInto123(decimation)
	if len(factorizations) == 0 {
		return stageSplit{}, apperror.New(apperror.KindDesignInfeasible, "decimation too large to factor into realizable stages")
	}

	best := stageSplit{}
	bestCost := math.Inf(1)
	found := false

	for _, factors := range factorizations {
		split := buildSplit(factors)
		cost, ok := splitCostEstimate(split, inputSampRate, tol)
		if !ok {
			continue
		}
		if cost < bestCost {
			bestCost = cost
			best = split
			found = true
		}
	}
	if !found {
		return stageSplit{}, apperror.New(apperror.KindDesignInfeasible, "no realizable stage split found for decimation")
	}
	return best, nil
}

// factorInto123 enumerates all ways to write decimation as a product
// of 1-3 non-increasing factors, each in [2, MaxDecimation] (a factor
// of 1 is dropped: a stage is only emitted if genuinely needed). The
// one exception is decimation 1, which yields the single factorization
// {1}.
func factorInto123(decimation uint32) [][]uint32 {
	var out [][]uint32
	d := int(decimation)
	if d < 1 {
		return nil
	}
	if d == 1 {
		return [][]uint32{{1}}
	}
	maxF := MaxDecimation

	// 1 stage
	if d <= maxF {
		out = append(out, []uint32{uint32(d)})
	}
	// 2 stages: d1*d2 = d, d1>=d2, both <= maxF
	for d1 := 2; d1 <= maxF; d1++ {
		if d%d1 != 0 {
			continue
		}
		d2 := d / d1
		if d2 < 2 || d2 > maxF || d2 > d1 {
			continue
		}
		out = append(out, []uint32{uint32(d1), uint32(d2)})
	}
	// 3 stages: d1*d2*d3 = d, d1>=d2>=d3, all <= maxF
	for d1 := 2; d1 <= maxF; d1++ {
		if d%d1 != 0 {
			continue
		}
		rem := d / d1
		for d2 := 2; d2 <= d1 && d2 <= maxF; d2++ {
			if rem%d2 != 0 {
				continue
			}
			d3 := rem / d2
			if d3 < 2 || d3 > d2 || d3 > maxF {
				continue
			}
			out = append(out, []uint32{uint32(d1), uint32(d2), uint32(d3)})
		}
	}
	return out
}

func buildSplit(factors []uint32) stageSplit {
	s := stageSplit{decimations: factors, fourDSP: make([]bool, len(factors)), capacities: make([]int, len(factors))}
	switch len(factors) {
	case 1:
		s.fourDSP[0] = true
	case 2:
		// "When there are exactly 2 stages, stage 2 uses the stage-3
		// geometry (4-DSP)" (spec.md §4.F step 3).
		s.fourDSP[0] = true
		s.fourDSP[1] = true
	case 3:
		s.fourDSP[0] = true
		s.fourDSP[1] = false
		s.fourDSP[2] = true
	}
	return s
}

// stageMaxCoefficients implements spec.md §4.F step 3's capacity
// bound for one stage.
func stageMaxCoefficients(inputSampRate float64, decimation uint32, fourDSP bool) int {
	clocksPerInput := int(math.Floor(ClockFrequencyHz / inputSampRate))
	maxOps := clocksPerInput
	if maxOps > MaxOperations {
		maxOps = MaxOperations
	}
	coeffsPerClock := 1
	if fourDSP {
		coeffsPerClock = 2
	}
	maxCoeffs := maxOps * coeffsPerClock * int(decimation)

	ramCap := MaxCoefficients2DSP
	if fourDSP {
		ramCap = MaxCoefficients4DSP
	}
	if maxCoeffs > ramCap {
		maxCoeffs = ramCap
	}
	// round down to a multiple of decimation
	maxCoeffs -= maxCoeffs % int(decimation)
	return maxCoeffs
}

// splitCostEstimate returns (cost, ok): ok is false if any stage's
// Ichige estimate exceeds 1.1x its capacity bound (spec.md §4.F step
// 2). Cost is Sum(taps)/cumulative_decimation.
func splitCostEstimate(split stageSplit, inputSampRate float64, tol Tolerances) (float64, bool) {
	var totalTaps float64
	cumulative := 1.0
	rate := inputSampRate

	for i, d := range split.decimations {
		cap := stageMaxCoefficients(rate, d, split.fourDSP[i])
		split.capacities[i] = cap

		taps := pmEstimateForStage(rate, d, tol)
		if float64(taps) > 1.1*float64(cap) {
			return 0, false
		}
		cumulative *= float64(d)
		totalTaps += float64(taps)
		rate /= float64(d)
	}
	return totalTaps / cumulative, true
}

// pmEstimateForStage mirrors original_source's pm_estimate, called
// with the stage's own input rate and a passband edge derived from
// it.
func pmEstimateForStage(fs float64, d uint32, tol Tolerances) int {
	return pmEstimate(fs, passbandFraction(fs, d), d, tol)
}

// passbandFraction returns fp (in the same units fs is expressed in)
// given the per-stage input rate fs and decimation d, following
// original_source's convention of a passband edge at 0.5*(1-delta_f)/d
// of the stage's own input rate when designing successive stages of a
// cascade (each stage only needs to reject images up to its own
// output Nyquist).
func passbandFraction(fs float64, d uint32) float64 {
	return fs / (2 * float64(d))
}

// pmEstimate mirrors original_source's pm_estimate(fs, fp, d, config).
func pmEstimate(fs, fp float64, d uint32, tol Tolerances) int {
	passbandEnd := fp / fs
	stopbandStart := 1.0/float64(d) - passbandEnd
	return Ichige(passbandEnd, stopbandStart-passbandEnd, tol.DeltaP, tol.DeltaS)
}

// floatStage is a stage design before quantization.
type floatStage struct {
	Coefficients []float64
	Decimation   uint32
}

type floatResult struct {
	FIR1 floatStage
	FIR2 *floatStage
	FIR3 *floatStage
}

// splitDesign designs each stage with Parks-McClellan at the given
// split's decimations and capacity bounds (spec.md §4.F step 4),
// grounded on original_source ddc.rs's split_design: "when split has
// exactly 2 factors, the second designed stage becomes fir3, not
// fir2".
func splitDesign(split stageSplit, inputSampRate float64, tol Tolerances) (floatResult, error) {
	rate := inputSampRate
	designs := make([]PMResult, len(split.decimations))
	for i, d := range split.decimations {
		design, err := pmDesign(rate, passbandFraction(rate, d), d, tol, split.capacities[i])
		if err != nil {
			return floatResult{}, apperror.Wrap(apperror.KindDesignInfeasible, fmt.Sprintf("design stage %d", i+1), err)
		}
		designs[i] = design
		rate /= float64(d)
	}

	result := floatResult{FIR1: floatStage{Coefficients: designs[0].Coefficients, Decimation: split.decimations[0]}}
	switch len(designs) {
	case 2:
		result.FIR3 = &floatStage{Coefficients: designs[1].Coefficients, Decimation: split.decimations[1]}
	case 3:
		result.FIR2 = &floatStage{Coefficients: designs[1].Coefficients, Decimation: split.decimations[1]}
		result.FIR3 = &floatStage{Coefficients: designs[2].Coefficients, Decimation: split.decimations[2]}
	}
	return result, nil
}

// pmDesign mirrors original_source ddc.rs's pm_design: seeds the tap
// count from Ichige, then walks it up/down until the weighted error
// just meets delta_p, failing if the walk exceeds maxTaps (spec.md
// §4.F step 4).
func pmDesign(fs, fp float64, d uint32, tol Tolerances, maxTaps int) (PMResult, error) {
	passbandEnd := fp / fs
	stopbandStart := 1.0/float64(d) - passbandEnd

	stopbandWeight := tol.DeltaP / tol.DeltaS
	var weightFn func(float64) float64
	if tol.OneOverF {
		weightFn = LinearWeight(stopbandStart, 0.5, stopbandWeight, stopbandWeight*0.5/stopbandStart)
	} else {
		weightFn = ConstantWeight(stopbandWeight)
	}

	bands := []Band{
		{Start: 0, End: passbandEnd, Desired: 1, Weight: ConstantWeight(1)},
		{Start: stopbandStart, End: 0.5, Desired: 0, Weight: weightFn},
	}

	numTaps := Ichige(passbandEnd, stopbandStart-passbandEnd, tol.DeltaP, tol.DeltaS)
	design, err := PMDesign(numTaps, bands)
	if err != nil {
		return PMResult{}, err
	}

	if design.WeightedError < tol.DeltaP {
		for {
			numTaps--
			if numTaps < 1 {
				return design, nil
			}
			candidate, err := PMDesign(numTaps, bands)
			if err != nil {
				return design, nil
			}
			if candidate.WeightedError > tol.DeltaP {
				return design, nil
			}
			design = candidate
		}
	}
	for design.WeightedError > tol.DeltaP {
		numTaps++
		if numTaps > maxTaps {
			return PMResult{}, apperror.New(apperror.KindDesignInfeasible, "fir filter would need more taps than is realizable by fpga")
		}
		var err error
		design, err = PMDesign(numTaps, bands)
		if err != nil {
			return PMResult{}, err
		}
	}
	return design, nil
}
