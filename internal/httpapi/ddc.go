package httpapi

import (
	"net/http"
	"sync"

	"github.com/maia-sdr/sdrd/internal/ddc"
)

// lastDesign caches the most recent /api/ddc/design result so GET can
// return it without recomputing (spec.md §6 "/api/ddc/design").
var lastDesignMu sync.Mutex
var lastDesign *ddcConfigWire

type ddcDesignRequestWire struct {
	Decimation uint32   `json:"decimation"`
	DeltaF     *float64 `json:"delta_f,omitempty"`
	DeltaP     *float64 `json:"delta_p,omitempty"`
	DeltaS     *float64 `json:"delta_s,omitempty"`
	OneOverF   *bool    `json:"one_over_f,omitempty"`
	Apply      bool     `json:"apply,omitempty"`
}

func (req ddcDesignRequestWire) tolerances() ddc.Tolerances {
	tol := ddc.DefaultTolerances()
	if req.DeltaF != nil {
		tol.DeltaF = *req.DeltaF
	}
	if req.DeltaP != nil {
		tol.DeltaP = *req.DeltaP
	}
	if req.DeltaS != nil {
		tol.DeltaS = *req.DeltaS
	}
	if req.OneOverF != nil {
		tol.OneOverF = *req.OneOverF
	}
	return tol
}

// getDDCDesign returns the most recently computed design, or 204 if
// none has been requested yet this process.
func (h *handlers) getDDCDesign(w http.ResponseWriter, r *http.Request) {
	lastDesignMu.Lock()
	defer lastDesignMu.Unlock()
	if lastDesign == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, *lastDesign)
}

// putDDCDesign runs the FIR designer on its dedicated worker (spec.md
// §5) for the requested decimation/tolerances, optionally applying the
// result to the IP core when "apply" is true.
func (h *handlers) putDDCDesign(w http.ResponseWriter, r *http.Request) {
	var req ddcDesignRequestWire
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}
	if req.Decimation == 0 {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: "decimation must be nonzero"})
		return
	}

	result, err := h.deps.Designer.Design(r.Context(), req.Decimation, h.deps.InputSampRate, req.tolerances())
	if err != nil {
		writeError(w, err)
		return
	}

	wire := designResultToWire(result)
	if req.Apply {
		cfg := ddcConfigFromWire(wire)
		if err := h.deps.Core.SetDDCConfig(cfg, h.deps.InputSampRate); err != nil {
			writeError(w, err)
			return
		}
	}

	lastDesignMu.Lock()
	lastDesign = &wire
	lastDesignMu.Unlock()

	writeJSON(w, http.StatusOK, wire)
}

type ddcWire struct {
	ddcConfigWire
	OutputSamplingFrequency   float64 `json:"output_sampling_frequency"`
	MaxInputSamplingFrequency float64 `json:"max_input_sampling_frequency"`
}

// getDDC returns the DDC's currently-applied configuration directly
// from the shadow (spec.md §6 "/api/ddc"), bypassing the designer.
func (h *handlers) getDDC(w http.ResponseWriter, r *http.Request) {
	summary := h.deps.Core.DDCConfigSummary(h.deps.InputSampRate)
	writeJSON(w, http.StatusOK, ddcWire{
		ddcConfigWire:             ddcConfigToWire(summary.Config),
		OutputSamplingFrequency:   summary.OutputSamplingFrequency,
		MaxInputSamplingFrequency: summary.MaxInputSamplingFrequency,
	})
}

// patchDDC accepts either a frequency-only patch (applied via
// SetDDCFrequency, cheap NCO reprogram) or a full FIR-stage
// replacement (applied via SetDDCConfig).
func (h *handlers) patchDDC(w http.ResponseWriter, r *http.Request) {
	var raw struct {
		Frequency *float64 `json:"frequency"`
		FIR1      *firWire `json:"fir1"`
		FIR2      *firWire `json:"fir2"`
		FIR3      *firWire `json:"fir3"`
	}
	if err := decodeJSON(r, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}

	if raw.FIR1 != nil {
		cfg := ddcConfigFromWire(ddcConfigWire{FIR1: *raw.FIR1, FIR2: raw.FIR2, FIR3: raw.FIR3})
		if raw.Frequency != nil {
			cfg.Frequency = *raw.Frequency
		} else {
			cfg.Frequency = h.deps.Core.DDCConfigSummary(h.deps.InputSampRate).Config.Frequency
		}
		if err := h.deps.Core.SetDDCConfig(cfg, h.deps.InputSampRate); err != nil {
			writeError(w, err)
			return
		}
	} else if raw.Frequency != nil {
		if err := h.deps.Core.SetDDCFrequency(*raw.Frequency, h.deps.InputSampRate); err != nil {
			writeError(w, err)
			return
		}
	}

	h.getDDC(w, r)
}
