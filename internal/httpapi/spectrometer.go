package httpapi

import (
	"context"
	"math"
	"net/http"
)

const fftSize = 4096

type spectrometerWire struct {
	InputSamplingFrequency  float64 `json:"input_sampling_frequency"`
	OutputSamplingFrequency float64 `json:"output_sampling_frequency"`
	NumberIntegrations      uint32  `json:"number_integrations"`
	FFTSize                 uint32  `json:"fft_size"`
	Mode                    string  `json:"mode"`
	Input                   string  `json:"input"`
}

func (h *handlers) spectrometerJSON(ctx context.Context) (spectrometerWire, error) {
	sampRate, err := h.deps.Transceiver.SamplingFrequency(ctx)
	if err != nil {
		return spectrometerWire{}, err
	}
	numIntegrations := h.deps.Core.SpectrometerNumIntegrations()
	mode := h.deps.Core.SpectrometerMode()
	input := h.deps.Core.SpectrometerInput()
	return spectrometerWire{
		InputSamplingFrequency:  float64(sampRate),
		OutputSamplingFrequency: float64(sampRate) / (float64(fftSize) * float64(numIntegrations)),
		NumberIntegrations:      numIntegrations,
		FFTSize:                 fftSize,
		Mode:                    modeString(mode),
		Input:                   inputString(input),
	}, nil
}

// getSpectrometer reports the spectrometer's current configuration
// (spec.md §6 "/api/spectrometer", grounded on
// original_source/maia-httpd/src/httpd/spectrometer.rs).
func (h *handlers) getSpectrometer(w http.ResponseWriter, r *http.Request) {
	wire, err := h.spectrometerJSON(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire)
}

type patchSpectrometerWire struct {
	Mode                    *string  `json:"mode,omitempty"`
	Input                   *string  `json:"input,omitempty"`
	NumberIntegrations      *uint32  `json:"number_integrations,omitempty"`
	OutputSamplingFrequency *float64 `json:"output_sampling_frequency,omitempty"`
}

func (h *handlers) patchSpectrometer(w http.ResponseWriter, r *http.Request) {
	var patch patchSpectrometerWire
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}

	if patch.Mode != nil {
		mode, ok := parseModeString(*patch.Mode)
		if !ok {
			writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: "invalid spectrometer mode"})
			return
		}
		if err := h.deps.Core.SetSpectrometerMode(mode); err != nil {
			writeError(w, err)
			return
		}
	}

	sampRate, err := h.deps.Transceiver.SamplingFrequency(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if patch.Input != nil {
		input, ok := parseInputString(*patch.Input)
		if !ok {
			writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: "invalid spectrometer input"})
			return
		}
		if err := h.deps.Core.SetSpectrometerInput(input, float64(sampRate)); err != nil {
			writeError(w, err)
			return
		}
	}

	switch {
	case patch.NumberIntegrations != nil:
		if err := h.deps.Core.SetSpectrometerNumIntegrations(*patch.NumberIntegrations); err != nil {
			writeError(w, err)
			return
		}
	case patch.OutputSamplingFrequency != nil && *patch.OutputSamplingFrequency > 0:
		target := *patch.OutputSamplingFrequency
		n := uint32(math.Round(clamp(float64(sampRate)/(fftSize*target), 1, float64(^uint32(0)))))
		if err := h.deps.Core.SetSpectrometerNumIntegrations(n); err != nil {
			writeError(w, err)
			return
		}
	}

	wire, err := h.spectrometerJSON(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
