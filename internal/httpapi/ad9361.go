package httpapi

import (
	"net/http"

	"github.com/maia-sdr/sdrd/internal/fpga"
	"github.com/maia-sdr/sdrd/internal/iio"
)

// ad9361Wire mirrors maia_json::Ad9361's field set (spec.md §6
// "/api/ad9361"), grounded on
// original_source/maia-httpd/src/httpd/ad9361.rs's get_attributes!.
type ad9361Wire struct {
	SamplingFrequency uint32  `json:"sampling_frequency"`
	RXRFBandwidth     uint32  `json:"rx_rf_bandwidth"`
	TXRFBandwidth     uint32  `json:"tx_rf_bandwidth"`
	RXLOFrequency     uint64  `json:"rx_lo_frequency"`
	TXLOFrequency     uint64  `json:"tx_lo_frequency"`
	RXGain            float64 `json:"rx_gain"`
	RXGainMode        string  `json:"rx_gain_mode"`
	TXGain            float64 `json:"tx_gain"`
}

func (h *handlers) ad9361JSON(w http.ResponseWriter, r *http.Request) (ad9361Wire, bool) {
	ctx := r.Context()
	t := h.deps.Transceiver
	var wire ad9361Wire
	var err error

	if wire.SamplingFrequency, err = t.SamplingFrequency(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	if wire.RXRFBandwidth, err = t.RXRFBandwidth(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	if wire.TXRFBandwidth, err = t.TXRFBandwidth(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	if wire.RXLOFrequency, err = t.RXLOFrequency(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	if wire.TXLOFrequency, err = t.TXLOFrequency(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	if wire.RXGain, err = t.RXGain(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	mode, err := t.RXGainMode(ctx)
	if err != nil {
		writeError(w, err)
		return wire, false
	}
	wire.RXGainMode = string(mode)
	if wire.TXGain, err = t.TXGain(ctx); err != nil {
		writeError(w, err)
		return wire, false
	}
	return wire, true
}

// getAd9361 reports all transceiver attributes.
func (h *handlers) getAd9361(w http.ResponseWriter, r *http.Request) {
	wire, ok := h.ad9361JSON(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wire)
}

type patchAd9361Wire struct {
	SamplingFrequency *uint32  `json:"sampling_frequency,omitempty"`
	RXRFBandwidth     *uint32  `json:"rx_rf_bandwidth,omitempty"`
	TXRFBandwidth     *uint32  `json:"tx_rf_bandwidth,omitempty"`
	RXLOFrequency     *uint64  `json:"rx_lo_frequency,omitempty"`
	TXLOFrequency     *uint64  `json:"tx_lo_frequency,omitempty"`
	RXGain            *float64 `json:"rx_gain,omitempty"`
	RXGainMode        *string  `json:"rx_gain_mode,omitempty"`
	TXGain            *float64 `json:"tx_gain,omitempty"`
}

// patchAd9361 applies each present field in turn. Changing
// sampling_frequency checks the DDC's max_input_sampling_frequency
// first when the DDC is enabled, and keeps the DDC's absolute NCO
// frequency fixed across the change (matching
// original_source/maia-httpd/src/httpd/ad9361.rs's ad9361_update: "the
// DDC frequency is maintained after the sample rate change").
// rx_gain_mode is applied before rx_gain, since setting a gain while
// in an automatic gain control mode is typically rejected by the
// driver.
func (h *handlers) patchAd9361(w http.ResponseWriter, r *http.Request) {
	var patch patchAd9361Wire
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Status: http.StatusBadRequest, Error: err.Error()})
		return
	}
	ctx := r.Context()
	t := h.deps.Transceiver

	if patch.SamplingFrequency != nil {
		newRate := float64(*patch.SamplingFrequency)
		summary := h.deps.Core.DDCConfigSummary(0)
		ddcEnabled := h.deps.Core.SpectrometerInput() == fpga.InputDDC
		if ddcEnabled && summary.MaxInputSamplingFrequency > 0 && newRate > summary.MaxInputSamplingFrequency {
			writeJSON(w, http.StatusBadRequest, jsonError{
				Status: http.StatusBadRequest,
				Error:  "requested sampling frequency exceeds the DDC's maximum input sampling frequency",
			})
			return
		}
		if err := t.SetSamplingFrequency(ctx, *patch.SamplingFrequency); err != nil {
			writeError(w, err)
			return
		}
		if err := h.deps.Core.SetDDCFrequency(summary.Config.Frequency, newRate); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.RXRFBandwidth != nil {
		if err := t.SetRXRFBandwidth(ctx, *patch.RXRFBandwidth); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.TXRFBandwidth != nil {
		if err := t.SetTXRFBandwidth(ctx, *patch.TXRFBandwidth); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.RXLOFrequency != nil {
		if err := t.SetRXLOFrequency(ctx, *patch.RXLOFrequency); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.TXLOFrequency != nil {
		if err := t.SetTXLOFrequency(ctx, *patch.TXLOFrequency); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.RXGainMode != nil {
		mode, err := iio.ParseGainMode(*patch.RXGainMode)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := t.SetRXGainMode(ctx, mode); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.RXGain != nil {
		if err := t.SetRXGain(ctx, *patch.RXGain); err != nil {
			writeError(w, err)
			return
		}
	}
	if patch.TXGain != nil {
		if err := t.SetTXGain(ctx, *patch.TXGain); err != nil {
			writeError(w, err)
			return
		}
	}

	wire, ok := h.ad9361JSON(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wire)
}
