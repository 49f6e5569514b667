// Package httpapi implements sdrd's HTTP/WebSocket surface (spec.md
// §6, SPEC_FULL.md §6): a chi router exposing the FPGA IP core, DDC
// designer, spectrometer, recorder and AD9361 transceiver over JSON,
// plus a websocket waterfall stream. Route shapes follow
// original_source/maia-httpd/src/httpd.rs and its submodules; the
// exact wire schema is not a goal (spec.md's explicit non-goal), so
// field names are chosen to read naturally as Go/JSON rather than
// byte-matched to maia-json.
package httpapi

import (
	"context"

	"github.com/maia-sdr/sdrd/internal/ddc"
	"github.com/maia-sdr/sdrd/internal/fanout"
	"github.com/maia-sdr/sdrd/internal/fpga"
	"github.com/maia-sdr/sdrd/internal/iio"
	"github.com/maia-sdr/sdrd/internal/recorder"
)

// Transceiver is the subset of internal/iio.Ad9361's behavior the API
// needs, satisfied by component I's serializing wrapper around the
// real device (kept as an interface so this package never imports
// internal/app and creates an import cycle).
type Transceiver interface {
	SamplingFrequency(ctx context.Context) (uint32, error)
	SetSamplingFrequency(ctx context.Context, hz uint32) error
	RXRFBandwidth(ctx context.Context) (uint32, error)
	SetRXRFBandwidth(ctx context.Context, hz uint32) error
	TXRFBandwidth(ctx context.Context) (uint32, error)
	SetTXRFBandwidth(ctx context.Context, hz uint32) error
	RXLOFrequency(ctx context.Context) (uint64, error)
	SetRXLOFrequency(ctx context.Context, hz uint64) error
	TXLOFrequency(ctx context.Context) (uint64, error)
	SetTXLOFrequency(ctx context.Context, hz uint64) error
	RXGain(ctx context.Context) (float64, error)
	SetRXGain(ctx context.Context, db float64) error
	TXGain(ctx context.Context) (float64, error)
	SetTXGain(ctx context.Context, db float64) error
	RXGainMode(ctx context.Context) (iio.GainMode, error)
	SetRXGainMode(ctx context.Context, mode iio.GainMode) error
}

// Designer is the single-slot FIR design worker (component I's
// dedicated worker, spec.md §5), satisfied by internal/app.Designer.
type Designer interface {
	Design(ctx context.Context, decimation uint32, inputSampRate float64, tol ddc.Tolerances) (ddc.Result, error)
}

// Deps are the components the router's handlers close over.
type Deps struct {
	Core          *fpga.IPCore
	Transceiver   Transceiver
	Bus           *fanout.Bus
	Recorder      *recorder.Metadata
	Designer      Designer
	InputSampRate float64
	StartedAt     int64 // unix seconds; stamped by internal/app.New when it builds the server
	Version       string
}

func modeString(m fpga.SpectrometerMode) string {
	if m == fpga.ModePeakDetect {
		return "peak_detect"
	}
	return "average"
}

func parseModeString(s string) (fpga.SpectrometerMode, bool) {
	switch s {
	case "average":
		return fpga.ModeAverage, true
	case "peak_detect":
		return fpga.ModePeakDetect, true
	default:
		return 0, false
	}
}

func inputString(i fpga.SpectrometerInput) string {
	if i == fpga.InputDDC {
		return "ddc"
	}
	return "ad9361"
}

func parseInputString(s string) (fpga.SpectrometerInput, bool) {
	switch s {
	case "ad9361":
		return fpga.InputAD9361, true
	case "ddc":
		return fpga.InputDDC, true
	default:
		return 0, false
	}
}

func recorderModeString(m fpga.RecorderMode) string {
	switch m {
	case fpga.RecorderMode12Bit:
		return "12bit"
	case fpga.RecorderMode8Bit:
		return "8bit"
	default:
		return "16bit"
	}
}

func parseRecorderModeString(s string) (fpga.RecorderMode, bool) {
	switch s {
	case "16bit":
		return fpga.RecorderMode16Bit, true
	case "12bit":
		return fpga.RecorderMode12Bit, true
	case "8bit":
		return fpga.RecorderMode8Bit, true
	default:
		return 0, false
	}
}

func recorderStateString(s recorder.State) string {
	if s == recorder.StateRunning {
		return "running"
	}
	return "stopped"
}

// firWire is a FIR stage as exchanged over JSON.
type firWire struct {
	Coefficients []int32 `json:"coefficients"`
	Decimation   uint32  `json:"decimation"`
}

// ddcConfigWire mirrors internal/fpga.DDCConfig.
type ddcConfigWire struct {
	Frequency float64  `json:"frequency"`
	FIR1      firWire  `json:"fir1"`
	FIR2      *firWire `json:"fir2,omitempty"`
	FIR3      *firWire `json:"fir3,omitempty"`
}

func ddcConfigToWire(c fpga.DDCConfig) ddcConfigWire {
	w := ddcConfigWire{Frequency: c.Frequency, FIR1: firWire{Coefficients: c.FIR1.Coefficients, Decimation: c.FIR1.Decimation}}
	if c.FIR2 != nil {
		w.FIR2 = &firWire{Coefficients: c.FIR2.Coefficients, Decimation: c.FIR2.Decimation}
	}
	if c.FIR3 != nil {
		w.FIR3 = &firWire{Coefficients: c.FIR3.Coefficients, Decimation: c.FIR3.Decimation}
	}
	return w
}

func ddcConfigFromWire(w ddcConfigWire) fpga.DDCConfig {
	c := fpga.DDCConfig{Frequency: w.Frequency, FIR1: fpga.FIRConfig{Coefficients: w.FIR1.Coefficients, Decimation: w.FIR1.Decimation}}
	if w.FIR2 != nil {
		c.FIR2 = &fpga.FIRConfig{Coefficients: w.FIR2.Coefficients, Decimation: w.FIR2.Decimation}
	}
	if w.FIR3 != nil {
		c.FIR3 = &fpga.FIRConfig{Coefficients: w.FIR3.Coefficients, Decimation: w.FIR3.Decimation}
	}
	return c
}

func designResultToWire(r ddc.Result) ddcConfigWire {
	w := ddcConfigWire{FIR1: firWire{Coefficients: r.FIR1.Coefficients, Decimation: r.FIR1.Decimation}}
	if r.FIR2 != nil {
		w.FIR2 = &firWire{Coefficients: r.FIR2.Coefficients, Decimation: r.FIR2.Decimation}
	}
	if r.FIR3 != nil {
		w.FIR3 = &firWire{Coefficients: r.FIR3.Coefficients, Decimation: r.FIR3.Decimation}
	}
	return w
}
