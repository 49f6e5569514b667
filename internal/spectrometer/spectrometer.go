// Package spectrometer implements component G: the interrupt-driven
// drain of the spectrometer DMA ring, conversion of the FPGA's 64-bit
// block-floating-point frames to 32-bit float, and broadcast with
// drop-on-lag (spec.md §4.G), grounded on
// original_source/maia-httpd/src/spectrometer.rs.
package spectrometer

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/charmbracelet/log"

	"github.com/maia-sdr/sdrd/internal/fanout"
	"github.com/maia-sdr/sdrd/internal/fpga"
)

const (
	samplesPerBuffer = 4096
	bytesPerSample   = 8
	mantissaBits     = 56
	mantissaMask     = (uint64(1) << mantissaBits) - 1
)

// Scale returns the spec.md §3 scale factor converting a block-FP
// mantissa*4^exponent value into the output unit, for the given mode,
// shadow num_integrations and current sample rate.
func Scale(mode fpga.SpectrometerMode, numIntegrations uint32, sampRate float64) float64 {
	if mode == fpga.ModePeakDetect {
		return 4e6 / sampRate
	}
	return 4e6 / (float64(numIntegrations) * sampRate)
}

// DecodeBlockFP splits a little-endian 64-bit block-FP word into its
// unsigned mantissa and exponent and returns mantissa*4^exponent
// (spec.md §3/§8 "Block-FP round-trip").
func DecodeBlockFP(raw uint64) float64 {
	e := raw >> mantissaBits
	m := raw & mantissaMask
	return math.Ldexp(float64(m), int(2*e))
}

// ValueF32 decodes one block-FP word and applies scale, matching the
// wire format's f32 = (m << (2*e)) * scale.
func ValueF32(raw uint64, scale float64) float32 {
	return float32(DecodeBlockFP(raw) * scale)
}

// convertBuffer decodes a raw spectrometer DMA buffer (4096
// little-endian uint64 block-FP words) into 4096 little-endian f32
// values, the wire format clients receive over /ws/waterfall.
func convertBuffer(raw []byte, scale float64) []byte {
	n := len(raw) / bytesPerSample
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		word := binary.LittleEndian.Uint64(raw[i*bytesPerSample:])
		v := ValueF32(word, scale)
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Pump runs the single long-lived spectrometer task (spec.md §4.G).
type Pump struct {
	core     *fpga.IPCore
	waiter   *fpga.Waiter
	bus      *fanout.Bus
	sampRate func() float64
	logger   *log.Logger
}

// New builds a Pump. sampRate snapshots the shared AD9361 sample rate
// each iteration, per spec.md §4.G step 2.
func New(core *fpga.IPCore, waiter *fpga.Waiter, bus *fanout.Bus, sampRate func() float64, logger *log.Logger) *Pump {
	return &Pump{core: core, waiter: waiter, bus: bus, sampRate: sampRate, logger: logger}
}

// Run loops until ctx is cancelled or a device-gone-away error
// surfaces from the interrupt waiter or DMA ring.
func (p *Pump) Run(ctx context.Context) error {
	for {
		if err := p.waiter.Wait(ctx); err != nil {
			return err
		}

		mode := p.core.SpectrometerMode()
		numIntegrations := p.core.SpectrometerNumIntegrations()
		rate := p.sampRate()
		scale := Scale(mode, numIntegrations, rate)

		buffers, err := p.core.GetSpectrometerBuffers()
		if err != nil {
			return err
		}

		if !p.bus.HasSubscribers() {
			// Drained to keep the DMA ring from overflowing, but
			// nothing to convert: "a zero-subscriber publish is a
			// no-op (no allocation pressure when idle)" (spec.md
			// §4.G).
			continue
		}

		for _, raw := range buffers {
			p.bus.Publish(convertBuffer(raw, scale))
		}
	}
}
