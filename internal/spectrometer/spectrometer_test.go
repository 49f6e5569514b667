package spectrometer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/maia-sdr/sdrd/internal/fpga"
)

func TestDecodeBlockFPZero(t *testing.T) {
	if v := DecodeBlockFP(0); v != 0 {
		t.Fatalf("DecodeBlockFP(0) = %v, want 0", v)
	}
}

func TestDecodeBlockFPMantissaOnly(t *testing.T) {
	// e=0: value = m.
	if v := DecodeBlockFP(12345); v != 12345 {
		t.Fatalf("DecodeBlockFP(12345) = %v, want 12345", v)
	}
}

func TestDecodeBlockFPExponent(t *testing.T) {
	// m=1, e=1: value = 1 << 2 = 4.
	raw := uint64(1) << mantissaBits
	if v := DecodeBlockFP(raw); v != 4 {
		t.Fatalf("DecodeBlockFP(e=1,m=1) = %v, want 4", v)
	}
}

func TestDecodeBlockFPMaxExponent(t *testing.T) {
	// spec.md §8: "for any e in [0,255] and m in [0, 2^56)".
	raw := uint64(255) << mantissaBits
	v := DecodeBlockFP(raw)
	if math.IsNaN(v) {
		t.Fatal("DecodeBlockFP with e=255 produced NaN")
	}
}

func TestScaleAverageMode(t *testing.T) {
	got := Scale(fpga.ModeAverage, 1000, 61_440_000)
	want := 4e6 / (1000 * 61_440_000)
	if math.Abs(got-want) > 1e-15 {
		t.Fatalf("Scale(Average) = %v, want %v", got, want)
	}
}

func TestScalePeakDetectMode(t *testing.T) {
	got := Scale(fpga.ModePeakDetect, 1000, 61_440_000)
	want := 4e6 / 61_440_000.0
	if math.Abs(got-want) > 1e-15 {
		t.Fatalf("Scale(PeakDetect) = %v, want %v", got, want)
	}
}

func TestConvertBufferRoundTrip(t *testing.T) {
	raw := make([]byte, bytesPerSample*2)
	binary.LittleEndian.PutUint64(raw[0:], 1000) // e=0, m=1000
	binary.LittleEndian.PutUint64(raw[8:], (uint64(2)<<mantissaBits)|500)

	out := convertBuffer(raw, 1.0)
	if len(out) != 2*4 {
		t.Fatalf("convertBuffer output length = %d, want 8", len(out))
	}

	v0 := math.Float32frombits(binary.LittleEndian.Uint32(out[0:]))
	if v0 != 1000 {
		t.Fatalf("first sample = %v, want 1000", v0)
	}
	v1 := math.Float32frombits(binary.LittleEndian.Uint32(out[4:]))
	if v1 != float32(500*16) {
		t.Fatalf("second sample = %v, want %v", v1, float32(500*16))
	}
}
