package iio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindDeviceMatchesByName(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "iio:device0")
	want := filepath.Join(dir, "iio:device1")
	for _, d := range []string{other, want} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(other, "name"), []byte("other-device\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(want, "name"), []byte("ad9361-phy\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := findDevice(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("findDevice() = %q, want %q", got, want)
	}
}

func TestFindDeviceNoMatch(t *testing.T) {
	dir := t.TempDir()
	d := filepath.Join(dir, "iio:device0")
	if err := os.MkdirAll(d, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d, "name"), []byte("something-else\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := findDevice(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Fatalf("findDevice() = %q, want empty", got)
	}
}

func TestParseGainMode(t *testing.T) {
	for _, ok := range []string{"manual", "fast_attack", "slow_attack", "hybrid"} {
		if _, err := ParseGainMode(ok); err != nil {
			t.Fatalf("ParseGainMode(%q) returned error: %v", ok, err)
		}
	}
	if _, err := ParseGainMode("bogus"); err == nil {
		t.Fatal("expected error for invalid gain mode")
	}
}

func TestReadWriteGainRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := &Ad9361{devicePath: dir}
	if err := a.SetRXGain(nil, 12.5); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "in_voltage0_hardwaregain"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(raw); got != "12.5 dB" {
		t.Fatalf("stored gain = %q, want %q", got, "12.5 dB")
	}
	got, err := a.RXGain(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12.5 {
		t.Fatalf("RXGain() = %v, want 12.5", got)
	}
}

func TestReadWriteSamplingFrequencyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := &Ad9361{devicePath: dir}
	if err := a.SetSamplingFrequency(nil, 30720000); err != nil {
		t.Fatal(err)
	}
	got, err := a.SamplingFrequency(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 30720000 {
		t.Fatalf("SamplingFrequency() = %d, want 30720000", got)
	}
}
