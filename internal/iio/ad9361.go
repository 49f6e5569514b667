// Package iio binds the AD9361 wideband transceiver's IIO sysfs
// attributes (spec.md §6, §4's "transceiver" external collaborator).
// Every attribute is a small text file under the device's sysfs
// directory; reads/writes are plain string I/O, matching
// original_source/maia-httpd/src/iio.rs's Ad9361 struct.
package iio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

const iioDevicesDir = "/sys/bus/iio/devices"
const ad9361Name = "ad9361-phy"

// Ad9361 controls an AD9361 IIO device's attributes via sysfs.
type Ad9361 struct {
	devicePath string
}

// Open locates the first iio:deviceN directory under /sys/bus/iio/devices
// whose "name" file reads "ad9361-phy", mirroring find_iio_device.
func Open() (*Ad9361, error) {
	path, err := findDevice(iioDevicesDir)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindHardwareUnavailable, "scan iio devices", err)
	}
	if path == "" {
		return nil, apperror.New(apperror.KindHardwareUnavailable, "ad9361-phy iio device not found")
	}
	return &Ad9361{devicePath: path}, nil
}

func findDevice(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "iio:device") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		raw, err := os.ReadFile(filepath.Join(path, "name"))
		if err != nil {
			return "", err
		}
		if strings.TrimRight(string(raw), "\n") == ad9361Name {
			return path, nil
		}
	}
	return "", nil
}

func (a *Ad9361) readUint(attr string) (uint64, error) {
	raw, err := os.ReadFile(filepath.Join(a.devicePath, attr))
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "read iio attribute "+attr, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "parse iio attribute "+attr, err)
	}
	return v, nil
}

func (a *Ad9361) writeUint(attr string, value uint64) error {
	return a.write(attr, strconv.FormatUint(value, 10))
}

func (a *Ad9361) write(attr, value string) error {
	err := os.WriteFile(filepath.Join(a.devicePath, attr), []byte(value), 0644)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientIO, "write iio attribute "+attr, err)
	}
	return nil
}

// SamplingFrequency returns in_voltage_sampling_frequency (Hz).
func (a *Ad9361) SamplingFrequency(_ context.Context) (uint32, error) {
	v, err := a.readUint("in_voltage_sampling_frequency")
	return uint32(v), err
}

// SetSamplingFrequency writes in_voltage_sampling_frequency (Hz).
func (a *Ad9361) SetSamplingFrequency(_ context.Context, hz uint32) error {
	return a.writeUint("in_voltage_sampling_frequency", uint64(hz))
}

// RXRFBandwidth returns in_voltage_rf_bandwidth (Hz).
func (a *Ad9361) RXRFBandwidth(_ context.Context) (uint32, error) {
	v, err := a.readUint("in_voltage_rf_bandwidth")
	return uint32(v), err
}

// SetRXRFBandwidth writes in_voltage_rf_bandwidth (Hz).
func (a *Ad9361) SetRXRFBandwidth(_ context.Context, hz uint32) error {
	return a.writeUint("in_voltage_rf_bandwidth", uint64(hz))
}

// TXRFBandwidth returns out_voltage_rf_bandwidth (Hz).
func (a *Ad9361) TXRFBandwidth(_ context.Context) (uint32, error) {
	v, err := a.readUint("out_voltage_rf_bandwidth")
	return uint32(v), err
}

// SetTXRFBandwidth writes out_voltage_rf_bandwidth (Hz).
func (a *Ad9361) SetTXRFBandwidth(_ context.Context, hz uint32) error {
	return a.writeUint("out_voltage_rf_bandwidth", uint64(hz))
}

// RXLOFrequency returns out_altvoltage0_RX_LO_frequency (Hz).
func (a *Ad9361) RXLOFrequency(_ context.Context) (uint64, error) {
	return a.readUint("out_altvoltage0_RX_LO_frequency")
}

// SetRXLOFrequency writes out_altvoltage0_RX_LO_frequency (Hz).
func (a *Ad9361) SetRXLOFrequency(_ context.Context, hz uint64) error {
	return a.writeUint("out_altvoltage0_RX_LO_frequency", hz)
}

// TXLOFrequency returns out_altvoltage1_TX_LO_frequency (Hz).
func (a *Ad9361) TXLOFrequency(_ context.Context) (uint64, error) {
	return a.readUint("out_altvoltage1_TX_LO_frequency")
}

// SetTXLOFrequency writes out_altvoltage1_TX_LO_frequency (Hz).
func (a *Ad9361) SetTXLOFrequency(_ context.Context, hz uint64) error {
	return a.writeUint("out_altvoltage1_TX_LO_frequency", hz)
}

// RXGain returns in_voltage0_hardwaregain, stripping the " dB" suffix
// the kernel driver appends on read.
func (a *Ad9361) RXGain(_ context.Context) (float64, error) {
	return a.readDB("in_voltage0_hardwaregain")
}

// SetRXGain writes in_voltage0_hardwaregain as "<db> dB".
func (a *Ad9361) SetRXGain(_ context.Context, db float64) error {
	return a.writeDB("in_voltage0_hardwaregain", db)
}

// TXGain returns out_voltage0_hardwaregain.
func (a *Ad9361) TXGain(_ context.Context) (float64, error) {
	return a.readDB("out_voltage0_hardwaregain")
}

// SetTXGain writes out_voltage0_hardwaregain as "<db> dB".
func (a *Ad9361) SetTXGain(_ context.Context, db float64) error {
	return a.writeDB("out_voltage0_hardwaregain", db)
}

func (a *Ad9361) readDB(attr string) (float64, error) {
	raw, err := os.ReadFile(filepath.Join(a.devicePath, attr))
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "read iio attribute "+attr, err)
	}
	s := strings.TrimSpace(string(raw))
	s = strings.TrimSuffix(s, " dB")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperror.Wrap(apperror.KindTransientIO, "parse iio attribute "+attr, err)
	}
	return v, nil
}

func (a *Ad9361) writeDB(attr string, db float64) error {
	return a.write(attr, fmt.Sprintf("%g dB", db))
}

// GainMode is one of the AD9361's automatic gain control modes.
type GainMode string

const (
	GainModeManual     GainMode = "manual"
	GainModeFastAttack GainMode = "fast_attack"
	GainModeSlowAttack GainMode = "slow_attack"
	GainModeHybrid     GainMode = "hybrid"
)

// ParseGainMode validates s against the four modes the driver accepts.
func ParseGainMode(s string) (GainMode, error) {
	switch GainMode(s) {
	case GainModeManual, GainModeFastAttack, GainModeSlowAttack, GainModeHybrid:
		return GainMode(s), nil
	default:
		return "", apperror.New(apperror.KindConfigOutOfRange, "invalid ad9361 gain mode "+s)
	}
}

// RXGainMode returns in_voltage0_gain_control_mode.
func (a *Ad9361) RXGainMode(_ context.Context) (GainMode, error) {
	raw, err := os.ReadFile(filepath.Join(a.devicePath, "in_voltage0_gain_control_mode"))
	if err != nil {
		return "", apperror.Wrap(apperror.KindTransientIO, "read iio attribute gain_control_mode", err)
	}
	return ParseGainMode(strings.TrimSpace(string(raw)))
}

// SetRXGainMode writes in_voltage0_gain_control_mode.
func (a *Ad9361) SetRXGainMode(_ context.Context, mode GainMode) error {
	return a.write("in_voltage0_gain_control_mode", string(mode))
}
