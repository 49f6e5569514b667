// Package config loads sdrd's runtime configuration from a TOML file
// (and environment overrides), the way the teacher's config.go loads
// "ogdar.toml" with viper. Where no config file is present, defaults
// sane enough to run against real hardware are substituted.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is sdrd's top-level configuration.
type Config struct {
	// Listen is the HTTP listen address, e.g. "0.0.0.0:8000".
	Listen string `mapstructure:"listen"`
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level"`

	UIOName          string `mapstructure:"uio_name"`
	SpectrometerName string `mapstructure:"spectrometer_device_name"`
	RecordingName    string `mapstructure:"recording_device_name"`

	// InputSampRate is the nominal ADC sample rate feeding the DDC, in
	// Hz, used to program the default DDC at startup (spec.md §4.C
	// step 6).
	InputSampRate float64 `mapstructure:"input_sample_rate"`
	// DefaultDecimation is the decimation programmed at startup.
	DefaultDecimation int `mapstructure:"default_decimation"`
}

// Default returns the configuration used when no file is found,
// mirroring the teacher's setDefaultConfig: "there is absolutely no
// guarantee these values make sense for a particular board", but the
// daemon must come up with something rather than fail to start.
func Default() Config {
	return Config{
		Listen:            "0.0.0.0:8000",
		LogLevel:          "info",
		UIOName:           "maia-sdr",
		SpectrometerName:  "maia-sdr-spectrometer",
		RecordingName:     "maia-sdr-recording",
		InputSampRate:     61_440_000,
		DefaultDecimation: 20,
	}
}

// Load reads "sdrd.toml" from /etc/sdrd and the current directory (in
// that search order, following viper's AddConfigPath precedence),
// overlaying it onto Default(). The bool result reports whether a
// config file was found and read, matching the teacher's loadConfig
// signature.
func Load() (Config, bool, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("sdrd")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc/sdrd")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SDRD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("reading sdrd config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, true, fmt.Errorf("parsing sdrd config: %w", err)
	}
	return cfg, true, nil
}
