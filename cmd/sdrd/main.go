// Command sdrd is sdrd's entry point: parse flags, load configuration,
// build the logger, wire up the application and run it until a signal
// or fatal error, mirroring the teacher's ogdar.go main() shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/maia-sdr/sdrd/internal/app"
	"github.com/maia-sdr/sdrd/internal/config"
	"github.com/maia-sdr/sdrd/internal/logging"
)

var version = "dev" // overridden at build time via -ldflags

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sdrd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listen   = pflag.String("listen", "", "HTTP listen address (overrides config file)")
		logLevel = pflag.String("log-level", "", "log level: debug, info, warn, error (overrides config file)")
		printVer = pflag.BoolP("version", "v", false, "print version and exit")
	)
	pflag.Parse()

	if *printVer {
		fmt.Println("sdrd", version)
		return nil
	}

	cfg, found, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logging.New(cfg.LogLevel)
	if !found {
		logger.Warn("no config file found, using built-in defaults")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting sdrd", "version", version, "listen", cfg.Listen)
	a, err := app.New(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	err = a.Run(ctx)
	if ctx.Err() != nil {
		// Shutdown was requested; a nil or context-cancellation error
		// from Run is expected, not a failure.
		return nil
	}
	return err
}
