// Package app wires together sdrd's components (I: shared state glue;
// J: lifecycle and cancellation), grounded on
// original_source/maia-httpd/src/app.rs's App struct.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/maia-sdr/sdrd/internal/config"
	"github.com/maia-sdr/sdrd/internal/fanout"
	"github.com/maia-sdr/sdrd/internal/fpga"
	"github.com/maia-sdr/sdrd/internal/httpapi"
	"github.com/maia-sdr/sdrd/internal/iio"
	"github.com/maia-sdr/sdrd/internal/recorder"
	"github.com/maia-sdr/sdrd/internal/spectrometer"
)

// transceiver serializes access to the AD9361 IIO device, the Go
// equivalent of app.rs's Arc<tokio::sync::Mutex<Ad9361>>: sysfs I/O on
// a single device is not safe to interleave across concurrent HTTP
// requests and the spectrometer pump.
type transceiver struct {
	mu  sync.Mutex
	dev *iio.Ad9361
}

func (t *transceiver) SamplingFrequency(ctx context.Context) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SamplingFrequency(ctx)
}
func (t *transceiver) SetSamplingFrequency(ctx context.Context, hz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetSamplingFrequency(ctx, hz)
}
func (t *transceiver) RXRFBandwidth(ctx context.Context) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.RXRFBandwidth(ctx)
}
func (t *transceiver) SetRXRFBandwidth(ctx context.Context, hz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetRXRFBandwidth(ctx, hz)
}
func (t *transceiver) TXRFBandwidth(ctx context.Context) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.TXRFBandwidth(ctx)
}
func (t *transceiver) SetTXRFBandwidth(ctx context.Context, hz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetTXRFBandwidth(ctx, hz)
}
func (t *transceiver) RXLOFrequency(ctx context.Context) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.RXLOFrequency(ctx)
}
func (t *transceiver) SetRXLOFrequency(ctx context.Context, hz uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetRXLOFrequency(ctx, hz)
}
func (t *transceiver) TXLOFrequency(ctx context.Context) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.TXLOFrequency(ctx)
}
func (t *transceiver) SetTXLOFrequency(ctx context.Context, hz uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetTXLOFrequency(ctx, hz)
}
func (t *transceiver) RXGain(ctx context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.RXGain(ctx)
}
func (t *transceiver) SetRXGain(ctx context.Context, db float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetRXGain(ctx, db)
}
func (t *transceiver) TXGain(ctx context.Context) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.TXGain(ctx)
}
func (t *transceiver) SetTXGain(ctx context.Context, db float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetTXGain(ctx, db)
}
func (t *transceiver) RXGainMode(ctx context.Context) (iio.GainMode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.RXGainMode(ctx)
}
func (t *transceiver) SetRXGainMode(ctx context.Context, mode iio.GainMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev.SetRXGainMode(ctx, mode)
}

// sampleRate adapts to recorder.Deps.SampleRate / spectrometer.Pump's
// sampRate closure shapes.
func (t *transceiver) sampleRate(ctx context.Context) (float64, error) {
	v, err := t.SamplingFrequency(ctx)
	return float64(v), err
}

func (t *transceiver) rxFrequency(ctx context.Context) (float64, error) {
	v, err := t.RXLOFrequency(ctx)
	return float64(v), err
}

// App owns every long-lived object sdrd is built from and runs them
// concurrently (spec.md §2/§4.I/§4.J).
type App struct {
	core         *fpga.IPCore
	transceiver  *transceiver
	dispatcher   *fpga.Dispatcher
	bus          *fanout.Bus
	pump         *spectrometer.Pump
	recorderMeta *recorder.Metadata
	finishWaiter *recorder.FinishWaiter
	httpServer   *httpapi.Server
	logger       *log.Logger
}

// New constructs every component and wires them together, following
// App::new's construction order: take the IP core and interrupt
// handler, open the AD9361, build the waterfall bus and spectrometer
// pump (handed a closure that reads the AD9361 sample rate on every
// iteration), build the recording metadata and its finish-waiter, then
// build the HTTP server last so it can be handed every other
// dependency.
func New(ctx context.Context, cfg config.Config, version string, logger *log.Logger) (*App, error) {
	core, err := fpga.Take(cfg.UIOName, cfg.SpectrometerName, cfg.InputSampRate, cfg.DefaultDecimation, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := fpga.NewDispatcher(core.UIODevice(), core.RegisterBlockForInterrupts(), logger)

	ad9361Dev, err := iio.Open()
	if err != nil {
		core.Close()
		return nil, err
	}
	tc := &transceiver{dev: ad9361Dev}

	bus := fanout.New()
	pump := spectrometer.New(core, dispatcher.Waiter(fpga.InterruptSpectrometer), bus, func() float64 {
		v, err := tc.sampleRate(context.Background())
		if err != nil {
			logger.Warn("spectrometer pump: read sample rate", "err", err)
			return 0
		}
		return v
	}, logger)

	recDeps := recorder.Deps{SampleRate: tc.sampleRate, RXFrequency: tc.rxFrequency}
	recMeta, err := recorder.New(ctx, core, recDeps, logger)
	if err != nil {
		core.Close()
		return nil, err
	}
	finishWaiter := recorder.NewFinishWaiter(dispatcher.Waiter(fpga.InterruptRecorder), recMeta, logger)

	designer := NewDesigner()

	httpServer, err := httpapi.NewServer(cfg.Listen, httpapi.Deps{
		Core:          core,
		Transceiver:   tc,
		Bus:           bus,
		Recorder:      recMeta,
		Designer:      designer,
		InputSampRate: cfg.InputSampRate,
		StartedAt:     time.Now().Unix(),
		Version:       version,
	}, logger)
	if err != nil {
		core.Close()
		return nil, err
	}

	return &App{
		core:         core,
		transceiver:  tc,
		dispatcher:   dispatcher,
		bus:          bus,
		pump:         pump,
		recorderMeta: recMeta,
		finishWaiter: finishWaiter,
		httpServer:   httpServer,
		logger:       logger,
	}, nil
}

// Run runs every long-lived task concurrently and returns as soon as
// any one of them exits, mirroring App::run's tokio::select! over the
// httpd, interrupt handler and spectrometer tasks (plus the recorder
// finish-waiter, which original_source runs as part of the HTTP
// server's recorder state instead of a standalone task).
func (a *App) Run(ctx context.Context) error {
	tasks := []func(context.Context) error{
		a.dispatcher.Run,
		a.pump.Run,
		a.finishWaiter.Run,
		a.httpServer.Run,
	}
	errCh := make(chan error, len(tasks))
	for _, task := range tasks {
		task := task
		go func() { errCh <- task(ctx) }()
	}
	return <-errCh
}

// Close releases the IP core's UIO/DMA handles.
func (a *App) Close() error {
	return a.core.Close()
}
