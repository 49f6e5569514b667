// Package recorder implements component H: the recorder assembler
// (mmap'd recorder buffer, 12->16-bit expansion, tar+SigMF streaming)
// and the recording metadata / auto-stop timer / finish-waiter of
// spec.md §4.H, grounded on
// original_source/maia-httpd/src/httpd/recording.rs.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/maia-sdr/sdrd/internal/apperror"
	"github.com/maia-sdr/sdrd/internal/fpga"
	"github.com/maia-sdr/sdrd/internal/sigmf"
)

// Mode is the recorder's sample-width mode.
type Mode = fpga.RecorderMode

const (
	Mode16Bit = fpga.RecorderMode16Bit
	Mode12Bit = fpga.RecorderMode12Bit
	Mode8Bit  = fpga.RecorderMode8Bit
)

// State is the recorder's logical run state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

const timestampLen = 20 // "YYYY-MM-DD-HH-MM-SS_"

// BeginsWithTimestamp reports whether s already starts with a
// YYYY-MM-DD-HH-MM-SS_ prefix (spec.md §8 "Timestamp prefix
// idempotence"), grounded on original_source recording.rs's
// RecordingMeta::begins_with_timestamp.
func BeginsWithTimestamp(s string) bool {
	if len(s) < timestampLen {
		return false
	}
	for j := 0; j < timestampLen; j++ {
		c := s[j]
		switch j {
		case 19:
			if c != '_' {
				return false
			}
		case 4, 7, 10, 13, 16:
			if c != '-' {
				return false
			}
		default:
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// PrependTimestamp replaces any existing YYYY-MM-DD-HH-MM-SS_ prefix
// on filename with one derived from t, so the result always begins
// with exactly one such prefix (spec.md §8).
func PrependTimestamp(filename string, t time.Time) string {
	if BeginsWithTimestamp(filename) {
		filename = filename[timestampLen:]
	}
	return t.UTC().Format("2006-01-02-15-04-05") + "_" + filename
}

// Metadata is the mutable per-recording state: the SigMF header plus
// sdrd's own bookkeeping fields (spec.md §3 "Recording metadata").
type Metadata struct {
	mu sync.Mutex

	sigmfMeta        sigmf.Metadata
	mode             Mode
	filename         string
	prependTimestamp bool
	maximumDuration  time.Duration // 0 means unlimited
	state            State
	recordingID      uuid.UUID // identifies the current/most recent recording

	stopTimerCancel context.CancelFunc

	core   *fpga.IPCore
	logger *log.Logger
}

// Deps supplies the sysfs-backed values Metadata needs from the
// transceiver, factored out so this package never imports internal/iio
// directly (component I wires the closures).
type Deps struct {
	SampleRate  func(ctx context.Context) (float64, error)
	RXFrequency func(ctx context.Context) (float64, error)
}

// New builds the initial, stopped recording metadata (spec.md §4.H /
// original_source RecordingMeta::new).
func New(ctx context.Context, core *fpga.IPCore, deps Deps, logger *log.Logger) (*Metadata, error) {
	mode := core.RecorderMode()
	sampleRate, err := deps.SampleRate(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientIO, "read initial sample rate", err)
	}
	frequency, err := deps.RXFrequency(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientIO, "read initial rx frequency", err)
	}

	return &Metadata{
		sigmfMeta: sigmf.New(sigmf.DatatypeForMode(mode), sampleRate, frequency, time.Time{}),
		mode:      mode,
		filename:  "recording",
		state:     StateStopped,
		core:      core,
		logger:    logger,
	}, nil
}

// Snapshot is an immutable copy of the fields the recording assembler
// needs, taken under the metadata lock.
type Snapshot struct {
	SigMF           sigmf.Metadata
	Mode            Mode
	Filename        string
	MaximumDuration time.Duration
	RecordingID     uuid.UUID
}

// Snapshot copies out the fields needed to build a recording stream.
func (m *Metadata) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{SigMF: m.sigmfMeta, Mode: m.mode, Filename: m.filename, MaximumDuration: m.maximumDuration, RecordingID: m.recordingID}
}

// RecordingID returns the identifier of the current or most recently
// started recording (spec.md's recording/session identifiers,
// assigned fresh on every Start so two recordings in the same process
// never share one, grounded on the uuid usage pattern in
// other_examples/manifests/madpsy-ka9q_ubersdr and dbehnke-dmr-nexus).
func (m *Metadata) RecordingID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordingID
}

// State reports the current recorder state.
func (m *Metadata) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetPrependTimestamp sets whether future recordings get a timestamp
// prefix.
func (m *Metadata) SetPrependTimestamp(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prependTimestamp = v
}

// PrependTimestampEnabled reports the current flag value.
func (m *Metadata) PrependTimestampEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prependTimestamp
}

// SetMaximumDuration sets the auto-stop duration; zero means
// unlimited.
func (m *Metadata) SetMaximumDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maximumDuration = d
}

// MaximumDuration returns the current auto-stop duration.
func (m *Metadata) MaximumDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maximumDuration
}

// PatchJSON fields: filename/description/author are patched directly
// (mirrors original_source's RecordingMeta::patch_json).
func (m *Metadata) SetFilename(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filename = name
}

func (m *Metadata) Filename() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filename
}

func (m *Metadata) SetDescription(d string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sigmfMeta.Description = d
}

func (m *Metadata) Description() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sigmfMeta.Description
}

func (m *Metadata) SetAuthor(a string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sigmfMeta.Author = a
}

func (m *Metadata) Author() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sigmfMeta.Author
}

// Start transitions Stopped -> Running, cancelling any stale auto-stop
// timer before arming a new one (spec.md §9's resolved race: "explicitly
// cancel any stale timer on start rather than assert"), and refreshes
// the SigMF header from current hardware/transceiver state.
func (m *Metadata) Start(ctx context.Context, deps Deps) error {
	m.mu.Lock()
	if m.state == StateRunning {
		m.mu.Unlock()
		return nil
	}
	m.state = StateRunning
	now := time.Now()
	m.sigmfMeta.DateTime = now
	m.recordingID = uuid.New()

	if m.stopTimerCancel != nil {
		m.stopTimerCancel()
		m.stopTimerCancel = nil
	}

	if m.maximumDuration > 0 {
		timerCtx, cancel := context.WithCancel(context.Background())
		m.stopTimerCancel = cancel
		duration := m.maximumDuration
		core := m.core
		go runAutoStopTimer(timerCtx, duration, core)
	}

	if m.prependTimestamp {
		m.filename = PrependTimestamp(m.filename, now)
	}

	m.mode = m.core.RecorderMode()
	m.sigmfMeta.Datatype = sigmf.DatatypeForMode(m.mode)
	m.mu.Unlock()

	sampleRate, err := deps.SampleRate(ctx)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientIO, "read sample rate for new recording", err)
	}
	frequency, err := deps.RXFrequency(ctx)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientIO, "read rx frequency for new recording", err)
	}

	m.mu.Lock()
	m.sigmfMeta.SampleRate = sampleRate
	m.sigmfMeta.Frequency = frequency
	m.mu.Unlock()
	return nil
}

// runAutoStopTimer sleeps duration+100ms then issues recorder_stop
// unless ctx is cancelled first (spec.md §4.H "Auto-stop timer").
func runAutoStopTimer(ctx context.Context, duration time.Duration, core *fpga.IPCore) {
	t := time.NewTimer(duration + 100*time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
		_ = core.RecorderStop()
	}
}

// FinishWaiter awaits the recorder-finished interrupt in a loop; on
// each pulse it cancels any pending auto-stop timer and transitions
// the metadata to Stopped (spec.md §4.H "Recorder-finished waiter").
type FinishWaiter struct {
	waiter   *fpga.Waiter
	metadata *Metadata
	logger   *log.Logger
}

// NewFinishWaiter builds the recorder-finished waiter task.
func NewFinishWaiter(waiter *fpga.Waiter, metadata *Metadata, logger *log.Logger) *FinishWaiter {
	return &FinishWaiter{waiter: waiter, metadata: metadata, logger: logger}
}

// Run loops until ctx is cancelled or the interrupt waiter reports the
// device has gone away.
func (f *FinishWaiter) Run(ctx context.Context) error {
	for {
		if err := f.waiter.Wait(ctx); err != nil {
			return err
		}
		f.logger.Info("recorder finished")
		f.metadata.mu.Lock()
		if f.metadata.stopTimerCancel != nil {
			f.metadata.stopTimerCancel()
			f.metadata.stopTimerCancel = nil
		}
		f.metadata.state = StateStopped
		f.metadata.mu.Unlock()
	}
}

