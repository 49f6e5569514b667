package fpga

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/maia-sdr/sdrd/internal/apperror"
	"github.com/maia-sdr/sdrd/internal/uio"
)

// InterruptSource names one of the IP core's interrupt lines (spec.md
// §3's interrupts.{spectrometer,recorder} bits).
type InterruptSource int

const (
	InterruptSpectrometer InterruptSource = iota
	InterruptRecorder
)

// Waiter is handed to a single consumer per source; Wait resolves at
// the next notification. Redundant notifications coalesce, matching
// original_source's tokio::sync::Notify-backed InterruptWaiter.
type Waiter struct {
	mu     sync.Mutex
	cond   *sync.Cond
	seq    uint64
	closed bool
}

func newWaiter() *Waiter {
	w := &Waiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *Waiter) notify() {
	w.mu.Lock()
	w.seq++
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *Waiter) close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Wait blocks until the next notification for this source, or until
// ctx is cancelled or the dispatcher is closed. Because sync.Cond has
// no native context support, cancellation is served by a companion
// goroutine that wakes the condvar when ctx is done, following the
// pattern used where Go code bridges context.Context onto Cond-style
// waits (no suspension-point equivalent exists in the pack for this
// exact case, so this is a direct, minimal translation of the
// original's Notify::notified().await).
func (w *Waiter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	w.mu.Lock()
	defer w.mu.Unlock()
	seqAtEntry := w.seq
	for w.seq == seqAtEntry && !w.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.cond.Wait()
	}
	if w.closed {
		return apperror.New(apperror.KindTransientIO, "interrupt dispatcher closed")
	}
	return ctx.Err()
}

// Dispatcher is the single task reading pending-IRQ bits and
// notifying per-source waiters (spec.md §4.E).
type Dispatcher struct {
	dev    *uio.Device
	regs   *RegisterBlock
	logger *log.Logger

	waiters map[InterruptSource]*Waiter
}

// NewDispatcher builds a dispatcher over the IP core's UIO device and
// register block.
func NewDispatcher(dev *uio.Device, regs *RegisterBlock, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		dev:  dev,
		regs: regs,
		waiters: map[InterruptSource]*Waiter{
			InterruptSpectrometer: newWaiter(),
			InterruptRecorder:     newWaiter(),
		},
		logger: logger,
	}
}

// Waiter returns the Waiter for a given interrupt source.
func (d *Dispatcher) Waiter(src InterruptSource) *Waiter {
	return d.waiters[src]
}

// Run is the single dispatch loop: irq_enable, irq_wait, read
// interrupts, notify set bits. It returns only on error (device gone
// away), per spec.md §4.E/§7.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		for _, w := range d.waiters {
			w.close()
		}
	}()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.dev.IRQEnable(); err != nil {
			return apperror.Wrap(apperror.KindTransientIO, "interrupt dispatcher irq_enable", err)
		}
		if _, err := d.dev.IRQWait(); err != nil {
			return apperror.Wrap(apperror.KindTransientIO, "interrupt dispatcher irq_wait", err)
		}
		spectrometer, recorder := d.regs.PendingInterrupts()
		d.logger.Debug("interrupt", "spectrometer", spectrometer, "recorder", recorder)
		if spectrometer {
			d.waiters[InterruptSpectrometer].notify()
		}
		if recorder {
			d.waiters[InterruptRecorder].notify()
		}
	}
}
