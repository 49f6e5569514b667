package fpga

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/maia-sdr/sdrd/internal/apperror"
	"github.com/maia-sdr/sdrd/internal/ddc"
	"github.com/maia-sdr/sdrd/internal/dmaring"
	"github.com/maia-sdr/sdrd/internal/uio"
)

// Coefficient-RAM geometry (spec.md §3/§4.D).
const (
	maxCoefficients4DSP = 256
	maxCoefficients2DSP = 128
	clockFrequencyHz    = 187_500_000.0
	maxOperations        = 128
	minCoeff              = -(1 << 17)
	maxCoeff              = (1 << 17) - 1

	addrOffsetStage1 = 0
	addrOffsetStage2 = 256
	addrOffsetStage3 = 512
)

// SpectrometerMode mirrors maia_json::SpectrometerMode.
type SpectrometerMode int

const (
	ModeAverage SpectrometerMode = iota
	ModePeakDetect
)

// SpectrometerInput selects the spectrometer's data source.
type SpectrometerInput int

const (
	InputAD9361 SpectrometerInput = iota
	InputDDC
)

// RecorderMode selects the IQ recorder's sample width.
type RecorderMode int

const (
	RecorderMode16Bit RecorderMode = iota
	RecorderMode12Bit
	RecorderMode8Bit
)

// FIRConfig is one decimating FIR stage (spec.md §3).
type FIRConfig struct {
	Coefficients []int32
	Decimation   uint32
}

// DDCConfig is the full 1-3 stage DDC configuration (spec.md §3). A
// nil FIR2 or FIR3 means that stage is bypassed.
type DDCConfig struct {
	Frequency float64
	FIR1      FIRConfig
	FIR2      *FIRConfig
	FIR3      *FIRConfig
}

func (c DDCConfig) clone() DDCConfig {
	out := c
	out.FIR1.Coefficients = append([]int32(nil), c.FIR1.Coefficients...)
	if c.FIR2 != nil {
		f := *c.FIR2
		f.Coefficients = append([]int32(nil), c.FIR2.Coefficients...)
		out.FIR2 = &f
	}
	if c.FIR3 != nil {
		f := *c.FIR3
		f.Coefficients = append([]int32(nil), c.FIR3.Coefficients...)
		out.FIR3 = &f
	}
	return out
}

// decimation returns the product of the active stages' decimations.
func (c DDCConfig) decimation() uint32 {
	d := c.FIR1.Decimation
	if c.FIR2 != nil {
		d *= c.FIR2.Decimation
	}
	if c.FIR3 != nil {
		d *= c.FIR3.Decimation
	}
	return d
}

// shadow is the IP-core's RAM-cached copy of costly-to-reread fields
// (spec.md §3's IP-core handle).
type shadow struct {
	mu              sync.Mutex
	numIntegrations uint32
	mode            SpectrometerMode
	input           SpectrometerInput
	ddcConfig       DDCConfig
	ddcEnabled      bool
	recMode         RecorderMode
}

// IPCore is the singleton facade over the register shadow and DMA
// handles (spec.md §3/§4.C/§4.D).
type IPCore struct {
	regs    *RegisterBlock
	mapping *uio.Mapping
	uioDev  *uio.Device
	specDMA *dmaring.Ring

	hw sync.Mutex // serializes all register programming
	sh shadow

	logger *log.Logger
}

var taken atomic.Bool

// Take constructs the IP-core singleton (spec.md §4.C). It fails if
// called a second time in the process, matching the original's
// process-wide take-ownership constructor.
func Take(uioName, spectrometerDMAName string, inputSampRate float64, defaultDecimation int, logger *log.Logger) (*IPCore, error) {
	if !taken.CompareAndSwap(false, true) {
		return nil, apperror.New(apperror.KindHardwareUnavailable, "ip core already taken in this process")
	}

	dev, err := uio.OpenByName(uioName)
	if err != nil {
		taken.Store(false)
		return nil, err
	}
	mapping, err := dev.Map(0)
	if err != nil {
		dev.Close()
		taken.Store(false)
		return nil, err
	}
	specDMA, err := dmaring.Open(spectrometerDMAName)
	if err != nil {
		mapping.Close()
		dev.Close()
		taken.Store(false)
		return nil, err
	}

	regs := NewRegisterBlock(mapping.Addr())
	id := regs.ProductID()
	if id != [4]byte{'m', 'a', 'i', 'a'} {
		specDMA.Close()
		mapping.Close()
		dev.Close()
		taken.Store(false)
		return nil, apperror.New(apperror.KindHardwareUnavailable,
			fmt.Sprintf("unexpected product id %q", string(id[:])))
	}

	regs.SetSDRReset(false)

	core := &IPCore{
		regs:    regs,
		mapping: mapping,
		uioDev:  dev,
		specDMA: specDMA,
		logger:  logger,
	}

	specCtrl := regs.readSpectrometerControl()
	core.sh.numIntegrations = specCtrl.NumIntegrations
	if specCtrl.PeakDetect {
		core.sh.mode = ModePeakDetect
	} else {
		core.sh.mode = ModeAverage
	}
	if specCtrl.UseDDCOut {
		core.sh.input = InputDDC
	} else {
		core.sh.input = InputAD9361
	}
	core.sh.ddcEnabled = regs.readDDCControl().EnableInput

	if err := core.bootstrapDefaultDDC(inputSampRate, defaultDecimation); err != nil {
		specDMA.Close()
		mapping.Close()
		dev.Close()
		taken.Store(false)
		return nil, err
	}

	return core, nil
}

// Close releases all hardware handles (spec.md §4.J drop order:
// tasks -> IP core -> mappings -> files, here collapsed into one
// Close called after tasks have been stopped by the caller).
func (c *IPCore) Close() error {
	err1 := c.specDMA.Close()
	err2 := c.mapping.Close()
	err3 := c.uioDev.Close()
	taken.Store(false)
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}

// Version returns "MAJOR.MINOR.BUGFIX".
func (c *IPCore) Version() string {
	major, minor, bugfix := c.regs.Version()
	return fmt.Sprintf("%d.%d.%d", major, minor, bugfix)
}

// --- spectrometer ---

// SpectrometerLastBuffer reads the most-recently-written buffer index
// directly from hardware (cheap register read, not shadowed).
func (c *IPCore) SpectrometerLastBuffer() int {
	return c.regs.SpectrometerLastBuffer()
}

// SpectrometerNumIntegrations reads the shadow.
func (c *IPCore) SpectrometerNumIntegrations() uint32 {
	c.sh.mu.Lock()
	defer c.sh.mu.Unlock()
	return c.sh.numIntegrations
}

// SpectrometerMode reads the shadow.
func (c *IPCore) SpectrometerMode() SpectrometerMode {
	c.sh.mu.Lock()
	defer c.sh.mu.Unlock()
	return c.sh.mode
}

// SpectrometerInput reads the shadow.
func (c *IPCore) SpectrometerInput() SpectrometerInput {
	c.sh.mu.Lock()
	defer c.sh.mu.Unlock()
	return c.sh.input
}

// SetSpectrometerNumIntegrations programs num_integrations, setting
// the abort bit in the same write when reducing from a higher value
// (spec.md §4.D) so an in-flight integration finishes immediately.
func (c *IPCore) SetSpectrometerNumIntegrations(n uint32) error {
	const maxW = 1<<widthSpecNumIntegrations - 1
	if n < 1 || n > maxW {
		return apperror.New(apperror.KindConfigOutOfRange,
			fmt.Sprintf("num_integrations %d out of range [1,%d]", n, maxW))
	}
	c.hw.Lock()
	defer c.hw.Unlock()
	c.sh.mu.Lock()
	prev := c.sh.numIntegrations
	ctrl := c.currentSpectrometerControlLocked()
	ctrl.NumIntegrations = n
	ctrl.Abort = n < prev
	c.regs.writeSpectrometerControl(ctrl)
	c.sh.numIntegrations = n
	c.sh.mu.Unlock()
	return nil
}

// SetSpectrometerMode programs peak_detect.
func (c *IPCore) SetSpectrometerMode(m SpectrometerMode) error {
	c.hw.Lock()
	defer c.hw.Unlock()
	c.sh.mu.Lock()
	ctrl := c.currentSpectrometerControlLocked()
	ctrl.PeakDetect = m == ModePeakDetect
	c.regs.writeSpectrometerControl(ctrl)
	c.sh.mode = m
	c.sh.mu.Unlock()
	return nil
}

// currentSpectrometerControlLocked rebuilds the full write-only
// control word from the shadow (sh.mu must be held), honoring the
// write-only-fields-always-explicit invariant of spec.md §3.
func (c *IPCore) currentSpectrometerControlLocked() SpectrometerControl {
	return SpectrometerControl{
		NumIntegrations: c.sh.numIntegrations,
		PeakDetect:      c.sh.mode == ModePeakDetect,
		UseDDCOut:       c.sh.input == InputDDC,
	}
}

// SetSpectrometerInput switches between the AD9361 and DDC output as
// the spectrometer's data source (spec.md §4.D, §9 Q1). If s is
// InputDDC, it first checks that inputRate does not exceed the
// current DDC's maximum sustainable input rate; the shadow (the
// authority per §9's resolution) is only updated after a successful
// hardware write, so a rejected switch leaves both shadow and
// hardware in the prior state.
func (c *IPCore) SetSpectrometerInput(s SpectrometerInput, inputRate float64) error {
	c.hw.Lock()
	defer c.hw.Unlock()

	c.sh.mu.Lock()
	if s == InputDDC {
		maxRate := c.maxInputSamplingFrequencyLocked()
		if inputRate > maxRate {
			c.sh.mu.Unlock()
			return apperror.New(apperror.KindConfigOutOfRange,
				fmt.Sprintf("ddc cannot sustain input rate %g (max %g)", inputRate, maxRate))
		}
	}
	ctrl := c.currentSpectrometerControlLocked()
	ctrl.UseDDCOut = s == InputDDC
	c.regs.writeSpectrometerControl(ctrl)

	ddcCtrl := c.regs.readDDCControl()
	ddcCtrl.EnableInput = s == InputDDC
	c.regs.writeDDCControl(ddcCtrl)

	c.sh.input = s
	c.sh.ddcEnabled = s == InputDDC
	c.sh.mu.Unlock()
	return nil
}

// GetSpectrometerBuffers drains the spectrometer DMA ring up to the
// hardware's current last-written index (spec.md §4.G).
func (c *IPCore) GetSpectrometerBuffers() ([][]byte, error) {
	last := c.SpectrometerLastBuffer()
	return c.specDMA.Drain(last)
}

// --- DDC ---

// maxInputSamplingFrequencyLocked derives the maximum input sample
// rate the current shadow DDC config can sustain, from the
// operations-per-clock capacity of the programmed stages. sh.mu must
// be held.
func (c *IPCore) maxInputSamplingFrequencyLocked() float64 {
	return ddcMaxInputRate(c.sh.ddcConfig)
}

func ddcMaxInputRate(cfg DDCConfig) float64 {
	// Each stage's limit is on its own input rate; scaling it by the
	// upstream decimation expresses it as a limit on the DDC input.
	rate := clockFrequencyHz / float64(operationsPerOutput(len(cfg.FIR1.Coefficients), cfg.FIR1.Decimation))
	stageRate := rate
	upstream := float64(cfg.FIR1.Decimation)
	if cfg.FIR2 != nil {
		r := clockFrequencyHz * upstream / float64(operationsPerOutput(len(cfg.FIR2.Coefficients), cfg.FIR2.Decimation))
		if r < stageRate {
			stageRate = r
		}
		upstream *= float64(cfg.FIR2.Decimation)
	}
	if cfg.FIR3 != nil {
		r := clockFrequencyHz * upstream / float64(operationsPerOutput(len(cfg.FIR3.Coefficients), cfg.FIR3.Decimation))
		if r < stageRate {
			stageRate = r
		}
	}
	return stageRate
}

func operationsPerOutput(numCoeffs int, decimation uint32) int {
	if decimation == 0 {
		return maxOperations
	}
	return int(math.Ceil(float64(numCoeffs) / float64(decimation)))
}

// DDCConfigOutput is ddc_config_summary's result (spec.md §4.D).
type DDCConfigOutput struct {
	Config                    DDCConfig
	OutputSamplingFrequency   float64
	MaxInputSamplingFrequency float64
}

// DDCConfigSummary derives the output rate and the maximum
// sustainable input rate from the shadow config.
func (c *IPCore) DDCConfigSummary(inputRate float64) DDCConfigOutput {
	c.sh.mu.Lock()
	defer c.sh.mu.Unlock()
	cfg := c.sh.ddcConfig.clone()
	return DDCConfigOutput{
		Config:                    cfg,
		OutputSamplingFrequency:   inputRate / float64(cfg.decimation()),
		MaxInputSamplingFrequency: ddcMaxInputRate(cfg),
	}
}

// SetDDCFrequency rejects |f| > inputRate/2 and otherwise programs
// frequency = round(f/inputRate * 2^28) as 28-bit two's complement
// (spec.md §4.D).
func (c *IPCore) SetDDCFrequency(f, inputRate float64) error {
	if math.Abs(f) > inputRate/2 {
		return apperror.New(apperror.KindConfigOutOfRange,
			fmt.Sprintf("ddc frequency %g exceeds +-%g", f, inputRate/2))
	}
	c.hw.Lock()
	defer c.hw.Unlock()
	nco := int32(math.Round(f / inputRate * (1 << 28)))
	c.regs.writeDDCFrequency(uint32(nco))
	c.sh.mu.Lock()
	c.sh.ddcConfig.Frequency = f
	c.sh.mu.Unlock()
	return nil
}

// bootstrapDefaultDDC programs a deterministic starting DDC
// configuration at Take() time (spec.md §4.C step 6), so the FPGA
// never carries indeterminate post-reset FIR contents.
func (c *IPCore) bootstrapDefaultDDC(inputSampRate float64, decimation int) error {
	cfg, err := defaultDDCConfig(inputSampRate, decimation)
	if err != nil {
		return err
	}
	return c.SetDDCConfig(cfg, inputSampRate)
}

// defaultDDCConfig runs the FIR designer (component F) with default
// tolerances at zero frequency offset, converting its result into the
// register-facing DDCConfig shape.
func defaultDDCConfig(inputSampRate float64, decimation int) (DDCConfig, error) {
	result, err := ddc.Design(uint32(decimation), inputSampRate, ddc.DefaultTolerances())
	if err != nil {
		return DDCConfig{}, apperror.Wrap(apperror.KindDesignInfeasible, "design default ddc", err)
	}
	cfg := DDCConfig{
		Frequency: 0,
		FIR1:      FIRConfig{Coefficients: result.FIR1.Coefficients, Decimation: result.FIR1.Decimation},
	}
	if result.FIR2 != nil {
		cfg.FIR2 = &FIRConfig{Coefficients: result.FIR2.Coefficients, Decimation: result.FIR2.Decimation}
	}
	if result.FIR3 != nil {
		cfg.FIR3 = &FIRConfig{Coefficients: result.FIR3.Coefficients, Decimation: result.FIR3.Decimation}
	}
	return cfg, nil
}

// SetDDCConfig attempts a full reprogramming (frequency, each FIR,
// decimation, operations, odd-ops flags, bypass bits). On any failure
// mid-way it re-applies the previous shadow config on a best-effort
// basis and returns the original error (spec.md §4.D, §5 "Program-
// then-revert").
func (c *IPCore) SetDDCConfig(cfg DDCConfig, inputRate float64) error {
	c.hw.Lock()
	defer c.hw.Unlock()

	c.sh.mu.Lock()
	previous := c.sh.ddcConfig.clone()
	c.sh.mu.Unlock()

	if err := c.tryApplyDDCConfig(cfg, inputRate); err != nil {
		if _, revertErr := c.applyDDCConfigRegisters(previous, inputRate); revertErr != nil {
			c.logger.Error("ddc config revert failed after programming failure; hardware state undefined",
				"original_error", err, "revert_error", revertErr)
		}
		return err
	}

	c.sh.mu.Lock()
	c.sh.ddcConfig = cfg.clone()
	c.sh.mu.Unlock()
	return nil
}

func (c *IPCore) tryApplyDDCConfig(cfg DDCConfig, inputRate float64) error {
	_, err := c.applyDDCConfigRegisters(cfg, inputRate)
	return err
}

// applyDDCConfigRegisters performs the actual register programming
// for a DDC config: it range-checks the frequency, programs fir1 ->
// fir2 -> fir3 in sequence, each stage's input rate being the previous
// stage's output rate, and then writes the decimation, control and
// frequency registers (original_source fpga.rs's try_set_ddc_config).
func (c *IPCore) applyDDCConfigRegisters(cfg DDCConfig, inputRate float64) (DDCControl, error) {
	if math.Abs(cfg.Frequency) > inputRate/2 {
		return DDCControl{}, apperror.New(apperror.KindConfigOutOfRange, "ddc frequency out of range")
	}
	nco := int32(math.Round(cfg.Frequency / inputRate * (1 << 28)))

	stage1Rate := inputRate
	opsMinus1_1, odd1, err := c.programFIRStage(addrOffsetStage1, maxCoefficients4DSP, true,
		cfg.FIR1.Coefficients, cfg.FIR1.Decimation, stage1Rate)
	if err != nil {
		return DDCControl{}, apperror.Wrap(apperror.KindConfigOutOfRange, "failed to configure fir1", err)
	}

	var decim DDCDecimation
	decim[0] = cfg.FIR1.Decimation
	ctrl := DDCControl{OddOperations1: odd1}
	ctrl.OperationsMinus1[0] = opsMinus1_1

	stage2Rate := stage1Rate / float64(cfg.FIR1.Decimation)
	if cfg.FIR2 != nil {
		opsMinus1_2, _, err := c.programFIRStage(addrOffsetStage2, maxCoefficients2DSP, false,
			cfg.FIR2.Coefficients, cfg.FIR2.Decimation, stage2Rate)
		if err != nil {
			return DDCControl{}, apperror.Wrap(apperror.KindConfigOutOfRange, "failed to configure fir2", err)
		}
		decim[1] = cfg.FIR2.Decimation
		ctrl.OperationsMinus1[1] = opsMinus1_2
	} else {
		decim[1] = 1
		ctrl.Bypass2 = true
	}

	stage3Rate := stage2Rate
	if cfg.FIR2 != nil {
		stage3Rate = stage2Rate / float64(cfg.FIR2.Decimation)
	}
	if cfg.FIR3 != nil {
		opsMinus1_3, odd3, err := c.programFIRStage(addrOffsetStage3, maxCoefficients4DSP, true,
			cfg.FIR3.Coefficients, cfg.FIR3.Decimation, stage3Rate)
		if err != nil {
			return DDCControl{}, apperror.Wrap(apperror.KindConfigOutOfRange, "failed to configure fir3", err)
		}
		decim[2] = cfg.FIR3.Decimation
		ctrl.OperationsMinus1[2] = opsMinus1_3
		ctrl.OddOperations3 = odd3
	} else {
		decim[2] = 1
		ctrl.Bypass3 = true
	}

	ctrl.EnableInput = c.sh.ddcEnabled
	c.regs.writeDDCDecimation(decim)
	c.regs.writeDDCControl(ctrl)
	c.regs.writeDDCFrequency(uint32(nco))
	return ctrl, nil
}

// programFIRStage implements the FIR coefficient-RAM programming
// algorithm of spec.md §4.D verbatim, grounded on original_source's
// impl_set_ddc_fir! macro (fpga.rs). It returns the operations-minus-
// one and odd-operations values the caller folds into ddc_control.
func (c *IPCore) programFIRStage(addrOffset, numAddr uint32, doFold bool, coeffs []int32, decimation uint32, inputRate float64) (operationsMinus1 uint32, odd bool, err error) {
	if len(coeffs) == 0 {
		return 0, false, apperror.New(apperror.KindConfigOutOfRange, "fir stage has no coefficients")
	}
	for _, h := range coeffs {
		if h < minCoeff || h > maxCoeff {
			return 0, false, apperror.New(apperror.KindConfigOutOfRange,
				fmt.Sprintf("coefficient %d out of range [%d,%d]", h, minCoeff, maxCoeff))
		}
	}
	if decimation < 2 || decimation > 127 {
		return 0, false, apperror.New(apperror.KindConfigOutOfRange,
			fmt.Sprintf("decimation %d out of range [2,127]", decimation))
	}

	opsPerOutput := uint32(math.Ceil(float64(len(coeffs)) / float64(decimation)))
	if opsPerOutput > maxOperations {
		return 0, false, apperror.New(apperror.KindConfigOutOfRange,
			fmt.Sprintf("fir stage needs %d operations, exceeds %d", opsPerOutput, maxOperations))
	}
	if float64(opsPerOutput)*inputRate > clockFrequencyHz {
		return 0, false, apperror.New(apperror.KindConfigOutOfRange, "fir stage exceeds clock budget")
	}

	operations := opsPerOutput
	if doFold {
		operations = (opsPerOutput + 1) / 2
	}
	if operations*decimation > numAddr {
		return 0, false, apperror.New(apperror.KindConfigOutOfRange,
			fmt.Sprintf("fir stage needs %d addresses, exceeds capacity %d", operations*decimation, numAddr))
	}

	odd = opsPerOutput%2 == 1

	for addr := uint32(0); addr < numAddr; addr++ {
		var off, fold, foldMult uint32
		var j, k uint32
		if doFold {
			if addr < numAddr/2 {
				off, fold = 0, 0
			} else {
				off, fold = 1, numAddr/2
			}
			j = (addr - fold) % operations
			k = (addr - fold) / operations
			foldMult = 2
		} else {
			j = addr % operations
			k = addr / operations
			foldMult = 1
			off = 0
		}
		n := (foldMult*j + off) * decimation
		if decimation-1 >= k {
			n += decimation - 1 - k
		}

		var coeff int32
		if k < decimation && int(n) < len(coeffs) {
			coeff = coeffs[n]
		}
		c.regs.writeCoeff(addrOffset+addr, coeff)
	}

	return operations - 1, odd, nil
}

// --- recorder ---

// RecorderMode returns the current recorder sample-width mode from the
// shadow of the last-programmed value.
func (c *IPCore) RecorderMode() RecorderMode {
	// The recorder mode is stored in recorder_control's low 2 bits,
	// which is otherwise a write-only command port; sdrd keeps a
	// shadow of the last-programmed mode since recorder_control itself
	// cannot be safely read back without disturbing start/stop.
	c.sh.mu.Lock()
	defer c.sh.mu.Unlock()
	return c.sh.recorderMode()
}

func (s *shadow) recorderMode() RecorderMode {
	return s.recMode
}

// SetRecorderMode programs the 2-bit mode field.
func (c *IPCore) SetRecorderMode(m RecorderMode) error {
	c.hw.Lock()
	defer c.hw.Unlock()
	c.regs.writeRecorderControl(RecorderControl{Mode: uint32(m)})
	c.sh.mu.Lock()
	c.sh.recMode = m
	c.sh.mu.Unlock()
	return nil
}

// RecorderStart issues the (idempotent) start command.
func (c *IPCore) RecorderStart() error {
	c.hw.Lock()
	defer c.hw.Unlock()
	c.sh.mu.Lock()
	mode := c.sh.recMode
	c.sh.mu.Unlock()
	c.regs.writeRecorderControl(RecorderControl{Mode: uint32(mode), Start: true})
	return nil
}

// RecorderStop issues the (idempotent) stop command.
func (c *IPCore) RecorderStop() error {
	c.hw.Lock()
	defer c.hw.Unlock()
	c.sh.mu.Lock()
	mode := c.sh.recMode
	c.sh.mu.Unlock()
	c.regs.writeRecorderControl(RecorderControl{Mode: uint32(mode), Stop: true})
	return nil
}

// RecorderNextAddress reads the physical address the recorder has
// reached.
func (c *IPCore) RecorderNextAddress() uint64 {
	return c.regs.RecorderNextAddress()
}

// RegisterBlockForInterrupts exposes the subset of register access
// the interrupt dispatcher needs, without handing out the full
// facade (spec.md §5: "the interrupts register is independent so no
// overlap exists" with the facade's own locking).
func (c *IPCore) RegisterBlockForInterrupts() *RegisterBlock { return c.regs }

// UIODevice exposes the UIO device for the interrupt dispatcher.
func (c *IPCore) UIODevice() *uio.Device { return c.uioDev }
