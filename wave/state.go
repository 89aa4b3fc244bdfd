package wave

import (
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// State is the execution state the debugger requested for a wave.
type State int

const (
	StateRun State = iota
	StateSingleStep
	StateStop
)

func (s State) String() string {
	switch s {
	case StateRun:
		return "run"
	case StateSingleStep:
		return "single-step"
	case StateStop:
		return "stop"
	}
	return "unknown"
}

// StopReason is a bit set describing why a wave entered the stop state.
type StopReason uint32

const (
	StopBreakpoint StopReason = 1 << iota
	StopWatchpoint
	StopSingleStep
	StopFPInvalid
	StopFPInputDenormal
	StopFPDivideBy0
	StopFPOverflow
	StopFPUnderflow
	StopFPInexact
	StopIntDivideBy0
	StopDebugTrap
	StopAssertTrap
	StopTrap
	StopMemoryViolation
	StopAddressError
	StopIllegalInstruction

	StopNone StopReason = 0
)

func (r StopReason) String() string {
	names := []struct {
		bit  StopReason
		name string
	}{
		{StopBreakpoint, "breakpoint"},
		{StopWatchpoint, "watchpoint"},
		{StopSingleStep, "single-step"},
		{StopFPInvalid, "fp-invalid"},
		{StopFPInputDenormal, "fp-input-denormal"},
		{StopFPDivideBy0, "fp-divide-by-0"},
		{StopFPOverflow, "fp-overflow"},
		{StopFPUnderflow, "fp-underflow"},
		{StopFPInexact, "fp-inexact"},
		{StopIntDivideBy0, "int-divide-by-0"},
		{StopDebugTrap, "debug-trap"},
		{StopAssertTrap, "assert-trap"},
		{StopTrap, "trap"},
		{StopMemoryViolation, "memory-violation"},
		{StopAddressError, "address-error"},
		{StopIllegalInstruction, "illegal-instruction"},
	}
	s := ""
	for _, n := range names {
		if r&n.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
	}
	if s == "" {
		return "none"
	}
	return s
}

// Trap instruction immediate values with an assigned meaning. Other values
// report a plain trap.
const (
	TrapIDReserved   = 0
	TrapIDBreakpoint = 1
	TrapIDAssert     = 2
	TrapIDDebug      = 3
)

// State returns the last state requested through SetState. It does not
// consult the hardware; use GetState to observe a stop.
func (w *Wave) State() State { return w.state }

// StopReason returns the reasons recorded by the last GetState that
// observed a stop.
func (w *Wave) StopReason() StopReason { return w.stopReason }

// GetState inspects the wave and reports whether it has reached the stop
// state. A wave that was told to stop or single-step reports the requested
// state until the trap handler marks it stopped in ttmp6. The first call
// that observes a newly stopped wave decodes the stop reasons from the
// exception flags and the saved trap id, and unparks the PC if the trap
// handler parked it. Subsequent calls return the cached result.
func (w *Wave) GetState() (State, StopReason, error) {
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return 0, 0, err
	}
	if ttmp6&regs.TTMP6WaveStopped == 0 {
		return w.state, StopNone, nil
	}
	if w.state == StateStop {
		return StateStop, w.stopReason, nil
	}

	prev := w.state
	w.state = StateStop

	if park, _ := w.arch.ParkStoppedWaves(w.abiVersion); park {
		pc, err := w.savedParkedPC()
		if err != nil {
			return 0, 0, err
		}
		if err := w.setPC(pc); err != nil {
			return 0, 0, err
		}
	}

	exc, err := w.SignaledExceptions()
	if err != nil {
		return 0, 0, err
	}

	var reason StopReason
	if exc&ExcInvalid != 0 {
		reason |= StopFPInvalid
	}
	if exc&ExcInputDenorm != 0 {
		reason |= StopFPInputDenormal
	}
	if exc&ExcFloatDiv0 != 0 {
		reason |= StopFPDivideBy0
	}
	if exc&ExcOverflow != 0 {
		reason |= StopFPOverflow
	}
	if exc&ExcUnderflow != 0 {
		reason |= StopFPUnderflow
	}
	if exc&ExcInexact != 0 {
		reason |= StopFPInexact
	}
	if exc&ExcIntDiv0 != 0 {
		reason |= StopIntDivideBy0
	}
	if exc&ExcXnackError != 0 {
		reason |= StopMemoryViolation
	} else if exc&ExcMemViol != 0 {
		reason |= StopAddressError
	}
	if exc&ExcIllegalInst != 0 {
		reason |= StopIllegalInstruction
	}
	if exc&excAddrWatchAny != 0 {
		reason |= StopWatchpoint
	}
	if exc&ExcTrapAfterInst != 0 {
		reason |= StopSingleStep
	}
	if exc&(ExcWaveBegin|ExcWaveEnd) != 0 {
		reason |= StopTrap
	}

	switch ttmp6 & regs.TTMP6SavedTrapIDMask >> regs.TTMP6SavedTrapIDShift {
	case TrapIDReserved:
	case TrapIDBreakpoint:
		reason |= StopBreakpoint
	case TrapIDAssert:
		reason |= StopAssertTrap
	case TrapIDDebug:
		reason |= StopDebugTrap
	default:
		reason |= StopTrap
	}

	if !w.arch.PreciseSingleStep && prev == StateSingleStep {
		handled, err := w.resolveSingleStep(&reason)
		if err != nil {
			return 0, 0, err
		}
		if handled {
			return StateSingleStep, StopNone, nil
		}
	}

	w.stopReason = reason
	return StateStop, reason, nil
}

// resolveSingleStep classifies a stop seen while single-stepping on chips
// that cannot report single-step completion precisely. The step completed
// if the PC moved. A stop at the same PC with no other reason could be a
// spurious trap handler entry before the instruction retired; if the
// instruction at the PC is a plain sequential one the step is re-issued,
// otherwise (branches may legitimately land on their own address) the stop
// is reported as a completed step.
func (w *Wave) resolveSingleStep(reason *StopReason) (bool, error) {
	pc, err := w.PC()
	if err != nil {
		return false, err
	}
	if pc != w.lastStoppedPC {
		*reason |= StopSingleStep
		return false, nil
	}
	if *reason != StopNone {
		return false, nil
	}

	if w.mem != nil {
		buf := make([]byte, insts.MaxSize)
		if err := w.mem.ReadGlobal(pc, buf); err == nil {
			c, err := w.arch.Ops.Classify(pc, buf)
			if err == nil && c.Kind == insts.KindSequential {
				if err := w.SetState(StateSingleStep); err != nil {
					return false, err
				}
				w.log.V(1).Info("ignoring spurious single-step",
					"pc", pc)
				return true, nil
			}
		}
	}

	*reason |= StopSingleStep
	return false, nil
}

// SetState requests a new execution state. Stopping halts the wave and
// latches the prior halt bit in ttmp6 so a resume can restore it. Resuming
// restores the halt bit, clears the stop marker, and arms or disarms the
// single-step trap.
func (w *Wave) SetState(state State) error {
	if w.arch.Gen == regs.Gen12 {
		return w.setStateGfx12(state)
	}

	status, err := regs.ReadUint32(w.file, regs.Status)
	if err != nil {
		return err
	}
	mode, err := regs.ReadUint32(w.file, regs.Mode)
	if err != nil {
		return err
	}
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}

	switch state {
	case StateStop:
		ttmp6 &^= regs.TTMP6WaveStopped | regs.TTMP6SavedStatusHalt
		if status&regs.StatusHalt != 0 {
			ttmp6 |= regs.TTMP6SavedStatusHalt
		}
		ttmp6 |= regs.TTMP6WaveStopped
		status |= regs.StatusHalt
		if !w.ttmpsAlwaysInitialized {
			// The trap handler skips waves whose ttmps were never
			// set up; force it to look at this one.
			status |= regs.StatusSkipExport
		}

	case StateRun, StateSingleStep:
		status &^= regs.StatusHalt | regs.StatusSkipExport
		if ttmp6&regs.TTMP6SavedStatusHalt != 0 {
			status |= regs.StatusHalt
		}
		ttmp6 &^= regs.TTMP6WaveStopped | regs.TTMP6SavedStatusHalt
		if state == StateSingleStep {
			mode |= regs.ModeDebugEn
		} else {
			mode &^= regs.ModeDebugEn
		}
	}

	if err := regs.WriteUint32(w.file, regs.Status, status); err != nil {
		return err
	}
	if err := regs.WriteUint32(w.file, regs.Mode, mode); err != nil {
		return err
	}
	if err := regs.WriteUint32(w.file, regs.TTMP6, ttmp6); err != nil {
		return err
	}

	return w.leaveState(state)
}

func (w *Wave) setStateGfx12(state State) error {
	statePriv, err := regs.ReadUint32(w.file, regs.StatePriv)
	if err != nil {
		return err
	}
	ctrl, err := regs.ReadUint32(w.file, regs.TrapCtrl)
	if err != nil {
		return err
	}
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}

	switch state {
	case StateStop:
		ttmp6 &^= regs.TTMP6WaveStopped | regs.TTMP6SavedStatusHalt
		if statePriv&regs.StatePrivHalt != 0 {
			ttmp6 |= regs.TTMP6SavedStatusHalt
		}
		ttmp6 |= regs.TTMP6WaveStopped
		statePriv |= regs.StatePrivHalt

	case StateRun, StateSingleStep:
		statePriv &^= regs.StatePrivHalt
		if ttmp6&regs.TTMP6SavedStatusHalt != 0 {
			statePriv |= regs.StatePrivHalt
		}
		ttmp6 &^= regs.TTMP6WaveStopped | regs.TTMP6SavedStatusHalt
		if state == StateSingleStep {
			ctrl |= regs.TrapCtrlTrapAfterInst
		} else {
			ctrl &^= regs.TrapCtrlTrapAfterInst
		}
	}

	if err := regs.WriteUint32(w.file, regs.StatePriv, statePriv); err != nil {
		return err
	}
	if err := regs.WriteUint32(w.file, regs.TrapCtrl, ctrl); err != nil {
		return err
	}
	if err := regs.WriteUint32(w.file, regs.TTMP6, ttmp6); err != nil {
		return err
	}

	return w.leaveState(state)
}

// leaveState finishes a state transition: when resuming a stopped wave it
// remembers the resume PC and scrubs the reported stop reasons from the
// exception flags.
func (w *Wave) leaveState(state State) error {
	if state != StateStop && w.state == StateStop {
		pc, err := w.PC()
		if err != nil {
			return err
		}
		w.lastStoppedPC = pc
		if w.stopReason != StopNone {
			if err := w.clearStopReasons(); err != nil {
				return err
			}
			w.stopReason = StopNone
		}
	}
	w.state = state
	return nil
}

// savePCForPark stashes the PC in ttmps before parking. The low half goes
// to a dedicated ttmp, the high 16 bits share ttmp11 with other fields.
func (w *Wave) savePCForPark(pc uint64) error {
	lo := regs.TTMP7
	if w.arch.Gen == regs.Gen12 {
		lo = regs.TTMP10
	}
	if err := regs.WriteUint32(w.file, lo, uint32(pc)); err != nil {
		return err
	}
	ttmp11, err := regs.ReadUint32(w.file, regs.TTMP11)
	if err != nil {
		return err
	}
	ttmp11 &^= regs.TTMP11ParkedPCHiMask
	ttmp11 |= uint32(pc>>32) << regs.TTMP11ParkedPCHiShift &
		regs.TTMP11ParkedPCHiMask
	return regs.WriteUint32(w.file, regs.TTMP11, ttmp11)
}

// savedParkedPC recovers the PC stashed by savePCForPark.
func (w *Wave) savedParkedPC() (uint64, error) {
	lo := regs.TTMP7
	if w.arch.Gen == regs.Gen12 {
		lo = regs.TTMP10
	}
	pcLo, err := regs.ReadUint32(w.file, lo)
	if err != nil {
		return 0, err
	}
	ttmp11, err := regs.ReadUint32(w.file, regs.TTMP11)
	if err != nil {
		return 0, err
	}
	hi := ttmp11 & regs.TTMP11ParkedPCHiMask >> regs.TTMP11ParkedPCHiShift
	return uint64(hi)<<32 | uint64(pcLo), nil
}
