package wave

import "github.com/sarchlab/wavedbg/regs"

// Exception is a bit set of hardware exception conditions, normalized
// across generations.
type Exception uint32

const (
	ExcInvalid Exception = 1 << iota
	ExcInputDenorm
	ExcFloatDiv0
	ExcOverflow
	ExcUnderflow
	ExcInexact
	ExcIntDiv0
	ExcMemViol
	ExcIllegalInst
	ExcXnackError
	ExcAddrWatch0
	ExcAddrWatch1
	ExcAddrWatch2
	ExcAddrWatch3
	ExcTrapAfterInst
	ExcWaveBegin
	ExcWaveEnd
	ExcHostTrap

	ExcNone Exception = 0

	excAddrWatchAny = ExcAddrWatch0 | ExcAddrWatch1 | ExcAddrWatch2 |
		ExcAddrWatch3
)

// aluExceptions maps the seven ALU exception conditions to both the trapsts
// flag bits and the mode enable bits, which use the same ordering.
var aluExceptions = []struct {
	exc  Exception
	flag uint32
}{
	{ExcInvalid, regs.TrapStsExcpInvalid},
	{ExcInputDenorm, regs.TrapStsExcpDenorm},
	{ExcFloatDiv0, regs.TrapStsExcpDiv0},
	{ExcOverflow, regs.TrapStsExcpOverflow},
	{ExcUnderflow, regs.TrapStsExcpUnderflow},
	{ExcInexact, regs.TrapStsExcpInexact},
	{ExcIntDiv0, regs.TrapStsExcpIntDiv0},
}

// SignaledExceptions decodes the exception conditions that sent the wave
// into the trap handler. ALU and address watch exceptions only count when
// the matching trap enable bit is set; memory violations, illegal
// instructions, and translation errors are always reported.
func (w *Wave) SignaledExceptions() (Exception, error) {
	if w.arch.Gen == regs.Gen12 {
		return w.signaledExceptionsGfx12()
	}

	trapsts, err := regs.ReadUint32(w.file, regs.TrapSts)
	if err != nil {
		return 0, err
	}
	mode, err := regs.ReadUint32(w.file, regs.Mode)
	if err != nil {
		return 0, err
	}

	var exc Exception
	for i, alu := range aluExceptions {
		enable := regs.ModeExcpEnInvalid << i
		if trapsts&alu.flag != 0 && mode&enable != 0 {
			exc |= alu.exc
		}
	}

	if mode&regs.ModeExcpEnAddrWatch != 0 {
		if trapsts&regs.TrapStsExcpAddrWatch0 != 0 {
			exc |= ExcAddrWatch0
		}
		if trapsts&regs.TrapStsExcpAddrWatch1 != 0 {
			exc |= ExcAddrWatch1
		}
		if trapsts&regs.TrapStsExcpAddrWatch2 != 0 {
			exc |= ExcAddrWatch2
		}
		if trapsts&regs.TrapStsExcpAddrWatch3 != 0 {
			exc |= ExcAddrWatch3
		}
	}

	if trapsts&regs.TrapStsExcpMemViol != 0 {
		exc |= ExcMemViol
	}
	if trapsts&regs.TrapStsIllegalInst != 0 {
		exc |= ExcIllegalInst
	}
	if trapsts&regs.TrapStsXnackError != 0 && w.arch.Layout.HasXnackMask {
		exc |= ExcXnackError
	}

	for excBit, flag := range w.trapEntryFlags() {
		if trapsts&flag != 0 {
			exc |= excBit
		}
	}

	return exc, nil
}

// trapEntryFlags returns the trapsts bits reporting trap handler entry
// events, which only exist on chips with precise trap reporting.
func (w *Wave) trapEntryFlags() map[Exception]uint32 {
	if !w.arch.PreciseSingleStep {
		return nil
	}
	if w.arch.Gen == regs.Gen9 {
		return map[Exception]uint32{
			ExcHostTrap:      regs.TrapStsHostTrap,
			ExcWaveBegin:     regs.TrapStsWaveBegin,
			ExcWaveEnd:       regs.TrapStsWaveEnd,
			ExcTrapAfterInst: regs.TrapStsTrapAfterInst,
		}
	}
	return map[Exception]uint32{
		ExcHostTrap:      regs.TrapSts11HostTrap,
		ExcWaveBegin:     regs.TrapSts11WaveBegin,
		ExcWaveEnd:       regs.TrapSts11WaveEnd,
		ExcTrapAfterInst: regs.TrapSts11TrapAfterInst,
	}
}

func (w *Wave) signaledExceptionsGfx12() (Exception, error) {
	priv, err := regs.ReadUint32(w.file, regs.ExcpFlagPriv)
	if err != nil {
		return 0, err
	}
	user, err := regs.ReadUint32(w.file, regs.ExcpFlagUser)
	if err != nil {
		return 0, err
	}
	ctrl, err := regs.ReadUint32(w.file, regs.TrapCtrl)
	if err != nil {
		return 0, err
	}

	var exc Exception
	for i, alu := range aluExceptions {
		enable := regs.TrapCtrlInvalid << i
		if user&alu.flag != 0 && ctrl&enable != 0 {
			exc |= alu.exc
		}
	}

	if ctrl&regs.TrapCtrlAddrWatch != 0 {
		for i, watch := range []Exception{ExcAddrWatch0, ExcAddrWatch1,
			ExcAddrWatch2, ExcAddrWatch3} {
			if priv&(regs.ExcpPrivAddrWatch0<<i) != 0 {
				exc |= watch
			}
		}
	}

	if priv&regs.ExcpPrivXnackError != 0 {
		exc |= ExcXnackError
	}
	if priv&regs.ExcpPrivMemViol != 0 {
		exc |= ExcMemViol
	}
	if priv&regs.ExcpPrivIllegalInst != 0 {
		exc |= ExcIllegalInst
	}
	if priv&regs.ExcpPrivWaveStart != 0 {
		exc |= ExcWaveBegin
	}
	if priv&regs.ExcpPrivWaveEnd != 0 {
		exc |= ExcWaveEnd
	}
	if priv&regs.ExcpPrivTrapAfterInst != 0 {
		exc |= ExcTrapAfterInst
	}
	if priv&regs.ExcpPrivHostTrap != 0 {
		exc |= ExcHostTrap
	}

	return exc, nil
}

// SetExceptions overwrites the exception flags selected by mask with the
// values in set, leaving flags outside the mask untouched.
func (w *Wave) SetExceptions(mask, set Exception) error {
	if w.arch.Gen == regs.Gen12 {
		return w.setExceptionsGfx12(mask, set)
	}

	convert := func(e Exception) uint32 {
		var bits uint32
		for _, alu := range aluExceptions {
			if e&alu.exc != 0 {
				bits |= alu.flag
			}
		}
		if e&ExcAddrWatch0 != 0 {
			bits |= regs.TrapStsExcpAddrWatch0
		}
		if e&ExcAddrWatch1 != 0 {
			bits |= regs.TrapStsExcpAddrWatch1
		}
		if e&ExcAddrWatch2 != 0 {
			bits |= regs.TrapStsExcpAddrWatch2
		}
		if e&ExcAddrWatch3 != 0 {
			bits |= regs.TrapStsExcpAddrWatch3
		}
		if e&ExcMemViol != 0 {
			bits |= regs.TrapStsExcpMemViol
		}
		if e&ExcIllegalInst != 0 {
			bits |= regs.TrapStsIllegalInst
		}
		if e&ExcXnackError != 0 && w.arch.Layout.HasXnackMask {
			bits |= regs.TrapStsXnackError
		}
		for excBit, flag := range w.trapEntryFlags() {
			if e&excBit != 0 {
				bits |= flag
			}
		}
		return bits
	}

	trapsts, err := regs.ReadUint32(w.file, regs.TrapSts)
	if err != nil {
		return err
	}
	bits, setBits := convert(mask), convert(set)
	trapsts = trapsts&^bits | setBits&bits
	return regs.WriteUint32(w.file, regs.TrapSts, trapsts)
}

func (w *Wave) setExceptionsGfx12(mask, set Exception) error {
	convertPriv := func(e Exception) uint32 {
		var bits uint32
		for i, watch := range []Exception{ExcAddrWatch0, ExcAddrWatch1,
			ExcAddrWatch2, ExcAddrWatch3} {
			if e&watch != 0 {
				bits |= regs.ExcpPrivAddrWatch0 << i
			}
		}
		if e&ExcMemViol != 0 {
			bits |= regs.ExcpPrivMemViol
		}
		if e&ExcIllegalInst != 0 {
			bits |= regs.ExcpPrivIllegalInst
		}
		if e&ExcXnackError != 0 {
			bits |= regs.ExcpPrivXnackError
		}
		if e&ExcWaveBegin != 0 {
			bits |= regs.ExcpPrivWaveStart
		}
		if e&ExcWaveEnd != 0 {
			bits |= regs.ExcpPrivWaveEnd
		}
		if e&ExcTrapAfterInst != 0 {
			bits |= regs.ExcpPrivTrapAfterInst
		}
		if e&ExcHostTrap != 0 {
			bits |= regs.ExcpPrivHostTrap
		}
		return bits
	}
	convertUser := func(e Exception) uint32 {
		var bits uint32
		for _, alu := range aluExceptions {
			if e&alu.exc != 0 {
				bits |= alu.flag
			}
		}
		return bits
	}

	priv, err := regs.ReadUint32(w.file, regs.ExcpFlagPriv)
	if err != nil {
		return err
	}
	user, err := regs.ReadUint32(w.file, regs.ExcpFlagUser)
	if err != nil {
		return err
	}

	privMask, privSet := convertPriv(mask), convertPriv(set)
	userMask, userSet := convertUser(mask), convertUser(set)
	priv = priv&^privMask | privSet&privMask
	user = user&^userMask | userSet&userMask

	if err := regs.WriteUint32(w.file, regs.ExcpFlagPriv, priv); err != nil {
		return err
	}
	return regs.WriteUint32(w.file, regs.ExcpFlagUser, user)
}

// clearStopReasons clears the hardware exception flags matching stop
// reasons that were already reported, so a resumed wave does not re-stop on
// a stale flag.
func (w *Wave) clearStopReasons() error {
	reason := w.stopReason
	exc := ExcWaveBegin | ExcWaveEnd

	if reason&StopMemoryViolation != 0 {
		exc |= ExcMemViol | ExcXnackError
	}
	if reason&StopAddressError != 0 {
		exc |= ExcMemViol
	}
	if reason&StopIllegalInstruction != 0 {
		exc |= ExcIllegalInst
	}
	if reason&StopFPInvalid != 0 {
		exc |= ExcInvalid
	}
	if reason&StopFPInputDenormal != 0 {
		exc |= ExcInputDenorm
	}
	if reason&StopFPDivideBy0 != 0 {
		exc |= ExcFloatDiv0
	}
	if reason&StopFPOverflow != 0 {
		exc |= ExcOverflow
	}
	if reason&StopFPUnderflow != 0 {
		exc |= ExcUnderflow
	}
	if reason&StopFPInexact != 0 {
		exc |= ExcInexact
	}
	if reason&StopIntDivideBy0 != 0 {
		exc |= ExcIntDiv0
	}
	if reason&StopWatchpoint != 0 {
		exc |= excAddrWatchAny
	}
	if reason&StopSingleStep != 0 {
		exc |= ExcTrapAfterInst
	}

	return w.SetExceptions(exc, ExcNone)
}

// TrapMask selects trap conditions to arm or disarm on a running wave.
type TrapMask uint32

const (
	TrapFPInvalid TrapMask = 1 << iota
	TrapFPInputDenormal
	TrapFPDivideBy0
	TrapFPOverflow
	TrapFPUnderflow
	TrapFPInexact
	TrapIntDivideBy0
	TrapAddressWatch
)

// trapEnableBits converts a TrapMask to the per generation trap enable
// register bits: mode.excp_en before gfx12, trap_ctrl after.
func (w *Wave) trapEnableBits(mask TrapMask) uint32 {
	var bits uint32
	base, watch := regs.ModeExcpEnInvalid, regs.ModeExcpEnAddrWatch
	if w.arch.Gen == regs.Gen12 {
		base, watch = regs.TrapCtrlInvalid, regs.TrapCtrlAddrWatch
	}
	for i := 0; i < 7; i++ {
		if mask&(1<<i) != 0 {
			bits |= base << i
		}
	}
	if mask&TrapAddressWatch != 0 {
		bits |= watch
	}
	return bits
}

func (w *Wave) trapEnableReg() regs.Regnum {
	if w.arch.Gen == regs.Gen12 {
		return regs.TrapCtrl
	}
	return regs.Mode
}

// EnableTraps arms the selected trap conditions.
func (w *Wave) EnableTraps(mask TrapMask) error {
	reg := w.trapEnableReg()
	v, err := regs.ReadUint32(w.file, reg)
	if err != nil {
		return err
	}
	return regs.WriteUint32(w.file, reg, v|w.trapEnableBits(mask))
}

// DisableTraps disarms the selected trap conditions.
func (w *Wave) DisableTraps(mask TrapMask) error {
	reg := w.trapEnableReg()
	v, err := regs.ReadUint32(w.file, reg)
	if err != nil {
		return err
	}
	return regs.WriteUint32(w.file, reg, v&^w.trapEnableBits(mask))
}
