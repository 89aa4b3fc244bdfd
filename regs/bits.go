package regs

// BitMask returns a mask covering bits lo through hi inclusive.
func BitMask(lo, hi uint) uint64 {
	return (^uint64(0) >> (63 - (hi - lo))) << lo
}

// BitExtract returns bits lo through hi of v, shifted down to bit 0.
func BitExtract(v uint64, lo, hi uint) uint64 {
	return (v >> lo) & (^uint64(0) >> (63 - (hi - lo)))
}

// SQ_WAVE_STATUS fields, gfx9 through gfx11.
const (
	StatusSCC         uint32 = 1 << 0
	StatusPriv        uint32 = 1 << 5
	StatusTrapEn      uint32 = 1 << 6
	StatusExecZ       uint32 = 1 << 9
	StatusVccZ        uint32 = 1 << 10
	StatusHalt        uint32 = 1 << 13
	StatusSkipExport  uint32 = 1 << 18
	StatusCondDbgUser uint32 = 1 << 20
	StatusCondDbgSys  uint32 = 1 << 21
	StatusNoVGPRs     uint32 = 1 << 24 // gfx11
)

// SQ_WAVE_MODE fields, gfx9 and gfx10.
const (
	ModeDebugEn          uint32 = 1 << 11
	ModeExcpEnInvalid    uint32 = 1 << 12
	ModeExcpEnDenorm     uint32 = 1 << 13
	ModeExcpEnDiv0       uint32 = 1 << 14
	ModeExcpEnOverflow   uint32 = 1 << 15
	ModeExcpEnUnderflow  uint32 = 1 << 16
	ModeExcpEnInexact    uint32 = 1 << 17
	ModeExcpEnIntDiv0    uint32 = 1 << 18
	ModeExcpEnAddrWatch  uint32 = 1 << 19
	ModeTrapAfterInstEn  uint32 = 1 << 11 // gfx11, replaces debug_en
	ModeTrapWaveEnd      uint32 = 1 << 21 // gfx11
	ModeCSPShift                = 29      // gfx9 conditional branch stack pointer
	ModeCSPMask          uint32 = 0b111 << ModeCSPShift
)

// SQ_WAVE_TRAPSTS fields, gfx9 and gfx10. gfx11 moves the trap-entry flags
// down to bits 16..20.
const (
	TrapStsExcpInvalid     uint32 = 1 << 0
	TrapStsExcpDenorm      uint32 = 1 << 1
	TrapStsExcpDiv0        uint32 = 1 << 2
	TrapStsExcpOverflow    uint32 = 1 << 3
	TrapStsExcpUnderflow   uint32 = 1 << 4
	TrapStsExcpInexact     uint32 = 1 << 5
	TrapStsExcpIntDiv0     uint32 = 1 << 6
	TrapStsExcpAddrWatch0  uint32 = 1 << 7
	TrapStsExcpMemViol     uint32 = 1 << 8
	TrapStsSaveCtx         uint32 = 1 << 10
	TrapStsIllegalInst     uint32 = 1 << 11
	TrapStsExcpAddrWatch1  uint32 = 1 << 12
	TrapStsExcpAddrWatch2  uint32 = 1 << 13
	TrapStsExcpAddrWatch3  uint32 = 1 << 14
	TrapStsXnackError      uint32 = 1 << 28
	TrapStsHostTrap        uint32 = 1 << 22 // gfx940
	TrapStsWaveBegin       uint32 = 1 << 23 // gfx940
	TrapStsWaveEnd         uint32 = 1 << 24 // gfx940
	TrapStsTrapAfterInst   uint32 = 1 << 25 // gfx940
	TrapStsPerfSnapshot    uint32 = 1 << 26 // gfx940
	TrapSts11HostTrap      uint32 = 1 << 16
	TrapSts11WaveBegin     uint32 = 1 << 17
	TrapSts11WaveEnd       uint32 = 1 << 18
	TrapSts11PerfSnapshot  uint32 = 1 << 19
	TrapSts11TrapAfterInst uint32 = 1 << 20
)

// TTMP6 fields used by the trap-handler stop protocol.
const (
	TTMP6SPITtmpsSetupDisabled uint32 = 1 << 31
	TTMP6WaveStopped           uint32 = 1 << 30
	TTMP6SavedStatusHalt       uint32 = 1 << 29
	TTMP6SavedTrapIDShift             = 25
	TTMP6SavedTrapIDMask       uint32 = 0b1111 << TTMP6SavedTrapIDShift
	TTMP6QueuePacketIDMask     uint32 = 0x01FFFFFF // bits [24:0], gfx9
)

// TTMP11 fields.
const (
	TTMP11WaveInGroupMask    uint32 = 0x3F       // bits [5:0], gfx9
	TTMP11ParkedPCHiMask     uint32 = 0x007FFF80 // bits [22:7], pc[47:32]
	TTMP11ParkedPCHiShift           = 7
	TTMP11QueuePacketIDMask  uint32 = 0x7FFFFFC0 // bits [30:6], gfx940
	TTMP11QueuePacketIDShift        = 6
	TTMP11TrapHandlerSetup   uint32 = 1 << 31 // gfx940
)

// TTMP8 fields, gfx12.
const (
	TTMP8QueuePacketIDMask uint32 = 0x01FFFFFF // bits [24:0]
	TTMP8WaveInGroupMask   uint32 = 0x3E000000 // bits [29:25]
	TTMP8WaveInGroupShift         = 25
	TTMP8GridYZValid       uint32 = 1 << 30
	TTMP8DebugMark         uint32 = 1 << 31
)

// SQ_WAVE_STATE_PRIV fields, gfx12.
const (
	StatePrivSCC         uint32 = 1 << 9
	StatePrivHalt        uint32 = 1 << 14
	StatePrivPoisonErr   uint32 = 1 << 15
	StatePrivCondDbgUser uint32 = 1 << 16
	StatePrivCondDbgSys  uint32 = 1 << 17
	StatePrivScratchEn   uint32 = 1 << 18
	StatePrivPerfEn      uint32 = 1 << 19
	StatePrivTTraceEn    uint32 = 1 << 20
)

// SQ_WAVE_TRAP_CTRL fields, gfx12.
const (
	TrapCtrlInvalid       uint32 = 1 << 0
	TrapCtrlDenorm        uint32 = 1 << 1
	TrapCtrlDiv0          uint32 = 1 << 2
	TrapCtrlOverflow      uint32 = 1 << 3
	TrapCtrlUnderflow     uint32 = 1 << 4
	TrapCtrlInexact       uint32 = 1 << 5
	TrapCtrlIntDiv0       uint32 = 1 << 6
	TrapCtrlAddrWatch     uint32 = 1 << 7
	TrapCtrlWaveEnd       uint32 = 1 << 8
	TrapCtrlTrapAfterInst uint32 = 1 << 9
)

// SQ_WAVE_EXCP_FLAG_PRIV fields, gfx12.
const (
	ExcpPrivAddrWatch0    uint32 = 1 << 0
	ExcpPrivAddrWatch1    uint32 = 1 << 1
	ExcpPrivAddrWatch2    uint32 = 1 << 2
	ExcpPrivAddrWatch3    uint32 = 1 << 3
	ExcpPrivMemViol       uint32 = 1 << 4
	ExcpPrivSaveContext   uint32 = 1 << 5
	ExcpPrivIllegalInst   uint32 = 1 << 6
	ExcpPrivHostTrap      uint32 = 1 << 7
	ExcpPrivWaveStart     uint32 = 1 << 8
	ExcpPrivWaveEnd       uint32 = 1 << 9
	ExcpPrivPerfSnapshot  uint32 = 1 << 10
	ExcpPrivTrapAfterInst uint32 = 1 << 11
	ExcpPrivXnackError    uint32 = 1 << 12
)

// SQ_WAVE_EXCP_FLAG_USER fields, gfx12. The low seven ALU bits mirror the
// trap_ctrl enable bits one for one.
const (
	ExcpUserInvalid    uint32 = 1 << 0
	ExcpUserDenorm     uint32 = 1 << 1
	ExcpUserDiv0       uint32 = 1 << 2
	ExcpUserOverflow   uint32 = 1 << 3
	ExcpUserUnderflow  uint32 = 1 << 4
	ExcpUserInexact    uint32 = 1 << 5
	ExcpUserIntDiv0    uint32 = 1 << 6
	ExcpUserBufferOOB  uint32 = 1 << 30
	ExcpUserLODClamped uint32 = 1 << 31
)
