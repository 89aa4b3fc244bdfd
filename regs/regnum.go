// Package regs defines the register numbering and per-generation register
// layouts shared by the instruction, wave, and context-save packages.
package regs

import "fmt"

// Regnum identifies a register in a flat numbering that spans every
// supported hardware generation. Whether a given number exists, and what it
// is called, depends on the generation's Layout.
type Regnum uint32

// Scalar general purpose registers.
const (
	FirstSGPR Regnum = 0
	LastSGPR  Regnum = FirstSGPR + 127
)

// Vector general purpose registers, wave32 and wave64 views.
const (
	FirstVGPR32 Regnum = 256
	LastVGPR32  Regnum = FirstVGPR32 + 255
	FirstVGPR64 Regnum = 512
	LastVGPR64  Regnum = FirstVGPR64 + 255
)

// Accumulation vector registers, wave64 only.
const (
	FirstAccVGPR Regnum = 768
	LastAccVGPR  Regnum = FirstAccVGPR + 255
)

// Trap temporary registers. Privileged: only readable by the trap handler
// or through a context save image.
const (
	FirstTTMP Regnum = 1024
	TTMP4     Regnum = FirstTTMP + 4
	TTMP5     Regnum = FirstTTMP + 5
	TTMP6     Regnum = FirstTTMP + 6
	TTMP7     Regnum = FirstTTMP + 7
	TTMP8     Regnum = FirstTTMP + 8
	TTMP9     Regnum = FirstTTMP + 9
	TTMP10    Regnum = FirstTTMP + 10
	TTMP11    Regnum = FirstTTMP + 11
	TTMP13    Regnum = FirstTTMP + 13
	LastTTMP  Regnum = FirstTTMP + 15
)

// Hardware registers.
const (
	M0 Regnum = 1100 + iota
	PC
	Exec32
	Exec64
	Status
	TrapSts
	XnackMask32
	XnackMask64
	Mode
	FlatScratch
	Vcc32
	Vcc64
	// gfx12 splits STATUS and the exception registers.
	StatePriv
	ExcpFlagPriv
	ExcpFlagUser
	TrapCtrl
	firstHwreg = M0
	lastHwreg  = TrapCtrl
)

// Pseudo registers. Synthesized from other registers rather than stored
// verbatim in a context save image.
const (
	PseudoStatus Regnum = 1200 + iota
	PseudoStatePriv
	PseudoExecLo
	PseudoExecHi
	PseudoVccLo
	PseudoVccHi
	CSP
	Null
	WaveID
	firstPseudo = PseudoStatus
	lastPseudo  = WaveID
)

// SGPR returns the register number of scalar register sN.
func SGPR(n int) Regnum { return FirstSGPR + Regnum(n) }

// VGPR32 returns the register number of vector register vN in a wave32.
func VGPR32(n int) Regnum { return FirstVGPR32 + Regnum(n) }

// VGPR64 returns the register number of vector register vN in a wave64.
func VGPR64(n int) Regnum { return FirstVGPR64 + Regnum(n) }

// AccVGPR returns the register number of accumulation register aN.
func AccVGPR(n int) Regnum { return FirstAccVGPR + Regnum(n) }

// TTMP returns the register number of trap temporary ttmpN.
func TTMP(n int) Regnum { return FirstTTMP + Regnum(n) }

// IsSGPR reports whether r is a scalar general purpose register.
func (r Regnum) IsSGPR() bool { return r >= FirstSGPR && r <= LastSGPR }

// IsVGPR32 reports whether r is a wave32 vector register.
func (r Regnum) IsVGPR32() bool { return r >= FirstVGPR32 && r <= LastVGPR32 }

// IsVGPR64 reports whether r is a wave64 vector register.
func (r Regnum) IsVGPR64() bool { return r >= FirstVGPR64 && r <= LastVGPR64 }

// IsAccVGPR reports whether r is an accumulation vector register.
func (r Regnum) IsAccVGPR() bool { return r >= FirstAccVGPR && r <= LastAccVGPR }

// IsTTMP reports whether r is a trap temporary register.
func (r Regnum) IsTTMP() bool { return r >= FirstTTMP && r <= LastTTMP }

// IsHwreg reports whether r is a hardware register.
func (r Regnum) IsHwreg() bool { return r >= firstHwreg && r <= lastHwreg }

// IsPseudo reports whether r is a pseudo register.
func (r Regnum) IsPseudo() bool { return r >= firstPseudo && r <= lastPseudo }

// Index returns the position of r within its register bank, e.g. 3 for s3,
// v3, a3 or ttmp3.
func (r Regnum) Index() int {
	switch {
	case r.IsSGPR():
		return int(r - FirstSGPR)
	case r.IsVGPR32():
		return int(r - FirstVGPR32)
	case r.IsVGPR64():
		return int(r - FirstVGPR64)
	case r.IsAccVGPR():
		return int(r - FirstAccVGPR)
	case r.IsTTMP():
		return int(r - FirstTTMP)
	}
	return -1
}

func (r Regnum) String() string {
	switch {
	case r.IsSGPR():
		return fmt.Sprintf("s%d", r.Index())
	case r.IsVGPR32(), r.IsVGPR64():
		return fmt.Sprintf("v%d", r.Index())
	case r.IsAccVGPR():
		return fmt.Sprintf("a%d", r.Index())
	case r.IsTTMP():
		return fmt.Sprintf("ttmp%d", r.Index())
	}

	switch r {
	case M0:
		return "m0"
	case PC:
		return "pc"
	case Exec32, Exec64:
		return "exec"
	case Status:
		return "status"
	case TrapSts:
		return "trapsts"
	case XnackMask32, XnackMask64:
		return "xnack_mask"
	case Mode:
		return "mode"
	case FlatScratch:
		return "flat_scratch"
	case Vcc32, Vcc64:
		return "vcc"
	case StatePriv:
		return "state_priv"
	case ExcpFlagPriv:
		return "excp_flag_priv"
	case ExcpFlagUser:
		return "excp_flag_user"
	case TrapCtrl:
		return "trap_ctrl"
	case PseudoStatus:
		return "status"
	case PseudoStatePriv:
		return "state_priv"
	case PseudoExecLo:
		return "exec_lo"
	case PseudoExecHi:
		return "exec_hi"
	case PseudoVccLo:
		return "vcc_lo"
	case PseudoVccHi:
		return "vcc_hi"
	case CSP:
		return "csp"
	case Null:
		return "null"
	case WaveID:
		return "wave_id"
	}
	return fmt.Sprintf("regnum(%d)", uint32(r))
}
