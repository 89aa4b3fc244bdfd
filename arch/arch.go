// Package arch describes the supported GPU generations: their register
// layouts, scalar instruction opcode tables, context save formats, and the
// debug properties that differ between chips.
package arch

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/wavedbg/cwsr"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// ErrUnsupportedMachine reports an ELF machine, name, or triple that no
// supported architecture matches.
var ErrUnsupportedMachine = errors.New("unsupported architecture")

// Architecture is one chip's descriptor. All fields are immutable after
// registration.
type Architecture struct {
	// ElfMachine is the EF_AMDGPU_MACH value in a code object's e_flags.
	ElfMachine uint32
	// Name is the short chip name, e.g. "gfx906".
	Name string
	// Triple is the LLVM target triple.
	Triple string

	Gen    regs.Generation
	Layout *regs.Layout
	Ops    *insts.OpcodeSet
	Format *cwsr.Format

	// CanHaltAtEndpgm is false on chips that kill a wave halted on an
	// s_endpgm instruction during a context save.
	CanHaltAtEndpgm bool
	// HasVGPRDealloc is true on chips whose programs deallocate vector
	// registers with s_sendmsg before s_endpgm. Such chips cannot context
	// save a wave halted at the sendmsg either.
	HasVGPRDealloc bool
	// PreciseSingleStep is true when the chip raises a dedicated
	// trap-after-instruction exception. Chips without it detect single
	// stepping from the program counter.
	PreciseSingleStep bool

	// TrapHandlerOwnsTtmps is true when the trap handler, not the SPI,
	// initializes the debugger's trap temporaries. Such chips carry a
	// per-wave marker bit recording that the setup ran.
	TrapHandlerOwnsTtmps bool

	// The dispatch packet index the hardware stores for each wave moved
	// between ttmps across generations.
	PacketIDReg   regs.Regnum
	PacketIDMask  uint32
	PacketIDShift uint
}

func (a *Architecture) String() string { return a.Name }

// ParkStoppedWaves reports whether the trap handler must move stopped waves
// to a parking instruction, given the runtime's trap handler ABI version.
// The second result carries an advisory for configurations with known
// limitations.
func (a *Architecture) ParkStoppedWaves(abiVersion int) (bool, string) {
	if a.HasVGPRDealloc {
		// Starting ABI v9 waves are parked to work around the inability
		// to halt at an s_sendmsg that deallocates vgprs.
		advisory := ""
		if abiVersion == 8 {
			advisory = fmt.Sprintf(
				"architecture %s has known limitations with trap handler "+
					"ABI version 8", a.Name)
		}
		return abiVersion > 8, advisory
	}
	return !a.CanHaltAtEndpgm, ""
}

// BreakpointInstruction returns the s_trap instruction bytes carrying id.
func (a *Architecture) BreakpointInstruction(id uint8) []byte {
	return a.soppInstruction(a.Ops.Trap, uint16(id))
}

// TerminateInstruction returns the s_endpgm instruction bytes.
func (a *Architecture) TerminateInstruction() []byte {
	return a.soppInstruction(a.Ops.Endpgm, 0)
}

func (a *Architecture) soppInstruction(op int, simm16 uint16) []byte {
	word := uint32(0xBF800000) | uint32(op)<<16 | uint32(simm16)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, word)
	return buf
}

// ScratchMemoryRegion returns one wave's offset and size within the queue's
// scratch backing store, from the compute_tmpring_size register. A zero size
// with a non-empty advisory means the region cannot be located.
func (a *Architecture) ScratchMemoryRegion(tmpringSize uint32,
	seCount, seID, scoreboardID uint32) (offset, size uint64, advisory string) {
	waves := uint64(tmpringSize & 0xFFF) // bits 0-11

	if a.Gen >= regs.Gen11 {
		// Wave size in 256 byte units; the wave count is per shader engine.
		wavesize := uint64(tmpringSize>>12&0x7FFF) * 256 // bits 12-26
		return (waves*uint64(seID) + uint64(scoreboardID)) * wavesize,
			wavesize, ""
	}

	// Wave size in 1024 byte units; the wave count covers all engines.
	wavesize := uint64(tmpringSize>>12&0x1FFF) * 1024 // bits 12-24
	offset = ((waves/uint64(seCount))*uint64(seID) + uint64(scoreboardID)) *
		wavesize

	if waves%uint64(seCount) != 0 {
		// The hardware did not set up flat_scratch consistently; make the
		// region inaccessible rather than return wrong addresses.
		return offset, 0, fmt.Sprintf(
			"compute_tmpring_size.waves (%d) is not divisible by %d, "+
				"private memory access is disabled", waves, seCount)
	}
	return offset, wavesize, ""
}

// Operand is a scalar instruction operand resolved to a register. Hi selects
// the upper half when Reg is a 64 bit register.
type Operand struct {
	Reg regs.Regnum
	Hi  bool
}

// ScalarOperand maps a scalar source or destination operand code to a
// register. lanes is the wave's lane count; priv gates access to the trap
// temporaries, which read as zero for unprivileged waves.
func (a *Architecture) ScalarOperand(op, lanes int, priv bool) (Operand, bool) {
	if a.Gen == regs.Gen9 {
		return gfx9ScalarOperand(op, priv)
	}
	return gfx10ScalarOperand(op, lanes, priv)
}

func gfx9ScalarOperand(op int, priv bool) (Operand, bool) {
	switch {
	case op >= 0 && op <= 101:
		return Operand{Reg: regs.SGPR(op)}, true
	case op == 102 || op == 103:
		return Operand{Reg: regs.FlatScratch, Hi: op == 103}, true
	case op == 104 || op == 105:
		return Operand{Reg: regs.XnackMask64, Hi: op == 105}, true
	case op == 106 || op == 107:
		return Operand{Reg: regs.Vcc64, Hi: op == 107}, true
	case op >= 108 && op <= 123:
		if !priv {
			return Operand{Reg: regs.Null}, true
		}
		return Operand{Reg: regs.TTMP(op - 108)}, true
	case op == 124:
		return Operand{Reg: regs.M0}, true
	case op == 126 || op == 127:
		return Operand{Reg: regs.Exec64, Hi: op == 127}, true
	}
	return Operand{}, false
}

func gfx10ScalarOperand(op, lanes int, priv bool) (Operand, bool) {
	switch {
	case op >= 0 && op <= 105:
		return Operand{Reg: regs.SGPR(op)}, true
	case op == 106 || op == 107:
		if lanes == 32 {
			if op == 107 {
				return Operand{}, false
			}
			return Operand{Reg: regs.Vcc32}, true
		}
		return Operand{Reg: regs.Vcc64, Hi: op == 107}, true
	case op >= 108 && op <= 123:
		if !priv {
			return Operand{Reg: regs.Null}, true
		}
		return Operand{Reg: regs.TTMP(op - 108)}, true
	case op == 124:
		return Operand{Reg: regs.M0}, true
	case op == 125:
		return Operand{Reg: regs.Null}, true
	case op == 126 || op == 127:
		if lanes == 32 {
			if op == 127 {
				return Operand{}, false
			}
			return Operand{Reg: regs.Exec32}, true
		}
		return Operand{Reg: regs.Exec64, Hi: op == 127}, true
	}
	return Operand{}, false
}
