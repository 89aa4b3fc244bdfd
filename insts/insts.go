// Package insts decodes and classifies the scalar control-flow instructions
// of AMD GCN and RDNA wavefronts. Opcode numbers vary by hardware
// generation; the encodings themselves are shared.
package insts

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrIllegalInstruction reports bytes that match no known encoding.
	ErrIllegalInstruction = errors.New("illegal instruction")
	// ErrIncomplete reports a buffer shorter than the encoded instruction.
	ErrIncomplete = errors.New("incomplete instruction")
)

// MinAlignment is the byte alignment of every instruction.
const MinAlignment = 4

// MaxSize is the largest encoded instruction size in bytes.
const MaxSize = 8

// Kind classifies an instruction's effect on control flow.
type Kind int

const (
	KindUnknown Kind = iota
	KindSequential
	KindDirectBranch
	KindDirectBranchConditional
	KindIndirectBranch
	KindIndirectBranchConditional
	KindDirectCall
	KindIndirectCall
	KindTerminate
	KindTrap
	KindHalt
	KindBarrier
	KindSleep
	KindSpecial
)

func (k Kind) String() string {
	switch k {
	case KindSequential:
		return "sequential"
	case KindDirectBranch:
		return "direct_branch"
	case KindDirectBranchConditional:
		return "direct_branch_conditional"
	case KindIndirectBranch:
		return "indirect_branch"
	case KindIndirectBranchConditional:
		return "indirect_branch_conditional"
	case KindDirectCall:
		return "direct_call"
	case KindIndirectCall:
		return "indirect_call"
	case KindTerminate:
		return "terminate"
	case KindTrap:
		return "trap"
	case KindHalt:
		return "halt"
	case KindBarrier:
		return "barrier"
	case KindSleep:
		return "sleep"
	case KindSpecial:
		return "special"
	}
	return "unknown"
}

// Cond identifies the condition of a conditional branch.
type Cond int

const (
	CondNone Cond = iota
	CondSCC0
	CondSCC1
	CondVCCZ
	CondVCCNZ
	CondEXECZ
	CondEXECNZ
	CondDbgSys
	CondDbgUser
	CondDbgSysOrUser
	CondDbgSysAndUser
)

func (c Cond) String() string {
	switch c {
	case CondSCC0:
		return "scc0"
	case CondSCC1:
		return "scc1"
	case CondVCCZ:
		return "vccz"
	case CondVCCNZ:
		return "vccnz"
	case CondEXECZ:
		return "execz"
	case CondEXECNZ:
		return "execnz"
	case CondDbgSys:
		return "cdbgsys"
	case CondDbgUser:
		return "cdbguser"
	case CondDbgSysOrUser:
		return "cdbgsys_or_user"
	case CondDbgSysAndUser:
		return "cdbgsys_and_user"
	}
	return "none"
}

// Instruction wraps an instruction's raw bytes together with the opcode
// table of the generation it was fetched for. The encoded size is computed
// once on first use.
type Instruction struct {
	ops   *OpcodeSet
	bytes []byte
	size  int
}

// New builds an Instruction over b. b may be longer than the instruction;
// trailing bytes are ignored once the size is known.
func New(ops *OpcodeSet, b []byte) *Instruction {
	return &Instruction{ops: ops, bytes: b}
}

// Ops returns the opcode table the instruction was decoded against.
func (i *Instruction) Ops() *OpcodeSet { return i.ops }

// Size returns the encoded byte size.
func (i *Instruction) Size() (int, error) {
	if i.size != 0 {
		return i.size, nil
	}
	if len(i.bytes) < 4 {
		return 0, ErrIncomplete
	}

	n, err := encodingSize(i.word0())
	if err != nil {
		return 0, err
	}
	if len(i.bytes) < n {
		return 0, fmt.Errorf("%w: have %d of %d bytes", ErrIncomplete,
			len(i.bytes), n)
	}

	i.size = n
	return n, nil
}

// Bytes returns the instruction's encoded bytes.
func (i *Instruction) Bytes() ([]byte, error) {
	n, err := i.Size()
	if err != nil {
		return nil, err
	}
	return i.bytes[:n], nil
}

func (i *Instruction) word0() uint32 {
	return binary.LittleEndian.Uint32(i.bytes)
}

// SImm16 returns the instruction's 16-bit immediate, sign extended.
func (i *Instruction) SImm16() int64 {
	return int64(int16(i.word0())) // bits [15:0]
}

// TrapID returns the low 8 bits of the immediate, the trap identifier of a
// trap instruction.
func (i *Instruction) TrapID() uint8 {
	return uint8(i.word0()) // bits [7:0]
}

// SSrc0 returns the first scalar source operand field.
func (i *Instruction) SSrc0() uint8 {
	return uint8(i.word0()) // bits [7:0]
}

// SSrc1 returns the second scalar source operand field.
func (i *Instruction) SSrc1() uint8 {
	return uint8(i.word0() >> 8) // bits [15:8]
}

// SDst returns the scalar destination operand field.
func (i *Instruction) SDst() uint8 {
	return uint8(i.word0()>>16) & 0x7F // bits [22:16]
}

// AlignDown rounds addr down to the instruction alignment.
func AlignDown(addr uint64) uint64 {
	return addr &^ uint64(MinAlignment-1)
}

// encodingSize returns the byte size implied by the first instruction word.
// Sizes are shared across generations; only opcode numbers move around.
func encodingSize(w uint32) (int, error) {
	const literal = 4

	switch {
	case w>>31 == 0:
		// Vector ALU, single word encodings. Operand 255 appends a literal.
		if w&0x1FF == 255 {
			return 4 + literal, nil
		}
		return 4, nil

	case w>>30 == 0b10:
		// Scalar ALU.
		switch {
		case w&0xFF800000 == 0xBF800000: // SOPP
			return 4, nil
		case w&0xFF800000 == 0xBF000000: // SOPC
			if uint8(w) == 255 || uint8(w>>8) == 255 {
				return 4 + literal, nil
			}
			return 4, nil
		case w&0xFF800000 == 0xBE800000: // SOP1
			if uint8(w) == 255 {
				return 4 + literal, nil
			}
			return 4, nil
		case w>>28 == 0xB: // SOPK
			return 4, nil
		default: // SOP2
			if uint8(w) == 255 || uint8(w>>8) == 255 {
				return 4 + literal, nil
			}
			return 4, nil
		}
	}

	switch w >> 26 {
	case 0b110000: // SMEM
		return 8, nil
	case 0b110001: // EXP
		return 8, nil
	case 0b110010: // VINTRP
		return 4, nil
	case 0b110011: // VOP3P
		return 8, nil
	case 0b110100: // VOP3
		return 8, nil
	case 0b110110: // DS
		return 8, nil
	case 0b110111: // FLAT
		return 8, nil
	case 0b111000: // MUBUF
		return 8, nil
	case 0b111010: // MTBUF
		return 8, nil
	case 0b111100: // MIMG
		return 8, nil
	}

	return 0, fmt.Errorf("%w: word %#08x", ErrIllegalInstruction, w)
}
