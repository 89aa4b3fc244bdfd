// Package cwsr parses context-save (CWSR) images: the wave save areas the
// hardware writes when a queue is preempted, and the control stack that
// indexes them.
package cwsr

import (
	"errors"

	"github.com/sarchlab/wavedbg/regs"
)

var (
	// ErrCorruptedStack reports a control stack whose walk does not
	// consume exactly the advertised wave save area.
	ErrCorruptedStack = errors.New("corrupted control stack or wave save area")
	// ErrNotSaved reports a register the save image does not hold:
	// an aliased sgpr, or a register of the other wavefront size.
	ErrNotSaved = errors.New("register not present in save area")
)

// BackingStore is the memory holding a context save image, usually a window
// into the debugged process's address space.
type BackingStore interface {
	// Read returns size bytes starting at addr.
	Read(addr uint64, size int) []byte
	// Write stores data at addr.
	Write(addr uint64, data []byte)
}

// BitField is an inclusive bit range inside a 32-bit word.
type BitField struct {
	Lo, Hi uint
}

// Extract returns the field's bits of w, shifted down to bit 0.
func (b BitField) Extract(w uint32) uint32 {
	return uint32(regs.BitExtract(uint64(w), b.Lo, b.Hi))
}

// Bit tests a single bit of w.
func Bit(w uint32, n uint) bool { return w&(1<<n) != 0 }

// Format describes one generation's context-save layout: how the relaunch
// descriptor words are parsed and where each register lives inside a wave
// save area. All generations are covered by flat descriptor tables; the
// arch package holds the instances.
type Format struct {
	Gen regs.Generation

	// StateWords is the number of relaunch state words per descriptor.
	StateWords int

	// Wave descriptor word fields.
	Scoreboard   BitField
	SEID         BitField
	ScratchEnBit uint
	FirstWaveBit uint
	LastWaveBit  uint

	// State word 0 fields.
	VGPRField BitField // allocation blocks minus one
	SGPRField BitField // allocation blocks minus one, gfx9 only
	LDSField  BitField // lds allocation granules

	// AccumOffsetField splits the vgpr allocation into architected and
	// accumulation registers (gfx90a, gfx940).
	AccumOffsetField *BitField

	// AccSameAsVGPR allocates one accumulation register per architected
	// vgpr (gfx908).
	AccSameAsVGPR bool

	// W32Bit and SharedVGPRField are present on gfx10 and gfx11.
	W32Bit          *uint
	SharedVGPRField *BitField

	// SGPRFixed overrides the sgpr count (128 on gfx10 and later).
	SGPRFixed int

	// ScalarCount and AliasCount bound the sgprs reachable by scalar
	// operands and the aliased tail holding vcc (and flat_scratch and
	// xnack_mask on gfx9).
	ScalarCount int
	AliasCount  int

	// HasArchFlatScratch places flat_scratch in the hwreg block instead
	// of the aliased sgprs.
	HasArchFlatScratch bool

	// SaveAreaPad is subtracted from the cursor before each record is
	// placed (64 bytes on gfx9).
	SaveAreaPad uint64
}

// relaunch word classification, shared by every generation.

func relaunchIsEvent(w uint32) bool { return Bit(w, 30) }
func relaunchIsState(w uint32) bool { return Bit(w, 31) }
