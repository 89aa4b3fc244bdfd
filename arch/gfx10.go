package arch

import (
	"github.com/sarchlab/wavedbg/cwsr"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// EF_AMDGPU_MACH values for the gfx10 family.
const (
	ElfMachineGFX1010 = 0x033
	ElfMachineGFX1011 = 0x034
	ElfMachineGFX1012 = 0x035
	ElfMachineGFX1030 = 0x036
	ElfMachineGFX1031 = 0x037
	ElfMachineGFX1032 = 0x038
)

func gfx10Layout(xnack bool) *regs.Layout {
	return &regs.Layout{
		Gen:                regs.Gen10,
		ScalarCount:        106,
		AliasCount:         2,
		LaneCounts:         []int{32, 64},
		HasArchFlatScratch: true,
		HasXnackMask:       xnack,
		ReadOnly:           gfx9ReadOnly(),
	}
}

// gfx10Format is the gfx10 and gfx11 context save layout: a fixed scalar
// allocation, a second relaunch state word, and wave32 support.
func gfx10Format() *cwsr.Format {
	w32 := uint(24)
	return &cwsr.Format{
		Gen:                regs.Gen10,
		StateWords:         2,
		Scoreboard:         cwsr.BitField{Lo: 0, Hi: 9},
		ScratchEnBit:       11,
		FirstWaveBit:       12,
		SEID:               cwsr.BitField{Lo: 24, Hi: 25},
		LastWaveBit:        29,
		VGPRField:          cwsr.BitField{Lo: 0, Hi: 5},
		LDSField:           cwsr.BitField{Lo: 10, Hi: 17},
		W32Bit:             &w32,
		SharedVGPRField:    &cwsr.BitField{Lo: 26, Hi: 29},
		SGPRFixed:          128,
		ScalarCount:        106,
		AliasCount:         2,
		HasArchFlatScratch: true,
	}
}

func gfx10Architectures() []*Architecture {
	format := gfx10Format()

	chip := func(machine uint32, name string, xnack, haltAtEndpgm bool) *Architecture {
		return &Architecture{
			ElfMachine:      machine,
			Name:            name,
			Triple:          "amdgcn-amd-amdhsa--" + name,
			Gen:             regs.Gen10,
			Layout:          gfx10Layout(xnack),
			Ops:             insts.GFX10Ops,
			Format:          format,
			CanHaltAtEndpgm: haltAtEndpgm,
			PacketIDReg:     regs.TTMP6,
			PacketIDMask:    regs.TTMP6QueuePacketIDMask,
		}
	}

	return []*Architecture{
		chip(ElfMachineGFX1010, "gfx1010", true, false),
		chip(ElfMachineGFX1011, "gfx1011", true, false),
		chip(ElfMachineGFX1012, "gfx1012", true, false),
		chip(ElfMachineGFX1030, "gfx1030", false, true),
		chip(ElfMachineGFX1031, "gfx1031", false, true),
		chip(ElfMachineGFX1032, "gfx1032", false, true),
	}
}
