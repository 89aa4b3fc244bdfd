package arch

import (
	"github.com/sarchlab/wavedbg/cwsr"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// EF_AMDGPU_MACH values for the gfx11 family.
const (
	ElfMachineGFX1100 = 0x041
	ElfMachineGFX1101 = 0x046
	ElfMachineGFX1102 = 0x047
)

func gfx11ReadOnly() map[regs.Regnum]uint64 {
	trapsts := uint64(1)<<9 | regs.BitMask(21, 27) | regs.BitMask(29, 31)
	return map[regs.Regnum]uint64{
		regs.PC:      regs.BitMask(0, 1),
		regs.TrapSts: trapsts,
		regs.Mode: uint64(1)<<22 | regs.BitMask(24, 26) |
			regs.BitMask(28, 31),
		regs.Status:       regs.BitMask(0, 31),
		regs.PseudoStatus: regs.BitMask(0, 31),
	}
}

func gfx11Layout() *regs.Layout {
	return &regs.Layout{
		Gen:                regs.Gen11,
		ScalarCount:        106,
		AliasCount:         2,
		LaneCounts:         []int{32, 64},
		HasArchFlatScratch: true,
		ReadOnly:           gfx11ReadOnly(),
	}
}

func gfx11Format() *cwsr.Format {
	f := gfx10Format()
	f.Gen = regs.Gen11
	f.SEID = cwsr.BitField{Lo: 24, Hi: 26}
	return f
}

func gfx11Architectures() []*Architecture {
	layout := gfx11Layout()
	format := gfx11Format()

	chip := func(machine uint32, name string) *Architecture {
		return &Architecture{
			ElfMachine:        machine,
			Name:              name,
			Triple:            "amdgcn-amd-amdhsa--" + name,
			Gen:               regs.Gen11,
			Layout:            layout,
			Ops:               insts.GFX11Ops,
			Format:            format,
			CanHaltAtEndpgm:   true,
			HasVGPRDealloc:    true,
			PreciseSingleStep: true,
			PacketIDReg:       regs.TTMP6,
			PacketIDMask:      regs.TTMP6QueuePacketIDMask,
		}
	}

	return []*Architecture{
		chip(ElfMachineGFX1100, "gfx1100"),
		chip(ElfMachineGFX1101, "gfx1101"),
		chip(ElfMachineGFX1102, "gfx1102"),
	}
}
