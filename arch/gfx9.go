package arch

import (
	"github.com/sarchlab/wavedbg/cwsr"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// EF_AMDGPU_MACH values for the gfx9 family.
const (
	ElfMachineGFX900 = 0x02c
	ElfMachineGFX902 = 0x02d
	ElfMachineGFX904 = 0x02e
	ElfMachineGFX906 = 0x02f
	ElfMachineGFX908 = 0x030
	ElfMachineGFX909 = 0x031
	ElfMachineGFX90A = 0x03f
	ElfMachineGFX940 = 0x040
	ElfMachineGFX941 = 0x04b
	ElfMachineGFX942 = 0x04c
)

func gfx9ReadOnly() map[regs.Regnum]uint64 {
	trapsts := uint64(1)<<9 | uint64(1)<<15 | regs.BitMask(22, 27)
	status := regs.BitMask(5, 7) | regs.BitMask(9, 12) | regs.BitMask(14, 16) |
		regs.BitMask(18, 19) | regs.BitMask(22, 26) | regs.BitMask(28, 31)
	return map[regs.Regnum]uint64{
		regs.PC:           regs.BitMask(0, 1),
		regs.TrapSts:      trapsts,
		regs.Mode:         regs.BitMask(21, 22),
		regs.Status:       status,
		regs.PseudoStatus: status,
	}
}

func gfx940ReadOnly() map[regs.Regnum]uint64 {
	trapsts := uint64(1)<<9 | uint64(1)<<15 | uint64(1)<<27
	status := regs.BitMask(5, 7) | regs.BitMask(9, 12) | regs.BitMask(14, 16) |
		regs.BitMask(18, 19) | regs.BitMask(22, 26) | regs.BitMask(28, 31)
	return map[regs.Regnum]uint64{
		regs.PC:           regs.BitMask(0, 1),
		regs.TrapSts:      trapsts,
		regs.Mode:         uint64(1) << 22,
		regs.Status:       status,
		regs.PseudoStatus: status,
	}
}

func gfx9Layout(readOnly map[regs.Regnum]uint64, accVGPRs bool) *regs.Layout {
	return &regs.Layout{
		Gen:          regs.Gen9,
		ScalarCount:  102,
		AliasCount:   6,
		LaneCounts:   []int{64},
		HasAccVGPRs:  accVGPRs,
		HasXnackMask: true,
		ReadOnly:     readOnly,
	}
}

// gfx9Format is the base gfx9 context save layout. The wave descriptor's
// shader engine field and the vector register accounting vary per chip.
func gfx9Format() *cwsr.Format {
	return &cwsr.Format{
		Gen:          regs.Gen9,
		StateWords:   1,
		Scoreboard:   cwsr.BitField{Lo: 0, Hi: 8},
		SEID:         cwsr.BitField{Lo: 11, Hi: 12},
		ScratchEnBit: 15,
		LastWaveBit:  16,
		FirstWaveBit: 17,
		VGPRField:    cwsr.BitField{Lo: 0, Hi: 5},
		SGPRField:    cwsr.BitField{Lo: 6, Hi: 8},
		LDSField:     cwsr.BitField{Lo: 9, Hi: 17},
		ScalarCount:  102,
		AliasCount:   6,
		SaveAreaPad:  64,
	}
}

// miFormat is the gfx90a and gfx940 variant: accumulation registers share
// the vector register allocation, split by the accum_offset field.
func miFormat(seID cwsr.BitField) *cwsr.Format {
	f := gfx9Format()
	f.SEID = seID
	f.LDSField = cwsr.BitField{Lo: 9, Hi: 16}
	f.AccumOffsetField = &cwsr.BitField{Lo: 24, Hi: 29}
	return f
}

func gfx9Architectures() []*Architecture {
	layout := gfx9Layout(gfx9ReadOnly(), false)
	format := gfx9Format()

	base := func(machine uint32, name string) *Architecture {
		return &Architecture{
			ElfMachine:   machine,
			Name:         name,
			Triple:       "amdgcn-amd-amdhsa--" + name,
			Gen:          regs.Gen9,
			Layout:       layout,
			Ops:          insts.GFX9Ops,
			Format:       format,
			PacketIDReg:  regs.TTMP6,
			PacketIDMask: regs.TTMP6QueuePacketIDMask,
		}
	}

	gfx908 := base(ElfMachineGFX908, "gfx908")
	gfx908.Layout = gfx9Layout(gfx9ReadOnly(), true)
	gfx908Format := gfx9Format()
	gfx908Format.SEID = cwsr.BitField{Lo: 11, Hi: 13}
	gfx908Format.AccSameAsVGPR = true
	gfx908.Format = gfx908Format

	gfx90a := base(ElfMachineGFX90A, "gfx90a")
	gfx90a.Layout = gfx9Layout(gfx9ReadOnly(), true)
	gfx90a.Format = miFormat(cwsr.BitField{Lo: 9, Hi: 11})

	gfx94x := func(machine uint32, name string) *Architecture {
		a := base(machine, name)
		a.Layout = gfx9Layout(gfx940ReadOnly(), true)
		a.Format = miFormat(cwsr.BitField{Lo: 9, Hi: 10})
		a.CanHaltAtEndpgm = true
		a.PreciseSingleStep = true
		a.TrapHandlerOwnsTtmps = true
		a.PacketIDReg = regs.TTMP11
		a.PacketIDMask = regs.TTMP11QueuePacketIDMask
		a.PacketIDShift = regs.TTMP11QueuePacketIDShift
		return a
	}

	return []*Architecture{
		base(ElfMachineGFX900, "gfx900"),
		base(ElfMachineGFX902, "gfx902"),
		base(ElfMachineGFX904, "gfx904"),
		base(ElfMachineGFX906, "gfx906"),
		gfx908,
		base(ElfMachineGFX909, "gfx909"),
		gfx90a,
		gfx94x(ElfMachineGFX940, "gfx940"),
		gfx94x(ElfMachineGFX941, "gfx941"),
		gfx94x(ElfMachineGFX942, "gfx942"),
	}
}
