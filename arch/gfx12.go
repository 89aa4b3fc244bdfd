package arch

import (
	"github.com/sarchlab/wavedbg/cwsr"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// EF_AMDGPU_MACH values for the gfx12 family.
const (
	ElfMachineGFX1200 = 0x048
	ElfMachineGFX1201 = 0x04e
)

// gfx12 splits STATUS into STATUS and STATE_PRIV, and reorganises MODE and
// TRAPSTS into TRAP_CTRL, EXCP_FLAG_PRIV, and EXCP_FLAG_USER.
func gfx12ReadOnly() map[regs.Regnum]uint64 {
	status := regs.BitMask(0, 5) | uint64(1)<<7 | regs.BitMask(12, 13) |
		uint64(1)<<17 | regs.BitMask(19, 21)
	statePriv := regs.BitMask(15, 17) | regs.BitMask(19, 31)
	return map[regs.Regnum]uint64{
		regs.PC:              regs.BitMask(0, 1),
		regs.Status:          status,
		regs.PseudoStatus:    status,
		regs.StatePriv:       statePriv,
		regs.PseudoStatePriv: statePriv,
		regs.Mode: regs.BitMask(8, 22) | regs.BitMask(25, 26) |
			regs.BitMask(28, 31),
		regs.TrapCtrl:     regs.BitMask(10, 31),
		regs.ExcpFlagPriv: regs.BitMask(13, 29),
		regs.ExcpFlagUser: regs.BitMask(7, 29),
	}
}

func gfx12Layout() *regs.Layout {
	return &regs.Layout{
		Gen:                regs.Gen12,
		ScalarCount:        106,
		AliasCount:         2,
		LaneCounts:         []int{32, 64},
		HasArchFlatScratch: true,
		ReadOnly:           gfx12ReadOnly(),
	}
}

func gfx12Format() *cwsr.Format {
	f := gfx11Format()
	f.Gen = regs.Gen12
	return f
}

func gfx12Architectures() []*Architecture {
	layout := gfx12Layout()
	format := gfx12Format()

	chip := func(machine uint32, name string) *Architecture {
		return &Architecture{
			ElfMachine:        machine,
			Name:              name,
			Triple:            "amdgcn-amd-amdhsa--" + name,
			Gen:               regs.Gen12,
			Layout:            layout,
			Ops:               insts.GFX12Ops,
			Format:            format,
			CanHaltAtEndpgm:      true,
			HasVGPRDealloc:       true,
			PreciseSingleStep:    true,
			TrapHandlerOwnsTtmps: true,
			PacketIDReg:          regs.TTMP8,
			PacketIDMask:         regs.TTMP8QueuePacketIDMask,
		}
	}

	return []*Architecture{
		chip(ElfMachineGFX1200, "gfx1200"),
		chip(ElfMachineGFX1201, "gfx1201"),
	}
}
