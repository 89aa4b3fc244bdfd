package wave

import (
	"fmt"

	"github.com/sarchlab/wavedbg/regs"
)

// DispatchPacketAddress locates the dispatch packet that launched the wave
// within the queue's packet ring. ok is false when the trap temporaries do
// not identify the dispatch.
func (w *Wave) DispatchPacketAddress() (addr uint64, ok bool, err error) {
	setup, err := w.SPITtmpsSetup()
	if err != nil || !setup {
		return 0, false, err
	}
	if w.packetSize == 0 {
		return 0, false, nil
	}

	v, err := regs.ReadUint32(w.file, w.arch.PacketIDReg)
	if err != nil {
		return 0, false, err
	}
	index := uint64(v&w.arch.PacketIDMask) >> w.arch.PacketIDShift

	if index*w.packetSize >= w.queueSize {
		return 0, false, fmt.Errorf(
			"%w: dispatch packet index %#x", ErrOutOfBounds, index)
	}
	return w.queueAddr + index*w.packetSize, true, nil
}

// GroupIDs returns the x, y, z coordinates of the wave's workgroup in the
// dispatch grid. ok is false when the trap temporaries were not set up.
func (w *Wave) GroupIDs() (coords [3]uint32, ok bool, err error) {
	setup, err := w.SPITtmpsSetup()
	if err != nil || !setup {
		return coords, false, err
	}

	if w.arch.Gen == regs.Gen12 {
		ttmp7, err := regs.ReadUint32(w.file, regs.TTMP7)
		if err != nil {
			return coords, false, err
		}
		ttmp8, err := regs.ReadUint32(w.file, regs.TTMP8)
		if err != nil {
			return coords, false, err
		}
		ttmp9, err := regs.ReadUint32(w.file, regs.TTMP9)
		if err != nil {
			return coords, false, err
		}
		coords[0] = ttmp9
		if ttmp8&regs.TTMP8GridYZValid != 0 {
			coords[1] = ttmp7 & 0xFFFF
			coords[2] = ttmp7 >> 16
		}
		return coords, true, nil
	}

	for k, r := range []regs.Regnum{regs.TTMP8, regs.TTMP9, regs.TTMP10} {
		coords[k], err = regs.ReadUint32(w.file, r)
		if err != nil {
			return coords, false, err
		}
	}
	return coords, true, nil
}

// PositionInGroup returns the wave's index within its workgroup. ok is
// false when the trap temporaries were not set up.
func (w *Wave) PositionInGroup() (pos uint32, ok bool, err error) {
	setup, err := w.SPITtmpsSetup()
	if err != nil || !setup {
		return 0, false, err
	}

	if w.arch.Gen == regs.Gen12 {
		ttmp8, err := regs.ReadUint32(w.file, regs.TTMP8)
		pos = ttmp8 & regs.TTMP8WaveInGroupMask >> regs.TTMP8WaveInGroupShift
		return pos, err == nil, err
	}

	ttmp11, err := regs.ReadUint32(w.file, regs.TTMP11)
	return ttmp11 & regs.TTMP11WaveInGroupMask, err == nil, err
}

// WaveID returns the debugger-assigned wave identifier stored in the trap
// temporaries. ok is false when the identifier was never written.
func (w *Wave) WaveID() (id uint64, ok bool, err error) {
	if w.arch.TrapHandlerOwnsTtmps {
		init, err := w.TrapHandlerTtmpsInitialized()
		if err != nil || !init {
			return 0, false, err
		}
	}
	lo, err := regs.ReadUint32(w.file, regs.TTMP4)
	if err != nil {
		return 0, false, err
	}
	hi, err := regs.ReadUint32(w.file, regs.TTMP5)
	if err != nil {
		return 0, false, err
	}
	return uint64(hi)<<32 | uint64(lo), true, nil
}

// SetWaveID stores the debugger-assigned wave identifier in ttmp4 and
// ttmp5.
func (w *Wave) SetWaveID(id uint64) error {
	if err := regs.WriteUint32(w.file, regs.TTMP4, uint32(id)); err != nil {
		return err
	}
	return regs.WriteUint32(w.file, regs.TTMP5, uint32(id>>32))
}

// ScratchMemoryRegion computes the wave's slice of the queue's scratch
// backing, logging hardware configurations with unusable scratch.
func (w *Wave) ScratchMemoryRegion(tmpringSize, seCount, seID, scoreboardID uint32) (offset, size uint64) {
	offset, size, advisory := w.arch.ScratchMemoryRegion(tmpringSize,
		seCount, seID, scoreboardID)
	if advisory != "" {
		w.log.Info(advisory)
	}
	return offset, size
}
