package cwsr

import (
	"fmt"

	"github.com/sarchlab/wavedbg/regs"
)

// Record is one wave's parsed save area. It implements regs.File over the
// image's backing memory.
type Record struct {
	f     *Format
	mem   BackingStore
	end   uint64
	wave  uint32
	state [2]uint32

	lanes       int
	vgprCount   int
	accCount    int
	sgprCount   int
	sharedCount int
	ldsSize     uint64
}

// NewRecord parses a relaunch descriptor into a Record whose save area ends
// at end. state carries the latched relaunch state words, one for gfx9 and
// two for gfx10 and later.
func (f *Format) NewRecord(mem BackingStore, wave uint32, state []uint32,
	end uint64) (*Record, error) {
	if len(state) < f.StateWords {
		return nil, fmt.Errorf("%w: %d relaunch state words, need %d",
			ErrCorruptedStack, len(state), f.StateWords)
	}

	r := &Record{f: f, mem: mem, end: end, wave: wave}
	copy(r.state[:], state)

	r.lanes = 64
	if f.W32Bit != nil && Bit(r.state[0], *f.W32Bit) {
		r.lanes = 32
	}

	// Vector registers are allocated in blocks of 4 (wave64) or 8 (wave32).
	blocks := int(f.VGPRField.Extract(r.state[0])) + 1
	switch {
	case f.AccumOffsetField != nil:
		arch := int(f.AccumOffsetField.Extract(r.state[0])) + 1
		r.vgprCount = arch * 4
		r.accCount = blocks*8 - r.vgprCount
	case f.AccSameAsVGPR:
		r.vgprCount = blocks * 4
		r.accCount = r.vgprCount
	case r.lanes == 32:
		r.vgprCount = blocks * 8
	default:
		r.vgprCount = blocks * 4
	}

	if f.SGPRFixed != 0 {
		r.sgprCount = f.SGPRFixed
	} else {
		// Scalars come in blocks of 16. The ttmps are saved in their own
		// area, so one block's worth is removed from the count.
		r.sgprCount = (int(f.SGPRField.Extract(r.state[0]))+1)*16 - 16
	}

	if f.SharedVGPRField != nil {
		r.sharedCount = int(f.SharedVGPRField.Extract(r.state[0])) * 8
	}

	r.ldsSize = uint64(f.LDSField.Extract(r.state[0])) * 128 * 4

	return r, nil
}

// Format returns the format the record was parsed with.
func (r *Record) Format() *Format { return r.f }

// ScoreboardID returns the wave's scratch scoreboard slot.
func (r *Record) ScoreboardID() uint32 { return r.f.Scoreboard.Extract(r.wave) }

// SEID returns the shader engine the wave was created on.
func (r *Record) SEID() uint32 { return r.f.SEID.Extract(r.wave) }

// ScratchEnabled reports whether the wave has a scratch slot allocated.
func (r *Record) ScratchEnabled() bool { return Bit(r.wave, r.f.ScratchEnBit) }

// IsFirstWave reports the first wave of a threadgroup; only that record's
// save area holds the group's LDS.
func (r *Record) IsFirstWave() bool { return Bit(r.wave, r.f.FirstWaveBit) }

// IsLastWave reports the last wave of a threadgroup.
func (r *Record) IsLastWave() bool { return Bit(r.wave, r.f.LastWaveBit) }

// LaneCount returns the number of work items in the wave.
func (r *Record) LaneCount() int { return r.lanes }

// VGPRCount returns the number of architected vector registers saved.
func (r *Record) VGPRCount() int { return r.vgprCount }

// AccVGPRCount returns the number of accumulation registers saved.
func (r *Record) AccVGPRCount() int { return r.accCount }

// SGPRCount returns the number of scalar registers saved.
func (r *Record) SGPRCount() int { return r.sgprCount }

// LDSSize returns the threadgroup's LDS allocation in bytes.
func (r *Record) LDSSize() uint64 { return r.ldsSize }

// End returns the address one past the save area.
func (r *Record) End() uint64 { return r.end }

// Begin returns the lowest address of the save area, the first vector
// register's slot.
func (r *Record) Begin() uint64 {
	return r.vgprsBase()
}

// LDSAddress returns the address of the saved LDS content.
func (r *Record) LDSAddress() (uint64, error) {
	if !r.IsFirstWave() {
		return 0, fmt.Errorf("%w: lds", ErrNotSaved)
	}
	return r.end - r.ldsSize, nil
}

func (r *Record) ttmpsBase() uint64 {
	addr := r.end
	if r.IsFirstWave() {
		addr -= r.ldsSize
	}
	return addr - 16*4
}

func (r *Record) hwregsBase() uint64 { return r.ttmpsBase() - 16*4 }

func (r *Record) sgprsBase() uint64 {
	return r.hwregsBase() - uint64(r.sgprCount)*4
}

func (r *Record) vgprsBase() uint64 {
	base := r.sgprsBase()
	if r.f.Gen == regs.Gen9 {
		base -= uint64(r.accCount) * 64 * 4
		return base - uint64(r.vgprCount)*64*4
	}
	base -= uint64(r.sharedCount) * 32 * 4
	return base - uint64(r.vgprCount)*uint64(r.lanes)*4
}

// aliasedEnd returns one past the last sgpr index reachable by scalar
// operands, clamped to the allocation.
func (r *Record) aliasedEnd() int {
	n := r.f.ScalarCount + r.f.AliasCount
	if n > r.sgprCount {
		n = r.sgprCount
	}
	return n
}

// hwregSlot maps a register to its word slot in the hwreg block.
func (r *Record) hwregSlot(rn regs.Regnum) (int, bool) {
	switch rn {
	case regs.M0:
		return 0, true
	case regs.PC:
		return 1, true
	case regs.Exec64:
		return 3, r.lanes == 64
	case regs.Exec32:
		return 3, r.f.Gen != regs.Gen9 && r.lanes == 32
	}

	switch r.f.Gen {
	case regs.Gen9:
		switch rn {
		case regs.Status:
			return 5, true
		case regs.TrapSts:
			return 6, true
		case regs.XnackMask64:
			return 7, true
		case regs.Mode:
			return 9, true
		}

	case regs.Gen10, regs.Gen11:
		switch rn {
		case regs.Status:
			return 5, true
		case regs.TrapSts:
			return 6, true
		case regs.XnackMask32:
			return 7, r.lanes == 32
		case regs.Mode:
			return 8, true
		case regs.FlatScratch:
			return 9, true
		}

	case regs.Gen12:
		switch rn {
		case regs.StatePriv:
			return 5, true
		case regs.ExcpFlagPriv:
			return 6, true
		case regs.Mode:
			return 8, true
		case regs.FlatScratch:
			return 9, true
		case regs.ExcpFlagUser:
			return 11, true
		case regs.TrapCtrl:
			return 12, true
		case regs.Status:
			return 13, true
		}
	}
	return 0, false
}

// RegisterAddress returns the address of rn's saved value inside the image.
func (r *Record) RegisterAddress(rn regs.Regnum) (uint64, error) {
	if rn.IsTTMP() {
		return r.ttmpsBase() + uint64(rn.Index())*4, nil
	}
	if slot, ok := r.hwregSlot(rn); ok {
		return r.hwregsBase() + uint64(slot)*4, nil
	}

	aliasedEnd := r.aliasedEnd()

	// Registers that alias the top of the sgpr allocation.
	sgpr := -1
	switch rn {
	case regs.Vcc64:
		if r.lanes == 64 {
			sgpr = aliasedEnd - 2
		}
	case regs.Vcc32:
		if r.f.Gen != regs.Gen9 && r.lanes == 32 {
			sgpr = aliasedEnd - 2
		}
	case regs.FlatScratch:
		if !r.f.HasArchFlatScratch {
			sgpr = aliasedEnd - 6
		}
	default:
		if rn.IsSGPR() {
			i := rn.Index()
			if i >= aliasedEnd-r.f.AliasCount && i < aliasedEnd {
				return 0, fmt.Errorf(
					"%w: %s aliases a named scalar", ErrNotSaved, rn)
			}
			if i < aliasedEnd {
				sgpr = i
			}
		}
	}
	if sgpr >= 0 {
		return r.sgprsBase() + uint64(sgpr)*4, nil
	}

	if addr, ok := r.vectorAddress(rn); ok {
		return addr, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrNotSaved, rn)
}

func (r *Record) vectorAddress(rn regs.Regnum) (uint64, bool) {
	switch {
	case rn.IsVGPR64() && r.lanes == 64:
		if i := rn.Index(); i < r.vgprCount {
			return r.vgprsBase() + uint64(i)*uint64(r.lanes)*4, true
		}

	case rn.IsVGPR32() && r.f.Gen != regs.Gen9:
		i := rn.Index()
		// Shared vgprs are addressed right after the private ones.
		if i >= r.vgprCount && i < r.vgprCount+r.sharedCount {
			shared := r.sgprsBase() - uint64(r.sharedCount)*32*4
			return shared + uint64(i-r.vgprCount)*32*4, true
		}
		if r.lanes == 32 && i < r.vgprCount {
			return r.vgprsBase() + uint64(i)*32*4, true
		}

	case rn.IsAccVGPR() && r.f.Gen == regs.Gen9:
		if i := rn.Index(); i < r.accCount {
			acc := r.sgprsBase() - uint64(r.accCount)*64*4
			return acc + uint64(i)*64*4, true
		}
	}
	return 0, false
}

// registerSize returns the byte size of rn as stored in the image.
func (r *Record) registerSize(rn regs.Regnum) int {
	switch {
	case rn.IsVGPR32():
		return 32 * 4
	case rn.IsVGPR64(), rn.IsAccVGPR():
		return 64 * 4
	}
	switch rn {
	case regs.PC, regs.Exec64, regs.Vcc64, regs.XnackMask64, regs.FlatScratch:
		return 8
	}
	return 4
}

// ReadRegister implements regs.File.
func (r *Record) ReadRegister(rn regs.Regnum, buf []byte) error {
	addr, err := r.RegisterAddress(rn)
	if err != nil {
		return err
	}
	size := r.registerSize(rn)
	if len(buf) != size {
		return fmt.Errorf("%w: %s is %d bytes, got %d",
			regs.ErrInvalidRegister, rn, size, len(buf))
	}
	copy(buf, r.mem.Read(addr, size))
	return nil
}

// WriteRegister implements regs.File.
func (r *Record) WriteRegister(rn regs.Regnum, buf []byte) error {
	addr, err := r.RegisterAddress(rn)
	if err != nil {
		return err
	}
	size := r.registerSize(rn)
	if len(buf) != size {
		return fmt.Errorf("%w: %s is %d bytes, got %d",
			regs.ErrInvalidRegister, rn, size, len(buf))
	}
	r.mem.Write(addr, buf)
	return nil
}
