package wave

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/wavedbg/regs"
)

// Wave implements regs.File over its underlying register container,
// adding the pseudo registers and enforcing read-only bits on writes.

// execBase returns the hardware register backing the exec pseudo halves.
func (w *Wave) execBase() (regs.Regnum, bool) {
	if w.lanes == 32 {
		return regs.Exec32, false
	}
	return regs.Exec64, true
}

func (w *Wave) vccBase() (regs.Regnum, bool) {
	if w.lanes == 32 {
		return regs.Vcc32, false
	}
	return regs.Vcc64, true
}

// PseudoExists reports whether the pseudo register r is available on this
// wave.
func (w *Wave) PseudoExists(r regs.Regnum) bool {
	switch r {
	case regs.PseudoStatus, regs.PseudoExecLo, regs.PseudoVccLo,
		regs.WaveID, regs.Null:
		return true
	case regs.PseudoStatePriv:
		return w.arch.Gen == regs.Gen12
	case regs.PseudoExecHi, regs.PseudoVccHi:
		return w.lanes == 64
	case regs.CSP:
		return w.arch.Gen == regs.Gen9
	}
	return false
}

// ReadRegister reads r, synthesizing pseudo registers from their backing
// state.
func (w *Wave) ReadRegister(r regs.Regnum, buf []byte) error {
	if !r.IsPseudo() {
		return w.file.ReadRegister(r, buf)
	}
	if !w.PseudoExists(r) {
		return fmt.Errorf("%w: %s", regs.ErrInvalidRegister, r)
	}

	put32 := func(v uint32) error {
		if len(buf) != 4 {
			return fmt.Errorf("%w: %s is 4 bytes", regs.ErrInvalidRegister, r)
		}
		binary.LittleEndian.PutUint32(buf, v)
		return nil
	}

	switch r {
	case regs.Null:
		for i := range buf {
			buf[i] = 0
		}
		return nil

	case regs.PseudoExecLo, regs.PseudoExecHi:
		base, wide := w.execBase()
		return w.readHalf(base, wide, r == regs.PseudoExecHi, put32)

	case regs.PseudoVccLo, regs.PseudoVccHi:
		base, wide := w.vccBase()
		return w.readHalf(base, wide, r == regs.PseudoVccHi, put32)

	case regs.PseudoStatus:
		v, err := w.pseudoStatus()
		if err != nil {
			return err
		}
		return put32(v)

	case regs.PseudoStatePriv:
		v, err := w.pseudoStatePriv()
		if err != nil {
			return err
		}
		return put32(v)

	case regs.CSP:
		csp, err := w.csp()
		if err != nil {
			return err
		}
		return put32(csp)

	case regs.WaveID:
		if len(buf) != 8 {
			return fmt.Errorf("%w: %s is 8 bytes", regs.ErrInvalidRegister, r)
		}
		lo, err := regs.ReadUint32(w.file, regs.TTMP4)
		if err != nil {
			return err
		}
		hi, err := regs.ReadUint32(w.file, regs.TTMP5)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(buf, uint64(hi)<<32|uint64(lo))
		return nil
	}

	return fmt.Errorf("%w: %s", regs.ErrInvalidRegister, r)
}

func (w *Wave) readHalf(base regs.Regnum, wide, hi bool, put func(uint32) error) error {
	if !wide {
		v, err := regs.ReadUint32(w.file, base)
		if err != nil {
			return err
		}
		return put(v)
	}
	v, err := regs.ReadUint64(w.file, base)
	if err != nil {
		return err
	}
	if hi {
		v >>= 32
	}
	return put(uint32(v))
}

// pseudoStatus composes the status value shown to clients: the privilege
// bit is hidden, and while the wave is stopped the halt bit reflects the
// saved copy in ttmp6 rather than the stop-enforcing hardware bit.
func (w *Wave) pseudoStatus() (uint32, error) {
	status, err := regs.ReadUint32(w.file, regs.Status)
	if err != nil {
		return 0, err
	}
	if w.arch.Gen == regs.Gen12 {
		return status &^ regs.StatusPriv, nil
	}

	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return 0, err
	}
	status &^= regs.StatusPriv | regs.StatusHalt | regs.StatusSkipExport
	if ttmp6&regs.TTMP6SavedStatusHalt != 0 {
		status |= regs.StatusHalt
	}
	return status, nil
}

func (w *Wave) pseudoStatePriv() (uint32, error) {
	statePriv, err := regs.ReadUint32(w.file, regs.StatePriv)
	if err != nil {
		return 0, err
	}
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return 0, err
	}
	statePriv &^= regs.StatePrivHalt
	if ttmp6&regs.TTMP6SavedStatusHalt != 0 {
		statePriv |= regs.StatePrivHalt
	}
	return statePriv, nil
}

// WriteRegister writes r, keeping read-only bits at their current value
// and propagating pseudo register writes to their backing state.
func (w *Wave) WriteRegister(r regs.Regnum, buf []byte) error {
	if r.IsPseudo() {
		return w.writePseudo(r, buf)
	}

	mask := w.arch.Layout.ReadOnlyMask(r)
	if mask == 0 {
		return w.file.WriteRegister(r, buf)
	}

	switch len(buf) {
	case 4:
		old, err := regs.ReadUint32(w.file, r)
		if err != nil {
			return err
		}
		v := binary.LittleEndian.Uint32(buf)
		v = v&^uint32(mask) | old&uint32(mask)
		return regs.WriteUint32(w.file, r, v)
	case 8:
		old, err := regs.ReadUint64(w.file, r)
		if err != nil {
			return err
		}
		v := binary.LittleEndian.Uint64(buf)
		v = v&^mask | old&mask
		return regs.WriteUint64(w.file, r, v)
	}
	return w.file.WriteRegister(r, buf)
}

func (w *Wave) writePseudo(r regs.Regnum, buf []byte) error {
	if !w.PseudoExists(r) {
		return fmt.Errorf("%w: %s", regs.ErrInvalidRegister, r)
	}

	get32 := func() (uint32, error) {
		if len(buf) != 4 {
			return 0, fmt.Errorf("%w: %s is 4 bytes",
				regs.ErrInvalidRegister, r)
		}
		return binary.LittleEndian.Uint32(buf), nil
	}

	switch r {
	case regs.Null:
		return nil

	case regs.PseudoExecLo, regs.PseudoExecHi:
		v, err := get32()
		if err != nil {
			return err
		}
		base, wide := w.execBase()
		return w.writeHalf(base, wide, r == regs.PseudoExecHi, v,
			regs.StatusExecZ)

	case regs.PseudoVccLo, regs.PseudoVccHi:
		v, err := get32()
		if err != nil {
			return err
		}
		base, wide := w.vccBase()
		return w.writeHalf(base, wide, r == regs.PseudoVccHi, v,
			regs.StatusVccZ)

	case regs.PseudoStatus:
		v, err := get32()
		if err != nil {
			return err
		}
		return w.writePseudoStatus(v)

	case regs.PseudoStatePriv:
		v, err := get32()
		if err != nil {
			return err
		}
		return w.writePseudoStatePriv(v)

	case regs.CSP:
		v, err := get32()
		if err != nil {
			return err
		}
		return w.setCSP(v)

	case regs.WaveID:
		if len(buf) != 8 {
			return fmt.Errorf("%w: %s is 8 bytes",
				regs.ErrInvalidRegister, r)
		}
		return w.SetWaveID(binary.LittleEndian.Uint64(buf))
	}

	return fmt.Errorf("%w: %s", regs.ErrInvalidRegister, r)
}

// writeHalf updates one half of a mask register, then refreshes the zero
// flag the hardware keeps in status for it.
func (w *Wave) writeHalf(base regs.Regnum, wide, hi bool, v uint32, zeroBit uint32) error {
	var full uint64
	if !wide {
		full = uint64(v)
		if err := regs.WriteUint32(w.file, base, v); err != nil {
			return err
		}
	} else {
		old, err := regs.ReadUint64(w.file, base)
		if err != nil {
			return err
		}
		if hi {
			full = old&0x00000000FFFFFFFF | uint64(v)<<32
		} else {
			full = old&0xFFFFFFFF00000000 | uint64(v)
		}
		if err := regs.WriteUint64(w.file, base, full); err != nil {
			return err
		}
	}

	status, err := regs.ReadUint32(w.file, regs.Status)
	if err != nil {
		return err
	}
	status &^= zeroBit
	if full == 0 {
		status |= zeroBit
	}
	return regs.WriteUint32(w.file, regs.Status, status)
}

// writePseudoStatus stores a composed status value. Read-only bits keep
// their hardware value; before gfx12 the halt bit lands in the saved copy
// in ttmp6 so resuming the wave restores it.
func (w *Wave) writePseudoStatus(v uint32) error {
	status, err := regs.ReadUint32(w.file, regs.Status)
	if err != nil {
		return err
	}
	mask := uint32(w.arch.Layout.ReadOnlyMask(regs.PseudoStatus))
	v = v&^mask | status&mask

	if w.arch.Gen == regs.Gen12 {
		return regs.WriteUint32(w.file, regs.Status, v)
	}

	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}
	ttmp6 &^= regs.TTMP6SavedStatusHalt
	if v&regs.StatusHalt != 0 {
		ttmp6 |= regs.TTMP6SavedStatusHalt
	}
	if err := regs.WriteUint32(w.file, regs.Status, v); err != nil {
		return err
	}
	return regs.WriteUint32(w.file, regs.TTMP6, ttmp6)
}

func (w *Wave) writePseudoStatePriv(v uint32) error {
	statePriv, err := regs.ReadUint32(w.file, regs.StatePriv)
	if err != nil {
		return err
	}
	mask := uint32(w.arch.Layout.ReadOnlyMask(regs.PseudoStatePriv))
	v = v&^mask | statePriv&mask

	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}
	ttmp6 &^= regs.TTMP6SavedStatusHalt
	if v&regs.StatePrivHalt != 0 {
		ttmp6 |= regs.TTMP6SavedStatusHalt
	}
	if err := regs.WriteUint32(w.file, regs.StatePriv, v); err != nil {
		return err
	}
	return regs.WriteUint32(w.file, regs.TTMP6, ttmp6)
}
