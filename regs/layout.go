package regs

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRegister reports a register number the generation does not
	// have, or that the backing store cannot address.
	ErrInvalidRegister = errors.New("invalid register")
)

// Generation selects the register file shape.
type Generation int

const (
	Gen9 Generation = iota + 9
	Gen10
	Gen11
	Gen12
)

// Layout describes the register file of one hardware generation: which
// registers exist, their sizes, names, types, and read-only bits. Layouts
// are plain data; the tables live in the arch package.
type Layout struct {
	Gen Generation

	// ScalarCount is the number of sgprs reachable through scalar
	// instruction operands. AliasCount sgprs at the end of a wave's
	// allocation shadow vcc (and flat_scratch/xnack on gfx9).
	ScalarCount int
	AliasCount  int

	// LaneCounts lists the wavefront sizes the generation supports.
	LaneCounts []int

	HasAccVGPRs        bool
	HasArchFlatScratch bool
	HasXnackMask       bool

	// ReadOnly maps a register to its read-only bit mask. Writes preserve
	// those bits. A mask of all ones makes the register read-only.
	ReadOnly map[Regnum]uint64
}

// Exists reports whether r is part of this generation's register file.
func (l *Layout) Exists(r Regnum) bool {
	switch {
	case r.IsSGPR():
		return true
	case r.IsVGPR32():
		return l.hasLanes(32)
	case r.IsVGPR64():
		return l.hasLanes(64)
	case r.IsAccVGPR():
		return l.HasAccVGPRs
	case r.IsTTMP():
		return true
	}

	switch r {
	case M0, PC:
		return true
	case Exec32, Vcc32:
		return l.hasLanes(32)
	case Exec64, Vcc64:
		return l.hasLanes(64)
	case XnackMask32:
		return l.hasLanes(32) && l.HasXnackMask
	case XnackMask64:
		return l.hasLanes(64) && l.Gen == Gen9 && l.HasXnackMask
	case Status, Mode, FlatScratch:
		return true
	case TrapSts:
		return l.Gen != Gen12
	case StatePriv, ExcpFlagPriv, ExcpFlagUser, TrapCtrl:
		return l.Gen == Gen12
	case PseudoStatus, PseudoExecLo, PseudoExecHi, PseudoVccLo, PseudoVccHi,
		Null, WaveID:
		return true
	case PseudoStatePriv:
		return l.Gen == Gen12
	case CSP:
		return l.Gen == Gen9
	}
	return false
}

func (l *Layout) hasLanes(n int) bool {
	for _, c := range l.LaneCounts {
		if c == n {
			return true
		}
	}
	return false
}

// Size returns the byte size of r.
func (l *Layout) Size(r Regnum) (int, error) {
	if !l.Exists(r) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRegister, r)
	}
	switch {
	case r.IsVGPR32():
		return 32 * 4, nil
	case r.IsVGPR64(), r.IsAccVGPR():
		return 64 * 4, nil
	}
	switch r {
	case PC, Exec64, Vcc64, XnackMask64, FlatScratch:
		return 8, nil
	}
	return 4, nil
}

// Name returns the display name of r.
func (l *Layout) Name(r Regnum) (string, error) {
	if !l.Exists(r) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRegister, r)
	}
	return r.String(), nil
}

// Type returns the C type string exposed for r.
func (l *Layout) Type(r Regnum) (string, error) {
	if !l.Exists(r) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRegister, r)
	}
	switch {
	case r.IsVGPR32():
		return "int32_t[32]", nil
	case r.IsVGPR64(), r.IsAccVGPR():
		return "int32_t[64]", nil
	case r.IsSGPR():
		return "int32_t", nil
	}
	switch r {
	case PC:
		return "void (*)()", nil
	case Exec64, Vcc64, XnackMask64, FlatScratch:
		return "uint64_t", nil
	}
	return "uint32_t", nil
}

// ReadOnlyMask returns the read-only bits of r. Registers absent from the
// table are fully writable.
func (l *Layout) ReadOnlyMask(r Regnum) uint64 {
	return l.ReadOnly[r]
}

// File is the read/write surface of a register container: a parsed context
// save record, a cached view of one, or a test fixture.
type File interface {
	// ReadRegister fills buf with the current value of r. buf must have
	// the register's full size.
	ReadRegister(r Regnum, buf []byte) error
	// WriteRegister stores buf into r.
	WriteRegister(r Regnum, buf []byte) error
}

// ReadUint32 reads a 4-byte register as a little-endian uint32.
func ReadUint32(f File, r Regnum) (uint32, error) {
	var buf [4]byte
	if err := f.ReadRegister(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads an 8-byte register as a little-endian uint64.
func ReadUint64(f File, r Regnum) (uint64, error) {
	var buf [8]byte
	if err := f.ReadRegister(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteUint32 stores v into a 4-byte register.
func WriteUint32(f File, r Regnum, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return f.WriteRegister(r, buf[:])
}

// WriteUint64 stores v into an 8-byte register.
func WriteUint64(f File, r Regnum, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return f.WriteRegister(r, buf[:])
}
