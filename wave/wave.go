// Package wave models one wavefront under debugger control: the run state
// protocol the trap handler keeps in the ttmp registers, the exception
// decoding that turns hardware flags into stop reasons, and the software
// simulation of control flow instructions and of the trap handler itself.
package wave

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/wavedbg/arch"
	"github.com/sarchlab/wavedbg/regs"
)

var (
	// ErrCannotSimulate reports an instruction the simulator does not
	// model.
	ErrCannotSimulate = errors.New("cannot simulate instruction")
	// ErrOutOfBounds reports hardware state pointing outside the region
	// it must lie in, such as a dispatch packet index past the queue end.
	ErrOutOfBounds = errors.New("out of bounds")
)

// Memory provides access to the process address space the wave executes in.
type Memory interface {
	ReadGlobal(addr uint64, buf []byte) error
	WriteGlobal(addr uint64, data []byte) error
}

// Wave is one wavefront. Its registers live in a regs.File, usually a
// context save record; the Wave itself only caches the debugger-visible
// run state between context saves.
type Wave struct {
	arch *arch.Architecture
	file regs.File
	mem  Memory
	log  logr.Logger

	lanes      int
	abiVersion int

	// ttmpsAlwaysInitialized is set when the platform guarantees that SPI
	// initializes the ttmps of every wave, making the skip_export marker
	// workaround unnecessary.
	ttmpsAlwaysInitialized bool

	// parkAddr is the queue's parking instruction, a self branch inside
	// the trap handler.
	parkAddr uint64

	// Dispatch queue geometry, for locating dispatch packets.
	queueAddr   uint64
	queueSize   uint64
	packetSize  uint64
	spiTtmpsSet bool

	state         State
	stopReason    StopReason
	lastStoppedPC uint64
	terminated    bool
}

// Option configures a Wave.
type Option func(*Wave)

// WithMemory provides the process address space, required for instruction
// reads and dispatch packet lookups.
func WithMemory(mem Memory) Option {
	return func(w *Wave) { w.mem = mem }
}

// WithLogger routes advisory warnings. The default discards them.
func WithLogger(log logr.Logger) Option {
	return func(w *Wave) { w.log = log }
}

// WithLaneCount sets the wavefront size. The default is the smallest size
// the architecture supports.
func WithLaneCount(lanes int) Option {
	return func(w *Wave) { w.lanes = lanes }
}

// WithABIVersion sets the runtime's trap handler ABI version, which decides
// the parking policy and the ttmp6 setup marker.
func WithABIVersion(v int) Option {
	return func(w *Wave) { w.abiVersion = v }
}

// WithTTMPsAlwaysInitialized marks platforms where SPI sets up the ttmps of
// every wave.
func WithTTMPsAlwaysInitialized() Option {
	return func(w *Wave) { w.ttmpsAlwaysInitialized = true }
}

// WithParkAddress sets the queue's parking instruction address.
func WithParkAddress(addr uint64) Option {
	return func(w *Wave) { w.parkAddr = addr }
}

// WithQueue describes the dispatch queue the wave was launched from.
func WithQueue(addr, size, packetSize uint64) Option {
	return func(w *Wave) {
		w.queueAddr, w.queueSize, w.packetSize = addr, size, packetSize
	}
}

// WithSPITtmpsSetup marks the wave's ttmps as carrying valid dispatch
// information.
func WithSPITtmpsSetup() Option {
	return func(w *Wave) { w.spiTtmpsSet = true }
}

// New returns a wave whose registers are stored in file.
func New(a *arch.Architecture, file regs.File, opts ...Option) *Wave {
	w := &Wave{
		arch:  a,
		file:  file,
		log:   logr.Discard(),
		lanes: a.Layout.LaneCounts[0],
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Architecture returns the wave's architecture descriptor.
func (w *Wave) Architecture() *arch.Architecture { return w.arch }

// LaneCount returns the number of work items in the wave.
func (w *Wave) LaneCount() int { return w.lanes }

// Terminated reports whether a simulated s_endpgm ended the wave.
func (w *Wave) Terminated() bool { return w.terminated }

// PC returns the program counter.
func (w *Wave) PC() (uint64, error) {
	return regs.ReadUint64(w.file, regs.PC)
}

func (w *Wave) setPC(pc uint64) error {
	return regs.WriteUint64(w.file, regs.PC, pc)
}

// execReg returns the exec mask register for the wave's lane count.
func (w *Wave) execReg() regs.Regnum {
	if w.lanes == 32 {
		return regs.Exec32
	}
	return regs.Exec64
}

// haltReg returns the register and bit holding the wave's halt flag.
func (w *Wave) haltReg() (regs.Regnum, uint32) {
	if w.arch.Gen == regs.Gen12 {
		return regs.StatePriv, regs.StatePrivHalt
	}
	return regs.Status, regs.StatusHalt
}

// sccReg returns the register and bit holding the scalar condition code.
func (w *Wave) sccReg() (regs.Regnum, uint32) {
	if w.arch.Gen == regs.Gen12 {
		return regs.StatePriv, regs.StatePrivSCC
	}
	return regs.Status, regs.StatusSCC
}

// readOperand32 reads a 32 bit scalar operand. Trap temporaries are
// readable; the simulation runs with trap handler privilege.
func (w *Wave) readOperand32(op int) (uint32, error) {
	o, ok := w.arch.ScalarOperand(op, w.lanes, true)
	if !ok {
		return 0, fmt.Errorf("%w: scalar operand %d", ErrCannotSimulate, op)
	}
	return w.readOperand(o)
}

// writeOperand32 writes a 32 bit scalar operand.
func (w *Wave) writeOperand32(op int, v uint32) error {
	o, ok := w.arch.ScalarOperand(op, w.lanes, true)
	if !ok {
		return fmt.Errorf("%w: scalar operand %d", ErrCannotSimulate, op)
	}
	return w.writeOperand(o, v)
}

func (w *Wave) readOperand(o arch.Operand) (uint32, error) {
	if o.Reg == regs.Null {
		return 0, nil
	}
	if size, _ := w.arch.Layout.Size(o.Reg); size == 8 {
		v, err := regs.ReadUint64(w.file, o.Reg)
		if o.Hi {
			v >>= 32
		}
		return uint32(v), err
	}
	return regs.ReadUint32(w.file, o.Reg)
}

func (w *Wave) writeOperand(o arch.Operand, v uint32) error {
	if o.Reg == regs.Null {
		return nil
	}
	if size, _ := w.arch.Layout.Size(o.Reg); size == 8 {
		old, err := regs.ReadUint64(w.file, o.Reg)
		if err != nil {
			return err
		}
		if o.Hi {
			old = old&0x00000000FFFFFFFF | uint64(v)<<32
		} else {
			old = old&0xFFFFFFFF00000000 | uint64(v)
		}
		return regs.WriteUint64(w.file, o.Reg, old)
	}
	return regs.WriteUint32(w.file, o.Reg, v)
}

// readOperandPair64 reads the 64 bit value held in the even aligned operand
// pair starting at op.
func (w *Wave) readOperandPair64(op int) (uint64, error) {
	lo, err := w.readOperand32(op)
	if err != nil {
		return 0, err
	}
	hi, err := w.readOperand32(op + 1)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// writeOperandPair64 stores a 64 bit value into the operand pair at op.
func (w *Wave) writeOperandPair64(op int, v uint64) error {
	lov, hiv := uint32(v), uint32(v>>32)
	lo, ok := w.arch.ScalarOperand(op, w.lanes, true)
	if !ok {
		return fmt.Errorf("%w: scalar operand %d", ErrCannotSimulate, op)
	}
	hi, ok := w.arch.ScalarOperand(op+1, w.lanes, true)
	if !ok {
		return fmt.Errorf("%w: scalar operand %d", ErrCannotSimulate, op+1)
	}
	if err := w.writeOperand(lo, lov); err != nil {
		return err
	}
	return w.writeOperand(hi, hiv)
}

// Halted returns the wave's halt flag. While the wave is stopped the
// original flag is saved in ttmp6, and the hardware flag keeps the wave
// from running.
func (w *Wave) Halted() (bool, error) {
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return false, err
	}
	if ttmp6&regs.TTMP6WaveStopped != 0 {
		return ttmp6&regs.TTMP6SavedStatusHalt != 0, nil
	}
	reg, mask := w.haltReg()
	v, err := regs.ReadUint32(w.file, reg)
	return v&mask != 0, err
}

// SetHalted sets or clears the wave's halt flag, routing through the saved
// copy in ttmp6 while the wave is stopped.
func (w *Wave) SetHalted(halt bool) error {
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}
	if ttmp6&regs.TTMP6WaveStopped != 0 {
		if halt {
			ttmp6 |= regs.TTMP6SavedStatusHalt
		} else {
			ttmp6 &^= regs.TTMP6SavedStatusHalt
		}
		return regs.WriteUint32(w.file, regs.TTMP6, ttmp6)
	}

	reg, mask := w.haltReg()
	v, err := regs.ReadUint32(w.file, reg)
	if err != nil {
		return err
	}
	if halt {
		v |= mask
	} else {
		v &^= mask
	}
	return regs.WriteUint32(w.file, reg, v)
}
