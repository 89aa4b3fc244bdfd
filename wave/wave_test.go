package wave_test

import (
	"encoding/binary"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wavedbg/arch"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
	"github.com/sarchlab/wavedbg/wave"
)

func TestWave(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Wave Suite")
}

// regFile is a map-backed register container.
type regFile map[regs.Regnum][]byte

func (f regFile) ReadRegister(r regs.Regnum, buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, f[r])
	return nil
}

func (f regFile) WriteRegister(r regs.Regnum, buf []byte) error {
	v := make([]byte, len(buf))
	copy(v, buf)
	f[r] = v
	return nil
}

func (f regFile) set32(r regs.Regnum, v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	f[r] = b
}

func (f regFile) set64(r regs.Regnum, v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	f[r] = b
}

func (f regFile) get32(r regs.Regnum) uint32 {
	b := make([]byte, 4)
	copy(b, f[r])
	return binary.LittleEndian.Uint32(b)
}

func (f regFile) get64(r regs.Regnum) uint64 {
	b := make([]byte, 8)
	copy(b, f[r])
	return binary.LittleEndian.Uint64(b)
}

// progMem is a sparse process address space.
type progMem map[uint64]byte

func (m progMem) ReadGlobal(addr uint64, buf []byte) error {
	for i := range buf {
		buf[i] = m[addr+uint64(i)]
	}
	return nil
}

func (m progMem) WriteGlobal(addr uint64, data []byte) error {
	for i, b := range data {
		m[addr+uint64(i)] = b
	}
	return nil
}

func (m progMem) load(addr uint64, ws ...uint32) {
	for _, w := range ws {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, w)
		_ = m.WriteGlobal(addr, b)
		addr += 4
	}
}

func chip(name string) *arch.Architecture {
	a, err := arch.NewRegistry().FindName(name)
	Expect(err).ToNot(HaveOccurred())
	return a
}

func sopp(op int, simm uint16) uint32 {
	return 0xBF800000 | uint32(op)<<16 | uint32(simm)
}

func sopk(op int, sdst uint8, simm uint16) uint32 {
	return 0xB0000000 | uint32(op)<<23 | uint32(sdst)<<16 | uint32(simm)
}

func sop1(op int, sdst, ssrc0 uint8) uint32 {
	return 0xBE800000 | uint32(sdst)<<16 | uint32(op)<<8 | uint32(ssrc0)
}

func inst(ops *insts.OpcodeSet, ws ...uint32) *insts.Instruction {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return insts.New(ops, b)
}

const parkAddr = 0xFFFF8000

var _ = Describe("state protocol", func() {
	var (
		f regFile
		w *wave.Wave
	)

	BeforeEach(func() {
		f = regFile{}
		f.set64(regs.PC, 0x1000)
		w = wave.New(chip("gfx900"), f, wave.WithParkAddress(parkAddr))
	})

	It("reports the requested state while the wave is running", func() {
		state, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(wave.StateRun))
		Expect(reason).To(Equal(wave.StopNone))
	})

	It("stop halts the wave and marks it stopped", func() {
		Expect(w.SetState(wave.StateStop)).To(Succeed())

		Expect(f.get32(regs.Status) & regs.StatusHalt).ToNot(BeZero())
		Expect(f.get32(regs.Status) & regs.StatusSkipExport).ToNot(BeZero())
		Expect(f.get32(regs.TTMP6) & regs.TTMP6WaveStopped).ToNot(BeZero())
		Expect(f.get32(regs.TTMP6) & regs.TTMP6SavedStatusHalt).To(BeZero())
	})

	It("saves and restores the halt flag across stop and resume", func() {
		f.set32(regs.Status, regs.StatusHalt)

		Expect(w.SetState(wave.StateStop)).To(Succeed())
		Expect(f.get32(regs.TTMP6) & regs.TTMP6SavedStatusHalt).ToNot(BeZero())

		Expect(w.SetState(wave.StateRun)).To(Succeed())
		Expect(f.get32(regs.Status) & regs.StatusHalt).ToNot(BeZero())
	})

	It("drops the halt flag on resume when the wave was not halted", func() {
		Expect(w.SetState(wave.StateStop)).To(Succeed())
		Expect(w.SetState(wave.StateRun)).To(Succeed())

		Expect(f.get32(regs.Status) & regs.StatusHalt).To(BeZero())
		Expect(f.get32(regs.TTMP6) & regs.TTMP6WaveStopped).To(BeZero())
	})

	It("arms the single-step trap while single-stepping", func() {
		Expect(w.SetState(wave.StateSingleStep)).To(Succeed())
		Expect(f.get32(regs.Mode) & regs.ModeDebugEn).ToNot(BeZero())

		Expect(w.SetState(wave.StateRun)).To(Succeed())
		Expect(f.get32(regs.Mode) & regs.ModeDebugEn).To(BeZero())
	})

	It("reports a breakpoint at the unparked pc", func() {
		Expect(w.SimulateTrapHandler(0x1000, wave.TrapIDBreakpoint)).To(Succeed())

		// The trap handler parked the wave away from the breakpoint.
		Expect(f.get64(regs.PC)).To(Equal(uint64(parkAddr)))

		state, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(wave.StateStop))
		Expect(reason).To(Equal(wave.StopBreakpoint))
		Expect(f.get64(regs.PC)).To(Equal(uint64(0x1000)))
	})

	It("keeps reporting the same stop until resumed", func() {
		Expect(w.SimulateTrapHandler(0x1000, wave.TrapIDBreakpoint)).To(Succeed())

		state1, reason1, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		state2, reason2, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state2).To(Equal(state1))
		Expect(reason2).To(Equal(reason1))
	})

	It("clears the stop reasons on resume", func() {
		Expect(w.SimulateTrapHandler(0x1000, wave.TrapIDDebug)).To(Succeed())

		_, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(reason).To(Equal(wave.StopDebugTrap))

		Expect(w.SetState(wave.StateRun)).To(Succeed())
		Expect(w.StopReason()).To(Equal(wave.StopNone))
		Expect(f.get32(regs.TTMP6) & regs.TTMP6WaveStopped).To(BeZero())
	})

	It("maps a memory violation to an address error", func() {
		f.set32(regs.TrapSts, regs.TrapStsExcpMemViol)
		Expect(w.SimulateTrapHandler(0x1000, 0)).To(Succeed())

		_, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(reason).To(Equal(wave.StopAddressError))
	})

	It("reports a translation error as a memory violation", func() {
		f.set32(regs.TrapSts, regs.TrapStsExcpMemViol|regs.TrapStsXnackError)
		Expect(w.SimulateTrapHandler(0x1000, 0)).To(Succeed())

		_, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(reason).To(Equal(wave.StopMemoryViolation))
	})

	It("reports unassigned trap ids as plain traps", func() {
		Expect(w.SimulateTrapHandler(0x1000, 9)).To(Succeed())

		_, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(reason).To(Equal(wave.StopTrap))
	})
})

var _ = Describe("single stepping", func() {
	var (
		f   regFile
		mem progMem
		w   *wave.Wave
	)

	ops := insts.GFX9Ops

	stopAt := func(pc uint64) {
		Expect(w.SimulateTrapHandler(pc, 0)).To(Succeed())
		_, _, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
	}

	BeforeEach(func() {
		f = regFile{}
		f.set64(regs.PC, 0x1000)
		mem = progMem{}
		mem.load(0x1000, sopp(0, 0))               // s_nop
		mem.load(0x2000, sopp(ops.Branch, 0xFFFF)) // branches to itself
		w = wave.New(chip("gfx900"), f,
			wave.WithMemory(mem), wave.WithParkAddress(parkAddr))
	})

	It("reports a completed step when the pc moved", func() {
		stopAt(0x1000)
		Expect(w.SetState(wave.StateSingleStep)).To(Succeed())

		Expect(w.SimulateTrapHandler(0x1004, 0)).To(Succeed())
		state, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(wave.StateStop))
		Expect(reason).To(Equal(wave.StopSingleStep))
	})

	It("re-arms a spurious stop before a sequential instruction", func() {
		stopAt(0x1000)
		Expect(w.SetState(wave.StateSingleStep)).To(Succeed())

		// The trap handler entered before the instruction retired.
		Expect(w.SimulateTrapHandler(0x1000, 0)).To(Succeed())
		state, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(wave.StateSingleStep))
		Expect(reason).To(Equal(wave.StopNone))
		Expect(f.get32(regs.Mode) & regs.ModeDebugEn).ToNot(BeZero())
		Expect(f.get32(regs.TTMP6) & regs.TTMP6WaveStopped).To(BeZero())
	})

	It("treats a branch landing on itself as a completed step", func() {
		f.set64(regs.PC, 0x2000)
		stopAt(0x2000)
		Expect(w.SetState(wave.StateSingleStep)).To(Succeed())

		Expect(w.SimulateTrapHandler(0x2000, 0)).To(Succeed())
		state, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(wave.StateStop))
		Expect(reason).To(Equal(wave.StopSingleStep))
	})
})

var _ = Describe("precise single stepping", func() {
	var (
		f   regFile
		mem progMem
		w   *wave.Wave
	)

	ops := insts.GFX9Ops

	BeforeEach(func() {
		f = regFile{}
		f.set64(regs.PC, 0x1000)
		mem = progMem{}
		mem.load(0x1000, sopp(ops.Branch, 2)) // to 0x100C
		w = wave.New(chip("gfx940"), f, wave.WithMemory(mem))
	})

	It("raises trap_after_inst for a simulated step", func() {
		Expect(w.SetState(wave.StateSingleStep)).To(Succeed())

		Expect(w.Simulate()).To(BeTrue())
		Expect(f.get64(regs.PC)).To(Equal(uint64(0x100C)))
		Expect(f.get32(regs.TrapSts) & regs.TrapStsTrapAfterInst).ToNot(BeZero())

		state, reason, err := w.GetState()
		Expect(err).ToNot(HaveOccurred())
		Expect(state).To(Equal(wave.StateStop))
		Expect(reason).To(Equal(wave.StopSingleStep))
	})

	It("leaves a halted wave untouched", func() {
		Expect(w.SetState(wave.StateSingleStep)).To(Succeed())
		f.set32(regs.Status, f.get32(regs.Status)|regs.StatusHalt)

		Expect(w.Simulate()).To(BeFalse())
		Expect(f.get64(regs.PC)).To(Equal(uint64(0x1000)))
	})
})

var _ = Describe("instruction simulation", func() {
	var (
		f regFile
		w *wave.Wave
	)

	ops := insts.GFX9Ops

	BeforeEach(func() {
		f = regFile{}
		f.set64(regs.PC, 0x1000)
		w = wave.New(chip("gfx900"), f)
	})

	It("takes a conditional branch when the condition holds", func() {
		f.set32(regs.Status, regs.StatusSCC)
		i := inst(ops, sopp(5, 4)) // s_cbranch_scc1

		pc, ok, err := w.SimulateInstruction(0x1000, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x1000 + 4 + 16)))
	})

	It("falls through an untaken conditional branch", func() {
		i := inst(ops, sopp(5, 4))

		pc, ok, err := w.SimulateInstruction(0x1000, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x1004)))
	})

	It("terminates the wave on endpgm", func() {
		i := inst(ops, sopp(ops.Endpgm, 0))

		_, ok, err := w.SimulateInstruction(0x1000, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(w.Terminated()).To(BeTrue())
	})

	It("jumps through a register pair on setpc", func() {
		f.set32(regs.SGPR(4), 0x5004)
		f.set32(regs.SGPR(5), 0x7F)
		i := inst(ops, sop1(ops.SetPC, 0, 4))

		pc, ok, err := w.SimulateInstruction(0x1000, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x7F00005004)))
	})

	It("stores the return address on call", func() {
		i := inst(ops, sopk(ops.Call, 2, 4))

		pc, ok, err := w.SimulateInstruction(0x1000, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x1000 + 4 + 16)))
		Expect(f.get32(regs.SGPR(2))).To(Equal(uint32(0x1004)))
		Expect(f.get32(regs.SGPR(3))).To(Equal(uint32(0)))
	})

	It("swaps the pc with a register pair", func() {
		f.set32(regs.SGPR(4), 0x6000)
		i := inst(ops, sop1(ops.SwapPC, 2, 4))

		pc, ok, err := w.SimulateInstruction(0x1000, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x6000)))
		Expect(f.get32(regs.SGPR(2))).To(Equal(uint32(0x1004)))
	})
})

var _ = Describe("fork and join", func() {
	var (
		f regFile
		w *wave.Wave
	)

	ops := insts.GFX9Ops

	BeforeEach(func() {
		f = regFile{}
		f.set64(regs.PC, 0x100)
		f.set64(regs.Exec64, 0xF)
		w = wave.New(chip("gfx900"), f)
	})

	It("splits the exec mask and pushes the untaken side", func() {
		f.set32(regs.SGPR(2), 0x3) // branch mask in s[2:3]
		i := inst(ops, sopk(ops.IFork, 2, 4))

		pc, ok, err := w.SimulateInstruction(0x100, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())

		// Equal lane counts take the branch; the fail side is saved.
		Expect(pc).To(Equal(uint64(0x100 + 4 + 16)))
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0x3)))
		Expect(f.get32(regs.Mode) >> regs.ModeCSPShift).To(Equal(uint32(1)))
		Expect(f.get32(regs.SGPR(0))).To(Equal(uint32(0xC)))
		Expect(f.get32(regs.SGPR(2))).To(Equal(uint32(0x104)))
	})

	It("does not push when every lane goes the same way", func() {
		f.set32(regs.SGPR(2), 0xF) // mask covers all of exec

		pc, ok, err := w.SimulateInstruction(0x100,
			inst(ops, sopk(ops.IFork, 2, 4)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x100 + 4 + 16)))
		Expect(f.get32(regs.Mode) >> regs.ModeCSPShift).To(Equal(uint32(0)))
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0xF)))
	})

	It("pops the saved mask and pc on join", func() {
		// One pushed frame: exec 0xC, pc 0x104.
		f.set32(regs.Mode, 1<<regs.ModeCSPShift)
		f.set32(regs.SGPR(0), 0xC)
		f.set32(regs.SGPR(2), 0x104)
		f.set32(regs.SGPR(4), 0) // csp at fork time
		f.set64(regs.Exec64, 0x3)

		pc, ok, err := w.SimulateInstruction(0x200,
			inst(ops, sop1(ops.Join, 0, 4)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x104)))
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0xC)))
		Expect(f.get32(regs.Mode) >> regs.ModeCSPShift).To(Equal(uint32(0)))
	})

	It("falls through a join whose frame already unwound", func() {
		f.set32(regs.SGPR(4), 0) // csp is already 0

		pc, ok, err := w.SimulateInstruction(0x200,
			inst(ops, sop1(ops.Join, 0, 4)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x204)))
	})
})

var _ = Describe("subvector loops", func() {
	var (
		f regFile
		w *wave.Wave
	)

	ops := insts.GFX10Ops

	BeforeEach(func() {
		f = regFile{}
		f.set64(regs.PC, 0x100)
		w = wave.New(chip("gfx1010"), f, wave.WithLaneCount(64))
	})

	It("runs the low half first and saves the high half", func() {
		f.set64(regs.Exec64, 0x0000000200000005)

		pc, ok, err := w.SimulateInstruction(0x100,
			inst(ops, sopk(ops.SubvecBegin, 8, 4)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x104)))
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0x5)))
		Expect(f.get32(regs.SGPR(8))).To(Equal(uint32(0x2)))
	})

	It("skips the loop when no lane is active", func() {
		f.set64(regs.Exec64, 0)

		pc, ok, err := w.SimulateInstruction(0x100,
			inst(ops, sopk(ops.SubvecBegin, 8, 4)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x100 + 4 + 16)))
	})

	It("starts the second pass at loop end", func() {
		f.set64(regs.Exec64, 0x5) // low half just ran
		f.set32(regs.SGPR(8), 0x2)

		back := uint16(0xFFFB) // -5 words
		pc, ok, err := w.SimulateInstruction(0x200,
			inst(ops, sopk(ops.SubvecEnd, 8, back)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x204 - 20)))
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0x2) << 32))
		Expect(f.get32(regs.SGPR(8))).To(Equal(uint32(0x5)))
	})

	It("restores the full mask after the second pass", func() {
		f.set64(regs.Exec64, 0x2<<32)
		f.set32(regs.SGPR(8), 0x5)

		pc, ok, err := w.SimulateInstruction(0x200,
			inst(ops, sopk(ops.SubvecEnd, 8, 0xFFFB)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x204)))
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0x0000000200000005)))
	})
})

var _ = Describe("vgpr dealloc", func() {
	It("records the released registers and falls through", func() {
		f := regFile{}
		w := wave.New(chip("gfx1100"), f)
		ops := insts.GFX11Ops

		i := inst(ops, sopp(ops.SendMsg, insts.MsgDeallocVGPRs))
		Expect(w.CanSimulate(i)).To(BeTrue())

		pc, ok, err := w.SimulateInstruction(0x100, i)
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pc).To(Equal(uint64(0x104)))
		Expect(f.get32(regs.Status) & regs.StatusNoVGPRs).ToNot(BeZero())
	})

	It("is not a sendmsg on chips without the message", func() {
		// Opcode 54 carries no meaning in the gfx10 opcode table.
		i := inst(insts.GFX10Ops, sopp(54, insts.MsgDeallocVGPRs))
		Expect(i.IsSendMsgDeallocVGPRs()).To(BeFalse())
	})
})

var _ = Describe("displaced stepping", func() {
	It("permits instructions that ignore their own address", func() {
		w := wave.New(chip("gfx900"), regFile{})
		ops := insts.GFX9Ops

		Expect(w.CanExecuteDisplaced(inst(ops, sopp(0, 0)))).To(BeTrue())
		Expect(w.CanExecuteDisplaced(inst(ops,
			sopp(ops.Sleep, 1)))).To(BeTrue())
	})

	It("rejects control flow, pc reads, and traps", func() {
		w := wave.New(chip("gfx900"), regFile{})
		ops := insts.GFX9Ops

		Expect(w.CanExecuteDisplaced(inst(ops,
			sopp(ops.Branch, 2)))).To(BeFalse())
		Expect(w.CanExecuteDisplaced(inst(ops,
			sop1(ops.GetPC, 2, 0)))).To(BeFalse())
		Expect(w.CanExecuteDisplaced(inst(ops,
			sopp(ops.Trap, 1)))).To(BeFalse())
		Expect(w.CanExecuteDisplaced(inst(ops,
			sopp(ops.Endpgm, 0)))).To(BeFalse())
	})

	It("rejects the vgpr deallocation message", func() {
		w := wave.New(chip("gfx1100"), regFile{})
		i := inst(insts.GFX11Ops, sopp(insts.GFX11Ops.SendMsg,
			insts.MsgDeallocVGPRs))
		Expect(w.CanExecuteDisplaced(i)).To(BeFalse())
	})
})

var _ = Describe("register file", func() {
	var (
		f regFile
		w *wave.Wave
	)

	BeforeEach(func() {
		f = regFile{}
		w = wave.New(chip("gfx900"), f)
	})

	It("keeps read-only bits across writes", func() {
		Expect(regs.WriteUint32(w, regs.Status, 0xFFFFFFFF)).To(Succeed())

		status := f.get32(regs.Status)
		Expect(status & regs.StatusSCC).ToNot(BeZero())
		Expect(status & regs.StatusHalt).ToNot(BeZero())
		Expect(status & regs.StatusExecZ).To(BeZero())
		Expect(status & regs.StatusVccZ).To(BeZero())
	})

	It("keeps the pc aligned", func() {
		Expect(regs.WriteUint64(w, regs.PC, 0x1003)).To(Succeed())
		Expect(f.get64(regs.PC)).To(Equal(uint64(0x1000)))
	})

	It("hides the control bits in the status pseudo register", func() {
		f.set32(regs.Status,
			regs.StatusSCC|regs.StatusPriv|regs.StatusHalt|regs.StatusSkipExport)

		Expect(regs.ReadUint32(w, regs.PseudoStatus)).To(
			Equal(regs.StatusSCC))
	})

	It("shows the saved halt flag in the status pseudo register", func() {
		f.set32(regs.TTMP6, regs.TTMP6SavedStatusHalt)

		Expect(regs.ReadUint32(w, regs.PseudoStatus)).To(
			Equal(regs.StatusHalt))
	})

	It("updates execz when the exec pseudo halves change", func() {
		f.set64(regs.Exec64, 0x1)

		Expect(regs.WriteUint32(w, regs.PseudoExecLo, 0)).To(Succeed())
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0)))
		Expect(f.get32(regs.Status) & regs.StatusExecZ).ToNot(BeZero())

		Expect(regs.WriteUint32(w, regs.PseudoExecHi, 0x80)).To(Succeed())
		Expect(f.get64(regs.Exec64)).To(Equal(uint64(0x80) << 32))
		Expect(f.get32(regs.Status) & regs.StatusExecZ).To(BeZero())
	})

	It("maps the csp pseudo register to mode", func() {
		Expect(regs.WriteUint32(w, regs.CSP, 3)).To(Succeed())
		Expect(f.get32(regs.Mode) >> regs.ModeCSPShift).To(Equal(uint32(3)))
		Expect(regs.ReadUint32(w, regs.CSP)).To(Equal(uint32(3)))
	})

	It("reads null as zero and drops writes to it", func() {
		Expect(regs.WriteUint32(w, regs.Null, 0x1234)).To(Succeed())
		Expect(regs.ReadUint32(w, regs.Null)).To(Equal(uint32(0)))
	})

	It("rejects pseudo registers the chip does not have", func() {
		var buf [4]byte
		Expect(w.ReadRegister(regs.PseudoStatePriv, buf[:])).To(
			MatchError(regs.ErrInvalidRegister))
	})
})

var _ = Describe("trap temporaries", func() {
	var (
		f regFile
		w *wave.Wave
	)

	BeforeEach(func() {
		f = regFile{}
	})

	It("resets the dispatch ttmps of a pre-attach wave", func() {
		w = wave.New(chip("gfx900"), f)
		f.set32(regs.TTMP6, 0xDEADBEEF)
		f.set32(regs.TTMP8, 1)
		f.set32(regs.TTMP9, 2)
		f.set32(regs.TTMP10, 3)
		f.set32(regs.TTMP11, 0xFFFFFFFF)

		Expect(w.InitializeSPITtmps()).To(Succeed())
		Expect(f.get32(regs.TTMP6)).To(Equal(uint32(0)))
		Expect(f.get32(regs.TTMP8)).To(Equal(uint32(0)))
		Expect(f.get32(regs.TTMP11) & regs.TTMP11WaveInGroupMask).To(
			Equal(uint32(0)))
		Expect(f.get32(regs.TTMP11) &^ regs.TTMP11WaveInGroupMask).ToNot(
			Equal(uint32(0)))
	})

	It("keeps the stop protocol bits when the trap handler owns them", func() {
		w = wave.New(chip("gfx900"), f, wave.WithABIVersion(10))
		f.set32(regs.Status, regs.StatusSkipExport)
		f.set32(regs.TTMP6,
			regs.TTMP6WaveStopped|regs.TTMP6SavedStatusHalt|0x1234)

		Expect(w.InitializeSPITtmps()).To(Succeed())
		Expect(f.get32(regs.TTMP6)).To(Equal(
			regs.TTMP6WaveStopped | regs.TTMP6SavedStatusHalt))
	})

	It("marks trap handler setup on chips that own the ttmps", func() {
		w = wave.New(chip("gfx940"), f)

		Expect(w.TrapHandlerTtmpsInitialized()).To(BeFalse())
		Expect(w.InitializeTrapHandlerTtmps()).To(Succeed())
		Expect(w.TrapHandlerTtmpsInitialized()).To(BeTrue())
		Expect(f.get32(regs.TTMP11) & regs.TTMP11TrapHandlerSetup).ToNot(BeZero())
	})
})

var _ = Describe("dispatch information", func() {
	var (
		f regFile
		w *wave.Wave
	)

	BeforeEach(func() {
		f = regFile{}
		w = wave.New(chip("gfx900"), f,
			wave.WithQueue(0x10000, 0x400, 0x40),
			wave.WithSPITtmpsSetup())
	})

	It("locates the dispatch packet from the saved index", func() {
		f.set32(regs.TTMP6, 5)

		addr, ok, err := w.DispatchPacketAddress()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint64(0x10000 + 5*0x40)))
	})

	It("rejects a packet index outside the queue", func() {
		f.set32(regs.TTMP6, 16)

		_, _, err := w.DispatchPacketAddress()
		Expect(err).To(MatchError(wave.ErrOutOfBounds))
	})

	It("reports no dispatch without spi setup", func() {
		bare := wave.New(chip("gfx900"), f)
		_, ok, err := bare.DispatchPacketAddress()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("returns the workgroup coordinates and position", func() {
		f.set32(regs.TTMP8, 1)
		f.set32(regs.TTMP9, 2)
		f.set32(regs.TTMP10, 3)
		f.set32(regs.TTMP11, 0x15)

		coords, ok, err := w.GroupIDs()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(coords).To(Equal([3]uint32{1, 2, 3}))

		pos, ok, err := w.PositionInGroup()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(pos).To(Equal(uint32(0x15)))
	})

	It("round-trips the wave id through ttmp4 and ttmp5", func() {
		Expect(w.SetWaveID(0x123456789A)).To(Succeed())

		id, ok, err := w.WaveID()
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(uint64(0x123456789A)))
	})
})
