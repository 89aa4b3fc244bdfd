package wave

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/regs"
)

// InstructionAt fetches and decodes the instruction at pc.
func (w *Wave) InstructionAt(pc uint64) (*insts.Instruction, error) {
	if w.mem == nil {
		return nil, fmt.Errorf("%w: no memory attached", ErrCannotSimulate)
	}
	buf := make([]byte, insts.MaxSize)
	if err := w.mem.ReadGlobal(pc, buf); err != nil {
		return nil, err
	}
	return insts.New(w.arch.Ops, buf), nil
}

// CanExecuteDisplaced reports whether i may be copied to a scratch buffer
// and single-stepped there. Instructions that observe or change the program
// counter must execute at their original address or be simulated, and the
// VGPR deallocation message leaves the wave unable to continue afterwards.
func (w *Wave) CanExecuteDisplaced(i *insts.Instruction) bool {
	if i.IsSendMsgDeallocVGPRs() || i.IsGetPC() || i.IsTrap() {
		return false
	}
	return i.IsSequential()
}

// CanSimulate reports whether SimulateInstruction handles i. Only
// instructions whose operands resolve to plain registers can be simulated;
// literals, apertures, and condition codes as sources are not handled.
func (w *Wave) CanSimulate(i *insts.Instruction) bool {
	operandOK := func(op int) bool {
		_, ok := w.arch.ScalarOperand(op, w.lanes, true)
		return ok
	}

	switch {
	case i.IsSendMsgDeallocVGPRs():
		return w.arch.HasVGPRDealloc
	case i.IsGetPC(), i.IsCall(), i.IsCBranchIFork():
		return operandOK(int(i.SDst()))
	case i.IsSetPC():
		return operandOK(int(i.SSrc0()))
	case i.IsSwapPC():
		return operandOK(int(i.SSrc0())) && operandOK(int(i.SDst()))
	case i.IsSubvectorLoopBegin(), i.IsSubvectorLoopEnd():
		return operandOK(int(i.SDst())) && w.lanes == 64
	}

	if _, ok := i.IsCBranch(); ok {
		return true
	}
	return i.IsBranch() || i.IsCBranchJoin() || i.IsEndpgm()
}

// csp returns the conditional branch stack pointer kept in mode.
func (w *Wave) csp() (uint32, error) {
	mode, err := regs.ReadUint32(w.file, regs.Mode)
	return mode & regs.ModeCSPMask >> regs.ModeCSPShift, err
}

func (w *Wave) setCSP(csp uint32) error {
	mode, err := regs.ReadUint32(w.file, regs.Mode)
	if err != nil {
		return err
	}
	mode = mode&^regs.ModeCSPMask | csp<<regs.ModeCSPShift&regs.ModeCSPMask
	return regs.WriteUint32(w.file, regs.Mode, mode)
}

// forkFrame returns the scalar register index of fork stack frame n.
// Each frame holds exec lo, exec hi, pc lo, pc hi in four consecutive
// scalar registers starting at s0.
func forkFrame(n uint32) int { return int(n) * 4 }

func (w *Wave) readSGPR(n int) (uint32, error) {
	return regs.ReadUint32(w.file, regs.SGPR(n))
}

func (w *Wave) writeSGPR(n int, v uint32) error {
	return regs.WriteUint32(w.file, regs.SGPR(n), v)
}

func (w *Wave) readSGPRPair(n int) (uint64, error) {
	lo, err := w.readSGPR(n)
	if err != nil {
		return 0, err
	}
	hi, err := w.readSGPR(n + 1)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// forkMasks reads the branch mask of a fork instruction and splits the
// exec mask into the lanes that take the branch and the lanes that do not.
func (w *Wave) forkMasks(i *insts.Instruction) (maskPass, maskFail, exec uint64, err error) {
	op := int(i.SSrc0())
	if i.IsCBranchIFork() {
		op = int(i.SDst())
	}
	mask, err := w.readOperandPair64(op)
	if err != nil {
		return 0, 0, 0, err
	}
	exec, err = regs.ReadUint64(w.file, regs.Exec64)
	if err != nil {
		return 0, 0, 0, err
	}
	return mask & exec, ^mask & exec, exec, nil
}

// IsBranchTaken evaluates the branch condition of i against the wave's
// registers. Unconditional branches, calls, and PC swaps are always taken.
// Fork instructions take the side with the larger lane count; joins are
// taken unless the stack already unwound to the saved frame.
func (w *Wave) IsBranchTaken(i *insts.Instruction) (bool, error) {
	if cond, ok := i.IsCBranch(); ok {
		return w.cbranchTaken(cond)
	}

	if i.IsCBranchIFork() || i.IsCBranchGFork() {
		maskPass, maskFail, exec, err := w.forkMasks(i)
		if err != nil {
			return false, err
		}
		if maskPass == exec {
			return true, nil
		}
		if maskFail == exec {
			return false, nil
		}
		return bits.OnesCount64(maskFail) >= bits.OnesCount64(maskPass), nil
	}

	if i.IsCBranchJoin() {
		csp, err := w.csp()
		if err != nil {
			return false, err
		}
		saved, err := w.readOperand32(int(i.SSrc0()))
		if err != nil {
			return false, err
		}
		return csp != saved, nil
	}

	if i.IsBranch() || i.IsCall() || i.IsSetPC() || i.IsSwapPC() {
		return true, nil
	}

	return false, fmt.Errorf("%w: not a branch", ErrCannotSimulate)
}

func (w *Wave) cbranchTaken(cond insts.Cond) (bool, error) {
	status, err := regs.ReadUint32(w.file, regs.Status)
	if err != nil {
		return false, err
	}
	sccReg, sccMask := w.sccReg()
	scc := status & sccMask
	if sccReg != regs.Status {
		v, err := regs.ReadUint32(w.file, sccReg)
		if err != nil {
			return false, err
		}
		scc = v & sccMask
	}

	dbgMask := status & (regs.StatusCondDbgSys | regs.StatusCondDbgUser)

	switch cond {
	case insts.CondSCC0:
		return scc == 0, nil
	case insts.CondSCC1:
		return scc != 0, nil
	case insts.CondEXECZ:
		return status&regs.StatusExecZ != 0, nil
	case insts.CondEXECNZ:
		return status&regs.StatusExecZ == 0, nil
	case insts.CondVCCZ:
		return status&regs.StatusVccZ != 0, nil
	case insts.CondVCCNZ:
		return status&regs.StatusVccZ == 0, nil
	}

	if w.arch.Gen == regs.Gen12 {
		return false, fmt.Errorf("%w: invalid branch condition %v",
			ErrCannotSimulate, cond)
	}

	switch cond {
	case insts.CondDbgSys:
		return status&regs.StatusCondDbgSys != 0, nil
	case insts.CondDbgUser:
		return status&regs.StatusCondDbgUser != 0, nil
	case insts.CondDbgSysOrUser:
		return dbgMask != 0, nil
	case insts.CondDbgSysAndUser:
		return dbgMask ==
			regs.StatusCondDbgSys|regs.StatusCondDbgUser, nil
	}

	return false, fmt.Errorf("%w: invalid branch condition %v",
		ErrCannotSimulate, cond)
}

// branchTarget computes the destination of the branch instruction i at pc.
func (w *Wave) branchTarget(pc uint64, i *insts.Instruction) (uint64, error) {
	_, isCBranch := i.IsCBranch()
	switch {
	case i.IsBranch(), i.IsCall(), isCBranch, i.IsCBranchIFork(),
		i.IsSubvectorLoopBegin(), i.IsSubvectorLoopEnd():
		return i.BranchTarget(pc)

	case i.IsCBranchGFork():
		target, err := w.readOperandPair64(int(i.SSrc1()))
		return insts.AlignDown(target), err

	case i.IsSetPC(), i.IsSwapPC():
		target, err := w.readOperandPair64(int(i.SSrc0()))
		return insts.AlignDown(target), err

	case i.IsCBranchJoin():
		csp, err := w.csp()
		if err != nil {
			return 0, err
		}
		frame := forkFrame(csp - 1)
		target, err := w.readSGPRPair(frame + 2)
		return insts.AlignDown(target), err
	}

	return 0, fmt.Errorf("%w: not a branch", ErrCannotSimulate)
}

// SimulateInstruction executes i at pc against the wave's registers and
// returns the next PC. ok is false when the instruction ended the wave.
// Program memory is never modified; only the PC, exec mask, fork stack,
// and destination operands change.
func (w *Wave) SimulateInstruction(pc uint64, i *insts.Instruction) (newPC uint64, ok bool, err error) {
	newPC, ok, err = w.simulateInstruction(pc, i)
	if err != nil || !ok {
		return newPC, ok, err
	}
	if !w.arch.PreciseSingleStep {
		return newPC, true, nil
	}

	// Single-stepping hardware raises trap_after_inst when the step
	// trap is armed; mirror that for simulated instructions.
	armed, err := regs.ReadUint32(w.file, w.trapEnableReg())
	if err != nil {
		return 0, false, err
	}
	stepMask := regs.ModeDebugEn
	if w.arch.Gen == regs.Gen12 {
		stepMask = regs.TrapCtrlTrapAfterInst
	}
	if armed&stepMask != 0 {
		err = w.SetExceptions(ExcTrapAfterInst, ExcTrapAfterInst)
		if err != nil {
			return 0, false, err
		}
	}
	return newPC, true, nil
}

func (w *Wave) simulateInstruction(pc uint64, i *insts.Instruction) (uint64, bool, error) {
	size, err := i.Size()
	if err != nil {
		return 0, false, err
	}
	next := pc + uint64(size)

	switch {
	case i.IsEndpgm():
		w.terminated = true
		return 0, false, nil

	case i.IsSendMsgDeallocVGPRs() && w.arch.HasVGPRDealloc:
		status, err := regs.ReadUint32(w.file, regs.Status)
		if err != nil {
			return 0, false, err
		}
		status |= regs.StatusNoVGPRs
		if err := regs.WriteUint32(w.file, regs.Status, status); err != nil {
			return 0, false, err
		}
		return next, true, nil

	case i.IsSubvectorLoopBegin():
		return w.simulateSubvectorBegin(pc, i, next)

	case i.IsSubvectorLoopEnd():
		return w.simulateSubvectorEnd(pc, i, next)

	case i.IsCBranchIFork(), i.IsCBranchGFork():
		if err := w.simulateFork(pc, i, next); err != nil {
			return 0, false, err
		}

	case i.IsCBranchJoin():
		return w.simulateJoin(i, next)

	case i.IsCall(), i.IsGetPC(), i.IsSwapPC():
		// The destination pair receives the return address before any
		// control transfer.
		if err := w.writeOperandPair64(int(i.SDst()), next); err != nil {
			return 0, false, err
		}
	}

	taken, err := w.IsBranchTaken(i)
	if i.IsSequential() || (err == nil && !taken) {
		return next, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	target, err := w.branchTarget(pc, i)
	if err != nil {
		return 0, false, err
	}
	return target, true, nil
}

// simulateFork splits the exec mask. When both sides have active lanes the
// untaken side's mask and resume PC are pushed on the fork stack.
func (w *Wave) simulateFork(pc uint64, i *insts.Instruction, next uint64) error {
	if w.lanes != 64 {
		return fmt.Errorf("%w: fork in wave%d", ErrCannotSimulate, w.lanes)
	}

	maskPass, maskFail, exec, err := w.forkMasks(i)
	if err != nil {
		return err
	}
	if maskPass == exec || maskFail == exec {
		return nil
	}

	taken, err := w.IsBranchTaken(i)
	if err != nil {
		return err
	}

	savedPC := next
	savedExec, newExec := maskFail, maskPass
	if !taken {
		savedPC, err = w.branchTarget(pc, i)
		if err != nil {
			return err
		}
		savedExec, newExec = maskPass, maskFail
	}

	csp, err := w.csp()
	if err != nil {
		return err
	}
	frame := forkFrame(csp)
	for k, v := range []uint32{uint32(savedExec), uint32(savedExec >> 32),
		uint32(savedPC), uint32(savedPC >> 32)} {
		if err := w.writeSGPR(frame+k, v); err != nil {
			return err
		}
	}
	if err := w.setCSP(csp + 1); err != nil {
		return err
	}
	return regs.WriteUint64(w.file, regs.Exec64, newExec)
}

// simulateJoin pops the fork stack. The exec mask and the resume PC come
// from the same frame, read before the stack pointer moves.
func (w *Wave) simulateJoin(i *insts.Instruction, next uint64) (uint64, bool, error) {
	if w.lanes != 64 {
		return 0, false, fmt.Errorf("%w: join in wave%d", ErrCannotSimulate,
			w.lanes)
	}

	taken, err := w.IsBranchTaken(i)
	if err != nil {
		return 0, false, err
	}
	if !taken {
		return next, true, nil
	}

	csp, err := w.csp()
	if err != nil {
		return 0, false, err
	}
	csp--
	frame := forkFrame(csp)

	exec, err := w.readSGPRPair(frame)
	if err != nil {
		return 0, false, err
	}
	target, err := w.readSGPRPair(frame + 2)
	if err != nil {
		return 0, false, err
	}

	if err := w.setCSP(csp); err != nil {
		return 0, false, err
	}
	if err := regs.WriteUint64(w.file, regs.Exec64, exec); err != nil {
		return 0, false, err
	}
	return insts.AlignDown(target), true, nil
}

// simulateSubvectorBegin runs a wave64 subvector loop entry. Each half of
// the exec mask runs as a separate pass; the destination scalar holds the
// half not yet executing.
func (w *Wave) simulateSubvectorBegin(pc uint64, i *insts.Instruction, next uint64) (uint64, bool, error) {
	if w.lanes != 64 {
		return 0, false, fmt.Errorf("%w: subvector loop in wave%d",
			ErrCannotSimulate, w.lanes)
	}
	s0 := int(i.SDst())

	exec, err := regs.ReadUint64(w.file, regs.Exec64)
	if err != nil {
		return 0, false, err
	}
	execLo, execHi := uint32(exec), uint32(exec>>32)

	if exec == 0 {
		target, err := w.branchTarget(pc, i)
		return target, err == nil, err
	}

	if execLo == 0 {
		// Single pass over the high half.
		if err := w.writeOperand32(s0, execLo); err != nil {
			return 0, false, err
		}
	} else {
		// Save the high half for the second pass, run the low half.
		if err := w.writeOperand32(s0, execHi); err != nil {
			return 0, false, err
		}
		exec = uint64(execLo)
		if err := regs.WriteUint64(w.file, regs.Exec64, exec); err != nil {
			return 0, false, err
		}
	}
	return next, true, nil
}

// simulateSubvectorEnd runs a wave64 subvector loop exit, starting the
// second pass when the saved half is still pending.
func (w *Wave) simulateSubvectorEnd(pc uint64, i *insts.Instruction, next uint64) (uint64, bool, error) {
	if w.lanes != 64 {
		return 0, false, fmt.Errorf("%w: subvector loop in wave%d",
			ErrCannotSimulate, w.lanes)
	}
	s0op := int(i.SDst())

	exec, err := regs.ReadUint64(w.file, regs.Exec64)
	if err != nil {
		return 0, false, err
	}
	execLo, execHi := uint32(exec), uint32(exec>>32)

	s0, err := w.readOperand32(s0op)
	if err != nil {
		return 0, false, err
	}

	switch {
	case execHi != 0:
		// Second half done; restore the first half's mask.
		exec = uint64(execHi)<<32 | uint64(s0)
		if err := regs.WriteUint64(w.file, regs.Exec64, exec); err != nil {
			return 0, false, err
		}
	case s0 != 0:
		// Jump back and run the saved second half.
		exec = uint64(s0) << 32
		if err := regs.WriteUint64(w.file, regs.Exec64, exec); err != nil {
			return 0, false, err
		}
		if err := w.writeOperand32(s0op, execLo); err != nil {
			return 0, false, err
		}
		target, err := w.branchTarget(pc, i)
		return target, err == nil, err
	}
	return next, true, nil
}

// Simulate executes the instruction at the wave's PC in place of the
// hardware, then simulates the trap handler entry that single-stepping the
// instruction would have produced. A halted wave is left untouched and
// false is returned.
func (w *Wave) Simulate() (bool, error) {
	if w.state != StateSingleStep {
		return false, fmt.Errorf("%w: wave is not single-stepping",
			ErrCannotSimulate)
	}

	reg, mask := w.haltReg()
	v, err := regs.ReadUint32(w.file, reg)
	if err != nil {
		return false, err
	}
	if v&mask != 0 {
		return false, nil
	}

	pc, err := w.PC()
	if err != nil {
		return false, err
	}
	i, err := w.InstructionAt(pc)
	if err != nil {
		return false, err
	}
	if !w.CanSimulate(i) {
		return false, fmt.Errorf("%w: instruction at %#x",
			ErrCannotSimulate, pc)
	}

	newPC, ok, err := w.SimulateInstruction(pc, i)
	if err != nil {
		return false, err
	}
	if ok {
		if err := w.SimulateTrapHandler(newPC, TrapIDReserved); err != nil {
			return false, err
		}
	}

	w.log.V(1).Info("simulated instruction", "pc", pc)
	return true, nil
}

// SimulateTrapHandler performs the register updates the first-level trap
// handler would make on entry: mark the wave stopped in ttmp6, save the
// halt flag and trap id, park the PC when parking is in effect, and halt
// the wave. A trapID of TrapIDReserved records no trap.
func (w *Wave) SimulateTrapHandler(pc uint64, trapID uint8) error {
	reg, haltMask := w.haltReg()
	halt, err := regs.ReadUint32(w.file, reg)
	if err != nil {
		return err
	}
	ttmp6, err := regs.ReadUint32(w.file, regs.TTMP6)
	if err != nil {
		return err
	}

	ttmp6 &^= regs.TTMP6SavedStatusHalt | regs.TTMP6SavedTrapIDMask
	ttmp6 |= regs.TTMP6WaveStopped
	ttmp6 |= uint32(trapID) << regs.TTMP6SavedTrapIDShift &
		regs.TTMP6SavedTrapIDMask
	if halt&haltMask != 0 {
		ttmp6 |= regs.TTMP6SavedStatusHalt
	}
	if err := regs.WriteUint32(w.file, regs.TTMP6, ttmp6); err != nil {
		return err
	}

	if park, _ := w.arch.ParkStoppedWaves(w.abiVersion); park {
		if err := w.savePCForPark(pc); err != nil {
			return err
		}
		pc = w.parkAddr
	}
	if err := w.setPC(pc); err != nil {
		return err
	}

	return regs.WriteUint32(w.file, reg, halt|haltMask)
}
