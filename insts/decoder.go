package insts

// Scalar encoding predicates. Every predicate checks the full encoding
// pattern, not just the opcode field, so an arbitrary word matches at most
// one of them.

// isSOPP checks a SOPP encoding with a specific opcode.
// Format: 101111111 | op7 | simm16
func (s *OpcodeSet) isSOPP(w uint32, op int) bool {
	if op == opNone {
		return false
	}
	return w&0xFFFF0000 == 0xBF800000|uint32(op)<<16
}

// isSOPK checks a SOPK encoding with a specific opcode.
// Format: 1011 | op5 | sdst7 | simm16
func (s *OpcodeSet) isSOPK(w uint32, op int) bool {
	if op == opNone {
		return false
	}
	return w&0xFF800000 == 0xB0000000|uint32(op)<<23
}

// isSOP1 checks a SOP1 encoding with a specific opcode.
// Format: 101111101 | sdst7 | op8 | ssrc08
func (s *OpcodeSet) isSOP1(w uint32, op int) bool {
	if op == opNone {
		return false
	}
	return w&0xFF80FF00 == 0xBE800000|uint32(op)<<8
}

// isSOP2 checks a SOP2 encoding with a specific opcode.
// Format: 10 | op7 | sdst7 | ssrc18 | ssrc08
func (s *OpcodeSet) isSOP2(w uint32, op int) bool {
	if op == opNone {
		return false
	}
	return w&0xFF800000 == 0x80000000|uint32(op)<<23
}

func (i *Instruction) valid() bool { return len(i.bytes) >= 4 }

// IsEndpgm reports an s_endpgm instruction.
func (i *Instruction) IsEndpgm() bool {
	return i.valid() && i.ops.isSOPP(i.word0(), i.ops.Endpgm)
}

// IsBranch reports an unconditional s_branch.
func (i *Instruction) IsBranch() bool {
	return i.valid() && i.ops.isSOPP(i.word0(), i.ops.Branch)
}

// IsCBranch reports a conditional branch and its condition.
func (i *Instruction) IsCBranch() (Cond, bool) {
	if !i.valid() {
		return CondNone, false
	}
	w := i.word0()
	if w&0xFF800000 != 0xBF800000 {
		return CondNone, false
	}
	cond, ok := i.ops.CBranch[int(w>>16&0x7F)]
	return cond, ok
}

// IsBarrier reports s_barrier, or s_barrier_wait on generations that split
// the barrier into signal and wait halves.
func (i *Instruction) IsBarrier() bool {
	if !i.valid() {
		return false
	}
	w := i.word0()
	return i.ops.isSOPP(w, i.ops.Barrier) || i.ops.isSOPP(w, i.ops.BarrierWait)
}

// IsSetHalt reports s_sethalt.
func (i *Instruction) IsSetHalt() bool {
	return i.valid() && i.ops.isSOPP(i.word0(), i.ops.SetHalt)
}

// IsSleep reports s_sleep.
func (i *Instruction) IsSleep() bool {
	return i.valid() && i.ops.isSOPP(i.word0(), i.ops.Sleep)
}

// IsTrap reports s_trap.
func (i *Instruction) IsTrap() bool {
	return i.valid() && i.ops.isSOPP(i.word0(), i.ops.Trap)
}

// IsCodeEnd reports s_code_end, the padding marker after a kernel's last
// instruction.
func (i *Instruction) IsCodeEnd() bool {
	return i.valid() && i.ops.isSOPP(i.word0(), i.ops.CodeEnd)
}

// IsSendMsgDeallocVGPRs reports s_sendmsg with the dealloc_vgprs payload.
func (i *Instruction) IsSendMsgDeallocVGPRs() bool {
	if !i.valid() {
		return false
	}
	w := i.word0()
	return i.ops.isSOPP(w, i.ops.SendMsg) && w&0xFF == MsgDeallocVGPRs
}

// IsCall reports s_call. The return address pair requires an even sdst.
func (i *Instruction) IsCall() bool {
	return i.valid() && i.ops.isSOPK(i.word0(), i.ops.Call) && i.SDst()%2 == 0
}

// IsCBranchIFork reports s_cbranch_i_fork.
func (i *Instruction) IsCBranchIFork() bool {
	return i.valid() && i.ops.isSOPK(i.word0(), i.ops.IFork) && i.SDst()%2 == 0
}

// IsCBranchGFork reports s_cbranch_g_fork.
func (i *Instruction) IsCBranchGFork() bool {
	return i.valid() && i.ops.isSOP2(i.word0(), i.ops.GFork) &&
		i.SSrc0()%2 == 0 && i.SSrc1()%2 == 0
}

// IsCBranchJoin reports s_cbranch_join.
func (i *Instruction) IsCBranchJoin() bool {
	return i.valid() && i.ops.isSOP1(i.word0(), i.ops.Join)
}

// IsSubvectorLoopBegin reports s_subvector_loop_begin.
func (i *Instruction) IsSubvectorLoopBegin() bool {
	return i.valid() && i.ops.isSOPK(i.word0(), i.ops.SubvecBegin)
}

// IsSubvectorLoopEnd reports s_subvector_loop_end.
func (i *Instruction) IsSubvectorLoopEnd() bool {
	return i.valid() && i.ops.isSOPK(i.word0(), i.ops.SubvecEnd)
}

// IsGetPC reports s_getpc.
func (i *Instruction) IsGetPC() bool {
	return i.valid() && i.ops.isSOP1(i.word0(), i.ops.GetPC) && i.SDst()%2 == 0
}

// IsSetPC reports s_setpc.
func (i *Instruction) IsSetPC() bool {
	if !i.valid() || !i.ops.isSOP1(i.word0(), i.ops.SetPC) {
		return false
	}
	return !i.ops.SetPCEvenSrc || i.SSrc0()%2 == 0
}

// IsSwapPC reports s_swappc.
func (i *Instruction) IsSwapPC() bool {
	if !i.valid() || !i.ops.isSOP1(i.word0(), i.ops.SwapPC) ||
		i.SSrc0()%2 != 0 {
		return false
	}
	return !i.ops.SwapPCEvenDst || i.SDst()%2 == 0
}

// IsSequential reports whether execution falls through to the next
// instruction unconditionally.
func (i *Instruction) IsSequential() bool {
	if !i.valid() {
		return false
	}
	if _, cbranch := i.IsCBranch(); cbranch {
		return false
	}
	return !(i.IsEndpgm() || i.IsBranch() || i.IsSetPC() || i.IsSwapPC() ||
		i.IsCBranchJoin() || i.IsCBranchIFork() || i.IsCBranchGFork() ||
		i.IsCall() || i.IsSubvectorLoopBegin() || i.IsSubvectorLoopEnd())
}

// Classification is the static summary of one instruction.
type Classification struct {
	Kind Kind
	Cond Cond
	Size int

	// Target is the branch or call destination for direct kinds.
	Target    uint64
	HasTarget bool

	// TrapID is set for trap instructions.
	TrapID uint8
}

// BranchTarget returns the destination of a direct branch or call at pc.
func (i *Instruction) BranchTarget(pc uint64) (uint64, error) {
	size, err := i.Size()
	if err != nil {
		return 0, err
	}
	return AlignDown(pc + uint64(size) + uint64(i.SImm16()<<2)), nil
}

// Classify decodes and classifies the instruction at pc.
func (s *OpcodeSet) Classify(pc uint64, b []byte) (Classification, error) {
	i := New(s, b)

	size, err := i.Size()
	if err != nil {
		return Classification{}, err
	}
	c := Classification{Kind: KindSequential, Size: size}

	target := func() error {
		t, err := i.BranchTarget(pc)
		if err != nil {
			return err
		}
		c.Target, c.HasTarget = t, true
		return nil
	}

	switch {
	case i.IsEndpgm():
		c.Kind = KindTerminate
	case i.IsBranch():
		c.Kind = KindDirectBranch
		err = target()
	case i.IsCall():
		c.Kind = KindDirectCall
		err = target()
	case i.IsSetPC():
		c.Kind = KindIndirectBranch
	case i.IsSwapPC():
		c.Kind = KindIndirectCall
	case i.IsCBranchIFork():
		c.Kind = KindDirectBranchConditional
		err = target()
	case i.IsCBranchGFork():
		c.Kind = KindIndirectBranchConditional
	case i.IsCBranchJoin():
		// Joins pop their destination from the fork stack; there is no
		// operand to report.
		c.Kind = KindSpecial
	case i.IsSubvectorLoopBegin(), i.IsSubvectorLoopEnd():
		c.Kind = KindDirectBranchConditional
		err = target()
	case i.IsTrap():
		c.Kind = KindTrap
		c.TrapID = i.TrapID()
	case i.IsSetHalt() && i.SImm16()&1 != 0:
		c.Kind = KindHalt
	case i.IsBarrier():
		c.Kind = KindBarrier
	case i.IsSleep():
		c.Kind = KindSleep
	case i.IsSendMsgDeallocVGPRs():
		c.Kind = KindSpecial
	case i.IsCodeEnd():
		c.Kind = KindUnknown
	default:
		if cond, ok := i.IsCBranch(); ok {
			c.Kind = KindDirectBranchConditional
			c.Cond = cond
			err = target()
		}
	}
	if err != nil {
		return Classification{}, err
	}

	return c, nil
}
