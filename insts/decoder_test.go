package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wavedbg/insts"
)

var _ = Describe("Classify", func() {
	It("classifies the gfx9 terminate sequence", func() {
		c, err := insts.GFX9Ops.Classify(0, []byte{0x00, 0x00, 0x81, 0xBF})
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindTerminate))
		Expect(c.Size).To(Equal(4))
	})

	It("classifies the gfx11 terminate sequence", func() {
		c, err := insts.GFX11Ops.Classify(0, []byte{0x00, 0x00, 0xB0, 0xBF})
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindTerminate))
	})

	It("does not accept one generation's terminate on another", func() {
		c, err := insts.GFX11Ops.Classify(0, []byte{0x00, 0x00, 0x81, 0xBF})
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).ToNot(Equal(insts.KindTerminate))
	})

	It("computes direct branch targets", func() {
		c, err := insts.GFX9Ops.Classify(0x2000,
			word(sopp(insts.GFX9Ops.Branch, 3)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindDirectBranch))
		Expect(c.HasTarget).To(BeTrue())
		Expect(c.Target).To(Equal(uint64(0x2000 + 4 + 3*4)))
	})

	It("reports conditional branches with their condition", func() {
		c, err := insts.GFX9Ops.Classify(0, word(sopp(8, 0)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindDirectBranchConditional))
		Expect(c.Cond).To(Equal(insts.CondEXECZ))
	})

	It("reports calls as direct calls with a target", func() {
		c, err := insts.GFX9Ops.Classify(0x100,
			word(sopk(insts.GFX9Ops.Call, 0, 1)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindDirectCall))
		Expect(c.Target).To(Equal(uint64(0x100 + 4 + 4)))
	})

	It("reports setpc as an indirect branch without a target", func() {
		c, err := insts.GFX9Ops.Classify(0,
			word(sop1(insts.GFX9Ops.SetPC, 0, 2)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindIndirectBranch))
		Expect(c.HasTarget).To(BeFalse())
	})

	It("carries the trap id of trap instructions", func() {
		c, err := insts.GFX9Ops.Classify(0, word(sopp(insts.GFX9Ops.Trap, 7)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindTrap))
		Expect(c.TrapID).To(Equal(uint8(7)))
	})

	It("treats sethalt with a clear bit as sequential", func() {
		c, err := insts.GFX9Ops.Classify(0,
			word(sopp(insts.GFX9Ops.SetHalt, 0)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindSequential))

		c, err = insts.GFX9Ops.Classify(0,
			word(sopp(insts.GFX9Ops.SetHalt, 1)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindHalt))
	})

	It("classifies subvector loops as conditional branches", func() {
		ops := insts.GFX10Ops
		c, err := ops.Classify(0x40, word(sopk(ops.SubvecBegin, 0, 2)))
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Kind).To(Equal(insts.KindDirectBranchConditional))
		Expect(c.Target).To(Equal(uint64(0x40 + 4 + 8)))
	})

	It("propagates decode errors", func() {
		_, err := insts.GFX9Ops.Classify(0, []byte{0x00, 0x00})
		Expect(err).To(MatchError(insts.ErrIncomplete))

		_, err = insts.GFX9Ops.Classify(0, word(0xFFFFFFFF))
		Expect(err).To(MatchError(insts.ErrIllegalInstruction))
	})
})
