package loader_test

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/wavedbg/arch"
	"github.com/sarchlab/wavedbg/loader"
)

func TestLoader(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Loader Suite")
}

const (
	testTextAddr = 0x1000
	testABI      = 2
)

// codeObject builds a minimal ELF64 code object: a .text section with two
// instruction words and the string table the section headers need.
func codeObject(machine uint16, osabi byte, flags uint32) []byte {
	text := make([]byte, 8)
	binary.LittleEndian.PutUint32(text, 0xBF810000)  // s_endpgm
	binary.LittleEndian.PutUint32(text[4:], 0xBF800000) // s_nop

	shstrtab := []byte("\x00.text\x00.shstrtab\x00")

	const (
		textOff  = 0x40
		strOff   = uint64(textOff) + 8
		shOff    = 0x60
		shEntLen = 64
	)

	img := make([]byte, shOff+3*shEntLen)

	copy(img, []byte{0x7F, 'E', 'L', 'F', 2, 1, 1, osabi, testABI})
	binary.LittleEndian.PutUint16(img[16:], uint16(elf.ET_DYN))
	binary.LittleEndian.PutUint16(img[18:], machine)
	binary.LittleEndian.PutUint32(img[20:], 1)
	binary.LittleEndian.PutUint64(img[40:], shOff)
	binary.LittleEndian.PutUint32(img[48:], flags)
	binary.LittleEndian.PutUint16(img[52:], 64)
	binary.LittleEndian.PutUint16(img[58:], shEntLen)
	binary.LittleEndian.PutUint16(img[60:], 3)
	binary.LittleEndian.PutUint16(img[62:], 2)

	copy(img[textOff:], text)
	copy(img[strOff:], shstrtab)

	shdr := func(n int, name, typ uint32, addr, off, size uint64) {
		base := shOff + n*shEntLen
		binary.LittleEndian.PutUint32(img[base:], name)
		binary.LittleEndian.PutUint32(img[base+4:], typ)
		binary.LittleEndian.PutUint64(img[base+16:], addr)
		binary.LittleEndian.PutUint64(img[base+24:], off)
		binary.LittleEndian.PutUint64(img[base+32:], size)
		binary.LittleEndian.PutUint64(img[base+48:], 4)
	}
	shdr(1, 1, uint32(elf.SHT_PROGBITS), testTextAddr, textOff, 8)
	shdr(2, 7, uint32(elf.SHT_STRTAB), 0, strOff, uint64(len(shstrtab)))

	return img
}

var _ = Describe("code object inspection", func() {
	const hsaOSABI = 0x40

	parse := func(img []byte) (*loader.CodeObject, error) {
		f, err := elf.NewFile(bytes.NewReader(img))
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = f.Close() }()
		flags := binary.LittleEndian.Uint32(img[48:])
		return loader.InspectFile(f, flags)
	}

	It("resolves the architecture from e_flags", func() {
		img := codeObject(uint16(elf.EM_AMDGPU), hsaOSABI,
			arch.ElfMachineGFX900)

		co, err := parse(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(co.Arch.Name).To(Equal("gfx900"))
		Expect(co.Machine).To(Equal(uint32(arch.ElfMachineGFX900)))
		Expect(co.ABIVersion).To(Equal(testABI))
	})

	It("extracts the instruction bytes and load address", func() {
		img := codeObject(uint16(elf.EM_AMDGPU), hsaOSABI,
			arch.ElfMachineGFX1100)

		co, err := parse(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(co.Arch.Name).To(Equal("gfx1100"))
		Expect(co.Text).To(HaveLen(8))
		Expect(binary.LittleEndian.Uint32(co.Text)).To(
			Equal(uint32(0xBF810000)))
		Expect(co.TextAddr).To(Equal(uint64(testTextAddr)))
	})

	It("rejects a non-AMDGPU machine", func() {
		img := codeObject(uint16(elf.EM_AARCH64), hsaOSABI,
			arch.ElfMachineGFX900)

		_, err := parse(img)
		Expect(err).To(MatchError(arch.ErrUnsupportedMachine))
	})

	It("rejects an unknown chip", func() {
		img := codeObject(uint16(elf.EM_AMDGPU), hsaOSABI, 0xFF)

		_, err := parse(img)
		Expect(err).To(MatchError(arch.ErrUnsupportedMachine))
	})

	It("rejects a non-HSA OS ABI", func() {
		img := codeObject(uint16(elf.EM_AMDGPU), 0, arch.ElfMachineGFX900)

		_, err := parse(img)
		Expect(err).To(MatchError(ContainSubstring("AMDHSA")))
	})

	Describe("Inspect", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "code-object-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("inspects a code object on disk", func() {
			path := filepath.Join(tempDir, "kernel.hsaco")
			img := codeObject(uint16(elf.EM_AMDGPU), hsaOSABI,
				arch.ElfMachineGFX90A)
			Expect(os.WriteFile(path, img, 0o644)).To(Succeed())

			co, err := loader.Inspect(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(co.Arch.Name).To(Equal("gfx90a"))
			Expect(co.TextAddr).To(Equal(uint64(testTextAddr)))
		})

		It("reports a missing file", func() {
			_, err := loader.Inspect(filepath.Join(tempDir, "missing"))
			Expect(err).To(HaveOccurred())
		})

		It("reports a file that is not an ELF object", func() {
			path := filepath.Join(tempDir, "garbage")
			Expect(os.WriteFile(path, []byte("not an elf"), 0o644)).To(Succeed())

			_, err := loader.Inspect(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
