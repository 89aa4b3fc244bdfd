// Package loader inspects AMDGPU code objects. It resolves the target
// architecture from the ELF header and extracts the instruction bytes for
// classification.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sarchlab/wavedbg/arch"
)

// ELF OSABI and e_flags fields of an AMDGPU code object. debug/elf does
// not name the AMDHSA OSABI and does not surface e_flags at all, so both
// are handled here.
const (
	elfOSABIAMDGPUHSA = 0x40

	// efAMDGPUMachMask selects the EF_AMDGPU_MACH field of e_flags.
	efAMDGPUMachMask = 0xFF

	// e_flags sits after e_entry, e_phoff, and e_shoff in an ELF64 header.
	elf64FlagsOff = 48
)

// CodeObject is the inspection result for one code object.
type CodeObject struct {
	// Arch is the architecture the object was compiled for.
	Arch *arch.Architecture
	// Machine is the raw EF_AMDGPU_MACH value.
	Machine uint32
	// ABIVersion is the code object ABI major version from e_ident.
	ABIVersion int
	// Text holds the contents of the .text section.
	Text []byte
	// TextAddr is the virtual address .text loads at.
	TextAddr uint64
}

// Inspect opens and inspects the code object at path.
func Inspect(path string) (*CodeObject, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open code object: %w", err)
	}

	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse code object: %w", err)
	}
	defer func() { _ = f.Close() }()

	if len(raw) < elf64FlagsOff+4 {
		return nil, fmt.Errorf("code object header is truncated")
	}
	flags := binary.LittleEndian.Uint32(raw[elf64FlagsOff:])

	return InspectFile(f, flags)
}

// InspectFile inspects an already-parsed code object. flags is the ELF
// header's e_flags word, which debug/elf drops during parsing.
func InspectFile(f *elf.File, flags uint32) (*CodeObject, error) {
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Machine != elf.EM_AMDGPU {
		return nil, fmt.Errorf("%w: ELF machine %v", arch.ErrUnsupportedMachine, f.Machine)
	}
	if f.OSABI != elfOSABIAMDGPUHSA {
		return nil, fmt.Errorf("not an AMDHSA code object (OSABI %v)", f.OSABI)
	}

	machine := flags & efAMDGPUMachMask
	a, err := arch.NewRegistry().FindMachine(machine)
	if err != nil {
		return nil, err
	}

	co := &CodeObject{
		Arch:       a,
		Machine:    machine,
		ABIVersion: int(f.ABIVersion),
	}

	text := f.Section(".text")
	if text != nil {
		data, err := text.Data()
		if err != nil {
			return nil, fmt.Errorf("failed to read .text at 0x%x: %w", text.Addr, err)
		}
		co.Text = data
		co.TextAddr = text.Addr
	}

	return co, nil
}
