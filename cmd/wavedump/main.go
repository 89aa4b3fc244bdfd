// Package main provides the wavedump command line tool.
// wavedump classifies AMDGPU instructions and dumps the wave records of a
// raw context save image.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/wavedbg/arch"
	"github.com/sarchlab/wavedbg/cwsr"
	"github.com/sarchlab/wavedbg/insts"
	"github.com/sarchlab/wavedbg/loader"
)

var (
	classifyPath = flag.String("classify", "",
		"Classify every instruction in a code object's .text section")
	archName = flag.String("arch", "",
		"Architecture name for -hex and -stack (e.g. gfx90a)")
	hexStr = flag.String("hex", "",
		"Classify one hex-encoded instruction (requires -arch)")
	stackPath = flag.String("stack", "",
		"Dump the control stack of a raw save image (requires -arch)")
	stackOffset = flag.Uint64("stack-offset", 0,
		"Byte offset of the control stack inside the image (0 = image end minus -stack-size)")
	stackSize = flag.Uint64("stack-size", 0,
		"Control stack size in bytes (0 = image end minus -stack-offset)")
	verbose = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	switch {
	case *classifyPath != "":
		os.Exit(runClassify(*classifyPath))
	case *hexStr != "":
		os.Exit(runHex(*archName, *hexStr))
	case *stackPath != "":
		os.Exit(runStack(*archName, *stackPath))
	default:
		fmt.Fprintf(os.Stderr, "Usage: wavedump -classify <file.co>\n")
		fmt.Fprintf(os.Stderr, "       wavedump -arch <name> -hex <bytes>\n")
		fmt.Fprintf(os.Stderr, "       wavedump -arch <name> -stack <image.bin> [options]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
}

// runClassify decodes and classifies the whole .text section of a code
// object.
func runClassify(path string) int {
	co, err := loader.Inspect(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error inspecting code object: %v\n", err)
		return 1
	}

	if *verbose {
		fmt.Printf("Code object: %s\n", path)
		fmt.Printf("Architecture: %s (machine %#x, ABI v%d)\n",
			co.Arch, co.Machine, co.ABIVersion)
		fmt.Printf(".text: %d bytes at %#x\n\n", len(co.Text), co.TextAddr)
	}

	pc := co.TextAddr
	end := co.TextAddr + uint64(len(co.Text))
	for pc < end {
		off := pc - co.TextAddr
		c, err := co.Arch.Ops.Classify(pc, co.Text[off:])
		if err != nil {
			fmt.Printf("%#012x: %v\n", pc, err)
			pc += insts.MinAlignment
			continue
		}
		printClassification(pc, co.Text[off:off+uint64(c.Size)], c)
		pc += uint64(c.Size)
	}

	return 0
}

// runHex classifies a single hex-encoded instruction for a named
// architecture.
func runHex(name, s string) int {
	a, err := resolveArch(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding hex string: %v\n", err)
		return 1
	}

	c, err := a.Ops.Classify(0, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error classifying instruction: %v\n", err)
		return 1
	}
	printClassification(0, b[:c.Size], c)

	return 0
}

// runStack walks the control stack of a raw save image and prints one line
// per wave record.
func runStack(name, path string) int {
	a, err := resolveArch(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	image, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
		return 1
	}

	offset, size := *stackOffset, *stackSize
	switch {
	case offset == 0 && size == 0:
		fmt.Fprintf(os.Stderr, "Error: need -stack-offset or -stack-size\n")
		return 1
	case size == 0:
		size = uint64(len(image)) - offset
	case offset == 0:
		offset = uint64(len(image)) - size
	}
	if offset+size > uint64(len(image)) || size%4 != 0 {
		fmt.Fprintf(os.Stderr, "Error: control stack %#x+%#x does not fit the %d byte image\n",
			offset, size, len(image))
		return 1
	}

	stack := make([]uint32, size/4)
	for i := range stack {
		stack[i] = binary.LittleEndian.Uint32(image[offset+uint64(i)*4:])
	}

	// Wave save areas grow down from the control stack.
	waves, err := a.Format.IterateControlStack(imageStore(image), stack,
		offset, offset, func(r *cwsr.Record) error {
			printRecord(r)
			return nil
		})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking control stack: %v\n", err)
		return 1
	}

	if *verbose {
		fmt.Printf("\n%d waves, %d control stack words\n", waves, len(stack))
	}

	return 0
}

func resolveArch(name string) (*arch.Architecture, error) {
	if name == "" {
		return nil, fmt.Errorf("no architecture given, use -arch")
	}
	return arch.NewRegistry().FindName(name)
}

func printClassification(pc uint64, raw []byte, c insts.Classification) {
	var b strings.Builder
	fmt.Fprintf(&b, "%#012x: %-10x %v", pc, raw, c.Kind)
	if c.Cond != insts.CondNone {
		fmt.Fprintf(&b, " (%v)", c.Cond)
	}
	if c.HasTarget {
		fmt.Fprintf(&b, " -> %#x", c.Target)
	}
	if c.Kind == insts.KindTrap {
		fmt.Fprintf(&b, " id %d", c.TrapID)
	}
	fmt.Println(b.String())
}

func printRecord(r *cwsr.Record) {
	fmt.Printf("wave %d on se %d: wave%d, %d vgprs, %d sgprs, area [%#x, %#x)",
		r.ScoreboardID(), r.SEID(), r.LaneCount(),
		r.VGPRCount(), r.SGPRCount(), r.Begin(), r.End())
	if r.IsFirstWave() {
		fmt.Printf(", lds %d bytes", r.LDSSize())
	}
	fmt.Println()
}

// imageStore serves reads and writes against an in-memory raw image.
// Addresses are byte offsets into the image.
type imageStore []byte

func (m imageStore) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	if addr < uint64(len(m)) {
		copy(data, m[addr:])
	}
	return data
}

func (m imageStore) Write(addr uint64, data []byte) {
	if addr < uint64(len(m)) {
		copy(m[addr:], data)
	}
}
