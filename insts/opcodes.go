package insts

// opNone marks an instruction the generation does not have.
const opNone = -1

// MsgDeallocVGPRs is the sendmsg payload that releases a wave's vector
// registers ahead of its end.
const MsgDeallocVGPRs = 0x3

// OpcodeSet holds one generation's opcode numbers for the scalar
// control-flow instructions. Fields are opNone where the generation lacks
// the instruction.
type OpcodeSet struct {
	// SOPP opcodes.
	Endpgm      int
	Branch      int
	Barrier     int
	SetHalt     int
	Sleep       int
	Trap        int
	CodeEnd     int
	SendMsg     int
	BarrierWait int
	CBranch     map[int]Cond

	// SOPK opcodes.
	Call        int
	IFork       int
	SubvecBegin int
	SubvecEnd   int

	// SOP1 opcodes.
	GetPC  int
	SetPC  int
	SwapPC int
	Join   int

	// SOP2 opcodes.
	GFork int

	// gfx9 requires even register pairs on setpc's source and swappc's
	// destination; later generations dropped those encoding constraints.
	SetPCEvenSrc  bool
	SwapPCEvenDst bool

	// LargestSize is the generation's largest encoded instruction in bytes.
	LargestSize int
}

// GFX9Ops is the opcode table for gfx900 through gfx942.
var GFX9Ops = &OpcodeSet{
	Endpgm:  1,
	Branch:  2,
	Barrier: 10,
	SetHalt: 13,
	Sleep:   14,
	Trap:    18,
	CBranch: map[int]Cond{
		4:  CondSCC0,
		5:  CondSCC1,
		6:  CondVCCZ,
		7:  CondVCCNZ,
		8:  CondEXECZ,
		9:  CondEXECNZ,
		23: CondDbgSys,
		24: CondDbgUser,
		25: CondDbgSysOrUser,
		26: CondDbgSysAndUser,
	},
	CodeEnd:       opNone,
	SendMsg:       opNone,
	BarrierWait:   opNone,
	Call:          21,
	IFork:         16,
	SubvecBegin:   opNone,
	SubvecEnd:     opNone,
	GetPC:         28,
	SetPC:         29,
	SwapPC:        30,
	Join:          46,
	GFork:         41,
	SetPCEvenSrc:  true,
	SwapPCEvenDst: true,
	LargestSize:   16,
}

// GFX10Ops is the opcode table for gfx1010 through gfx1032.
var GFX10Ops = &OpcodeSet{
	Endpgm:  1,
	Branch:  2,
	Barrier: 10,
	SetHalt: 13,
	Sleep:   14,
	Trap:    18,
	CBranch: map[int]Cond{
		4:  CondSCC0,
		5:  CondSCC1,
		6:  CondVCCZ,
		7:  CondVCCNZ,
		8:  CondEXECZ,
		9:  CondEXECNZ,
		23: CondDbgSys,
		24: CondDbgUser,
		25: CondDbgSysOrUser,
		26: CondDbgSysAndUser,
	},
	CodeEnd:     31,
	SendMsg:     opNone,
	BarrierWait: opNone,
	Call:        22,
	IFork:       opNone,
	SubvecBegin: 27,
	SubvecEnd:   28,
	GetPC:       31,
	SetPC:       32,
	SwapPC:      33,
	Join:        opNone,
	GFork:       opNone,
	LargestSize: 20,
}

// GFX11Ops is the opcode table for gfx1100 through gfx1102.
var GFX11Ops = &OpcodeSet{
	Endpgm:  48,
	Branch:  32,
	Barrier: 61,
	SetHalt: 2,
	Sleep:   3,
	Trap:    16,
	CBranch: map[int]Cond{
		33: CondSCC0,
		34: CondSCC1,
		35: CondVCCZ,
		36: CondVCCNZ,
		37: CondEXECZ,
		38: CondEXECNZ,
		39: CondDbgSys,
		40: CondDbgUser,
		41: CondDbgSysOrUser,
		42: CondDbgSysAndUser,
	},
	CodeEnd:     31,
	SendMsg:     54,
	BarrierWait: opNone,
	Call:        20,
	IFork:       opNone,
	SubvecBegin: 22,
	SubvecEnd:   23,
	GetPC:       71,
	SetPC:       72,
	SwapPC:      73,
	Join:        opNone,
	GFork:       opNone,
	LargestSize: 20,
}

// GFX12Ops is the opcode table for gfx1200 and gfx1201.
var GFX12Ops = &OpcodeSet{
	Endpgm:  48,
	Branch:  32,
	Barrier: opNone,
	SetHalt: 2,
	Sleep:   3,
	Trap:    16,
	CBranch: map[int]Cond{
		33: CondSCC0,
		34: CondSCC1,
		35: CondVCCZ,
		36: CondVCCNZ,
		37: CondEXECZ,
		38: CondEXECNZ,
	},
	CodeEnd:     opNone,
	SendMsg:     54,
	BarrierWait: 20,
	Call:        20,
	IFork:       opNone,
	SubvecBegin: opNone,
	SubvecEnd:   opNone,
	GetPC:       71,
	SetPC:       72,
	SwapPC:      73,
	Join:        opNone,
	GFork:       opNone,
	LargestSize: 24,
}
