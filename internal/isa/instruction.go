package isa

// MaxSources is the maximum number of read operands an instruction encodes.
const MaxSources = 3

// Relative describes indirect addressing through an address register.
type Relative struct {
	Enabled   bool
	Reg       int
	Component Component
	Offset    int
}

// Instruction is a decoded shader instruction. The dependency builder and
// the scheduler reference instructions only by Line.
type Instruction struct {
	// Line is the position of the instruction in the input program.
	Line    int
	Opcode  Opcode
	Sources []Register
	// Dest is present iff Opcode.WritesRegister().
	Dest *Register

	Saturate        bool
	Predicated      bool
	NegatePredicate bool
	PredicateReg    int
	Relative        Relative
	JumpOffset      int
	// End marks the last instruction of the program.
	End bool

	// Latency is the execution latency in cycles supplied by the
	// architecture for Opcode.
	Latency int
	// Text is the disassembly produced by the codec; carried untouched.
	Text string
}

// NewNop builds the no-op the scheduler uses to fill empty issue ways.
func NewNop(line int) Instruction {
	return Instruction{Line: line, Opcode: NOP, Text: "nop"}
}

// IsNop reports whether the instruction is a no-op.
func (in *Instruction) IsNop() bool {
	return in.Opcode == NOP
}

// Writes reports whether the instruction writes a register.
func (in *Instruction) Writes() bool {
	return in.Dest != nil
}

// WritesBank reports whether the instruction writes a register in bank b.
func (in *Instruction) WritesBank(b Bank) bool {
	return in.Dest != nil && in.Dest.Bank == b
}

// Reads returns the read operands the opcode actually encodes.
func (in *Instruction) Reads() []Register {
	n := in.Opcode.NumOperands()
	if n > len(in.Sources) {
		n = len(in.Sources)
	}
	return in.Sources[:n]
}

// Clone returns a deep copy of the instruction.
func (in Instruction) Clone() Instruction {
	out := in
	if in.Sources != nil {
		out.Sources = append([]Register(nil), in.Sources...)
	}
	if in.Dest != nil {
		d := *in.Dest
		out.Dest = &d
	}
	return out
}
