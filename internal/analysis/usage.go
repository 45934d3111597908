package analysis

import "shadersched/internal/isa"

// Usage reports which attribute registers a program touches.
type Usage struct {
	InputsRead     []bool
	OutputsWritten []bool
}

// RegisterUsage marks every input register read by a source operand and
// every output register written, in arrays of maxAttributes entries.
// Registers beyond maxAttributes are ignored.
func RegisterUsage(code []isa.Instruction, maxAttributes int) Usage {
	u := Usage{
		InputsRead:     make([]bool, maxAttributes),
		OutputsWritten: make([]bool, maxAttributes),
	}
	for i := range code {
		in := &code[i]
		if in.WritesBank(isa.Out) {
			mark(u.OutputsWritten, in.Dest.Index)
		}
		for _, src := range in.Reads() {
			if src.Bank == isa.In {
				mark(u.InputsRead, src.Index)
			}
		}
	}
	return u
}

func mark(set []bool, idx int) {
	if idx >= 0 && idx < len(set) {
		set[idx] = true
	}
}

// Indices returns the positions set in a usage array.
func Indices(set []bool) []int {
	var out []int
	for i, v := range set {
		if v {
			out = append(out, i)
		}
	}
	return out
}
