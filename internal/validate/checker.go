package validate

import (
	"fmt"

	"shadersched/internal/asm"
	"shadersched/internal/diag"
	"shadersched/internal/isa"
)

// CheckProgram validates that every instruction of src can be handed to the
// dependency builder under arch: opcodes are known, operand counts match,
// destinations name writable banks and every tracked register lies inside
// the configured bank sizes.
func CheckProgram(src *asm.Source, arch isa.ArchConfig, reporter *diag.Reporter) error {
	if src == nil {
		return fmt.Errorf("no program provided for validation")
	}
	if reporter == nil {
		return fmt.Errorf("no reporter provided for validation")
	}
	if err := arch.Validate(); err != nil {
		return err
	}

	c := &checker{reporter: reporter, src: src, arch: arch}
	for i := range src.Code {
		c.checkInstruction(i, &src.Code[i])
	}
	if c.errCount > 0 {
		return fmt.Errorf("validation failed with %d issue(s)", c.errCount)
	}
	return nil
}

type checker struct {
	reporter *diag.Reporter
	errCount int
	src      *asm.Source
	arch     isa.ArchConfig
}

func (c *checker) checkInstruction(i int, in *isa.Instruction) {
	if !in.Opcode.Valid() {
		c.error(i, "unknown %s", in.Opcode)
		return
	}
	if n := in.Opcode.NumOperands(); len(in.Sources) < n {
		c.error(i, "%s reads %d operand(s), got %d", in.Opcode, n, len(in.Sources))
	}

	switch {
	case in.Opcode.WritesRegister() && in.Dest == nil:
		c.error(i, "%s requires a destination register", in.Opcode)
	case !in.Opcode.WritesRegister() && in.Dest != nil:
		c.error(i, "%s does not write a register", in.Opcode)
	case in.Dest != nil:
		c.checkDest(i, *in.Dest)
	}

	for _, src := range in.Reads() {
		c.checkSource(i, src)
	}
	if in.Predicated {
		c.checkIndex(i, isa.Pred, in.PredicateReg, "predicate")
	}
	if in.Relative.Enabled {
		c.checkIndex(i, isa.Addr, in.Relative.Reg, "relative address")
	}
	if in.Opcode.IsJump() && in.JumpOffset == 0 {
		c.warn(i, "jmp with zero offset")
	}
}

func (c *checker) checkDest(i int, dst isa.Register) {
	switch dst.Bank {
	case isa.Temp, isa.Out, isa.Addr, isa.Pred:
	default:
		c.error(i, "%s registers cannot be written", dst.Bank)
		return
	}
	if dst.Mask == 0 {
		c.error(i, "destination %s has an empty write mask", dst)
	}
	c.checkIndex(i, dst.Bank, dst.Index, "destination")
}

func (c *checker) checkSource(i int, src isa.Register) {
	switch src.Bank {
	case isa.Out:
		c.error(i, "output registers cannot be read")
	case isa.Temp, isa.Pred, isa.In:
		c.checkIndex(i, src.Bank, src.Index, "source")
	}
}

func (c *checker) checkIndex(i int, bank isa.Bank, index int, role string) {
	size, ok := c.arch.BankSize(bank)
	if !ok {
		return
	}
	if index < 0 || index >= size {
		c.error(i, "%s %s register %d outside the configured bank of %d", role, bank, index, size)
	}
}

func (c *checker) error(i int, format string, args ...any) {
	c.errCount++
	if c.reporter != nil {
		c.reporter.Error(c.src.Pos(i), fmt.Sprintf(format, args...))
	}
}

func (c *checker) warn(i int, format string, args ...any) {
	if c.reporter != nil {
		c.reporter.Warn(c.src.Pos(i), fmt.Sprintf(format, args...))
	}
}
