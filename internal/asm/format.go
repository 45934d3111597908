package asm

import (
	"bytes"
	"fmt"
	"strings"

	"shadersched/internal/diag"
	"shadersched/internal/isa"
)

var letterByBank = func() map[isa.Bank]byte {
	m := make(map[isa.Bank]byte, len(bankByLetter))
	for letter, bank := range bankByLetter {
		m[bank] = letter
	}
	return m
}()

// Format renders one instruction in the syntax Parse accepts.
func Format(in *isa.Instruction) string {
	var sb strings.Builder
	if in.Predicated {
		sb.WriteByte('(')
		if in.NegatePredicate {
			sb.WriteByte('!')
		}
		fmt.Fprintf(&sb, "p%d) ", in.PredicateReg)
	}
	sb.WriteString(in.Opcode.String())
	if in.Saturate {
		sb.WriteString("_sat")
	}

	var operands []string
	if in.Dest != nil {
		operands = append(operands, formatDest(*in.Dest))
	}
	for i, src := range in.Reads() {
		operands = append(operands, formatSource(src, relativeFor(in, i)))
	}
	if in.Opcode.IsJump() {
		operands = append(operands, fmt.Sprint(in.JumpOffset))
	}
	if len(operands) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(operands, ", "))
	}
	return sb.String()
}

// relativeFor attaches the instruction's relative address to its first
// constant operand.
func relativeFor(in *isa.Instruction, operand int) *isa.Relative {
	if !in.Relative.Enabled {
		return nil
	}
	for i, src := range in.Reads() {
		if src.Bank == isa.Param || src.Bank == isa.Param2 || src.Bank == isa.In {
			if i == operand {
				return &in.Relative
			}
			return nil
		}
	}
	if operand == 0 {
		return &in.Relative
	}
	return nil
}

func bankLetter(b isa.Bank) string {
	if l, ok := letterByBank[b]; ok {
		return string(l)
	}
	return b.String()
}

func formatDest(r isa.Register) string {
	s := fmt.Sprintf("%s%d", bankLetter(r.Bank), r.Index)
	if r.Bank == isa.Pred || r.Mask == isa.MaskXYZW {
		return s
	}
	return s + "." + r.Mask.String()
}

func formatSource(r isa.Register, rel *isa.Relative) string {
	var sb strings.Builder
	sb.WriteString(bankLetter(r.Bank))
	if rel == nil || r.Index != 0 {
		fmt.Fprintf(&sb, "%d", r.Index)
	}
	if rel != nil {
		fmt.Fprintf(&sb, "[a%d.%s", rel.Reg, rel.Component)
		if rel.Offset != 0 {
			fmt.Fprintf(&sb, "%+d", rel.Offset)
		}
		sb.WriteByte(']')
	}
	if r.Bank != isa.Pred && r.Swizzle != isa.IdentitySwizzle {
		sb.WriteByte('.')
		sb.WriteString(r.Swizzle.String())
	}
	s := sb.String()
	if r.Absolute {
		s = "|" + s + "|"
	}
	if r.Negate {
		s = "-" + s
	}
	return s
}

// Codec decodes and encodes programs in text form. It satisfies the
// pipeline's Decoder and Encoder interfaces.
type Codec struct {
	// File names the program in diagnostics.
	File string
	// Latencies annotates decoded instructions.
	Latencies *isa.LatencyTable
	// Reporter receives parse errors. It may be nil.
	Reporter *diag.Reporter
}

// Decode parses a whole program.
func (c *Codec) Decode(src []byte) ([]isa.Instruction, error) {
	s, err := c.DecodeSource(src)
	if err != nil {
		return nil, err
	}
	return s.Code, nil
}

// DecodeSource parses a whole program and keeps its line table.
func (c *Codec) DecodeSource(src []byte) (*Source, error) {
	return Parse(c.File, src, c.Latencies, c.Reporter)
}

// Encode writes one instruction per line. Instructions carrying Text are
// written verbatim; the rest are formatted.
func (c *Codec) Encode(code []isa.Instruction) ([]byte, error) {
	var buf bytes.Buffer
	for i := range code {
		in := &code[i]
		if !in.Opcode.Valid() {
			return nil, fmt.Errorf("encode instruction %d: invalid %s", i, in.Opcode)
		}
		text := in.Text
		if text == "" {
			text = Format(in)
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
