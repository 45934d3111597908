// Package asm reads and writes the textual shader assembly used by the
// command-line tool and the tests. It stands in for the binary instruction
// codec: it produces decoded instructions annotated with latencies and turns
// scheduled instructions back into text.
package asm

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"shadersched/internal/diag"
	"shadersched/internal/isa"
)

// Source is a parsed program together with the source line of every
// instruction.
type Source struct {
	File  string
	Code  []isa.Instruction
	Lines []int
}

// Pos returns the diagnostic position of instruction i.
func (s *Source) Pos(i int) diag.Pos {
	if i < 0 || i >= len(s.Lines) {
		return diag.Pos{File: s.File}
	}
	return diag.Pos{File: s.File, Line: s.Lines[i]}
}

var bankByLetter = map[byte]isa.Bank{
	'r': isa.Temp,
	'i': isa.In,
	'o': isa.Out,
	'c': isa.Param,
	'a': isa.Addr,
	'p': isa.Pred,
	't': isa.Texture,
	'l': isa.Imm,
}

// Parse reads a program. Every malformed line is reported to reporter;
// the returned error summarises the count. latencies annotates each
// instruction and may be nil, leaving latencies at zero.
func Parse(file string, src []byte, latencies *isa.LatencyTable, reporter *diag.Reporter) (*Source, error) {
	out := &Source{File: file}
	errs := 0
	sc := bufio.NewScanner(bytes.NewReader(src))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := stripComment(sc.Text())
		if text == "" {
			continue
		}
		in, err := parseInstruction(text)
		if err != nil {
			errs++
			if reporter != nil {
				reporter.Error(diag.Pos{File: file, Line: lineNo}, err.Error())
			}
			continue
		}
		in.Line = len(out.Code)
		in.Latency = latencies.For(in.Opcode)
		in.Text = Format(&in)
		out.Code = append(out.Code, in)
		out.Lines = append(out.Lines, lineNo)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if errs > 0 {
		return nil, fmt.Errorf("%s: %d malformed instruction(s)", file, errs)
	}
	if n := len(out.Code); n > 0 {
		out.Code[n-1].End = true
	}
	return out, nil
}

// LoadFile reads and parses the program stored at path.
func LoadFile(path string, latencies *isa.LatencyTable, reporter *diag.Reporter) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, data, latencies, reporter)
}

func stripComment(line string) string {
	if idx := strings.IndexAny(line, "#;"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

func parseInstruction(text string) (isa.Instruction, error) {
	var in isa.Instruction

	if strings.HasPrefix(text, "(") {
		end := strings.IndexByte(text, ')')
		if end < 0 {
			return in, fmt.Errorf("unterminated predicate in %q", text)
		}
		if err := parsePredicate(text[1:end], &in); err != nil {
			return in, err
		}
		text = strings.TrimSpace(text[end+1:])
	}

	mnemonic, rest := text, ""
	if idx := strings.IndexAny(text, " \t"); idx >= 0 {
		mnemonic, rest = text[:idx], text[idx+1:]
	}
	mnemonic = strings.ToLower(mnemonic)
	if base, ok := strings.CutSuffix(mnemonic, "_sat"); ok {
		mnemonic = base
		in.Saturate = true
	}
	op, ok := isa.LookupOpcode(mnemonic)
	if !ok {
		return in, fmt.Errorf("unknown opcode %q", mnemonic)
	}
	in.Opcode = op

	var operands []string
	if rest = strings.TrimSpace(rest); rest != "" {
		for _, field := range strings.Split(rest, ",") {
			operands = append(operands, strings.TrimSpace(field))
		}
	}

	want := op.NumOperands()
	if op.WritesRegister() {
		want++
	}
	if op.IsJump() {
		want++
	}
	if len(operands) != want {
		return in, fmt.Errorf("%s expects %d operand(s), got %d", op, want, len(operands))
	}

	if op.WritesRegister() {
		dst, err := parseDest(operands[0])
		if err != nil {
			return in, err
		}
		in.Dest = &dst
		operands = operands[1:]
	}
	if op.IsJump() {
		offset, err := strconv.Atoi(operands[len(operands)-1])
		if err != nil {
			return in, fmt.Errorf("invalid jump offset %q", operands[len(operands)-1])
		}
		in.JumpOffset = offset
		operands = operands[:len(operands)-1]
	}
	relOperand := -1
	for i, text := range operands {
		src, rel, err := parseSource(text)
		if err != nil {
			return in, err
		}
		if rel != nil {
			if in.Relative.Enabled {
				return in, fmt.Errorf("only one operand may use relative addressing")
			}
			in.Relative = *rel
			relOperand = i
		}
		in.Sources = append(in.Sources, src)
	}
	if relOperand >= 0 && relativeFor(&in, relOperand) == nil {
		return in, fmt.Errorf("relative addressing must apply to the first constant or input operand")
	}
	return in, nil
}

func parsePredicate(text string, in *isa.Instruction) error {
	text = strings.TrimSpace(text)
	if neg, ok := strings.CutPrefix(text, "!"); ok {
		in.NegatePredicate = true
		text = strings.TrimSpace(neg)
	}
	if len(text) < 2 || text[0] != 'p' {
		return fmt.Errorf("invalid predicate %q", text)
	}
	idx, err := strconv.Atoi(text[1:])
	if err != nil || idx < 0 {
		return fmt.Errorf("invalid predicate %q", text)
	}
	in.Predicated = true
	in.PredicateReg = idx
	return nil
}

// splitRegister separates "r12[a0.x+1].xy" into bank, index, relative part
// and suffix.
func splitRegister(text string) (isa.Bank, int, string, string, error) {
	if text == "" {
		return isa.Invalid, 0, "", "", fmt.Errorf("missing register")
	}
	bank, ok := bankByLetter[text[0]]
	if !ok {
		return isa.Invalid, 0, "", "", fmt.Errorf("unknown register bank in %q", text)
	}
	rest := text[1:]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	index := 0
	if digits > 0 {
		index, _ = strconv.Atoi(rest[:digits])
	}
	rest = rest[digits:]

	var rel string
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return isa.Invalid, 0, "", "", fmt.Errorf("unterminated relative address in %q", text)
		}
		rel = rest[1:end]
		rest = rest[end+1:]
	} else if digits == 0 {
		return isa.Invalid, 0, "", "", fmt.Errorf("missing register index in %q", text)
	}

	suffix := ""
	if rest != "" {
		s, ok := strings.CutPrefix(rest, ".")
		if !ok || s == "" {
			return isa.Invalid, 0, "", "", fmt.Errorf("malformed register %q", text)
		}
		suffix = s
	}
	return bank, index, rel, suffix, nil
}

func parseDest(text string) (isa.Register, error) {
	bank, index, rel, suffix, err := splitRegister(text)
	if err != nil {
		return isa.Register{}, err
	}
	if rel != "" {
		return isa.Register{}, fmt.Errorf("destination %q cannot use relative addressing", text)
	}
	if bank == isa.Pred {
		return isa.Dst(bank, index, isa.MaskOf(isa.X)), nil
	}
	mask := isa.MaskXYZW
	if suffix != "" {
		mask, err = parseMask(suffix)
		if err != nil {
			return isa.Register{}, fmt.Errorf("destination %q: %w", text, err)
		}
	}
	return isa.Dst(bank, index, mask), nil
}

func parseMask(s string) (isa.Mask, error) {
	var mask isa.Mask
	last := -1
	for i := 0; i < len(s); i++ {
		c, ok := isa.ParseComponent(s[i])
		if !ok {
			return 0, fmt.Errorf("invalid write mask %q", s)
		}
		if int(c) <= last {
			return 0, fmt.Errorf("write mask %q must list components in xyzw order", s)
		}
		last = int(c)
		mask |= isa.MaskOf(c)
	}
	return mask, nil
}

func parseSource(text string) (isa.Register, *isa.Relative, error) {
	negate := false
	if s, ok := strings.CutPrefix(text, "-"); ok {
		negate = true
		text = s
	}
	absolute := false
	if len(text) >= 2 && text[0] == '|' && text[len(text)-1] == '|' {
		absolute = true
		text = text[1 : len(text)-1]
	}

	bank, index, relText, suffix, err := splitRegister(text)
	if err != nil {
		return isa.Register{}, nil, err
	}
	swz := isa.IdentitySwizzle
	if suffix != "" && bank != isa.Pred {
		swz, err = parseSwizzle(suffix)
		if err != nil {
			return isa.Register{}, nil, fmt.Errorf("source %q: %w", text, err)
		}
	}
	reg := isa.Src(bank, index, swz)
	reg.Negate = negate
	reg.Absolute = absolute

	if relText == "" {
		return reg, nil, nil
	}
	rel, err := parseRelative(relText)
	if err != nil {
		return isa.Register{}, nil, fmt.Errorf("source %q: %w", text, err)
	}
	return reg, rel, nil
}

func parseSwizzle(s string) (isa.Swizzle, error) {
	if len(s) > isa.NumComponents {
		return isa.Swizzle{}, fmt.Errorf("swizzle %q has more than four components", s)
	}
	var swz isa.Swizzle
	for i := 0; i < isa.NumComponents; i++ {
		j := i
		if j >= len(s) {
			j = len(s) - 1
		}
		c, ok := isa.ParseComponent(s[j])
		if !ok {
			return isa.Swizzle{}, fmt.Errorf("invalid swizzle %q", s)
		}
		swz[i] = c
	}
	return swz, nil
}

// parseRelative reads "a0.x", "a0.x+4" or "a0.y-2".
func parseRelative(s string) (*isa.Relative, error) {
	offset := 0
	base := s
	if idx := strings.IndexAny(s, "+-"); idx >= 0 {
		v, err := strconv.Atoi(s[idx:])
		if err != nil {
			return nil, fmt.Errorf("invalid relative offset in %q", s)
		}
		offset = v
		base = s[:idx]
	}
	regText, compText, ok := strings.Cut(base, ".")
	if !ok || len(compText) != 1 || len(regText) < 2 || regText[0] != 'a' {
		return nil, fmt.Errorf("invalid relative address %q", s)
	}
	reg, err := strconv.Atoi(regText[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid relative address %q", s)
	}
	comp, ok := isa.ParseComponent(compText[0])
	if !ok {
		return nil, fmt.Errorf("invalid relative address %q", s)
	}
	return &isa.Relative{Enabled: true, Reg: reg, Component: comp, Offset: offset}, nil
}
