package depgraph

import (
	"shadersched/internal/isa"
)

const noWriter = -1

// componentTable tracks, per register component, the last writer and the
// readers seen since that write.
type componentTable struct {
	bank       isa.Bank
	components int // components tracked per register (4, or 1 for predicates)
	writers    []int
	readers    [][]int
}

func newComponentTable(bank isa.Bank, registers, components int) *componentTable {
	t := &componentTable{
		bank:       bank,
		components: components,
		writers:    make([]int, registers*components),
		readers:    make([][]int, registers*components),
	}
	for i := range t.writers {
		t.writers[i] = noWriter
	}
	return t
}

func (t *componentTable) slot(reg int, c isa.Component) int {
	if reg < 0 || reg*t.components >= len(t.writers) {
		fatalf("Build", "%s register %d outside the configured bank of %d", t.bank, reg, len(t.writers)/t.components)
	}
	if t.components == 1 {
		return reg
	}
	return reg*t.components + int(c)
}

type builder struct {
	g    *Graph
	temp *componentTable
	out  *componentTable
	addr *componentTable
	pred *componentTable

	threadStateSetters []int
	sampleIDChangers   []int
}

// Build constructs the dependency graph of code in a single forward pass.
// Node i of the graph is code[i]. Hazards are tracked per register component
// in the temporary, output and address banks, and per register in the
// predicate bank. Table sizes come from arch.
//
// Build panics with *InternalError if an instruction writes a bank that
// cannot be written or names a register outside the configured banks.
func Build(code []isa.Instruction, arch isa.ArchConfig) *Graph {
	b := &builder{
		g:    New(len(code)),
		temp: newComponentTable(isa.Temp, arch.TemporaryRegisters, isa.NumComponents),
		out:  newComponentTable(isa.Out, arch.OutputRegisters, isa.NumComponents),
		addr: newComponentTable(isa.Addr, arch.AddressRegisters, isa.NumComponents),
		pred: newComponentTable(isa.Pred, arch.PredicateRegisters, 1),
	}
	for i := range code {
		b.visit(i, &code[i])
	}
	return b.g
}

func (b *builder) visit(n int, in *isa.Instruction) {
	label := in.Text
	if label == "" {
		label = in.Opcode.String()
	}
	b.g.SetInstruction(n, label, in.Latency)

	if in.Dest != nil {
		b.writeHazards(n, in.Dest)
	}
	b.orderThreadState(n, in.Opcode)

	for _, src := range in.Reads() {
		b.read(n, src)
	}
	if in.Relative.Enabled {
		slot := b.addr.slot(in.Relative.Reg, in.Relative.Component)
		b.trueFrom(b.addr, slot, n)
		b.addr.readers[slot] = append(b.addr.readers[slot], n)
	}
	if in.Predicated {
		slot := b.pred.slot(in.PredicateReg, isa.X)
		b.trueFrom(b.pred, slot, n)
	}

	// Recording the writer last keeps an instruction that reads and writes
	// the same component from depending on itself.
	if in.Dest != nil {
		b.recordWriter(n, in.Dest)
	}
}

func (b *builder) tableFor(bank isa.Bank) *componentTable {
	switch bank {
	case isa.Temp:
		return b.temp
	case isa.Out:
		return b.out
	case isa.Addr:
		return b.addr
	case isa.Pred:
		return b.pred
	default:
		fatalf("Build", "instruction writes %s bank; only temp, out, addr and pred registers are writable", bank)
		return nil
	}
}

func (b *builder) writeHazards(n int, dst *isa.Register) {
	t := b.tableFor(dst.Bank)
	if t == b.pred {
		slot := t.slot(dst.Index, isa.X)
		if w := t.writers[slot]; w != noWriter && w != n {
			b.g.AddOutput(w, n)
		}
		return
	}
	for c := isa.Component(0); c < isa.NumComponents; c++ {
		if !dst.Uses(c) {
			continue
		}
		slot := t.slot(dst.Index, c)
		// Shader code never reads output registers, so they carry no
		// anti-dependencies.
		if t != b.out {
			for _, r := range t.readers[slot] {
				if r != n {
					b.g.AddFalse(r, n)
				}
			}
		}
		if w := t.writers[slot]; w != noWriter && w != n {
			b.g.AddOutput(w, n)
		}
	}
}

func (b *builder) recordWriter(n int, dst *isa.Register) {
	t := b.tableFor(dst.Bank)
	if t == b.pred {
		t.writers[t.slot(dst.Index, isa.X)] = n
		return
	}
	for c := isa.Component(0); c < isa.NumComponents; c++ {
		if !dst.Uses(c) {
			continue
		}
		slot := t.slot(dst.Index, c)
		t.writers[slot] = n
		t.readers[slot] = t.readers[slot][:0]
	}
}

func (b *builder) read(n int, src isa.Register) {
	switch src.Bank {
	case isa.Temp:
		for c := isa.Component(0); c < isa.NumComponents; c++ {
			if !src.Uses(c) {
				continue
			}
			slot := b.temp.slot(src.Index, c)
			b.trueFrom(b.temp, slot, n)
			b.temp.readers[slot] = append(b.temp.readers[slot], n)
		}
	case isa.Pred:
		b.trueFrom(b.pred, b.pred.slot(src.Index, isa.X), n)
	}
}

func (b *builder) trueFrom(t *componentTable, slot, n int) {
	if w := t.writers[slot]; w != noWriter && w != n {
		b.g.AddTrue(w, n)
	}
}

// orderThreadState keeps thread-state changes (kills, z-exports, jumps) and
// sample-id changes in program order relative to each other.
func (b *builder) orderThreadState(n int, op isa.Opcode) {
	if op.SetsThreadState() {
		for _, s := range b.sampleIDChangers {
			b.g.AddFalse(s, n)
		}
		b.threadStateSetters = append(b.threadStateSetters, n)
	}
	if op.ChangesSampleID() {
		for _, s := range b.threadStateSetters {
			b.g.AddFalse(s, n)
		}
		b.sampleIDChangers = append(b.sampleIDChangers, n)
	}
}
