// Package analysis holds the register analyses that scan an instruction list
// without building a dependency graph.
package analysis

import (
	"sort"

	"shadersched/internal/isa"
)

// Range is the span [Def, Use] of program positions over which a temporary
// register holds a live value.
type Range struct {
	Reg int
	Def int
	Use int
}

// Covers reports whether position pos lies inside the range.
func (r Range) Covers(pos int) bool {
	return r.Def <= pos && pos <= r.Use
}

// LiveRanges pairs the first write of every temporary register with its
// last read. Temporaries that are written but never read yield no range.
// Ranges are sorted by (Def, Use, Reg).
func LiveRanges(code []isa.Instruction) []Range {
	defs := make(map[int]int)
	for i := range code {
		in := &code[i]
		if in.WritesBank(isa.Temp) {
			if _, ok := defs[in.Dest.Index]; !ok {
				defs[in.Dest.Index] = i
			}
		}
	}

	var ranges []Range
	for i := len(code) - 1; i >= 0; i-- {
		for _, src := range code[i].Reads() {
			if src.Bank != isa.Temp {
				continue
			}
			def, ok := defs[src.Index]
			if !ok {
				continue
			}
			ranges = append(ranges, Range{Reg: src.Index, Def: def, Use: i})
			delete(defs, src.Index)
		}
	}

	sort.Slice(ranges, func(a, b int) bool {
		ra, rb := ranges[a], ranges[b]
		if ra.Def != rb.Def {
			return ra.Def < rb.Def
		}
		if ra.Use != rb.Use {
			return ra.Use < rb.Use
		}
		return ra.Reg < rb.Reg
	})
	return ranges
}

// MaxLiveTemps returns the largest number of temporaries live at any single
// program position. The count is a brute-force stabbing query over every
// range, which is cheap at shader program sizes.
func MaxLiveTemps(code []isa.Instruction) int {
	ranges := LiveRanges(code)
	max := 0
	for pos := range code {
		count := 0
		for _, r := range ranges {
			if r.Covers(pos) {
				count++
			}
		}
		if count > max {
			max = count
		}
	}
	return max
}
