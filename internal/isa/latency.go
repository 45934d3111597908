package isa

import (
	"fmt"
	"sort"
)

// LatencyTable maps every opcode to its execution latency in cycles.
type LatencyTable [NumOpcodes]int

// Latency tables of the supported shader architectures. Rows follow opcode
// order in groups of eight (00h-07h, 08h-0Fh, ...).
var latencyTables = map[string]*LatencyTable{
	"VarLatAOS": {
		1, 3, 2, 3, 1, 0, 0, 12,
		3, 3, 3, 4, 5, 9, 0, 3,
		5, 4, 9, 3, 3, 3, 3, 3,
		2, 5, 0, 5, 3, 3, 3, 3,
		12, 2, 3, 2, 2, 1, 1, 1,
		5, 3, 3, 3, 3, 3, 3, 3,
		1, 3, 3, 3, 16, 16, 1, 1,
	},
	"VarLatSOA": {
		1, 3, 2, 3, 1, 0, 0, 12,
		0, 0, 0, 4, 5, 9, 0, 3,
		5, 4, 9, 3, 3, 3, 3, 3,
		2, 5, 0, 5, 3, 3, 3, 3,
		12, 2, 3, 2, 2, 4, 3, 4,
		7, 3, 3, 3, 3, 3, 3, 3,
		1, 3, 3, 3, 16, 16, 1, 1,
	},
	"FixedLatAOS": {
		3, 3, 3, 3, 3, 0, 0, 12,
		3, 3, 3, 3, 3, 3, 0, 3,
		3, 3, 3, 3, 3, 3, 3, 3,
		3, 3, 0, 3, 3, 3, 3, 3,
		12, 3, 3, 3, 3, 3, 3, 3,
		3, 3, 3, 3, 3, 3, 3, 3,
		3, 3, 3, 3, 16, 16, 3, 3,
	},
	"FixedLatSOA": {
		3, 3, 3, 3, 3, 0, 0, 12,
		3, 3, 3, 3, 3, 3, 0, 3,
		3, 3, 3, 3, 3, 3, 3, 3,
		3, 3, 0, 3, 3, 3, 3, 3,
		12, 3, 3, 3, 3, 3, 3, 3,
		3, 3, 3, 3, 3, 3, 3, 3,
		3, 3, 3, 3, 16, 16, 3, 3,
	},
}

// UnitLatencies is a table where every opcode completes in one cycle.
const UnitLatencies = "Unit"

func init() {
	var unit LatencyTable
	for i := range unit {
		unit[i] = 1
	}
	latencyTables[UnitLatencies] = &unit
}

// ArchitectureNames returns the names of the known latency tables.
func ArchitectureNames() []string {
	names := make([]string, 0, len(latencyTables))
	for name := range latencyTables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupLatencies returns the latency table registered under name.
func LookupLatencies(name string) (*LatencyTable, error) {
	table, ok := latencyTables[name]
	if !ok {
		return nil, fmt.Errorf("unknown shader architecture %q", name)
	}
	return table, nil
}

// For returns the latency of op, or 0 for opcodes outside the table.
func (t *LatencyTable) For(op Opcode) int {
	if t == nil || int(op) >= NumOpcodes {
		return 0
	}
	return t[op]
}
