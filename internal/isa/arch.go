package isa

import "fmt"

// StallPolicy decides what the scheduler issues in a way when nothing is
// ready but instructions remain unscheduled.
type StallPolicy int

const (
	// ForceSchedule issues the lowest-numbered unscheduled instruction,
	// ignoring its producers' latencies. Suitable for targets that check
	// dependences in hardware.
	ForceSchedule StallPolicy = iota
	// InsertNops fills the way with a no-op and waits for latencies to
	// elapse.
	InsertNops
)

func (p StallPolicy) String() string {
	switch p {
	case ForceSchedule:
		return "force"
	case InsertNops:
		return "nop"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseStallPolicy converts a flag value to a StallPolicy.
func ParseStallPolicy(s string) (StallPolicy, error) {
	switch s {
	case "force", "":
		return ForceSchedule, nil
	case "nop":
		return InsertNops, nil
	default:
		return 0, fmt.Errorf("unknown stall policy %q (want force|nop)", s)
	}
}

// ArchConfig carries the architecture parameters of one optimization run.
// It replaces any process-wide architecture state: every component receives
// it explicitly.
type ArchConfig struct {
	// IssueWidth is the number of instructions issued per cycle.
	IssueWidth         int
	TemporaryRegisters int
	OutputRegisters    int
	AddressRegisters   int
	PredicateRegisters int
	// MaxAttributes sizes the input/output usage arrays.
	MaxAttributes int
	// Architecture names the latency table used to annotate instructions.
	Architecture string
	StallPolicy  StallPolicy
}

// DefaultArchConfig returns the parameters of the reference shader unit.
func DefaultArchConfig() ArchConfig {
	return ArchConfig{
		IssueWidth:         4,
		TemporaryRegisters: 32,
		OutputRegisters:    16,
		AddressRegisters:   1,
		PredicateRegisters: 32,
		MaxAttributes:      48,
		Architecture:       "VarLatAOS",
		StallPolicy:        ForceSchedule,
	}
}

// Validate checks that every table size is usable.
func (c ArchConfig) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"issue width", c.IssueWidth},
		{"temporary register count", c.TemporaryRegisters},
		{"output register count", c.OutputRegisters},
		{"address register count", c.AddressRegisters},
		{"predicate register count", c.PredicateRegisters},
		{"max attributes", c.MaxAttributes},
	}
	for _, chk := range checks {
		if chk.value <= 0 {
			return fmt.Errorf("invalid architecture config: %s must be positive (got %d)", chk.name, chk.value)
		}
	}
	if _, err := LookupLatencies(c.Architecture); err != nil {
		return fmt.Errorf("invalid architecture config: %w", err)
	}
	return nil
}

// Latencies returns the latency table selected by the config.
func (c ArchConfig) Latencies() (*LatencyTable, error) {
	return LookupLatencies(c.Architecture)
}

// BankSize returns how many registers of bank b the config declares, and
// whether b is a bank with a configured size.
func (c ArchConfig) BankSize(b Bank) (int, bool) {
	switch b {
	case Temp:
		return c.TemporaryRegisters, true
	case Out:
		return c.OutputRegisters, true
	case Addr:
		return c.AddressRegisters, true
	case Pred:
		return c.PredicateRegisters, true
	case In:
		return c.MaxAttributes, true
	default:
		return 0, false
	}
}
