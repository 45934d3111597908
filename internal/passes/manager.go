// Package passes runs the configured analysis and scheduling passes over a
// decoded shader program.
package passes

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"shadersched/internal/analysis"
	"shadersched/internal/depgraph"
	"shadersched/internal/isa"
	"shadersched/internal/sched"
)

// Kind selects a pass.
type Kind int

const (
	// Liveness computes the maximum number of simultaneously live
	// temporaries.
	Liveness Kind = iota
	// Usage records which input and output attributes the program uses.
	Usage
	// Scheduling builds the dependency graph and reorders the program.
	Scheduling
)

func (k Kind) String() string {
	switch k {
	case Liveness:
		return "liveness"
	case Usage:
		return "usage"
	case Scheduling:
		return "schedule"
	default:
		return fmt.Sprintf("pass(%d)", int(k))
	}
}

// DefaultKinds returns the standard pass order. The analyses observe the
// program in its input order; scheduling runs last.
func DefaultKinds() []Kind {
	return []Kind{Liveness, Usage, Scheduling}
}

// ParseKinds parses a comma-separated pass list such as "usage,schedule".
func ParseKinds(list string) ([]Kind, error) {
	var kinds []Kind
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "":
			continue
		case "liveness":
			kinds = append(kinds, Liveness)
		case "usage":
			kinds = append(kinds, Usage)
		case "schedule", "scheduling":
			kinds = append(kinds, Scheduling)
		default:
			return nil, fmt.Errorf("unknown pass %q (want liveness|usage|schedule)", name)
		}
	}
	return kinds, nil
}

// Program is the state the passes share for one optimization run.
type Program struct {
	Arch isa.ArchConfig
	Code []isa.Instruction

	// Set by the scheduling pass.
	Graph    *depgraph.Graph
	Schedule *sched.Result

	// Set by the liveness pass.
	MaxAliveTemps int

	// Set by the usage pass.
	InputsRead     []bool
	OutputsWritten []bool

	// OnCycle is handed to the scheduler; see sched.Scheduler.OnCycle.
	OnCycle func(cycle int, g *depgraph.Graph)
}

// Manager runs passes in the order they were added.
type Manager struct {
	kinds  []Kind
	logger *slog.Logger
}

// NewManager creates an empty manager. logger may be nil.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{logger: logger}
}

// Add appends passes to the run order.
func (m *Manager) Add(kinds ...Kind) {
	m.kinds = append(m.kinds, kinds...)
}

// Kinds returns the configured run order.
func (m *Manager) Kinds() []Kind {
	return append([]Kind(nil), m.kinds...)
}

// Run executes every pass over prog. A broken dependency-graph invariant
// aborts the run with an error wrapping *depgraph.InternalError.
func (m *Manager) Run(prog *Program) error {
	if prog == nil {
		return fmt.Errorf("passes require a non-nil program")
	}
	if err := prog.Arch.Validate(); err != nil {
		return err
	}
	for _, kind := range m.kinds {
		m.logger.Debug("running pass", "pass", kind.String(), "instructions", len(prog.Code))
		if err := m.runPass(kind, prog); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) runPass(kind Kind, prog *Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*depgraph.InternalError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("pass %s: %w", kind, ie)
		}
	}()

	switch kind {
	case Liveness:
		prog.MaxAliveTemps = analysis.MaxLiveTemps(prog.Code)
		m.logger.Debug("liveness analysis complete", "maxAliveTemps", prog.MaxAliveTemps)
	case Usage:
		u := analysis.RegisterUsage(prog.Code, prog.Arch.MaxAttributes)
		prog.InputsRead = u.InputsRead
		prog.OutputsWritten = u.OutputsWritten
		m.logger.Debug("usage analysis complete",
			"inputsRead", analysis.Indices(u.InputsRead),
			"outputsWritten", analysis.Indices(u.OutputsWritten))
	case Scheduling:
		return m.schedule(prog)
	default:
		return fmt.Errorf("unknown pass %s", kind)
	}
	return nil
}

func (m *Manager) schedule(prog *Program) error {
	g := depgraph.Build(prog.Code, prog.Arch)
	m.logger.Debug("dependency graph built",
		"nodes", g.Len(),
		"true", g.EdgeCount(depgraph.True),
		"false", g.EdgeCount(depgraph.False),
		"output", g.EdgeCount(depgraph.Output))

	s := sched.New(prog.Arch, m.logger)
	s.OnCycle = prog.OnCycle
	res, err := s.Schedule(g)
	if err != nil {
		return fmt.Errorf("pass %s: %w", Scheduling, err)
	}
	prog.Graph = g
	prog.Schedule = res
	prog.Code = sched.Reorder(prog.Code, res)
	return nil
}
