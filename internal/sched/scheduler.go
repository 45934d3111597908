// Package sched implements a deterministic multi-issue list scheduler over a
// dependency graph.
package sched

import (
	"container/heap"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/tools/container/intsets"

	"shadersched/internal/depgraph"
	"shadersched/internal/isa"
)

// Slot is one issued instruction. Node values at or beyond the program
// length denote synthetic no-ops.
type Slot struct {
	Node  int
	Cycle int
	Way   int
}

// Result is the outcome of scheduling one graph.
type Result struct {
	// Slots are ordered by (cycle, way).
	Slots []Slot
	// Instructions is the number of real instructions scheduled.
	Instructions int
	Cycles       int
	// Forced counts instructions issued before their producers' latencies
	// had elapsed.
	Forced int
	Nops   int
}

// Order returns the issued node ids in emission order.
func (r *Result) Order() []int {
	order := make([]int, len(r.Slots))
	for i, s := range r.Slots {
		order[i] = s.Node
	}
	return order
}

// Scheduler issues up to IssueWidth instructions per cycle, highest
// dependent count first.
type Scheduler struct {
	issueWidth int
	policy     isa.StallPolicy
	logger     *slog.Logger

	// OnCycle, when set, is called after every cycle with the graph's
	// scheduling annotations up to date.
	OnCycle func(cycle int, g *depgraph.Graph)
}

// New creates a scheduler for the issue width and stall policy of arch.
// logger may be nil.
func New(arch isa.ArchConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		issueWidth: arch.IssueWidth,
		policy:     arch.StallPolicy,
		logger:     logger,
	}
}

// Schedule assigns every node of g to a (cycle, way) slot and marks it
// scheduled in g. Ways left empty once every node is issued are filled with
// synthetic no-ops numbered from g.Len() upward.
func (s *Scheduler) Schedule(g *depgraph.Graph) (*Result, error) {
	if g == nil {
		return nil, fmt.Errorf("schedule requires a dependency graph")
	}
	if s.issueWidth <= 0 {
		return nil, fmt.Errorf("schedule requires a positive issue width (got %d)", s.issueWidth)
	}

	n := g.Len()
	var unscheduled intsets.Sparse
	maxLatency := 0
	for i := 0; i < n; i++ {
		unscheduled.Insert(i)
		if lat := g.Latency(i); lat > maxLatency {
			maxLatency = lat
		}
	}

	res := &Result{Instructions: n}
	nextNop := n
	idle := 0
	for cycle := 0; !unscheduled.IsEmpty(); cycle++ {
		ready := s.readyQueue(g, cycle)
		issued := 0
		for way := 0; way < s.issueWidth; way++ {
			node := -1
			switch {
			case ready.Len() > 0:
				node = heap.Pop(ready).(candidate).node
			case !unscheduled.IsEmpty() && s.policy == isa.ForceSchedule:
				node = unscheduled.Min()
				res.Forced++
				s.logger.Debug("forcing instruction", "node", node, "cycle", cycle)
			}
			if node < 0 {
				res.Slots = append(res.Slots, Slot{Node: nextNop, Cycle: cycle, Way: way})
				nextNop++
				res.Nops++
				continue
			}
			unscheduled.Remove(node)
			g.MarkScheduled(node, cycle)
			res.Slots = append(res.Slots, Slot{Node: node, Cycle: cycle, Way: way})
			issued++
		}
		res.Cycles = cycle + 1
		if s.OnCycle != nil {
			s.OnCycle(cycle, g)
		}

		if issued > 0 {
			idle = 0
			continue
		}
		// The lowest unscheduled node is always free, so it must become
		// ready once its producers' latencies elapse.
		idle++
		if idle > maxLatency+1 {
			return nil, fmt.Errorf("scheduler made no progress for %d cycles at cycle %d", idle, cycle)
		}
	}

	s.logger.Debug("schedule complete",
		"instructions", n,
		"cycles", res.Cycles,
		"forced", res.Forced,
		"nops", res.Nops)
	return res, nil
}

// readyQueue collects the free nodes whose true-dependency producers have
// completed by cycle.
func (s *Scheduler) readyQueue(g *depgraph.Graph, cycle int) *readyQueue {
	q := &readyQueue{}
	for _, n := range g.FreeNodes() {
		if latencySatisfied(g, n, cycle) {
			*q = append(*q, candidate{node: n, dependents: g.DependentCount(n)})
		}
	}
	heap.Init(q)
	return q
}

func latencySatisfied(g *depgraph.Graph, n, cycle int) bool {
	for _, p := range g.TrueDeps(n) {
		_, at := g.Scheduled(p)
		if cycle-at < g.Latency(p) {
			return false
		}
	}
	return true
}

type candidate struct {
	node       int
	dependents int
}

// readyQueue is a max-heap on dependent count; equal counts pop in
// ascending node order.
type readyQueue []candidate

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].dependents != q[j].dependents {
		return q[i].dependents > q[j].dependents
	}
	return q[i].node < q[j].node
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(candidate)) }

func (q *readyQueue) Pop() any {
	old := *q
	last := old[len(old)-1]
	*q = old[:len(old)-1]
	return last
}

// Reorder returns code in the order of res. Slots naming synthetic no-ops
// become no-op instructions. Instructions are copied; code is not modified.
func Reorder(code []isa.Instruction, res *Result) []isa.Instruction {
	out := make([]isa.Instruction, 0, len(res.Slots))
	for _, slot := range res.Slots {
		if slot.Node < len(code) {
			out = append(out, code[slot.Node].Clone())
			continue
		}
		out = append(out, isa.NewNop(slot.Node))
	}
	return out
}
