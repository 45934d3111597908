// Package depgraph records data hazards between the instructions of a linear
// shader program and tracks which of them the scheduler has issued.
package depgraph

import (
	"fmt"

	"golang.org/x/tools/container/intsets"
)

// Kind classifies a dependency edge.
type Kind int

const (
	// True is a read-after-write dependency.
	True Kind = iota
	// False is a write-after-read (anti) dependency.
	False
	// Output is a write-after-write dependency.
	Output

	numKinds
)

func (k Kind) String() string {
	switch k {
	case True:
		return "true"
	case False:
		return "false"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Edge is a dependency of Consumer on Producer. Distance is the number of
// instructions between them in program order.
type Edge struct {
	Kind     Kind
	Producer int
	Consumer int
	Distance int
}

// InternalError reports a broken graph invariant. Graph operations panic
// with it; a graph in that state would yield an unsound schedule.
type InternalError struct {
	Op  string
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("dependency graph: %s: %s", e.Op, e.Msg)
}

func fatalf(op, format string, args ...any) {
	panic(&InternalError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

type node struct {
	// deps[k] holds the producers this node depends on through kind k.
	deps [numKinds]intsets.Sparse
	// consumers holds the nodes with a true dependency rooted here.
	consumers intsets.Sparse

	label     string
	latency   int
	scheduled bool
	cycle     int
}

// Graph is the dependency graph of one program. Nodes are numbered by
// program order.
type Graph struct {
	nodes []node
}

// New creates a graph with n unconnected nodes.
func New(n int) *Graph {
	if n < 0 {
		fatalf("New", "negative node count %d", n)
	}
	return &Graph{nodes: make([]node, n)}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) node(op string, n int) *node {
	if n < 0 || n >= len(g.nodes) {
		fatalf(op, "node %d out of range [0, %d)", n, len(g.nodes))
	}
	return &g.nodes[n]
}

// SetInstruction records the description and latency of node n.
func (g *Graph) SetInstruction(n int, label string, latency int) {
	nd := g.node("SetInstruction", n)
	nd.label = label
	nd.latency = latency
}

// AddTrue records that reader consumes a value produced by writer.
func (g *Graph) AddTrue(writer, reader int) {
	g.addEdge("AddTrue", True, writer, reader)
}

// AddFalse records that writer overwrites a location reader still needs.
func (g *Graph) AddFalse(reader, writer int) {
	g.addEdge("AddFalse", False, reader, writer)
}

// AddOutput records that last overwrites a location first also writes.
func (g *Graph) AddOutput(first, last int) {
	g.addEdge("AddOutput", Output, first, last)
}

func (g *Graph) addEdge(op string, kind Kind, producer, consumer int) {
	p := g.node(op, producer)
	c := g.node(op, consumer)
	if producer == consumer {
		return
	}
	c.deps[kind].Insert(producer)
	if kind == True {
		p.consumers.Insert(consumer)
	}
}

// Deps returns the producers node n depends on through kind, ascending.
func (g *Graph) Deps(n int, kind Kind) []int {
	nd := g.node("Deps", n)
	if kind < 0 || kind >= numKinds {
		fatalf("Deps", "unknown dependency kind %d", int(kind))
	}
	return nd.deps[kind].AppendTo(nil)
}

// TrueDeps returns the producers of the values node n reads.
func (g *Graph) TrueDeps(n int) []int { return g.Deps(n, True) }

// FalseDeps returns the readers node n must not overtake.
func (g *Graph) FalseDeps(n int) []int { return g.Deps(n, False) }

// OutputDeps returns the earlier writers of the locations node n writes.
func (g *Graph) OutputDeps(n int) []int { return g.Deps(n, Output) }

// Edges returns every edge ending at node n, grouped by kind then producer.
func (g *Graph) Edges(n int) []Edge {
	nd := g.node("Edges", n)
	var edges []Edge
	for kind := Kind(0); kind < numKinds; kind++ {
		for _, p := range nd.deps[kind].AppendTo(nil) {
			edges = append(edges, Edge{Kind: kind, Producer: p, Consumer: n, Distance: distance(p, n)})
		}
	}
	return edges
}

// EdgeCount returns the number of edges of the given kind.
func (g *Graph) EdgeCount(kind Kind) int {
	total := 0
	for i := range g.nodes {
		total += g.nodes[i].deps[kind].Len()
	}
	return total
}

// DependentCount returns how many nodes carry a true dependency on node n.
func (g *Graph) DependentCount(n int) int {
	return g.node("DependentCount", n).consumers.Len()
}

// Latency returns the execution latency recorded for node n.
func (g *Graph) Latency(n int) int {
	return g.node("Latency", n).latency
}

// Label returns the description recorded for node n.
func (g *Graph) Label(n int) string {
	return g.node("Label", n).label
}

// MarkScheduled records that node n issues at cycle. It does not check
// that n's producers were issued before it.
func (g *Graph) MarkScheduled(n, cycle int) {
	nd := g.node("MarkScheduled", n)
	nd.scheduled = true
	nd.cycle = cycle
}

// Scheduled reports whether node n was issued and at which cycle.
func (g *Graph) Scheduled(n int) (bool, int) {
	nd := g.node("Scheduled", n)
	return nd.scheduled, nd.cycle
}

// ResetSchedule clears every scheduling annotation.
func (g *Graph) ResetSchedule() {
	for i := range g.nodes {
		g.nodes[i].scheduled = false
		g.nodes[i].cycle = 0
	}
}

// FreeNodes returns the unscheduled nodes whose producers, of every kind,
// are all scheduled. The result is ascending.
func (g *Graph) FreeNodes() []int {
	var free []int
	for i := range g.nodes {
		if g.isFree(i) {
			free = append(free, i)
		}
	}
	return free
}

func (g *Graph) isFree(n int) bool {
	nd := &g.nodes[n]
	if nd.scheduled {
		return false
	}
	var producers []int
	for kind := Kind(0); kind < numKinds; kind++ {
		producers = nd.deps[kind].AppendTo(producers[:0])
		for _, p := range producers {
			if !g.nodes[p].scheduled {
				return false
			}
		}
	}
	return true
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
