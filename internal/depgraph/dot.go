package depgraph

import (
	"fmt"
	"io"
	"strings"
)

// DOTOptions controls Graphviz output.
type DOTOptions struct {
	// Group places nodes sharing a label in one subgraph.
	Group bool
	// Cluster draws groups as boxed clusters. Only meaningful with Group.
	Cluster bool
}

// WriteDOT renders the graph in Graphviz format. True edges are labelled
// with the producer latency, false edges end in a tee and output edges in a
// dot. Scheduled nodes are filled and show their cycle; free nodes are red.
func WriteDOT(g *Graph, w io.Writer, opts DOTOptions) error {
	if g == nil {
		return fmt.Errorf("no dependency graph to render")
	}
	p := &dotPrinter{w: w, g: g, free: make(map[int]bool)}
	for _, n := range g.FreeNodes() {
		p.free[n] = true
	}

	p.line("digraph DependencyGraph {")
	p.indent++
	if opts.Group {
		p.emitGroups(opts.Cluster)
	} else {
		for n := 0; n < g.Len(); n++ {
			p.emitNode(n)
		}
	}
	for n := 0; n < g.Len(); n++ {
		p.emitEdges(n)
	}
	p.indent--
	p.line("}")
	return p.err
}

type dotPrinter struct {
	w      io.Writer
	g      *Graph
	free   map[int]bool
	indent int
	err    error
}

func (p *dotPrinter) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func (p *dotPrinter) emitGroups(cluster bool) {
	seen := make(map[string]bool)
	for n := 0; n < p.g.Len(); n++ {
		label := p.g.Label(n)
		if seen[label] {
			continue
		}
		seen[label] = true
		name := label
		if cluster {
			name = "cluster_" + label
		}
		p.line("subgraph %q {", name)
		p.indent++
		p.line("style=filled;")
		p.line("color=navajowhite;")
		for m := n; m < p.g.Len(); m++ {
			if p.g.Label(m) == label {
				p.emitNode(m)
			}
		}
		p.indent--
		p.line("}")
	}
}

func (p *dotPrinter) emitNode(n int) {
	attrs := []string{}
	label := fmt.Sprintf("i%d:\\n %s", n, escapeDOT(p.g.Label(n)))
	if ok, cycle := p.g.Scheduled(n); ok {
		label += fmt.Sprintf("\\n (cycle %d)", cycle)
		attrs = append(attrs, "style=filled")
	}
	attrs = append([]string{fmt.Sprintf("label=\"%s\"", label)}, attrs...)
	attrs = append(attrs, "shape=ellipse")
	if p.free[n] {
		attrs = append(attrs, "color=red")
	}
	p.line("%d [%s];", n, strings.Join(attrs, ", "))
}

func (p *dotPrinter) emitEdges(n int) {
	for _, e := range p.g.Edges(n) {
		switch e.Kind {
		case True:
			p.line("%d -> %d [arrowhead=normal, label=\"lat: %d\"];", e.Producer, n, p.g.Latency(e.Producer))
		case False:
			p.line("%d -> %d [arrowhead=tee];", e.Producer, n)
		case Output:
			p.line("%d -> %d [arrowhead=odot];", e.Producer, n)
		}
	}
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
