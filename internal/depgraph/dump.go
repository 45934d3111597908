package depgraph

import (
	"fmt"
	"io"
)

// Dump writes a human-readable listing of every node and its dependencies.
func Dump(g *Graph, w io.Writer) {
	if g == nil {
		fmt.Fprintln(w, "<nil graph>")
		return
	}
	fmt.Fprintln(w, "dependency graph:")
	for n := 0; n < g.Len(); n++ {
		fmt.Fprintf(w, "  %d: %s (latency %d, dependents %d)", n, g.Label(n), g.Latency(n), g.DependentCount(n))
		if ok, cycle := g.Scheduled(n); ok {
			fmt.Fprintf(w, " @%d", cycle)
		}
		fmt.Fprintln(w)
		for _, e := range g.Edges(n) {
			fmt.Fprintf(w, "    %-6s <- %d (distance %d)\n", e.Kind, e.Producer, e.Distance)
		}
	}
}
