package core

import (
	"encoding/json"
	"sort"
)

// ExecutionGraph records directed agent handoffs. Nodes live in an arena
// indexed by name; adjacency is kept both as an ordered edge list (the audit
// trail preserves handoff order and multiplicity) and as a set for O(1)
// membership and cycle checks.
type ExecutionGraph struct {
	index map[string]int
	names []string
	edges [][]int
	sets  []map[int]struct{}
}

// NewExecutionGraph returns an empty graph.
func NewExecutionGraph() *ExecutionGraph {
	return &ExecutionGraph{index: make(map[string]int)}
}

// NewExecutionGraphFromEdges builds a graph from an adjacency map, e.g. a
// configured allow-list.
func NewExecutionGraphFromEdges(edges map[string][]string) *ExecutionGraph {
	g := NewExecutionGraph()
	froms := make([]string, 0, len(edges))
	for from := range edges {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		g.node(from)
		for _, to := range edges[from] {
			g.AddEdge(from, to)
		}
	}
	return g
}

func (g *ExecutionGraph) node(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.names)
	g.index[name] = i
	g.names = append(g.names, name)
	g.edges = append(g.edges, nil)
	g.sets = append(g.sets, make(map[int]struct{}))
	return i
}

// AddEdge appends a directed handoff from → to.
func (g *ExecutionGraph) AddEdge(from, to string) {
	f := g.node(from)
	t := g.node(to)
	g.edges[f] = append(g.edges[f], t)
	g.sets[f][t] = struct{}{}
}

// Has reports whether at least one from → to edge exists.
func (g *ExecutionGraph) Has(from, to string) bool {
	f, ok := g.index[from]
	if !ok {
		return false
	}
	t, ok := g.index[to]
	if !ok {
		return false
	}
	_, ok = g.sets[f][t]
	return ok
}

// Targets returns the distinct targets of from, in first-handoff order.
func (g *ExecutionGraph) Targets(from string) []string {
	f, ok := g.index[from]
	if !ok {
		return nil
	}
	seen := make(map[int]struct{}, len(g.edges[f]))
	var out []string
	for _, t := range g.edges[f] {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, g.names[t])
	}
	return out
}

// OutDegree counts recorded handoffs from → to including repeats.
func (g *ExecutionGraph) OutDegree(from, to string) int {
	f, ok := g.index[from]
	if !ok {
		return 0
	}
	t, ok := g.index[to]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range g.edges[f] {
		if e == t {
			n++
		}
	}
	return n
}

// Nodes returns every node name in insertion order.
func (g *ExecutionGraph) Nodes() []string {
	return append([]string(nil), g.names...)
}

// Edges exports the adjacency as a name-keyed map, preserving handoff order.
// Nodes without outgoing edges are omitted.
func (g *ExecutionGraph) Edges() map[string][]string {
	out := make(map[string][]string)
	for f, targets := range g.edges {
		if len(targets) == 0 {
			continue
		}
		list := make([]string, len(targets))
		for i, t := range targets {
			list[i] = g.names[t]
		}
		out[g.names[f]] = list
	}
	return out
}

// HasCycle reports whether the graph contains a directed cycle, including
// self-loops. It runs a depth-first search keeping a recursion stack; any
// back-edge into the stack is a cycle.
func (g *ExecutionGraph) HasCycle() bool {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	mark := make([]int, len(g.names))
	var visit func(n int) bool
	visit = func(n int) bool {
		mark[n] = inStack
		for _, t := range g.edges[n] {
			switch mark[t] {
			case inStack:
				return true
			case unvisited:
				if visit(t) {
					return true
				}
			}
		}
		mark[n] = done
		return false
	}
	for n := range g.names {
		if mark[n] == unvisited && visit(n) {
			return true
		}
	}
	return false
}

// Clone deep-copies the graph.
func (g *ExecutionGraph) Clone() *ExecutionGraph {
	out := &ExecutionGraph{
		index: make(map[string]int, len(g.index)),
		names: append([]string(nil), g.names...),
		edges: make([][]int, len(g.edges)),
		sets:  make([]map[int]struct{}, len(g.sets)),
	}
	for name, i := range g.index {
		out.index[name] = i
	}
	for i, targets := range g.edges {
		out.edges[i] = append([]int(nil), targets...)
	}
	for i, set := range g.sets {
		out.sets[i] = make(map[int]struct{}, len(set))
		for t := range set {
			out.sets[i][t] = struct{}{}
		}
	}
	return out
}

// MarshalJSON serializes the graph as its adjacency map so checkpoints stay
// readable.
func (g *ExecutionGraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Edges())
}

// UnmarshalJSON rebuilds the arena from an adjacency map.
func (g *ExecutionGraph) UnmarshalJSON(data []byte) error {
	var edges map[string][]string
	if err := json.Unmarshal(data, &edges); err != nil {
		return err
	}
	*g = *NewExecutionGraphFromEdges(edges)
	return nil
}
