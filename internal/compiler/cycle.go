package compiler

import (
	"fmt"
	"strings"
)

// Cycle is a set of nodes whose operands refer to each other.
type Cycle struct {
	Path []string `json:"path"` // ["a", "b", "a"]
}

func (c Cycle) String() string {
	return strings.Join(c.Path, " -> ")
}

// dependencyGraph maps a node name to the node names it reads, in
// declaration order. Parameters and literals are not vertices.
type dependencyGraph struct {
	order []string
	deps  map[string][]string
}

func buildDependencyGraph(spec *GraphSpec) dependencyGraph {
	g := dependencyGraph{deps: make(map[string][]string)}
	nodes := make(map[string]bool, len(spec.Nodes))
	for _, n := range spec.Nodes {
		nodes[n.Name] = true
	}
	for _, n := range spec.Nodes {
		g.order = append(g.order, n.Name)
		g.deps[n.Name] = []string{}
		for _, op := range n.operands() {
			if op.IsRef() && nodes[op.Ref] {
				g.deps[n.Name] = append(g.deps[n.Name], op.Ref)
			}
		}
	}
	return g
}

// orderNodes returns the node names with every node after the nodes it
// reads, plus the cycles that prevent such an order. Ties keep declaration
// order.
func orderNodes(spec *GraphSpec) ([]string, []Cycle) {
	g := buildDependencyGraph(spec)
	sccs := tarjanSCC(g)

	var order []string
	var cycles []Cycle
	for _, scc := range sccs {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			cycles = append(cycles, Cycle{Path: reconstructCyclePath(scc, g)})
			continue
		}
		order = append(order, scc[0])
	}
	return order, cycles
}

func hasSelfLoop(node string, g dependencyGraph) bool {
	for _, dep := range g.deps[node] {
		if dep == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of g. A component is
// emitted only after every component it depends on, so the result is a
// build order.
func tarjanSCC(g dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.deps[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside scc from its root back to it.
func reconstructCyclePath(scc []string, g dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	inSCC := make(map[string]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	// The root Tarjan visited first is popped last.
	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, dep := range g.deps[current] {
			if inSCC[dep] && (!visited[dep] || dep == start) {
				next = dep
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}

func cycleError(c Cycle) error {
	return fmt.Errorf("operands form a cycle: %s", c)
}
