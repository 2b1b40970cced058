package compiler

import (
	"fmt"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Build constructs the graph a validated description denotes. Trapping
// nodes join the control chain in declaration order; floating nodes that
// no output or trapping node reads are dropped.
func Build(spec *GraphSpec) (*ir.Graph, error) {
	order, cycles := orderNodes(spec)
	if len(cycles) > 0 {
		return nil, cycleError(cycles[0])
	}

	g := ir.NewGraph(spec.Name)
	values := make(map[string]*ir.Node)
	widths := make(map[string]int)
	for _, p := range spec.Params {
		n, err := g.AddParam(p.Name, stamp.ForRange(p.Bits, p.Min, p.Max))
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", spec.Name, err)
		}
		values[p.Name] = n
		widths[p.Name] = p.Bits
	}

	decl := make(map[string]*NodeSpec, len(spec.Nodes))
	for i := range spec.Nodes {
		decl[spec.Nodes[i].Name] = &spec.Nodes[i]
	}

	for _, name := range order {
		ns := decl[name]
		op, ok := ir.ParseOp(ns.Op)
		if !ok {
			return nil, fmt.Errorf("build %s: node %s: unknown op %q", spec.Name, name, ns.Op)
		}
		w := nodeWidth(op, ns, widths)
		widths[name] = w

		operand := func(i int, o Operand) (*ir.Node, error) {
			if o.IsLiteral() {
				return g.Const(literalWidth(op, i, w), o.Literal), nil
			}
			n, ok := values[o.Ref]
			if !ok {
				return nil, fmt.Errorf("build %s: node %s: undefined operand %q", spec.Name, name, o.Ref)
			}
			return n, nil
		}
		x, err := operand(0, ns.X)
		if err != nil {
			return nil, err
		}
		if op == ir.OpNeg {
			values[name] = ir.NewNeg(x)
			continue
		}
		y, err := operand(1, ns.Y)
		if err != nil {
			return nil, err
		}
		var state *ir.FrameState
		if ns.HasBCI {
			state = &ir.FrameState{BCI: ns.BCI, Method: ns.Method}
		}
		values[name] = ir.NewBinary(op, x, y, state)
	}

	for _, ns := range spec.Nodes {
		n := values[ns.Name]
		if !n.IsFixed() {
			continue
		}
		if _, err := g.AppendFixed(n); err != nil {
			return nil, fmt.Errorf("build %s: node %s: %w", spec.Name, ns.Name, err)
		}
	}
	for _, name := range spec.Outputs {
		n, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("build %s: undefined output %q", spec.Name, name)
		}
		g.SetOutput(name, n)
	}
	return g, nil
}
