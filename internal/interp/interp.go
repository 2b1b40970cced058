// Package interp evaluates IR graphs on concrete values.
//
// Arithmetic is two's complement at each node's width; shifts mask their
// amount by width-1; signed division truncates and MIN / -1 wraps to MIN.
// Trapping nodes execute in control-chain order, so a division by zero
// traps even when its value is unused.
package interp

import (
	"fmt"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// TrapError reports a division or remainder by zero.
type TrapError struct {
	Node  ir.NodeID
	Op    ir.Op
	State *ir.FrameState
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap: %s by zero at v%d (%s)", e.Op, e.Node, e.State)
}

// ArgumentError reports a missing argument or one outside its parameter's
// stamp.
type ArgumentError struct {
	Param string
	Value int64
	Stamp stamp.Stamp
	// Missing is set when no value was supplied.
	Missing bool
}

func (e *ArgumentError) Error() string {
	if e.Missing {
		return fmt.Sprintf("interp: no value for parameter %q", e.Param)
	}
	return fmt.Sprintf("interp: argument %s=%d outside %s", e.Param, e.Value, e.Stamp)
}

type machine struct {
	values map[*ir.Node]int64
}

// Eval runs g with the given parameter values and returns the value of
// each output by name.
func Eval(g *ir.Graph, args map[string]int64) (map[string]int64, error) {
	m := &machine{values: make(map[*ir.Node]int64)}
	for _, p := range g.Params() {
		v, ok := args[p.Name()]
		if !ok {
			return nil, &ArgumentError{Param: p.Name(), Stamp: p.Stamp(), Missing: true}
		}
		if !p.Stamp().Contains(v) {
			return nil, &ArgumentError{Param: p.Name(), Value: v, Stamp: p.Stamp()}
		}
		m.values[p] = v
	}

	for _, n := range g.Chain() {
		if _, err := m.eval(n, true); err != nil {
			return nil, err
		}
	}

	out := make(map[string]int64, len(g.Outputs()))
	for _, o := range g.Outputs() {
		v, err := m.eval(o.Node, false)
		if err != nil {
			return nil, err
		}
		out[o.Name] = v
	}
	return out, nil
}

// eval returns n's value. Fixed nodes are only computed when reached along
// the chain (execute is set); elsewhere they must already have run.
func (m *machine) eval(n *ir.Node, execute bool) (int64, error) {
	if v, ok := m.values[n]; ok {
		return v, nil
	}
	switch {
	case n.Op() == ir.OpConst:
		v, _ := n.AsConstant()
		return v, nil
	case n.Op() == ir.OpParam:
		return 0, fmt.Errorf("interp: parameter %s is not part of the graph", n)
	case n.IsFixed() && !execute:
		return 0, fmt.Errorf("interp: %s used before it executes", n)
	}

	x, err := m.eval(n.X(), false)
	if err != nil {
		return 0, err
	}
	if n.Op() == ir.OpNeg {
		v := stamp.Negate(x, n.X().Bits())
		m.values[n] = v
		return v, nil
	}
	y, err := m.eval(n.Y(), false)
	if err != nil {
		return 0, err
	}
	bop, ok := n.Op().Binary()
	if !ok {
		return 0, fmt.Errorf("interp: cannot evaluate %s", n)
	}
	v, ok := stamp.Apply(bop, x, y, n.X().Bits())
	if !ok {
		return 0, &TrapError{Node: n.ID(), Op: n.Op(), State: n.State()}
	}
	m.values[n] = v
	return v, nil
}
