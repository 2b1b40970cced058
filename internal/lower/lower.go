// Package lower translates canonicalized graphs into backend instructions.
//
// Every node kind implements Lowerable. A Builder maps each generated node
// to the backend value holding its result; generating reads the operands'
// values and never touches the graph.
package lower

import (
	"errors"
	"fmt"

	"github.com/roach88/seanode/internal/ir"
)

// ErrUnsupportedOp is returned by For for ops with no generator.
var ErrUnsupportedOp = errors.New("lower: no generator for op")

// Value is a backend operand: a virtual register of a given width.
type Value struct {
	Reg  int
	Bits int
}

func (v Value) String() string {
	return fmt.Sprintf("r%d", v.Reg)
}

// Backend emits low-level instructions. Each Emit method returns the value
// holding the instruction's result. Division ops receive the frame state
// to deoptimize to when they trap.
type Backend interface {
	EmitConst(bits int, v int64) Value
	EmitParam(name string, bits int) Value
	EmitAdd(x, y Value) Value
	EmitSub(x, y Value) Value
	EmitNeg(x Value) Value
	EmitAnd(x, y Value) Value
	EmitShl(x, y Value) Value
	EmitShr(x, y Value) Value
	EmitUShr(x, y Value) Value
	EmitDiv(x, y Value, state *ir.FrameState) Value
	EmitRem(x, y Value, state *ir.FrameState) Value
	EmitUDiv(x, y Value, state *ir.FrameState) Value
	EmitURem(x, y Value, state *ir.FrameState) Value
	EmitReturn(name string, v Value)
}

// Builder records the value generated for each node.
type Builder struct {
	backend Backend
	values  map[*ir.Node]Value
	err     error
}

// NewBuilder returns a Builder emitting into backend.
func NewBuilder(backend Backend) *Builder {
	return &Builder{backend: backend, values: make(map[*ir.Node]Value)}
}

// Backend returns the backend instructions are emitted into.
func (b *Builder) Backend() Backend { return b.backend }

// Operand returns the value generated for n. Asking for a node that has not
// been generated yet records an error, reported by Err, and returns the
// zero Value.
func (b *Builder) Operand(n *ir.Node) Value {
	v, ok := b.values[n]
	if !ok && b.err == nil {
		b.err = fmt.Errorf("lower: operand %s used before it is generated", n)
	}
	return v
}

// State returns the frame state n deoptimizes to.
func (b *Builder) State(n *ir.Node) *ir.FrameState {
	return n.State()
}

// SetResult records v as n's value. A node is generated at most once.
func (b *Builder) SetResult(n *ir.Node, v Value) error {
	if _, ok := b.values[n]; ok {
		return fmt.Errorf("lower: %s generated twice", n)
	}
	b.values[n] = v
	return nil
}

// Result returns the value generated for n, if any.
func (b *Builder) Result(n *ir.Node) (Value, bool) {
	v, ok := b.values[n]
	return v, ok
}

// Err returns the first operand error recorded by Operand.
func (b *Builder) Err() error { return b.err }

// Lowerable is implemented by nodes that can generate backend code.
type Lowerable interface {
	Generate(gen *Builder) error
}

type generator func(gen *Builder, n *ir.Node) Value

var generators = map[ir.Op]generator{
	ir.OpConst: func(gen *Builder, n *ir.Node) Value {
		v, _ := n.AsConstant()
		return gen.Backend().EmitConst(n.Bits(), v)
	},
	ir.OpParam: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitParam(n.Name(), n.Bits())
	},
	ir.OpAdd: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitAdd(gen.Operand(n.X()), gen.Operand(n.Y()))
	},
	ir.OpSub: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitSub(gen.Operand(n.X()), gen.Operand(n.Y()))
	},
	ir.OpNeg: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitNeg(gen.Operand(n.X()))
	},
	ir.OpAnd: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitAnd(gen.Operand(n.X()), gen.Operand(n.Y()))
	},
	ir.OpShl: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitShl(gen.Operand(n.X()), gen.Operand(n.Y()))
	},
	ir.OpShr: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitShr(gen.Operand(n.X()), gen.Operand(n.Y()))
	},
	ir.OpUShr: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitUShr(gen.Operand(n.X()), gen.Operand(n.Y()))
	},
	ir.OpDiv: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitDiv(gen.Operand(n.X()), gen.Operand(n.Y()), gen.State(n))
	},
	ir.OpRem: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitRem(gen.Operand(n.X()), gen.Operand(n.Y()), gen.State(n))
	},
	ir.OpUDiv: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitUDiv(gen.Operand(n.X()), gen.Operand(n.Y()), gen.State(n))
	},
	ir.OpURem: func(gen *Builder, n *ir.Node) Value {
		return gen.Backend().EmitURem(gen.Operand(n.X()), gen.Operand(n.Y()), gen.State(n))
	},
}

type nodeLowering struct {
	node *ir.Node
	gen  generator
}

// Generate emits n's instruction once all of its inputs are generated.
func (l nodeLowering) Generate(gen *Builder) error {
	if _, ok := gen.Result(l.node); ok {
		return fmt.Errorf("lower: %s generated twice", l.node)
	}
	for _, in := range l.node.Inputs() {
		gen.Operand(in)
	}
	if err := gen.Err(); err != nil {
		return err
	}
	return gen.SetResult(l.node, l.gen(gen, l.node))
}

// For returns the lowering of n.
func For(n *ir.Node) (Lowerable, error) {
	g, ok := generators[n.Op()]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnsupportedOp, n.Op())
	}
	return nodeLowering{node: n, gen: g}, nil
}

// Lower schedules g and generates every scheduled node into backend,
// followed by one return per output.
func Lower(g *ir.Graph, backend Backend) error {
	order, err := Schedule(g)
	if err != nil {
		return err
	}
	gen := NewBuilder(backend)
	for _, n := range order {
		l, err := For(n)
		if err != nil {
			return err
		}
		if err := l.Generate(gen); err != nil {
			return err
		}
	}
	for _, o := range g.Outputs() {
		v, ok := gen.Result(o.Node)
		if !ok {
			return fmt.Errorf("lower: output %s was not generated", o.Name)
		}
		backend.EmitReturn(o.Name, v)
	}
	return nil
}
