package ir

import (
	"errors"
	"fmt"

	"github.com/roach88/seanode/internal/stamp"
)

// NodeID identifies an attached node within its graph. Floating nodes have ID 0.
type NodeID int32

// ErrEmptyStamp is returned by InferStamp when refining a node's stamp
// leaves no possible value.
var ErrEmptyStamp = errors.New("ir: stamp inference produced an empty stamp")

// FrameState is the deoptimization state associated with a node that may
// trap. It is shared, never owned, by the nodes that reference it.
type FrameState struct {
	BCI    int    `json:"bci"`
	Method string `json:"method,omitempty"`
}

func (fs *FrameState) String() string {
	if fs == nil {
		return "<none>"
	}
	if fs.Method == "" {
		return fmt.Sprintf("bci=%d", fs.BCI)
	}
	return fmt.Sprintf("%s@bci=%d", fs.Method, fs.BCI)
}

// Node is a vertex of the graph.
type Node struct {
	id     NodeID
	graph  *Graph
	op     Op
	inputs []*Node
	usages []*Node
	stamp  stamp.Stamp
	value  int64  // OpConst
	name   string // OpParam
	state  *FrameState
	next   *Node
	prev   *Node
	dead   bool
}

// ID returns the node's ID, or 0 while it is floating.
func (n *Node) ID() NodeID { return n.id }

// Op returns the node's operator.
func (n *Node) Op() Op { return n.op }

// Graph returns the graph the node is attached to, or nil.
func (n *Node) Graph() *Graph { return n.graph }

// Stamp returns the node's current stamp.
func (n *Node) Stamp() stamp.Stamp { return n.stamp }

// Bits returns the width of the node's value.
func (n *Node) Bits() int { return n.stamp.Bits() }

// State returns the node's frame state, possibly nil.
func (n *Node) State() *FrameState { return n.state }

// Name returns the parameter name of an OpParam node.
func (n *Node) Name() string { return n.name }

// Inputs returns the node's inputs. The slice must not be modified.
func (n *Node) Inputs() []*Node { return n.inputs }

// X returns the first input.
func (n *Node) X() *Node {
	if len(n.inputs) == 0 {
		return nil
	}
	return n.inputs[0]
}

// Y returns the second input.
func (n *Node) Y() *Node {
	if len(n.inputs) < 2 {
		return nil
	}
	return n.inputs[1]
}

// Usages returns a copy of the attached nodes that use n.
func (n *Node) Usages() []*Node {
	out := make([]*Node, len(n.usages))
	copy(out, n.usages)
	return out
}

// UsageCount returns the number of attached users.
func (n *Node) UsageCount() int { return len(n.usages) }

// Next returns the control successor of a fixed node.
func (n *Node) Next() *Node { return n.next }

// Prev returns the control predecessor of a fixed node.
func (n *Node) Prev() *Node { return n.prev }

// IsAttached reports whether n is a live member of a graph.
func (n *Node) IsAttached() bool { return n.graph != nil && n.id != 0 && !n.dead }

// IsDead reports whether n has been removed from its graph.
func (n *Node) IsDead() bool { return n.dead }

// IsFixed reports whether n belongs on the control chain.
func (n *Node) IsFixed() bool { return n.op.IsFixed() }

// IsConstant reports whether n is an OpConst node.
func (n *Node) IsConstant() bool { return n.op == OpConst }

// AsConstant returns the value of an OpConst node.
func (n *Node) AsConstant() (int64, bool) {
	if n.op != OpConst {
		return 0, false
	}
	return n.value, true
}

// IsConstantValue reports whether n is a constant equal to v.
func (n *Node) IsConstantValue(v int64) bool {
	c, ok := n.AsConstant()
	return ok && c == stamp.SignExtend(v, n.Bits())
}

func (n *Node) String() string {
	if n.op == OpConst {
		return fmt.Sprintf("v%d(%s %d)", n.id, n.op, n.value)
	}
	if n.op == OpParam {
		return fmt.Sprintf("v%d(%s %s)", n.id, n.op, n.name)
	}
	return fmt.Sprintf("v%d(%s)", n.id, n.op)
}

// NewConst returns a floating w-bit constant. v is truncated to w bits.
func NewConst(w int, v int64) *Node {
	v = stamp.SignExtend(v, w)
	return &Node{op: OpConst, value: v, stamp: stamp.ForConstant(w, v)}
}

// NewBinary returns a floating binary node. state is kept only for fixed ops.
// The stamp is folded from the inputs; inputs that cannot be folded leave
// the node with the illegal stamp.
func NewBinary(op Op, x, y *Node, state *FrameState) *Node {
	n := &Node{op: op, inputs: []*Node{x, y}}
	if op.IsFixed() {
		n.state = state
	}
	n.stamp, _ = n.computeStamp()
	return n
}

// NewNeg returns a floating negation of x.
func NewNeg(x *Node) *Node {
	n := &Node{op: OpNeg, inputs: []*Node{x}}
	n.stamp, _ = n.computeStamp()
	return n
}

func NewAdd(x, y *Node) *Node  { return NewBinary(OpAdd, x, y, nil) }
func NewSub(x, y *Node) *Node  { return NewBinary(OpSub, x, y, nil) }
func NewAnd(x, y *Node) *Node  { return NewBinary(OpAnd, x, y, nil) }
func NewShl(x, y *Node) *Node  { return NewBinary(OpShl, x, y, nil) }
func NewShr(x, y *Node) *Node  { return NewBinary(OpShr, x, y, nil) }
func NewUShr(x, y *Node) *Node { return NewBinary(OpUShr, x, y, nil) }

// NewDiv returns a floating signed division carrying state.
func NewDiv(x, y *Node, state *FrameState) *Node { return NewBinary(OpDiv, x, y, state) }

// NewRem returns a floating signed remainder carrying state.
func NewRem(x, y *Node, state *FrameState) *Node { return NewBinary(OpRem, x, y, state) }

// NewUDiv returns a floating unsigned division carrying state.
func NewUDiv(x, y *Node, state *FrameState) *Node { return NewBinary(OpUDiv, x, y, state) }

// NewURem returns a floating unsigned remainder carrying state.
func NewURem(x, y *Node, state *FrameState) *Node { return NewBinary(OpURem, x, y, state) }

// computeStamp folds the node's stamp from its inputs' current stamps.
func (n *Node) computeStamp() (stamp.Stamp, error) {
	switch n.op {
	case OpConst:
		return n.stamp, nil
	case OpParam:
		return n.stamp, nil
	case OpNeg:
		s, err := stamp.FoldNeg(n.inputs[0].stamp)
		if err != nil {
			return stamp.Illegal(), fmt.Errorf("%s: %w", n.op, err)
		}
		return s, nil
	}
	bop, ok := n.op.Binary()
	if !ok {
		return stamp.Illegal(), fmt.Errorf("ir: no stamp rule for %s", n.op)
	}
	s, err := stamp.Fold(bop, n.inputs[0].stamp, n.inputs[1].stamp)
	if err != nil {
		return stamp.Illegal(), fmt.Errorf("%s: %w", n.op, err)
	}
	return s, nil
}

// InferStamp recomputes the stamp from the inputs and refines the current
// stamp with it. It reports whether the stamp changed. A refinement that
// leaves no possible value returns ErrEmptyStamp and keeps the old stamp.
func (n *Node) InferStamp() (bool, error) {
	computed, err := n.computeStamp()
	if err != nil {
		return false, err
	}
	refined := computed
	if n.stamp.IsCompatible(computed) {
		refined = n.stamp.Join(computed)
	}
	if refined.IsEmpty() {
		return false, fmt.Errorf("%w: %s has %s, inputs give %s", ErrEmptyStamp, n, n.stamp, computed)
	}
	if refined == n.stamp {
		return false, nil
	}
	n.stamp = refined
	return true, nil
}

// StructurallyEqual reports whether a and b compute the same value: same
// op, identical inputs and equal data fields. Frame states are ignored.
func StructurallyEqual(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.op != b.op || len(a.inputs) != len(b.inputs) {
		return false
	}
	for i := range a.inputs {
		if a.inputs[i] != b.inputs[i] {
			return false
		}
	}
	switch a.op {
	case OpConst:
		return a.value == b.value && a.Bits() == b.Bits()
	case OpParam:
		return a.name == b.name
	}
	return true
}

func (n *Node) removeUsage(u *Node) {
	for i, x := range n.usages {
		if x == u {
			n.usages = append(n.usages[:i], n.usages[i+1:]...)
			return
		}
	}
}

func (n *Node) addUsage(u *Node) {
	n.usages = append(n.usages, u)
}
