package canon

import (
	"fmt"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Node canonicalizes n against its current inputs. Constants and
// parameters are already canonical and are returned unchanged.
func Node(n *ir.Node, tool *Tool) (*ir.Node, Rule, error) {
	if n.Op() == ir.OpConst || n.Op() == ir.OpParam {
		return n, RuleNone, nil
	}
	return Canonicalize(n.Op(), n, n.X(), n.Y(), tool)
}

// Canonicalize returns the canonical form of op applied to forX and forY.
// self is the attached node being reconsidered, or nil when building a
// fresh node. forY is ignored for negation. Trapping ops inherit self's
// frame state.
func Canonicalize(op ir.Op, self, forX, forY *ir.Node, tool *Tool) (*ir.Node, Rule, error) {
	tool = orDefault(tool)
	if err := validate(op, self, forX, forY, tool); err != nil {
		return nil, RuleNone, err
	}
	var state *ir.FrameState
	if self != nil {
		state = self.State()
	}

	var out *ir.Node
	var rule Rule
	switch op {
	case ir.OpDiv:
		out, rule = SignedDiv(self, forX, forY, state, tool)
	case ir.OpRem:
		out, rule = SignedRem(self, forX, forY, state, tool)
	case ir.OpUDiv:
		out, rule = UnsignedDiv(self, forX, forY, state, tool)
	case ir.OpURem:
		out, rule = UnsignedRem(self, forX, forY, state, tool)
	case ir.OpAdd:
		out, rule = Add(self, forX, forY, tool)
	case ir.OpSub:
		out, rule = Sub(self, forX, forY, tool)
	case ir.OpAnd:
		out, rule = And(self, forX, forY, tool)
	case ir.OpNeg:
		out, rule = Negate(self, forX, tool)
	case ir.OpShl, ir.OpShr, ir.OpUShr:
		out, rule = Shift(op, self, forX, forY, tool)
	}
	return out, rule, nil
}

func validate(op ir.Op, self, forX, forY *ir.Node, tool *Tool) error {
	fail := func(format string, args ...any) error {
		return &UnsupportedInputError{Op: op, Node: self, Reason: fmt.Sprintf(format, args...)}
	}
	if op != ir.OpNeg && !op.IsBinary() {
		return fail("%s has no canonicalization rules", op)
	}
	if self != nil && self.Op() != op {
		return fail("node is a %s", self.Op())
	}
	if forX == nil || (op != ir.OpNeg && forY == nil) {
		return fail("missing operand")
	}
	sx := tool.Stamp(forX)
	if !sx.IsInteger() || sx.IsEmpty() {
		return fail("x has stamp %s", sx)
	}
	if op == ir.OpNeg {
		return nil
	}
	sy := tool.Stamp(forY)
	if !sy.IsInteger() || sy.IsEmpty() {
		return fail("y has stamp %s", sy)
	}
	if !op.IsShift() && sx.Bits() != sy.Bits() {
		return fail("operand widths i%d and i%d differ", sx.Bits(), sy.Bits())
	}
	return nil
}

// keep returns self when it already computes op(forX, forY), or an
// equivalent fresh node.
func keep(self *ir.Node, op ir.Op, forX, forY *ir.Node, state *ir.FrameState) *ir.Node {
	if self != nil && self.Op() == op && self.X() == forX && (op == ir.OpNeg || self.Y() == forY) {
		return self
	}
	if op == ir.OpNeg {
		return ir.NewNeg(forX)
	}
	return ir.NewBinary(op, forX, forY, state)
}

// foldConstants evaluates op when both operands are constants. ok is false
// when either is not constant or the operation traps.
func foldConstants(op ir.Op, forX, forY *ir.Node) (*ir.Node, bool) {
	x, okX := forX.AsConstant()
	y, okY := forY.AsConstant()
	bop, okOp := op.Binary()
	if !okX || !okY || !okOp {
		return nil, false
	}
	v, ok := stamp.Apply(bop, x, y, forX.Bits())
	if !ok {
		return nil, false
	}
	return ir.NewConst(forX.Bits(), v), true
}

// adjacentDuplicate returns self's control successor when it computes the
// same value. Only the immediate successor is examined, and only while
// self still reads forX and forY.
func adjacentDuplicate(self, forX, forY *ir.Node, tool *Tool) *ir.Node {
	if !tool.Options.AdjacentDuplicates || !tool.IsAttached(self) {
		return nil
	}
	if self.X() != forX || self.Y() != forY {
		return nil
	}
	next := self.Next()
	if next != nil && next.Op() == self.Op() && ir.StructurallyEqual(self, next) {
		return next
	}
	return nil
}

func mustCanonical(n *ir.Node, _ Rule, err error) *ir.Node {
	if err != nil {
		panic(err)
	}
	return n
}

// CreateDiv returns the canonical form of a fresh signed division.
func CreateDiv(x, y *ir.Node, state *ir.FrameState, tool *Tool) *ir.Node {
	n, _ := SignedDiv(nil, x, y, state, orDefault(tool))
	return n
}

// CreateRem returns the canonical form of a fresh signed remainder.
func CreateRem(x, y *ir.Node, state *ir.FrameState, tool *Tool) *ir.Node {
	n, _ := SignedRem(nil, x, y, state, orDefault(tool))
	return n
}

// CreateUDiv returns the canonical form of a fresh unsigned division.
func CreateUDiv(x, y *ir.Node, state *ir.FrameState, tool *Tool) *ir.Node {
	n, _ := UnsignedDiv(nil, x, y, state, orDefault(tool))
	return n
}

// CreateURem returns the canonical form of a fresh unsigned remainder.
func CreateURem(x, y *ir.Node, state *ir.FrameState, tool *Tool) *ir.Node {
	n, _ := UnsignedRem(nil, x, y, state, orDefault(tool))
	return n
}

// CreateAdd returns the canonical form of x + y. Like CreateSub and
// CreateNeg it panics on unsupported operands; use Canonicalize to get an
// error instead.
func CreateAdd(x, y *ir.Node, tool *Tool) *ir.Node {
	return mustCanonical(Canonicalize(ir.OpAdd, nil, x, y, tool))
}

// CreateSub returns the canonical form of x - y.
func CreateSub(x, y *ir.Node, tool *Tool) *ir.Node {
	return mustCanonical(Canonicalize(ir.OpSub, nil, x, y, tool))
}

// CreateNeg returns the canonical form of -x.
func CreateNeg(x *ir.Node, tool *Tool) *ir.Node {
	return mustCanonical(Canonicalize(ir.OpNeg, nil, x, nil, tool))
}
