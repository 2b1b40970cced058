package canon

import (
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Sub canonicalizes forX - forY.
func Sub(self, forX, forY *ir.Node, tool *Tool) (*ir.Node, Rule) {
	w := forX.Bits()
	if c, ok := foldConstants(ir.OpSub, forX, forY); ok {
		return c, RuleFoldConstant
	}
	if forX == forY {
		return ir.NewConst(w, 0), RuleSubSelf
	}
	if forY.IsConstantValue(0) {
		return forX, RuleSubZero
	}
	if forX.IsConstantValue(0) {
		return ir.NewNeg(forY), RuleZeroSub
	}
	if forX.Op() == ir.OpAdd {
		// (a + b) - b == a, (a + b) - a == b
		if forX.Y() == forY {
			return forX.X(), RuleSubAddOperand
		}
		if forX.X() == forY {
			return forX.Y(), RuleSubAddOperand
		}
	}
	if forY.Op() == ir.OpSub && forY.X() == forX {
		// a - (a - b) == b
		return forY.Y(), RuleSubSubOperand
	}
	if forY.Op() == ir.OpNeg {
		return ir.NewAdd(forX, forY.X()), RuleSubNegate
	}
	if c, ok := forY.AsConstant(); ok && c != stamp.MinValue(w) {
		return ir.NewAdd(forX, ir.NewConst(w, -c)), RuleSubConstant
	}
	return keep(self, ir.OpSub, forX, forY, nil), RuleNone
}

// Add canonicalizes forX + forY. Constants are kept on the right.
func Add(self, forX, forY *ir.Node, tool *Tool) (*ir.Node, Rule) {
	w := forX.Bits()
	if c, ok := foldConstants(ir.OpAdd, forX, forY); ok {
		return c, RuleFoldConstant
	}
	if forX.IsConstant() {
		return ir.NewAdd(forY, forX), RuleAddCommute
	}
	if forY.IsConstantValue(0) {
		return forX, RuleAddZero
	}
	if forY.Op() == ir.OpNeg {
		return ir.NewSub(forX, forY.X()), RuleAddNegate
	}
	if forX.Op() == ir.OpNeg {
		return ir.NewSub(forY, forX.X()), RuleAddNegate
	}
	// (a - b) + b == a, b + (a - b) == a
	if forX.Op() == ir.OpSub && forX.Y() == forY {
		return forX.X(), RuleAddSubOperand
	}
	if forY.Op() == ir.OpSub && forY.Y() == forX {
		return forY.X(), RuleAddSubOperand
	}
	if c2, ok := forY.AsConstant(); ok && forX.Op() == ir.OpAdd {
		if c1, ok := forX.Y().AsConstant(); ok {
			return ir.NewAdd(forX.X(), ir.NewConst(w, c1+c2)), RuleAddReassociate
		}
	}
	return keep(self, ir.OpAdd, forX, forY, nil), RuleNone
}

// Negate canonicalizes -forX.
func Negate(self, forX *ir.Node, tool *Tool) (*ir.Node, Rule) {
	w := forX.Bits()
	if v, ok := forX.AsConstant(); ok {
		return ir.NewConst(w, stamp.Negate(v, w)), RuleFoldConstant
	}
	switch forX.Op() {
	case ir.OpNeg:
		return forX.X(), RuleNegNeg
	case ir.OpSub:
		return ir.NewSub(forX.Y(), forX.X()), RuleNegSub
	}
	return keep(self, ir.OpNeg, forX, nil, nil), RuleNone
}

// And canonicalizes forX & forY. Constants are kept on the right.
func And(self, forX, forY *ir.Node, tool *Tool) (*ir.Node, Rule) {
	tool = orDefault(tool)
	w := forX.Bits()
	if c, ok := foldConstants(ir.OpAnd, forX, forY); ok {
		return c, RuleFoldConstant
	}
	if forX.IsConstant() {
		return ir.NewAnd(forY, forX), RuleAndCommute
	}
	if forY.IsConstantValue(0) {
		return forY, RuleAndZero
	}
	if forY.IsConstantValue(-1) {
		return forX, RuleAndMinusOne
	}
	if forX == forY {
		return forX, RuleAndSelf
	}
	if m, ok := forY.AsConstant(); ok {
		// The mask keeps every bit x may have set.
		if tool.Stamp(forX).UpMask()&^stamp.ZeroExtend(m, w) == 0 {
			return forX, RuleAndRedundantMask
		}
	}
	return keep(self, ir.OpAnd, forX, forY, nil), RuleNone
}
