package canon

import (
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// UnsignedDiv canonicalizes the unsigned quotient forX / forY.
func UnsignedDiv(self, forX, forY *ir.Node, state *ir.FrameState, tool *Tool) (*ir.Node, Rule) {
	tool = orDefault(tool)
	if forX.IsConstant() && forY.IsConstant() {
		if forY.IsConstantValue(0) {
			return keep(self, ir.OpUDiv, forX, forY, state), RuleNone
		}
		c, _ := foldConstants(ir.OpUDiv, forX, forY)
		return c, RuleFoldConstant
	}
	if c, ok := forY.AsConstant(); ok && tool.Options.StrengthReduction {
		uc := stamp.ZeroExtend(c, forX.Bits())
		switch {
		case uc == 1:
			return forX, RuleDivByOne
		case stamp.IsPowerOf2(uc):
			return ir.NewUShr(forX, shiftAmount(stamp.Log2(uc))), RuleDivPowerOfTwo
		}
	}
	if next := adjacentDuplicate(self, forX, forY, tool); next != nil {
		return next, RuleAdjacentDuplicate
	}
	return keep(self, ir.OpUDiv, forX, forY, state), RuleNone
}

// UnsignedRem canonicalizes the unsigned remainder forX % forY.
func UnsignedRem(self, forX, forY *ir.Node, state *ir.FrameState, tool *Tool) (*ir.Node, Rule) {
	tool = orDefault(tool)
	w := forX.Bits()
	if forX.IsConstant() && forY.IsConstant() {
		if forY.IsConstantValue(0) {
			return keep(self, ir.OpURem, forX, forY, state), RuleNone
		}
		c, _ := foldConstants(ir.OpURem, forX, forY)
		return c, RuleFoldConstant
	}
	if c, ok := forY.AsConstant(); ok && tool.Options.StrengthReduction {
		uc := stamp.ZeroExtend(c, w)
		switch {
		case uc == 1:
			return ir.NewConst(w, 0), RuleRemByOne
		case stamp.IsPowerOf2(uc):
			return ir.NewAnd(forX, ir.NewConst(w, int64(uc-1))), RuleRemPowerOfTwo
		}
	}
	if next := adjacentDuplicate(self, forX, forY, tool); next != nil {
		return next, RuleAdjacentDuplicate
	}
	return keep(self, ir.OpURem, forX, forY, state), RuleNone
}
