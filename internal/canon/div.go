package canon

import (
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// SignedDiv canonicalizes forX / forY. state is the frame state a rebuilt
// division carries.
//
// The cascade is ordered: constant folding, constant-divisor strength
// reduction, floor correction, adjacent duplicate elimination.
func SignedDiv(self, forX, forY *ir.Node, state *ir.FrameState, tool *Tool) (*ir.Node, Rule) {
	tool = orDefault(tool)
	if forX.IsConstant() && forY.IsConstant() {
		if forY.IsConstantValue(0) {
			// Traps at run time.
			return keep(self, ir.OpDiv, forX, forY, state), RuleNone
		}
		c, _ := foldConstants(ir.OpDiv, forX, forY)
		return c, RuleFoldConstant
	}
	if c, ok := forY.AsConstant(); ok && tool.Options.StrengthReduction {
		if n := DivByConstant(forX, c, tool.View); n != nil {
			return n, divRule(c)
		}
	}

	if tool.Options.FloorCorrection && forX.Op() == ir.OpSub {
		sub, rem := forX, forX.Y()
		result := resultStamp(self, ir.OpDiv, forX, forY, tool)
		if rem.Op() == ir.OpRem && sub.X() == rem.X() && rem.Y() == forY &&
			tool.Stamp(sub).IsCompatible(result) && tool.Stamp(rem).IsCompatible(result) {
			return ir.NewDiv(sub.X(), forY, state), RuleFloorCorrection
		}
	}

	if next := adjacentDuplicate(self, forX, forY, tool); next != nil {
		return next, RuleAdjacentDuplicate
	}
	return keep(self, ir.OpDiv, forX, forY, state), RuleNone
}

func divRule(c int64) Rule {
	switch c {
	case 1:
		return RuleDivByOne
	case -1:
		return RuleDivByMinusOne
	default:
		return RuleDivPowerOfTwo
	}
}

// resultStamp is self's stamp, or the stamp a fresh node would get.
func resultStamp(self *ir.Node, op ir.Op, forX, forY *ir.Node, tool *Tool) stamp.Stamp {
	if self != nil {
		return tool.Stamp(self)
	}
	bop, _ := op.Binary()
	s, err := stamp.Fold(bop, tool.Stamp(forX), tool.Stamp(forY))
	if err != nil {
		return stamp.Illegal()
	}
	return s
}

// DivByConstant returns nodes computing forX / c with truncating signed
// division, or nil when c is neither ±1 nor ± a power of two. The result
// floats; the caller attaches it. The view decides whether the rounding
// correction for negative dividends can be skipped.
func DivByConstant(forX *ir.Node, c int64, view ir.NodeView) *ir.Node {
	w := forX.Bits()
	c = stamp.SignExtend(c, w)
	switch c {
	case 1:
		return forX
	case -1:
		return ir.NewNeg(forX)
	}
	abs := stamp.Abs(c)
	if !stamp.IsPowerOf2(abs) {
		return nil
	}
	log2 := stamp.Log2(abs)

	s := view.Stamp(forX)
	dividend := forX
	// No rounding when the dividend is never negative or is a multiple of |c|.
	if !s.NeverNegative() && s.UpMask()&(abs-1) != 0 {
		sign := ir.NewShr(forX, shiftAmount(w-1))
		round := ir.NewUShr(sign, shiftAmount(w-log2))
		dividend = ir.NewAdd(forX, round)
	}
	shift := ir.NewShr(dividend, shiftAmount(log2))
	if c < 0 {
		return ir.NewNeg(shift)
	}
	return shift
}

// shiftAmount returns a shift-amount constant. Shift amounts are i32.
func shiftAmount(s int) *ir.Node {
	return ir.NewConst(32, int64(s))
}

// SignedRem canonicalizes forX % forY. The result takes the sign of the
// dividend.
func SignedRem(self, forX, forY *ir.Node, state *ir.FrameState, tool *Tool) (*ir.Node, Rule) {
	tool = orDefault(tool)
	w := forX.Bits()
	if forX.IsConstant() && forY.IsConstant() {
		if forY.IsConstantValue(0) {
			return keep(self, ir.OpRem, forX, forY, state), RuleNone
		}
		c, _ := foldConstants(ir.OpRem, forX, forY)
		return c, RuleFoldConstant
	}
	if c, ok := forY.AsConstant(); ok && c != 0 && tool.Options.StrengthReduction {
		switch {
		case c == 1 || c == -1:
			return ir.NewConst(w, 0), RuleRemByOne
		case c < 0 && c != stamp.MinValue(w):
			// x % c == x % -c under truncation.
			n, rule := SignedRem(nil, forX, ir.NewConst(w, -c), state, tool)
			if rule == RuleNone {
				rule = RuleRemNegativeDivisor
			}
			return n, rule
		case stamp.IsPowerOf2(stamp.Abs(c)):
			mask := ir.NewConst(w, c-1)
			if tool.Stamp(forX).NeverNegative() {
				return ir.NewAnd(forX, mask), RuleRemPowerOfTwo
			}
			q := DivByConstant(forX, c, tool.View)
			log2 := stamp.Log2(stamp.Abs(c))
			return ir.NewSub(forX, ir.NewShl(q, shiftAmount(log2))), RuleRemPowerOfTwo
		}
	}
	if next := adjacentDuplicate(self, forX, forY, tool); next != nil {
		return next, RuleAdjacentDuplicate
	}
	return keep(self, ir.OpRem, forX, forY, state), RuleNone
}
