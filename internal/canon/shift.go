package canon

import (
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Shift canonicalizes forX shifted by forY for op shl, shr or ushr. The
// amount is masked by the width of forX minus one.
func Shift(op ir.Op, self, forX, forY *ir.Node, tool *Tool) (*ir.Node, Rule) {
	w := forX.Bits()
	if c, ok := foldConstants(op, forX, forY); ok {
		return c, RuleFoldConstant
	}
	b, ok := forY.AsConstant()
	if !ok {
		return keep(self, op, forX, forY, nil), RuleNone
	}
	b &= stamp.ShiftMask(w)
	if b == 0 {
		return forX, RuleShiftZero
	}
	if forX.Op() == op {
		if a, ok := forX.Y().AsConstant(); ok {
			total := a&stamp.ShiftMask(w) + b
			inner := forX.X()
			switch {
			case total < int64(w):
				return ir.NewBinary(op, inner, shiftAmount(int(total)), nil), RuleShiftMerge
			case op == ir.OpShr:
				return ir.NewBinary(op, inner, shiftAmount(w-1), nil), RuleShiftMerge
			default:
				return ir.NewConst(w, 0), RuleShiftMerge
			}
		}
	}
	return keep(self, op, forX, forY, nil), RuleNone
}
