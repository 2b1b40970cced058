package stamp

import "fmt"

// BinaryOp identifies a binary integer operator.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpAnd
	OpShl
	OpShr
	OpUShr
	OpDiv
	OpRem
	OpUDiv
	OpURem
)

var binaryOpNames = map[BinaryOp]string{
	OpAdd:  "add",
	OpSub:  "sub",
	OpAnd:  "and",
	OpShl:  "shl",
	OpShr:  "shr",
	OpUShr: "ushr",
	OpDiv:  "div",
	OpRem:  "rem",
	OpUDiv: "udiv",
	OpURem: "urem",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpNames[op]; ok {
		return s
	}
	return fmt.Sprintf("BinaryOp(%d)", uint8(op))
}

// IsShift reports whether op is a shift. Shift amounts may have a width
// different from the shifted value.
func (op BinaryOp) IsShift() bool {
	return op == OpShl || op == OpShr || op == OpUShr
}

// Fold returns a stamp containing op(x, y) for every x in X and every y in Y
// for which the operation produces a value. The result width is X's width.
func Fold(op BinaryOp, x, y Stamp) (Stamp, error) {
	if !x.IsInteger() || !y.IsInteger() {
		return Illegal(), ErrNotInteger
	}
	if !op.IsShift() && x.bits != y.bits {
		return Illegal(), fmt.Errorf("%w: %s of i%d and i%d", ErrWidthMismatch, op, x.bits, y.bits)
	}
	w := x.bits
	if x.empty || y.empty {
		return Empty(w), nil
	}
	if x.IsConstant() && y.IsConstant() {
		v, ok := Apply(op, x.lo, y.lo, w)
		if !ok {
			return Unrestricted(w), nil
		}
		return ForConstant(w, v), nil
	}

	switch op {
	case OpAdd:
		return foldAdd(x, y), nil
	case OpSub:
		return foldSub(x, y), nil
	case OpAnd:
		return foldAnd(x, y), nil
	case OpShl, OpShr, OpUShr:
		return foldShift(op, x, y), nil
	case OpDiv:
		return foldDiv(x, y), nil
	case OpRem:
		return foldRem(x, y), nil
	case OpUDiv:
		return foldUDiv(x, y), nil
	case OpURem:
		return foldURem(x, y), nil
	}
	return Illegal(), fmt.Errorf("stamp: unknown operator %s", op)
}

// FoldNeg returns a stamp containing -x for every x in X.
func FoldNeg(x Stamp) (Stamp, error) {
	if !x.IsInteger() {
		return Illegal(), ErrNotInteger
	}
	w := x.bits
	if x.empty {
		return Empty(w), nil
	}
	if v, ok := x.AsConstant(); ok {
		return ForConstant(w, Negate(v, w)), nil
	}
	up := lowZerosMask(w, x.knownTrailingZeros())
	if x.lo == MinValue(w) {
		return New(w, MinValue(w), MaxValue(w), 0, up), nil
	}
	return New(w, -x.hi, -x.lo, 0, up), nil
}

// lowZerosMask returns the w-bit mask with the low tz bits cleared.
func lowZerosMask(w, tz int) uint64 {
	return Mask(w) &^ (1<<uint(tz) - 1)
}

func foldAdd(x, y Stamp) Stamp {
	w := x.bits
	up := lowZerosMask(w, min(x.knownTrailingZeros(), y.knownTrailingZeros()))
	lo, okLo := addExact(x.lo, y.lo, w)
	hi, okHi := addExact(x.hi, y.hi, w)
	if !okLo || !okHi {
		return New(w, MinValue(w), MaxValue(w), 0, up)
	}
	return New(w, lo, hi, 0, up)
}

func foldSub(x, y Stamp) Stamp {
	w := x.bits
	up := lowZerosMask(w, min(x.knownTrailingZeros(), y.knownTrailingZeros()))
	lo, okLo := subExact(x.lo, y.hi, w)
	hi, okHi := subExact(x.hi, y.lo, w)
	if !okLo || !okHi {
		return New(w, MinValue(w), MaxValue(w), 0, up)
	}
	return New(w, lo, hi, 0, up)
}

func foldAnd(x, y Stamp) Stamp {
	w := x.bits
	lo, hi := MinValue(w), MaxValue(w)
	switch {
	case x.lo >= 0 && y.lo >= 0:
		lo, hi = 0, min(x.hi, y.hi)
	case x.lo >= 0:
		lo, hi = 0, x.hi
	case y.lo >= 0:
		lo, hi = 0, y.hi
	case x.hi < 0 && y.hi < 0:
		hi = min(x.hi, y.hi)
	}
	return New(w, lo, hi, x.down&y.down, x.up&y.up)
}

func foldShift(op BinaryOp, x, y Stamp) Stamp {
	w := x.bits
	if s, ok := y.AsConstant(); ok {
		return shiftByConstant(op, x, int(s&ShiftMask(w)))
	}
	if y.lo >= 0 && y.hi <= ShiftMask(w) {
		out := Empty(w)
		for s := y.lo; s <= y.hi; s++ {
			if y.Contains(s) {
				out = out.Meet(shiftByConstant(op, x, int(s)))
			}
		}
		if !out.IsEmpty() {
			return out
		}
	}
	switch op {
	case OpShl:
		return New(w, MinValue(w), MaxValue(w), 0, lowZerosMask(w, x.knownTrailingZeros()))
	case OpShr:
		lo, hi := x.lo, x.hi
		if lo >= 0 {
			lo = 0
		}
		if hi < 0 {
			hi = -1
		}
		return ForRange(w, lo, hi)
	default:
		if x.lo >= 0 {
			return ForRange(w, 0, x.hi)
		}
		return Unrestricted(w)
	}
}

func shiftByConstant(op BinaryOp, x Stamp, s int) Stamp {
	w := x.bits
	if s == 0 {
		return x
	}
	m := Mask(w)
	switch op {
	case OpShl:
		down, up := x.down<<uint(s)&m, x.up<<uint(s)&m
		lo, hi := x.lo<<uint(s), x.hi<<uint(s)
		if lo>>uint(s) != x.lo || hi>>uint(s) != x.hi || lo < MinValue(w) || hi > MaxValue(w) {
			return New(w, MinValue(w), MaxValue(w), down, up)
		}
		return New(w, lo, hi, down, up)
	case OpShr:
		top := m &^ (m >> uint(s))
		sb := signBit(w)
		down, up := x.down>>uint(s), x.up>>uint(s)
		if x.down&sb != 0 {
			down |= top
		}
		if x.up&sb != 0 {
			up |= top
		}
		return New(w, x.lo>>uint(s), x.hi>>uint(s), down, up)
	default:
		down, up := x.down>>uint(s), x.up>>uint(s)
		switch {
		case x.lo >= 0:
			return New(w, x.lo>>uint(s), x.hi>>uint(s), down, up)
		case x.hi < 0:
			lo := int64(ZeroExtend(x.lo, w) >> uint(s))
			hi := int64(ZeroExtend(x.hi, w) >> uint(s))
			return New(w, lo, hi, down, up)
		default:
			return New(w, 0, int64(m>>uint(s)), down, up)
		}
	}
}

// foldDiv handles truncating signed division. The zero divisor is excluded:
// it traps instead of producing a value.
func foldDiv(x, y Stamp) Stamp {
	w := x.bits
	if v, ok := y.AsConstant(); ok && v == 0 {
		return Unrestricted(w)
	}
	if x.lo == MinValue(w) && y.lo <= -1 && y.hi >= -1 {
		return Unrestricted(w)
	}
	out := Empty(w)
	if y.lo < 0 {
		out = out.Meet(divCorners(w, x.lo, x.hi, y.lo, min(y.hi, -1)))
	}
	if y.hi > 0 {
		out = out.Meet(divCorners(w, x.lo, x.hi, max(y.lo, 1), y.hi))
	}
	if out.IsEmpty() {
		return Unrestricted(w)
	}
	return out
}

// divCorners bounds a/b for a in [a0, a1] and b in [b0, b1], where the
// divisor interval does not contain zero. Truncating division is monotone
// in each argument on such a rectangle.
func divCorners(w int, a0, a1, b0, b1 int64) Stamp {
	q := [4]int64{a0 / b0, a0 / b1, a1 / b0, a1 / b1}
	lo, hi := q[0], q[0]
	for _, v := range q[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return ForRange(w, lo, hi)
}

// foldRem handles truncating signed remainder: the result takes the sign
// of the dividend and its magnitude is below the divisor's.
func foldRem(x, y Stamp) Stamp {
	w := x.bits
	if v, ok := y.AsConstant(); ok && v == 0 {
		return Unrestricted(w)
	}
	bound := int64(max(Abs(y.lo), Abs(y.hi)) - 1)
	lo, hi := max(x.lo, -bound), min(x.hi, bound)
	if x.lo >= 0 {
		lo = 0
	}
	if x.hi <= 0 {
		hi = 0
	}
	return ForRange(w, min(lo, 0), max(hi, 0))
}

// unsignedBounds returns the bounds of s viewed as unsigned w-bit values.
func unsignedBounds(s Stamp) (uint64, uint64) {
	if (s.lo < 0) == (s.hi < 0) {
		return ZeroExtend(s.lo, s.bits), ZeroExtend(s.hi, s.bits)
	}
	return 0, Mask(s.bits)
}

// forUnsignedRange returns the signed stamp for the unsigned range [lo, hi].
func forUnsignedRange(w int, lo, hi uint64) Stamp {
	limit := uint64(MaxValue(w))
	switch {
	case hi <= limit:
		return ForRange(w, int64(lo), int64(hi))
	case lo > limit:
		return ForRange(w, SignExtend(int64(lo), w), SignExtend(int64(hi), w))
	default:
		return Unrestricted(w)
	}
}

func foldUDiv(x, y Stamp) Stamp {
	w := x.bits
	xlo, xhi := unsignedBounds(x)
	ylo, yhi := unsignedBounds(y)
	if yhi == 0 {
		return Unrestricted(w)
	}
	ylo = max(ylo, 1)
	return forUnsignedRange(w, xlo/yhi, xhi/ylo)
}

func foldURem(x, y Stamp) Stamp {
	w := x.bits
	_, xhi := unsignedBounds(x)
	_, yhi := unsignedBounds(y)
	if yhi == 0 {
		return Unrestricted(w)
	}
	return forUnsignedRange(w, 0, min(xhi, yhi-1))
}
