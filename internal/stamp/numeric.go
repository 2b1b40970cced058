package stamp

import "math/bits"

// ValidWidth reports whether w is a supported integer width.
func ValidWidth(w int) bool {
	return w == 8 || w == 16 || w == 32 || w == 64
}

// Mask returns the unsigned mask covering the low w bits.
func Mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<uint(w) - 1
}

// MinValue returns the minimum signed value representable in w bits.
func MinValue(w int) int64 {
	return -1 << uint(w-1)
}

// MaxValue returns the maximum signed value representable in w bits.
func MaxValue(w int) int64 {
	return int64(Mask(w) >> 1)
}

// SignExtend truncates v to w bits and sign-extends the result.
func SignExtend(v int64, w int) int64 {
	shift := uint(64 - w)
	return int64(uint64(v)<<shift) >> shift
}

// ZeroExtend truncates v to w bits without sign extension.
func ZeroExtend(v int64, w int) uint64 {
	return uint64(v) & Mask(w)
}

func signBit(w int) uint64 {
	return 1 << uint(w-1)
}

// Abs returns |v| as an unsigned value. Abs(math.MinInt64) is 1<<63.
func Abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// IsPowerOf2 reports whether v is a positive power of two.
func IsPowerOf2(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// Log2 returns the floor of log2(v). v must be non-zero.
func Log2(v uint64) int {
	return 63 - bits.LeadingZeros64(v)
}

// ShiftMask returns the mask applied to shift amounts for a w-bit shift.
func ShiftMask(w int) int64 {
	return int64(w - 1)
}

// Apply evaluates op on concrete w-bit operands with two's-complement
// wrapping. Division and remainder truncate toward zero and MIN / -1 == MIN.
// ok is false when the operation traps (zero divisor).
func Apply(op BinaryOp, x, y int64, w int) (result int64, ok bool) {
	x = SignExtend(x, w)
	switch op {
	case OpAdd:
		return SignExtend(x+SignExtend(y, w), w), true
	case OpSub:
		return SignExtend(x-SignExtend(y, w), w), true
	case OpAnd:
		return SignExtend(x&SignExtend(y, w), w), true
	case OpShl:
		return SignExtend(x<<uint(y&ShiftMask(w)), w), true
	case OpShr:
		return x >> uint(y&ShiftMask(w)), true
	case OpUShr:
		return SignExtend(int64(ZeroExtend(x, w)>>uint(y&ShiftMask(w))), w), true
	case OpDiv, OpRem, OpUDiv, OpURem:
		y = SignExtend(y, w)
		if y == 0 {
			return 0, false
		}
		switch op {
		case OpDiv:
			return SignExtend(x/y, w), true
		case OpRem:
			return SignExtend(x%y, w), true
		case OpUDiv:
			return SignExtend(int64(ZeroExtend(x, w)/ZeroExtend(y, w)), w), true
		default:
			return SignExtend(int64(ZeroExtend(x, w)%ZeroExtend(y, w)), w), true
		}
	}
	return 0, false
}

// Negate returns -x wrapped to w bits. Negate(MIN) == MIN.
func Negate(x int64, w int) int64 {
	return SignExtend(-x, w)
}

// addExact adds a and b, reporting whether the exact sum fits in w bits.
func addExact(a, b int64, w int) (int64, bool) {
	s := a + b
	if w == 64 {
		return s, !((a >= 0) == (b >= 0) && (s >= 0) != (a >= 0))
	}
	return s, s >= MinValue(w) && s <= MaxValue(w)
}

// subExact subtracts b from a, reporting whether the exact difference fits in w bits.
func subExact(a, b int64, w int) (int64, bool) {
	s := a - b
	if w == 64 {
		return s, !((a >= 0) != (b >= 0) && (s >= 0) != (a >= 0))
	}
	return s, s >= MinValue(w) && s <= MaxValue(w)
}
