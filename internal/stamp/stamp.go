package stamp

import (
	"errors"
	"fmt"
	"math/bits"
)

// Kind distinguishes integer stamps from the illegal stamp.
type Kind uint8

const (
	// KindIllegal marks a node that does not produce an integer value,
	// or whose inputs could not be typed.
	KindIllegal Kind = iota
	// KindInteger marks an integer stamp.
	KindInteger
)

var (
	// ErrNotInteger is returned when an integer-only operator sees a non-integer stamp.
	ErrNotInteger = errors.New("stamp: operand is not an integer stamp")

	// ErrWidthMismatch is returned when a binary operator sees operands of different widths.
	ErrWidthMismatch = errors.New("stamp: operand widths differ")
)

// Stamp is an immutable abstract integer value.
//
// The zero Stamp is the illegal stamp. Stamps are comparable with ==;
// constructors normalize so that equal sets have equal representations
// as far as the range/mask reduction can tell.
type Stamp struct {
	kind  Kind
	bits  int
	empty bool
	lo    int64
	hi    int64
	down  uint64 // bits known to be one
	up    uint64 // bits that may be one
}

// Illegal returns the stamp of a node without an integer value.
func Illegal() Stamp {
	return Stamp{}
}

// Empty returns the empty w-bit stamp. No value is a member.
func Empty(w int) Stamp {
	return Stamp{kind: KindInteger, bits: w, empty: true}
}

// Unrestricted returns the stamp containing every w-bit value.
func Unrestricted(w int) Stamp {
	return New(w, MinValue(w), MaxValue(w), 0, Mask(w))
}

// ForConstant returns the stamp containing exactly v (truncated to w bits).
func ForConstant(w int, v int64) Stamp {
	v = SignExtend(v, w)
	return New(w, v, v, ZeroExtend(v, w), ZeroExtend(v, w))
}

// ForRange returns the stamp for the signed range [lo, hi].
func ForRange(w int, lo, hi int64) Stamp {
	return New(w, lo, hi, 0, Mask(w))
}

// New builds a normalized w-bit stamp. Bounds are tightened from the masks
// and the masks from the common prefix of the bounds. A contradictory
// description yields Empty(w).
func New(w int, lo, hi int64, down, up uint64) Stamp {
	m := Mask(w)
	down &= m
	up &= m
	if lo < MinValue(w) {
		lo = MinValue(w)
	}
	if hi > MaxValue(w) {
		hi = MaxValue(w)
	}
	if lo > hi || down&^up != 0 {
		return Empty(w)
	}

	// Values in [lo, hi] with a common sign are ordered the same way as
	// unsigned w-bit numbers, so they share the bits above the highest bit
	// in which lo and hi differ.
	if (lo < 0) == (hi < 0) {
		ulo, uhi := ZeroExtend(lo, w), ZeroExtend(hi, w)
		prefix := m
		if diff := ulo ^ uhi; diff != 0 {
			width := uint(64 - bits.LeadingZeros64(diff))
			prefix = m &^ (1<<width - 1)
		}
		down |= ulo & prefix
		up &= (ulo | ^prefix) & m
		if down&^up != 0 {
			return Empty(w)
		}
	}

	if v := minFromMasks(w, down, up); v > lo {
		lo = v
	}
	if v := maxFromMasks(w, down, up); v < hi {
		hi = v
	}
	if lo > hi {
		return Empty(w)
	}
	return Stamp{kind: KindInteger, bits: w, lo: lo, hi: hi, down: down, up: up}
}

func minFromMasks(w int, down, up uint64) int64 {
	sb := signBit(w)
	switch {
	case down&sb != 0:
		return SignExtend(int64(down), w)
	case up&sb != 0:
		return SignExtend(int64(down|sb), w)
	default:
		return int64(down)
	}
}

func maxFromMasks(w int, down, up uint64) int64 {
	sb := signBit(w)
	switch {
	case down&sb != 0:
		return SignExtend(int64(up), w)
	case up&sb != 0:
		return int64(up &^ sb)
	default:
		return int64(up)
	}
}

// Kind returns the stamp kind.
func (s Stamp) Kind() Kind { return s.kind }

// IsInteger reports whether s is an integer stamp (possibly empty).
func (s Stamp) IsInteger() bool { return s.kind == KindInteger }

// Bits returns the width. Zero for the illegal stamp.
func (s Stamp) Bits() int { return s.bits }

// IsEmpty reports whether no value is a member of s.
func (s Stamp) IsEmpty() bool { return s.kind == KindInteger && s.empty }

// Lower returns the signed lower bound.
func (s Stamp) Lower() int64 { return s.lo }

// Upper returns the signed upper bound.
func (s Stamp) Upper() int64 { return s.hi }

// DownMask returns the bits known to be one.
func (s Stamp) DownMask() uint64 { return s.down }

// UpMask returns the bits that may be one.
func (s Stamp) UpMask() uint64 { return s.up }

// CanBeNegative reports whether a negative value is a member.
func (s Stamp) CanBeNegative() bool { return s.IsInteger() && !s.empty && s.lo < 0 }

// CanBeZero reports whether zero is a member.
func (s Stamp) CanBeZero() bool {
	return s.IsInteger() && !s.empty && s.lo <= 0 && s.hi >= 0 && s.down == 0
}

// NeverNegative reports whether every member is >= 0.
func (s Stamp) NeverNegative() bool { return s.IsInteger() && !s.empty && s.lo >= 0 }

// IsStrictlyPositive reports whether every member is > 0.
func (s Stamp) IsStrictlyPositive() bool { return s.IsInteger() && !s.empty && s.lo > 0 }

// IsUnrestricted reports whether every w-bit value is a member.
func (s Stamp) IsUnrestricted() bool {
	return s.IsInteger() && !s.empty && s.lo == MinValue(s.bits) && s.hi == MaxValue(s.bits)
}

// IsConstant reports whether s contains exactly one value.
func (s Stamp) IsConstant() bool { return s.IsInteger() && !s.empty && s.lo == s.hi }

// AsConstant returns the single member of s.
func (s Stamp) AsConstant() (int64, bool) {
	if !s.IsConstant() {
		return 0, false
	}
	return s.lo, true
}

// Contains reports whether v (truncated to the stamp's width) is a member.
func (s Stamp) Contains(v int64) bool {
	if !s.IsInteger() || s.empty {
		return false
	}
	v = SignExtend(v, s.bits)
	u := ZeroExtend(v, s.bits)
	return v >= s.lo && v <= s.hi && u&s.down == s.down && u&^s.up == 0
}

// IsCompatible reports whether s and o describe values of the same kind and width.
func (s Stamp) IsCompatible(o Stamp) bool {
	return s.kind == o.kind && s.bits == o.bits
}

// Join returns the intersection of s and o.
func (s Stamp) Join(o Stamp) Stamp {
	if !s.IsInteger() || !o.IsInteger() || s.bits != o.bits {
		return Illegal()
	}
	if s.empty || o.empty {
		return Empty(s.bits)
	}
	return New(s.bits, max(s.lo, o.lo), min(s.hi, o.hi), s.down|o.down, s.up&o.up)
}

// Meet returns the smallest stamp containing both s and o.
func (s Stamp) Meet(o Stamp) Stamp {
	if !s.IsInteger() || !o.IsInteger() || s.bits != o.bits {
		return Illegal()
	}
	if s.empty {
		return o
	}
	if o.empty {
		return s
	}
	return New(s.bits, min(s.lo, o.lo), max(s.hi, o.hi), s.down&o.down, s.up|o.up)
}

// knownTrailingZeros returns how many low bits are known to be zero.
func (s Stamp) knownTrailingZeros() int {
	tz := bits.TrailingZeros64(s.up)
	if tz > s.bits {
		return s.bits
	}
	return tz
}

// String renders s as "i32 [-50, 50]", "i32 4", "i32 empty" or "illegal".
// Masks are appended only when they carry more than the range implies.
func (s Stamp) String() string {
	if !s.IsInteger() {
		return "illegal"
	}
	if s.empty {
		return fmt.Sprintf("i%d empty", s.bits)
	}
	if s.lo == s.hi {
		return fmt.Sprintf("i%d %d", s.bits, s.lo)
	}
	out := fmt.Sprintf("i%d [%d, %d]", s.bits, s.lo, s.hi)
	r := ForRange(s.bits, s.lo, s.hi)
	if r.down != s.down || r.up != s.up {
		out += fmt.Sprintf(" down=%#x up=%#x", s.down, s.up)
	}
	return out
}
