package ir

import (
	"fmt"

	"github.com/roach88/seanode/internal/stamp"
)

// Op is the closed set of node operators.
type Op uint8

const (
	OpInvalid Op = iota
	OpConst
	OpParam
	OpAdd
	OpSub
	OpNeg
	OpAnd
	OpShl
	OpShr  // arithmetic
	OpUShr // logical
	OpDiv  // signed, truncating
	OpRem  // signed, sign of dividend
	OpUDiv
	OpURem
)

var opNames = [...]string{
	OpInvalid: "invalid",
	OpConst:   "const",
	OpParam:   "param",
	OpAdd:     "add",
	OpSub:     "sub",
	OpNeg:     "neg",
	OpAnd:     "and",
	OpShl:     "shl",
	OpShr:     "shr",
	OpUShr:    "ushr",
	OpDiv:     "div",
	OpRem:     "rem",
	OpUDiv:    "udiv",
	OpURem:    "urem",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// ParseOp returns the operator named s.
func ParseOp(s string) (Op, bool) {
	for i, name := range opNames {
		if name == s && Op(i) != OpInvalid {
			return Op(i), true
		}
	}
	return OpInvalid, false
}

// IsFixed reports whether nodes of this op live on the control chain.
func (o Op) IsFixed() bool {
	return o == OpDiv || o == OpRem || o == OpUDiv || o == OpURem
}

// IsBinary reports whether the op takes two inputs.
func (o Op) IsBinary() bool {
	_, ok := o.Binary()
	return ok
}

// IsShift reports whether the op is a shift.
func (o Op) IsShift() bool {
	return o == OpShl || o == OpShr || o == OpUShr
}

// IsCommutative reports whether x op y == y op x.
func (o Op) IsCommutative() bool {
	return o == OpAdd || o == OpAnd
}

// Binary returns the stamp operator that folds this op.
func (o Op) Binary() (stamp.BinaryOp, bool) {
	switch o {
	case OpAdd:
		return stamp.OpAdd, true
	case OpSub:
		return stamp.OpSub, true
	case OpAnd:
		return stamp.OpAnd, true
	case OpShl:
		return stamp.OpShl, true
	case OpShr:
		return stamp.OpShr, true
	case OpUShr:
		return stamp.OpUShr, true
	case OpDiv:
		return stamp.OpDiv, true
	case OpRem:
		return stamp.OpRem, true
	case OpUDiv:
		return stamp.OpUDiv, true
	case OpURem:
		return stamp.OpURem, true
	}
	return 0, false
}

// DivKind distinguishes quotient from remainder.
type DivKind uint8

const (
	KindDiv DivKind = iota
	KindRem
)

func (k DivKind) String() string {
	if k == KindRem {
		return "REM"
	}
	return "DIV"
}

// Signedness distinguishes signed from unsigned division.
type Signedness uint8

const (
	Signed Signedness = iota
	Unsigned
)

func (s Signedness) String() string {
	if s == Unsigned {
		return "UNSIGNED"
	}
	return "SIGNED"
}

// DivRem returns the kind and signedness of a division-family op.
func (o Op) DivRem() (DivKind, Signedness, bool) {
	switch o {
	case OpDiv:
		return KindDiv, Signed, true
	case OpRem:
		return KindRem, Signed, true
	case OpUDiv:
		return KindDiv, Unsigned, true
	case OpURem:
		return KindRem, Unsigned, true
	}
	return 0, 0, false
}

// DivRemOp returns the division-family op for kind and signedness.
func DivRemOp(kind DivKind, sign Signedness) Op {
	switch {
	case kind == KindDiv && sign == Signed:
		return OpDiv
	case kind == KindRem && sign == Signed:
		return OpRem
	case kind == KindDiv:
		return OpUDiv
	default:
		return OpURem
	}
}
