package stamp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allBinaryOps = []BinaryOp{OpAdd, OpSub, OpAnd, OpShl, OpShr, OpUShr, OpDiv, OpRem, OpUDiv, OpURem}

// byteSamples covers constants, boundary ranges and mask-only stamps at
// width 8 so that every member can be enumerated.
func byteSamples() []Stamp {
	return []Stamp{
		Unrestricted(8),
		ForConstant(8, 0),
		ForConstant(8, 1),
		ForConstant(8, -1),
		ForConstant(8, -128),
		ForConstant(8, 4),
		ForConstant(8, 7),
		ForRange(8, 0, 100),
		ForRange(8, -50, 50),
		ForRange(8, -128, -100),
		ForRange(8, -3, 3),
		ForRange(8, 1, 7),
		ForRange(8, -8, -2),
		New(8, -128, 127, 0, 0xfc),
		New(8, -128, 127, 0x01, 0xff),
	}
}

func members(s Stamp) []int64 {
	var out []int64
	for v := int64(-128); v <= 127; v++ {
		if s.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

func TestFold_SoundOnByteDomain(t *testing.T) {
	samples := byteSamples()
	for _, op := range allBinaryOps {
		t.Run(op.String(), func(t *testing.T) {
			for _, sx := range samples {
				for _, sy := range samples {
					got, err := Fold(op, sx, sy)
					require.NoError(t, err)
					for _, x := range members(sx) {
						for _, y := range members(sy) {
							v, ok := Apply(op, x, y, 8)
							if !ok {
								continue
							}
							if !got.Contains(v) {
								t.Fatalf("%s(%d, %d) = %d not in %s (x: %s, y: %s)", op, x, y, v, got, sx, sy)
							}
						}
					}
				}
			}
		})
	}
}

func TestFoldNeg_SoundOnByteDomain(t *testing.T) {
	for _, sx := range byteSamples() {
		got, err := FoldNeg(sx)
		require.NoError(t, err)
		for _, x := range members(sx) {
			v := Negate(x, 8)
			require.True(t, got.Contains(v), "-(%d) = %d not in %s (x: %s)", x, v, got, sx)
		}
	}
}

func TestFold_ConstantsAreExact(t *testing.T) {
	got, err := Fold(OpDiv, ForConstant(32, -7), ForConstant(32, 4))
	require.NoError(t, err)
	v, ok := got.AsConstant()
	require.True(t, ok)
	assert.Equal(t, int64(-1), v)

	got, err = Fold(OpRem, ForConstant(32, -7), ForConstant(32, 4))
	require.NoError(t, err)
	v, ok = got.AsConstant()
	require.True(t, ok)
	assert.Equal(t, int64(-3), v)
}

func TestFold_Division(t *testing.T) {
	tests := []struct {
		name   string
		x, y   Stamp
		lo, hi int64
	}{
		{"non-negative dividend", ForRange(32, 0, 100), ForConstant(32, 4), 0, 25},
		{"mixed dividend", ForRange(32, -50, 50), ForConstant(32, 4), -12, 12},
		{"negative divisor", ForRange(32, 0, 100), ForConstant(32, -4), -25, 0},
		{"divisor straddles zero", ForRange(32, 10, 20), ForRange(32, -2, 2), -20, 20},
		{"divisor exactly zero", ForRange(32, 10, 20), ForConstant(32, 0), math.MinInt32, math.MaxInt32},
		{"min over minus one", ForRange(32, math.MinInt32, 0), ForRange(32, -1, 1), math.MinInt32, math.MaxInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fold(OpDiv, tt.x, tt.y)
			require.NoError(t, err)
			assert.False(t, got.IsEmpty())
			assert.Equal(t, tt.lo, got.Lower())
			assert.Equal(t, tt.hi, got.Upper())
		})
	}
}

func TestFold_Remainder(t *testing.T) {
	got, err := Fold(OpRem, ForRange(32, -50, 50), ForConstant(32, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), got.Lower())
	assert.Equal(t, int64(3), got.Upper())

	got, err = Fold(OpRem, ForRange(32, 0, 2), ForConstant(32, 16))
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Lower())
	assert.Equal(t, int64(2), got.Upper())
}

func TestFold_ShiftAmountWidthMayDiffer(t *testing.T) {
	got, err := Fold(OpShl, ForRange(64, 0, 10), ForConstant(32, 3))
	require.NoError(t, err)
	assert.Equal(t, 64, got.Bits())
	assert.Equal(t, int64(0), got.Lower())
	assert.Equal(t, int64(80), got.Upper())
	assert.Equal(t, uint64(0), got.UpMask()&0x7)
}

func TestFold_ShiftRightOfSignMask(t *testing.T) {
	x := ForRange(32, -50, 50)

	sign, err := Fold(OpShr, x, ForConstant(32, 31))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), sign.Lower())
	assert.Equal(t, int64(0), sign.Upper())

	bias, err := Fold(OpUShr, sign, ForConstant(32, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(0), bias.Lower())
	assert.Equal(t, int64(3), bias.Upper())
}

func TestFold_Errors(t *testing.T) {
	_, err := Fold(OpAdd, ForConstant(32, 1), ForConstant(64, 1))
	assert.ErrorIs(t, err, ErrWidthMismatch)

	_, err = Fold(OpDiv, Illegal(), ForConstant(32, 1))
	assert.ErrorIs(t, err, ErrNotInteger)

	_, err = FoldNeg(Illegal())
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestFold_EmptyPropagates(t *testing.T) {
	got, err := Fold(OpAdd, Empty(32), ForConstant(32, 1))
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestFoldNeg(t *testing.T) {
	got, err := FoldNeg(ForRange(32, -5, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(-10), got.Lower())
	assert.Equal(t, int64(5), got.Upper())

	got, err = FoldNeg(ForRange(32, math.MinInt32, 0))
	require.NoError(t, err)
	assert.True(t, got.IsUnrestricted())
}

func TestBinaryOp_String(t *testing.T) {
	assert.Equal(t, "div", OpDiv.String())
	assert.Equal(t, "ushr", OpUShr.String())
	assert.Equal(t, "BinaryOp(99)", BinaryOp(99).String())
	assert.True(t, OpShr.IsShift())
	assert.False(t, OpRem.IsShift())
}
