package canon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// evalTree evaluates a node tree for the given parameter values.
func evalTree(t *testing.T, n *ir.Node, env map[*ir.Node]int64) int64 {
	t.Helper()
	switch n.Op() {
	case ir.OpConst:
		v, _ := n.AsConstant()
		return v
	case ir.OpParam:
		v, ok := env[n]
		require.True(t, ok, "no value for %s", n)
		return v
	case ir.OpNeg:
		return stamp.Negate(evalTree(t, n.X(), env), n.X().Bits())
	}
	bop, ok := n.Op().Binary()
	require.True(t, ok)
	v, ok := stamp.Apply(bop, evalTree(t, n.X(), env), evalTree(t, n.Y(), env), n.X().Bits())
	require.True(t, ok, "%s trapped", n)
	return v
}

func param32(t *testing.T, g *ir.Graph, name string, s stamp.Stamp) *ir.Node {
	t.Helper()
	p, err := g.AddParam(name, s)
	require.NoError(t, err)
	return p
}

var int32Boundaries = []int64{
	math.MinInt32, math.MinInt32 + 1, -1 << 30, -65537, -100, -8, -7, -4, -3, -2, -1,
	0, 1, 2, 3, 4, 7, 8, 100, 65537, 1 << 30, math.MaxInt32 - 1, math.MaxInt32,
}

func TestSignedDiv_FoldsConstants(t *testing.T) {
	tests := []struct {
		x, y, want int64
	}{
		{7, 2, 3},
		{-7, 2, -3},
		{7, -2, -3},
		{-7, -2, 3},
		{-7, 4, -1},
		{math.MinInt32, -1, math.MinInt32},
		{math.MaxInt32, math.MinInt32, 0},
		{0, 5, 0},
	}

	for _, tt := range tests {
		got, rule := SignedDiv(nil, ir.NewConst(32, tt.x), ir.NewConst(32, tt.y), nil, DefaultTool())

		require.Equal(t, RuleFoldConstant, rule)
		v, ok := got.AsConstant()
		require.True(t, ok)
		assert.Equal(t, tt.want, v, "%d / %d", tt.x, tt.y)
	}
}

func TestSignedDiv_ZeroDivisorPreserved(t *testing.T) {
	g := ir.NewGraph("trap")
	d, err := g.AppendFixed(ir.NewDiv(g.Const(32, 7), g.Const(32, 0), &ir.FrameState{BCI: 2}))
	require.NoError(t, err)

	got, rule, err := Node(d, DefaultTool())
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.Equal(t, RuleNone, rule)

	fresh, rule := SignedDiv(nil, d.X(), d.Y(), d.State(), DefaultTool())
	assert.Equal(t, RuleNone, rule)
	assert.False(t, fresh.IsConstant())
	assert.True(t, ir.StructurallyEqual(d, fresh))
	assert.Same(t, d.State(), fresh.State())
}

func TestSignedDiv_NonNegativeDividendIsPlainShift(t *testing.T) {
	g := ir.NewGraph("pos")
	x := param32(t, g, "x", stamp.ForRange(32, 0, 100))

	got, rule := SignedDiv(nil, x, g.Const(32, 4), nil, DefaultTool())

	assert.Equal(t, RuleDivPowerOfTwo, rule)
	require.Equal(t, ir.OpShr, got.Op())
	assert.Same(t, x, got.X(), "no rounding correction")
	assert.True(t, got.Y().IsConstantValue(2))
}

func TestSignedDiv_MixedDividendRounds(t *testing.T) {
	g := ir.NewGraph("mixed")
	x := param32(t, g, "x", stamp.ForRange(32, -50, 50))

	got, rule := SignedDiv(nil, x, g.Const(32, 4), nil, DefaultTool())

	assert.Equal(t, RuleDivPowerOfTwo, rule)
	require.Equal(t, ir.OpShr, got.Op())
	assert.True(t, got.Y().IsConstantValue(2))
	add := got.X()
	require.Equal(t, ir.OpAdd, add.Op())
	assert.Same(t, x, add.X())
	round := add.Y()
	require.Equal(t, ir.OpUShr, round.Op())
	assert.True(t, round.Y().IsConstantValue(30))
	sign := round.X()
	require.Equal(t, ir.OpShr, sign.Op())
	assert.Same(t, x, sign.X())
	assert.True(t, sign.Y().IsConstantValue(31))

	assert.Equal(t, int64(-1), evalTree(t, got, map[*ir.Node]int64{x: -7}))
	for v := int64(-50); v <= 50; v++ {
		assert.Equal(t, v/4, evalTree(t, got, map[*ir.Node]int64{x: v}), "x=%d", v)
	}
}

func TestSignedDiv_KnownLowZeroBitsSkipRounding(t *testing.T) {
	g := ir.NewGraph("aligned")
	// Multiples of 8 in [-64, 56].
	x := param32(t, g, "x", stamp.New(32, -64, 56, 0, stamp.Mask(32)&^7))

	got, _ := SignedDiv(nil, x, g.Const(32, 4), nil, DefaultTool())

	require.Equal(t, ir.OpShr, got.Op())
	assert.Same(t, x, got.X())
}

func TestSignedDiv_ViewAssumptionsSkipRounding(t *testing.T) {
	g := ir.NewGraph("assumed")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	tool := NewTool(ir.Assumptions{x: stamp.ForRange(32, 0, math.MaxInt32)}, DefaultOptions())

	got, _ := SignedDiv(nil, x, g.Const(32, 8), nil, tool)

	require.Equal(t, ir.OpShr, got.Op())
	assert.Same(t, x, got.X())
}

func TestDivByConstant_PowerOfTwoEquivalence(t *testing.T) {
	g := ir.NewGraph("equiv")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	divisors := []int64{1, -1, 2, 4, 8, 16, 1 << 20, 1 << 30, -2, -4, -8, -(1 << 30), math.MinInt32}

	for _, c := range divisors {
		n := DivByConstant(x, c, ir.DefaultView{})
		require.NotNil(t, n, "c=%d", c)
		for _, v := range int32Boundaries {
			want, ok := stamp.Apply(stamp.OpDiv, v, c, 32)
			require.True(t, ok)
			assert.Equal(t, want, evalTree(t, n, map[*ir.Node]int64{x: v}), "%d / %d", v, c)
		}
	}
}

func TestDivByConstant_Int64Min(t *testing.T) {
	g := ir.NewGraph("i64")
	x, err := g.AddParam("x", stamp.Unrestricted(64))
	require.NoError(t, err)

	n := DivByConstant(x, math.MinInt64, ir.DefaultView{})
	require.NotNil(t, n)
	for _, v := range []int64{math.MinInt64, math.MinInt64 + 1, -1, 0, 1, math.MaxInt64} {
		assert.Equal(t, v/math.MinInt64, evalTree(t, n, map[*ir.Node]int64{x: v}), "x=%d", v)
	}
}

func TestDivByConstant_Shapes(t *testing.T) {
	g := ir.NewGraph("shapes")
	x := param32(t, g, "x", stamp.Unrestricted(32))

	assert.Same(t, x, DivByConstant(x, 1, ir.DefaultView{}))
	assert.Equal(t, ir.OpNeg, DivByConstant(x, -1, ir.DefaultView{}).Op())
	assert.Nil(t, DivByConstant(x, 3, ir.DefaultView{}))
	assert.Nil(t, DivByConstant(x, -6, ir.DefaultView{}))
	assert.Nil(t, DivByConstant(x, 0, ir.DefaultView{}))

	neg := DivByConstant(x, -4, ir.DefaultView{})
	require.Equal(t, ir.OpNeg, neg.Op())
	assert.Equal(t, ir.OpShr, neg.X().Op())
}

func TestSignedDiv_Idempotent(t *testing.T) {
	g := ir.NewGraph("idem")
	x := param32(t, g, "x", stamp.ForRange(32, -50, 50))
	shift, _ := SignedDiv(nil, x, g.Const(32, 4), nil, DefaultTool())
	shift = g.SetOutput("q", shift)

	for _, n := range g.Live() {
		got, rule, err := Node(n, DefaultTool())
		require.NoError(t, err)
		assert.Same(t, n, got, "%s is canonical", n)
		assert.Equal(t, RuleNone, rule)
	}
	assert.Equal(t, ir.OpShr, shift.Op())
}

func TestSignedDiv_StrengthReductionDisabled(t *testing.T) {
	g := ir.NewGraph("off")
	x := param32(t, g, "x", stamp.ForRange(32, 0, 100))
	d, err := g.AppendFixed(ir.NewDiv(x, g.Const(32, 4), nil))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.StrengthReduction = false
	got, rule, err := Node(d, NewTool(nil, opts))
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.Equal(t, RuleNone, rule)
}

func floorGraph(t *testing.T, remDivisor bool) (*ir.Graph, *ir.Node, *ir.Node, *ir.Node) {
	t.Helper()
	g := ir.NewGraph("floor")
	a := param32(t, g, "a", stamp.Unrestricted(32))
	b := param32(t, g, "b", stamp.Unrestricted(32))
	other := param32(t, g, "c", stamp.Unrestricted(32))
	remBy := b
	if !remDivisor {
		remBy = other
	}
	r, err := g.AppendFixed(ir.NewRem(a, remBy, &ir.FrameState{BCI: 1}))
	require.NoError(t, err)
	s := g.Add(ir.NewSub(a, r))
	d, err := g.AppendFixed(ir.NewDiv(s, b, &ir.FrameState{BCI: 5}))
	require.NoError(t, err)
	g.SetOutput("q", d)
	return g, a, b, d
}

func TestSignedDiv_FloorCorrection(t *testing.T) {
	_, a, b, d := floorGraph(t, true)

	got, rule, err := Node(d, DefaultTool())
	require.NoError(t, err)

	assert.Equal(t, RuleFloorCorrection, rule)
	require.Equal(t, ir.OpDiv, got.Op())
	assert.Same(t, a, got.X())
	assert.Same(t, b, got.Y())
	assert.Same(t, d.State(), got.State(), "rebuilt division keeps the frame state")

	samples := [][2]int64{{7, 2}, {-7, 2}, {7, -2}, {-7, -2}, {100, 7}, {math.MinInt32, -1}, {math.MinInt32, 3}, {0, 9}}
	for _, s := range samples {
		env := map[*ir.Node]int64{a: s[0], b: s[1]}
		assert.Equal(t, evalTree(t, d, env), evalTree(t, got, env), "a=%d b=%d", s[0], s[1])
	}
}

func TestSignedDiv_FloorCorrectionNeedsSameDivisor(t *testing.T) {
	_, _, _, d := floorGraph(t, false)

	got, rule, err := Node(d, DefaultTool())
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.Equal(t, RuleNone, rule)
}

func TestSignedDiv_AdjacentDuplicate(t *testing.T) {
	g := ir.NewGraph("dup")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	y := param32(t, g, "y", stamp.Unrestricted(32))
	d1, err := g.AppendFixed(ir.NewDiv(x, y, &ir.FrameState{BCI: 1}))
	require.NoError(t, err)
	d2, err := g.AppendFixed(ir.NewDiv(x, y, &ir.FrameState{BCI: 2}))
	require.NoError(t, err)

	got, rule, err := Node(d1, DefaultTool())
	require.NoError(t, err)
	assert.Same(t, d2, got, "the later occurrence wins")
	assert.Equal(t, RuleAdjacentDuplicate, rule)

	got, rule, err = Node(d2, DefaultTool())
	require.NoError(t, err)
	assert.Same(t, d2, got)
	assert.Equal(t, RuleNone, rule)

	opts := DefaultOptions()
	opts.AdjacentDuplicates = false
	got, _, err = Node(d1, NewTool(nil, opts))
	require.NoError(t, err)
	assert.Same(t, d1, got)
}

func TestSignedDiv_AdjacentDuplicateIsOneStep(t *testing.T) {
	g := ir.NewGraph("gap")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	y := param32(t, g, "y", stamp.Unrestricted(32))
	d1, err := g.AppendFixed(ir.NewDiv(x, y, nil))
	require.NoError(t, err)
	_, err = g.AppendFixed(ir.NewRem(x, y, nil))
	require.NoError(t, err)
	_, err = g.AppendFixed(ir.NewDiv(x, y, nil))
	require.NoError(t, err)

	got, rule, err := Node(d1, DefaultTool())
	require.NoError(t, err)
	assert.Same(t, d1, got)
	assert.Equal(t, RuleNone, rule)
}

func TestSignedDiv_AdjacentDuplicateNeedsSameOperands(t *testing.T) {
	g := ir.NewGraph("swapped")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	y := param32(t, g, "y", stamp.Unrestricted(32))
	d1, err := g.AppendFixed(ir.NewDiv(x, y, &ir.FrameState{BCI: 1}))
	require.NoError(t, err)
	d2, err := g.AppendFixed(ir.NewDiv(x, y, &ir.FrameState{BCI: 2}))
	require.NoError(t, err)

	// d1 reconsidered with new operands must not collapse into d2.
	got, rule, err := Canonicalize(ir.OpDiv, d1, y, x, DefaultTool())
	require.NoError(t, err)
	assert.NotSame(t, d2, got)
	assert.Equal(t, RuleNone, rule)
	assert.Same(t, y, got.X())
	assert.Same(t, x, got.Y())
	assert.Equal(t, 1, got.State().BCI)
}

func TestSignedDiv_FloatingCandidateHasNoSuccessor(t *testing.T) {
	g := ir.NewGraph("floating")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	y := param32(t, g, "y", stamp.Unrestricted(32))

	got, rule, err := Canonicalize(ir.OpDiv, nil, x, y, DefaultTool())
	require.NoError(t, err)
	assert.Equal(t, RuleNone, rule)
	assert.Equal(t, ir.OpDiv, got.Op())
	assert.False(t, got.IsAttached())
}

func TestSignedRem_Rules(t *testing.T) {
	g := ir.NewGraph("rem")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	pos := param32(t, g, "p", stamp.ForRange(32, 0, 1000))

	tests := []struct {
		name string
		x    *ir.Node
		c    int64
		rule Rule
		op   ir.Op
	}{
		{"by one", x, 1, RuleRemByOne, ir.OpConst},
		{"by minus one", x, -1, RuleRemByOne, ir.OpConst},
		{"non-negative dividend masks", pos, 8, RuleRemPowerOfTwo, ir.OpAnd},
		{"signed dividend subtracts", x, 8, RuleRemPowerOfTwo, ir.OpSub},
		{"negative power of two", x, -8, RuleRemPowerOfTwo, ir.OpSub},
		{"negative non power of two", x, -3, RuleRemNegativeDivisor, ir.OpRem},
		{"no rule", x, 3, RuleNone, ir.OpRem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := SignedRem(nil, tt.x, g.Const(32, tt.c), nil, DefaultTool())
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.op, got.Op())
		})
	}
}

func TestSignedRem_PowerOfTwoEquivalence(t *testing.T) {
	g := ir.NewGraph("rem-equiv")
	x := param32(t, g, "x", stamp.Unrestricted(32))
	pos := param32(t, g, "p", stamp.ForRange(32, 0, math.MaxInt32))

	for _, c := range []int64{1, -1, 2, 4, 16, -2, -16, 1 << 30, math.MinInt32, -3, 3} {
		for _, dividend := range []*ir.Node{x, pos} {
			n, _ := SignedRem(nil, dividend, g.Const(32, c), nil, DefaultTool())
			if n.Op() == ir.OpRem {
				continue
			}
			for _, v := range int32Boundaries {
				if v < 0 && dividend == pos {
					continue
				}
				want, ok := stamp.Apply(stamp.OpRem, v, c, 32)
				require.True(t, ok)
				assert.Equal(t, want, evalTree(t, n, map[*ir.Node]int64{dividend: v}), "%d %% %d", v, c)
			}
		}
	}
}

func TestSignedRem_ZeroDivisorPreserved(t *testing.T) {
	g := ir.NewGraph("rem-trap")
	r, err := g.AppendFixed(ir.NewRem(g.Const(32, 7), g.Const(32, 0), nil))
	require.NoError(t, err)

	got, rule, err := Node(r, DefaultTool())
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.Equal(t, RuleNone, rule)
}

func TestUnsigned_PowerOfTwo(t *testing.T) {
	g := ir.NewGraph("unsigned")
	x := param32(t, g, "x", stamp.Unrestricted(32))

	q, rule := UnsignedDiv(nil, x, g.Const(32, 8), nil, DefaultTool())
	assert.Equal(t, RuleDivPowerOfTwo, rule)
	require.Equal(t, ir.OpUShr, q.Op())

	r, rule := UnsignedRem(nil, x, g.Const(32, 8), nil, DefaultTool())
	assert.Equal(t, RuleRemPowerOfTwo, rule)
	require.Equal(t, ir.OpAnd, r.Op())

	top, rule := UnsignedDiv(nil, x, g.Const(32, math.MinInt32), nil, DefaultTool())
	assert.Equal(t, RuleDivPowerOfTwo, rule, "2^31 is a power of two when unsigned")

	for _, v := range int32Boundaries {
		env := map[*ir.Node]int64{x: v}
		want, _ := stamp.Apply(stamp.OpUDiv, v, 8, 32)
		assert.Equal(t, want, evalTree(t, q, env))
		want, _ = stamp.Apply(stamp.OpURem, v, 8, 32)
		assert.Equal(t, want, evalTree(t, r, env))
		want, _ = stamp.Apply(stamp.OpUDiv, v, math.MinInt32, 32)
		assert.Equal(t, want, evalTree(t, top, env))
	}

	one, rule := UnsignedDiv(nil, x, g.Const(32, 1), nil, DefaultTool())
	assert.Equal(t, RuleDivByOne, rule)
	assert.Same(t, x, one)

	zero, rule := UnsignedRem(nil, x, g.Const(32, 1), nil, DefaultTool())
	assert.Equal(t, RuleRemByOne, rule)
	assert.True(t, zero.IsConstantValue(0))

	folded, rule := UnsignedDiv(nil, g.Const(32, -1), g.Const(32, 2), nil, DefaultTool())
	assert.Equal(t, RuleFoldConstant, rule)
	assert.True(t, folded.IsConstantValue(math.MaxInt32))
}

func TestCanonicalize_UnsupportedInput(t *testing.T) {
	tests := []struct {
		name string
		op   ir.Op
		x, y *ir.Node
	}{
		{"width mismatch", ir.OpDiv, ir.NewConst(32, 1), ir.NewConst(64, 1)},
		{"illegal stamp", ir.OpNeg, ir.NewAdd(ir.NewConst(32, 1), ir.NewConst(64, 1)), nil},
		{"missing operand", ir.OpSub, ir.NewConst(32, 1), nil},
		{"not an arithmetic op", ir.OpConst, ir.NewConst(32, 1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Canonicalize(tt.op, nil, tt.x, tt.y, DefaultTool())
			require.Error(t, err)
			assert.True(t, IsUnsupportedInput(err))

			var uerr *UnsupportedInputError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.op, uerr.Op)
		})
	}
}

func TestCanonicalize_ShiftAmountWidthMayDiffer(t *testing.T) {
	g := ir.NewGraph("shift64")
	x, err := g.AddParam("x", stamp.Unrestricted(64))
	require.NoError(t, err)

	got, rule, err := Canonicalize(ir.OpShl, nil, x, ir.NewConst(32, 0), DefaultTool())
	require.NoError(t, err)
	assert.Equal(t, RuleShiftZero, rule)
	assert.Same(t, x, got)
}
