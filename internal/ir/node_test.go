package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/stamp"
)

func TestNewBinary_FoldsStamp(t *testing.T) {
	g := NewGraph("stamps")
	x := newParam(t, g, "x", 0, 100)

	d := NewDiv(x, g.Const(32, 4), &FrameState{BCI: 7})

	assert.Equal(t, int64(0), d.Stamp().Lower())
	assert.Equal(t, int64(25), d.Stamp().Upper())
	assert.Equal(t, 7, d.State().BCI)
	assert.Equal(t, NodeID(0), d.ID(), "constructors build floating nodes")
	assert.False(t, d.IsAttached())
}

func TestNewBinary_FloatingOpsDropState(t *testing.T) {
	g := NewGraph("state")
	x := newParam(t, g, "x", 0, 100)

	n := NewBinary(OpAdd, x, x, &FrameState{BCI: 1})

	assert.Nil(t, n.State())
}

func TestNewBinary_WidthMismatchIsIllegal(t *testing.T) {
	n := NewAdd(NewConst(32, 1), NewConst(64, 1))

	assert.False(t, n.Stamp().IsInteger())
}

func TestNewConst_Truncates(t *testing.T) {
	c := NewConst(8, 255)

	v, ok := c.AsConstant()
	require.True(t, ok)
	assert.Equal(t, int64(-1), v)
	assert.True(t, c.IsConstantValue(-1))
	assert.True(t, c.IsConstantValue(255))
}

func TestInferStamp_RefinesAfterInputChange(t *testing.T) {
	g := NewGraph("infer")
	p := newParam(t, g, "p", -50, 50)
	q := newParam(t, g, "q", 0, 10)
	s := g.Add(NewSub(p, q))
	g.SetOutput("s", s)
	require.Equal(t, int64(-60), s.Stamp().Lower())

	g.Replace(q, NewConst(32, 3))

	changed, err := s.InferStamp()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(-53), s.Stamp().Lower())
	assert.Equal(t, int64(47), s.Stamp().Upper())

	changed, err = s.InferStamp()
	require.NoError(t, err)
	assert.False(t, changed, "second inference is a fixpoint")
}

func TestInferStamp_EmptyIsConflict(t *testing.T) {
	g := NewGraph("conflict")
	p := newParam(t, g, "p", 0, 10)
	a := g.Add(NewAdd(p, g.Const(32, 1)))
	g.SetOutput("a", a)
	before := a.Stamp()

	g.Replace(p, NewConst(32, 100))

	_, err := a.InferStamp()
	require.ErrorIs(t, err, ErrEmptyStamp)
	assert.Equal(t, before, a.Stamp(), "stamp is left unchanged on conflict")
}

func TestInferStamp_UnsupportedInput(t *testing.T) {
	n := NewAdd(NewConst(32, 1), NewConst(64, 1))

	_, err := n.InferStamp()
	require.ErrorIs(t, err, stamp.ErrWidthMismatch)
}

func TestStructurallyEqual(t *testing.T) {
	g := NewGraph("eq")
	x := newParam(t, g, "x", 0, 100)
	y := newParam(t, g, "y", 1, 10)

	tests := []struct {
		name string
		a, b *Node
		want bool
	}{
		{"same op and inputs, different states", NewDiv(x, y, &FrameState{BCI: 1}), NewDiv(x, y, &FrameState{BCI: 2}), true},
		{"different op", NewDiv(x, y, nil), NewRem(x, y, nil), false},
		{"swapped inputs", NewDiv(x, y, nil), NewDiv(y, x, nil), false},
		{"equal constants", NewConst(32, 4), NewConst(32, 4), true},
		{"constants of different width", NewConst(32, 4), NewConst(64, 4), false},
		{"nil", NewNeg(x), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StructurallyEqual(tt.a, tt.b))
		})
	}
}

func TestOp_Properties(t *testing.T) {
	op, ok := ParseOp("udiv")
	require.True(t, ok)
	assert.Equal(t, OpUDiv, op)

	_, ok = ParseOp("invalid")
	assert.False(t, ok)
	_, ok = ParseOp("mul")
	assert.False(t, ok)

	kind, sign, ok := OpURem.DivRem()
	require.True(t, ok)
	assert.Equal(t, KindRem, kind)
	assert.Equal(t, Unsigned, sign)
	assert.Equal(t, OpURem, DivRemOp(kind, sign))
	assert.Equal(t, OpDiv, DivRemOp(KindDiv, Signed))

	_, _, ok = OpAdd.DivRem()
	assert.False(t, ok)

	assert.True(t, OpRem.IsFixed())
	assert.False(t, OpShr.IsFixed())
	assert.True(t, OpUShr.IsShift())
	assert.True(t, OpAnd.IsCommutative())
	assert.False(t, OpSub.IsCommutative())
	assert.False(t, OpNeg.IsBinary())
	assert.Equal(t, "Op(99)", Op(99).String())
}

func TestFrameState_String(t *testing.T) {
	var fs *FrameState
	assert.Equal(t, "<none>", fs.String())
	assert.Equal(t, "bci=4", (&FrameState{BCI: 4}).String())
	assert.Equal(t, "f@bci=4", (&FrameState{BCI: 4, Method: "f"}).String())
}

func TestAssumptions_RefineView(t *testing.T) {
	g := NewGraph("view")
	x := newParam(t, g, "x", -50, 50)

	view := Assumptions{x: stamp.ForRange(32, 0, 1000)}

	s := view.Stamp(x)
	assert.Equal(t, int64(0), s.Lower())
	assert.Equal(t, int64(50), s.Upper())
	assert.Equal(t, x.Stamp(), DefaultView{}.Stamp(x))

	contradictory := Assumptions{x: stamp.ForRange(32, 100, 200)}
	assert.Equal(t, x.Stamp(), contradictory.Stamp(x))
}
