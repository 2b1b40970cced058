package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/stamp"
)

func newParam(t *testing.T, g *Graph, name string, lo, hi int64) *Node {
	t.Helper()
	p, err := g.AddParam(name, stamp.ForRange(32, lo, hi))
	require.NoError(t, err)
	return p
}

func TestGraph_ConstantsDeduplicated(t *testing.T) {
	g := NewGraph("consts")

	a := g.Const(32, 4)
	b := g.Add(NewConst(32, 4))
	c := g.Const(64, 4)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Len(t, g.Live(), 2)
}

func TestGraph_AddAttachesFloatingInputs(t *testing.T) {
	g := NewGraph("add")
	x := newParam(t, g, "x", 0, 10)
	one := g.Const(32, 1)

	n := g.Add(NewAdd(x, NewConst(32, 1)))

	assert.True(t, n.IsAttached())
	assert.NotZero(t, n.ID())
	assert.Same(t, one, n.Y(), "floating constant input resolves to the pooled constant")
	assert.Equal(t, 1, x.UsageCount())
	assert.Equal(t, []*Node{n}, one.Usages())
	assert.Same(t, n, g.Add(n), "adding an attached node is a no-op")
}

func TestGraph_AddForeignNodePanics(t *testing.T) {
	g1 := NewGraph("a")
	g2 := NewGraph("b")
	c := g1.Const(32, 1)

	assert.Panics(t, func() { g2.Add(NewNeg(c)) })
}

func TestGraph_AddParamRejectsDuplicatesAndIllegal(t *testing.T) {
	g := NewGraph("params")
	newParam(t, g, "x", 0, 1)

	_, err := g.AddParam("x", stamp.Unrestricted(32))
	assert.Error(t, err)

	_, err = g.AddParam("y", stamp.Illegal())
	assert.Error(t, err)
}

func TestGraph_AppendFixedBuildsChain(t *testing.T) {
	g := NewGraph("chain")
	x := newParam(t, g, "x", 0, 100)
	y := newParam(t, g, "y", 1, 10)

	d, err := g.AppendFixed(NewDiv(x, y, &FrameState{BCI: 1}))
	require.NoError(t, err)
	r, err := g.AppendFixed(NewRem(x, y, &FrameState{BCI: 2}))
	require.NoError(t, err)

	assert.Equal(t, []*Node{d, r}, g.Chain())
	assert.Same(t, r, d.Next())
	assert.Same(t, d, r.Prev())

	_, err = g.AppendFixed(NewAdd(x, y))
	assert.Error(t, err, "floating ops cannot be appended to the chain")
}

func TestGraph_ReplaceRepointsUsagesAndOutputs(t *testing.T) {
	g := NewGraph("replace")
	x := newParam(t, g, "x", 0, 100)
	d, err := g.AppendFixed(NewDiv(x, g.Const(32, 4), nil))
	require.NoError(t, err)
	sum := g.Add(NewAdd(d, g.Const(32, 1)))
	g.SetOutput("q", d)
	g.SetOutput("r", sum)
	four := d.Y()

	shr := g.Replace(d, NewShr(x, NewConst(32, 2)))

	assert.True(t, shr.IsAttached())
	assert.Same(t, shr, sum.X())
	assert.Same(t, shr, g.Output("q"))
	assert.True(t, d.IsDead())
	assert.Empty(t, g.Chain(), "fixed node replaced by a floating one is unlinked")
	assert.True(t, four.IsDead(), "unused constant is killed with its user")
	assert.Nil(t, g.Node(four.ID()))
}

func TestGraph_ReplaceFixedWithFixedInPlace(t *testing.T) {
	g := NewGraph("in-place")
	x := newParam(t, g, "x", 0, 100)
	y := newParam(t, g, "y", 1, 10)
	d, err := g.AppendFixed(NewDiv(x, y, nil))
	require.NoError(t, err)
	r, err := g.AppendFixed(NewRem(x, y, nil))
	require.NoError(t, err)
	g.SetOutput("q", d)

	u := g.Replace(d, NewUDiv(x, y, nil))

	assert.Equal(t, []*Node{u, r}, g.Chain())
	assert.Same(t, u, g.Output("q"))
}

func TestGraph_ReplaceWithLinkedSuccessor(t *testing.T) {
	g := NewGraph("dup")
	x := newParam(t, g, "x", 0, 100)
	y := newParam(t, g, "y", 1, 10)
	d1, err := g.AppendFixed(NewDiv(x, y, nil))
	require.NoError(t, err)
	d2, err := g.AppendFixed(NewDiv(x, y, nil))
	require.NoError(t, err)
	g.SetOutput("a", d1)
	g.SetOutput("b", d2)

	g.Replace(d1, d2)

	assert.Equal(t, []*Node{d2}, g.Chain())
	assert.Same(t, d2, g.Output("a"))
	assert.Equal(t, 0, d2.UsageCount())
}

func TestGraph_KillRemovesUnusedFloatingInputs(t *testing.T) {
	g := NewGraph("kill")
	x := newParam(t, g, "x", 0, 100)
	a := g.Add(NewAdd(x, g.Const(32, 5)))
	n := g.Add(NewNeg(a))

	g.Kill(n)

	assert.True(t, n.IsDead())
	assert.True(t, a.IsDead())
	assert.False(t, x.IsDead(), "parameters are never killed implicitly")
	assert.Equal(t, []*Node{x}, g.Live())
	assert.Panics(t, func() {
		b := g.Add(NewNeg(x))
		g.Add(NewNeg(b))
		g.Kill(b)
	})
}

func TestGraph_KillKeepsOutputs(t *testing.T) {
	g := NewGraph("keep")
	x := newParam(t, g, "x", 0, 100)
	a := g.Add(NewNeg(x))
	n := g.Add(NewNeg(a))
	g.SetOutput("a", a)

	g.Kill(n)

	assert.False(t, a.IsDead())
}

func TestGraph_MarkNewSince(t *testing.T) {
	g := NewGraph("mark")
	x := newParam(t, g, "x", 0, 100)
	mark := g.Mark()

	n := g.Add(NewAdd(x, NewConst(32, 3)))

	got := g.NewSince(mark)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsConstant())
	assert.Same(t, n, got[1])
}

func TestGraph_ParamsSkipsDead(t *testing.T) {
	g := NewGraph("params")
	x := newParam(t, g, "x", 0, 100)
	y := newParam(t, g, "y", 0, 100)
	s := g.Add(NewSub(x, y))
	g.SetOutput("s", s)

	g.Replace(y, NewConst(32, 3))

	assert.Equal(t, []*Node{x}, g.Params())
	assert.Nil(t, g.Param("y"))
}
