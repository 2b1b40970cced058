package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Param adds a w-bit parameter ranging over [lo, hi] to g.
func Param(t testing.TB, g *ir.Graph, name string, w int, lo, hi int64) *ir.Node {
	t.Helper()
	p, err := g.AddParam(name, stamp.ForRange(w, lo, hi))
	require.NoError(t, err)
	return p
}

// Param32 adds an unrestricted i32 parameter to g.
func Param32(t testing.TB, g *ir.Graph, name string) *ir.Node {
	t.Helper()
	return Param(t, g, name, 32, stamp.MinValue(32), stamp.MaxValue(32))
}

// Fixed appends a trapping node to g's control chain.
func Fixed(t testing.TB, g *ir.Graph, n *ir.Node) *ir.Node {
	t.Helper()
	out, err := g.AppendFixed(n)
	require.NoError(t, err)
	return out
}

// At returns a frame state at bytecode index bci.
func At(bci int) *ir.FrameState {
	return &ir.FrameState{BCI: bci}
}

// DivGraph builds the graph "q = x / c" for x in [lo, hi], the division
// carrying bytecode index 3.
func DivGraph(t testing.TB, name string, lo, hi, c int64) *ir.Graph {
	t.Helper()
	g := ir.NewGraph(name)
	x := Param(t, g, "x", 32, lo, hi)
	d := Fixed(t, g, ir.NewDiv(x, g.Const(32, c), At(3)))
	g.SetOutput("q", d)
	return g
}
