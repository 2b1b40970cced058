package interp

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/engine"
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/testutil"
)

func TestEval_Division(t *testing.T) {
	g := testutil.DivGraph(t, "div4", -50, 50, 4)

	out, err := Eval(g, map[string]int64{"x": -7})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"q": -1}, out)
}

func TestEval_Arithmetic(t *testing.T) {
	g := ir.NewGraph("ops")
	a := testutil.Param32(t, g, "a")
	b := testutil.Param32(t, g, "b")
	c := func(v int64) *ir.Node { return g.Const(32, v) }
	g.SetOutput("add", ir.NewAdd(a, b))
	g.SetOutput("sub", ir.NewSub(a, b))
	g.SetOutput("neg", ir.NewNeg(a))
	g.SetOutput("and", ir.NewAnd(a, c(0xff)))
	g.SetOutput("shl", ir.NewShl(a, c(33)))
	g.SetOutput("shr", ir.NewShr(a, c(4)))
	g.SetOutput("ushr", ir.NewUShr(a, c(28)))
	g.SetOutput("div", testutil.Fixed(t, g, ir.NewDiv(a, b, nil)))
	g.SetOutput("rem", testutil.Fixed(t, g, ir.NewRem(a, b, nil)))
	g.SetOutput("udiv", testutil.Fixed(t, g, ir.NewUDiv(a, b, nil)))
	g.SetOutput("urem", testutil.Fixed(t, g, ir.NewURem(a, b, nil)))

	out, err := Eval(g, map[string]int64{"a": -100, "b": 7})
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{
		"add":  -93,
		"sub":  -107,
		"neg":  100,
		"and":  0x9c,
		"shl":  -200,
		"shr":  -7,
		"ushr": 15,
		"div":  -14,
		"rem":  -2,
		"udiv": 613566742,
		"urem": 2,
	}, out)
}

func TestEval_Overflow(t *testing.T) {
	g := ir.NewGraph("wrap")
	a := testutil.Param32(t, g, "a")
	b := testutil.Param32(t, g, "b")
	g.SetOutput("sum", ir.NewAdd(a, b))
	g.SetOutput("q", testutil.Fixed(t, g, ir.NewDiv(a, b, nil)))
	g.SetOutput("r", testutil.Fixed(t, g, ir.NewRem(a, b, nil)))

	out, err := Eval(g, map[string]int64{"a": math.MinInt32, "b": -1})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt32), out["sum"])
	assert.Equal(t, int64(math.MinInt32), out["q"], "MIN / -1 wraps")
	assert.Equal(t, int64(0), out["r"])
}

func TestEval_TrapsInChainOrder(t *testing.T) {
	g := ir.NewGraph("trap")
	x := testutil.Param32(t, g, "x")
	// Unused, but it still executes.
	testutil.Fixed(t, g, ir.NewDiv(x, g.Const(32, 0), testutil.At(4)))
	g.SetOutput("x", x)

	_, err := Eval(g, map[string]int64{"x": 1})
	require.Error(t, err)

	var trap *TrapError
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, ir.OpDiv, trap.Op)
	assert.Equal(t, 4, trap.State.BCI)
	assert.Contains(t, err.Error(), "div by zero")
}

func TestEval_Arguments(t *testing.T) {
	g := testutil.DivGraph(t, "div4", -50, 50, 4)

	_, err := Eval(g, map[string]int64{})
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.True(t, argErr.Missing)
	assert.Equal(t, "x", argErr.Param)

	_, err = Eval(g, map[string]int64{"x": 51})
	require.ErrorAs(t, err, &argErr)
	assert.False(t, argErr.Missing)
	assert.Contains(t, err.Error(), "x=51 outside i32 [-50, 50]")
}

func TestEval_FixedNodeOffChain(t *testing.T) {
	g := ir.NewGraph("offchain")
	x := testutil.Param32(t, g, "x")
	g.SetOutput("q", ir.NewDiv(x, g.Const(32, 2), nil))

	_, err := Eval(g, map[string]int64{"x": 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "used before it executes")
}

// Canonicalization must not change what a graph computes.
func TestEval_CanonicalizationPreservesSemantics(t *testing.T) {
	samples := []int64{math.MinInt32, math.MinInt32 + 1, -65536, -100, -9, -8, -7, -1, 0, 1, 7, 8, 9, 100, 65536, math.MaxInt32}
	graphs := map[string]func(t *testing.T) *ir.Graph{
		"div by 4": func(t *testing.T) *ir.Graph {
			return testutil.DivGraph(t, "div4", math.MinInt32, math.MaxInt32, 4)
		},
		"div by -8": func(t *testing.T) *ir.Graph {
			return testutil.DivGraph(t, "divm8", math.MinInt32, math.MaxInt32, -8)
		},
		"div by MIN": func(t *testing.T) *ir.Graph {
			return testutil.DivGraph(t, "divmin", math.MinInt32, math.MaxInt32, math.MinInt32)
		},
		"rem and unsigned": func(t *testing.T) *ir.Graph {
			g := ir.NewGraph("mixed")
			x := testutil.Param32(t, g, "x")
			g.SetOutput("r", testutil.Fixed(t, g, ir.NewRem(x, g.Const(32, -16), testutil.At(1))))
			g.SetOutput("ud", testutil.Fixed(t, g, ir.NewUDiv(x, g.Const(32, 8), testutil.At(2))))
			g.SetOutput("ur", testutil.Fixed(t, g, ir.NewURem(x, g.Const(32, 8), testutil.At(3))))
			return g
		},
		"floor": func(t *testing.T) *ir.Graph {
			g := ir.NewGraph("floor")
			x := testutil.Param32(t, g, "x")
			seven := g.Const(32, 7)
			r := testutil.Fixed(t, g, ir.NewRem(x, seven, testutil.At(1)))
			g.SetOutput("q", testutil.Fixed(t, g, ir.NewDiv(ir.NewSub(x, r), seven, testutil.At(2))))
			return g
		},
		"algebra": func(t *testing.T) *ir.Graph {
			g := ir.NewGraph("algebra")
			x := testutil.Param32(t, g, "x")
			c := func(v int64) *ir.Node { return g.Const(32, v) }
			sum := ir.NewAdd(ir.NewAdd(x, c(3)), c(4))
			g.SetOutput("a", ir.NewSub(ir.NewNeg(ir.NewSub(c(0), sum)), c(5)))
			g.SetOutput("b", ir.NewShr(ir.NewShr(x, c(20)), c(20)))
			g.SetOutput("c", ir.NewAnd(ir.NewUShr(x, c(28)), c(15)))
			return g
		},
	}

	for name, build := range graphs {
		t.Run(name, func(t *testing.T) {
			original := build(t)
			canonical := build(t)
			logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
			_, err := engine.New(engine.WithLogger(logger)).Run(context.Background(), engine.NewUnit(canonical, engine.NewFixedGenerator("u")))
			require.NoError(t, err)

			for _, v := range samples {
				args := map[string]int64{"x": v}
				want, err := Eval(original, args)
				require.NoError(t, err)
				got, err := Eval(canonical, args)
				require.NoError(t, err)
				assert.Equal(t, want, got, "x=%d", v)
			}
		})
	}
}
