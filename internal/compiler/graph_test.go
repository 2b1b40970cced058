package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/testutil"
)

func compileCUE(t *testing.T, src, name string) (*ir.Graph, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return CompileGraph(v.LookupPath(cue.ParsePath("graph." + name)))
}

func parseCUE(t *testing.T, src, name string) *GraphSpec {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	spec, err := ParseGraph(v.LookupPath(cue.ParsePath("graph." + name)))
	require.NoError(t, err)
	return spec
}

func codes(errs []ValidationError) []string {
	out := []string{}
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestCompileGraph_Div4(t *testing.T) {
	g, err := compileCUE(t, `
		graph: div4: {
			params: x: {bits: 32, min: -50, max: 50}
			nodes: [{name: "q", op: "div", x: "x", y: 4, bci: 3}]
			outputs: ["q"]
		}
	`, "div4")
	require.NoError(t, err)

	want := testutil.DivGraph(t, "div4", -50, 50, 4)
	assert.Equal(t, ir.Dump(want), ir.Dump(g))
}

func TestCompileGraph_ForwardReferences(t *testing.T) {
	g, err := compileCUE(t, `
		graph: floor: {
			params: x: {}
			nodes: [
				{name: "r", op: "rem", x: "x", y: 7, bci: 1},
				{name: "q", op: "div", x: "t", y: 7, bci: 2, method: "Floor.apply"},
				{name: "t", op: "sub", x: "x", y: "r"},
				{name: "unused", op: "neg", x: "x"},
			]
			outputs: ["q", "x"]
		}
	`, "floor")
	require.NoError(t, err)

	chain := g.Chain()
	require.Len(t, chain, 2)
	assert.Equal(t, ir.OpRem, chain[0].Op())
	assert.Equal(t, ir.OpDiv, chain[1].Op())
	assert.Equal(t, "Floor.apply@bci=2", chain[1].State().String())
	assert.Equal(t, ir.OpSub, chain[1].X().Op())
	assert.Same(t, chain[0], chain[1].X().Y())
	assert.Same(t, g.Param("x"), g.Output("x"))

	for _, n := range g.Live() {
		assert.NotEqual(t, ir.OpNeg, n.Op(), "unread floating nodes are dropped")
	}
}

func TestCompileGraph_LiteralWidths(t *testing.T) {
	g, err := compileCUE(t, `
		graph: widths: {
			params: b: {bits: 8}
			nodes: [
				{name: "s", op: "shl", x: "b", y: 3},
				{name: "m", op: "and", x: 255, y: "s"},
				{name: "k", op: "add", x: 1, y: 2, bits: 16},
			]
			outputs: ["m", "k"]
		}
	`, "widths")
	require.NoError(t, err)

	s := g.Output("m").Y()
	assert.Equal(t, 8, s.Bits())
	assert.Equal(t, 32, s.Y().Bits(), "shift amounts are i32")
	assert.Equal(t, 8, g.Output("m").X().Bits(), "255 is the i8 value -1")
	assert.Equal(t, 16, g.Output("k").Bits())
}

func TestCompileGraph_FirstErrorIsCompileError(t *testing.T) {
	_, err := compileCUE(t, `
		graph: bad: {
			params: x: {}
			nodes: [{name: "q", op: "mul", x: "x", y: 2}]
			outputs: ["q"]
		}
	`, "bad")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "nodes.q.op", ce.Field)
	assert.Contains(t, err.Error(), `"mul" is not an arithmetic operator`)
	assert.True(t, ce.Pos.IsValid())
}

func TestParseGraph_RequiredFields(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"outputs", `graph: g: { params: x: {} }`, "outputs is required"},
		{"node name", `graph: g: { nodes: [{op: "neg", x: "x"}], outputs: [] }`, "name is required"},
		{"node op", `graph: g: { nodes: [{name: "n", x: "x"}], outputs: [] }`, "op is required"},
		{"operand kind", `graph: g: { nodes: [{name: "n", op: "neg", x: true}], outputs: [] }`, "operand must be a name or an integer literal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())
			_, err := ParseGraph(v.LookupPath(cue.ParsePath("graph.g")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		graph string
		want  []string
	}{
		{
			name:  "duplicate names",
			graph: `params: x: {}, nodes: [{name: "x", op: "neg", x: "x"}, {name: "n", op: "neg", x: "x"}, {name: "n", op: "neg", x: "x"}], outputs: ["n", "n"]`,
			want:  []string{ErrDuplicateName, ErrDuplicateName, ErrDuplicateName},
		},
		{
			name:  "unknown op",
			graph: `params: x: {}, nodes: [{name: "n", op: "const", x: 1}], outputs: ["n"]`,
			want:  []string{ErrUnknownOp},
		},
		{
			name:  "undefined operand and output",
			graph: `params: x: {}, nodes: [{name: "n", op: "add", x: "x", y: "z"}], outputs: ["w"]`,
			want:  []string{ErrUndefinedOperand, ErrUndefinedOutput},
		},
		{
			name:  "arity",
			graph: `params: x: {}, nodes: [{name: "a", op: "neg", x: "x", y: 1}, {name: "b", op: "add", x: "x"}], outputs: ["a"]`,
			want:  []string{ErrOperandArity, ErrOperandArity},
		},
		{
			name:  "widths and ranges",
			graph: `params: {x: {bits: 12}, y: {min: 5, max: 1}, z: {bits: 8, max: 300}}, outputs: ["y"]`,
			want:  []string{ErrInvalidWidth, ErrInvalidRange, ErrInvalidRange},
		},
		{
			name:  "bci on floating op",
			graph: `params: x: {}, nodes: [{name: "n", op: "add", x: "x", y: 1, bci: 4}], outputs: ["n"]`,
			want:  []string{ErrStateOnFloating},
		},
		{
			name:  "no outputs",
			graph: `params: x: {}, outputs: []`,
			want:  []string{ErrNoOutputs},
		},
		{
			name:  "width mismatch",
			graph: `params: {a: {bits: 32}, b: {bits: 64}}, nodes: [{name: "n", op: "add", x: "a", y: "b"}, {name: "m", op: "neg", x: "a", bits: 64}], outputs: ["n"]`,
			want:  []string{ErrWidthMismatch, ErrWidthMismatch},
		},
		{
			name:  "literal out of range",
			graph: `params: x: {bits: 8}, nodes: [{name: "n", op: "add", x: "x", y: 256}, {name: "s", op: "shl", x: "x", y: 4294967296}], outputs: ["n"]`,
			want:  []string{ErrLiteralOutOfRange, ErrLiteralOutOfRange},
		},
		{
			name:  "cycle",
			graph: `params: x: {}, nodes: [{name: "a", op: "add", x: "x", y: "b"}, {name: "b", op: "neg", x: "a"}], outputs: ["a"]`,
			want:  []string{ErrOperandCycle},
		},
		{
			name:  "chain order",
			graph: `params: x: {}, nodes: [{name: "q", op: "div", x: "t", y: 7}, {name: "t", op: "sub", x: "x", y: "r"}, {name: "r", op: "rem", x: "x", y: 7}], outputs: ["q"]`,
			want:  []string{ErrChainOrder},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := parseCUE(t, "graph: g: {"+tt.graph+"}", "g")
			assert.Equal(t, tt.want, codes(Validate(spec)))
		})
	}
}

func TestValidate_CycleMessage(t *testing.T) {
	spec := parseCUE(t, `graph: g: {
		params: x: {}
		nodes: [{name: "a", op: "add", x: "x", y: "b"}, {name: "b", op: "neg", x: "a"}, {name: "s", op: "neg", x: "s"}]
		outputs: ["a"]
	}`, "g")

	errs := Validate(spec)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "a -> b -> a")
	assert.Contains(t, errs[1].Message, "s -> s")
	assert.Contains(t, errs[0].Error(), "[E109] line")
}

func TestValidate_Valid(t *testing.T) {
	spec := parseCUE(t, `graph: g: {
		params: x: {min: 0, max: 100}
		nodes: [{name: "q", op: "div", x: "x", y: 4, bci: 3}]
		outputs: ["q"]
	}`, "g")

	errs := Validate(spec)
	assert.NotNil(t, errs)
	assert.Empty(t, errs)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `
package graphs

graph: zeta: {
	params: x: {}
	nodes: [{name: "n", op: "neg", x: "x"}]
	outputs: ["n"]
}

graph: alpha: {
	params: x: {min: 0, max: 100}
	nodes: [{name: "q", op: "div", x: "x", y: 4, bci: 3}]
	outputs: ["q"]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graphs.cue"), []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not cue"), 0o644))

	specs, errs := LoadDir(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "zeta", specs[1].Name)
}

func TestLoadDir_Errors(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"), LoadModeFailFast)
	require.Len(t, errs, 1)

	_, errs = LoadDir(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no CUE files found")
}

func TestLoadString_NoGraphs(t *testing.T) {
	_, errs := LoadString(`other: 1`, "x.cue", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no graphs defined")
}
