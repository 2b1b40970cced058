package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalDivision(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"x=-7", "  q = -1\n"},
		{"x=50", "  q = 12\n"},
		{"x=-0x20", "  q = -8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := NewEvalCommand(&RootOptions{Format: "text"})
			cmd.SetOut(buf)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{graphsDir, "--graph", "div4_mixed", "--arg", tt.arg})

			require.NoError(t, cmd.Execute())
			assert.Contains(t, buf.String(), "✓ div4_mixed\n")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestEvalJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir, "-g", "cascade", "--arg", "x=41"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   EvalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]int64{"q": 41}, resp.Data.Outputs)
	assert.Empty(t, resp.Data.Trap)
}

func TestEvalTrap(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir, "-g", "zero", "--arg", "x=3"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ zero: trap div [bci=9]")
}

func TestEvalNeedsGraphFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewEvalCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir, "--arg", "x=1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeUnknownGraph)
	assert.Contains(t, buf.String(), "defines 4 graphs")
}

func TestEvalBadArgument(t *testing.T) {
	for _, arg := range []string{"x", "=1", "x=one"} {
		t.Run(arg, func(t *testing.T) {
			buf := &bytes.Buffer{}
			cmd := NewEvalCommand(&RootOptions{Format: "text"})
			cmd.SetOut(buf)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{graphsDir, "-g", "div4_mixed", "--arg", arg})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, buf.String(), ErrCodeInvalidArg)
		})
	}
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"a=-7", "b=0x10"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a": -7, "b": 16}, args)

	_, err = parseArgs([]string{"a=1", "a=2"})
	assert.ErrorContains(t, err, "given twice")
}

func TestDisagreement(t *testing.T) {
	want := map[string]int64{"q": 1}
	assert.Empty(t, disagreement(want, nil, map[string]int64{"q": 1}, nil))
	assert.Contains(t, disagreement(want, nil, map[string]int64{"q": 2}, nil), "returned q=2, graph q=1")
}
