package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seanode/internal/engine"
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/store"
)

// runCanonWithIDs runs canon on path with fixed unit IDs assigned in
// graph name order.
func runCanonWithIDs(opts *CanonOptions, path string, out *bytes.Buffer, ids ...string) error {
	opts.UnitIDs = engine.NewFixedGenerator(ids...)
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	return runCanon(opts, path, cmd)
}

// journalGraphs canonicalizes every test graph into a fresh journal with
// unit IDs u1 to u4 and returns the database path.
func journalGraphs(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "seanode.db")
	opts := &CanonOptions{RootOptions: &RootOptions{Format: "text"}, Database: db, Workers: -1}
	require.NoError(t, runCanonWithIDs(opts, graphsDir, &bytes.Buffer{}, "u1", "u2", "u3", "u4"))
	return db
}

func TestCanonText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCanonCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ cascade:")
	assert.Contains(t, output, "add-reassociate=1")
	assert.Contains(t, output, "sub-add-operand=1")
	assert.Contains(t, output, "✓ div4_mixed:")
	assert.Contains(t, output, "div-power-of-two=1")
	assert.Contains(t, output, "✓ zero: 0 rewrite(s)")
}

func TestCanonDump(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCanonCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir, "--graph", "div4_mixed", "--dump"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ div4_mixed:")
	assert.NotContains(t, output, "cascade")
	assert.Contains(t, output, "graph div4_mixed")
	assert.NotContains(t, output, "= div ", "the division is strength-reduced")
}

func TestCanonJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &CanonOptions{RootOptions: &RootOptions{Format: "json"}, Graph: "cascade", Workers: -1}
	require.NoError(t, runCanonWithIDs(opts, graphsDir, buf, "a"))

	var resp struct {
		Status string      `json:"status"`
		Data   CanonResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Units, 1)

	u := resp.Data.Units[0]
	assert.Equal(t, "a", u.Unit)
	assert.Equal(t, "cascade", u.Name)
	assert.Equal(t, ir.UnitDone, u.Status)
	assert.NotEqual(t, u.Before, u.After)
	assert.Zero(t, resp.Data.Failed)
}

func TestCanonQuotaExceeded(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCanonCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir, "--max-rewrites", "1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ cascade:")
	assert.Contains(t, output, "✓ zero: 0 rewrite(s)", "other units are unaffected")
}

func TestCanonJournal(t *testing.T) {
	db := journalGraphs(t)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	units, err := st.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 4)
	assert.Equal(t, "u1", units[0].ID)
	assert.Equal(t, "cascade", units[0].Name)
	assert.Equal(t, "div4_mixed", units[1].Name)

	for _, u := range units {
		assert.Equal(t, ir.UnitDone, u.Status, u.Name)

		before, err := st.ReadSnapshot(ctx, u.ID, store.PhaseBefore)
		require.NoError(t, err)
		assert.Equal(t, u.Before, before.Fingerprint)

		after, err := st.ReadSnapshot(ctx, u.ID, store.PhaseAfter)
		require.NoError(t, err)
		assert.Equal(t, u.After, after.Fingerprint)
	}

	rewrites, err := st.ReadRewrites(ctx, "u2")
	require.NoError(t, err)
	require.NotEmpty(t, rewrites)
	assert.Equal(t, "div-power-of-two", rewrites[0].Rule)
	assert.Equal(t, "div", rewrites[0].Op)
}

func TestCanonBadDatabasePath(t *testing.T) {
	cmd := NewCanonCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{graphsDir, "--db", filepath.Join(t.TempDir(), "missing", "dir", "x.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFormatRules(t *testing.T) {
	assert.Equal(t, "add-zero=2 div-by-one=1", formatRules(map[string]int{"div-by-one": 1, "add-zero": 2}))
	assert.Empty(t, formatRules(nil))
}
