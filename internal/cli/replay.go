package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/seanode/internal/canon"
	"github.com/roach88/seanode/internal/compiler"
	"github.com/roach88/seanode/internal/engine"
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Unit     string // optional - specific unit only
}

// ReplayUnitResult holds the replay result for a single unit.
type ReplayUnitResult struct {
	Unit          string `json:"unit"`
	Name          string `json:"name"`
	Rewrites      int    `json:"rewrites"`
	Skipped       string `json:"skipped,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Difference    string `json:"difference,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Units            []ReplayUnitResult `json:"units"`
	TotalUnits       int                `json:"total_units"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <graphs>",
		Short: "Re-canonicalize journaled units and verify determinism",
		Long: `Re-canonicalize every completed unit in the journal and compare.

Each unit's graph is rebuilt from <graphs> by name and canonicalized
again with the rule groups and rewrite quota journaled for that unit.
The before and after fingerprints and the sequence of rules fired must
match the journal exactly.

Exit codes:
  0 - All units are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  seanode replay --db ./seanode.db ./graphs
  seanode replay --db ./seanode.db ./graphs --unit 0190f5e2-...
  seanode replay --db ./seanode.db ./graphs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "replay specific unit only")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd.ErrOrStderr()); err != nil {
		return err
	}
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var units []ir.UnitRecord
	if opts.Unit != "" {
		u, err := st.ReadUnit(ctx, opts.Unit)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read unit %s", opts.Unit), err)
		}
		units = []ir.UnitRecord{u}
	} else {
		units, err = st.ListUnits(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list units", err)
		}
	}

	if len(units) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{
				Units:            []ReplayUnitResult{},
				AllDeterministic: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No units found in database.")
		return nil
	}

	specs, err := loadSpecs(path, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load graphs", err)
	}

	result := ReplayResult{
		Units:            make([]ReplayUnitResult, 0, len(units)),
		TotalUnits:       len(units),
		AllDeterministic: true,
	}
	base := append(opts.cfg.EngineOptions(), engine.WithLogger(opts.logger))

	for _, u := range units {
		unitResult, err := replayAndVerifyUnit(ctx, st, base, u, specs)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay unit %s", u.ID), err)
		}
		result.Units = append(result.Units, unitResult)
		if !unitResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// unitDriver returns a driver configured the way u was run. Options the
// journal does not record fall back to base.
func unitDriver(base []engine.Option, u ir.UnitRecord) (*engine.Driver, error) {
	opts := append([]engine.Option{}, base...)
	if u.RuleOptions != "" {
		ro, err := canon.ParseOptions(u.RuleOptions)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithTool(canon.NewTool(nil, ro)))
	}
	if u.MaxRewrites > 0 {
		opts = append(opts, engine.WithMaxRewrites(u.MaxRewrites))
	}
	return engine.New(opts...), nil
}

// replayAndVerifyUnit canonicalizes the unit's graph again and compares
// the run against the journal. Units that did not complete are skipped.
func replayAndVerifyUnit(ctx context.Context, st *store.Store, base []engine.Option, u ir.UnitRecord, specs []*compiler.GraphSpec) (ReplayUnitResult, error) {
	out := ReplayUnitResult{Unit: u.ID, Name: u.Name, Rewrites: u.Rewrites, Deterministic: true}
	if u.Status != ir.UnitDone {
		out.Skipped = fmt.Sprintf("unit %s", u.Status)
		return out, nil
	}
	d, err := unitDriver(base, u)
	if err != nil {
		out.Skipped = fmt.Sprintf("rule options %q: %v", u.RuleOptions, err)
		return out, nil
	}

	selected, err := selectGraphs(specs, u.Name)
	if err != nil {
		out.Skipped = err.Error()
		return out, nil
	}
	graphs, errs := buildGraphs(selected)
	if len(errs) > 0 {
		return out, errs[0]
	}

	journaled, err := st.ReadRewrites(ctx, u.ID)
	if err != nil {
		return out, err
	}

	res, err := d.Run(ctx, &engine.Unit{ID: u.ID, Name: u.Name, Graph: graphs[0]})
	if err != nil {
		out.Deterministic = false
		out.Difference = fmt.Sprintf("replay failed: %v", err)
		return out, nil
	}
	out.Difference = compareRuns(u, journaled, res)
	out.Deterministic = out.Difference == ""
	return out, nil
}

// compareRuns describes the first difference between a journaled unit and
// a fresh run, or returns "".
func compareRuns(u ir.UnitRecord, journaled []ir.RewriteRecord, res *engine.Result) string {
	if u.Before != res.Before {
		return fmt.Sprintf("before fingerprint %s, journal %s", truncateID(res.Before), truncateID(u.Before))
	}
	if len(journaled) != len(res.Rewrites) {
		return fmt.Sprintf("%d rewrite(s), journal %d", len(res.Rewrites), len(journaled))
	}
	for i, rw := range res.Rewrites {
		if rw.Rule != journaled[i].Rule || rw.Op != journaled[i].Op || rw.ReplacementOp != journaled[i].ReplacementOp {
			return fmt.Sprintf("rewrite %d is %s %s -> %s, journal %s %s -> %s", i+1,
				rw.Rule, rw.Op, rw.ReplacementOp,
				journaled[i].Rule, journaled[i].Op, journaled[i].ReplacementOp)
		}
	}
	if u.After != res.After {
		return fmt.Sprintf("after fingerprint %s, journal %s", truncateID(res.After), truncateID(u.After))
	}
	return ""
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d unit(s)\n", result.TotalUnits)
	fmt.Fprintln(w)

	for _, u := range result.Units {
		status := "✓"
		switch {
		case u.Skipped != "":
			status = "-"
		case !u.Deterministic:
			status = "✗"
		}

		fmt.Fprintf(w, "%s Unit: %s (%s)\n", status, truncateID(u.Unit), u.Name)
		if u.Skipped != "" {
			fmt.Fprintf(w, "  Skipped: %s\n", u.Skipped)
		} else {
			fmt.Fprintf(w, "  Rewrites: %d\n", u.Rewrites)
		}
		if verbose {
			fmt.Fprintf(w, "  ID: %s\n", u.Unit)
		}
		if !u.Deterministic {
			fmt.Fprintf(w, "  Warning: %s\n", u.Difference)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All units verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
