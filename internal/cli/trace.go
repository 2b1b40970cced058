package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Unit     string // optional - show one unit's rewrites
	Rule     string // optional - filter rewrites to one rule
}

// TraceEvent is one rewrite in a unit's timeline.
type TraceEvent struct {
	Seq           int64  `json:"seq"`
	Rule          string `json:"rule"`
	NodeID        int64  `json:"node_id"`
	Op            string `json:"op"`
	ReplacementID int64  `json:"replacement_id"`
	ReplacementOp string `json:"replacement_op"`
}

// SnapshotInfo describes a stored graph.
type SnapshotInfo struct {
	Phase       string `json:"phase"`
	Fingerprint string `json:"fingerprint"`
	Nodes       int    `json:"nodes"`
}

// UnitTrace is the journal of one unit.
type UnitTrace struct {
	Unit      ir.UnitRecord  `json:"unit"`
	Timeline  []TraceEvent   `json:"timeline"`
	Snapshots []SnapshotInfo `json:"snapshots"`
	Rules     map[string]int `json:"rules"`
}

// JournalSummary lists every unit and the rule totals.
type JournalSummary struct {
	Units []ir.UnitRecord   `json:"units"`
	Rules []store.RuleCount `json:"rules"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query the rewrite journal",
		Long: `Query the rewrite journal written by canon --db.

Without --unit, lists every unit with its status and how often each rule
fired across the journal. With --unit, shows that unit's rewrites in
sequence order and its before and after snapshots.

Examples:
  seanode trace --db ./seanode.db
  seanode trace --db ./seanode.db --unit 0190f5e2-...
  seanode trace --db ./seanode.db --unit 0190f5e2-... --rule div-power-of-two --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit ID to trace")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "filter rewrites to a rule")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Unit == "" {
		return traceJournal(ctx, st, opts, cmd)
	}

	unit, err := st.ReadUnit(ctx, opts.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, UnitTrace{Timeline: []TraceEvent{}, Snapshots: []SnapshotInfo{}, Rules: map[string]int{}})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No unit found: %s\n", opts.Unit)
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read unit", err)
	}

	rewrites, err := st.ReadRewrites(ctx, unit.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rewrites", err)
	}
	snapshots, err := readSnapshots(ctx, st, unit.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshots", err)
	}

	result := UnitTrace{
		Unit:      unit,
		Timeline:  buildTimeline(rewrites, opts.Rule),
		Snapshots: snapshots,
		Rules:     map[string]int{},
	}
	for _, rw := range rewrites {
		result.Rules[rw.Rule]++
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func traceJournal(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	units, err := st.ListUnits(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list units", err)
	}
	rules, err := st.RuleStats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rule stats", err)
	}
	summary := JournalSummary{Units: units, Rules: rules}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "=== Units ===")
	if len(units) == 0 {
		fmt.Fprintln(w, "  (no units)")
	}
	for _, u := range units {
		fmt.Fprintf(w, "  %s %-12s %-7s %d rewrite(s)\n", truncateID(u.ID), u.Name, u.Status, u.Rewrites)
		if u.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", u.Error)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Rules ===")
	if len(rules) == 0 {
		fmt.Fprintln(w, "  (no rewrites)")
	}
	for _, rc := range rules {
		fmt.Fprintf(w, "  %-20s %d\n", rc.Rule, rc.Count)
	}
	return nil
}

// buildTimeline converts journal records to timeline events, keeping
// only ruleFilter's rewrites when it is set.
func buildTimeline(rewrites []ir.RewriteRecord, ruleFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, rw := range rewrites {
		if ruleFilter != "" && rw.Rule != ruleFilter {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:           rw.Seq,
			Rule:          rw.Rule,
			NodeID:        int64(rw.NodeID),
			Op:            rw.Op,
			ReplacementID: int64(rw.ReplacementID),
			ReplacementOp: rw.ReplacementOp,
		})
	}
	return timeline
}

// readSnapshots returns the stored snapshots of a unit in phase order.
// Missing phases are skipped.
func readSnapshots(ctx context.Context, st *store.Store, unitID string) ([]SnapshotInfo, error) {
	out := []SnapshotInfo{}
	for _, phase := range []store.Phase{store.PhaseBefore, store.PhaseAfter} {
		snap, err := st.ReadSnapshot(ctx, unitID, phase)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		body, err := snap.Decode()
		if err != nil {
			return nil, err
		}
		nodes, _ := body["nodes"].([]any)
		out = append(out, SnapshotInfo{Phase: string(phase), Fingerprint: snap.Fingerprint, Nodes: len(nodes)})
	}
	return out, nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, data interface{}) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs a unit trace as text.
func outputTraceText(w io.Writer, result UnitTrace, verbose bool) error {
	u := result.Unit
	fmt.Fprintf(w, "Trace for Unit: %s (%s)\n", u.ID, u.Name)
	fmt.Fprintf(w, "Status: %s\n", u.Status)
	if u.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", u.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Rewrites ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no rewrites)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s: v%d %s -> v%d %s\n",
			ev.Seq, ev.Rule, ev.NodeID, ev.Op, ev.ReplacementID, ev.ReplacementOp)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Snapshots ===")
	if len(result.Snapshots) == 0 {
		fmt.Fprintln(w, "  (no snapshots)")
	}
	for _, s := range result.Snapshots {
		fp := s.Fingerprint
		if !verbose {
			fp = truncateID(fp)
		}
		fmt.Fprintf(w, "  %-6s %s (%d nodes)\n", s.Phase, fp, s.Nodes)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Rewrites: %d\n", u.Rewrites)
	for _, name := range sortedRuleNames(result.Rules) {
		fmt.Fprintf(w, "  %-20s %d\n", name+":", result.Rules[name])
	}
	if verbose {
		fmt.Fprintf(w, "  Engine: %s  IR: %s\n", u.EngineVersion, u.IRVersion)
	}

	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
