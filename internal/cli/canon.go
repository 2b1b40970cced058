package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/seanode/internal/engine"
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/store"
)

// CanonOptions holds flags for the canon command.
type CanonOptions struct {
	*RootOptions
	Graph       string
	Database    string
	MaxRewrites int
	Workers     int
	Dump        bool

	// UnitIDs allows overriding the unit ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	UnitIDs engine.UnitIDGenerator
}

// CanonUnit reports the outcome of one compilation unit.
type CanonUnit struct {
	Unit     string         `json:"unit"`
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	Rewrites int            `json:"rewrites"`
	Rules    map[string]int `json:"rules,omitempty"`
	Before   string         `json:"before"`
	After    string         `json:"after,omitempty"`
	Error    string         `json:"error,omitempty"`
	Graph    string         `json:"graph,omitempty"`
}

// CanonResult holds every unit of a canon run.
type CanonResult struct {
	Units  []CanonUnit `json:"units"`
	Failed int         `json:"failed"`
}

// NewCanonCommand creates the canon command.
func NewCanonCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CanonOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "canon <graphs>",
		Short: "Canonicalize graphs to a fixpoint",
		Long: `Canonicalize every graph as its own compilation unit.

Units run in parallel; a unit that hits a stamp conflict, an unsupported
input or its rewrite quota is abandoned without affecting the others.
With --db (or store.path in the config) every rewrite is journaled to
SQLite together with before and after snapshots.

Example:
  seanode canon ./graphs
  seanode canon ./graphs --graph div4_mixed --dump
  seanode canon ./graphs --db ./seanode.db --max-rewrites 500`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanon(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "canonicalize only the named graph")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides store.path)")
	cmd.Flags().IntVar(&opts.MaxRewrites, "max-rewrites", 0, "rewrite quota per unit (0 uses engine.max_rewrites)")
	cmd.Flags().IntVar(&opts.Workers, "workers", -1, "parallel units (-1 uses engine.workers, 0 is unlimited)")
	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "print the canonical graphs")

	return cmd
}

func runCanon(opts *CanonOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd.ErrOrStderr()); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	logger := opts.logger

	specs, err := loadSpecs(path, opts.Graph)
	if err != nil {
		code, message := parseCompileError(err)
		return outputCompileError(formatter, code, message, nil)
	}
	// Two copies: units rewrite theirs in place, the other is the
	// before snapshot.
	originals, errs := buildGraphs(specs)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}
	working, _ := buildGraphs(specs)
	logger.Info("graphs compiled", "path", path, "graphs", len(working))

	engineOpts := append(opts.cfg.EngineOptions(), engine.WithLogger(logger))
	if opts.MaxRewrites > 0 {
		engineOpts = append(engineOpts, engine.WithMaxRewrites(opts.MaxRewrites))
	}
	workers := opts.cfg.Engine.Workers
	if opts.Workers >= 0 {
		workers = opts.Workers
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.cfg.Store.Path
	}
	var st *store.Store
	if dbPath != "" {
		logger.Info("opening journal", "path", dbPath)
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(st))
	}

	gen := opts.UnitIDs
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}
	units := make([]*engine.Unit, len(working))
	for i, g := range working {
		units[i] = engine.NewUnit(g, gen)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	outcomes := engine.CompileAll(ctx, units, workers, engineOpts...)

	result := CanonResult{Units: make([]CanonUnit, 0, len(outcomes))}
	for i, o := range outcomes {
		if st != nil {
			writeSnapshots(ctx, st, o, originals[i], opts)
		}
		u := canonUnit(o, opts.Dump)
		if o.Err != nil {
			result.Failed++
			logger.Warn("unit abandoned", "unit", o.Unit.ID, "graph", o.Unit.Name, "error", o.Err)
		}
		result.Units = append(result.Units, u)
	}

	if ctx.Err() != nil {
		return WrapExitError(ExitFailure, "canonicalization interrupted", ctx.Err())
	}
	return outputCanon(formatter, result)
}

// signalContext returns the command context, cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// writeSnapshots journals the graph before and, for completed units,
// after canonicalization. Failures are logged, not returned: the unit's
// rewrites are already recorded.
func writeSnapshots(ctx context.Context, st *store.Store, o engine.Outcome, before *ir.Graph, opts *CanonOptions) {
	if _, err := st.WriteSnapshot(ctx, o.Unit.ID, store.PhaseBefore, before); err != nil {
		opts.logger.Warn("snapshot not written", "unit", o.Unit.ID, "phase", store.PhaseBefore, "error", err)
		return
	}
	if o.Err != nil {
		return
	}
	if _, err := st.WriteSnapshot(ctx, o.Unit.ID, store.PhaseAfter, o.Unit.Graph); err != nil {
		opts.logger.Warn("snapshot not written", "unit", o.Unit.ID, "phase", store.PhaseAfter, "error", err)
	}
}

func canonUnit(o engine.Outcome, dump bool) CanonUnit {
	u := CanonUnit{Unit: o.Unit.ID, Name: o.Unit.Name, Status: ir.UnitDone}
	if res := o.Result; res != nil {
		u.Rewrites = len(res.Rewrites)
		u.Before = res.Before
		u.After = res.After
		if len(res.Rules) > 0 {
			u.Rules = make(map[string]int, len(res.Rules))
			for rule, n := range res.Rules {
				u.Rules[string(rule)] = n
			}
		}
	}
	if o.Err != nil {
		u.Status = ir.UnitFailed
		u.After = ""
		u.Error = o.Err.Error()
	} else if dump {
		u.Graph = ir.Dump(o.Unit.Graph)
	}
	return u
}

// formatRules renders rule counts sorted by rule name.
func formatRules(rules map[string]int) string {
	names := sortedRuleNames(rules)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, rules[name])
	}
	return strings.Join(parts, " ")
}

func sortedRuleNames(rules map[string]int) []string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func outputCanon(formatter *OutputFormatter, result CanonResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeCanonFailed,
				Message: fmt.Sprintf("%d unit(s) abandoned", result.Failed),
			}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, u := range result.Units {
			if u.Error != "" {
				fmt.Fprintf(w, "✗ %s: %s\n", u.Name, u.Error)
				continue
			}
			fmt.Fprintf(w, "✓ %s: %d rewrite(s)", u.Name, u.Rewrites)
			if len(u.Rules) > 0 {
				fmt.Fprintf(w, " [%s]", formatRules(u.Rules))
			}
			fmt.Fprintln(w)
			formatter.VerboseLog("  unit %s %s -> %s", u.Unit, u.Before, u.After)
			if u.Graph != "" {
				fmt.Fprint(w, u.Graph)
			}
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) abandoned", result.Failed))
	}
	return nil
}

// canonicalize runs each graph to a fixpoint in place with the configured
// rules and no journal.
func (o *RootOptions) canonicalize(ctx context.Context, graphs []*ir.Graph) error {
	d := engine.New(append(o.cfg.EngineOptions(), engine.WithLogger(o.logger))...)
	for _, g := range graphs {
		res, err := d.Run(ctx, engine.NewUnit(g, nil))
		if err != nil {
			return err
		}
		o.logger.Debug("graph canonicalized", "graph", g.Name(), "rewrites", len(res.Rewrites))
	}
	return nil
}
