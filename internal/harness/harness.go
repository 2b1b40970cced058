package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/seanode/internal/canon"
	"github.com/roach88/seanode/internal/compiler"
	"github.com/roach88/seanode/internal/engine"
	"github.com/roach88/seanode/internal/interp"
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/lir"
	"github.com/roach88/seanode/internal/store"
	"github.com/roach88/seanode/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and unit ID.
type Harness struct {
	store  *store.Store
	driver *engine.Driver
	clock  *testutil.DeterministicClock
	units  *testutil.FixedUnitGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile the graph description twice (reference and working copy)
// 3. Canonicalize the working copy, journaling into the database
// 4. Lower the canonical graph
// 5. Evaluate samples on the reference, the canonical graph and the program
// 6. Evaluate assertions
//
// A returned error means the scenario could not run. Failed samples and
// assertions are reported in the Result instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, err := loadGraph(scenario)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(spec); len(errs) > 0 {
		return nil, fmt.Errorf("graph %s: %w", spec.Name, errs[0])
	}
	ref, err := compiler.Build(spec)
	if err != nil {
		return nil, err
	}
	g, err := compiler.Build(spec)
	if err != nil {
		return nil, err
	}

	// Create fresh in-memory SQLite database
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		units:  testutil.NewFixedUnitGenerator(scenario.UnitID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	opts := []engine.Option{
		engine.WithTool(canon.NewTool(nil, scenario.Options.Canon())),
		engine.WithJournal(st),
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
	}
	if scenario.MaxRewrites > 0 {
		opts = append(opts, engine.WithMaxRewrites(scenario.MaxRewrites))
	}
	h.driver = engine.New(opts...)

	result := NewResult()
	unit := engine.NewUnit(g, h.units)
	prog, err := h.canonicalize(ctx, unit, ref, result)
	if err != nil {
		return nil, err
	}
	if err := h.evaluateSamples(ref, g, prog, scenario.Samples, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Store:   st,
		Ctx:     ctx,
		Graph:   g,
		Program: prog,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// loadGraph compiles the scenario's CUE source and selects its entry.
func loadGraph(s *Scenario) (*compiler.GraphSpec, error) {
	src, filename := s.Source, s.Name+".cue"
	if s.Graph != "" {
		data, err := os.ReadFile(s.Graph)
		if err != nil {
			return nil, fmt.Errorf("failed to read graph file: %w", err)
		}
		src, filename = string(data), s.Graph
	}

	specs, errs := compiler.LoadString(src, filename, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if s.Entry == "" {
		if len(specs) != 1 {
			return nil, fmt.Errorf("%s defines %d graphs; entry is required", filename, len(specs))
		}
		return specs[0], nil
	}
	for _, spec := range specs {
		if spec.Name == s.Entry {
			return spec, nil
		}
	}
	return nil, fmt.Errorf("%s: no graph named %q", filename, s.Entry)
}

// canonicalize runs the engine over the unit and lowers the result. A
// failed unit is reported in result and yields a nil program.
func (h *Harness) canonicalize(ctx context.Context, u *engine.Unit, ref *ir.Graph, result *Result) (*lir.Program, error) {
	res, runErr := h.driver.Run(ctx, u)
	if res != nil {
		result.Before, result.After = res.Before, res.After
		for _, rw := range res.Rewrites {
			result.Rewrites = append(result.Rewrites, RewriteEvent{
				Seq:           rw.Seq,
				Rule:          rw.Rule,
				Op:            rw.Op,
				ReplacementOp: rw.ReplacementOp,
			})
		}
	}
	result.Graph = ir.Dump(u.Graph, ir.WithoutStamps())

	// The unit row exists once the engine has begun, even on failure.
	if _, err := h.store.WriteSnapshot(ctx, u.ID, store.PhaseBefore, ref); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if runErr != nil {
		result.AddError(fmt.Sprintf("canonicalize: %v", runErr))
		return nil, nil
	}
	if _, err := h.store.WriteSnapshot(ctx, u.ID, store.PhaseAfter, u.Graph); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	prog, err := lir.Compile(u.Graph)
	if err != nil {
		result.AddError(fmt.Sprintf("lower: %v", err))
		return nil, nil
	}
	result.Program = prog.String()

	h.logger.Info("unit canonicalized",
		"unit", u.ID,
		"rewrites", len(result.Rewrites),
		"instructions", len(prog.Instrs),
	)
	return prog, nil
}

// evaluateSamples runs each sample on the reference graph, the canonical
// graph and the program, which must agree on outputs and on trapping.
func (h *Harness) evaluateSamples(ref, g *ir.Graph, prog *lir.Program, samples []Sample, result *Result) error {
	for i, sample := range samples {
		want, wantErr := interp.Eval(ref, sample.Args)
		if wantErr != nil && !isTrap(wantErr) {
			return fmt.Errorf("sample %d: %w", i, wantErr)
		}

		got, gotErr := interp.Eval(g, sample.Args)
		if gotErr != nil && !isTrap(gotErr) {
			return fmt.Errorf("sample %d: %w", i, gotErr)
		}
		sr := SampleResult{Args: sample.Args, Outputs: got}
		if gotErr != nil {
			sr.Outputs = nil
			sr.Trap = trapText(gotErr)
		}
		result.Samples = append(result.Samples, sr)

		label := fmt.Sprintf("sample %d (%s)", i, formatValues(sample.Args))
		if msg := compareStage("canonical graph", want, wantErr, got, gotErr); msg != "" {
			result.AddError(label + ": " + msg)
		}
		if prog != nil {
			low, lowErr := lir.Exec(prog, sample.Args)
			if lowErr != nil && !isTrap(lowErr) {
				return fmt.Errorf("sample %d: %w", i, lowErr)
			}
			if msg := compareStage("lowered program", want, wantErr, low, lowErr); msg != "" {
				result.AddError(label + ": " + msg)
			}
		}

		switch {
		case sample.Trap && wantErr == nil:
			result.AddError(fmt.Sprintf("%s: expected a trap, got %s", label, formatValues(want)))
		case !sample.Trap && wantErr != nil && len(sample.Expect) > 0:
			result.AddError(fmt.Sprintf("%s: expected %s, got %s", label, formatValues(sample.Expect), trapText(wantErr)))
		case wantErr == nil:
			for name, v := range sample.Expect {
				if actual, ok := want[name]; !ok || actual != v {
					result.AddError(fmt.Sprintf("%s: expected %s=%d, got %s", label, name, v, formatValues(want)))
				}
			}
		}
	}
	return nil
}

// compareStage reports how a stage's outcome differs from the reference.
func compareStage(stage string, want map[string]int64, wantErr error, got map[string]int64, gotErr error) string {
	switch {
	case wantErr != nil && gotErr == nil:
		return fmt.Sprintf("%s returned %s where the original traps", stage, formatValues(got))
	case wantErr == nil && gotErr != nil:
		return fmt.Sprintf("%s traps (%s) where the original returns %s", stage, gotErr, formatValues(want))
	case wantErr != nil:
		return ""
	}
	if w, g := formatValues(want), formatValues(got); w != g {
		return fmt.Sprintf("%s returned %s, original %s", stage, g, w)
	}
	return ""
}

func isTrap(err error) bool {
	var it *interp.TrapError
	var lt *lir.TrapError
	return errors.As(err, &it) || errors.As(err, &lt)
}

func trapText(err error) string {
	var it *interp.TrapError
	if errors.As(err, &it) {
		return fmt.Sprintf("trap %s [%s]", it.Op, it.State)
	}
	return strings.TrimPrefix(err.Error(), "trap: ")
}
