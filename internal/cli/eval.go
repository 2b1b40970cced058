package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/seanode/internal/interp"
	"github.com/roach88/seanode/internal/lir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Graph string
	Args  []string // name=value
}

// EvalResult is the value of each output, or the trap that stopped
// evaluation.
type EvalResult struct {
	Graph   string           `json:"graph"`
	Args    map[string]int64 `json:"args"`
	Outputs map[string]int64 `json:"outputs,omitempty"`
	Trap    string           `json:"trap,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <graphs>",
		Short: "Evaluate a graph on concrete arguments",
		Long: `Evaluate a graph on concrete arguments.

The graph is interpreted as written, then canonicalized, lowered and run
as a register program. The two results must agree; a division by zero
traps with the frame state of the dividing node.

Example:
  seanode eval ./graphs --graph div4_mixed --arg x=-7
  seanode eval ./graphs/div.cue -g floor --arg a=-7 --arg b=2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "graph to evaluate (required when there are several)")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "parameter value as name=value (repeatable)")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd.ErrOrStderr()); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	args, err := parseArgs(opts.Args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, err)
	}

	// One copy is interpreted as written, the other canonicalized and lowered.
	specs, err := loadSpecs(path, opts.Graph)
	if err != nil {
		code, message := parseCompileError(err)
		return outputCompileError(formatter, code, message, nil)
	}
	if len(specs) != 1 {
		msg := fmt.Sprintf("%s defines %d graphs; use --graph", path, len(specs))
		return outputCompileError(formatter, ErrCodeUnknownGraph, msg, nil)
	}
	graphs, errs := buildGraphs(specs)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}
	lowered, _ := buildGraphs(specs)
	ref, g := graphs[0], lowered[0]

	want, wantErr := interp.Eval(ref, args)
	var argErr *interp.ArgumentError
	if errors.As(wantErr, &argErr) {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, wantErr)
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	if err := opts.canonicalize(ctx, lowered); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeCanonFailed, err)
	}
	prog, err := lir.Compile(g)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeLowerFailed, err)
	}
	formatter.VerboseLog("Lowered program:\n%s", strings.TrimSuffix(prog.String(), "\n"))
	got, gotErr := lir.Exec(prog, args)

	if msg := disagreement(want, wantErr, got, gotErr); msg != "" {
		return formatter.Fail(ExitFailure, ErrCodeLowerFailed, errors.New(msg))
	}

	result := EvalResult{Graph: ref.Name(), Args: args, Outputs: want}
	if wantErr != nil {
		result.Outputs = nil
		result.Trap = trapText(wantErr)
	}
	return outputEval(formatter, result)
}

// parseArgs parses name=value pairs. Values accept Go integer syntax.
func parseArgs(pairs []string) (map[string]int64, error) {
	args := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not name=value", p)
		}
		if _, dup := args[name]; dup {
			return nil, fmt.Errorf("argument %s given twice", name)
		}
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		args[name] = v
	}
	return args, nil
}

// disagreement describes how the lowered program differs from the
// interpreted graph, or returns "".
func disagreement(want map[string]int64, wantErr error, got map[string]int64, gotErr error) string {
	var it *interp.TrapError
	var lt *lir.TrapError
	switch {
	case wantErr != nil && !errors.As(wantErr, &it):
		return wantErr.Error()
	case gotErr != nil && !errors.As(gotErr, &lt):
		return gotErr.Error()
	case wantErr != nil && gotErr == nil:
		return fmt.Sprintf("lowered program returned %s where the graph traps", formatValues(got))
	case wantErr == nil && gotErr != nil:
		return fmt.Sprintf("lowered program traps where the graph returns %s", formatValues(want))
	case wantErr == nil && formatValues(want) != formatValues(got):
		return fmt.Sprintf("lowered program returned %s, graph %s", formatValues(got), formatValues(want))
	}
	return ""
}

func trapText(err error) string {
	var it *interp.TrapError
	if errors.As(err, &it) {
		return fmt.Sprintf("trap %s [%s]", it.Op, it.State)
	}
	return err.Error()
}

// formatValues renders values as sorted name=value pairs.
func formatValues(values map[string]int64) string {
	names := sortedOutputs(values)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, values[name])
	}
	return strings.Join(parts, " ")
}

func outputEval(formatter *OutputFormatter, result EvalResult) error {
	if formatter.Format == "json" {
		if result.Trap != "" {
			_ = formatter.Error(ErrCodeTrap, result.Trap, result)
			return NewExitError(ExitFailure, result.Trap)
		}
		return formatter.Success(result)
	}

	if result.Trap != "" {
		fmt.Fprintf(formatter.Writer, "✗ %s: %s\n", result.Graph, result.Trap)
		return NewExitError(ExitFailure, result.Trap)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s\n", result.Graph)
	for _, o := range sortedOutputs(result.Outputs) {
		fmt.Fprintf(formatter.Writer, "  %s = %d\n", o, result.Outputs[o])
	}
	return nil
}

func sortedOutputs(values map[string]int64) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
