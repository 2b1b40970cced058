package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/seanode/internal/lir"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	*RootOptions
	Graph string
	Raw   bool // lower without canonicalizing first
}

// LoweredProgram is one lowered graph.
type LoweredProgram struct {
	Name         string `json:"name"`
	Instructions int    `json:"instructions"`
	Registers    int    `json:"registers"`
	Text         string `json:"text"`
}

// LowerResult holds every lowered graph.
type LowerResult struct {
	Programs []LoweredProgram `json:"programs"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lower <graphs>",
		Short: "Lower graphs to register programs",
		Long: `Canonicalize graphs and lower them to linear register programs.

Instructions are scheduled definition before use: parameters first, then
each trapping node in chain order preceded by the floating nodes it reads,
then the outputs.

Example:
  seanode lower ./graphs --graph div4_mixed
  seanode lower ./graphs --raw`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "lower only the named graph")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "lower without canonicalizing first")

	return cmd
}

func runLower(opts *LowerOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd.ErrOrStderr()); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	graphs, err := loadAndBuild(path, opts.Graph)
	if err != nil {
		code, message := parseCompileError(err)
		return outputCompileError(formatter, code, message, nil)
	}

	if !opts.Raw {
		ctx, stop := signalContext(cmd)
		defer stop()
		if err := opts.canonicalize(ctx, graphs); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeCanonFailed, err)
		}
	}

	result := LowerResult{Programs: make([]LoweredProgram, 0, len(graphs))}
	for _, g := range graphs {
		prog, err := lir.Compile(g)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeLowerFailed, fmt.Errorf("graph %s: %w", g.Name(), err))
		}
		formatter.VerboseLog("Lowered graph %s: %d instruction(s)", g.Name(), len(prog.Instrs))
		result.Programs = append(result.Programs, LoweredProgram{
			Name:         prog.Name,
			Instructions: len(prog.Instrs),
			Registers:    prog.Registers,
			Text:         prog.String(),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, p := range result.Programs {
		fmt.Fprint(formatter.Writer, p.Text)
	}
	return nil
}
