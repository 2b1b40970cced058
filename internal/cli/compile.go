package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seanode/internal/compiler"
	"github.com/roach88/seanode/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Graph  string // compile only this graph
}

// GraphSummary describes one compiled graph.
type GraphSummary struct {
	Name        string   `json:"name"`
	Params      int      `json:"params"`
	Nodes       int      `json:"nodes"`
	Chain       int      `json:"chain"`
	Outputs     []string `json:"outputs"`
	Fingerprint string   `json:"fingerprint"`
}

// CompilationResult holds the summaries of the compiled graphs.
type CompilationResult struct {
	Graphs []GraphSummary `json:"graphs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graphs>",
		Short: "Compile CUE graph descriptions to IR",
		Long: `Compile CUE graph descriptions to IR graphs.

The compiler parses and validates the descriptions, builds each graph and
reports its size and fingerprint. With --output the canonical JSON form
of every graph is written to a file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVarP(&opts.Graph, "graph", "g", "", "compile only the named graph")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadGraphs(path, compiler.LoadModeCollectAll)
	if loadResult == nil {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	specs, err := selectGraphs(loadResult.Specs, opts.Graph)
	if err != nil {
		code, message := parseCompileError(err)
		return outputCompileError(formatter, code, message, nil)
	}
	for _, spec := range specs {
		formatter.VerboseLog("Compiling graph: %s", spec.Name)
	}

	graphs, buildErrors := buildGraphs(specs)
	if len(buildErrors) > 0 {
		return outputCompileErrors(formatter, buildErrors)
	}

	result := &CompilationResult{Graphs: make([]GraphSummary, 0, len(graphs))}
	for _, g := range graphs {
		summary, err := summarize(g)
		if err != nil {
			return outputCompileError(formatter, ErrCodeBuildFailed, err.Error(), nil)
		}
		result.Graphs = append(result.Graphs, summary)
	}

	if opts.Output != "" {
		if err := writeIRToFile(graphs, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarize computes the summary of a built graph.
func summarize(g *ir.Graph) (GraphSummary, error) {
	fp, err := ir.Fingerprint(g)
	if err != nil {
		return GraphSummary{}, err
	}
	s := GraphSummary{
		Name:        g.Name(),
		Params:      len(g.Params()),
		Nodes:       len(g.Live()),
		Chain:       len(g.Chain()),
		Outputs:     []string{},
		Fingerprint: fp,
	}
	for _, o := range g.Outputs() {
		s.Outputs = append(s.Outputs, o.Name)
	}
	return s, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d graph(s)\n\n", len(result.Graphs))
	for _, g := range result.Graphs {
		fmt.Fprintf(formatter.Writer, "  %s: %d param(s), %d node(s), %d trapping, outputs %v\n",
			g.Name, g.Params, g.Nodes, g.Chain, g.Outputs)
		if formatter.Verbose {
			fmt.Fprintf(formatter.Writer, "    fingerprint %s\n", g.Fingerprint)
		}
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the graphs to a file as one canonical JSON array.
func writeIRToFile(graphs []*ir.Graph, filename string) error {
	arr := make(ir.Array, len(graphs))
	for i, g := range graphs {
		arr[i] = ir.GraphValue(g)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
