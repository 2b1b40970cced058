package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/seanode/internal/compiler"
	"github.com/roach88/seanode/internal/ir"
)

// LoadError represents an error that occurred while loading graph descriptions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult holds the graph descriptions found at a path.
type LoadResult struct {
	Specs     []*compiler.GraphSpec
	FileCount int // number of CUE files read
}

// LoadGraphs parses graph descriptions from a directory holding one CUE
// package, or from a single .cue file. Descriptions are not validated.
func LoadGraphs(path string, mode compiler.LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}}
	}

	var (
		specs []*compiler.GraphSpec
		errs  []error
		count int
	)
	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
		count = len(files)
		specs, errs = compiler.LoadDir(path, mode)
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
		}
		count = 1
		specs, errs = compiler.LoadString(string(data), path, mode)
	}

	converted := make([]error, len(errs))
	for i, e := range errs {
		converted[i] = convertCompileError(e)
	}
	return &LoadResult{Specs: specs, FileCount: count}, converted
}

// selectGraphs narrows specs to the one named entry. An empty entry keeps
// them all.
func selectGraphs(specs []*compiler.GraphSpec, entry string) ([]*compiler.GraphSpec, error) {
	if entry == "" {
		return specs, nil
	}
	for _, s := range specs {
		if s.Name == entry {
			return []*compiler.GraphSpec{s}, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeUnknownGraph, Message: fmt.Sprintf("no graph named %q", entry)}
}

// buildGraphs validates and builds every spec. All validation errors are
// returned; graphs are built only when there are none.
func buildGraphs(specs []*compiler.GraphSpec) ([]*ir.Graph, []error) {
	var errs []error
	for _, s := range specs {
		for _, ve := range compiler.Validate(s) {
			errs = append(errs, &LoadError{
				Code:    ve.Code,
				Message: fmt.Sprintf("graph %s: %s: %s", s.Name, ve.Field, ve.Message),
				Pos:     ve.Pos,
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	graphs := make([]*ir.Graph, 0, len(specs))
	for _, s := range specs {
		g, err := compiler.Build(s)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}}
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// loadSpecs loads and selects descriptions, failing on the first error.
func loadSpecs(path, entry string) ([]*compiler.GraphSpec, error) {
	res, errs := LoadGraphs(path, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return selectGraphs(res.Specs, entry)
}

// loadAndBuild is the fail-fast pipeline shared by the commands that
// operate on built graphs.
func loadAndBuild(path, entry string) ([]*ir.Graph, error) {
	specs, err := loadSpecs(path, entry)
	if err != nil {
		return nil, err
	}
	graphs, errs := buildGraphs(specs)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return graphs, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: err.Error(),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands. Graph
// validation errors carry the compiler's E1xx codes unchanged.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No CUE files found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build or graph construction failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeNoGraphs     = "E008" // No graph field in the package
	ErrCodeMalformed    = "E009" // Description field missing or ill-typed
	ErrCodeUnknownGraph = "E010" // --graph names nothing
	ErrCodeInvalidArg   = "E011" // Bad --arg value
	ErrCodeCanonFailed  = "E020" // Canonicalization abandoned a unit
	ErrCodeLowerFailed  = "E021" // Lowering failed
	ErrCodeTrap         = "E022" // Evaluation trapped
	ErrCodeStoreFailed  = "E030" // Journal open or query failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeBuildFailed
	case "graph":
		return ErrCodeNoGraphs
	case "":
		return ErrCodeGeneric
	default:
		return ErrCodeMalformed
	}
}
