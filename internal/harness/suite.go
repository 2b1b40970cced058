package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files under path, sorted. A path
// naming a file is returned as is; a directory is searched recursively for
// .yaml and .yml files.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(p); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Results        []ScenarioOutcome `json:"results"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Result *Result  `json:"-"`
}

// RunSuite loads and runs every scenario under path.
//
// For each scenario file:
// 1. Load the scenario, resolving its graph path
// 2. Run it via RunContext
// 3. Record pass/fail with error messages
//
// Scenarios that fail to load or run count as failures; RunSuite itself
// only fails when path cannot be searched or ctx is done.
func RunSuite(ctx context.Context, path string) (*SuiteResult, error) {
	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{Results: []ScenarioOutcome{}}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.TotalScenarios++
		outcome := ScenarioOutcome{Path: file}

		scenario, err := LoadScenario(file)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
			suite.record(outcome)
			continue
		}
		outcome.Name = scenario.Name

		result, err := RunContext(ctx, scenario)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
			suite.record(outcome)
			continue
		}
		outcome.Result = result
		outcome.Pass = result.Pass
		outcome.Errors = result.Errors
		suite.record(outcome)
	}
	return suite, nil
}

func (s *SuiteResult) record(o ScenarioOutcome) {
	if o.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
	s.Results = append(s.Results, o)
}
