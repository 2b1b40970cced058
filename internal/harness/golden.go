package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as stable text: the rewrites in order, the
// canonical graph, the lowered program and the sample outcomes. Node IDs
// and fingerprints are left out so that snapshots survive renumbering.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder
	b.WriteString("scenario " + name + "\n")
	b.WriteString("rewrites\n")
	for _, rw := range result.Rewrites {
		b.WriteString("  " + rw.String() + "\n")
	}
	b.WriteString(result.Graph)
	if result.Program != "" {
		b.WriteString(result.Program)
	}
	b.WriteString("samples\n")
	for _, s := range result.Samples {
		b.WriteString("  " + s.String() + "\n")
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
