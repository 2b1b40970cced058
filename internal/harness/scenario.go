package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/seanode/internal/canon"
	"github.com/roach88/seanode/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario compiles one graph description, canonicalizes and lowers it,
// runs sample arguments through every stage and asserts on the rewrites,
// the resulting graph and the journal.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path to a CUE file holding graph descriptions.
	// Relative paths are resolved against the scenario file's directory.
	Graph string `yaml:"graph,omitempty"`

	// Source is inline CUE, used instead of Graph.
	Source string `yaml:"source,omitempty"`

	// Entry selects the graph by name. It may be omitted when the source
	// defines exactly one graph.
	Entry string `yaml:"entry,omitempty"`

	// Options overrides individual rule groups. Unset groups stay enabled.
	Options *RuleOptions `yaml:"options,omitempty"`

	// MaxRewrites overrides the engine's rewrite quota when positive.
	MaxRewrites int `yaml:"max_rewrites,omitempty"`

	// Samples are argument sets evaluated before canonicalization, after
	// it, and on the lowered program. All three must agree.
	Samples []Sample `yaml:"samples,omitempty"`

	// Assertions validate the rewrites, the final graph and the journal.
	Assertions []Assertion `yaml:"assertions"`

	// UnitID is an optional fixed unit ID for deterministic journals.
	// If empty, defaults to "test-unit-default".
	UnitID string `yaml:"unit_id,omitempty"`
}

// RuleOptions mirrors canon.Options with optional fields.
type RuleOptions struct {
	StrengthReduction  *bool `yaml:"strength_reduction,omitempty"`
	FloorCorrection    *bool `yaml:"floor_correction,omitempty"`
	AdjacentDuplicates *bool `yaml:"adjacent_duplicates,omitempty"`
}

// Canon returns the rule groups to enable.
func (o *RuleOptions) Canon() canon.Options {
	opts := canon.DefaultOptions()
	if o == nil {
		return opts
	}
	if o.StrengthReduction != nil {
		opts.StrengthReduction = *o.StrengthReduction
	}
	if o.FloorCorrection != nil {
		opts.FloorCorrection = *o.FloorCorrection
	}
	if o.AdjacentDuplicates != nil {
		opts.AdjacentDuplicates = *o.AdjacentDuplicates
	}
	return opts
}

// Sample is one set of parameter values.
type Sample struct {
	Args map[string]int64 `yaml:"args"`

	// Expect lists expected output values. Subset match.
	Expect map[string]int64 `yaml:"expect,omitempty"`

	// Trap expects every stage to trap on these arguments.
	Trap bool `yaml:"trap,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rule_fired": Rule fired at least once
	// - "rule_count": Rule fired exactly Count times
	// - "rewrite_count": Exactly Count rewrites in total
	// - "rewrite_order": Rules fired in the given order
	// - "no_op": Op does not survive canonicalization
	// - "op_count": The lowered program has Count instructions of Op
	// - "chain_length": Count trapping nodes remain on the control chain
	// - "final_state": Query a journal table and verify expected values
	Type string `yaml:"type"`

	// Rule is the canonicalization rule (rule_fired, rule_count).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected rule order (rewrite_order).
	Rules []string `yaml:"rules,omitempty"`

	// Op is an IR operator name (no_op, op_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`

	// Table is the journal table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertRuleFired    = "rule_fired"
	AssertRuleCount    = "rule_count"
	AssertRewriteCount = "rewrite_count"
	AssertRewriteOrder = "rewrite_order"
	AssertNoOp         = "no_op"
	AssertOpCount      = "op_count"
	AssertChainLength  = "chain_length"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// The graph path is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the graph path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario decodes scenario YAML. basePath may be empty.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the graph path BEFORE validation
	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) && basePath != "" {
		scenario.Graph = filepath.Join(basePath, scenario.Graph)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Graph == "" && s.Source == "":
		return fmt.Errorf("one of graph or source is required")
	case s.Graph != "" && s.Source != "":
		return fmt.Errorf("graph and source are mutually exclusive")
	}

	if s.Graph != "" {
		if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
			return fmt.Errorf("graph file not found: %s", s.Graph)
		}
	}

	if s.MaxRewrites < 0 {
		return fmt.Errorf("max_rewrites must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, sample := range s.Samples {
		if sample.Args == nil {
			return fmt.Errorf("samples[%d]: args is required (use empty map if no args)", i)
		}
		if sample.Trap && len(sample.Expect) > 0 {
			return fmt.Errorf("samples[%d]: trap and expect are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertRuleFired, AssertRuleCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for %s", index, a.Type)
		}
	case AssertRewriteCount, AssertChainLength:
	case AssertRewriteOrder:
		if len(a.Rules) == 0 {
			return fmt.Errorf("assertions[%d]: rules list is required for rewrite_order", index)
		}
	case AssertNoOp, AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for %s", index, a.Type)
		}
		if _, ok := ir.ParseOp(a.Op); !ok {
			return fmt.Errorf("assertions[%d]: unknown op %q", index, a.Op)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
