package harness

import (
	"fmt"
	"sort"
	"strings"
)

// RewriteEvent is one rewrite in the trace, without node IDs so that
// traces survive changes in node numbering.
type RewriteEvent struct {
	Seq           int64  `json:"seq"`
	Rule          string `json:"rule"`
	Op            string `json:"op"`
	ReplacementOp string `json:"replacement_op"`
}

func (e RewriteEvent) String() string {
	return fmt.Sprintf("%d %s %s -> %s", e.Seq, e.Rule, e.Op, e.ReplacementOp)
}

// SampleResult records what one sample produced after canonicalization.
type SampleResult struct {
	Args    map[string]int64 `json:"args"`
	Outputs map[string]int64 `json:"outputs,omitempty"`
	Trap    string           `json:"trap,omitempty"`
}

func (s SampleResult) String() string {
	out := formatValues(s.Outputs)
	if s.Trap != "" {
		out = s.Trap
	}
	return fmt.Sprintf("%s -> %s", formatValues(s.Args), out)
}

// formatValues renders name=value pairs sorted by name.
func formatValues(m map[string]int64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every sample agrees across stages and every assertion holds.
	Pass bool `json:"pass"`

	// Rewrites lists the engine's rewrites in order.
	Rewrites []RewriteEvent `json:"rewrites"`

	// Graph is the canonical graph, dumped without stamps.
	Graph string `json:"graph"`

	// Program is the lowered program text.
	Program string `json:"program"`

	// Samples holds one entry per scenario sample.
	Samples []SampleResult `json:"samples"`

	// Before and After are graph fingerprints around canonicalization.
	Before string `json:"before"`
	After  string `json:"after"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Rewrites: []RewriteEvent{},
		Samples:  []SampleResult{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Rules returns the rule of each rewrite in order.
func (r *Result) Rules() []string {
	rules := make([]string, len(r.Rewrites))
	for i, e := range r.Rewrites {
		rules[i] = e.Rule
	}
	return rules
}
