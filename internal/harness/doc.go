// Package harness provides conformance testing for graph canonicalization.
//
// The harness compiles a graph description, canonicalizes it with the
// engine, lowers the result and checks that the original graph, the
// canonical graph and the lowered program compute the same values.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: div4_mixed_sign
//	description: "Division by 4 of a signed value rounds toward zero"
//	graph: graphs/div.cue       # or source: with inline CUE
//	entry: div4                 # optional when the file has one graph
//	options:
//	  floor_correction: false   # unset groups stay enabled
//	samples:
//	  - args: { x: -7 }
//	    expect: { q: -1 }
//	  - args: { x: 0, y: 0 }
//	    trap: true
//	assertions:
//	  - type: rule_fired
//	    rule: div-power-of-two
//	  - type: no_op
//	    op: div
//	  - type: final_state
//	    table: units
//	    where: { id: "test-unit-default" }
//	    expect: { status: "done" }
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - rule_fired: Verifies a rule fired at least once
//   - rule_count: Verifies a rule fired exactly N times
//   - rewrite_count: Verifies the total number of rewrites
//   - rewrite_order: Verifies rules first fired in the specified order
//   - no_op: Verifies an operator does not survive canonicalization
//   - op_count: Counts instructions of an operator in the lowered program
//   - chain_length: Counts trapping nodes left on the control chain
//   - final_state: Queries a journal table and verifies expected values
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and unit ID to ensure
// reproducible results and golden snapshot comparison.
//
// The harness uses:
//   - A fixed unit ID (from scenario.unit_id, default "test-unit-default")
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per test)
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/div4.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
