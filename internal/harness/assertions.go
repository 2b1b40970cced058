package harness

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/lir"
	"github.com/roach88/seanode/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Rewrites []RewriteEvent // Full rewrite trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rewrites) > 0 {
		fmt.Fprintf(&buf, "\nRewrites:\n")
		for _, rw := range e.Rewrites {
			fmt.Fprintf(&buf, "  %s\n", rw)
		}
	}

	return buf.String()
}

// assertRuleCount checks how often a rule fired. With atLeastOnce set the
// count only has to be positive.
func assertRuleCount(rewrites []RewriteEvent, assertion Assertion, atLeastOnce bool) error {
	count := 0
	for _, rw := range rewrites {
		if rw.Rule == assertion.Rule {
			count++
		}
	}

	if atLeastOnce {
		if count > 0 {
			return nil
		}
		return &AssertionError{
			Type:     AssertRuleFired,
			Expected: fmt.Sprintf("rule %s to fire", assertion.Rule),
			Actual:   "never fired",
			Rewrites: rewrites,
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertRuleCount,
			Expected: fmt.Sprintf("%d rewrites by %s", assertion.Count, assertion.Rule),
			Actual:   fmt.Sprintf("%d rewrites", count),
			Rewrites: rewrites,
		}
	}
	return nil
}

// assertRewriteCount checks the total number of rewrites.
func assertRewriteCount(rewrites []RewriteEvent, assertion Assertion) error {
	if len(rewrites) != assertion.Count {
		return &AssertionError{
			Type:     AssertRewriteCount,
			Expected: fmt.Sprintf("%d rewrites", assertion.Count),
			Actual:   fmt.Sprintf("%d rewrites", len(rewrites)),
			Rewrites: rewrites,
		}
	}
	return nil
}

// assertRewriteOrder checks that rules first fired in the specified order.
// Rules don't need to be consecutive (intervening rewrites are allowed).
func assertRewriteOrder(rewrites []RewriteEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, rw := range rewrites {
		if positions[rw.Rule] == 0 {
			positions[rw.Rule] = i + 1 // 1-indexed for readability
		}
	}

	for _, rule := range assertion.Rules {
		if positions[rule] == 0 {
			return &AssertionError{
				Type:     AssertRewriteOrder,
				Expected: fmt.Sprintf("all rules fired: %v", assertion.Rules),
				Actual:   fmt.Sprintf("missing rule: %s", rule),
				Rewrites: rewrites,
			}
		}
	}

	for i := 1; i < len(assertion.Rules); i++ {
		prev := assertion.Rules[i-1]
		curr := assertion.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertRewriteOrder,
				Expected: fmt.Sprintf("rules in order: %v", assertion.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Rewrites: rewrites,
			}
		}
	}

	return nil
}

// assertNoOp checks that no live node of the canonical graph has the op.
func assertNoOp(g *ir.Graph, assertion Assertion) error {
	op, _ := ir.ParseOp(assertion.Op)
	var found []string
	for _, n := range g.Live() {
		if n.Op() == op {
			found = append(found, n.String())
		}
	}
	if len(found) > 0 {
		return &AssertionError{
			Type:     AssertNoOp,
			Expected: fmt.Sprintf("no %s nodes", op),
			Actual:   strings.Join(found, ", "),
		}
	}
	return nil
}

// assertOpCount checks the number of instructions of an op in the
// lowered program.
func assertOpCount(prog *lir.Program, assertion Assertion) error {
	op, _ := ir.ParseOp(assertion.Op)
	if count := prog.Count(op); count != assertion.Count {
		return &AssertionError{
			Type:     AssertOpCount,
			Expected: fmt.Sprintf("%d %s instructions", assertion.Count, op),
			Actual:   fmt.Sprintf("%d in\n%s", count, prog),
		}
	}
	return nil
}

// assertChainLength checks the number of trapping nodes left on the chain.
func assertChainLength(g *ir.Graph, assertion Assertion) error {
	if n := len(g.Chain()); n != assertion.Count {
		return &AssertionError{
			Type:     AssertChainLength,
			Expected: fmt.Sprintf("%d trapping nodes", assertion.Count),
			Actual:   fmt.Sprintf("%d trapping nodes", n),
		}
	}
	return nil
}

// assertFinalState checks if a journal table contains expected values.
// Queries the table with parameterized SQL and validates expected values
// using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Check for multiple matching rows (would indicate ambiguous assertion)
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]interface{})
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	// Sort keys so the first reported mismatch is stable
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]interface{}) (string, []interface{}, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values from journal tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case string:
		switch a := actual.(type) {
		case string:
			return exp == a
		case []byte:
			return exp == string(a)
		}
		return false
	case int:
		if actualInt, ok := actual.(int64); ok {
			return int64(exp) == actualInt
		}
		if actualInt, ok := actual.(int); ok {
			return exp == actualInt
		}
		return false
	case int64:
		if actualInt, ok := actual.(int64); ok {
			return exp == actualInt
		}
		return false
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store   *store.Store
	Ctx     context.Context
	Graph   *ir.Graph
	Program *lir.Program
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the canonical graph, the lowered program
// and database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRuleFired:
			err = assertRuleCount(result.Rewrites, assertion, true)
		case AssertRuleCount:
			err = assertRuleCount(result.Rewrites, assertion, false)
		case AssertRewriteCount:
			err = assertRewriteCount(result.Rewrites, assertion)
		case AssertRewriteOrder:
			err = assertRewriteOrder(result.Rewrites, assertion)
		case AssertNoOp:
			if actx == nil || actx.Graph == nil {
				err = fmt.Errorf("assertion[%d]: no_op requires a canonical graph", i)
			} else {
				err = assertNoOp(actx.Graph, assertion)
			}
		case AssertOpCount:
			if actx == nil || actx.Program == nil {
				err = fmt.Errorf("assertion[%d]: op_count requires a lowered program", i)
			} else {
				err = assertOpCount(actx.Program, assertion)
			}
		case AssertChainLength:
			if actx == nil || actx.Graph == nil {
				err = fmt.Errorf("assertion[%d]: chain_length requires a canonical graph", i)
			} else {
				err = assertChainLength(actx.Graph, assertion)
			}
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
