// Package canon implements the per-operator canonicalization rules.
//
// Every rule is a pure function of a node's operator, its current operands
// and the Tool. A rule returns the node to use instead: the node itself
// (no change), an existing attached node, or freshly built floating nodes.
// Rules never attach, replace or kill nodes; the engine performs the
// substitution and re-enqueues the affected neighbors.
//
// Each entry point also reports which Rule fired so that the engine can
// journal it. RuleNone means the returned node is the original (or, when
// there was no original, an equivalent fresh node).
package canon
