// Package engine drives canonicalization of compilation units to a
// fixpoint.
//
// ARCHITECTURE:
//
// Worklist Fixpoint:
// Each unit is processed by a single goroutine. The worklist holds node IDs
// in FIFO order, seeded with every live node in production order:
// 1. Dequeue a node; skip it if it was killed while waiting
// 2. Refine its stamp from its inputs (an empty result aborts the unit)
// 3. Canonicalize it with the configured canon.Tool
// 4. If a rule fired: attach the replacement, substitute it with
// Graph.Replace, and enqueue the replacement, its usages and every node
// attached by the rewrite
//
// Rules are pure; all graph mutation happens here, between rule
// applications, so no rule ever observes a half-rewritten graph.
//
// Parallel Units:
// CompileAll runs independent units on an errgroup with a concurrency
// limit. Units never share graphs; the only shared state is the logical
// clock (atomic) and the optional journal.
//
// Termination:
// The rule set only rewrites towards smaller or canonical forms, so the
// fixpoint terminates. A per-unit rewrite quota turns a violation of that
// property into QUOTA_EXCEEDED instead of a hang.
//
// Determinism:
// Rewrites are numbered by a logical Clock, never wall time. The same
// graph and options always produce the same rewrite sequence.
package engine
