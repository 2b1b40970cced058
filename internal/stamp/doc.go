// Package stamp implements the abstract integer domain attached to every
// value-producing IR node.
//
// A Stamp describes the set of values a node can produce at runtime: a bit
// width, signed lower/upper bounds and two bit masks (bits known to be one,
// bits that may be one). All operators in this package are sound: for any
// concrete x in X and y in Y, op(x, y) is a member of Fold(op, X, Y).
//
// Values are always carried as int64 sign-extended from the stamp's width.
// Masks are carried as uint64 truncated to the width.
//
// This package imports nothing internal. It also hosts the stateless
// constant-folding helpers (IsPowerOf2, Log2, Apply) shared by the
// canonicalizer, the interpreters and the stamp operators themselves.
package stamp
