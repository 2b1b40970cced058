// Package store provides the SQLite rewrite journal.
//
// The journal is append-only:
//   - Units: one row per canonicalization run, with graph fingerprints
//     before and after and the final status
//   - Rewrites: every substitution the engine performed, keyed by
//     (unit_id, seq)
//   - Snapshots: canonical JSON of a unit's graph before and after
//
// # Ordering
//
// seq comes from the engine's logical clock. Queries order by seq, then by
// id COLLATE BINARY, never by wall time, so reading a journal back is
// deterministic.
//
// # Idempotency
//
// Writing the same unit, rewrite or snapshot twice is a no-op, so a journal
// can be replayed into a fresh database without duplicates.
//
// Fingerprints and snapshot bodies are produced by internal/ir using
// RFC 8785 canonical JSON.
package store
