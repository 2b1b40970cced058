package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/seanode/internal/ir"
)

const unitColumns = `id, name, status, before_fp, after_fp, rewrites, error, rule_options, max_rewrites, engine_version, ir_version`

// ReadUnit retrieves a single unit by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadUnit(ctx context.Context, id string) (ir.UnitRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id)
	return scanUnit(row)
}

// ListUnits returns every unit ordered by ID. UUIDv7 IDs sort by creation
// time, so this is run order.
//
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ListUnits(ctx context.Context) ([]ir.UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+unitColumns+`
		FROM units
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []ir.UnitRecord{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

// ReadRewrites returns a unit's rewrites in seq order.
//
// Returns an empty slice (not nil) if the unit performed none.
func (s *Store) ReadRewrites(ctx context.Context, unitID string) ([]ir.RewriteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_id, seq, rule, node_id, op, replacement_id, replacement_op
		FROM rewrites
		WHERE unit_id = ?
		ORDER BY seq ASC
	`, unitID)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer rows.Close()

	rewrites := []ir.RewriteRecord{}
	for rows.Next() {
		var rw ir.RewriteRecord
		var node, repl int64
		if err := rows.Scan(&rw.UnitID, &rw.Seq, &rw.Rule, &node, &rw.Op, &repl, &rw.ReplacementOp); err != nil {
			return nil, fmt.Errorf("scan rewrite: %w", err)
		}
		rw.NodeID = ir.NodeID(node)
		rw.ReplacementID = ir.NodeID(repl)
		rewrites = append(rewrites, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rewrites: %w", err)
	}
	return rewrites, nil
}

// RuleCount is the number of times a rule fired across the journal.
type RuleCount struct {
	Rule  string
	Count int
}

// RuleStats counts rewrites per rule, most frequent first; ties are
// ordered by rule name.
func (s *Store) RuleStats(ctx context.Context) ([]RuleCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule, COUNT(*) AS n
		FROM rewrites
		GROUP BY rule
		ORDER BY n DESC, rule COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rule stats: %w", err)
	}
	defer rows.Close()

	stats := []RuleCount{}
	for rows.Next() {
		var rc RuleCount
		if err := rows.Scan(&rc.Rule, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan rule stats: %w", err)
		}
		stats = append(stats, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule stats: %w", err)
	}
	return stats, nil
}

// ReadSnapshot returns the graph stored for unitID at phase.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSnapshot(ctx context.Context, unitID string, phase Phase) (Snapshot, error) {
	snap := Snapshot{UnitID: unitID, Phase: phase}
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, graph FROM snapshots WHERE unit_id = ? AND phase = ?
	`, unitID, string(phase)).Scan(&snap.Fingerprint, &snap.Graph)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (ir.UnitRecord, error) {
	var u ir.UnitRecord
	err := row.Scan(&u.ID, &u.Name, &u.Status, &u.Before, &u.After, &u.Rewrites, &u.Error, &u.RuleOptions, &u.MaxRewrites, &u.EngineVersion, &u.IRVersion)
	if err == sql.ErrNoRows {
		return ir.UnitRecord{}, err
	}
	if err != nil {
		return ir.UnitRecord{}, fmt.Errorf("scan unit: %w", err)
	}
	return u, nil
}
