package store

import (
	"context"
	"fmt"

	"github.com/roach88/seanode/internal/ir"
)

// BeginUnit records the start of a unit's run.
// Uses ON CONFLICT(id) DO NOTHING: beginning a unit twice keeps the first row.
func (s *Store) BeginUnit(ctx context.Context, rec ir.UnitRecord) error {
	status := rec.Status
	if status == "" {
		status = ir.UnitRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units
		(id, name, status, before_fp, after_fp, rewrites, error, rule_options, max_rewrites, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Name,
		status,
		rec.Before,
		rec.After,
		rec.Rewrites,
		rec.Error,
		rec.RuleOptions,
		rec.MaxRewrites,
		rec.EngineVersion,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("begin unit %s: %w", rec.ID, err)
	}
	return nil
}

// RecordRewrite appends one rewrite. A (unit, seq) pair already present is
// left unchanged.
//
// Note: the unit must have been begun (foreign key constraint).
func (s *Store) RecordRewrite(ctx context.Context, rec ir.RewriteRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rewrites
		(unit_id, seq, rule, node_id, op, replacement_id, replacement_op)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit_id, seq) DO NOTHING
	`,
		rec.UnitID,
		rec.Seq,
		rec.Rule,
		int64(rec.NodeID),
		rec.Op,
		int64(rec.ReplacementID),
		rec.ReplacementOp,
	)
	if err != nil {
		return fmt.Errorf("record rewrite %s/%d: %w", rec.UnitID, rec.Seq, err)
	}
	return nil
}

// EndUnit stores the outcome of a unit's run.
// Returns ErrUnknownUnit if BeginUnit was never called for rec.ID.
func (s *Store) EndUnit(ctx context.Context, rec ir.UnitRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE units
		SET status = ?, after_fp = ?, rewrites = ?, error = ?
		WHERE id = ?
	`,
		rec.Status,
		rec.After,
		rec.Rewrites,
		rec.Error,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("end unit %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end unit %s: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("end unit %s: %w", rec.ID, ErrUnknownUnit)
	}
	return nil
}

// WriteSnapshot stores g's canonical JSON for unitID at phase.
// Returns the stored fingerprint. Writing a phase twice keeps the first body.
func (s *Store) WriteSnapshot(ctx context.Context, unitID string, phase Phase, g *ir.Graph) (string, error) {
	body, fp, err := marshalGraph(g)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (unit_id, phase, fingerprint, graph)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(unit_id, phase) DO NOTHING
	`, unitID, string(phase), fp, body)
	if err != nil {
		return "", fmt.Errorf("write snapshot %s/%s: %w", unitID, phase, err)
	}
	return fp, nil
}
