package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/seanode/internal/ir"
)

// createTestStore opens a fresh journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUnit returns a running unit record with the required fields set.
func createTestUnit(id, name string) ir.UnitRecord {
	return ir.UnitRecord{
		ID:            id,
		Name:          name,
		Status:        ir.UnitRunning,
		Before:        "fp-before",
		RuleOptions:   "strength-reduction,adjacent-duplicates",
		MaxRewrites:   100,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// createTestRewrite returns a rewrite record of unitID at seq.
func createTestRewrite(unitID string, seq int64, rule string) ir.RewriteRecord {
	return ir.RewriteRecord{
		UnitID:        unitID,
		Seq:           seq,
		Rule:          rule,
		NodeID:        3,
		Op:            "div",
		ReplacementID: 8,
		ReplacementOp: "shr",
	}
}

// beginTestUnit writes a running unit or fails the test.
func beginTestUnit(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.BeginUnit(context.Background(), createTestUnit(id, "div4")); err != nil {
		t.Fatalf("BeginUnit(%s) failed: %v", id, err)
	}
}
