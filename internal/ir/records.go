package ir

// NOTE: These are journal records, not part of the graph encoding.
// Sequence numbers come from the engine's logical clock, never wall time.

// UnitRecord summarizes one canonicalization run of a compilation unit.
type UnitRecord struct {
	ID            string `json:"id"` // UUIDv7 unit ID
	Name          string `json:"name"`
	Status        string `json:"status"` // "running", "done" or "failed"
	Before        string `json:"before"` // fingerprint before canonicalization
	After         string `json:"after,omitempty"`
	Rewrites      int    `json:"rewrites"`
	Error         string `json:"error,omitempty"`
	RuleOptions   string `json:"rule_options"` // enabled rule groups, e.g. "strength-reduction,floor-correction"
	MaxRewrites   int    `json:"max_rewrites"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
}

// Unit statuses.
const (
	UnitRunning = "running"
	UnitDone    = "done"
	UnitFailed  = "failed"
)

// RewriteRecord is one substitution performed by the engine.
type RewriteRecord struct {
	UnitID        string `json:"unit_id"`
	Seq           int64  `json:"seq"`
	Rule          string `json:"rule"`
	NodeID        NodeID `json:"node_id"`
	Op            string `json:"op"`
	ReplacementID NodeID `json:"replacement_id"`
	ReplacementOp string `json:"replacement_op"`
}
