package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/seanode/internal/ir"
)

// Phase names the point in a run a snapshot was taken.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Snapshot is a stored graph body.
type Snapshot struct {
	UnitID      string
	Phase       Phase
	Fingerprint string
	// Graph is the canonical JSON form produced by ir.GraphValue.
	Graph string
}

// Decode parses the snapshot body into a generic JSON tree. Integers stay
// json.Number so node values beyond 2^53 are not rounded.
func (s Snapshot) Decode() (map[string]any, error) {
	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(s.Graph))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode snapshot %s/%s: %w", s.UnitID, s.Phase, err)
	}
	return out, nil
}

// marshalGraph returns g's canonical JSON and its fingerprint.
func marshalGraph(g *ir.Graph) (body, fingerprint string, err error) {
	data, err := ir.MarshalCanonical(ir.GraphValue(g))
	if err != nil {
		return "", "", fmt.Errorf("marshal graph %s: %w", g.Name(), err)
	}
	fp, err := ir.Fingerprint(g)
	if err != nil {
		return "", "", err
	}
	return string(data), fp, nil
}
