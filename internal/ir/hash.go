package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the encoding to change.
const (
	DomainGraph = "seanode/graph/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphValue returns the canonical JSON form of g. Live nodes are numbered
// densely in ID order; stamps other than widths are not included, since
// they are derived from the structure.
func GraphValue(g *Graph) Object {
	live := g.Live()
	ids := denseIDs(live)

	nodes := make(Array, 0, len(live))
	for _, n := range live {
		obj := Object{
			"op":   String(n.op.String()),
			"bits": Int(n.Bits()),
		}
		switch n.op {
		case OpConst:
			obj["value"] = Int(n.value)
		case OpParam:
			obj["name"] = String(n.name)
		default:
			inputs := make(Array, len(n.inputs))
			for i, in := range n.inputs {
				inputs[i] = Int(ids[in])
			}
			obj["inputs"] = inputs
		}
		if n.state != nil {
			obj["state"] = Object{
				"bci":    Int(n.state.BCI),
				"method": String(n.state.Method),
			}
		}
		nodes = append(nodes, obj)
	}

	chain := Array{}
	for _, n := range g.Chain() {
		chain = append(chain, Int(ids[n]))
	}
	outputs := make(Array, 0, len(g.outputs))
	for _, o := range g.outputs {
		outputs = append(outputs, Object{"name": String(o.Name), "node": Int(ids[o.Node])})
	}

	return Object{
		"name":    String(g.name),
		"nodes":   nodes,
		"chain":   chain,
		"outputs": outputs,
	}
}

// Fingerprint returns a content hash of g's structure. Two graphs that
// dump identically (ignoring stamps) have the same fingerprint.
func Fingerprint(g *Graph) (string, error) {
	data, err := MarshalCanonical(GraphValue(g))
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustFingerprint(g *Graph) string {
	fp, err := Fingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}
