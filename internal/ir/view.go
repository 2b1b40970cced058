package ir

import "github.com/roach88/seanode/internal/stamp"

// NodeView answers stamp queries during canonicalization. A view may know
// more about a node than its own stamp, for example facts assumed by the
// caller for the current compilation.
type NodeView interface {
	Stamp(n *Node) stamp.Stamp
}

// DefaultView reports each node's own stamp.
type DefaultView struct{}

func (DefaultView) Stamp(n *Node) stamp.Stamp { return n.Stamp() }

// Assumptions is a view that refines node stamps with assumed facts.
// An assumption incompatible with the node's stamp is ignored.
type Assumptions map[*Node]stamp.Stamp

func (a Assumptions) Stamp(n *Node) stamp.Stamp {
	s := n.Stamp()
	if f, ok := a[n]; ok && f.IsCompatible(s) {
		if j := s.Join(f); !j.IsEmpty() {
			return j
		}
	}
	return s
}
