package lower

import (
	"fmt"

	"github.com/roach88/seanode/internal/ir"
)

// ScheduleError reports a fixed node that cannot be placed in chain order.
type ScheduleError struct {
	Node   *ir.Node
	Reason string
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("lower: cannot schedule %s: %s", e.Node, e.Reason)
}

type scheduler struct {
	order   []*ir.Node
	placed  map[*ir.Node]bool
	onChain map[*ir.Node]bool
}

// Schedule returns g's live nodes in an order where every node follows its
// inputs: parameters first, then each chain node preceded by the floating
// nodes it needs, then whatever the outputs still need. Fixed nodes keep
// their chain order.
func Schedule(g *ir.Graph) ([]*ir.Node, error) {
	s := &scheduler{
		placed:  make(map[*ir.Node]bool),
		onChain: make(map[*ir.Node]bool),
	}
	chain := g.Chain()
	for _, n := range chain {
		s.onChain[n] = true
	}

	for _, p := range g.Params() {
		s.place(p)
	}
	for _, n := range chain {
		for _, in := range n.Inputs() {
			if err := s.visit(in); err != nil {
				return nil, err
			}
		}
		s.place(n)
	}
	for _, o := range g.Outputs() {
		if err := s.visit(o.Node); err != nil {
			return nil, err
		}
	}
	return s.order, nil
}

func (s *scheduler) place(n *ir.Node) {
	s.placed[n] = true
	s.order = append(s.order, n)
}

// visit places n's floating inputs in post-order, then n itself.
func (s *scheduler) visit(n *ir.Node) error {
	if s.placed[n] {
		return nil
	}
	if n.IsFixed() {
		if s.onChain[n] {
			return &ScheduleError{Node: n, Reason: "used before it executes"}
		}
		return &ScheduleError{Node: n, Reason: "not on the control chain"}
	}
	for _, in := range n.Inputs() {
		if err := s.visit(in); err != nil {
			return err
		}
	}
	s.place(n)
	return nil
}
