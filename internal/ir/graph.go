package ir

import (
	"fmt"

	"github.com/roach88/seanode/internal/stamp"
)

type constKey struct {
	bits  int
	value int64
}

// Output is a named result of a graph.
type Output struct {
	Name string
	Node *Node
}

// Graph is the node arena of one compilation unit. A Graph is not safe for
// concurrent use; each unit owns its own.
type Graph struct {
	name    string
	nodes   []*Node // indexed by NodeID; slot 0 is unused
	consts  map[constKey]*Node
	params  []*Node
	outputs []Output
	head    *Node // first fixed node
	tail    *Node // last fixed node
}

// NewGraph returns an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:   name,
		nodes:  []*Node{nil},
		consts: make(map[constKey]*Node),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// AddParam attaches a parameter with the given assumed stamp.
func (g *Graph) AddParam(name string, s stamp.Stamp) (*Node, error) {
	if !s.IsInteger() || s.IsEmpty() {
		return nil, fmt.Errorf("param %q: stamp %s is not a non-empty integer stamp", name, s)
	}
	if g.Param(name) != nil {
		return nil, fmt.Errorf("param %q: already declared", name)
	}
	n := &Node{op: OpParam, name: name, stamp: s}
	g.register(n)
	g.params = append(g.params, n)
	return n, nil
}

// Param returns the parameter named name, or nil.
func (g *Graph) Param(name string) *Node {
	for _, p := range g.params {
		if p.name == name && !p.dead {
			return p
		}
	}
	return nil
}

// Params returns the live parameters in declaration order.
func (g *Graph) Params() []*Node {
	out := make([]*Node, 0, len(g.params))
	for _, p := range g.params {
		if !p.dead {
			out = append(out, p)
		}
	}
	return out
}

// Const returns the attached w-bit constant v, creating it if needed.
func (g *Graph) Const(w int, v int64) *Node {
	return g.Add(NewConst(w, v))
}

// Add attaches n and, recursively, its floating inputs. It returns the
// attached representative, which differs from n when n is a constant
// already present in the pool. Add never links fixed nodes into the control
// chain; use AppendFixed or Replace for that.
func (g *Graph) Add(n *Node) *Node {
	if n.graph != nil {
		if n.graph != g {
			panic(fmt.Sprintf("ir: %s belongs to graph %q, not %q", n, n.graph.name, g.name))
		}
		return n
	}
	if n.op == OpConst {
		key := constKey{bits: n.Bits(), value: n.value}
		if c, ok := g.consts[key]; ok {
			return c
		}
		g.register(n)
		g.consts[key] = n
		return n
	}
	for i, in := range n.inputs {
		n.inputs[i] = g.Add(in)
	}
	g.register(n)
	for _, in := range n.inputs {
		in.addUsage(n)
	}
	return n
}

func (g *Graph) register(n *Node) {
	n.graph = g
	n.id = NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
}

// AppendFixed attaches a fixed node and links it at the end of the control chain.
func (g *Graph) AppendFixed(n *Node) (*Node, error) {
	if !n.IsFixed() {
		return nil, fmt.Errorf("ir: %s is not a fixed node", n)
	}
	if n.graph != nil {
		return nil, fmt.Errorf("ir: %s is already attached", n)
	}
	g.Add(n)
	g.link(n, g.tail)
	return n, nil
}

// link inserts n after prev, or at the head when prev is nil.
func (g *Graph) link(n, prev *Node) {
	n.prev = prev
	if prev == nil {
		n.next = g.head
		g.head = n
	} else {
		n.next = prev.next
		prev.next = n
	}
	if n.next != nil {
		n.next.prev = n
	} else {
		g.tail = n
	}
}

func (g *Graph) unlink(n *Node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if g.head == n {
		g.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else if g.tail == n {
		g.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (g *Graph) isLinked(n *Node) bool {
	return n.prev != nil || n.next != nil || g.head == n
}

// SetOutput names n as a result of the graph, attaching it if floating.
// Setting an existing name replaces the previous node.
func (g *Graph) SetOutput(name string, n *Node) *Node {
	n = g.Add(n)
	for i := range g.outputs {
		if g.outputs[i].Name == name {
			g.outputs[i].Node = n
			return n
		}
	}
	g.outputs = append(g.outputs, Output{Name: name, Node: n})
	return n
}

// Outputs returns the graph results in declaration order.
func (g *Graph) Outputs() []Output {
	out := make([]Output, len(g.outputs))
	copy(out, g.outputs)
	return out
}

// Output returns the node of the named result, or nil.
func (g *Graph) Output(name string) *Node {
	for _, o := range g.outputs {
		if o.Name == name {
			return o.Node
		}
	}
	return nil
}

func (g *Graph) isOutput(n *Node) bool {
	for _, o := range g.outputs {
		if o.Node == n {
			return true
		}
	}
	return false
}

// Chain returns the fixed nodes in control order.
func (g *Graph) Chain() []*Node {
	var out []*Node
	for n := g.head; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// Node returns the live node with the given ID, or nil.
func (g *Graph) Node(id NodeID) *Node {
	if id <= 0 || int(id) >= len(g.nodes) {
		return nil
	}
	n := g.nodes[id]
	if n.dead {
		return nil
	}
	return n
}

// Live returns the live nodes in ID order.
func (g *Graph) Live() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes[1:] {
		if !n.dead {
			out = append(out, n)
		}
	}
	return out
}

// Mark returns a watermark for NewSince.
func (g *Graph) Mark() NodeID { return NodeID(len(g.nodes)) }

// NewSince returns the live nodes attached after mark was taken.
func (g *Graph) NewSince(mark NodeID) []*Node {
	var out []*Node
	for _, n := range g.nodes[mark:] {
		if !n.dead {
			out = append(out, n)
		}
	}
	return out
}

// Replace substitutes repl for old: every usage of old and every output
// naming old is re-pointed to repl, then old is killed. repl is attached if
// it is floating. When old is on the control chain and repl is a fixed node
// not yet linked, repl takes old's position; otherwise old is unlinked.
// Replace returns the attached replacement.
func (g *Graph) Replace(old, repl *Node) *Node {
	if old.graph != g || old.dead {
		panic(fmt.Sprintf("ir: replacing %s which is not live in graph %q", old, g.name))
	}
	repl = g.Add(repl)
	if repl == old {
		return old
	}

	for _, u := range old.Usages() {
		if u == repl {
			panic(fmt.Sprintf("ir: replacement %s uses the node it replaces", repl))
		}
		for i, in := range u.inputs {
			if in == old {
				u.inputs[i] = repl
				repl.addUsage(u)
			}
		}
	}
	old.usages = nil
	for i := range g.outputs {
		if g.outputs[i].Node == old {
			g.outputs[i].Node = repl
		}
	}

	if g.isLinked(old) {
		prev := old.prev
		g.unlink(old)
		if repl.IsFixed() && !g.isLinked(repl) {
			g.link(repl, prev)
		}
	}
	g.Kill(old)
	return repl
}

// Kill removes n from the graph. n must have no usages. Floating inputs
// left without usages are removed recursively; parameters, outputs and
// fixed nodes are kept.
func (g *Graph) Kill(n *Node) {
	if n.dead {
		return
	}
	if len(n.usages) != 0 {
		panic(fmt.Sprintf("ir: killing %s with %d usages", n, len(n.usages)))
	}
	if g.isLinked(n) {
		g.unlink(n)
	}
	n.dead = true
	if n.op == OpConst {
		delete(g.consts, constKey{bits: n.Bits(), value: n.value})
	}
	for _, in := range n.inputs {
		in.removeUsage(n)
		if in.UsageCount() == 0 && in.op != OpParam && !in.IsFixed() && !g.isOutput(in) {
			g.Kill(in)
		}
	}
}
