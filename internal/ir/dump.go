package ir

import (
	"fmt"
	"strings"
)

type dumpConfig struct {
	stamps bool
}

// DumpOption configures Dump.
type DumpOption func(*dumpConfig)

// WithoutStamps omits node stamps from the dump.
func WithoutStamps() DumpOption {
	return func(c *dumpConfig) { c.stamps = false }
}

// Dump renders g as stable text. Live nodes are numbered densely in ID
// order so that dumps do not depend on how many nodes were killed.
//
//	graph div4
//	  v1 = param x : i32 [-50, 50]
//	  v2 = const 4 : i32 4
//	  v3 = div v1, v2 [bci=3] : i32 [-12, 12]
//	chain v3
//	output q = v3
func Dump(g *Graph, opts ...DumpOption) string {
	cfg := dumpConfig{stamps: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	live := g.Live()
	ids := denseIDs(live)
	ref := func(n *Node) string { return fmt.Sprintf("v%d", ids[n]) }

	var b strings.Builder
	fmt.Fprintf(&b, "graph %s\n", g.name)
	for _, n := range live {
		fmt.Fprintf(&b, "  %s = %s", ref(n), n.op)
		switch n.op {
		case OpConst:
			fmt.Fprintf(&b, " %d", n.value)
		case OpParam:
			fmt.Fprintf(&b, " %s", n.name)
		default:
			for i, in := range n.inputs {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(" " + ref(in))
			}
		}
		if n.state != nil {
			fmt.Fprintf(&b, " [%s]", n.state)
		}
		if cfg.stamps {
			fmt.Fprintf(&b, " : %s", n.stamp)
		} else if n.op == OpConst || n.op == OpParam {
			fmt.Fprintf(&b, " : i%d", n.Bits())
		}
		b.WriteByte('\n')
	}

	b.WriteString("chain")
	for _, n := range g.Chain() {
		b.WriteString(" " + ref(n))
	}
	b.WriteByte('\n')
	for _, o := range g.outputs {
		fmt.Fprintf(&b, "output %s = %s\n", o.Name, ref(o.Node))
	}
	return b.String()
}

func denseIDs(live []*Node) map[*Node]int {
	ids := make(map[*Node]int, len(live))
	for i, n := range live {
		ids[n] = i + 1
	}
	return ids
}
