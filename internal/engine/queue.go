package engine

import "github.com/roach88/seanode/internal/ir"

// worklist is a FIFO of node IDs awaiting canonicalization.
//
// An ID already waiting is not enqueued a second time; it becomes eligible
// again once dequeued. Nodes are referenced by ID rather than pointer so
// that a node killed while waiting is simply skipped when its turn comes.
//
// The worklist belongs to a single Run call and is not safe for concurrent
// use.
type worklist struct {
	ids     []ir.NodeID
	pending map[ir.NodeID]bool
}

func newWorklist() *worklist {
	return &worklist{
		ids:     make([]ir.NodeID, 0, 64),
		pending: make(map[ir.NodeID]bool),
	}
}

// Enqueue adds id to the back of the worklist. It reports false when id
// was already waiting.
func (w *worklist) Enqueue(id ir.NodeID) bool {
	if w.pending[id] {
		return false
	}
	w.pending[id] = true
	w.ids = append(w.ids, id)
	return true
}

// EnqueueNodes enqueues each attached node in order.
func (w *worklist) EnqueueNodes(nodes []*ir.Node) {
	for _, n := range nodes {
		if n != nil && n.IsAttached() {
			w.Enqueue(n.ID())
		}
	}
}

// Dequeue removes and returns the front ID.
func (w *worklist) Dequeue() (ir.NodeID, bool) {
	if len(w.ids) == 0 {
		return 0, false
	}
	id := w.ids[0]
	if len(w.ids) == 1 {
		// Reuse the backing array once drained.
		w.ids = w.ids[:0]
	} else {
		w.ids = w.ids[1:]
	}
	delete(w.pending, id)
	return id, true
}

// Len returns the number of waiting IDs.
func (w *worklist) Len() int {
	return len(w.ids)
}
