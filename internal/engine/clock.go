package engine

import "sync/atomic"

// Clock is a monotonic logical clock for rewrite ordering.
//
// Every journaled rewrite is stamped with a strictly increasing sequence
// number. Wall time is never used, so two sequential runs over the same
// graph from the same starting value journal identical sequences.
//
// Clock is safe for concurrent use. A Driver owns one clock, so every unit
// CompileAll runs shares it: sequence numbers are unique across units and
// increase within each unit, but interleave between units running in
// parallel. Replay compares rules in order, never sequence numbers.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to continue the
// sequence of an existing journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
