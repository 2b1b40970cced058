package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one unit in CompileAll.
type Outcome struct {
	Unit   *Unit
	Result *Result
	Err    error
}

// CompileAll canonicalizes units in parallel, at most workers at a time
// (no limit when workers <= 0). Outcomes are returned in input order.
//
// A failing unit does not stop the others: its error is reported in its
// Outcome. Cancelling ctx abandons every unit still running.
func CompileAll(ctx context.Context, units []*Unit, workers int, opts ...Option) []Outcome {
	d := New(opts...)
	out := make([]Outcome, len(units))

	var eg errgroup.Group
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, u := range units {
		i, u := i, u
		eg.Go(func() error {
			res, err := d.Run(ctx, u)
			out[i] = Outcome{Unit: u, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// Failed returns the outcomes that ended in an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
