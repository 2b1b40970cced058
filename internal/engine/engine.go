package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/seanode/internal/canon"
	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Journal receives the unit lifecycle and every rewrite performed.
// Implemented by store.Store. A journal must be safe for concurrent use
// when the driver runs units in parallel.
type Journal interface {
	BeginUnit(ctx context.Context, rec ir.UnitRecord) error
	RecordRewrite(ctx context.Context, rec ir.RewriteRecord) error
	EndUnit(ctx context.Context, rec ir.UnitRecord) error
}

// Driver runs the canonicalization fixpoint over compilation units.
//
// A Driver holds only configuration and may run several units at once;
// all per-unit state (worklist, quota) lives in Run.
type Driver struct {
	tool        *canon.Tool
	maxRewrites int
	logger      *slog.Logger
	journal     Journal
	clock       Sequencer
}

// Sequencer hands out strictly increasing rewrite sequence numbers.
// Implemented by Clock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxRewrites sets the rewrite quota per unit.
//
// Default: 10000 (DefaultMaxRewrites).
func WithMaxRewrites(n int) Option {
	return func(d *Driver) {
		d.maxRewrites = n
	}
}

// WithTool sets the canonicalization context. Default: canon.DefaultTool().
func WithTool(t *canon.Tool) Option {
	return func(d *Driver) {
		d.tool = t
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithJournal records units and rewrites in j.
func WithJournal(j Journal) Option {
	return func(d *Driver) {
		d.journal = j
	}
}

// WithClock sets the clock that numbers rewrites. Default: a fresh Clock
// per Driver.
func WithClock(c Sequencer) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

// New creates a Driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		maxRewrites: DefaultMaxRewrites,
		clock:       NewClock(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tool == nil {
		d.tool = canon.DefaultTool()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Clock returns the driver's logical clock.
func (d *Driver) Clock() Sequencer {
	return d.clock
}

// MaxRewrites returns the configured rewrite quota per unit.
func (d *Driver) MaxRewrites() int {
	return d.maxRewrites
}

// Result summarizes a canonicalization run.
type Result struct {
	Unit string
	Name string

	// Before and After are graph fingerprints.
	Before string
	After  string

	// Rewrites lists every substitution in the order performed.
	Rewrites []ir.RewriteRecord

	// Rules counts rewrites per rule.
	Rules map[canon.Rule]int

	// Visits counts nodes taken off the worklist.
	Visits int

	// StampChanges counts stamp refinements.
	StampChanges int
}

func (r *Result) record(rec ir.RewriteRecord) {
	r.Rewrites = append(r.Rewrites, rec)
	r.Rules[canon.Rule(rec.Rule)]++
}

// Run canonicalizes u's graph until no rule applies.
//
// The worklist is seeded with every live node in production order. Each
// visit refines the node's stamp from its inputs, then applies the
// canonicalization rules; a replacement is attached and substituted, and
// the replacement, its usages and every newly attached node are enqueued.
//
// On error the unit is abandoned and the graph is left in its partially
// canonicalized state; the returned Result still describes the rewrites
// performed. Errors are *CompilationError.
func (d *Driver) Run(ctx context.Context, u *Unit) (*Result, error) {
	g := u.Graph
	res := &Result{
		Unit:   u.ID,
		Name:   u.Name,
		Before: ir.MustFingerprint(g),
		Rules:  make(map[canon.Rule]int),
	}

	rec := ir.UnitRecord{
		ID:            u.ID,
		Name:          u.Name,
		Status:        ir.UnitRunning,
		Before:        res.Before,
		RuleOptions:   d.tool.Options.String(),
		MaxRewrites:   d.maxRewrites,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if d.journal != nil {
		if err := d.journal.BeginUnit(ctx, rec); err != nil {
			return res, newCompilationError(ErrCodeJournal, u.ID, 0, err)
		}
	}

	d.logger.Debug("unit starting", "unit", u.ID, "name", u.Name, "nodes", len(g.Live()))

	runErr := d.fixpoint(ctx, u, res)
	res.After = ir.MustFingerprint(g)

	rec.After = res.After
	rec.Rewrites = len(res.Rewrites)
	rec.Status = ir.UnitDone
	if runErr != nil {
		rec.Status = ir.UnitFailed
		rec.Error = runErr.Error()
		d.logger.Error("unit failed",
			"unit", u.ID,
			"name", u.Name,
			"rewrites", len(res.Rewrites),
			"error", runErr,
		)
	} else {
		d.logger.Info("unit canonicalized",
			"unit", u.ID,
			"name", u.Name,
			"rewrites", len(res.Rewrites),
			"visits", res.Visits,
		)
	}
	if d.journal != nil {
		// The unit outcome is recorded even when the context is gone.
		if err := d.journal.EndUnit(context.WithoutCancel(ctx), rec); err != nil && runErr == nil {
			runErr = newCompilationError(ErrCodeJournal, u.ID, 0, err)
		}
	}
	return res, runErr
}

func (d *Driver) fixpoint(ctx context.Context, u *Unit, res *Result) error {
	g := u.Graph
	wl := newWorklist()
	wl.EnqueueNodes(g.Live())
	quota := NewQuotaEnforcer(d.maxRewrites)

	for {
		if err := ctx.Err(); err != nil {
			return newCompilationError(ErrCodeCancelled, u.ID, 0, err)
		}
		id, ok := wl.Dequeue()
		if !ok {
			return nil
		}
		n := g.Node(id)
		if n == nil {
			continue
		}
		res.Visits++

		if n.Op() != ir.OpConst && n.Op() != ir.OpParam {
			changed, err := n.InferStamp()
			if err != nil {
				return d.stampError(u, n, err)
			}
			if changed {
				res.StampChanges++
				d.logger.Debug("stamp refined", "unit", u.ID, "node", n.String(), "stamp", n.Stamp().String())
				wl.EnqueueNodes(n.Usages())
			}
		}

		mark := g.Mark()
		repl, rule, err := canon.Node(n, d.tool)
		if err != nil {
			return newCompilationError(ErrCodeUnsupportedInput, u.ID, id, err)
		}
		if repl == n {
			continue
		}
		if err := quota.Check(u.ID); err != nil {
			return newCompilationError(ErrCodeQuotaExceeded, u.ID, id, err)
		}

		op := n.Op()
		repl = g.Replace(n, repl)
		rw := ir.RewriteRecord{
			UnitID:        u.ID,
			Seq:           d.clock.Next(),
			Rule:          string(rule),
			NodeID:        id,
			Op:            op.String(),
			ReplacementID: repl.ID(),
			ReplacementOp: repl.Op().String(),
		}
		res.record(rw)
		if d.journal != nil {
			if err := d.journal.RecordRewrite(ctx, rw); err != nil {
				return newCompilationError(ErrCodeJournal, u.ID, id, err)
			}
		}
		d.logger.Debug("rewrite",
			"unit", u.ID,
			"seq", rw.Seq,
			"rule", rule.String(),
			"node", id,
			"replacement", repl.String(),
		)

		wl.EnqueueNodes([]*ir.Node{repl})
		wl.EnqueueNodes(repl.Usages())
		wl.EnqueueNodes(g.NewSince(mark))
	}
}

func (d *Driver) stampError(u *Unit, n *ir.Node, err error) error {
	switch {
	case errors.Is(err, ir.ErrEmptyStamp):
		return newCompilationError(ErrCodeStampConflict, u.ID, n.ID(), err)
	case errors.Is(err, stamp.ErrWidthMismatch), errors.Is(err, stamp.ErrNotInteger):
		return newCompilationError(ErrCodeUnsupportedInput, u.ID, n.ID(), err)
	default:
		return newCompilationError(ErrCodeUnsupportedInput, u.ID, n.ID(), fmt.Errorf("infer stamp: %w", err))
	}
}
