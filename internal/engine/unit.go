package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/seanode/internal/ir"
)

// Unit is one compilation unit: a graph canonicalized independently of
// every other unit. A unit owns its graph; no two units may share one.
type Unit struct {
	ID    string
	Name  string
	Graph *ir.Graph
}

// UnitIDGenerator hands out compilation unit IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type UnitIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 unit IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the random source
// fails.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs for testing so that journals
// and traces are reproducible.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID. It panics once all IDs have
// been handed out.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// NewUnit wraps g in a unit with an ID from gen. A nil gen uses
// UUIDv7Generator.
func NewUnit(g *ir.Graph, gen UnitIDGenerator) *Unit {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &Unit{ID: gen.Generate(), Name: g.Name(), Graph: g}
}
