package testutil

// FixedUnitGenerator returns the same unit ID every time.
//
// Scenarios run one unit at a time, so a constant ID keeps journals and
// traces byte-identical between runs. engine.FixedGenerator instead hands
// out a sequence of IDs.
//
// Thread-safety: FixedUnitGenerator is stateless and safe for concurrent use.
type FixedUnitGenerator struct {
	id string
}

// NewFixedUnitGenerator creates a generator returning id. An empty id
// becomes "test-unit-default".
func NewFixedUnitGenerator(id string) *FixedUnitGenerator {
	if id == "" {
		id = "test-unit-default"
	}
	return &FixedUnitGenerator{id: id}
}

// Generate returns the fixed ID. Implements engine.UnitIDGenerator.
func (g *FixedUnitGenerator) Generate() string {
	return g.id
}
