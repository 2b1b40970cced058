package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// DefaultBits is the width of parameters and literal-only nodes that do
// not name one.
const DefaultBits = 32

// GraphSpec is a parsed graph description, before validation.
type GraphSpec struct {
	Name    string
	Params  []ParamSpec
	Nodes   []NodeSpec
	Outputs []string
	Pos     token.Pos
}

// ParamSpec declares a parameter and its assumed range.
type ParamSpec struct {
	Name string
	Bits int
	// Min and Max default to the full range of Bits.
	Min, Max int64
	Pos      token.Pos
}

// NodeSpec declares one operation.
type NodeSpec struct {
	Name   string
	Op     string
	X, Y   Operand
	Bits   int // 0 unless given
	BCI    int
	HasBCI bool
	Method string
	Pos    token.Pos
}

func (n NodeSpec) operands() []Operand {
	if n.Y.IsSet() {
		return []Operand{n.X, n.Y}
	}
	return []Operand{n.X}
}

// Operand is a reference to a parameter or node by name, or an integer
// literal.
type Operand struct {
	Ref     string
	Literal int64
	literal bool
	set     bool
}

// Ref returns an operand naming a parameter or node.
func Ref(name string) Operand { return Operand{Ref: name, set: true} }

// Lit returns a literal operand.
func Lit(v int64) Operand { return Operand{Literal: v, literal: true, set: true} }

func (o Operand) IsSet() bool     { return o.set }
func (o Operand) IsLiteral() bool { return o.set && o.literal }
func (o Operand) IsRef() bool     { return o.set && !o.literal }

func (o Operand) String() string {
	if o.literal {
		return fmt.Sprintf("%d", o.Literal)
	}
	return o.Ref
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileGraph parses, validates and builds a graph description. The value
// is the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: div4: { ... }`)
//	g, err := CompileGraph(v.LookupPath(cue.ParsePath("graph.div4")))
//
// The first validation error is returned as a *CompileError.
func CompileGraph(v cue.Value) (*ir.Graph, error) {
	spec, err := ParseGraph(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(spec); len(errs) > 0 {
		first := errs[0]
		return nil, &CompileError{Field: first.Field, Message: first.Message, Pos: first.Pos}
	}
	return Build(spec)
}

// ParseGraph reads a graph description without checking references.
func ParseGraph(v cue.Value) (*GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	spec := &GraphSpec{Pos: v.Pos()}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.Params, err = parseParams(v); err != nil {
		return nil, err
	}
	if spec.Nodes, err = parseNodes(v); err != nil {
		return nil, err
	}

	outVal := v.LookupPath(cue.ParsePath("outputs"))
	if !outVal.Exists() {
		return nil, &CompileError{Field: "outputs", Message: "outputs is required", Pos: v.Pos()}
	}
	iter, err := outVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Outputs = append(spec.Outputs, name)
	}
	return spec, nil
}

func parseParams(v cue.Value) ([]ParamSpec, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil
	}
	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []ParamSpec
	for iter.Next() {
		pv := iter.Value()
		p := ParamSpec{Name: iter.Label(), Bits: DefaultBits, Pos: pv.Pos()}
		if bits, ok, err := optionalInt(pv, "bits"); err != nil {
			return nil, err
		} else if ok {
			p.Bits = int(bits)
		}
		p.Min, p.Max = stamp.MinValue(p.Bits), stamp.MaxValue(p.Bits)
		if lo, ok, err := optionalInt(pv, "min"); err != nil {
			return nil, err
		} else if ok {
			p.Min = lo
		}
		if hi, ok, err := optionalInt(pv, "max"); err != nil {
			return nil, err
		} else if ok {
			p.Max = hi
		}
		params = append(params, p)
	}
	return params, nil
}

func parseNodes(v cue.Value) ([]NodeSpec, error) {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, nil
	}
	iter, err := nodesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []NodeSpec
	for iter.Next() {
		nv := iter.Value()
		n := NodeSpec{Pos: nv.Pos()}
		if n.Name, err = requiredString(nv, "name"); err != nil {
			return nil, err
		}
		if n.Op, err = requiredString(nv, "op"); err != nil {
			return nil, err
		}
		if n.X, err = parseOperand(nv, "x"); err != nil {
			return nil, err
		}
		if n.Y, err = parseOperand(nv, "y"); err != nil {
			return nil, err
		}
		if bits, ok, err := optionalInt(nv, "bits"); err != nil {
			return nil, err
		} else if ok {
			n.Bits = int(bits)
		}
		if bci, ok, err := optionalInt(nv, "bci"); err != nil {
			return nil, err
		} else if ok {
			n.BCI, n.HasBCI = int(bci), true
		}
		if mv := nv.LookupPath(cue.ParsePath("method")); mv.Exists() {
			if n.Method, err = mv.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// parseOperand accepts a name or an integer literal. A missing field
// yields the unset operand.
func parseOperand(v cue.Value, field string) (Operand, error) {
	ov := v.LookupPath(cue.ParsePath(field))
	if !ov.Exists() {
		return Operand{}, nil
	}
	switch ov.IncompleteKind() {
	case cue.StringKind:
		s, err := ov.String()
		if err != nil {
			return Operand{}, formatCUEError(err)
		}
		return Ref(s), nil
	case cue.IntKind:
		i, err := ov.Int64()
		if err != nil {
			return Operand{}, formatCUEError(err)
		}
		return Lit(i), nil
	}
	return Operand{}, &CompileError{
		Field:   field,
		Message: "operand must be a name or an integer literal",
		Pos:     ov.Pos(),
	}
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, false, nil
	}
	i, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return i, true, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
