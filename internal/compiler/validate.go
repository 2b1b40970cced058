package compiler

import (
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateName     = "E101" // parameter, node or output declared twice
	ErrUnknownOp         = "E102" // op is not an arithmetic operator
	ErrUndefinedOperand  = "E103" // operand names nothing
	ErrOperandArity      = "E104" // missing or extra operand
	ErrInvalidWidth      = "E105" // bits not one of 8, 16, 32, 64
	ErrInvalidRange      = "E106" // parameter range empty or outside its width
	ErrWidthMismatch     = "E107" // operands of different widths
	ErrStateOnFloating   = "E108" // bci on an operator that cannot trap
	ErrOperandCycle      = "E109" // nodes read each other
	ErrChainOrder        = "E110" // trapping node reads a later trapping node
	ErrNoOutputs         = "E111" // at least one output required
	ErrUndefinedOutput   = "E112" // output names nothing
	ErrLiteralOutOfRange = "E113" // literal does not fit its width
)

// ValidationError represents a graph description error.
type ValidationError struct {
	Field   string    `json:"field"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
	Line    int       `json:"line,omitempty"`
	Pos     token.Pos `json:"-"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

type validator struct {
	spec   *GraphSpec
	params map[string]*ParamSpec
	nodes  map[string]*NodeSpec
	index  map[string]int // declaration index of nodes
	widths map[string]int
	errs   []ValidationError
}

func (v *validator) add(code, field string, pos token.Pos, format string, args ...any) {
	e := ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code, Pos: pos}
	if pos.IsValid() {
		e.Line = pos.Line()
	}
	v.errs = append(v.errs, e)
}

// Validate checks a parsed description. Returns all errors found (does not
// fail fast), except that width and chain checks only run on descriptions
// whose references resolve without cycles.
func Validate(spec *GraphSpec) []ValidationError {
	v := &validator{
		spec:   spec,
		params: make(map[string]*ParamSpec),
		nodes:  make(map[string]*NodeSpec),
		index:  make(map[string]int),
		widths: make(map[string]int),
	}
	v.checkParams()
	v.checkNodes()
	v.checkOutputs()
	if len(v.errs) > 0 {
		return v.errs
	}

	order, cycles := orderNodes(spec)
	for _, c := range cycles {
		n := v.nodes[c.Path[0]]
		v.add(ErrOperandCycle, n.Name, n.Pos, "%v", cycleError(c))
	}
	if len(cycles) > 0 {
		return v.errs
	}

	for _, name := range order {
		v.checkWidths(v.nodes[name])
	}
	v.checkChainOrder()

	if len(v.errs) == 0 {
		return []ValidationError{}
	}
	return v.errs
}

func validWidth(bits int) bool {
	return bits == 8 || bits == 16 || bits == 32 || bits == 64
}

func (v *validator) checkParams() {
	for i := range v.spec.Params {
		p := &v.spec.Params[i]
		field := "params." + p.Name
		if _, dup := v.params[p.Name]; dup {
			v.add(ErrDuplicateName, field, p.Pos, "parameter %q declared twice", p.Name)
			continue
		}
		v.params[p.Name] = p
		if !validWidth(p.Bits) {
			v.add(ErrInvalidWidth, field+".bits", p.Pos, "width %d is not 8, 16, 32 or 64", p.Bits)
			continue
		}
		v.widths[p.Name] = p.Bits
		lo, hi := stamp.MinValue(p.Bits), stamp.MaxValue(p.Bits)
		switch {
		case p.Min > p.Max:
			v.add(ErrInvalidRange, field, p.Pos, "min %d exceeds max %d", p.Min, p.Max)
		case p.Min < lo || p.Max > hi:
			v.add(ErrInvalidRange, field, p.Pos, "[%d, %d] is outside i%d", p.Min, p.Max, p.Bits)
		}
	}
}

func (v *validator) checkNodes() {
	for i := range v.spec.Nodes {
		n := &v.spec.Nodes[i]
		field := "nodes." + n.Name
		if _, dup := v.nodes[n.Name]; dup || v.params[n.Name] != nil {
			v.add(ErrDuplicateName, field, n.Pos, "name %q declared twice", n.Name)
			continue
		}
		v.nodes[n.Name] = n
		v.index[n.Name] = i
	}

	for i := range v.spec.Nodes {
		n := &v.spec.Nodes[i]
		field := "nodes." + n.Name
		op, ok := ir.ParseOp(n.Op)
		if !ok || op == ir.OpConst || op == ir.OpParam {
			v.add(ErrUnknownOp, field+".op", n.Pos, "%q is not an arithmetic operator", n.Op)
			continue
		}
		if n.Bits != 0 && !validWidth(n.Bits) {
			v.add(ErrInvalidWidth, field+".bits", n.Pos, "width %d is not 8, 16, 32 or 64", n.Bits)
		}
		switch {
		case !n.X.IsSet():
			v.add(ErrOperandArity, field+".x", n.Pos, "%s needs operand x", op)
		case op == ir.OpNeg && n.Y.IsSet():
			v.add(ErrOperandArity, field+".y", n.Pos, "neg takes one operand")
		case op != ir.OpNeg && !n.Y.IsSet():
			v.add(ErrOperandArity, field+".y", n.Pos, "%s needs operand y", op)
		}
		if n.HasBCI && !op.IsFixed() {
			v.add(ErrStateOnFloating, field+".bci", n.Pos, "%s cannot trap and takes no bci", op)
		}
		for _, o := range n.operands() {
			if o.IsRef() && v.params[o.Ref] == nil && v.nodes[o.Ref] == nil {
				v.add(ErrUndefinedOperand, field, n.Pos, "operand %q is not a parameter or node", o.Ref)
			}
		}
	}
}

func (v *validator) checkOutputs() {
	if len(v.spec.Outputs) == 0 {
		v.add(ErrNoOutputs, "outputs", v.spec.Pos, "at least one output is required")
	}
	seen := make(map[string]bool)
	for _, name := range v.spec.Outputs {
		if seen[name] {
			v.add(ErrDuplicateName, "outputs", v.spec.Pos, "output %q listed twice", name)
		}
		seen[name] = true
		if v.params[name] == nil && v.nodes[name] == nil {
			v.add(ErrUndefinedOutput, "outputs", v.spec.Pos, "output %q is not a parameter or node", name)
		}
	}
}

// checkWidths records n's width. Operands must be visited first.
func (v *validator) checkWidths(n *NodeSpec) {
	field := "nodes." + n.Name
	op, _ := ir.ParseOp(n.Op)
	w := nodeWidth(op, n, v.widths)
	v.widths[n.Name] = w

	if n.Bits != 0 && n.Bits != w {
		v.add(ErrWidthMismatch, field+".bits", n.Pos, "bits %d, but operands are i%d", n.Bits, w)
	}
	if !op.IsShift() && n.Y.IsRef() && n.X.IsRef() && v.widths[n.X.Ref] != v.widths[n.Y.Ref] {
		v.add(ErrWidthMismatch, field, n.Pos, "%s of i%d and i%d", op, v.widths[n.X.Ref], v.widths[n.Y.Ref])
	}
	for i, o := range n.operands() {
		if !o.IsLiteral() {
			continue
		}
		lw := literalWidth(op, i, w)
		if !literalFits(o.Literal, lw) {
			v.add(ErrLiteralOutOfRange, field, n.Pos, "literal %d does not fit i%d", o.Literal, lw)
		}
	}
}

// checkChainOrder rejects a trapping node that reads, directly or through
// floating nodes, a trapping node declared after it.
func (v *validator) checkChainOrder() {
	for i, n := range v.spec.Nodes {
		op, _ := ir.ParseOp(n.Op)
		if !op.IsFixed() {
			continue
		}
		seen := make(map[string]bool)
		var walk func(name string)
		walk = func(name string) {
			dep := v.nodes[name]
			if dep == nil || seen[name] {
				return
			}
			seen[name] = true
			if depOp, _ := ir.ParseOp(dep.Op); depOp.IsFixed() {
				if v.index[name] > i {
					v.add(ErrChainOrder, "nodes."+n.Name, n.Pos, "reads %s, which executes later", name)
				}
				return
			}
			for _, o := range dep.operands() {
				if o.IsRef() {
					walk(o.Ref)
				}
			}
		}
		for _, o := range n.operands() {
			if o.IsRef() {
				walk(o.Ref)
			}
		}
	}
}

// nodeWidth is the width of the value a node computes: its first named
// operand's width (x for shifts), else its declared bits, else DefaultBits.
func nodeWidth(op ir.Op, n *NodeSpec, widths map[string]int) int {
	if n.X.IsRef() {
		return widths[n.X.Ref]
	}
	if !op.IsShift() && n.Y.IsRef() {
		return widths[n.Y.Ref]
	}
	if n.Bits != 0 {
		return n.Bits
	}
	return DefaultBits
}

// literalWidth is the width of literal operand i of a w-bit node. Shift
// amounts are i32.
func literalWidth(op ir.Op, i, w int) int {
	if op.IsShift() && i == 1 {
		return 32
	}
	return w
}

// literalFits accepts both signed and unsigned spellings of a w-bit value.
func literalFits(v int64, w int) bool {
	if w == 64 {
		return true
	}
	return v >= stamp.MinValue(w) && v <= int64(stamp.Mask(w))
}
