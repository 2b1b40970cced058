// Package lir is a reference backend: straight-line instructions over
// virtual registers, produced by lowering a graph.
//
// Text form:
//
//	program div4
//	  r1 = param.i32 x
//	  r2 = const.i32 4
//	  r3 = div.i32 r1, r2 [bci=3]
//	  ret q r3
package lir

import (
	"fmt"
	"strings"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/lower"
)

// Instr is one instruction. Dst is the register it defines.
type Instr struct {
	Op    ir.Op
	Dst   int
	Bits  int
	Args  []int
	Value int64  // const
	Name  string // param
	State *ir.FrameState
}

func (in Instr) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "r%d = %s.i%d", in.Dst, in.Op, in.Bits)
	switch in.Op {
	case ir.OpConst:
		fmt.Fprintf(&b, " %d", in.Value)
	case ir.OpParam:
		b.WriteString(" " + in.Name)
	default:
		for i, a := range in.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, " r%d", a)
		}
	}
	if in.State != nil {
		fmt.Fprintf(&b, " [%s]", in.State)
	}
	return b.String()
}

// Return names the register holding a program result.
type Return struct {
	Name string
	Reg  int
}

// Program is a lowered graph.
type Program struct {
	Name    string
	Instrs  []Instr
	Returns []Return
	// Registers is the number of registers defined; they are numbered from 1.
	Registers int
}

// String renders p in text form.
func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "program %s\n", p.Name)
	for _, in := range p.Instrs {
		fmt.Fprintf(&b, "  %s\n", in)
	}
	for _, r := range p.Returns {
		fmt.Fprintf(&b, "  ret %s r%d\n", r.Name, r.Reg)
	}
	return b.String()
}

// Count returns how many instructions of op p contains.
func (p *Program) Count(op ir.Op) int {
	n := 0
	for _, in := range p.Instrs {
		if in.Op == op {
			n++
		}
	}
	return n
}

// Emitter builds a Program. It implements lower.Backend.
type Emitter struct {
	prog *Program
}

var _ lower.Backend = (*Emitter)(nil)

// NewEmitter returns an Emitter for a program called name.
func NewEmitter(name string) *Emitter {
	return &Emitter{prog: &Program{Name: name}}
}

// Program returns the program emitted so far.
func (e *Emitter) Program() *Program { return e.prog }

func (e *Emitter) emit(in Instr) lower.Value {
	e.prog.Registers++
	in.Dst = e.prog.Registers
	e.prog.Instrs = append(e.prog.Instrs, in)
	return lower.Value{Reg: in.Dst, Bits: in.Bits}
}

func (e *Emitter) binary(op ir.Op, x, y lower.Value, state *ir.FrameState) lower.Value {
	return e.emit(Instr{Op: op, Bits: x.Bits, Args: []int{x.Reg, y.Reg}, State: state})
}

func (e *Emitter) EmitConst(bits int, v int64) lower.Value {
	return e.emit(Instr{Op: ir.OpConst, Bits: bits, Value: v})
}

func (e *Emitter) EmitParam(name string, bits int) lower.Value {
	return e.emit(Instr{Op: ir.OpParam, Bits: bits, Name: name})
}

func (e *Emitter) EmitNeg(x lower.Value) lower.Value {
	return e.emit(Instr{Op: ir.OpNeg, Bits: x.Bits, Args: []int{x.Reg}})
}

func (e *Emitter) EmitAdd(x, y lower.Value) lower.Value  { return e.binary(ir.OpAdd, x, y, nil) }
func (e *Emitter) EmitSub(x, y lower.Value) lower.Value  { return e.binary(ir.OpSub, x, y, nil) }
func (e *Emitter) EmitAnd(x, y lower.Value) lower.Value  { return e.binary(ir.OpAnd, x, y, nil) }
func (e *Emitter) EmitShl(x, y lower.Value) lower.Value  { return e.binary(ir.OpShl, x, y, nil) }
func (e *Emitter) EmitShr(x, y lower.Value) lower.Value  { return e.binary(ir.OpShr, x, y, nil) }
func (e *Emitter) EmitUShr(x, y lower.Value) lower.Value { return e.binary(ir.OpUShr, x, y, nil) }

func (e *Emitter) EmitDiv(x, y lower.Value, state *ir.FrameState) lower.Value {
	return e.binary(ir.OpDiv, x, y, state)
}

func (e *Emitter) EmitRem(x, y lower.Value, state *ir.FrameState) lower.Value {
	return e.binary(ir.OpRem, x, y, state)
}

func (e *Emitter) EmitUDiv(x, y lower.Value, state *ir.FrameState) lower.Value {
	return e.binary(ir.OpUDiv, x, y, state)
}

func (e *Emitter) EmitURem(x, y lower.Value, state *ir.FrameState) lower.Value {
	return e.binary(ir.OpURem, x, y, state)
}

func (e *Emitter) EmitReturn(name string, v lower.Value) {
	e.prog.Returns = append(e.prog.Returns, Return{Name: name, Reg: v.Reg})
}

// Compile lowers g into a new Program.
func Compile(g *ir.Graph) (*Program, error) {
	e := NewEmitter(g.Name())
	if err := lower.Lower(g, e); err != nil {
		return nil, err
	}
	return e.Program(), nil
}
