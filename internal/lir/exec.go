package lir

import (
	"fmt"

	"github.com/roach88/seanode/internal/ir"
	"github.com/roach88/seanode/internal/stamp"
)

// TrapError reports a division by zero while executing a program.
type TrapError struct {
	PC    int
	Op    ir.Op
	State *ir.FrameState
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap: %s by zero at pc %d (%s)", e.Op, e.PC, e.State)
}

// Exec runs p with the given parameter values and returns its results.
func Exec(p *Program, args map[string]int64) (map[string]int64, error) {
	regs := make([]int64, p.Registers+1)
	for pc, in := range p.Instrs {
		switch in.Op {
		case ir.OpConst:
			regs[in.Dst] = in.Value
		case ir.OpParam:
			v, ok := args[in.Name]
			if !ok {
				return nil, fmt.Errorf("lir: no value for parameter %q", in.Name)
			}
			regs[in.Dst] = stamp.SignExtend(v, in.Bits)
		case ir.OpNeg:
			regs[in.Dst] = stamp.Negate(regs[in.Args[0]], in.Bits)
		default:
			bop, ok := in.Op.Binary()
			if !ok || len(in.Args) != 2 {
				return nil, fmt.Errorf("lir: malformed instruction at pc %d: %s", pc, in)
			}
			v, ok := stamp.Apply(bop, regs[in.Args[0]], regs[in.Args[1]], in.Bits)
			if !ok {
				return nil, &TrapError{PC: pc, Op: in.Op, State: in.State}
			}
			regs[in.Dst] = v
		}
	}

	out := make(map[string]int64, len(p.Returns))
	for _, r := range p.Returns {
		out[r.Name] = regs[r.Reg]
	}
	return out, nil
}
