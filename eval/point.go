// Package eval implements the tape evaluator family (§4.6): Point,
// FloatSlice, Gradient and Interval, all walking the same regalloc.Tape op
// list with a per-kind switch dispatch, each carrying a different value
// type through the register file.
package eval

import (
	"fmt"

	"github.com/oisee/fidget/regalloc"
)

// Point evaluates a tape for a single (x, y, z) sample.
type Point struct {
	tape *regalloc.Tape
	regs []float32
	mem  []float32
}

// NewPoint builds a point evaluator bound to tape. The evaluator is not
// safe for concurrent use; build one per worker (§5).
func NewPoint(tape *regalloc.Tape) *Point {
	return &Point{
		tape: tape,
		regs: make([]float32, tape.RegLimit),
		mem:  make([]float32, tape.SlotCount-tape.RegLimit),
	}
}

// Eval runs the tape at (x, y, z) with the given variable bindings and
// returns the scalar result.
func (p *Point) Eval(x, y, z float32, vars map[string]float32) (float32, error) {
	for _, op := range p.tape.Ops {
		switch op.Kind {
		case regalloc.KindInputX:
			p.regs[op.Out] = x
		case regalloc.KindInputY:
			p.regs[op.Out] = y
		case regalloc.KindInputZ:
			p.regs[op.Out] = z
		case regalloc.KindVarLoad:
			v, ok := vars[op.Var]
			if !ok {
				return 0, fmt.Errorf("%w: %q", ErrMissingVar, op.Var)
			}
			p.regs[op.Out] = v
		case regalloc.KindCopyImm:
			p.regs[op.Out] = op.Imm

		case regalloc.KindNeg:
			p.regs[op.Out] = -p.regs[op.A]
		case regalloc.KindAbs:
			p.regs[op.Out] = absF32(p.regs[op.A])
		case regalloc.KindRecip:
			p.regs[op.Out] = 1 / p.regs[op.A]
		case regalloc.KindSqrt:
			p.regs[op.Out] = sqrtF32(p.regs[op.A])
		case regalloc.KindSquare:
			v := p.regs[op.A]
			p.regs[op.Out] = v * v

		case regalloc.KindAdd:
			p.regs[op.Out] = p.regs[op.A] + p.regs[op.B]
		case regalloc.KindSub:
			p.regs[op.Out] = p.regs[op.A] - p.regs[op.B]
		case regalloc.KindMul:
			p.regs[op.Out] = p.regs[op.A] * p.regs[op.B]
		case regalloc.KindDiv:
			p.regs[op.Out] = p.regs[op.A] / p.regs[op.B]
		case regalloc.KindMin:
			p.regs[op.Out] = minF32(p.regs[op.A], p.regs[op.B])
		case regalloc.KindMax:
			p.regs[op.Out] = maxF32(p.regs[op.A], p.regs[op.B])

		case regalloc.KindAddRegImm:
			p.regs[op.Out] = p.regs[op.A] + op.Imm
		case regalloc.KindSubImmReg:
			p.regs[op.Out] = op.Imm - p.regs[op.A]
		case regalloc.KindSubRegImm:
			p.regs[op.Out] = p.regs[op.A] - op.Imm
		case regalloc.KindMulRegImm:
			p.regs[op.Out] = p.regs[op.A] * op.Imm
		case regalloc.KindDivRegImm:
			p.regs[op.Out] = p.regs[op.A] / op.Imm
		case regalloc.KindDivImmReg:
			p.regs[op.Out] = op.Imm / p.regs[op.A]
		case regalloc.KindMinRegImm:
			p.regs[op.Out] = minF32(p.regs[op.A], op.Imm)
		case regalloc.KindMaxRegImm:
			p.regs[op.Out] = maxF32(p.regs[op.A], op.Imm)

		case regalloc.KindLoad:
			p.regs[op.Out] = p.mem[op.Mem]
		case regalloc.KindStore:
			p.mem[op.Mem] = p.regs[op.A]
		case regalloc.KindSwap:
			p.regs[op.A], p.mem[op.Mem] = p.mem[op.Mem], p.regs[op.A]

		default:
			return 0, fmt.Errorf("%w: %v", ErrBadTape, op.Kind)
		}
	}
	return p.regs[p.tape.OutputReg], nil
}
