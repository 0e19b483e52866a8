package eval

import (
	"fmt"

	"github.com/oisee/fidget/regalloc"
)

// Grad is a forward-mode dual number: a value paired with its partial
// derivatives with respect to x, y and z.
type Grad struct {
	V, DX, DY, DZ float32
}

func constGrad(v float32) Grad { return Grad{V: v} }

func negGrad(a Grad) Grad { return Grad{-a.V, -a.DX, -a.DY, -a.DZ} }

func absGrad(a Grad) Grad {
	if a.V < 0 {
		return negGrad(a)
	}
	return a
}

func recipGrad(a Grad) Grad {
	inv := 1 / a.V
	scale := -inv * inv
	return Grad{inv, a.DX * scale, a.DY * scale, a.DZ * scale}
}

func sqrtGrad(a Grad) Grad {
	v := sqrtF32(a.V)
	scale := float32(0.5) / v
	return Grad{v, a.DX * scale, a.DY * scale, a.DZ * scale}
}

func squareGrad(a Grad) Grad {
	scale := 2 * a.V
	return Grad{a.V * a.V, a.DX * scale, a.DY * scale, a.DZ * scale}
}

func addGrad(a, b Grad) Grad {
	return Grad{a.V + b.V, a.DX + b.DX, a.DY + b.DY, a.DZ + b.DZ}
}

func subGrad(a, b Grad) Grad {
	return Grad{a.V - b.V, a.DX - b.DX, a.DY - b.DY, a.DZ - b.DZ}
}

func mulGrad(a, b Grad) Grad {
	return Grad{
		a.V * b.V,
		a.DX*b.V + a.V*b.DX,
		a.DY*b.V + a.V*b.DY,
		a.DZ*b.V + a.V*b.DZ,
	}
}

func divGrad(a, b Grad) Grad {
	denom := b.V * b.V
	return Grad{
		a.V / b.V,
		(a.DX*b.V - a.V*b.DX) / denom,
		(a.DY*b.V - a.V*b.DY) / denom,
		(a.DZ*b.V - a.V*b.DZ) / denom,
	}
}

// minGrad and maxGrad propagate the full gradient of whichever operand's
// value wins; ties favor the left (a) operand. (The interval evaluator
// does not pick a side on a tie: it marks the choice Both.)
func minGrad(a, b Grad) Grad {
	if b.V < a.V {
		return b
	}
	return a
}

func maxGrad(a, b Grad) Grad {
	if b.V > a.V {
		return b
	}
	return a
}

// Gradient evaluates a tape at one (x, y, z) sample, producing the value
// and its gradient via forward-mode automatic differentiation.
type Gradient struct {
	tape *regalloc.Tape
	regs []Grad
	mem  []Grad
}

// NewGradient builds a gradient evaluator bound to tape.
func NewGradient(tape *regalloc.Tape) *Gradient {
	return &Gradient{
		tape: tape,
		regs: make([]Grad, tape.RegLimit),
		mem:  make([]Grad, tape.SlotCount-tape.RegLimit),
	}
}

// Eval runs the tape at (x, y, z) and returns the value plus gradient.
func (g *Gradient) Eval(x, y, z float32, vars map[string]float32) (Grad, error) {
	for _, op := range g.tape.Ops {
		switch op.Kind {
		case regalloc.KindInputX:
			g.regs[op.Out] = Grad{x, 1, 0, 0}
		case regalloc.KindInputY:
			g.regs[op.Out] = Grad{y, 0, 1, 0}
		case regalloc.KindInputZ:
			g.regs[op.Out] = Grad{z, 0, 0, 1}
		case regalloc.KindVarLoad:
			v, ok := vars[op.Var]
			if !ok {
				return Grad{}, fmt.Errorf("%w: %q", ErrMissingVar, op.Var)
			}
			g.regs[op.Out] = constGrad(v)
		case regalloc.KindCopyImm:
			g.regs[op.Out] = constGrad(op.Imm)

		case regalloc.KindNeg:
			g.regs[op.Out] = negGrad(g.regs[op.A])
		case regalloc.KindAbs:
			g.regs[op.Out] = absGrad(g.regs[op.A])
		case regalloc.KindRecip:
			g.regs[op.Out] = recipGrad(g.regs[op.A])
		case regalloc.KindSqrt:
			g.regs[op.Out] = sqrtGrad(g.regs[op.A])
		case regalloc.KindSquare:
			g.regs[op.Out] = squareGrad(g.regs[op.A])

		case regalloc.KindAdd:
			g.regs[op.Out] = addGrad(g.regs[op.A], g.regs[op.B])
		case regalloc.KindSub:
			g.regs[op.Out] = subGrad(g.regs[op.A], g.regs[op.B])
		case regalloc.KindMul:
			g.regs[op.Out] = mulGrad(g.regs[op.A], g.regs[op.B])
		case regalloc.KindDiv:
			g.regs[op.Out] = divGrad(g.regs[op.A], g.regs[op.B])
		case regalloc.KindMin:
			g.regs[op.Out] = minGrad(g.regs[op.A], g.regs[op.B])
		case regalloc.KindMax:
			g.regs[op.Out] = maxGrad(g.regs[op.A], g.regs[op.B])

		case regalloc.KindAddRegImm:
			g.regs[op.Out] = addGrad(g.regs[op.A], constGrad(op.Imm))
		case regalloc.KindSubImmReg:
			g.regs[op.Out] = subGrad(constGrad(op.Imm), g.regs[op.A])
		case regalloc.KindSubRegImm:
			g.regs[op.Out] = subGrad(g.regs[op.A], constGrad(op.Imm))
		case regalloc.KindMulRegImm:
			g.regs[op.Out] = mulGrad(g.regs[op.A], constGrad(op.Imm))
		case regalloc.KindDivRegImm:
			g.regs[op.Out] = divGrad(g.regs[op.A], constGrad(op.Imm))
		case regalloc.KindDivImmReg:
			g.regs[op.Out] = divGrad(constGrad(op.Imm), g.regs[op.A])
		case regalloc.KindMinRegImm:
			g.regs[op.Out] = minGrad(g.regs[op.A], constGrad(op.Imm))
		case regalloc.KindMaxRegImm:
			g.regs[op.Out] = maxGrad(g.regs[op.A], constGrad(op.Imm))

		case regalloc.KindLoad:
			g.regs[op.Out] = g.mem[op.Mem]
		case regalloc.KindStore:
			g.mem[op.Mem] = g.regs[op.A]
		case regalloc.KindSwap:
			g.regs[op.A], g.mem[op.Mem] = g.mem[op.Mem], g.regs[op.A]

		default:
			return Grad{}, fmt.Errorf("%w: %v", ErrBadTape, op.Kind)
		}
	}
	return g.regs[g.tape.OutputReg], nil
}
