package eval

import (
	"fmt"

	"github.com/oisee/fidget/regalloc"
)

// FloatSlice evaluates a tape over many samples at once: each register
// becomes a float32 slice and every op runs its inner loop once per
// sample, amortizing the tape-walk overhead the way a tile renderer wants.
type FloatSlice struct {
	tape *regalloc.Tape
	regs [][]float32
	mem  [][]float32
}

// NewFloatSlice builds a slice evaluator bound to tape, sized for at most
// cap samples per Eval call.
func NewFloatSlice(tape *regalloc.Tape, capacity int) *FloatSlice {
	s := &FloatSlice{tape: tape}
	s.regs = make([][]float32, tape.RegLimit)
	for i := range s.regs {
		s.regs[i] = make([]float32, capacity)
	}
	memSlots := tape.SlotCount - tape.RegLimit
	s.mem = make([][]float32, memSlots)
	for i := range s.mem {
		s.mem[i] = make([]float32, capacity)
	}
	return s
}

// Eval evaluates the tape at each (xs[i], ys[i], zs[i]) and returns the
// per-sample results. All three slices, and every entry of vars, must have
// the same length, and that length must not exceed the evaluator's cap.
func (s *FloatSlice) Eval(xs, ys, zs []float32, vars map[string][]float32) ([]float32, error) {
	n := len(xs)
	if len(ys) != n || len(zs) != n {
		return nil, fmt.Errorf("eval: xs/ys/zs length mismatch (%d/%d/%d)", n, len(ys), len(zs))
	}
	if n > cap(s.regs[0]) {
		return nil, fmt.Errorf("eval: %d samples exceeds evaluator capacity %d", n, cap(s.regs[0]))
	}

	for _, op := range s.tape.Ops {
		switch op.Kind {
		case regalloc.KindInputX:
			copy(s.regs[op.Out][:n], xs)
		case regalloc.KindInputY:
			copy(s.regs[op.Out][:n], ys)
		case regalloc.KindInputZ:
			copy(s.regs[op.Out][:n], zs)
		case regalloc.KindVarLoad:
			v, ok := vars[op.Var]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingVar, op.Var)
			}
			if len(v) != n {
				return nil, fmt.Errorf("eval: variable %q length %d != %d", op.Var, len(v), n)
			}
			copy(s.regs[op.Out][:n], v)
		case regalloc.KindCopyImm:
			out := s.regs[op.Out]
			for i := 0; i < n; i++ {
				out[i] = op.Imm
			}

		case regalloc.KindNeg:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = -a[i]
			}
		case regalloc.KindAbs:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = absF32(a[i])
			}
		case regalloc.KindRecip:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = 1 / a[i]
			}
		case regalloc.KindSqrt:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = sqrtF32(a[i])
			}
		case regalloc.KindSquare:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = a[i] * a[i]
			}

		case regalloc.KindAdd:
			out, a, b := s.regs[op.Out], s.regs[op.A], s.regs[op.B]
			for i := 0; i < n; i++ {
				out[i] = a[i] + b[i]
			}
		case regalloc.KindSub:
			out, a, b := s.regs[op.Out], s.regs[op.A], s.regs[op.B]
			for i := 0; i < n; i++ {
				out[i] = a[i] - b[i]
			}
		case regalloc.KindMul:
			out, a, b := s.regs[op.Out], s.regs[op.A], s.regs[op.B]
			for i := 0; i < n; i++ {
				out[i] = a[i] * b[i]
			}
		case regalloc.KindDiv:
			out, a, b := s.regs[op.Out], s.regs[op.A], s.regs[op.B]
			for i := 0; i < n; i++ {
				out[i] = a[i] / b[i]
			}
		case regalloc.KindMin:
			out, a, b := s.regs[op.Out], s.regs[op.A], s.regs[op.B]
			for i := 0; i < n; i++ {
				out[i] = minF32(a[i], b[i])
			}
		case regalloc.KindMax:
			out, a, b := s.regs[op.Out], s.regs[op.A], s.regs[op.B]
			for i := 0; i < n; i++ {
				out[i] = maxF32(a[i], b[i])
			}

		case regalloc.KindAddRegImm:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = a[i] + op.Imm
			}
		case regalloc.KindSubImmReg:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = op.Imm - a[i]
			}
		case regalloc.KindSubRegImm:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = a[i] - op.Imm
			}
		case regalloc.KindMulRegImm:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = a[i] * op.Imm
			}
		case regalloc.KindDivRegImm:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = a[i] / op.Imm
			}
		case regalloc.KindDivImmReg:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = op.Imm / a[i]
			}
		case regalloc.KindMinRegImm:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = minF32(a[i], op.Imm)
			}
		case regalloc.KindMaxRegImm:
			out, a := s.regs[op.Out], s.regs[op.A]
			for i := 0; i < n; i++ {
				out[i] = maxF32(a[i], op.Imm)
			}

		case regalloc.KindLoad:
			copy(s.regs[op.Out][:n], s.mem[op.Mem][:n])
		case regalloc.KindStore:
			copy(s.mem[op.Mem][:n], s.regs[op.A][:n])
		case regalloc.KindSwap:
			for i := 0; i < n; i++ {
				s.regs[op.A][i], s.mem[op.Mem][i] = s.mem[op.Mem][i], s.regs[op.A][i]
			}

		default:
			return nil, fmt.Errorf("%w: %v", ErrBadTape, op.Kind)
		}
	}

	out := make([]float32, n)
	copy(out, s.regs[s.tape.OutputReg][:n])
	return out, nil
}
