package eval

import (
	"fmt"
	"math"

	"github.com/oisee/fidget/choice"
	"github.com/oisee/fidget/regalloc"
)

// Interval is a closed range [Lo, Hi].
type Interval struct {
	Lo, Hi float32
}

func constInterval(v float32) Interval { return Interval{v, v} }

func negInterval(a Interval) Interval { return Interval{-a.Hi, -a.Lo} }

func absInterval(a Interval) Interval {
	switch {
	case a.Lo >= 0:
		return a
	case a.Hi <= 0:
		return Interval{-a.Hi, -a.Lo}
	default:
		return Interval{0, maxF32(-a.Lo, a.Hi)}
	}
}

// recipInterval returns NaN when the domain straddles zero: 1/x diverges
// there, and the result is unusable at this box rather than merely wide.
func recipInterval(a Interval) Interval {
	if a.Lo <= 0 && a.Hi >= 0 {
		return Interval{float32(math.NaN()), float32(math.NaN())}
	}
	return Interval{1 / a.Hi, 1 / a.Lo}
}

// sqrtInterval clamps a negative lower bound to 0 rather than propagating
// NaN: an interval that dips slightly below zero from floating-point slop
// still yields a finite, if slightly optimistic, bound (§8 E4). An entirely
// negative interval (Hi < 0) yields [NaN, NaN].
func sqrtInterval(a Interval) Interval {
	if a.Hi < 0 {
		return Interval{float32(math.NaN()), float32(math.NaN())}
	}
	lo := a.Lo
	if lo < 0 {
		lo = 0
	}
	return Interval{sqrtF32(lo), sqrtF32(a.Hi)}
}

func squareInterval(a Interval) Interval {
	switch {
	case a.Lo >= 0:
		return Interval{a.Lo * a.Lo, a.Hi * a.Hi}
	case a.Hi <= 0:
		return Interval{a.Hi * a.Hi, a.Lo * a.Lo}
	default:
		return Interval{0, maxF32(a.Lo*a.Lo, a.Hi*a.Hi)}
	}
}

func addInterval(a, b Interval) Interval { return Interval{a.Lo + b.Lo, a.Hi + b.Hi} }
func subInterval(a, b Interval) Interval { return Interval{a.Lo - b.Hi, a.Hi - b.Lo} }

func mulInterval(a, b Interval) Interval {
	p1, p2, p3, p4 := a.Lo*b.Lo, a.Lo*b.Hi, a.Hi*b.Lo, a.Hi*b.Hi
	lo := minF32(minF32(p1, p2), minF32(p3, p4))
	hi := maxF32(maxF32(p1, p2), maxF32(p3, p4))
	return Interval{lo, hi}
}

func divInterval(a, b Interval) Interval { return mulInterval(a, recipInterval(b)) }

// minInterval returns the tighter of the two intervals (and which side, if
// either, unambiguously bounds the result) so the caller can record a
// choice mark.
func minInterval(a, b Interval) (result Interval, tookLeft, tookRight bool) {
	switch {
	case a.Hi < b.Lo:
		return a, true, false
	case b.Hi < a.Lo:
		return b, false, true
	default:
		return Interval{minF32(a.Lo, b.Lo), minF32(a.Hi, b.Hi)}, true, true
	}
}

func maxInterval(a, b Interval) (result Interval, tookLeft, tookRight bool) {
	switch {
	case a.Lo > b.Hi:
		return a, true, false
	case b.Lo > a.Hi:
		return b, false, true
	default:
		return Interval{maxF32(a.Lo, b.Lo), maxF32(a.Hi, b.Hi)}, true, true
	}
}

// IntervalEval evaluates a tape over an axis-aligned box, recording which
// side of every min/max the box resolved to in a choice.Array (§4.5, §4.6).
type IntervalEval struct {
	tape *regalloc.Tape
	regs []Interval
	mem  []Interval
}

// NewInterval builds an interval evaluator bound to tape.
func NewInterval(tape *regalloc.Tape) *IntervalEval {
	return &IntervalEval{
		tape: tape,
		regs: make([]Interval, tape.RegLimit),
		mem:  make([]Interval, tape.SlotCount-tape.RegLimit),
	}
}

// Eval evaluates the tape over the box [x.Lo,x.Hi]x[y.Lo,y.Hi]x[z.Lo,z.Hi],
// recording every min/max decision into marks (which must be sized for
// tape.ChoiceCount; pass nil to skip recording).
func (e *IntervalEval) Eval(x, y, z Interval, vars map[string]Interval, marks *choice.Array) (Interval, error) {
	for _, op := range e.tape.Ops {
		switch op.Kind {
		case regalloc.KindInputX:
			e.regs[op.Out] = x
		case regalloc.KindInputY:
			e.regs[op.Out] = y
		case regalloc.KindInputZ:
			e.regs[op.Out] = z
		case regalloc.KindVarLoad:
			v, ok := vars[op.Var]
			if !ok {
				return Interval{}, fmt.Errorf("%w: %q", ErrMissingVar, op.Var)
			}
			e.regs[op.Out] = v
		case regalloc.KindCopyImm:
			e.regs[op.Out] = constInterval(op.Imm)

		case regalloc.KindNeg:
			e.regs[op.Out] = negInterval(e.regs[op.A])
		case regalloc.KindAbs:
			e.regs[op.Out] = absInterval(e.regs[op.A])
		case regalloc.KindRecip:
			e.regs[op.Out] = recipInterval(e.regs[op.A])
		case regalloc.KindSqrt:
			e.regs[op.Out] = sqrtInterval(e.regs[op.A])
		case regalloc.KindSquare:
			e.regs[op.Out] = squareInterval(e.regs[op.A])

		case regalloc.KindAdd:
			e.regs[op.Out] = addInterval(e.regs[op.A], e.regs[op.B])
		case regalloc.KindSub:
			e.regs[op.Out] = subInterval(e.regs[op.A], e.regs[op.B])
		case regalloc.KindMul:
			e.regs[op.Out] = mulInterval(e.regs[op.A], e.regs[op.B])
		case regalloc.KindDiv:
			e.regs[op.Out] = divInterval(e.regs[op.A], e.regs[op.B])
		case regalloc.KindMin:
			e.evalMin(op, e.regs[op.A], e.regs[op.B], marks)
		case regalloc.KindMax:
			e.evalMax(op, e.regs[op.A], e.regs[op.B], marks)

		case regalloc.KindAddRegImm:
			e.regs[op.Out] = addInterval(e.regs[op.A], constInterval(op.Imm))
		case regalloc.KindSubImmReg:
			e.regs[op.Out] = subInterval(constInterval(op.Imm), e.regs[op.A])
		case regalloc.KindSubRegImm:
			e.regs[op.Out] = subInterval(e.regs[op.A], constInterval(op.Imm))
		case regalloc.KindMulRegImm:
			e.regs[op.Out] = mulInterval(e.regs[op.A], constInterval(op.Imm))
		case regalloc.KindDivRegImm:
			e.regs[op.Out] = divInterval(e.regs[op.A], constInterval(op.Imm))
		case regalloc.KindDivImmReg:
			e.regs[op.Out] = divInterval(constInterval(op.Imm), e.regs[op.A])
		case regalloc.KindMinRegImm:
			e.evalMin(op, e.regs[op.A], constInterval(op.Imm), marks)
		case regalloc.KindMaxRegImm:
			e.evalMax(op, e.regs[op.A], constInterval(op.Imm), marks)

		case regalloc.KindLoad:
			e.regs[op.Out] = e.mem[op.Mem]
		case regalloc.KindStore:
			e.mem[op.Mem] = e.regs[op.A]
		case regalloc.KindSwap:
			e.regs[op.A], e.mem[op.Mem] = e.mem[op.Mem], e.regs[op.A]

		default:
			return Interval{}, fmt.Errorf("%w: %v", ErrBadTape, op.Kind)
		}
	}
	return e.regs[e.tape.OutputReg], nil
}

func (e *IntervalEval) evalMin(op regalloc.RegOp, a, b Interval, marks *choice.Array) {
	result, left, right := minInterval(a, b)
	e.regs[op.Out] = result
	e.recordChoice(op, left, right, marks)
}

func (e *IntervalEval) evalMax(op regalloc.RegOp, a, b Interval, marks *choice.Array) {
	result, left, right := maxInterval(a, b)
	e.regs[op.Out] = result
	e.recordChoice(op, left, right, marks)
}

func (e *IntervalEval) recordChoice(op regalloc.RegOp, left, right bool, marks *choice.Array) {
	if marks == nil || !op.HasChoice {
		return
	}
	switch {
	case left && right:
		marks.MarkBoth(op.Choice)
	case left:
		marks.MarkLeft(op.Choice)
		marks.Simplify = true
	case right:
		marks.MarkRight(op.Choice)
		marks.Simplify = true
	}
}
