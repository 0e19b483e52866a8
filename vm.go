// Package vm is the root package tying the compiler pipeline (dag ->
// schedule -> ssabuild -> regalloc) to the evaluator family and the tape
// simplifier, matching the external ABI a renderer or mesher drives
// (§4.8, §6).
package vm

import (
	"fmt"

	"github.com/oisee/fidget/choice"
	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/eval"
	"github.com/oisee/fidget/regalloc"
	"github.com/oisee/fidget/schedule"
	"github.com/oisee/fidget/simplify"
	"github.com/oisee/fidget/ssabuild"
)

// DefaultRegLimit is the register budget used when a Family doesn't
// override it (spec §6).
const DefaultRegLimit = 24

// Grad and Interval1 re-export the evaluator family's value types at the
// ABI boundary.
type Grad = eval.Grad
type Interval1 = eval.Interval

// Family ties together the register budget and the evaluator family a
// compiled Tape is built for, mirroring how search.Config/gpu.SearchConfig
// bundle tunables for search.Run/gpu.SearchGPU in the teacher.
type Family interface {
	RegLimit() int
}

// DefaultFamily is the zero-configuration Family: REG_LIMIT defaults to
// DefaultRegLimit unless Limit is set.
type DefaultFamily struct {
	Limit int
}

// RegLimit implements Family.
func (f DefaultFamily) RegLimit() int {
	if f.Limit == 0 {
		return DefaultRegLimit
	}
	return f.Limit
}

// Tape is a compiled, register-allocated shape plus the scheduling
// context Simplify needs to re-derive a specialized tape.
type Tape struct {
	reg   *regalloc.Tape
	ctx   *dag.Context
	root  dag.Node
	sched *schedule.Result
}

// OpCount reports how many register ops the tape executes.
func (t *Tape) OpCount() int { return len(t.reg.Ops) }

// ChoiceCount reports how many min/max decisions the tape can record.
func (t *Tape) ChoiceCount() int { return t.reg.ChoiceCount }

// SlotCount reports the register-plus-memory footprint the tape needs.
func (t *Tape) SlotCount() int { return t.reg.SlotCount }

// Compile runs the full pipeline — scheduling, SSA lowering and register
// allocation — over ctx/root for the given family, producing a tape ready
// for evaluation.
func Compile(ctx *dag.Context, root dag.Node, family Family) (*Tape, error) {
	limit := family.RegLimit()
	if limit < regalloc.MinRegisterLimit {
		return nil, fmt.Errorf("%w: %d", regalloc.ErrBadRegisterLimit, limit)
	}

	sched, err := schedule.Schedule(ctx, root, schedule.DefaultInlineThreshold)
	if err != nil {
		return nil, err
	}
	ssa, err := ssabuild.Build(ctx, root, sched)
	if err != nil {
		return nil, err
	}
	reg, err := regalloc.Allocate(ssa, limit)
	if err != nil {
		return nil, err
	}

	return &Tape{reg: reg, ctx: ctx, root: root, sched: sched}, nil
}

// Simplify specializes t to a previously recorded set of min/max choices
// (as exported by Evaluator.Interval's []byte return): every min/max that
// resolved to one side is replaced by that operand, and the specialized
// expression is rescheduled, SSA-lowered and register-allocated from
// scratch. changed reports whether specialization produced a different
// root node.
func Simplify(t *Tape, choices []byte) (result *Tape, changed bool, err error) {
	marks := choice.FromBytes(choices)
	reg, newSched, newRoot, err := simplify.Simplify(t.ctx, t.root, t.sched, marks, schedule.DefaultInlineThreshold, t.reg.RegLimit)
	if err != nil {
		return nil, false, err
	}
	changed = newRoot != t.root
	return &Tape{reg: reg, ctx: t.ctx, root: newRoot, sched: newSched}, changed, nil
}

// Evaluator binds a Tape to one set of per-kind evaluator instances. Not
// safe for concurrent use — build one per worker (§5).
type Evaluator struct {
	tape     *Tape
	point    *eval.Point
	gradient *eval.Gradient
	interval *eval.IntervalEval
	slice    *eval.FloatSlice
	sliceCap int
}

// NewEvaluator builds an evaluator bound to t.
func NewEvaluator(t *Tape) *Evaluator {
	return &Evaluator{
		tape:     t,
		point:    eval.NewPoint(t.reg),
		gradient: eval.NewGradient(t.reg),
		interval: eval.NewInterval(t.reg),
	}
}

// Point evaluates the tape at one sample.
func (e *Evaluator) Point(x, y, z float32, vars map[string]float32) (float32, error) {
	return e.point.Eval(x, y, z, vars)
}

// Slice evaluates the tape over many samples at once.
func (e *Evaluator) Slice(xs, ys, zs []float32, vars map[string]float32) ([]float32, error) {
	n := len(xs)
	if e.slice == nil || n > e.sliceCap {
		e.slice = eval.NewFloatSlice(e.tape.reg, n)
		e.sliceCap = n
	}
	sliceVars := make(map[string][]float32, len(vars))
	for k, v := range vars {
		buf := make([]float32, n)
		for i := range buf {
			buf[i] = v
		}
		sliceVars[k] = buf
	}
	return e.slice.Eval(xs, ys, zs, sliceVars)
}

// Gradient evaluates the tape's value and forward-mode gradient at one sample.
func (e *Evaluator) Gradient(x, y, z float32, vars map[string]float32) (Grad, error) {
	return e.gradient.Eval(x, y, z, vars)
}

// Interval evaluates the tape over a box, recording every min/max decision.
// The returned []byte is the choice array's raw bytes, suitable for
// Simplify; simplify reports whether any choice resolved unambiguously
// (Left-only or Right-only) — if false, every decision stayed Both and a
// Simplify call would change nothing, so the caller should reuse the
// existing tape (spec §4.5).
func (e *Evaluator) Interval(x, y, z Interval1, vars map[string]float32) (result Interval1, choices []byte, simplify bool, err error) {
	ivVars := make(map[string]eval.Interval, len(vars))
	for k, v := range vars {
		ivVars[k] = eval.Interval{Lo: v, Hi: v}
	}
	marks := choice.New(e.tape.ChoiceCount())
	result, err = e.interval.Eval(x, y, z, ivVars, marks)
	if err != nil {
		return Interval1{}, nil, false, err
	}
	return result, marks.Bytes(), marks.Simplify, nil
}
