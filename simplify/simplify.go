// Package simplify specializes a compiled tape to a recorded set of
// min/max choices: every min/max node whose decision resolved to a single
// side gets replaced by that side directly, the DAG is rescheduled from
// the specialized root, and the survivors are re-lowered into a (usually
// much shorter) tape with a choice buffer sized to just what's left
// ambiguous (§4.7).
package simplify

import (
	"github.com/oisee/fidget/choice"
	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/regalloc"
	"github.com/oisee/fidget/schedule"
	"github.com/oisee/fidget/ssabuild"
)

// Simplify specializes root under ctx against marks (as recorded by an
// interval evaluation keyed by sched.ChoiceOf), reschedules the result
// from scratch with inlineThreshold, and re-runs SSA building and register
// allocation. The returned root is the specialized expression: re-running
// Simplify against it requires marks recomputed against the returned
// schedule's ChoiceOf, since choice indices are renumbered to cover only
// the decisions that remain ambiguous.
func Simplify(ctx *dag.Context, root dag.Node, sched *schedule.Result, marks *choice.Array, inlineThreshold, regLimit int) (tape *regalloc.Tape, newSched *schedule.Result, newRoot dag.Node, err error) {
	newRoot, err = specialize(ctx, root, sched.ChoiceOf, marks)
	if err != nil {
		return nil, nil, 0, err
	}

	newSched, err = schedule.Schedule(ctx, newRoot, inlineThreshold)
	if err != nil {
		return nil, nil, 0, err
	}

	ssa, err := ssabuild.Build(ctx, newRoot, newSched)
	if err != nil {
		return nil, nil, 0, err
	}
	tape, err = regalloc.Allocate(ssa, regLimit)
	if err != nil {
		return nil, nil, 0, err
	}
	return tape, newSched, newRoot, nil
}
