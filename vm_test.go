package vm

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/oisee/fidget/dag"
)

type VMSuite struct {
	suite.Suite
	ctx *dag.Context
}

func (s *VMSuite) SetupTest() {
	s.ctx = dag.NewContext()
}

func (s *VMSuite) minXY() (dag.Node, dag.Node, dag.Node) {
	x := s.ctx.X()
	y := s.ctx.Y()
	root, err := s.ctx.Binary(dag.OpMin, x, y)
	s.Require().NoError(err)
	return root, x, y
}

// Property 1: a degenerate (point) interval's result equals the point
// evaluator's result at that same point, for both a leaf and a min.
func (s *VMSuite) TestPointAndDegenerateIntervalAgree() {
	root, _, _ := s.minXY()
	tape, err := Compile(s.ctx, root, DefaultFamily{})
	s.Require().NoError(err)
	ev := NewEvaluator(tape)

	point, err := ev.Point(0.3, 0.7, 0, nil)
	s.Require().NoError(err)

	iv, _, _, err := ev.Interval(
		Interval1{Lo: 0.3, Hi: 0.3}, Interval1{Lo: 0.7, Hi: 0.7}, Interval1{}, nil,
	)
	s.Require().NoError(err)
	s.Equal(point, iv.Lo, "degenerate interval lower bound must equal the point result")
	s.Equal(point, iv.Hi, "degenerate interval upper bound must equal the point result")
}

// Property 2: every point in the region used to derive the choices
// evaluates identically on the simplified tape and the original.
func (s *VMSuite) TestSimplifyPreservesValuesOverRegion() {
	root, _, _ := s.minXY()
	tape, err := Compile(s.ctx, root, DefaultFamily{})
	s.Require().NoError(err)
	ev := NewEvaluator(tape)

	_, choices, _, err := ev.Interval(
		Interval1{Lo: -2, Hi: -1}, Interval1{Lo: 5, Hi: 6}, Interval1{}, nil,
	)
	s.Require().NoError(err)

	simplified, changed, err := Simplify(tape, choices)
	s.Require().NoError(err)
	s.True(changed, "x always wins min(x,y) here, so the tape must specialize")

	simplifiedEv := NewEvaluator(simplified)
	for _, xv := range []float32{-2, -1.5, -1} {
		want, err := ev.Point(xv, 5.5, 0, nil)
		s.Require().NoError(err)
		got, err := simplifiedEv.Point(xv, 5.5, 0, nil)
		s.Require().NoError(err)
		s.Equal(want, got, "x=%v", xv)
	}
}

// Property 3: re-simplifying against choices recomputed on the simplified
// tape, over the same region, is a no-op (nothing left to collapse).
func (s *VMSuite) TestSimplifyIsIdempotentOverRegion() {
	root, _, _ := s.minXY()
	tape, err := Compile(s.ctx, root, DefaultFamily{})
	s.Require().NoError(err)
	ev := NewEvaluator(tape)

	lo, hi := Interval1{Lo: -2, Hi: -1}, Interval1{Lo: 5, Hi: 6}
	_, choices, _, err := ev.Interval(lo, hi, Interval1{}, nil)
	s.Require().NoError(err)

	once, _, err := Simplify(tape, choices)
	s.Require().NoError(err)

	onceEv := NewEvaluator(once)
	_, onceChoices, _, err := onceEv.Interval(lo, hi, Interval1{}, nil)
	s.Require().NoError(err)

	twice, changed, err := Simplify(once, onceChoices)
	s.Require().NoError(err)
	s.False(changed, "nothing left to collapse once x alone survives")
	s.Equal(once.OpCount(), twice.OpCount())
	s.Equal(once.ChoiceCount(), twice.ChoiceCount())
}

// Property 6: a simplified tape's choice count equals exactly the number
// of choices that stayed ambiguous (Both), whether that's zero (fully
// resolved) or the full original count (still straddling).
func (s *VMSuite) TestChoiceCountConservation() {
	root, _, _ := s.minXY()
	tape, err := Compile(s.ctx, root, DefaultFamily{})
	s.Require().NoError(err)
	s.Require().Equal(1, tape.ChoiceCount())
	ev := NewEvaluator(tape)

	resolved, choices, simplify, err := ev.Interval(
		Interval1{Lo: -2, Hi: -1}, Interval1{Lo: 5, Hi: 6}, Interval1{}, nil,
	)
	s.Require().NoError(err)
	s.True(simplify, "the single choice resolved to one side")
	_ = resolved
	resolvedTape, _, err := Simplify(tape, choices)
	s.Require().NoError(err)
	s.Equal(0, resolvedTape.ChoiceCount(), "the single choice resolved to one side, so none remain")

	_, straddling, simplify2, err := ev.Interval(
		Interval1{Lo: -1, Hi: 1}, Interval1{Lo: -1, Hi: 1}, Interval1{}, nil,
	)
	s.Require().NoError(err)
	s.False(simplify2, "the choice straddled both sides, so there is nothing to simplify")
	straddlingTape, changed, err := Simplify(tape, straddling)
	s.Require().NoError(err)
	s.False(changed)
	s.Equal(1, straddlingTape.ChoiceCount(), "the choice stayed ambiguous, so it must still be counted")
}

// Property 7: compiling the same (context, root) twice under the same
// REG_LIMIT produces byte-identical tapes.
func (s *VMSuite) TestCompileIsDeterministic() {
	root, _, _ := s.minXY()
	first, err := Compile(s.ctx, root, DefaultFamily{Limit: 6})
	s.Require().NoError(err)
	second, err := Compile(s.ctx, root, DefaultFamily{Limit: 6})
	s.Require().NoError(err)

	s.True(reflect.DeepEqual(first.reg.Ops, second.reg.Ops), "two compiles of the same expression must agree op-for-op")
	s.Equal(first.reg.OutputReg, second.reg.OutputReg)
	s.Equal(first.reg.SlotCount, second.reg.SlotCount)
}

// E5: nested min, both the inner and outer choice collapse to their right
// operand, leaving a tape equivalent to -x.
func (s *VMSuite) TestNestedMinSpecializesToNegX() {
	x := s.ctx.X()
	y := s.ctx.Y()
	negX, err := s.ctx.Unary(dag.OpNeg, x)
	s.Require().NoError(err)
	inner, err := s.ctx.Binary(dag.OpMin, y, negX)
	s.Require().NoError(err)
	root, err := s.ctx.Binary(dag.OpMin, x, inner)
	s.Require().NoError(err)

	tape, err := Compile(s.ctx, root, DefaultFamily{})
	s.Require().NoError(err)
	s.Require().Equal(2, tape.ChoiceCount())
	ev := NewEvaluator(tape)

	result, choices, simplify, err := ev.Interval(
		Interval1{Lo: 10, Hi: 11}, Interval1{Lo: 0, Hi: 1}, Interval1{}, nil,
	)
	s.Require().NoError(err)
	s.True(simplify, "both nested choices resolve to one side")
	s.Equal(float32(-11), result.Lo)
	s.Equal(float32(-10), result.Hi)

	simplified, changed, err := Simplify(tape, choices)
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(0, simplified.ChoiceCount())
	s.LessOrEqual(simplified.OpCount(), 2, "the specialized tape is just -x (plus its inlined input read)")

	simplifiedEv := NewEvaluator(simplified)
	got, err := simplifiedEv.Point(10.5, 0, 0, nil)
	s.Require().NoError(err)
	s.Equal(float32(-10.5), got)
}

func TestVMSuite(t *testing.T) {
	suite.Run(t, new(VMSuite))
}
