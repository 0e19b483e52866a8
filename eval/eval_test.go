package eval_test

import (
	"math"
	"testing"

	"github.com/oisee/fidget/choice"
	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/eval"
	"github.com/oisee/fidget/regalloc"
	"github.com/oisee/fidget/schedule"
	"github.com/oisee/fidget/ssabuild"
)

func compile(t *testing.T, build func(ctx *dag.Context) dag.Node) *regalloc.Tape {
	t.Helper()
	ctx := dag.NewContext()
	root := build(ctx)
	sched, err := schedule.Schedule(ctx, root, 0)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	ssa, err := ssabuild.Build(ctx, root, sched)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tape, err := regalloc.Allocate(ssa, 8)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return tape
}

// E1: f(x,y,z) = x.
func TestPointEvalIdentity(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node { return ctx.X() })
	p := eval.NewPoint(tape)
	got, err := p.Eval(3, 4, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3 {
		t.Errorf("Eval(3,4,5) = %v, want 3", got)
	}
}

// E3: abs(x) over an interval straddling zero clamps the lower bound to 0.
func TestIntervalAbsStraddlingZero(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Unary(dag.OpAbs, ctx.X())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	iv := eval.NewInterval(tape)
	got, err := iv.Eval(eval.Interval{Lo: -2, Hi: 3}, eval.Interval{}, eval.Interval{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lo != 0 || got.Hi != 3 {
		t.Errorf("abs([-2,3]) = %+v, want {0,3}", got)
	}
}

// E4: sqrt(x) over an interval that dips slightly negative must not yield NaN.
func TestIntervalSqrtClampsNegativeLowerBound(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Unary(dag.OpSqrt, ctx.X())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	iv := eval.NewInterval(tape)
	got, err := iv.Eval(eval.Interval{Lo: -0.01, Hi: 4}, eval.Interval{}, eval.Interval{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(float64(got.Lo)) || math.IsNaN(float64(got.Hi)) {
		t.Fatalf("sqrt([-0.01,4]) produced NaN: %+v", got)
	}
	if got.Lo != 0 || got.Hi != 2 {
		t.Errorf("sqrt([-0.01,4]) = %+v, want {0,2}", got)
	}
}

// recip(x) over an interval straddling zero must yield NaN, since 1/x
// diverges there and no finite bound is meaningful.
func TestIntervalRecipStraddlingZeroYieldsNaN(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Unary(dag.OpRecip, ctx.X())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	iv := eval.NewInterval(tape)
	got, err := iv.Eval(eval.Interval{Lo: -1, Hi: 2}, eval.Interval{}, eval.Interval{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(float64(got.Lo)) || !math.IsNaN(float64(got.Hi)) {
		t.Errorf("recip([-1,2]) = %+v, want {NaN,NaN}", got)
	}
}

// E2: min(x,y) with a box entirely in x's favor marks only the left choice.
func TestIntervalMinRecordsSingleSidedChoice(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Binary(dag.OpMin, ctx.X(), ctx.Y())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	iv := eval.NewInterval(tape)
	marks := choice.New(tape.ChoiceCount)
	got, err := iv.Eval(
		eval.Interval{Lo: -1, Hi: 0},
		eval.Interval{Lo: 5, Hi: 6},
		eval.Interval{}, nil, marks,
	)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lo != -1 || got.Hi != 0 {
		t.Errorf("min([-1,0],[5,6]) = %+v, want {-1,0}", got)
	}
	if !marks.HasValue(0) || !marks.TookLeft(0) || marks.TookRight(0) {
		t.Errorf("expected only the left side marked for choice 0")
	}
	if !marks.Simplify {
		t.Errorf("a single-sided resolution must set Simplify so the caller knows to re-run Simplify")
	}
}

// A box that straddles both sides of a min leaves Simplify false: nothing
// resolved unambiguously, so there is nothing for Simplify to collapse.
func TestIntervalMinStraddlingLeavesSimplifyFalse(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Binary(dag.OpMin, ctx.X(), ctx.Y())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	iv := eval.NewInterval(tape)
	marks := choice.New(tape.ChoiceCount)
	_, err := iv.Eval(
		eval.Interval{Lo: -1, Hi: 1},
		eval.Interval{Lo: -1, Hi: 1},
		eval.Interval{}, nil, marks,
	)
	if err != nil {
		t.Fatal(err)
	}
	if !marks.Ambiguous(0) {
		t.Errorf("expected choice 0 to be marked ambiguous (Both)")
	}
	if marks.Simplify {
		t.Errorf("an all-Both evaluation has nothing to simplify")
	}
}

// Gradient of x*x at x=3 is value 9, dx 6.
func TestGradientSquare(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Unary(dag.OpSquare, ctx.X())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	g := eval.NewGradient(tape)
	got, err := g.Eval(3, 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.V != 9 || got.DX != 6 {
		t.Errorf("Eval(3) = %+v, want V=9 DX=6", got)
	}
}

// E6: a 40-term chain f_k = f_{k-1}*x + y, lowered under the tightest
// legal register budget (MinRegisterLimit); the point evaluator must still
// agree with a plain Go reimplementation of the same recurrence, bit for
// bit, regardless of whatever Load/Store interleaving the allocator chose.
func TestPointEvalSurvivesRegisterPressure(t *testing.T) {
	const depth = 40
	ctx := dag.NewContext()
	x := ctx.X()
	y := ctx.Y()
	f, err := ctx.Binary(dag.OpAdd, x, y)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < depth; i++ {
		mul, err := ctx.Binary(dag.OpMul, f, x)
		if err != nil {
			t.Fatal(err)
		}
		f, err = ctx.Binary(dag.OpAdd, mul, y)
		if err != nil {
			t.Fatal(err)
		}
	}

	sched, err := schedule.Schedule(ctx, f, 0)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	ssa, err := ssabuild.Build(ctx, f, sched)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tape, err := regalloc.Allocate(ssa, regalloc.MinRegisterLimit)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	var want float32 = 1 + 1 // x+y at x=1,y=1
	for i := 1; i < depth; i++ {
		want = want*1 + 1
	}

	p := eval.NewPoint(tape)
	got, err := p.Eval(1, 1, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("40-deep chain at (1,1) = %v, want %v", got, want)
	}
}

func TestFloatSliceMatchesPoint(t *testing.T) {
	tape := compile(t, func(ctx *dag.Context) dag.Node {
		n, err := ctx.Binary(dag.OpAdd, ctx.X(), ctx.Y())
		if err != nil {
			t.Fatal(err)
		}
		return n
	})
	xs := []float32{1, 2, 3}
	ys := []float32{10, 20, 30}

	fs := eval.NewFloatSlice(tape, 3)
	got, err := fs.Eval(xs, ys, make([]float32, 3), nil)
	if err != nil {
		t.Fatal(err)
	}

	p := eval.NewPoint(tape)
	for i := range xs {
		want, err := p.Eval(xs[i], ys[i], 0, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got[i] != want {
			t.Errorf("sample %d: slice=%v point=%v", i, got[i], want)
		}
	}
}
