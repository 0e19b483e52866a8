package ssabuild_test

import (
	"testing"

	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/schedule"
	"github.com/oisee/fidget/ssabuild"
)

// countNonConstMembers sums non-Const node occurrences across every group,
// counting an absorbed inline node once per group that materializes it —
// the same quantity ssabuild.Build is contracted to equal in op count.
func countNonConstMembers(t *testing.T, ctx *dag.Context, sched *schedule.Result) int {
	t.Helper()
	n := 0
	for _, g := range sched.Groups {
		for _, node := range g.Nodes {
			info, err := ctx.GetOp(node)
			if err != nil {
				t.Fatalf("GetOp: %v", err)
			}
			if info.Op != dag.OpConst {
				n++
			}
		}
	}
	return n
}

func TestBuildOpCountMatchesNonConstNodes(t *testing.T) {
	ctx := dag.NewContext()
	x := ctx.X()
	y := ctx.Y()
	z := ctx.Z()
	a, err := ctx.Binary(dag.OpAdd, x, y)
	if err != nil {
		t.Fatal(err)
	}
	root, err := ctx.Binary(dag.OpMin, a, z)
	if err != nil {
		t.Fatal(err)
	}

	sched, err := schedule.Schedule(ctx, root, 0)
	if err != nil {
		t.Fatal(err)
	}
	tape, err := ssabuild.Build(ctx, root, sched)
	if err != nil {
		t.Fatal(err)
	}

	want := countNonConstMembers(t, ctx, sched)
	if got := len(tape.Ops); got != want {
		t.Errorf("len(Ops) = %d, want %d", got, want)
	}
}

func TestBuildFoldsConstantIntoImmediate(t *testing.T) {
	ctx := dag.NewContext()
	x := ctx.X()
	c := ctx.Constant(2)
	root, err := ctx.Binary(dag.OpMul, x, c)
	if err != nil {
		t.Fatal(err)
	}

	sched, err := schedule.Schedule(ctx, root, schedule.DefaultInlineThreshold)
	if err != nil {
		t.Fatal(err)
	}
	tape, err := ssabuild.Build(ctx, root, sched)
	if err != nil {
		t.Fatal(err)
	}

	if len(tape.Ops) != 2 {
		t.Fatalf("expected an InputX op followed by a single MulRegImm op, got %d ops", len(tape.Ops))
	}
	op := tape.Ops[1]
	if op.Kind != ssabuild.KindMulRegImm {
		t.Errorf("Kind = %v, want KindMulRegImm", op.Kind)
	}
	if op.Imm != 2 {
		t.Errorf("Imm = %v, want 2", op.Imm)
	}
}

func TestBuildConstantRootEmitsCopyImm(t *testing.T) {
	ctx := dag.NewContext()
	a := ctx.Constant(2)
	b := ctx.Constant(3)
	root, err := ctx.Binary(dag.OpAdd, a, b)
	if err != nil {
		t.Fatal(err)
	}

	sched, err := schedule.Schedule(ctx, root, schedule.DefaultInlineThreshold)
	if err != nil {
		t.Fatal(err)
	}
	tape, err := ssabuild.Build(ctx, root, sched)
	if err != nil {
		t.Fatal(err)
	}

	if len(tape.Ops) != 1 || tape.Ops[0].Kind != ssabuild.KindCopyImm {
		t.Fatalf("expected a single CopyImm op, got %+v", tape.Ops)
	}
	if tape.Ops[0].Imm != 5 {
		t.Errorf("Imm = %v, want 5", tape.Ops[0].Imm)
	}
	if tape.Root != tape.Ops[0].Out {
		t.Errorf("Root slot %d does not match CopyImm output %d", tape.Root, tape.Ops[0].Out)
	}
}
