package regalloc_test

import (
	"testing"

	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/regalloc"
	"github.com/oisee/fidget/schedule"
	"github.com/oisee/fidget/ssabuild"
)

func buildTape(t *testing.T, build func(ctx *dag.Context) dag.Node, threshold int) *ssabuild.Tape {
	t.Helper()
	ctx := dag.NewContext()
	root := build(ctx)
	sched, err := schedule.Schedule(ctx, root, threshold)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	tape, err := ssabuild.Build(ctx, root, sched)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tape
}

func TestAllocateRejectsSmallRegisterLimit(t *testing.T) {
	tape := buildTape(t, func(ctx *dag.Context) dag.Node { return ctx.X() }, schedule.DefaultInlineThreshold)
	if _, err := regalloc.Allocate(tape, 3); err == nil {
		t.Fatal("expected an error for REG_LIMIT < 4")
	}
}

func TestAllocateSingleInputUsesRootRegister(t *testing.T) {
	tape := buildTape(t, func(ctx *dag.Context) dag.Node { return ctx.X() }, schedule.DefaultInlineThreshold)
	out, err := regalloc.Allocate(tape, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(out.Ops))
	}
	if out.Ops[0].Out != 0 {
		t.Errorf("Out = %d, want 0 (root register)", out.Ops[0].Out)
	}
	if out.OutputReg != 0 {
		t.Errorf("OutputReg = %d, want 0", out.OutputReg)
	}
}

// Every register operand in the output must stay within [0, RegLimit).
func TestAllocateOperandsStayWithinLimit(t *testing.T) {
	tape := buildTape(t, func(ctx *dag.Context) dag.Node {
		x, y, z := ctx.X(), ctx.Y(), ctx.Z()
		a, _ := ctx.Binary(dag.OpAdd, x, y)
		b, _ := ctx.Binary(dag.OpMul, a, z)
		root, _ := ctx.Binary(dag.OpMax, a, b)
		return root
	}, 0)

	const limit = 4
	out, err := regalloc.Allocate(tape, limit)
	if err != nil {
		t.Fatal(err)
	}
	for i, op := range out.Ops {
		if op.Kind == regalloc.KindLoad || op.Kind == regalloc.KindStore || op.Kind == regalloc.KindSwap {
			continue
		}
		if int(op.Out) >= limit {
			t.Errorf("op %d: Out register %d >= limit %d", i, op.Out, limit)
		}
	}
}

// A long add chain under a tight register limit must spill: the output
// should contain at least one Store/Load pair, and SlotCount must exceed
// the register limit.
func TestAllocateSpillsUnderPressure(t *testing.T) {
	tape := buildTape(t, func(ctx *dag.Context) dag.Node {
		acc := ctx.X()
		for i := 0; i < 40; i++ {
			v := ctx.Var(variableName(i))
			acc, _ = ctx.Binary(dag.OpAdd, acc, v)
		}
		return acc
	}, 0)

	const limit = 4
	out, err := regalloc.Allocate(tape, limit)
	if err != nil {
		t.Fatal(err)
	}
	if out.SlotCount <= limit {
		t.Errorf("SlotCount = %d, want > %d under register pressure", out.SlotCount, limit)
	}
	sawStore, sawLoad := false, false
	for _, op := range out.Ops {
		if op.Kind == regalloc.KindStore {
			sawStore = true
		}
		if op.Kind == regalloc.KindLoad {
			sawLoad = true
		}
	}
	if !sawStore || !sawLoad {
		t.Errorf("expected at least one Store and one Load, sawStore=%v sawLoad=%v", sawStore, sawLoad)
	}
}

// A Load must never read a memory slot before something has Stored to it.
func TestAllocateNeverLoadsBeforeStore(t *testing.T) {
	tape := buildTape(t, func(ctx *dag.Context) dag.Node {
		acc := ctx.X()
		for i := 0; i < 40; i++ {
			v := ctx.Var(variableName(i))
			acc, _ = ctx.Binary(dag.OpAdd, acc, v)
		}
		return acc
	}, 0)

	out, err := regalloc.Allocate(tape, 4)
	if err != nil {
		t.Fatal(err)
	}
	stored := map[uint32]bool{}
	for i, op := range out.Ops {
		switch op.Kind {
		case regalloc.KindStore:
			stored[op.Mem] = true
		case regalloc.KindLoad:
			if !stored[op.Mem] {
				t.Fatalf("op %d: Load from slot %d before any Store", i, op.Mem)
			}
		}
	}
}

func variableName(i int) string {
	return string(rune('a'+(i%26))) + string(rune('0'+(i/26)%10))
}
