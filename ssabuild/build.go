package ssabuild

import (
	"fmt"

	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/schedule"
)

// builder accumulates ops across all groups. Non-inline ("global") nodes
// get one persistent slot, declared the first time they're processed;
// inline nodes get a fresh slot every group that absorbs them, since each
// occurrence is an independent local copy (§4.2).
type builder struct {
	ctx      *dag.Context
	inline   map[dag.Node]bool
	global   map[dag.Node]Slot
	choiceOf map[dag.Node]schedule.ChoiceIndex
	next     Slot
	ops      []SsaOp
}

func (b *builder) newSlot() Slot {
	s := b.next
	b.next++
	return s
}

// Build walks sched.Groups (already in emission order) and emits one SsaOp
// per non-constant node, in leaf-before-consumer order (each group's
// member list is root-first, so we walk it back to front).
func Build(ctx *dag.Context, root dag.Node, sched *schedule.Result) (*Tape, error) {
	b := &builder{
		ctx:      ctx,
		inline:   sched.Inline,
		global:   make(map[dag.Node]Slot),
		choiceOf: sched.ChoiceOf,
	}

	for _, g := range sched.Groups {
		local := make(map[dag.Node]Slot)
		for i := len(g.Nodes) - 1; i >= 0; i-- {
			if err := b.emit(g.Nodes[i], local); err != nil {
				return nil, err
			}
		}
	}

	rootSlot, err := b.rootSlot(root)
	if err != nil {
		return nil, err
	}

	return &Tape{
		Ops:         b.ops,
		Root:        rootSlot,
		SlotCount:   int(b.next),
		ChoiceCount: sched.ChoiceCount,
	}, nil
}

// rootSlot returns the slot carrying the shape's final value. Root is
// almost always a non-constant global already assigned a slot during group
// emission; the exception is a shape that folds to a bare constant, for
// which no group emission occurs and Build must still produce a runnable
// tape with a defined output, via an explicit CopyImm.
func (b *builder) rootSlot(root dag.Node) (Slot, error) {
	if v, ok := b.ctx.ConstValue(root); ok {
		out := b.newSlot()
		b.ops = append(b.ops, SsaOp{Kind: KindCopyImm, Out: out, Imm: v})
		return out, nil
	}
	s, ok := b.global[root]
	if !ok {
		return 0, fmt.Errorf("%w: root %d was never assigned a slot", dag.ErrMalformedExpr, root)
	}
	return s, nil
}

func (b *builder) emit(n dag.Node, local map[dag.Node]Slot) error {
	info, err := b.ctx.GetOp(n)
	if err != nil {
		return err
	}
	if info.Op == dag.OpConst {
		return nil // constants never get their own op
	}

	var out Slot
	if b.inline[n] {
		out = b.newSlot()
		local[n] = out
	} else {
		if existing, ok := b.global[n]; ok {
			out = existing
		} else {
			out = b.newSlot()
			b.global[n] = out
		}
	}

	op, err := b.buildOp(n, info, out, local)
	if err != nil {
		return err
	}
	if idx, ok := b.choiceOf[n]; ok {
		op.HasChoice = true
		op.Choice = idx
	}
	b.ops = append(b.ops, op)
	return nil
}

// operand resolves a child node to either an immediate float (if it's a
// Const) or the Slot currently holding its value.
func (b *builder) operand(n dag.Node, local map[dag.Node]Slot) (slot Slot, imm float32, isImm bool, err error) {
	if v, ok := b.ctx.ConstValue(n); ok {
		return 0, v, true, nil
	}
	if b.inline[n] {
		s, ok := local[n]
		if !ok {
			return 0, 0, false, fmt.Errorf("%w: inline operand %d not materialized in its group", dag.ErrMalformedExpr, n)
		}
		return s, 0, false, nil
	}
	s, ok := b.global[n]
	if !ok {
		return 0, 0, false, fmt.Errorf("%w: global operand %d not available yet", dag.ErrMalformedExpr, n)
	}
	return s, 0, false, nil
}

func (b *builder) buildOp(n dag.Node, info dag.NodeInfo, out Slot, local map[dag.Node]Slot) (SsaOp, error) {
	switch info.Op {
	case dag.OpInputX:
		return SsaOp{Kind: KindInputX, Out: out}, nil
	case dag.OpInputY:
		return SsaOp{Kind: KindInputY, Out: out}, nil
	case dag.OpInputZ:
		return SsaOp{Kind: KindInputZ, Out: out}, nil
	case dag.OpVar:
		return SsaOp{Kind: KindVarLoad, Out: out, Var: info.Name}, nil
	}

	if info.Op.IsUnary() {
		aSlot, _, aImm, err := b.operand(info.A, local)
		if err != nil {
			return SsaOp{}, err
		}
		if aImm {
			// Context folds unary-of-constant at intern time, so this
			// should be unreachable; guard anyway rather than silently
			// emitting a garbage op.
			return SsaOp{}, fmt.Errorf("%w: unary op over an unfolded constant", dag.ErrMalformedExpr)
		}
		kind := map[dag.Op]Kind{
			dag.OpNeg: KindNeg, dag.OpAbs: KindAbs, dag.OpRecip: KindRecip,
			dag.OpSqrt: KindSqrt, dag.OpSquare: KindSquare,
		}[info.Op]
		return SsaOp{Kind: kind, Out: out, A: aSlot}, nil
	}

	return b.buildBinary(info, out, local)
}

func (b *builder) buildBinary(info dag.NodeInfo, out Slot, local map[dag.Node]Slot) (SsaOp, error) {
	aSlot, aVal, aImm, err := b.operand(info.A, local)
	if err != nil {
		return SsaOp{}, err
	}
	bSlot, bVal, bImm, err := b.operand(info.B, local)
	if err != nil {
		return SsaOp{}, err
	}
	if aImm && bImm {
		return SsaOp{}, fmt.Errorf("%w: binary op over two unfolded constants", dag.ErrMalformedExpr)
	}

	switch info.Op {
	case dag.OpAdd:
		switch {
		case aImm:
			return SsaOp{Kind: KindAddRegImm, Out: out, A: bSlot, Imm: aVal}, nil
		case bImm:
			return SsaOp{Kind: KindAddRegImm, Out: out, A: aSlot, Imm: bVal}, nil
		default:
			return SsaOp{Kind: KindAdd, Out: out, A: aSlot, B: bSlot}, nil
		}
	case dag.OpSub:
		switch {
		case aImm:
			return SsaOp{Kind: KindSubImmReg, Out: out, A: bSlot, Imm: aVal}, nil
		case bImm:
			return SsaOp{Kind: KindSubRegImm, Out: out, A: aSlot, Imm: bVal}, nil
		default:
			return SsaOp{Kind: KindSub, Out: out, A: aSlot, B: bSlot}, nil
		}
	case dag.OpMul:
		switch {
		case aImm:
			return SsaOp{Kind: KindMulRegImm, Out: out, A: bSlot, Imm: aVal}, nil
		case bImm:
			return SsaOp{Kind: KindMulRegImm, Out: out, A: aSlot, Imm: bVal}, nil
		default:
			return SsaOp{Kind: KindMul, Out: out, A: aSlot, B: bSlot}, nil
		}
	case dag.OpDiv:
		switch {
		case aImm:
			return SsaOp{Kind: KindDivImmReg, Out: out, A: bSlot, Imm: aVal}, nil
		case bImm:
			return SsaOp{Kind: KindDivRegImm, Out: out, A: aSlot, Imm: bVal}, nil
		default:
			return SsaOp{Kind: KindDiv, Out: out, A: aSlot, B: bSlot}, nil
		}
	case dag.OpMin:
		switch {
		case aImm:
			return SsaOp{Kind: KindMinRegImm, Out: out, A: bSlot, Imm: aVal}, nil
		case bImm:
			return SsaOp{Kind: KindMinRegImm, Out: out, A: aSlot, Imm: bVal}, nil
		default:
			return SsaOp{Kind: KindMin, Out: out, A: aSlot, B: bSlot}, nil
		}
	case dag.OpMax:
		switch {
		case aImm:
			return SsaOp{Kind: KindMaxRegImm, Out: out, A: bSlot, Imm: aVal}, nil
		case bImm:
			return SsaOp{Kind: KindMaxRegImm, Out: out, A: aSlot, Imm: bVal}, nil
		default:
			return SsaOp{Kind: KindMax, Out: out, A: aSlot, B: bSlot}, nil
		}
	}
	return SsaOp{}, fmt.Errorf("%w: unhandled op %s", dag.ErrMalformedExpr, info.Op)
}
