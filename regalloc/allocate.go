package regalloc

import (
	"fmt"

	"github.com/oisee/fidget/ssabuild"
)

// Allocate runs the reverse-walk register allocator over an SSA tape,
// producing a register tape bound to at most regLimit fast registers plus
// however many memory slots spilling required.
//
// The walk processes ssa ops from last to first, so that a value's last
// use (the first point we meet it, in reverse) claims its register and
// that claim holds until we reach the value's own definition further back
// — classic reverse linear scan. Register 0 is pinned to the tape root for
// the whole walk and released only once root's defining op is processed.
func Allocate(tape *ssabuild.Tape, regLimit int) (*Tape, error) {
	if regLimit < MinRegisterLimit {
		return nil, fmt.Errorf("%w: %d (minimum %d)", ErrBadRegisterLimit, regLimit, MinRegisterLimit)
	}

	s := newState(regLimit)
	s.bind(tape.Root, binding{kind: inReg, reg: 0})
	s.regValid[0] = true
	s.regOwner[0] = tape.Root

	for i := len(tape.Ops) - 1; i >= 0; i-- {
		if err := s.processOp(tape.Ops[i], tape.Root); err != nil {
			return nil, err
		}
	}

	ops := make([]RegOp, len(s.out))
	for i, op := range s.out {
		ops[len(s.out)-1-i] = op
	}

	return &Tape{
		Ops:         ops,
		SlotCount:   regLimit + s.peakMem,
		ChoiceCount: tape.ChoiceCount,
		OutputReg:   0,
		RegLimit:    regLimit,
	}, nil
}

// processOp resolves one ssa op's out/operand registers and appends the
// resulting reg ops (plus any Load/Store the resolution required) in the
// order that, once the whole walk is reversed, reproduces correct forward
// execution order (§4.4; see DESIGN.md for the derivation).
func (s *state) processOp(op ssabuild.SsaOp, root ssabuild.Slot) error {
	pinned := map[Reg]bool{}

	outReg, preStore, postEvict, err := s.resolveOut(op.Out, pinned)
	if err != nil {
		return err
	}
	pinned[outReg] = true
	s.regValid[outReg] = true
	s.regOwner[outReg] = op.Out

	var preOps []RegOp
	var postOps []RegOp
	if preStore != nil {
		preOps = append(preOps, *preStore)
	}
	if postEvict != nil {
		postOps = append(postOps, *postEvict)
	}

	var aReg, bReg Reg
	if usesA(op.Kind) {
		r, load, evict, err := s.resolveOperand(op.A, pinned)
		if err != nil {
			return err
		}
		aReg = r
		pinned[r] = true
		if load != nil {
			postOps = append(postOps, *load)
		}
		if evict != nil {
			postOps = append(postOps, *evict)
		}
	}
	if usesB(op.Kind) {
		r, load, evict, err := s.resolveOperand(op.B, pinned)
		if err != nil {
			return err
		}
		bReg = r
		pinned[r] = true
		if load != nil {
			postOps = append(postOps, *load)
		}
		if evict != nil {
			postOps = append(postOps, *evict)
		}
	}

	main := RegOp{
		Kind:      kindFromSSA(op.Kind),
		Out:       outReg,
		A:         aReg,
		B:         bReg,
		Imm:       op.Imm,
		Var:       op.Var,
		HasChoice: op.HasChoice,
		Choice:    op.Choice,
	}

	for _, o := range preOps {
		s.appendRaw(o)
	}
	s.appendRaw(main)
	for _, o := range postOps {
		s.appendRaw(o)
	}

	s.release(op.Out, outReg, root)
	return nil
}

// resolveOut finds (or acquires) the register this op's result must land
// in. preStore is non-nil when the out slot was already spilled by an
// intervening eviction (processed earlier in this reverse walk, i.e. later
// in forward time) and must be stored again right after this op computes
// it. postEvict is non-nil when acquiring a fresh register for a dead or
// first-seen slot required evicting an unrelated occupant.
func (s *state) resolveOut(slot ssabuild.Slot, pinned map[Reg]bool) (reg Reg, preStore *RegOp, postEvict *RegOp, err error) {
	b, ok := s.bindings[slot]
	if !ok {
		r, evict, err := s.acquireGeneral(pinned)
		if err != nil {
			return 0, nil, nil, err
		}
		return r, nil, evict, nil
	}
	switch b.kind {
	case inReg:
		return b.reg, nil, nil, nil
	case inMem:
		r, evict, err := s.acquireGeneral(pinned)
		if err != nil {
			return 0, nil, nil, err
		}
		store := RegOp{Kind: KindStore, A: r, Mem: b.mem}
		s.freeMemSlot(b.mem)
		return r, &store, evict, nil
	default:
		return 0, nil, nil, fmt.Errorf("%w: slot %d has no binding kind", ErrBadRegisterLimit, slot)
	}
}

// resolveOperand finds (or acquires) the register holding an operand's
// value, as seen from this (forward-time-earlier) use. load is non-nil
// when the operand had been spilled and must be brought back in; evict is
// non-nil when bringing it in required evicting an unrelated occupant.
func (s *state) resolveOperand(slot ssabuild.Slot, pinned map[Reg]bool) (reg Reg, load *RegOp, evict *RegOp, err error) {
	if b, ok := s.bindings[slot]; ok && b.kind == inReg {
		s.touch(b.reg)
		return b.reg, nil, nil, nil
	}
	if b, ok := s.bindings[slot]; ok && b.kind == inMem {
		r, ev, err := s.acquireGeneral(pinned)
		if err != nil {
			return 0, nil, nil, err
		}
		l := RegOp{Kind: KindLoad, Out: r, Mem: b.mem}
		s.freeMemSlot(b.mem)
		s.bindReg(slot, r)
		return r, &l, ev, nil
	}
	r, ev, err := s.acquireGeneral(pinned)
	if err != nil {
		return 0, nil, nil, err
	}
	s.bindReg(slot, r)
	return r, nil, ev, nil
}
