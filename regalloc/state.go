package regalloc

import "github.com/oisee/fidget/ssabuild"

type bindKind uint8

const (
	unbound bindKind = iota
	inReg
	inMem
)

type binding struct {
	kind bindKind
	reg  Reg
	mem  uint32
}

// state is the bookkeeping carried across the whole reverse walk (§4.4).
// Register 0 is reserved for the tape's root value for the entire walk and
// excluded from the general pool until root's own defining op is reached,
// at which point it is released back into circulation.
type state struct {
	regLimit int

	bindings map[ssabuild.Slot]*binding

	regOwner     []ssabuild.Slot
	regValid     []bool
	lru          []Reg // front = least recently touched, back = most recently touched
	reg0Reserved bool

	freeMem []uint32
	nextMem uint32
	curMem  int
	peakMem int

	out []RegOp // built back-to-front; Allocate reverses it once at the end
}

func newState(regLimit int) *state {
	s := &state{
		regLimit:     regLimit,
		bindings:     make(map[ssabuild.Slot]*binding),
		regOwner:     make([]ssabuild.Slot, regLimit),
		regValid:     make([]bool, regLimit),
		reg0Reserved: true,
	}
	s.lru = make([]Reg, 0, regLimit)
	for r := 1; r < regLimit; r++ {
		s.lru = append(s.lru, Reg(r))
	}
	return s
}

func (s *state) touch(r Reg) {
	for i, v := range s.lru {
		if v == r {
			s.lru = append(s.lru[:i], s.lru[i+1:]...)
			break
		}
	}
	s.lru = append(s.lru, r)
}

func (s *state) bind(slot ssabuild.Slot, b binding) {
	bb := b
	s.bindings[slot] = &bb
}

func (s *state) allocMem() uint32 {
	var m uint32
	if n := len(s.freeMem); n > 0 {
		m = s.freeMem[n-1]
		s.freeMem = s.freeMem[:n-1]
	} else {
		m = s.nextMem
		s.nextMem++
	}
	s.curMem++
	if s.curMem > s.peakMem {
		s.peakMem = s.curMem
	}
	return m
}

func (s *state) freeMemSlot(m uint32) {
	s.freeMem = append(s.freeMem, m)
	s.curMem--
}

// acquireGeneral returns a free register from the general pool, evicting
// the least-recently-touched non-pinned occupant to a fresh memory slot if
// none is free. The eviction Store (if any) is returned rather than
// appended directly: the caller decides where it lands in program order
// relative to the op currently being built (§4.4).
func (s *state) acquireGeneral(pinned map[Reg]bool) (Reg, *RegOp, error) {
	for r := 0; r < s.regLimit; r++ {
		if r == 0 && s.reg0Reserved {
			continue
		}
		if !s.regValid[r] {
			s.touch(Reg(r))
			s.regValid[r] = true
			return Reg(r), nil, nil
		}
	}
	for i, r := range s.lru {
		if pinned[r] {
			continue
		}
		occ := s.regOwner[r]
		m := s.allocMem()
		evict := RegOp{Kind: KindStore, A: r, Mem: m}
		s.bindings[occ] = &binding{kind: inMem, mem: m}
		s.lru = append(s.lru[:i:i], s.lru[i+1:]...)
		s.lru = append(s.lru, r)
		return r, &evict, nil
	}
	return 0, nil, ErrBadRegisterLimit
}

func (s *state) bindReg(slot ssabuild.Slot, r Reg) {
	s.bindings[slot] = &binding{kind: inReg, reg: r}
	s.regValid[r] = true
	s.regOwner[r] = slot
	s.touch(r)
}

func (s *state) appendRaw(op RegOp) {
	s.out = append(s.out, op)
}

// releaseReg0 returns register 0 to the general pool once root's defining
// op has been emitted; nothing earlier in forward time needs it reserved.
func (s *state) releaseReg0() {
	s.reg0Reserved = false
	s.regValid[0] = false
	s.lru = append([]Reg{0}, s.lru...)
}

// release frees the register (or memory slot) that slot's definition wrote
// into, and clears its binding: nothing before a node's own defining op can
// reference it.
func (s *state) release(slot ssabuild.Slot, r Reg, root ssabuild.Slot) {
	delete(s.bindings, slot)
	if slot == root {
		s.releaseReg0()
		return
	}
	s.regValid[r] = false
	for i, v := range s.lru {
		if v == r {
			s.lru = append(s.lru[:i], s.lru[i+1:]...)
			break
		}
	}
}
