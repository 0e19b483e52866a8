// Package regalloc lowers a straight-line SSA tape (ssabuild.Tape) into a
// register tape: every operand becomes one of REG_LIMIT fast registers,
// with explicit Load/Store ops marking the boundary to a spill slot when
// the live set outgrows the register file (§4.4).
package regalloc

import (
	"github.com/oisee/fidget/schedule"
	"github.com/oisee/fidget/ssabuild"
)

// Reg is a fast-register index, 0 <= Reg < RegLimit.
type Reg uint32

// Kind mirrors ssabuild.Kind one-for-one (same ordinal values) and adds the
// three register/memory-traffic ops the allocator itself introduces.
type Kind uint8

const (
	KindInputX Kind = iota
	KindInputY
	KindInputZ
	KindVarLoad
	KindCopyImm

	KindNeg
	KindAbs
	KindRecip
	KindSqrt
	KindSquare

	KindAdd
	KindSub
	KindMul
	KindDiv
	KindMin
	KindMax

	KindAddRegImm
	KindSubImmReg
	KindSubRegImm
	KindMulRegImm
	KindDivRegImm
	KindDivImmReg
	KindMinRegImm
	KindMaxRegImm

	// KindLoad brings a spilled value from memory slot Mem into register Out.
	KindLoad
	// KindStore spills the value in register A to memory slot Mem.
	KindStore
	// KindSwap exchanges a register's value with a memory slot's value in
	// one op. The reference allocator never emits it (see DESIGN.md); it
	// stays part of the vocabulary so evaluators handle it correctly if a
	// future allocator variant does.
	KindSwap
)

func kindFromSSA(k ssabuild.Kind) Kind { return Kind(k) }

// RegOp is one register-tape instruction. Depending on Kind: compute ops
// use Out/A/B (and Imm/Var where SsaOp did); Load uses Out+Mem; Store uses
// A+Mem; Swap uses A+Mem.
type RegOp struct {
	Kind Kind
	Out  Reg
	A, B Reg
	Imm  float32
	Var  string
	Mem  uint32

	HasChoice bool
	Choice    schedule.ChoiceIndex
}

// Tape is the fully register-allocated program ready for execution or
// simplification.
type Tape struct {
	Ops         []RegOp
	SlotCount   int // RegLimit + peak concurrently-live spill slots
	ChoiceCount int
	OutputReg   Reg // always 0, by allocator convention
	RegLimit    int
}

func usesA(k ssabuild.Kind) bool {
	switch k {
	case ssabuild.KindInputX, ssabuild.KindInputY, ssabuild.KindInputZ,
		ssabuild.KindVarLoad, ssabuild.KindCopyImm:
		return false
	default:
		return true
	}
}

func usesB(k ssabuild.Kind) bool {
	switch k {
	case ssabuild.KindAdd, ssabuild.KindSub, ssabuild.KindMul, ssabuild.KindDiv,
		ssabuild.KindMin, ssabuild.KindMax:
		return true
	default:
		return false
	}
}
