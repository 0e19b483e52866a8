// Package ssabuild lowers a scheduled DAG into a straight-line SSA tape:
// one symbolic slot per non-constant node, one SsaOp per slot, constants
// folded into immediate operand fields on the consumer op instead of their
// own slot.
package ssabuild

import "github.com/oisee/fidget/schedule"

// Slot is a symbolic SSA value slot: a wide index with no register budget
// attached yet (that's the register allocator's job, §4.4).
type Slot uint32

// Kind is the SSA opcode. It mirrors dag.Op, split further into the
// reg/imm variants the design calls for in §4.3: AddRegImm, SubImmReg,
// SubRegImm, MulRegImm, DivRegImm, DivImmReg, MinRegImm, MaxRegImm, plus
// the VarLoad/CopyImm/input leaves.
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
)

// SsaOp is one straight-line operation with symbolic operand slots. Exactly
// one of (A,B both slots), (A slot + Imm), (A slot alone, for unary ops), or
// neither (leaves, CopyImm) is populated, selected by Kind.
type SsaOp struct {
	Kind Kind
	Out  Slot
	A, B Slot
	Imm  float32
	Var  string // only for KindVarLoad

	// HasChoice and Choice are set for Min/Max (and their RegImm variants):
	// the choice index an interval evaluator records its decision under.
	HasChoice bool
	Choice    schedule.ChoiceIndex
}

// Tape is the SSA-level lowering of a compiled shape: a straight-line op
// list plus the slot holding the final value.
type Tape struct {
	Ops         []SsaOp
	Root        Slot
	SlotCount   int
	ChoiceCount int
}
