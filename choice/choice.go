// Package choice implements the 1-byte-per-index choice array recorded by
// the interval evaluator while it decides which side of a min/max actually
// bounds the result, and consumed by the tape simplifier to specialize a
// tape to those decisions (§4.5).
package choice

import "github.com/oisee/fidget/schedule"

const (
	hasValue byte = 1 << 0
	left     byte = 1 << 1
	right    byte = 1 << 2
)

// Array is one byte per schedule.ChoiceIndex. Bits accumulate with OR
// across however many times that choice's min/max is evaluated during a
// single pass (e.g. once per tile sample), so a choice ends up recording
// every side the data actually took, not just the last one.
type Array struct {
	bytes    []byte
	Simplify bool
}

// New allocates a zeroed array sized for count choice indices.
func New(count int) *Array {
	return &Array{bytes: make([]byte, count)}
}

// FromBytes wraps a previously-exported byte buffer (see Bytes) as an
// Array, for passing recorded choices across an ABI boundary.
func FromBytes(b []byte) *Array {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Array{bytes: cp}
}

// Bytes returns a copy of the array's raw per-choice bits.
func (a *Array) Bytes() []byte {
	cp := make([]byte, len(a.bytes))
	copy(cp, a.bytes)
	return cp
}

// Len reports the number of choice slots.
func (a *Array) Len() int { return len(a.bytes) }

// Reset clears every byte and the simplify flag, for reuse across tiles.
func (a *Array) Reset() {
	for i := range a.bytes {
		a.bytes[i] = 0
	}
	a.Simplify = false
}

// MarkLeft records that idx's min/max took its left operand at least once.
func (a *Array) MarkLeft(idx schedule.ChoiceIndex) {
	a.bytes[idx] |= hasValue | left
}

// MarkRight records that idx's min/max took its right operand at least once.
func (a *Array) MarkRight(idx schedule.ChoiceIndex) {
	a.bytes[idx] |= hasValue | right
}

// MarkBoth records that idx's min/max was ambiguous (interval straddled
// both operands) at least once, forcing both sides to stay live.
func (a *Array) MarkBoth(idx schedule.ChoiceIndex) {
	a.bytes[idx] |= hasValue | left | right
}

// HasValue reports whether idx was ever decided.
func (a *Array) HasValue(idx schedule.ChoiceIndex) bool {
	return a.bytes[idx]&hasValue != 0
}

// TookLeft reports whether idx ever resolved to (only or also) its left side.
func (a *Array) TookLeft(idx schedule.ChoiceIndex) bool {
	return a.bytes[idx]&left != 0
}

// TookRight reports whether idx ever resolved to (only or also) its right side.
func (a *Array) TookRight(idx schedule.ChoiceIndex) bool {
	return a.bytes[idx]&right != 0
}

// Ambiguous reports whether idx ever took both sides, meaning the
// simplifier must keep both operands' subgraphs live for this choice.
func (a *Array) Ambiguous(idx schedule.ChoiceIndex) bool {
	b := a.bytes[idx]
	return b&left != 0 && b&right != 0
}
