package regalloc

import "errors"

// ErrBadRegisterLimit is returned when the configured REG_LIMIT is too
// small to hold a single op's out/left/right operands simultaneously.
var ErrBadRegisterLimit = errors.New("regalloc: register limit too small")

// MinRegisterLimit is the smallest REG_LIMIT the allocator can satisfy: one
// op pins at most three registers at once (out, left operand, right
// operand) plus the permanently reserved output register (reg 0), so the
// general pool needs at least three registers free.
const MinRegisterLimit = 4
