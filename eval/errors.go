package eval

import "errors"

// ErrMissingVar is returned when a VarLoad op references a name absent from
// the variable bindings passed to Eval.
var ErrMissingVar = errors.New("eval: missing variable binding")

// ErrBadTape is returned when a tape contains an op kind an evaluator
// doesn't know how to execute (e.g. corrupted or hand-built input).
var ErrBadTape = errors.New("eval: unrecognized op kind")
