package dag

import "errors"

// Sentinel error kinds, wrapped with context via fmt.Errorf("%w: ...").
// Mirrors the sentinel + wrap convention in pkg/gpu/cuda.go and the
// dfs.ErrCycleDetected / dfs.ErrNeighborFetch pair in the lvlath pack.
var (
	// ErrInvalidNode is returned when a Node handle does not belong to the
	// Context it was passed to, or is stale (index out of range).
	ErrInvalidNode = errors.New("dag: invalid node")

	// ErrMalformedExpr is returned when a Node's operands are not strictly
	// lower-indexed than the node itself, which would indicate a cycle.
	// Context's append-only construction makes this unreachable in
	// practice; the check exists as a defensive boundary for callers that
	// fabricate a Node value outside the builder methods.
	ErrMalformedExpr = errors.New("dag: malformed expression")
)
