// Package dag implements the hash-consed expression graph: the immutable
// DAG of Node handles over the three input axes, runtime variables,
// constants, and the unary/binary operator set, deduplicated by structural
// equality the way a compiler interns symbols.
package dag

import "fmt"

// Node is a dense index into a Context's node table. It is only meaningful
// relative to the Context that produced it; passing a Node to a different
// Context is a caller error (ErrInvalidNode).
type Node uint32

// node is the interned record for one Node. Only the fields relevant to Op
// are populated; the rest are zero.
type node struct {
	op    Op
	name  string
	value float32
	a, b  Node
}

// nodeKey is the hash-consing key: two nodes with an identical key collapse
// to the same Node. Node fields default to zero for operations that don't
// use them, which is safe because op always disambiguates the shape.
type nodeKey struct {
	op    Op
	name  string
	value float32
	a, b  Node
}

// Context owns every Node produced during the compilation of one shape. It
// is append-only: nodes are never mutated or removed once interned, so a
// Node's operands are always strictly lower-indexed than the Node itself.
// A Context is safe to read from multiple goroutines once no more nodes are
// being added to it.
type Context struct {
	nodes    []node
	interned map[nodeKey]Node
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{interned: make(map[nodeKey]Node, 64)}
}

// NodeCount returns the number of distinct interned nodes.
func (c *Context) NodeCount() int {
	return len(c.nodes)
}

func (c *Context) intern(key nodeKey, n node) Node {
	if id, ok := c.interned[key]; ok {
		return id
	}
	id := Node(len(c.nodes))
	c.nodes = append(c.nodes, n)
	c.interned[key] = id
	return id
}

// X returns the Node reading the x coordinate.
func (c *Context) X() Node { return c.intern(nodeKey{op: OpInputX}, node{op: OpInputX}) }

// Y returns the Node reading the y coordinate.
func (c *Context) Y() Node { return c.intern(nodeKey{op: OpInputY}, node{op: OpInputY}) }

// Z returns the Node reading the z coordinate.
func (c *Context) Z() Node { return c.intern(nodeKey{op: OpInputZ}, node{op: OpInputZ}) }

// Var returns the Node reading the named runtime variable.
func (c *Context) Var(name string) Node {
	return c.intern(nodeKey{op: OpVar, name: name}, node{op: OpVar, name: name})
}

// Constant returns the Node for a literal float32.
func (c *Context) Constant(v float32) Node {
	return c.intern(nodeKey{op: OpConst, value: v}, node{op: OpConst, value: v})
}

func (c *Context) valid(n Node) bool {
	return int(n) < len(c.nodes)
}

// checkOperand validates that n belongs to c and precedes the node currently
// being constructed (append-only invariant). idx is the index the new node
// will occupy (len(c.nodes) at call time).
func (c *Context) checkOperand(n Node, idx int) error {
	if !c.valid(n) {
		return fmt.Errorf("%w: node %d", ErrInvalidNode, n)
	}
	if int(n) >= idx {
		return fmt.Errorf("%w: operand %d is not lower-indexed than %d", ErrMalformedExpr, n, idx)
	}
	return nil
}

// Unary interns a unary operation over a, folding it to a Constant if a is
// itself constant.
func (c *Context) Unary(op Op, a Node) (Node, error) {
	if !op.IsUnary() {
		return 0, fmt.Errorf("%w: %s is not unary", ErrMalformedExpr, op)
	}
	if err := c.checkOperand(a, len(c.nodes)); err != nil {
		return 0, err
	}
	if av, ok := c.ConstValue(a); ok {
		return c.Constant(foldUnary(op, av)), nil
	}
	return c.intern(nodeKey{op: op, a: a}, node{op: op, a: a}), nil
}

// Binary interns a binary operation over (a, b), folding to a Constant when
// both operands are constant and applying the cheap algebraic identities
// named in the design (add/mul identity, min/max self-identity).
func (c *Context) Binary(op Op, a, b Node) (Node, error) {
	if !op.IsBinary() {
		return 0, fmt.Errorf("%w: %s is not binary", ErrMalformedExpr, op)
	}
	idx := len(c.nodes)
	if err := c.checkOperand(a, idx); err != nil {
		return 0, err
	}
	if err := c.checkOperand(b, idx); err != nil {
		return 0, err
	}

	av, aConst := c.ConstValue(a)
	bv, bConst := c.ConstValue(b)
	if aConst && bConst {
		return c.Constant(foldBinary(op, av, bv)), nil
	}

	if n, ok := c.identity(op, a, b, av, aConst, bv, bConst); ok {
		return n, nil
	}

	return c.intern(nodeKey{op: op, a: a, b: b}, node{op: op, a: a, b: b}), nil
}

// identity applies the cheap, safe algebraic simplifications from the
// design: add(x,0)=x, mul(x,1)=x, mul(x,0)=0, sub(x,0)=x, min/max(x,x)=x.
func (c *Context) identity(op Op, a, b Node, av float32, aConst bool, bv float32, bConst bool) (Node, bool) {
	switch op {
	case OpAdd:
		if aConst && av == 0 {
			return b, true
		}
		if bConst && bv == 0 {
			return a, true
		}
	case OpSub:
		if bConst && bv == 0 {
			return a, true
		}
	case OpMul:
		if aConst && av == 1 {
			return b, true
		}
		if bConst && bv == 1 {
			return a, true
		}
		if (aConst && av == 0) || (bConst && bv == 0) {
			return c.Constant(0), true
		}
	case OpMin, OpMax:
		if a == b {
			return a, true
		}
	}
	return 0, false
}

// NodeInfo is the read-only record returned by GetOp, exposing a Node's op
// and operand slots to callers outside the package (schedule, ssabuild).
type NodeInfo struct {
	Op    Op
	Name  string
	Value float32
	A, B  Node
}

// GetOp returns the record for n.
func (c *Context) GetOp(n Node) (NodeInfo, error) {
	if !c.valid(n) {
		return NodeInfo{}, fmt.Errorf("%w: node %d", ErrInvalidNode, n)
	}
	nd := c.nodes[n]
	return NodeInfo{Op: nd.op, Name: nd.name, Value: nd.value, A: nd.a, B: nd.b}, nil
}

// ConstValue returns (value, true) if n is a Const node, else (0, false).
// Returns false for an out-of-range Node rather than erroring, matching the
// "Option<f>"-shaped query in the design (callers that need to distinguish
// invalid-node from not-constant should call GetOp instead).
func (c *Context) ConstValue(n Node) (float32, bool) {
	if !c.valid(n) {
		return 0, false
	}
	nd := c.nodes[n]
	if nd.op != OpConst {
		return 0, false
	}
	return nd.value, true
}

// Children returns n's operand Nodes: zero for a leaf, one for a unary op,
// two for a binary op.
func (c *Context) Children(n Node) ([]Node, error) {
	info, err := c.GetOp(n)
	if err != nil {
		return nil, err
	}
	switch {
	case info.Op.IsLeaf():
		return nil, nil
	case info.Op.IsUnary():
		return []Node{info.A}, nil
	default:
		return []Node{info.A, info.B}, nil
	}
}

// Format renders n and its subtree as an s-expression, for debugging and
// test failure messages (grounded on Catalog's static Mnemonic lookup).
func (c *Context) Format(n Node) string {
	info, err := c.GetOp(n)
	if err != nil {
		return fmt.Sprintf("<invalid %d>", n)
	}
	switch {
	case info.Op == OpConst:
		return fmt.Sprintf("%g", info.Value)
	case info.Op == OpVar:
		return fmt.Sprintf("var(%s)", info.Name)
	case info.Op.IsLeaf():
		return info.Op.String()
	case info.Op.IsUnary():
		return fmt.Sprintf("(%s %s)", info.Op, c.Format(info.A))
	default:
		return fmt.Sprintf("(%s %s %s)", info.Op, c.Format(info.A), c.Format(info.B))
	}
}
