package simplify

import (
	"github.com/oisee/fidget/choice"
	"github.com/oisee/fidget/dag"
	"github.com/oisee/fidget/schedule"
)

// specialize rebuilds root under ctx, replacing every Min/Max node whose
// choice resolved to a single side (per marks) with its winning operand,
// specialized the same way. A node that stays ambiguous (or was never
// evaluated) is rebuilt with both operands specialized, so it survives as
// a real decision point; hash-consing means rebuilding an unchanged
// subtree just returns the original Node. Traversal is an explicit
// work-stack post-order, never recursion (§9), memoized so shared
// subexpressions are specialized once regardless of fan-in.
func specialize(ctx *dag.Context, root dag.Node, choiceOf map[dag.Node]schedule.ChoiceIndex, marks *choice.Array) (dag.Node, error) {
	memo := make(map[dag.Node]dag.Node)
	stack := []dag.Node{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		if _, done := memo[n]; done {
			stack = stack[:len(stack)-1]
			continue
		}

		info, err := ctx.GetOp(n)
		if err != nil {
			return 0, err
		}

		if info.Op.IsMinMax() {
			if idx, ok := choiceOf[n]; ok && marks.HasValue(idx) && !marks.Ambiguous(idx) {
				winner := info.A
				if marks.TookRight(idx) {
					winner = info.B
				}
				specializedWinner, done := memo[winner]
				if !done {
					stack = append(stack, winner)
					continue
				}
				memo[n] = specializedWinner
				stack = stack[:len(stack)-1]
				continue
			}
		}

		children, err := ctx.Children(n)
		if err != nil {
			return 0, err
		}
		pending := false
		for _, c := range children {
			if _, ok := memo[c]; !ok {
				stack = append(stack, c)
				pending = true
			}
		}
		if pending {
			continue
		}

		switch len(children) {
		case 0:
			memo[n] = n // leaf: const/input/var never change
		case 1:
			a := memo[children[0]]
			if a == children[0] {
				memo[n] = n
			} else {
				newN, err := ctx.Unary(info.Op, a)
				if err != nil {
					return 0, err
				}
				memo[n] = newN
			}
		default:
			a, b := memo[children[0]], memo[children[1]]
			if a == children[0] && b == children[1] {
				memo[n] = n
			} else {
				newN, err := ctx.Binary(info.Op, a, b)
				if err != nil {
					return 0, err
				}
				memo[n] = newN
			}
		}
		stack = stack[:len(stack)-1]
	}

	return memo[root], nil
}
