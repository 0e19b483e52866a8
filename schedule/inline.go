package schedule

import "github.com/oisee/fidget/dag"

// DefaultInlineThreshold is W from the design: a node with weight <= W is
// duplicated locally into every consuming group instead of occupying its
// own group.
const DefaultInlineThreshold = 7

// computeWeights assigns every node reachable from root a weight of
// 1 + sum(weight(child)), using an explicit work stack rather than
// recursion (§9: traversals never recurse through expression children).
// A node already present in the returned map is never recomputed, so
// shared subexpressions are visited once regardless of fan-in.
func computeWeights(ctx *dag.Context, root dag.Node) (map[dag.Node]int, error) {
	weights := make(map[dag.Node]int)
	stack := []dag.Node{root}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		if _, done := weights[node]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		children, err := ctx.Children(node)
		if err != nil {
			return nil, err
		}

		pending := false
		for _, c := range children {
			if _, ok := weights[c]; !ok {
				stack = append(stack, c)
				pending = true
			}
		}
		if pending {
			// node's frame stays put; its children now sit above it and
			// will be finalized before we revisit it.
			continue
		}

		w := 1
		for _, c := range children {
			w += weights[c]
		}
		weights[node] = w
		stack = stack[:len(stack)-1]
	}

	return weights, nil
}

// computeInline returns the set of nodes whose weight is at or below
// threshold. The root is never inline: it is always a global (§4.2), so it
// must occupy a group even when its own weight would otherwise qualify it
// (e.g. the single-node shape f = x).
func computeInline(ctx *dag.Context, root dag.Node, threshold int) (map[dag.Node]bool, error) {
	weights, err := computeWeights(ctx, root)
	if err != nil {
		return nil, err
	}
	inline := make(map[dag.Node]bool, len(weights))
	for n, w := range weights {
		if w <= threshold && n != root {
			inline[n] = true
		}
	}
	return inline, nil
}

// assignChoiceIndices walks the DAG depth-first from root, using an
// explicit stack, and assigns a ChoiceIndex to every Min/Max node in the
// order it is first discovered.
func assignChoiceIndices(ctx *dag.Context, root dag.Node) (map[dag.Node]ChoiceIndex, error) {
	choiceOf := make(map[dag.Node]ChoiceIndex)
	visited := make(map[dag.Node]bool)
	stack := []dag.Node{root}
	var next ChoiceIndex

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true

		info, err := ctx.GetOp(n)
		if err != nil {
			return nil, err
		}
		if info.Op.IsMinMax() {
			choiceOf[n] = next
			next++
		}

		children, err := ctx.Children(n)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, children[i])
			}
		}
	}

	return choiceOf, nil
}
