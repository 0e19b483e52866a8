package schedule

import "github.com/oisee/fidget/dag"

// Result is everything the SSA builder needs from scheduling: the inline
// set, the per-node ChoiceIndex map, the groups in emission order, and the
// global-node set.
type Result struct {
	Inline      map[dag.Node]bool
	ChoiceOf    map[dag.Node]ChoiceIndex
	Groups      []*Group // already sorted into emission order
	Globals     map[dag.Node]bool
	ChoiceCount int
}

// Schedule runs the full pipeline from §4.2: inline selection, choice
// assignment, DNF discovery, raw grouping, inline absorption, global
// detection, inter-group ordering, and within-group ordering. A negative
// inlineThreshold selects DefaultInlineThreshold; zero is a valid caller
// choice ("inline nothing"), matching computeInline's w <= threshold test.
func Schedule(ctx *dag.Context, root dag.Node, inlineThreshold int) (*Result, error) {
	if inlineThreshold < 0 {
		inlineThreshold = DefaultInlineThreshold
	}

	if _, err := ctx.GetOp(root); err != nil {
		return nil, err
	}

	inline, err := computeInline(ctx, root, inlineThreshold)
	if err != nil {
		return nil, err
	}

	choiceOf, err := assignChoiceIndices(ctx, root)
	if err != nil {
		return nil, err
	}

	conds, err := discoverConditions(ctx, root, inline, choiceOf)
	if err != nil {
		return nil, err
	}

	groups, nodeToGroup := buildRawGroups(conds, inline)

	if err := absorbInline(ctx, groups, inline); err != nil {
		return nil, err
	}

	globals, err := computeGlobals(ctx, groups, root)
	if err != nil {
		return nil, err
	}

	order, err := orderGroups(ctx, groups, nodeToGroup, globals)
	if err != nil {
		return nil, err
	}
	ordered := make([]*Group, len(groups))
	for emitPos, gi := range order {
		ordered[emitPos] = groups[gi]
	}

	for _, g := range ordered {
		if err := orderWithinGroup(ctx, g); err != nil {
			return nil, err
		}
	}

	return &Result{
		Inline:      inline,
		ChoiceOf:    choiceOf,
		Groups:      ordered,
		Globals:     globals,
		ChoiceCount: len(choiceOf),
	}, nil
}
