package schedule

import "github.com/oisee/fidget/dag"

// dnfItem is one entry of the explicit work stack used by discoverConditions:
// a node paired with the Conjunction accumulated along the path that led to
// it. The same node may appear with several different conjunctions when the
// DAG shares it under more than one choice context.
type dnfItem struct {
	node dag.Node
	conj Conjunction
}

// discoverConditions walks the DAG from root with an explicit stack
// (§9: no recursion through expression children), accumulating, for every
// reachable node, the set of distinct Conjunctions under which it is live.
// Inline nodes are recorded but never recursed through — their children are
// reached only via absorption (absorbInline) or via other, non-inline
// consumers.
func discoverConditions(ctx *dag.Context, root dag.Node, inline map[dag.Node]bool, choiceOf map[dag.Node]ChoiceIndex) (map[dag.Node][]Conjunction, error) {
	seen := make(map[dag.Node]map[string]bool)
	conds := make(map[dag.Node][]Conjunction)

	stack := []dnfItem{{node: root, conj: Conjunction{Always: true}}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := item.conj.key()
		if seen[item.node] == nil {
			seen[item.node] = make(map[string]bool)
		}
		if seen[item.node][key] {
			continue
		}
		seen[item.node][key] = true
		conds[item.node] = append(conds[item.node], item.conj)

		if inline[item.node] {
			continue
		}

		info, err := ctx.GetOp(item.node)
		if err != nil {
			return nil, err
		}
		switch {
		case info.Op.IsLeaf():
			// terminal
		case info.Op.IsUnary():
			stack = append(stack, dnfItem{node: info.A, conj: item.conj})
		case info.Op.IsMinMax():
			idx, ok := choiceOf[item.node]
			if !ok {
				return nil, dag.ErrMalformedExpr
			}
			stack = append(stack, dnfItem{node: info.B, conj: item.conj.and(Clause{Choice: idx, Side: SideRight})})
			stack = append(stack, dnfItem{node: info.A, conj: item.conj.and(Clause{Choice: idx, Side: SideLeft})})
		default: // other binary
			stack = append(stack, dnfItem{node: info.B, conj: item.conj})
			stack = append(stack, dnfItem{node: info.A, conj: item.conj})
		}
	}

	// Always-live dominates: if any path to a node carried no constraint,
	// the node is unconditionally live regardless of its other paths.
	for n, cs := range conds {
		for _, c := range cs {
			if c.Always {
				conds[n] = []Conjunction{{Always: true}}
				break
			}
		}
	}

	return conds, nil
}

func conditionFromConjunctions(conjs []Conjunction) Condition {
	for _, c := range conjs {
		if c.Always {
			return Condition{Always: true}
		}
	}
	dedup := make(map[string]Conjunction)
	for _, c := range conjs {
		dedup[c.key()] = c
	}
	out := make([]Conjunction, 0, len(dedup))
	for _, c := range dedup {
		out = append(out, c)
	}
	return Condition{Conjs: out}
}
