package schedule

import (
	"sort"

	"github.com/oisee/fidget/dag"
)

// buildRawGroups partitions every non-inline reachable node into a Group
// keyed by its Condition. Nodes are processed in increasing Node order so
// that, for a fixed input, group discovery (and therefore GroupIndex
// assignment) is deterministic.
func buildRawGroups(conds map[dag.Node][]Conjunction, inline map[dag.Node]bool) ([]*Group, map[dag.Node]int) {
	nodes := make([]dag.Node, 0, len(conds))
	for n := range conds {
		if !inline[n] {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	byKey := make(map[string]*Group)
	var groups []*Group
	nodeToGroup := make(map[dag.Node]int)

	for _, n := range nodes {
		cond := conditionFromConjunctions(conds[n])
		key := cond.key()
		g, ok := byKey[key]
		if !ok {
			g = &Group{Index: len(groups), Condition: cond}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.Nodes = append(g.Nodes, n)
		nodeToGroup[n] = g.Index
	}

	return groups, nodeToGroup
}

// absorbInline repeatedly pulls the inline transitive children of every
// group member into that same group, so the SSA builder can materialize
// them locally wherever they're needed (§4.2: "absorb inline children by
// transitive closure").
func absorbInline(ctx *dag.Context, groups []*Group, inline map[dag.Node]bool) error {
	for _, g := range groups {
		member := make(map[dag.Node]bool, len(g.Nodes))
		for _, n := range g.Nodes {
			member[n] = true
		}
		queue := append([]dag.Node(nil), g.Nodes...)
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			children, err := ctx.Children(n)
			if err != nil {
				return err
			}
			for _, c := range children {
				if inline[c] && !member[c] {
					member[c] = true
					g.Nodes = append(g.Nodes, c)
					queue = append(queue, c)
				}
			}
		}
	}
	return nil
}

// computeGlobals returns the set of nodes referenced by some group but not
// contained in it, plus root (always global, per the design).
func computeGlobals(ctx *dag.Context, groups []*Group, root dag.Node) (map[dag.Node]bool, error) {
	globals := make(map[dag.Node]bool)
	for _, g := range groups {
		member := make(map[dag.Node]bool, len(g.Nodes))
		for _, n := range g.Nodes {
			member[n] = true
		}
		for _, n := range g.Nodes {
			children, err := ctx.Children(n)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if !member[c] {
					globals[c] = true
				}
			}
		}
	}
	globals[root] = true
	return globals, nil
}

// orderGroups computes the emission order: group G1 depends on G2 iff some
// node in G1 references a global that lives in G2, and G2 must emit first.
// Kahn's algorithm over that dependency graph, tie-broken by smaller
// GroupIndex among ready groups at each step.
func orderGroups(ctx *dag.Context, groups []*Group, nodeToGroup map[dag.Node]int, globals map[dag.Node]bool) ([]int, error) {
	n := len(groups)
	dependsOn := make([]map[int]bool, n) // dependsOn[g] = set of groups g needs first
	for i := range dependsOn {
		dependsOn[i] = make(map[int]bool)
	}

	for _, g := range groups {
		for _, m := range g.Nodes {
			children, err := ctx.Children(m)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if !globals[c] {
					continue
				}
				dep, ok := nodeToGroup[c]
				if !ok || dep == g.Index {
					continue
				}
				dependsOn[g.Index][dep] = true
			}
		}
	}

	indegree := make([]int, n)
	dependents := make([][]int, n) // dependents[g] = groups that depend on g
	for g, deps := range dependsOn {
		indegree[g] = len(deps)
		for dep := range deps {
			dependents[dep] = append(dependents[dep], g)
		}
	}
	for _, ds := range dependents {
		sort.Ints(ds)
	}

	ready := make([]int, 0, n)
	for g := 0; g < n; g++ {
		if indegree[g] == 0 {
			ready = append(ready, g)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		g := ready[0]
		ready = ready[1:]
		order = append(order, g)
		for _, dep := range dependents[g] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != n {
		return nil, dag.ErrMalformedExpr
	}
	return order, nil
}

// orderWithinGroup computes a root-first ordering of g's members: the
// Kahn frontier starts at nodes with no within-group consumer (the group's
// local outputs) and proceeds toward its operands, ties broken by smaller
// Node id. The SSA builder walks this list back-to-front to emit operands
// before their consumers.
func orderWithinGroup(ctx *dag.Context, g *Group) error {
	member := make(map[dag.Node]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		member[n] = true
	}

	consumerCount := make(map[dag.Node]int, len(g.Nodes))
	for _, n := range g.Nodes {
		consumerCount[n] = 0
	}
	for _, n := range g.Nodes {
		children, err := ctx.Children(n)
		if err != nil {
			return err
		}
		for _, c := range children {
			if member[c] {
				consumerCount[c]++
			}
		}
	}

	ready := make([]dag.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if consumerCount[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]dag.Node, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		children, err := ctx.Children(n)
		if err != nil {
			return err
		}
		for _, c := range children {
			if !member[c] {
				continue
			}
			consumerCount[c]--
			if consumerCount[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	g.Nodes = order
	return nil
}
