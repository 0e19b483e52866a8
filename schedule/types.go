// Package schedule implements the DNF grouper: it partitions an expression
// DAG into choice-keyed groups, decides which small nodes get inlined, and
// produces the emission order the SSA builder walks.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oisee/fidget/dag"
)

// ChoiceIndex is the dense id assigned to every Min/Max node reachable from
// the root, in discovery order.
type ChoiceIndex uint32

// Side names which operand of a Min/Max a Clause asserts.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "L"
	}
	return "R"
}

// Clause asserts that, for the owning node to be live, the choice at Choice
// must have resolved to Side.
type Clause struct {
	Choice ChoiceIndex
	Side   Side
}

// Conjunction is a single root-to-node path's accumulated clause set (a
// logical AND). Always (the ⊥ / "always-live" condition from the design)
// is a Conjunction with no clauses reached without passing through any
// Min/Max ancestor.
type Conjunction struct {
	Always  bool
	Clauses []Clause // sorted by (Choice, Side) for canonical comparison
}

// and returns a new Conjunction extending c with clause. Always never
// survives this: once a path crosses a Min/Max, it needs that specific
// branch, so the result is a concrete (non-Always) conjunction.
func (c Conjunction) and(clause Clause) Conjunction {
	clauses := make([]Clause, 0, len(c.Clauses)+1)
	clauses = append(clauses, c.Clauses...)
	clauses = append(clauses, clause)
	sort.Slice(clauses, func(i, j int) bool {
		if clauses[i].Choice != clauses[j].Choice {
			return clauses[i].Choice < clauses[j].Choice
		}
		return clauses[i].Side < clauses[j].Side
	})
	return Conjunction{Clauses: clauses}
}

func (c Conjunction) key() string {
	if c.Always {
		return "⊥"
	}
	var b strings.Builder
	for _, cl := range c.Clauses {
		fmt.Fprintf(&b, "%d%s,", cl.Choice, cl.Side)
	}
	return b.String()
}

// Condition is a group's DNF activation condition: the OR of the
// Conjunctions under which its member nodes are reached from the root.
// Always is the singleton {⊥} condition ("always live"), which dominates
// any other conjunctions for the same node (see Context.identity-adjacent
// collapse rule in the design §4.2).
type Condition struct {
	Always bool
	Conjs  []Conjunction // deduped, in no particular order (key sorts them); empty when Always
}

func (c Condition) key() string {
	if c.Always {
		return "⊥"
	}
	keys := make([]string, len(c.Conjs))
	for i, cj := range c.Conjs {
		keys[i] = cj.key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// Group is a DNF cluster: a set of nodes sharing Condition, in a
// topological, root-first order over the within-group edges.
type Group struct {
	Index     int
	Condition Condition
	Nodes     []dag.Node // root-first: a group member precedes its within-group operands
}
