package taskgraph

import (
	"fmt"
	"sort"
)

// ConstraintKind tags the variants of Constraint.
type ConstraintKind int

const (
	// KindForceNotApplicable is a ForceNotApplicable constraint.
	KindForceNotApplicable ConstraintKind = iota
	// KindRequireApplicable is a RequireApplicable constraint.
	KindRequireApplicable
)

func (k ConstraintKind) String() string {
	switch k {
	case KindForceNotApplicable:
		return "ForceNotApplicable"
	case KindRequireApplicable:
		return "RequireApplicable"
	default:
		return fmt.Sprintf("ConstraintKind(%d)", int(k))
	}
}

// Constraint is one precomputed feasibility rule. The concrete types are
// ForceNotApplicable and RequireApplicable.
type Constraint interface {
	Kind() ConstraintKind
	// Target is the task whose label the constraint restricts.
	Target() int
	// Tasks lists every task the constraint reads.
	Tasks() []int
	// Satisfied evaluates the constraint on a full or partial vector whose
	// entries for Tasks() are assigned.
	Satisfied(v Vector) bool
}

// ForceNotApplicable requires Child to be NotApplicable whenever the label
// of Parent is not one of Active.
type ForceNotApplicable struct {
	Parent        int
	Child         int
	Active        []int
	NotApplicable int

	mask []bool
}

// Kind implements Constraint.
func (c ForceNotApplicable) Kind() ConstraintKind { return KindForceNotApplicable }

// Target implements Constraint.
func (c ForceNotApplicable) Target() int { return c.Child }

// Tasks implements Constraint.
func (c ForceNotApplicable) Tasks() []int { return []int{c.Parent, c.Child} }

// Satisfied implements Constraint.
func (c ForceNotApplicable) Satisfied(v Vector) bool {
	return maskHas(c.mask, v[c.Parent]) || v[c.Child] == c.NotApplicable
}

// Gate is one parent of a RequireApplicable constraint together with the
// labels by which it activates the child.
type Gate struct {
	Parent int
	Active []int

	mask []bool
}

// RequireApplicable forbids Child from being NotApplicable when every gate
// is open.
type RequireApplicable struct {
	Child         int
	Gates         []Gate
	NotApplicable int
}

// Kind implements Constraint.
func (c RequireApplicable) Kind() ConstraintKind { return KindRequireApplicable }

// Target implements Constraint.
func (c RequireApplicable) Target() int { return c.Child }

// Tasks implements Constraint.
func (c RequireApplicable) Tasks() []int {
	tasks := make([]int, 0, len(c.Gates)+1)
	for _, gate := range c.Gates {
		tasks = append(tasks, gate.Parent)
	}
	return append(tasks, c.Child)
}

// Satisfied implements Constraint.
func (c RequireApplicable) Satisfied(v Vector) bool {
	if v[c.Child] != c.NotApplicable {
		return true
	}
	for _, gate := range c.Gates {
		if !maskHas(gate.mask, v[gate.Parent]) {
			return true
		}
	}
	return false
}

func maskHas(mask []bool, label int) bool {
	return label >= 0 && label < len(mask) && mask[label]
}

func maskLabels(mask []bool) []int {
	var labels []int
	for l, on := range mask {
		if on {
			labels = append(labels, l)
		}
	}
	return labels
}

// buildConstraints emits one ForceNotApplicable per edge and, unless
// applicability is optional, one RequireApplicable per child task. The list
// is ordered by the topological position of the target, then by kind, then
// by parent.
func (g *TaskGraph) buildConstraints() {
	var cs []Constraint
	for _, e := range g.edges {
		mask := g.active[e]
		cs = append(cs, ForceNotApplicable{
			Parent:        e.Parent,
			Child:         e.Child,
			Active:        maskLabels(mask),
			NotApplicable: g.cards[e.Child],
			mask:          mask,
		})
	}
	if !g.optional {
		for c, ps := range g.parents {
			if len(ps) == 0 {
				continue
			}
			gates := make([]Gate, len(ps))
			for i, p := range ps {
				mask := g.active[Edge{Parent: p, Child: c}]
				gates[i] = Gate{Parent: p, Active: maskLabels(mask), mask: mask}
			}
			cs = append(cs, RequireApplicable{Child: c, Gates: gates, NotApplicable: g.cards[c]})
		}
	}

	sort.SliceStable(cs, func(a, b int) bool {
		pa, pb := g.position[cs[a].Target()], g.position[cs[b].Target()]
		if pa != pb {
			return pa < pb
		}
		if cs[a].Kind() != cs[b].Kind() {
			return cs[a].Kind() < cs[b].Kind()
		}
		return cs[a].Tasks()[0] < cs[b].Tasks()[0]
	})
	g.constraints = cs
}

// maxTask returns the largest task index a constraint reads, which is the
// enumeration depth at which it becomes decidable.
func maxTask(c Constraint) int {
	m := -1
	for _, t := range c.Tasks() {
		if t > m {
			m = t
		}
	}
	return m
}
