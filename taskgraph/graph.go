package taskgraph

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// Edge is a directed dependency from Parent to Child.
type Edge struct {
	Parent int
	Child  int
}

// Vector is a joint assignment of 1-based labels, one per task.
type Vector []int

// Option configures a TaskGraph.
type Option func(*options)

type options struct {
	activation map[Edge][]int
	optional   bool
}

// WithActivation sets the parent labels that activate child, replacing the
// default of the child's position among the parent's children.
func WithActivation(parent, child int, labels ...int) Option {
	return func(o *options) {
		if o.activation == nil {
			o.activation = make(map[Edge][]int)
		}
		o.activation[Edge{Parent: parent, Child: child}] = append([]int(nil), labels...)
	}
}

// WithOptionalApplicability allows an activated child to take its
// NOT-APPLICABLE label. Without it activation forces an applicable label.
func WithOptionalApplicability() Option {
	return func(o *options) {
		o.optional = true
	}
}

// TaskGraph is an immutable, validated task dependency graph.
type TaskGraph struct {
	cards    []int
	edges    []Edge
	parents  [][]int
	children [][]int
	active   map[Edge][]bool
	order    []int
	position []int
	optional bool

	constraints []Constraint

	fsOnce sync.Once
	fs     *FeasibleSet
	fsErr  error
}

// New validates the cardinalities and edges and builds the constraint list.
// Any violation is reported as a *errors.ConfigurationError naming the task
// or edge at fault.
func New(cardinalities []int, edges []Edge, opts ...Option) (*TaskGraph, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	t := len(cardinalities)
	if t == 0 {
		return nil, errors.NewConfigurationError(-1, "at least one task is required")
	}
	for i, k := range cardinalities {
		if k < 1 {
			return nil, errors.NewConfigurationError(i, fmt.Sprintf("cardinality must be at least 1, got %d", k))
		}
	}

	g := &TaskGraph{
		cards:    append([]int(nil), cardinalities...),
		edges:    append([]Edge(nil), edges...),
		parents:  make([][]int, t),
		children: make([][]int, t),
		active:   make(map[Edge][]bool, len(edges)),
		optional: o.optional,
	}

	seen := make(map[Edge]bool, len(edges))
	for _, e := range edges {
		switch {
		case e.Parent < 0 || e.Parent >= t:
			return nil, errors.NewEdgeConfigurationError(e.Parent, e.Child, fmt.Sprintf("parent task out of range [0, %d)", t))
		case e.Child < 0 || e.Child >= t:
			return nil, errors.NewEdgeConfigurationError(e.Parent, e.Child, fmt.Sprintf("child task out of range [0, %d)", t))
		case e.Parent == e.Child:
			return nil, errors.NewEdgeConfigurationError(e.Parent, e.Child, "self-edge")
		case seen[e]:
			return nil, errors.NewEdgeConfigurationError(e.Parent, e.Child, "duplicate edge")
		}
		seen[e] = true
		g.parents[e.Child] = append(g.parents[e.Child], e.Parent)
		g.children[e.Parent] = append(g.children[e.Parent], e.Child)
	}

	for c := range g.parents {
		if len(g.parents[c]) > 0 && g.cards[c] < 2 {
			return nil, errors.NewConfigurationError(c,
				fmt.Sprintf("child task needs cardinality at least 2 to hold a NOT-APPLICABLE class, got %d", g.cards[c]))
		}
	}

	if err := g.sortTopologically(); err != nil {
		return nil, err
	}
	if err := g.resolveActivation(o.activation); err != nil {
		return nil, err
	}
	g.buildConstraints()
	return g, nil
}

// sortTopologically rejects cycles and records the topological order in
// which, among the tasks whose parents are all placed, the smallest index
// comes first. Constraint evaluation and enumeration rely on that exact
// order, which no topo.Sort stabilizer yields, so gonum only reports the
// strongly connected components here.
func (g *TaskGraph) sortTopologically() error {
	dg := simple.NewDirectedGraph()
	for i := range g.cards {
		dg.AddNode(simple.Node(i))
	}
	for _, e := range g.edges {
		dg.SetEdge(dg.NewEdge(simple.Node(e.Parent), simple.Node(e.Child)))
	}

	var cycle []int
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]int, len(scc))
		for i, n := range scc {
			ids[i] = int(n.ID())
		}
		sort.Ints(ids)
		if cycle == nil || ids[0] < cycle[0] {
			cycle = ids
		}
	}
	if cycle != nil {
		return errors.NewConfigurationError(cycle[0], fmt.Sprintf("dependency cycle through tasks %v", cycle))
	}

	t := len(g.cards)
	pending := make([]int, t)
	var ready []int
	for i := 0; i < t; i++ {
		pending[i] = len(g.parents[i])
		if pending[i] == 0 {
			ready = append(ready, i)
		}
	}
	g.order = make([]int, 0, t)
	g.position = make([]int, t)
	for len(ready) > 0 {
		sort.Ints(ready)
		next := ready[0]
		ready = ready[1:]
		g.position[next] = len(g.order)
		g.order = append(g.order, next)
		for _, c := range g.children[next] {
			pending[c]--
			if pending[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	return nil
}

func (g *TaskGraph) resolveActivation(overrides map[Edge][]int) error {
	for e := range overrides {
		if _, ok := g.edgeIndex(e); !ok {
			return errors.NewEdgeConfigurationError(e.Parent, e.Child, "activation given for an edge that does not exist")
		}
	}

	for p, kids := range g.children {
		maxLabel := g.cards[p]
		if len(g.parents[p]) > 0 {
			maxLabel-- // the parent's own NOT-APPLICABLE label never activates
		}
		for i, c := range kids {
			e := Edge{Parent: p, Child: c}
			labels, ok := overrides[e]
			if !ok {
				if i+1 > maxLabel {
					return errors.NewConfigurationError(p, fmt.Sprintf(
						"task has %d children but only %d applicable labels; use WithActivation", len(kids), maxLabel))
				}
				labels = []int{i + 1}
			}
			if len(labels) == 0 {
				return errors.NewEdgeConfigurationError(p, c, "activation needs at least one parent label")
			}
			mask := make([]bool, g.cards[p]+1)
			for _, l := range labels {
				if l < 1 || l > maxLabel {
					return errors.NewEdgeConfigurationError(p, c,
						fmt.Sprintf("activation label %d outside the parent's applicable labels [1, %d]", l, maxLabel))
				}
				mask[l] = true
			}
			g.active[e] = mask
		}
	}
	return nil
}

func (g *TaskGraph) edgeIndex(e Edge) (int, bool) {
	for i, x := range g.edges {
		if x == e {
			return i, true
		}
	}
	return -1, false
}

// NumTasks returns the number of tasks.
func (g *TaskGraph) NumTasks() int { return len(g.cards) }

// Cardinality returns K_t.
func (g *TaskGraph) Cardinality(t int) int { return g.cards[t] }

// Cardinalities returns a copy of all cardinalities.
func (g *TaskGraph) Cardinalities() []int { return append([]int(nil), g.cards...) }

// Edges returns a copy of the edges in the order they were given.
func (g *TaskGraph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// Parents returns the parents of task t in edge order.
func (g *TaskGraph) Parents(t int) []int { return append([]int(nil), g.parents[t]...) }

// Children returns the children of task t in edge order.
func (g *TaskGraph) Children(t int) []int { return append([]int(nil), g.children[t]...) }

// TopologicalOrder returns the tasks with every parent before its children.
func (g *TaskGraph) TopologicalOrder() []int { return append([]int(nil), g.order...) }

// NotApplicable returns the NOT-APPLICABLE label of t. Root tasks have none.
func (g *TaskGraph) NotApplicable(t int) (label int, ok bool) {
	if len(g.parents[t]) == 0 {
		return 0, false
	}
	return g.cards[t], true
}

// Activates reports whether parentLabel on the edge's parent activates its
// child. It returns false for an edge that is not in the graph.
func (g *TaskGraph) Activates(e Edge, parentLabel int) bool {
	mask, ok := g.active[e]
	return ok && parentLabel >= 1 && parentLabel < len(mask) && mask[parentLabel]
}

// Constraints returns the constraint list in evaluation order.
func (g *TaskGraph) Constraints() []Constraint {
	return append([]Constraint(nil), g.constraints...)
}

// IsFeasible reports whether v has one in-range label per task and satisfies
// every constraint.
func (g *TaskGraph) IsFeasible(v Vector) bool {
	if len(v) != len(g.cards) {
		return false
	}
	for t, y := range v {
		if y < 1 || y > g.cards[t] {
			return false
		}
	}
	for _, c := range g.constraints {
		if !c.Satisfied(v) {
			return false
		}
	}
	return true
}

// FeasibleSet enumerates the feasible vectors on first use and caches them.
func (g *TaskGraph) FeasibleSet() (*FeasibleSet, error) {
	g.fsOnce.Do(func() {
		g.fs, g.fsErr = Enumerate(g)
	})
	return g.fs, g.fsErr
}

// String returns a compact description such as "TaskGraph{K=[2 3 3] edges=[0->1 0->2]}".
func (g *TaskGraph) String() string {
	s := fmt.Sprintf("TaskGraph{K=%v edges=[", g.cards)
	for i, e := range g.edges {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d->%d", e.Parent, e.Child)
	}
	return s + "]}"
}
