package taskgraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

func TestNewRejectsInvalidGraphs(t *testing.T) {
	tests := []struct {
		name       string
		cards      []int
		edges      []Edge
		opts       []Option
		wantTask   int
		wantParent int
		wantChild  int
	}{
		{name: "no tasks", cards: nil, wantTask: -1, wantParent: -1, wantChild: -1},
		{name: "zero cardinality", cards: []int{2, 0}, wantTask: 1, wantParent: -1, wantChild: -1},
		{name: "parent out of range", cards: []int{2, 3}, edges: []Edge{{5, 1}}, wantTask: -1, wantParent: 5, wantChild: 1},
		{name: "child out of range", cards: []int{2, 3}, edges: []Edge{{0, -1}}, wantTask: -1, wantParent: 0, wantChild: -1},
		{name: "self edge", cards: []int{2, 3}, edges: []Edge{{1, 1}}, wantTask: -1, wantParent: 1, wantChild: 1},
		{name: "duplicate edge", cards: []int{2, 3}, edges: []Edge{{0, 1}, {0, 1}}, wantTask: -1, wantParent: 0, wantChild: 1},
		{name: "child cardinality one", cards: []int{2, 1}, edges: []Edge{{0, 1}}, wantTask: 1, wantParent: -1, wantChild: -1},
		{name: "cycle", cards: []int{3, 3, 3}, edges: []Edge{{0, 1}, {1, 2}, {2, 1}}, wantTask: 1, wantParent: -1, wantChild: -1},
		{name: "two cycles report the lowest task", cards: []int{3, 3, 3, 3}, edges: []Edge{{2, 3}, {3, 2}, {0, 1}, {1, 0}}, wantTask: 0, wantParent: -1, wantChild: -1},
		{name: "too many children", cards: []int{2, 2, 2, 2}, edges: []Edge{{0, 1}, {0, 2}, {0, 3}}, wantTask: 0, wantParent: -1, wantChild: -1},
		{
			name: "activation on missing edge", cards: []int{2, 3}, edges: []Edge{{0, 1}},
			opts: []Option{WithActivation(1, 0, 1)}, wantTask: -1, wantParent: 1, wantChild: 0,
		},
		{
			name: "activation by parent NOT-APPLICABLE", cards: []int{2, 3, 2}, edges: []Edge{{0, 1}, {1, 2}},
			opts: []Option{WithActivation(1, 2, 3)}, wantTask: -1, wantParent: 1, wantChild: 2,
		},
		{
			name: "empty activation", cards: []int{2, 3}, edges: []Edge{{0, 1}},
			opts: []Option{WithActivation(0, 1)}, wantTask: -1, wantParent: 0, wantChild: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cards, tt.edges, tt.opts...)
			require.Error(t, err)

			var cerr *errors.ConfigurationError
			require.True(t, errors.As(err, &cerr), "want ConfigurationError, got %T: %v", err, err)
			assert.Equal(t, tt.wantTask, cerr.Task, "task")
			assert.Equal(t, tt.wantParent, cerr.Parent, "parent")
			assert.Equal(t, tt.wantChild, cerr.Child, "child")
		})
	}
}

func TestNewAccessors(t *testing.T) {
	g, err := New([]int{2, 3, 3}, []Edge{{0, 1}, {0, 2}})
	require.NoError(t, err)

	assert.Equal(t, 3, g.NumTasks())
	assert.Equal(t, 3, g.Cardinality(1))
	assert.Equal(t, []int{2, 3, 3}, g.Cardinalities())
	assert.Equal(t, []int{1, 2}, g.Children(0))
	assert.Equal(t, []int{0}, g.Parents(2))
	assert.Empty(t, g.Parents(0))
	assert.Equal(t, []int{0, 1, 2}, g.TopologicalOrder())
	assert.Equal(t, "TaskGraph{K=[2 3 3] edges=[0->1 0->2]}", g.String())

	_, ok := g.NotApplicable(0)
	assert.False(t, ok, "roots have no NOT-APPLICABLE class")
	na, ok := g.NotApplicable(2)
	assert.True(t, ok)
	assert.Equal(t, 3, na)

	assert.True(t, g.Activates(Edge{0, 1}, 1))
	assert.False(t, g.Activates(Edge{0, 1}, 2))
	assert.True(t, g.Activates(Edge{0, 2}, 2))
	assert.False(t, g.Activates(Edge{1, 2}, 1), "missing edge never activates")

	cards := g.Cardinalities()
	cards[0] = 99
	assert.Equal(t, 2, g.Cardinality(0), "Cardinalities must return a copy")
}

func TestTopologicalOrderBreaksTiesByIndex(t *testing.T) {
	g, err := New([]int{3, 3, 2, 2}, []Edge{{3, 0}, {2, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 3, 0}, g.TopologicalOrder())
}

func TestIsFeasibleTwoTaskHierarchy(t *testing.T) {
	defaultGraph, err := New([]int{2, 3}, []Edge{{0, 1}})
	require.NoError(t, err)
	activatedBy2, err := New([]int{2, 3}, []Edge{{0, 1}}, WithActivation(0, 1, 2))
	require.NoError(t, err)
	oneWay, err := New([]int{2, 3}, []Edge{{0, 1}}, WithActivation(0, 1, 2), WithOptionalApplicability())
	require.NoError(t, err)

	tests := []struct {
		v                          Vector
		wantDefault, wantBy2, want1Way bool
	}{
		{Vector{1, 1}, true, false, false},
		{Vector{1, 2}, true, false, false},
		{Vector{1, 3}, false, true, true},
		{Vector{2, 1}, false, true, true},
		{Vector{2, 2}, false, true, true},
		{Vector{2, 3}, true, false, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantDefault, defaultGraph.IsFeasible(tt.v), "default %v", tt.v)
		assert.Equal(t, tt.wantBy2, activatedBy2.IsFeasible(tt.v), "WithActivation %v", tt.v)
		assert.Equal(t, tt.want1Way, oneWay.IsFeasible(tt.v), "one-way %v", tt.v)
	}

	for _, bad := range []Vector{nil, {1}, {0, 1}, {3, 3}, {1, 4}, {1, 1, 1}} {
		assert.False(t, defaultGraph.IsFeasible(bad), "%v", bad)
	}
}

func TestIsFeasibleChainsThroughLevels(t *testing.T) {
	// 0 -> 1 -> 2; task 1 label 3 is its NOT-APPLICABLE class.
	g, err := New([]int{2, 3, 2}, []Edge{{0, 1}, {1, 2}})
	require.NoError(t, err)

	assert.True(t, g.IsFeasible(Vector{1, 1, 1}))
	assert.True(t, g.IsFeasible(Vector{1, 2, 2}))
	assert.False(t, g.IsFeasible(Vector{1, 1, 2}), "activated grandchild must be applicable")
	assert.True(t, g.IsFeasible(Vector{2, 3, 2}))
	assert.False(t, g.IsFeasible(Vector{2, 3, 1}), "NOT-APPLICABLE parent activates nothing")
}

func TestIsFeasibleMultipleParentsIsConjunctive(t *testing.T) {
	g, err := New([]int{2, 2, 2}, []Edge{{0, 2}, {1, 2}})
	require.NoError(t, err)

	assert.True(t, g.IsFeasible(Vector{1, 1, 1}))
	assert.False(t, g.IsFeasible(Vector{1, 1, 2}))
	assert.True(t, g.IsFeasible(Vector{1, 2, 2}))
	assert.False(t, g.IsFeasible(Vector{2, 1, 1}))
	assert.True(t, g.IsFeasible(Vector{2, 2, 2}))
}

func TestConstraintsAreOrderedByTargetPosition(t *testing.T) {
	g, err := New([]int{3, 2, 3, 2}, []Edge{{2, 1}, {0, 2}, {0, 3}})
	require.NoError(t, err)

	type summary struct {
		Kind   ConstraintKind
		Target int
		Tasks  []int
	}
	var got []summary
	for _, c := range g.Constraints() {
		got = append(got, summary{c.Kind(), c.Target(), c.Tasks()})
	}
	want := []summary{
		{KindForceNotApplicable, 2, []int{0, 2}},
		{KindRequireApplicable, 2, []int{0, 2}},
		{KindForceNotApplicable, 1, []int{2, 1}},
		{KindRequireApplicable, 1, []int{2, 1}},
		{KindForceNotApplicable, 3, []int{0, 3}},
		{KindRequireApplicable, 3, []int{0, 3}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("constraint order mismatch (-want +got):\n%s", diff)
	}

	force, ok := g.Constraints()[4].(ForceNotApplicable)
	require.True(t, ok)
	assert.Equal(t, []int{2}, force.Active)
	assert.Equal(t, 2, force.NotApplicable)
}
