package synthetic

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

func hierarchy(t *testing.T) *taskgraph.FeasibleSet {
	t.Helper()
	g, err := taskgraph.New([]int{2, 3, 3}, []taskgraph.Edge{{Parent: 0, Child: 1}, {Parent: 0, Child: 2}})
	require.NoError(t, err)
	fs, err := g.FeasibleSet()
	require.NoError(t, err)
	return fs
}

func TestGenerateShapesAndGold(t *testing.T) {
	fs := hierarchy(t)
	ds, err := Generate(fs, DefaultConfig(50, 6, 1))
	require.NoError(t, err)

	require.Len(t, ds.L, 3)
	require.Len(t, ds.Gold, 3)
	assert.Equal(t, 50, ds.Len())
	for task, Lt := range ds.L {
		r, c := Lt.Dims()
		assert.Equal(t, 50, r)
		assert.Equal(t, 6, c)
		require.Len(t, ds.Gold[task], 50)
	}
	for i, y := range ds.Truth {
		v := fs.Vector(y)
		for task := range v {
			assert.Equal(t, v[task], ds.Gold[task][i])
		}
	}
	for j := range ds.Accuracies {
		assert.GreaterOrEqual(t, ds.Accuracies[j], 0.7)
		assert.LessOrEqual(t, ds.Accuracies[j], 0.95)
		assert.GreaterOrEqual(t, ds.Coverages[j], 0.4)
		assert.LessOrEqual(t, ds.Coverages[j], 0.9)
	}
}

func TestGenerateVotesAreFeasibleVectors(t *testing.T) {
	fs := hierarchy(t)
	ds, err := Generate(fs, DefaultConfig(80, 5, 3))
	require.NoError(t, err)

	for i := 0; i < ds.Len(); i++ {
		for j := 0; j < 5; j++ {
			vote := make(taskgraph.Vector, 3)
			voted := false
			for task, Lt := range ds.L {
				vote[task] = int(Lt.At(i, j))
				voted = voted || vote[task] != 0
			}
			if !voted {
				continue
			}
			_, ok := fs.Index(vote)
			assert.True(t, ok, "example %d LF %d voted %v", i, j, vote)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	fs := hierarchy(t)
	cfg := DefaultConfig(40, 4, 11)
	cfg.TaskAbstain = 0.3

	a, err := Generate(fs, cfg)
	require.NoError(t, err)
	b, err := Generate(fs, cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(a.Gold, b.Gold); diff != "" {
		t.Errorf("gold differs (-a +b):\n%s", diff)
	}
	for task := range a.L {
		assert.True(t, mat.Equal(a.L[task], b.L[task]), "task %d", task)
	}

	cfg.Seed = 12
	c, err := Generate(fs, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Truth, c.Truth)
}

func TestGenerateTaskAbstainKeepsOneTask(t *testing.T) {
	fs := hierarchy(t)
	cfg := DefaultConfig(60, 4, 5)
	cfg.CoverageMin, cfg.CoverageMax = 1, 1
	cfg.TaskAbstain = 0.9

	ds, err := Generate(fs, cfg)
	require.NoError(t, err)
	for i := 0; i < ds.Len(); i++ {
		for j := 0; j < 4; j++ {
			voted := false
			for _, Lt := range ds.L {
				voted = voted || Lt.At(i, j) != 0
			}
			assert.True(t, voted, "example %d LF %d", i, j)
		}
	}
}

func TestSplit(t *testing.T) {
	fs := hierarchy(t)
	ds, err := Generate(fs, DefaultConfig(30, 3, 2))
	require.NoError(t, err)

	head, tail := ds.Split(20)
	assert.Equal(t, 20, head.Len())
	assert.Equal(t, 10, tail.Len())
	for task := range ds.L {
		for j := 0; j < 3; j++ {
			assert.Equal(t, ds.L[task].At(25, j), tail.L[task].At(5, j))
			assert.Equal(t, ds.L[task].At(3, j), head.L[task].At(3, j))
		}
		assert.Equal(t, ds.Gold[task][20:], tail.Gold[task])
	}
	assert.Len(t, tail.Matrices(), 3)
	assert.Panics(t, func() { ds.Split(31) })
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	fs := hierarchy(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no examples", func(c *Config) { c.Examples = 0 }},
		{"no labeling functions", func(c *Config) { c.LabelingFunctions = 0 }},
		{"accuracy range", func(c *Config) { c.AccuracyMin, c.AccuracyMax = 0.9, 0.8 }},
		{"coverage above one", func(c *Config) { c.CoverageMax = 1.5 }},
		{"task abstain", func(c *Config) { c.TaskAbstain = 1 }},
		{"class balance length", func(c *Config) { c.ClassBalance = []float64{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(10, 2, 0)
			tt.mutate(&cfg)
			_, err := Generate(fs, cfg)
			var verr *errors.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}
