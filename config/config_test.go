package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

func TestLoadHierarchy(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "hierarchy.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []int{2, 3, 3}, cfg.TaskGraph.Cardinalities)
	assert.Equal(t, 200, cfg.Train.Epochs)
	assert.Equal(t, int64(42), cfg.Train.Seed)
	require.NotNil(t, cfg.Train.LogInterval)
	assert.Equal(t, 0, *cfg.Train.LogInterval)
	assert.Equal(t, 30*time.Second, cfg.Train.TimeLimit)
	require.NotNil(t, cfg.Train.EarlyStopping)
	assert.Equal(t, 25, cfg.Train.EarlyStopping.Patience)

	g, err := cfg.NewTaskGraph()
	require.NoError(t, err)
	assert.Equal(t, []taskgraph.Edge{{Parent: 0, Child: 1}, {Parent: 0, Child: 2}}, g.Edges())

	lm, err := cfg.NewLabelModel()
	require.NoError(t, err)
	params := lm.GetParams()
	assert.Equal(t, 200, params["epochs"])
	assert.Equal(t, int64(42), params["seed"])
	assert.Equal(t, 0, params["log_interval"])
	assert.Equal(t, "first", params["tie_break"])
	assert.Equal(t, []float64{0.7}, params["prec_init"])
}

func TestParseActivationOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
task_graph:
  cardinalities: [2, 3]
  edges:
    - {parent: 0, child: 1, activate: [2]}
  optional_applicability: true
`))
	require.NoError(t, err)

	g, err := cfg.NewTaskGraph()
	require.NoError(t, err)
	fs, err := g.FeasibleSet()
	require.NoError(t, err)
	assert.Equal(t, []taskgraph.Vector{{1, 3}, {2, 1}, {2, 2}, {2, 3}}, fs.Vectors())

	// No training section: defaults apart from seed and l2.
	lm, err := cfg.NewLabelModel()
	require.NoError(t, err)
	assert.Equal(t, 100, lm.GetParams()["epochs"])
}

func TestParseRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing cardinalities", "task_graph: {}\n", "task_graph.cardinalities"},
		{"zero cardinality", "task_graph: {cardinalities: [2, 0]}\n", "task_graph.cardinalities[1]"},
		{"negative parent", "task_graph: {cardinalities: [2, 3], edges: [{parent: -1, child: 1}]}\n", "task_graph.edges[0].parent"},
		{"activation label", "task_graph: {cardinalities: [2, 3], edges: [{parent: 0, child: 1, activate: [0]}]}\n", "task_graph.edges[0].activate[0]"},
		{"optimizer", "task_graph: {cardinalities: [2]}\ntrain: {optimizer: rmsprop}\n", "train.optimizer"},
		{"epochs", "task_graph: {cardinalities: [2]}\ntrain: {epochs: -5}\n", "train.epochs"},
		{"momentum", "task_graph: {cardinalities: [2]}\ntrain: {momentum: 1.0}\n", "train.momentum"},
		{"prec init", "task_graph: {cardinalities: [2]}\ntrain: {prec_init: [1.2]}\n", "train.prec_init[0]"},
		{"patience", "task_graph: {cardinalities: [2]}\ntrain: {early_stopping: {patience: 0}}\n", "train.early_stopping.patience"},
		{"log level", "log_level: loud\ntask_graph: {cardinalities: [2]}\n", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.ParamName)
		})
	}
}

func TestParseRejectsUnknownKeysAndBadYAML(t *testing.T) {
	_, err := Parse([]byte("task_graph: {cardinalities: [2]}\ntrain: {epoch: 3}\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("task_graph: [\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("task_graph: {cardinalities: [2]}\ntrain: {time_limit: soon}\n"))
	assert.Error(t, err)
}

func TestNewTaskGraphReportsCycles(t *testing.T) {
	cfg, err := Parse([]byte(`
task_graph:
  cardinalities: [3, 3]
  edges:
    - {parent: 0, child: 1}
    - {parent: 1, child: 0}
`))
	require.NoError(t, err)

	_, err = cfg.NewTaskGraph()
	var cerr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cerr), "got %v", err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
