// Package config loads a task graph and label model training settings from
// YAML.
//
//	log_level: info
//	task_graph:
//	  cardinalities: [2, 3, 3]
//	  edges:
//	    - {parent: 0, child: 1}
//	    - {parent: 0, child: 2, activate: [2]}
//	train:
//	  epochs: 200
//	  seed: 42
//	  optimizer: adam
//	  early_stopping: {patience: 20, min_delta: 1e-6}
//
// Unset training fields keep the labelmodel defaults.
package config

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/weaksup/labelmodel"
	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

// Config is the root of a configuration file.
type Config struct {
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	TaskGraph TaskGraphConfig `yaml:"task_graph"`
	Train     TrainConfig     `yaml:"train"`
}

// TaskGraphConfig mirrors taskgraph.New.
type TaskGraphConfig struct {
	Cardinalities         []int        `yaml:"cardinalities" validate:"required,min=1,dive,gte=1"`
	Edges                 []EdgeConfig `yaml:"edges" validate:"dive"`
	OptionalApplicability bool         `yaml:"optional_applicability"`
}

// EdgeConfig is one parent → child edge. Activate overrides the parent
// labels that activate the child.
type EdgeConfig struct {
	Parent   int   `yaml:"parent" validate:"gte=0"`
	Child    int   `yaml:"child" validate:"gte=0"`
	Activate []int `yaml:"activate" validate:"omitempty,dive,gte=1"`
}

// TrainConfig holds labelmodel training options. Pointer fields
// distinguish an explicit zero from unset.
type TrainConfig struct {
	Epochs           int                  `yaml:"epochs" validate:"omitempty,gte=1"`
	Seed             int64                `yaml:"seed"`
	LogInterval      *int                 `yaml:"log_interval" validate:"omitempty,gte=0"`
	Optimizer        string               `yaml:"optimizer" validate:"omitempty,oneof=adam sgd lbfgs"`
	LearningRate     float64              `yaml:"learning_rate" validate:"omitempty,gt=0"`
	Momentum         *float64             `yaml:"momentum" validate:"omitempty,gte=0,lt=1"`
	L2               float64              `yaml:"l2" validate:"gte=0"`
	PrecisionInit    []float64            `yaml:"prec_init" validate:"omitempty,dive,gt=0,lte=1"`
	ClassBalance     []float64            `yaml:"class_balance" validate:"omitempty,dive,gt=0"`
	GradientClip     float64              `yaml:"gradient_clip" validate:"gte=0"`
	PlateauThreshold *float64             `yaml:"plateau_threshold" validate:"omitempty,gte=0"`
	TieBreak         string               `yaml:"tie_break" validate:"omitempty,oneof=random first"`
	EarlyStopping    *EarlyStoppingConfig `yaml:"early_stopping"`
	TimeLimit        time.Duration        `yaml:"time_limit" validate:"gte=0"`
}

// EarlyStoppingConfig configures labelmodel.EarlyStopping.
type EarlyStoppingConfig struct {
	Patience int     `yaml:"patience" validate:"gte=1"`
	MinDelta float64 `yaml:"min_delta" validate:"gte=0"`
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Parse decodes and validates a YAML document. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decoding YAML")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}
	return Parse(data)
}

// Validate checks field ranges. The first failing field is reported as a
// *errors.ValidationError named by its YAML path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		reason := "failed '" + fe.Tag() + "'"
		if fe.Param() != "" {
			reason += " " + fe.Param()
		}
		return errors.NewValidationError(path, reason, fe.Value())
	}
	return errors.Wrap(err, "config: validation")
}

// NewTaskGraph builds the configured task graph.
func (c *Config) NewTaskGraph() (*taskgraph.TaskGraph, error) {
	edges := make([]taskgraph.Edge, len(c.TaskGraph.Edges))
	var opts []taskgraph.Option
	for i, e := range c.TaskGraph.Edges {
		edges[i] = taskgraph.Edge{Parent: e.Parent, Child: e.Child}
		if len(e.Activate) > 0 {
			opts = append(opts, taskgraph.WithActivation(e.Parent, e.Child, e.Activate...))
		}
	}
	if c.TaskGraph.OptionalApplicability {
		opts = append(opts, taskgraph.WithOptionalApplicability())
	}
	return taskgraph.New(c.TaskGraph.Cardinalities, edges, opts...)
}

// Options converts the training section into labelmodel options.
func (c *Config) Options() []labelmodel.Option {
	t := c.Train
	opts := []labelmodel.Option{labelmodel.WithSeed(t.Seed), labelmodel.WithL2(t.L2)}
	if t.Epochs > 0 {
		opts = append(opts, labelmodel.WithEpochs(t.Epochs))
	}
	if t.LogInterval != nil {
		opts = append(opts, labelmodel.WithLogInterval(*t.LogInterval))
	}
	if t.Optimizer != "" {
		opts = append(opts, labelmodel.WithOptimizer(labelmodel.Optimizer(t.Optimizer)))
	}
	if t.LearningRate > 0 {
		opts = append(opts, labelmodel.WithLearningRate(t.LearningRate))
	}
	if t.Momentum != nil {
		opts = append(opts, labelmodel.WithMomentum(*t.Momentum))
	}
	if len(t.PrecisionInit) > 0 {
		opts = append(opts, labelmodel.WithPrecisionInit(t.PrecisionInit...))
	}
	if len(t.ClassBalance) > 0 {
		opts = append(opts, labelmodel.WithClassBalance(t.ClassBalance))
	}
	if t.GradientClip > 0 {
		opts = append(opts, labelmodel.WithGradientClip(t.GradientClip))
	}
	if t.PlateauThreshold != nil {
		opts = append(opts, labelmodel.WithPlateauThreshold(*t.PlateauThreshold))
	}
	if t.TieBreak != "" {
		opts = append(opts, labelmodel.WithTieBreak(labelmodel.TieBreak(t.TieBreak)))
	}
	if t.EarlyStopping != nil {
		opts = append(opts, labelmodel.WithCallbacks(labelmodel.EarlyStopping(t.EarlyStopping.Patience, t.EarlyStopping.MinDelta)))
	}
	if t.TimeLimit > 0 {
		opts = append(opts, labelmodel.WithCallbacks(labelmodel.TimeLimit(t.TimeLimit)))
	}
	return opts
}

// NewLabelModel builds the task graph and an untrained model with the
// configured options.
func (c *Config) NewLabelModel() (*labelmodel.LabelModel, error) {
	g, err := c.NewTaskGraph()
	if err != nil {
		return nil, err
	}
	return labelmodel.New(g, c.Options()...)
}

// SetupLogging installs the zerolog backend at the configured level.
func (c *Config) SetupLogging() error {
	return log.SetupLogger(c.LogLevel)
}
