package labelmodel

import (
	"fmt"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
)

// TieBreak selects how Predict resolves equally probable labels.
type TieBreak string

const (
	// TieBreakRandom picks uniformly among the tied labels with a generator
	// seeded from the training seed.
	TieBreakRandom TieBreak = "random"
	// TieBreakFirst picks the smallest tied label.
	TieBreakFirst TieBreak = "first"
)

// tieTolerance is the probability gap below which labels count as tied.
const tieTolerance = 1e-5

// Default hyperparameters.
const (
	DefaultEpochs            = 100
	DefaultLogInterval       = 10
	DefaultLearningRate      = 0.01
	DefaultMomentum          = 0.9
	DefaultPrecisionInit     = 0.7
	DefaultPlateauThreshold  = 0.05
	defaultBeta1             = 0.9
	defaultBeta2             = 0.999
	defaultEpsilon           = 1e-8
	defaultPredictClipLow    = 0.01
	defaultPredictClipHigh   = 0.99
	predictParallelThreshold = 512
)

// trainConfig holds every training hyperparameter.
type trainConfig struct {
	epochs       int
	seed         int64
	logInterval  int
	optimizer    Optimizer
	learningRate float64
	momentum     float64
	l2           float64
	precInit     []float64
	classBalance []float64
	clipNorm     float64
	plateau      float64
	tieBreak     TieBreak
	callbacks    []Callback
	logger       log.Logger
}

func defaultTrainConfig() *trainConfig {
	return &trainConfig{
		epochs:       DefaultEpochs,
		logInterval:  DefaultLogInterval,
		optimizer:    OptimizerAdam,
		learningRate: DefaultLearningRate,
		momentum:     DefaultMomentum,
		plateau:      DefaultPlateauThreshold,
		tieBreak:     TieBreakRandom,
	}
}

func (c *trainConfig) clone() *trainConfig {
	cp := *c
	cp.precInit = append([]float64(nil), c.precInit...)
	cp.classBalance = append([]float64(nil), c.classBalance...)
	cp.callbacks = append([]Callback(nil), c.callbacks...)
	return &cp
}

func (c *trainConfig) stepConfig() StepConfig {
	return StepConfig{
		Optimizer:    c.optimizer,
		LearningRate: c.learningRate,
		Momentum:     c.momentum,
		Beta1:        defaultBeta1,
		Beta2:        defaultBeta2,
		Epsilon:      defaultEpsilon,
		ClipNorm:     c.clipNorm,
	}
}

// validate checks everything that does not depend on the data. Lengths of
// precInit and classBalance are checked in Train.
func (c *trainConfig) validate() error {
	switch {
	case c.epochs < 1:
		return errors.NewValidationError("epochs", "must be at least 1", c.epochs)
	case c.logInterval < 0:
		return errors.NewValidationError("log_interval", "must be non-negative", c.logInterval)
	case c.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", c.learningRate)
	case c.momentum < 0 || c.momentum >= 1:
		return errors.NewValidationError("momentum", "must be in [0, 1)", c.momentum)
	case c.l2 < 0:
		return errors.NewValidationError("l2", "must be non-negative", c.l2)
	case c.clipNorm < 0:
		return errors.NewValidationError("clip_norm", "must be non-negative", c.clipNorm)
	case c.plateau < 0:
		return errors.NewValidationError("plateau_threshold", "must be non-negative", c.plateau)
	}
	if _, err := ParseOptimizer(string(c.optimizer)); err != nil {
		return err
	}
	if c.tieBreak != TieBreakRandom && c.tieBreak != TieBreakFirst {
		return errors.NewValidationError("tie_break", "must be 'random' or 'first'", c.tieBreak)
	}
	for _, p := range c.precInit {
		if p <= 0 || p > 1 {
			return errors.NewValidationError("prec_init", "entries must be in (0, 1]", p)
		}
	}
	return nil
}

// precisions expands precInit to one value per labeling function.
func (c *trainConfig) precisions(m int) ([]float64, error) {
	prec := make([]float64, m)
	switch len(c.precInit) {
	case 0:
		for j := range prec {
			prec[j] = DefaultPrecisionInit
		}
	case 1:
		for j := range prec {
			prec[j] = c.precInit[0]
		}
	case m:
		copy(prec, c.precInit)
	default:
		return nil, errors.NewValidationError("prec_init",
			fmt.Sprintf("needs 1 or %d entries (one per labeling function)", m), len(c.precInit))
	}
	return prec, nil
}

// Option configures a LabelModel at construction or a single Train call.
type Option func(*trainConfig)

// WithEpochs sets the number of optimizer epochs.
func WithEpochs(epochs int) Option {
	return func(c *trainConfig) { c.epochs = epochs }
}

// WithSeed sets the seed of the initial scale draw and of random tie breaking.
func WithSeed(seed int64) Option {
	return func(c *trainConfig) { c.seed = seed }
}

// WithLogInterval logs the loss every n epochs at Info level; 0 disables it.
func WithLogInterval(n int) Option {
	return func(c *trainConfig) { c.logInterval = n }
}

// WithOptimizer selects adam (default), sgd or lbfgs.
func WithOptimizer(o Optimizer) Option {
	return func(c *trainConfig) { c.optimizer = o }
}

// WithLearningRate sets the step size of adam and sgd.
func WithLearningRate(lr float64) Option {
	return func(c *trainConfig) { c.learningRate = lr }
}

// WithMomentum sets the sgd momentum.
func WithMomentum(momentum float64) Option {
	return func(c *trainConfig) { c.momentum = momentum }
}

// WithL2 sets the strength of the penalty pulling μ toward its initial value.
func WithL2(l2 float64) Option {
	return func(c *trainConfig) { c.l2 = l2 }
}

// WithPrecisionInit sets the prior precision of every labeling function
// (one value) or of each labeling function (one value per column).
func WithPrecisionInit(prec ...float64) Option {
	return func(c *trainConfig) { c.precInit = append([]float64(nil), prec...) }
}

// WithClassBalance sets the prior over feasible label vectors, in feasible
// set order. The default is uniform.
func WithClassBalance(p []float64) Option {
	return func(c *trainConfig) { c.classBalance = append([]float64(nil), p...) }
}

// WithGradientClip caps the L2 norm of every gradient; 0 disables it.
func WithGradientClip(maxNorm float64) Option {
	return func(c *trainConfig) { c.clipNorm = maxNorm }
}

// WithPlateauThreshold sets the final loss above which training warns.
// 0 disables the check.
func WithPlateauThreshold(threshold float64) Option {
	return func(c *trainConfig) { c.plateau = threshold }
}

// WithTieBreak selects how Predict resolves ties.
func WithTieBreak(tb TieBreak) Option {
	return func(c *trainConfig) { c.tieBreak = tb }
}

// WithCallbacks adds per-epoch callbacks.
func WithCallbacks(callbacks ...Callback) Option {
	return func(c *trainConfig) { c.callbacks = append(c.callbacks, callbacks...) }
}

// WithLogger replaces the logger, which defaults to
// log.GetLoggerWithName("labelmodel").
func WithLogger(logger log.Logger) Option {
	return func(c *trainConfig) { c.logger = logger }
}
