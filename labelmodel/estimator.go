package labelmodel

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
)

// Optimizer names the update rule used by the accuracy estimator.
type Optimizer string

const (
	// OptimizerAdam is Adam with bias correction.
	OptimizerAdam Optimizer = "adam"
	// OptimizerSGD is gradient descent with heavy-ball momentum.
	OptimizerSGD Optimizer = "sgd"
	// OptimizerLBFGS is gonum's limited-memory BFGS; one epoch is one major
	// iteration.
	OptimizerLBFGS Optimizer = "lbfgs"
)

// ParseOptimizer converts a case-insensitive name into an Optimizer.
func ParseOptimizer(s string) (Optimizer, error) {
	switch o := Optimizer(strings.ToLower(strings.TrimSpace(s))); o {
	case OptimizerAdam, OptimizerSGD, OptimizerLBFGS:
		return o, nil
	default:
		return "", errors.NewValidationError("optimizer", "must be one of adam, sgd, lbfgs", s)
	}
}

// StepConfig holds the hyperparameters of one gradient update.
type StepConfig struct {
	Optimizer    Optimizer
	LearningRate float64
	Momentum     float64 // sgd
	Beta1        float64 // adam
	Beta2        float64 // adam
	Epsilon      float64 // adam
	ClipNorm     float64 // gradient L2 norm cap, 0 disables
}

// State is the optimizer state after Step updates.
type State struct {
	Mu   *mat.Dense
	Step int
	// Loss[e] is the objective evaluated before update e.
	Loss []float64

	first  *mat.Dense // adam first moment, sgd velocity
	second *mat.Dense // adam second moment
}

// NewState starts an optimization at mu. mu is copied.
func NewState(mu *mat.Dense) State {
	return State{Mu: mat.DenseCopyOf(mu)}
}

// Step evaluates the objective at s.Mu, records the loss and applies one
// update. s is not modified; the returned State owns fresh buffers.
func Step(obj *Objective, s State, cfg StepConfig) State {
	d, k := s.Mu.Dims()
	grad := mat.NewDense(d, k, nil)
	loss := obj.LossGrad(grad, s.Mu)
	errors.ClipGradient(grad.RawMatrix().Data, cfg.ClipNorm)

	next := State{
		Mu:   mat.DenseCopyOf(s.Mu),
		Step: s.Step + 1,
		Loss: append(s.Loss[:len(s.Loss):len(s.Loss)], loss),
	}

	switch cfg.Optimizer {
	case OptimizerSGD:
		velocity := mat.DenseCopyOf(grad)
		if s.first != nil && cfg.Momentum > 0 {
			velocity.Scale(cfg.Momentum, s.first)
			velocity.Add(velocity, grad)
		}
		next.first = velocity
		var update mat.Dense
		update.Scale(cfg.LearningRate, velocity)
		next.Mu.Sub(next.Mu, &update)

	default:
		first := mat.NewDense(d, k, nil)
		second := mat.NewDense(d, k, nil)
		if s.first != nil {
			first.Copy(s.first)
			second.Copy(s.second)
		}
		t := float64(next.Step)
		c1 := 1 - math.Pow(cfg.Beta1, t)
		c2 := 1 - math.Pow(cfg.Beta2, t)
		for a := 0; a < d; a++ {
			for z := 0; z < k; z++ {
				g := grad.At(a, z)
				m1 := cfg.Beta1*first.At(a, z) + (1-cfg.Beta1)*g
				m2 := cfg.Beta2*second.At(a, z) + (1-cfg.Beta2)*g*g
				first.Set(a, z, m1)
				second.Set(a, z, m2)
				step := cfg.LearningRate * (m1 / c1) / (math.Sqrt(m2/c2) + cfg.Epsilon)
				next.Mu.Set(a, z, next.Mu.At(a, z)-step)
			}
		}
		next.first = first
		next.second = second
	}
	return next
}

// fitResult is what the accuracy estimator hands back to the model.
type fitResult struct {
	Mu        *mat.Dense
	History   []float64
	FinalLoss float64
	Epochs    int
	Stopped   bool
}

// initialPoint scales mu0 by a factor drawn uniformly from [0.5, 1).
func initialPoint(mu0 *mat.Dense, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	s := 0.5 + 0.5*rng.Float64()
	var start mat.Dense
	start.Scale(s, mu0)
	return &start
}

// fitAccuracies runs the epoch loop. ctx is checked before every epoch; a
// cancelled context returns its error and no parameters.
func fitAccuracies(ctx context.Context, obj *Objective, start *mat.Dense, cfg *trainConfig, logger log.Logger) (*fitResult, error) {
	if cfg.optimizer == OptimizerLBFGS {
		return fitLBFGS(ctx, obj, start, cfg, logger)
	}

	stepCfg := cfg.stepConfig()
	callbacks := NewCallbackList(cfg.callbacks...)
	state := NewState(start)
	warnedNonFinite := false
	begin := time.Now()

	res := &fitResult{}
	for epoch := 0; epoch < cfg.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "training cancelled before epoch %d", epoch)
		}

		state = Step(obj, state, stepCfg)
		loss := state.Loss[epoch]
		res.Epochs = epoch + 1

		if w := errors.CheckScalar(epoch, loss); w != nil && !warnedNonFinite {
			warnedNonFinite = true
			errors.Warn(w)
			logger.Warn("non-finite loss", log.EpochKey, epoch, log.ErrorCodeKey, log.ErrorInstability)
		}
		if cfg.logInterval > 0 && epoch%cfg.logInterval == 0 {
			logger.Info("epoch", log.EpochKey, epoch, log.LossKey, loss)
		}

		stop, err := callbacks.AfterEpoch(epoch, loss, begin)
		if err != nil {
			return nil, errors.Wrapf(err, "callback failed at epoch %d", epoch)
		}
		if stop {
			res.Stopped = true
			logger.Info("training stopped by callback", log.EpochKey, epoch)
			break
		}
	}

	res.Mu = state.Mu
	res.History = state.Loss
	res.FinalLoss = obj.Loss(state.Mu)
	return res, nil
}

// reportConvergence emits NumericalInstabilityWarnings for a diverging or
// plateaued run. It never fails.
func reportConvergence(res *fitResult, plateau float64, logger log.Logger) {
	if len(res.History) == 0 {
		return
	}
	last := max(res.Epochs-1, 0)
	if w := errors.CheckScalar(last, res.FinalLoss); w != nil {
		errors.Warn(w)
		logger.Warn("final loss is not finite", log.LossKey, res.FinalLoss, log.ErrorCodeKey, log.ErrorInstability)
		return
	}
	if res.FinalLoss > res.History[0] {
		errors.Warn(errors.NewNumericalInstabilityWarning(last, res.FinalLoss, "loss increased during training"))
		logger.Warn("loss increased during training",
			log.LossKey, res.FinalLoss, "initial_loss", res.History[0], log.ErrorCodeKey, log.ErrorInstability)
	}
	if plateau > 0 && res.FinalLoss > plateau {
		errors.Warn(errors.NewNumericalInstabilityWarning(last, res.FinalLoss, "loss plateaued above threshold"))
		logger.Warn("loss plateaued above threshold",
			log.LossKey, res.FinalLoss, "threshold", plateau, log.ErrorCodeKey, log.ErrorInstability)
	}
}
