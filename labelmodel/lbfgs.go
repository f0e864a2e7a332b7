package labelmodel

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
)

var errStopTraining = errors.New("training stopped by callback")

// lbfgsRecorder keeps the loss trajectory of an optimize.Minimize run and
// runs cancellation checks and callbacks at every major iteration.
type lbfgsRecorder struct {
	ctx         context.Context
	callbacks   *CallbackList
	logger      log.Logger
	logInterval int
	begin       time.Time

	losses []float64
	lastX  []float64
	iter   int
}

func (r *lbfgsRecorder) Init() error {
	r.begin = time.Now()
	return nil
}

func (r *lbfgsRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op != optimize.InitIteration && op&optimize.MajorIteration == 0 {
		return nil
	}
	r.losses = append(r.losses, loc.F)
	r.lastX = append(r.lastX[:0], loc.X...)
	if op == optimize.InitIteration {
		return nil
	}

	epoch := r.iter
	r.iter++
	if r.logInterval > 0 && epoch%r.logInterval == 0 {
		r.logger.Info("epoch", log.EpochKey, epoch, log.LossKey, loc.F)
	}
	stop, err := r.callbacks.AfterEpoch(epoch, r.losses[epoch], r.begin)
	if err != nil {
		return err
	}
	if stop {
		return errStopTraining
	}
	return r.ctx.Err()
}

// fitLBFGS minimizes the objective with gonum's L-BFGS. The history holds
// the loss at the start point and after every major iteration but the last,
// matching the before-update convention of Step.
func fitLBFGS(ctx context.Context, obj *Objective, start *mat.Dense, cfg *trainConfig, logger log.Logger) (*fitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "training cancelled before epoch 0")
	}
	d, k := start.Dims()
	x0 := append([]float64(nil), mat.DenseCopyOf(start).RawMatrix().Data...)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return obj.Loss(mat.NewDense(d, k, x))
		},
		Grad: func(grad, x []float64) {
			obj.LossGrad(mat.NewDense(d, k, grad), mat.NewDense(d, k, x))
			errors.ClipGradient(grad, cfg.clipNorm)
		},
	}
	rec := &lbfgsRecorder{
		ctx:         ctx,
		callbacks:   NewCallbackList(cfg.callbacks...),
		logger:      logger,
		logInterval: cfg.logInterval,
	}
	settings := &optimize.Settings{
		MajorIterations: cfg.epochs,
		Recorder:        rec,
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	stopped := false
	switch {
	case ctx.Err() != nil:
		return nil, errors.Wrapf(ctx.Err(), "training cancelled at epoch %d", rec.iter)
	case errors.Is(err, errStopTraining):
		stopped = true
		logger.Info("training stopped by callback", log.EpochKey, rec.iter-1)
	case err != nil:
		// Line-search failures are not fatal; keep the last accepted point.
		logger.Warn("lbfgs terminated early", log.ErrorKey, err.Error(), log.EpochKey, rec.iter)
	}

	x := rec.lastX
	if x == nil && result != nil {
		x = result.X
	}
	if x == nil {
		x = x0
	}
	mu := mat.NewDense(d, k, append([]float64(nil), x...))

	history := rec.losses
	if len(history) > 1 {
		history = history[:len(history)-1]
	}
	return &fitResult{
		Mu:        mu,
		History:   append([]float64(nil), history...),
		FinalLoss: obj.Loss(mu),
		Epochs:    rec.iter,
		Stopped:   stopped,
	}, nil
}
