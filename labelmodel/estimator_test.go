package labelmodel

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
)

func quietConfig(opts ...Option) *trainConfig {
	cfg := defaultTrainConfig()
	cfg.logInterval = 0
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func nopLogger() log.Logger {
	logger, _ := log.NewTestLogger(log.LevelError)
	return logger
}

func TestStepDoesNotModifyItsInput(t *testing.T) {
	obj := testObjective(t, 3, 0.1)
	start := initialPoint(obj.Mu0, 1)

	for _, opt := range []Optimizer{OptimizerAdam, OptimizerSGD} {
		t.Run(string(opt), func(t *testing.T) {
			cfg := quietConfig(WithOptimizer(opt)).stepConfig()
			s0 := NewState(start)
			s1 := Step(obj, s0, cfg)
			snapshot := mat.DenseCopyOf(s1.Mu)
			firstLoss := s1.Loss[0]

			s2 := Step(obj, s1, cfg)
			assert.True(t, mat.Equal(start, s0.Mu))
			assert.True(t, mat.Equal(snapshot, s1.Mu))
			assert.Len(t, s1.Loss, 1)
			assert.Equal(t, firstLoss, s1.Loss[0])
			assert.Equal(t, 0, s0.Step)
			assert.Equal(t, 2, s2.Step)
			assert.Len(t, s2.Loss, 2)

			// Branching from the same state gives the same result.
			again := Step(obj, s1, cfg)
			assert.True(t, mat.Equal(s2.Mu, again.Mu))
		})
	}
}

func TestStepSGDFirstUpdateIsPlainGradientStep(t *testing.T) {
	obj := testObjective(t, 3, 0)
	start := initialPoint(obj.Mu0, 2)
	d, k := start.Dims()

	grad := mat.NewDense(d, k, nil)
	loss := obj.LossGrad(grad, start)

	cfg := quietConfig(WithOptimizer(OptimizerSGD), WithLearningRate(0.5)).stepConfig()
	s := Step(obj, NewState(start), cfg)

	var want mat.Dense
	want.Scale(-0.5, grad)
	want.Add(&want, start)
	assert.True(t, mat.EqualApprox(&want, s.Mu, 1e-15))
	assert.Equal(t, loss, s.Loss[0])
}

func TestStepAdamFirstUpdateMovesByLearningRate(t *testing.T) {
	obj := testObjective(t, 3, 0)
	start := initialPoint(obj.Mu0, 2)
	d, k := start.Dims()

	grad := mat.NewDense(d, k, nil)
	obj.LossGrad(grad, start)

	cfg := quietConfig().stepConfig()
	s := Step(obj, NewState(start), cfg)
	for a := 0; a < d; a++ {
		for z := 0; z < k; z++ {
			g := grad.At(a, z)
			delta := start.At(a, z) - s.Mu.At(a, z)
			if math.Abs(g) < 1e-6 {
				assert.LessOrEqual(t, math.Abs(delta), cfg.LearningRate)
				continue
			}
			assert.InDelta(t, math.Copysign(cfg.LearningRate, g), delta, 1e-4, "(%d, %d)", a, z)
		}
	}
}

func TestStepGradientClip(t *testing.T) {
	obj := testObjective(t, 3, 0)
	start := randomMu(obj.Mu0.RawMatrix().Rows, obj.K, 8)

	cfg := quietConfig(WithOptimizer(OptimizerSGD), WithLearningRate(1), WithGradientClip(1e-3)).stepConfig()
	s := Step(obj, NewState(start), cfg)

	var moved mat.Dense
	moved.Sub(start, s.Mu)
	assert.LessOrEqual(t, mat.Norm(&moved, 2), 1e-3+1e-12)
}

func TestFitAccuraciesIsDeterministic(t *testing.T) {
	obj := testObjective(t, 4, 0)
	for _, opt := range []Optimizer{OptimizerAdam, OptimizerSGD, OptimizerLBFGS} {
		t.Run(string(opt), func(t *testing.T) {
			cfg := quietConfig(WithOptimizer(opt), WithEpochs(30), WithSeed(5))
			a, err := fitAccuracies(context.Background(), obj, initialPoint(obj.Mu0, cfg.seed), cfg, nopLogger())
			require.NoError(t, err)
			b, err := fitAccuracies(context.Background(), obj, initialPoint(obj.Mu0, cfg.seed), cfg, nopLogger())
			require.NoError(t, err)

			assert.True(t, mat.Equal(a.Mu, b.Mu))
			assert.Equal(t, a.History, b.History)
			assert.NotEmpty(t, a.History)
			assert.LessOrEqual(t, a.FinalLoss, a.History[0])
		})
	}
}

func TestFitAccuraciesRecordsLossBeforeEachUpdate(t *testing.T) {
	obj := testObjective(t, 3, 0)
	start := initialPoint(obj.Mu0, 0)
	var recorded []float64
	cfg := quietConfig(WithEpochs(12), WithCallbacks(RecordLoss(&recorded)))

	res, err := fitAccuracies(context.Background(), obj, start, cfg, nopLogger())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Epochs)
	require.Len(t, res.History, 12)
	assert.Equal(t, res.History, recorded)
	assert.Equal(t, obj.Loss(start), res.History[0])
	assert.Equal(t, obj.Loss(res.Mu), res.FinalLoss)
}

func TestFitAccuraciesCancellation(t *testing.T) {
	obj := testObjective(t, 3, 0)
	start := initialPoint(obj.Mu0, 0)

	for _, opt := range []Optimizer{OptimizerAdam, OptimizerLBFGS} {
		t.Run(string(opt), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			stopAt := CallbackFunc(func(env *EpochEnv) error {
				if env.Epoch == 2 {
					cancel()
				}
				return nil
			})
			cfg := quietConfig(WithOptimizer(opt), WithEpochs(50), WithCallbacks(stopAt))

			res, err := fitAccuracies(ctx, obj, start, cfg, nopLogger())
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
		})
	}
}

func TestFitAccuraciesEarlyStopping(t *testing.T) {
	obj := testObjective(t, 3, 0)
	start := initialPoint(obj.Mu0, 0)
	calls := 0
	stopAfterFour := CallbackFunc(func(env *EpochEnv) error {
		calls++
		if env.Epoch == 3 {
			env.StopTraining = true
		}
		return nil
	})
	cfg := quietConfig(WithEpochs(100), WithCallbacks(stopAfterFour))

	res, err := fitAccuracies(context.Background(), obj, start, cfg, nopLogger())
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 4, res.Epochs)
	assert.Equal(t, 4, calls)
	assert.Len(t, res.History, 4)
}

func TestFitAccuraciesCallbackError(t *testing.T) {
	obj := testObjective(t, 3, 0)
	boom := errors.New("boom")
	cfg := quietConfig(WithCallbacks(CallbackFunc(func(*EpochEnv) error { return boom })))

	_, err := fitAccuracies(context.Background(), obj, initialPoint(obj.Mu0, 0), cfg, nopLogger())
	assert.True(t, errors.Is(err, boom))
}

func TestReportConvergenceWarnings(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	logger, _ := log.NewTestLogger(log.LevelWarn)
	reportConvergence(&fitResult{History: []float64{0.01, 0.02}, FinalLoss: 0.3, Epochs: 2}, 0.05, logger)
	require.Len(t, warnings, 2)
	var w *errors.NumericalInstabilityWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, 1, w.Epoch)
	assert.True(t, logger.ContainsMessage("loss increased during training"))
	assert.True(t, logger.ContainsMessage("loss plateaued above threshold"))

	warnings = nil
	reportConvergence(&fitResult{History: []float64{0.5}, FinalLoss: 0.01, Epochs: 1}, 0.05, logger)
	assert.Empty(t, warnings)

	reportConvergence(&fitResult{History: []float64{0.5}, FinalLoss: math.NaN(), Epochs: 1}, 0.05, logger)
	assert.Len(t, warnings, 1)

	warnings = nil
	reportConvergence(&fitResult{History: []float64{0.01}, FinalLoss: 0.3, Epochs: 0}, 0.05, logger)
	require.Len(t, warnings, 2)
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, 0, w.Epoch)
}

func TestCallbacks(t *testing.T) {
	t.Run("early stopping", func(t *testing.T) {
		cl := NewCallbackList(EarlyStopping(2, 0.01))
		begin := time.Now()
		for epoch, loss := range []float64{1, 0.5, 0.495, 0.494} {
			stop, err := cl.AfterEpoch(epoch, loss, begin)
			require.NoError(t, err)
			assert.Equal(t, epoch == 3, stop, "epoch %d", epoch)
		}
		assert.True(t, cl.ShouldStop())
	})
	t.Run("time limit", func(t *testing.T) {
		cl := NewCallbackList(TimeLimit(time.Millisecond))
		stop, err := cl.AfterEpoch(0, 1, time.Now().Add(-time.Second))
		require.NoError(t, err)
		assert.True(t, stop)
	})
	t.Run("stop skips later callbacks", func(t *testing.T) {
		var seen []float64
		stopNow := CallbackFunc(func(env *EpochEnv) error { env.StopTraining = true; return nil })
		cl := NewCallbackList(stopNow, RecordLoss(&seen))
		stop, err := cl.AfterEpoch(0, 1, time.Now())
		require.NoError(t, err)
		assert.True(t, stop)
		assert.Empty(t, seen)
	})
	t.Run("each run starts fresh", func(t *testing.T) {
		var seen []float64
		early := EarlyStopping(1, 0.01)
		record := RecordLoss(&seen)
		first := NewCallbackList(early, record)
		for epoch, loss := range []float64{0.5, 0.5} {
			_, err := first.AfterEpoch(epoch, loss, time.Now())
			require.NoError(t, err)
		}
		require.True(t, first.ShouldStop())

		second := NewCallbackList(early, record)
		stop, err := second.AfterEpoch(0, 0.5, time.Now())
		require.NoError(t, err)
		assert.False(t, stop)
		assert.Equal(t, []float64{0.5}, seen)
	})
}

func TestParseOptimizer(t *testing.T) {
	for in, want := range map[string]Optimizer{"adam": OptimizerAdam, " SGD ": OptimizerSGD, "LBFGS": OptimizerLBFGS} {
		got, err := ParseOptimizer(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOptimizer("rmsprop")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}
