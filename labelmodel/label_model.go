package labelmodel

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/core/model"
	"github.com/YuminosukeSato/weaksup/core/parallel"
	"github.com/YuminosukeSato/weaksup/metrics"
	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/pkg/log"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

const (
	modelName    = "LabelModel"
	modelVersion = "1.0.0"
)

// fitted is the immutable result of one training run.
type fitted struct {
	mu        *mat.Dense
	logMu     *mat.Dense
	p         []float64
	logP      []float64
	m         int
	overlap   *mat.SymDense
	history   []float64
	finalLoss float64
	seed      int64
	tieBreak  TieBreak
}

func newFitted(mu *mat.Dense, p []float64, m int, cfg *trainConfig) *fitted {
	d, k := mu.Dims()
	logMu := mat.NewDense(d, k, nil)
	logMu.Apply(func(_, _ int, v float64) float64 {
		return math.Log(errors.ClipValue(v, defaultPredictClipLow, defaultPredictClipHigh))
	}, mu)
	logP := make([]float64, len(p))
	for i, v := range p {
		logP[i] = math.Log(v)
	}
	return &fitted{
		mu:       mu,
		logMu:    logMu,
		p:        p,
		logP:     logP,
		m:        m,
		seed:     cfg.seed,
		tieBreak: cfg.tieBreak,
	}
}

// LabelModel estimates labeling-function accuracies from unlabeled
// multi-task label matrices and turns their votes into probabilistic labels
// over the feasible label vectors of a TaskGraph.
//
// A LabelModel starts untrained. Train moves it to the trained state and may
// be called again; each call replaces the learned parameters. PredictProba,
// PredictTaskProba, Predict, Score and Accuracy require a trained model and
// return *errors.NotFittedError otherwise. All methods are safe for
// concurrent use.
type LabelModel struct {
	state *model.StateManager
	graph *taskgraph.TaskGraph
	fs    *taskgraph.FeasibleSet
	id    string

	mu     sync.RWMutex
	config *trainConfig
	params *fitted
}

var _ model.LabelModel = (*LabelModel)(nil)

// New creates an untrained LabelModel for g. Options given here become the
// defaults of every Train call.
func New(g *taskgraph.TaskGraph, opts ...Option) (*LabelModel, error) {
	if g == nil {
		return nil, errors.NewConfigurationError(-1, "task graph is nil")
	}
	fs, err := g.FeasibleSet()
	if err != nil {
		return nil, err
	}
	cfg := defaultTrainConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &LabelModel{
		state:  model.NewStateManager(),
		graph:  g,
		fs:     fs,
		id:     uuid.NewString(),
		config: cfg,
	}, nil
}

func (lm *LabelModel) loggerFor(cfg *trainConfig) log.Logger {
	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("labelmodel")
	}
	return logger.With(log.ModelNameKey, modelName, log.EstimatorIDKey, lm.id)
}

func (lm *LabelModel) baseConfig() *trainConfig {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.config.clone()
}

// Train fits the model to the label matrices L, one n × m matrix per task,
// row-aligned across tasks, with entries in {0..K_t}. opts override the
// constructor options for this call only.
func (lm *LabelModel) Train(L []mat.Matrix, opts ...Option) error {
	return lm.TrainContext(context.Background(), L, opts...)
}

// TrainContext is Train with cancellation. ctx is checked before every
// epoch; when it is done the previous parameters are kept and ctx's error is
// returned.
func (lm *LabelModel) TrainContext(ctx context.Context, L []mat.Matrix, opts ...Option) (err error) {
	defer errors.Recover(&err, "LabelModel.Train")
	begin := time.Now()

	cfg := lm.baseConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	logger := lm.loggerFor(cfg).With(log.OperationKey, log.OperationTrain)
	if err := cfg.validate(); err != nil {
		return err
	}

	n, m, err := validateLabelMatrices("Train", lm.fs, L)
	if err != nil {
		logger.Error("invalid label matrices", err, log.ErrorCodeKey, log.ErrorShapeMismatch)
		return err
	}
	k := lm.fs.Len()

	p := cfg.classBalance
	if len(p) == 0 {
		p = uniformClassBalance(k)
	}
	if err := validateClassBalance(p, k); err != nil {
		return err
	}
	prec, err := cfg.precisions(m)
	if err != nil {
		return err
	}

	logger.Info("training started",
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, n,
		log.TasksKey, lm.graph.NumTasks(),
		log.LabelingFunctionsKey, m,
		log.FeasibleVectorsKey, k,
		log.OverlapDimKey, m*k,
		log.EpochsKey, cfg.epochs,
		log.OptimizerKey, string(cfg.optimizer),
		log.LearningRateKey, cfg.learningRate,
		log.RandomSeedKey, cfg.seed,
	)

	O := estimateOverlap(lm.fs, L, n, m)
	logger.Debug("overlap matrix estimated", log.OperationKey, log.OperationEstimateOverlaps, log.OverlapDimKey, m*k)

	mu0 := initialAccuracies(O, p, prec, k)
	obj, err := NewObjective(O, p, mu0, cfg.l2, k)
	if err != nil {
		return err
	}

	res, err := fitAccuracies(ctx, obj, initialPoint(mu0, cfg.seed), cfg, logger)
	if err != nil {
		logger.Warn("training aborted, previous parameters kept", log.ErrorKey, err.Error())
		return err
	}
	reportConvergence(res, cfg.plateau, logger)

	params := newFitted(res.Mu, append([]float64(nil), p...), m, cfg)
	params.overlap = O
	params.history = res.History
	params.finalLoss = res.FinalLoss

	lm.mu.Lock()
	lm.params = params
	lm.mu.Unlock()
	lm.state.SetDimensions(n, m, lm.graph.NumTasks())
	lm.state.SetFitted()

	logger.Info("training completed",
		log.EpochsKey, res.Epochs,
		log.LossKey, res.FinalLoss,
		log.DurationMsKey, time.Since(begin).Milliseconds(),
	)
	return nil
}

// trained returns the current parameters or a NotFittedError.
func (lm *LabelModel) trained(method string) (*fitted, error) {
	if err := lm.state.RequireFitted(modelName, method); err != nil {
		return nil, err
	}
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.params, nil
}

func (lm *LabelModel) checkPredictInput(op string, params *fitted, L []mat.Matrix) (int, error) {
	n, m, err := validateLabelMatrices(op, lm.fs, L)
	if err != nil {
		return 0, err
	}
	if m != params.m {
		return 0, errors.NewShapeMismatchErrorf(op, -1, "labeling functions", params.m, m,
			"the model was trained with %d labeling functions", params.m)
	}
	return n, nil
}

// PredictProba returns an n × k matrix whose row i is the posterior over the
// feasible label vectors for example i, proportional to
// p_y · Π_c clip(μ[c, y], 0.01, 0.99) over the indicator columns c of i.
func (lm *LabelModel) PredictProba(L []mat.Matrix) (proba *mat.Dense, err error) {
	defer errors.Recover(&err, "LabelModel.PredictProba")
	params, err := lm.trained("PredictProba")
	if err != nil {
		return nil, err
	}
	n, err := lm.checkPredictInput("PredictProba", params, L)
	if err != nil {
		return nil, err
	}
	return lm.predictProba(params, L, n), nil
}

func (lm *LabelModel) predictProba(params *fitted, L []mat.Matrix, n int) *mat.Dense {
	k := lm.fs.Len()
	out := mat.NewDense(n, k, nil)
	parallel.ParallelizeWithThreshold(n, predictParallelThreshold, func(start, end int) {
		b := newIndicatorBuilder(lm.fs, L, params.m)
		scores := make([]float64, k)
		var cols []int
		for i := start; i < end; i++ {
			cols = b.columns(i, cols[:0])
			copy(scores, params.logP)
			for _, c := range cols {
				row := params.logMu.RawRowView(c)
				for y := range scores {
					scores[y] += row[y]
				}
			}
			lse := errors.LogSumExp(scores)
			for y, s := range scores {
				out.Set(i, y, math.Exp(s-lse))
			}
		}
	})
	return out
}

// PredictTaskProba returns, for each task t, an n × K_t matrix of marginal
// label probabilities; column y-1 holds label y.
func (lm *LabelModel) PredictTaskProba(L []mat.Matrix) (marginals []*mat.Dense, err error) {
	defer errors.Recover(&err, "LabelModel.PredictTaskProba")
	params, err := lm.trained("PredictTaskProba")
	if err != nil {
		return nil, err
	}
	n, err := lm.checkPredictInput("PredictTaskProba", params, L)
	if err != nil {
		return nil, err
	}
	return lm.taskMarginals(lm.predictProba(params, L, n)), nil
}

func (lm *LabelModel) taskMarginals(proba *mat.Dense) []*mat.Dense {
	n, k := proba.Dims()
	tasks := lm.fs.NumTasks()
	out := make([]*mat.Dense, tasks)
	for t := 0; t < tasks; t++ {
		out[t] = mat.NewDense(n, lm.graph.Cardinality(t), nil)
	}
	for i := 0; i < n; i++ {
		row := proba.RawRowView(i)
		for a := 0; a < k; a++ {
			for t := 0; t < tasks; t++ {
				y := lm.fs.Label(a, t) - 1
				out[t].Set(i, y, out[t].At(i, y)+row[a])
			}
		}
	}
	return out
}

// Predict returns the most probable label of every task for every example,
// indexed [task][example]. Ties within 1e-5 are broken per WithTieBreak.
func (lm *LabelModel) Predict(L []mat.Matrix) (labels [][]int, err error) {
	defer errors.Recover(&err, "LabelModel.Predict")
	params, err := lm.trained("Predict")
	if err != nil {
		return nil, err
	}
	n, err := lm.checkPredictInput("Predict", params, L)
	if err != nil {
		return nil, err
	}
	return lm.predict(params, L, n), nil
}

func (lm *LabelModel) predict(params *fitted, L []mat.Matrix, n int) [][]int {
	marginals := lm.taskMarginals(lm.predictProba(params, L, n))
	rng := rand.New(rand.NewSource(params.seed))

	labels := make([][]int, len(marginals))
	var tied []int
	for t, Q := range marginals {
		labels[t] = make([]int, n)
		for i := 0; i < n; i++ {
			row := Q.RawRowView(i)
			best := row[0]
			for _, v := range row[1:] {
				best = math.Max(best, v)
			}
			tied = tied[:0]
			for y, v := range row {
				if best-v <= tieTolerance {
					tied = append(tied, y+1)
				}
			}
			if params.tieBreak == TieBreakRandom && len(tied) > 1 {
				labels[t][i] = tied[rng.Intn(len(tied))]
			} else {
				labels[t][i] = tied[0]
			}
		}
	}
	return labels
}

// Score compares the predicted label of every task with the gold labels Y
// (indexed [task][example]; 0 marks an unlabeled example and is ignored)
// and returns per-task accuracy, reduced per reduce.
func (lm *LabelModel) Score(L []mat.Matrix, Y [][]int, reduce metrics.Reduce) (scores []float64, err error) {
	defer errors.Recover(&err, "LabelModel.Score")
	params, err := lm.trained("Score")
	if err != nil {
		return nil, err
	}
	n, err := lm.checkPredictInput("Score", params, L)
	if err != nil {
		return nil, err
	}
	if err := lm.validateGold(Y, n); err != nil {
		return nil, err
	}

	scores, err = metrics.MultiTaskAccuracy(Y, lm.predict(params, L, n), reduce)
	if err != nil {
		return nil, err
	}
	logger := lm.loggerFor(lm.baseConfig())
	logger.Debug("scored",
		log.OperationKey, log.OperationScore,
		log.PhaseKey, log.PhaseValidation,
		log.SamplesKey, n,
		"reduce", reduce.String(),
		"scores", scores,
	)
	return scores, nil
}

func (lm *LabelModel) validateGold(Y [][]int, n int) error {
	tasks := lm.graph.NumTasks()
	if len(Y) != tasks {
		return errors.NewShapeMismatchError("Score", -1, "tasks", tasks, len(Y))
	}
	for t, yt := range Y {
		if len(yt) != n {
			return errors.NewShapeMismatchErrorf("Score", t, "rows", n, len(yt), "gold labels must align with the label matrices")
		}
		K := lm.graph.Cardinality(t)
		for i, y := range yt {
			if y < 0 || y > K {
				return errors.NewShapeMismatchErrorf("Score", t, "label value", K, y,
					"gold label at example %d is not in [0, %d]", i, K)
			}
		}
	}
	return nil
}

// Accuracy is Score with ReduceMean.
func (lm *LabelModel) Accuracy(L []mat.Matrix, Y [][]int) (float64, error) {
	scores, err := lm.Score(L, Y, metrics.ReduceMean)
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// IsFitted reports whether the model has been trained.
func (lm *LabelModel) IsFitted() bool { return lm.state.IsFitted() }

// ID returns the identifier used in this model's log records.
func (lm *LabelModel) ID() string { return lm.id }

// TaskGraph returns the graph the model was built for.
func (lm *LabelModel) TaskGraph() *taskgraph.TaskGraph { return lm.graph }

// FeasibleSet returns the label space of PredictProba's columns.
func (lm *LabelModel) FeasibleSet() *taskgraph.FeasibleSet { return lm.fs }

func (lm *LabelModel) current() *fitted {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.params
}

// Mu returns a copy of the learned accuracy parameters (m·k × k), or nil
// before training.
func (lm *LabelModel) Mu() *mat.Dense {
	if p := lm.current(); p != nil {
		return mat.DenseCopyOf(p.mu)
	}
	return nil
}

// ClassBalance returns the class balance used by the last training run.
func (lm *LabelModel) ClassBalance() []float64 {
	if p := lm.current(); p != nil {
		return append([]float64(nil), p.p...)
	}
	return nil
}

// LossHistory returns the objective recorded before every epoch's update.
func (lm *LabelModel) LossHistory() []float64 {
	if p := lm.current(); p != nil {
		return append([]float64(nil), p.history...)
	}
	return nil
}

// FinalLoss returns the objective at the learned parameters.
func (lm *LabelModel) FinalLoss() float64 {
	if p := lm.current(); p != nil {
		return p.finalLoss
	}
	return math.NaN()
}

// Overlap returns a copy of the overlap matrix of the last training run.
// It is nil before training and after ImportWeights.
func (lm *LabelModel) Overlap() *mat.SymDense {
	p := lm.current()
	if p == nil || p.overlap == nil {
		return nil
	}
	O := mat.NewSymDense(p.overlap.SymmetricDim(), nil)
	O.CopySym(p.overlap)
	return O
}

// NumLabelingFunctions returns m as seen in training, or 0.
func (lm *LabelModel) NumLabelingFunctions() int {
	if p := lm.current(); p != nil {
		return p.m
	}
	return 0
}

// TrainingSamples returns the number of examples of the last training run.
// It is 0 before training and after ImportWeights.
func (lm *LabelModel) TrainingSamples() int {
	n, _, _ := lm.state.GetDimensions()
	return n
}
