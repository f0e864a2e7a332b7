// Standard attribute keys for weak-supervision logging. Keys follow a
// hierarchical naming convention ("model.name", "data.samples") so logs can
// be filtered by prefix.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of model, e.g. "LabelModel".
	ModelNameKey = "model.name"

	// EstimatorIDKey is a unique identifier for one model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey is the operation being performed: "train", "predict_proba", "score".
	OperationKey = "ml.operation"

	// ComponentKey identifies the package emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase: "training", "inference", "validation".
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	// SamplesKey is the number of examples (rows of every label matrix).
	SamplesKey = "data.samples"

	// TasksKey is the number of tasks in the task graph.
	TasksKey = "data.tasks"

	// LabelingFunctionsKey is the number of labeling functions (matrix columns).
	LabelingFunctionsKey = "data.labeling_functions"

	// FeasibleVectorsKey is the size of the feasible label-vector space.
	FeasibleVectorsKey = "model.feasible_vectors"

	// OverlapDimKey is the dimension of the overlap matrix.
	OverlapDimKey = "model.overlap_dim"
)

// Training and performance.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records accuracy for evaluation operations.
	AccuracyKey = "metrics.accuracy"

	// LossKey records the objective value.
	LossKey = "metrics.loss"

	// EpochKey records the current epoch number during training.
	EpochKey = "training.epoch"

	// EpochsKey records the configured number of epochs.
	EpochsKey = "training.epochs"

	// OptimizerKey records the optimizer name.
	OptimizerKey = "training.optimizer"

	// LearningRateKey records the learning rate.
	LearningRateKey = "hyperparams.learning_rate"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// StacktraceKey carries the stack trace extracted from an error.
	StacktraceKey = "error.stacktrace"

	// ErrorKey carries the error message.
	ErrorKey = "error"
)

// Standard attribute values.
const (
	OperationTrain            = "train"
	OperationPredictProba     = "predict_proba"
	OperationPredict          = "predict"
	OperationScore            = "score"
	OperationEstimateOverlaps = "estimate_overlaps"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseValidation = "validation"

	ErrorNotFitted     = "NOT_FITTED"
	ErrorShapeMismatch = "SHAPE_MISMATCH"
	ErrorConfiguration = "INVALID_CONFIGURATION"
	ErrorInstability   = "NUMERICAL_INSTABILITY"
)
