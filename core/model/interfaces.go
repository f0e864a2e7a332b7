package model

import (
	"gonum.org/v1/gonum/mat"
)

// ProbabilisticLabeler reads per-task label matrices, one row per example
// and one column per labeling function, and produces soft training labels over the feasible
// label-vector space.
type ProbabilisticLabeler interface {
	PredictProba(L []mat.Matrix) (*mat.Dense, error)
	PredictTaskProba(L []mat.Matrix) ([]*mat.Dense, error)
	Predict(L []mat.Matrix) ([][]int, error)
}

// MultiTaskScorer evaluates predicted per-task labels against gold labels.
type MultiTaskScorer interface {
	Accuracy(L []mat.Matrix, Y [][]int) (float64, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters.
	SetParams(params map[string]interface{}) error
}

// WeightExporter moves learned parameters in and out of a model without
// touching any storage.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(w *ModelWeights) error
}

// LabelModel is the surface of a weak-supervision label model after
// training. Training itself takes model-specific options and is not part of
// the interface.
type LabelModel interface {
	ProbabilisticLabeler
	MultiTaskScorer
	ParameterGetter
	ParameterSetter
	WeightExporter
	IsFitted() bool
}
