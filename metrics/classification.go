package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// IgnoreLabel is the gold label that marks an example as unlabeled for a task.
const IgnoreLabel = 0

// Reduce selects how per-task scores are combined.
type Reduce int

const (
	// ReduceMean returns a single element, the arithmetic mean over tasks.
	ReduceMean Reduce = iota
	// ReduceNone returns one element per task.
	ReduceNone
)

// String returns "mean" or "none".
func (r Reduce) String() string {
	switch r {
	case ReduceMean:
		return "mean"
	case ReduceNone:
		return "none"
	default:
		return fmt.Sprintf("Reduce(%d)", int(r))
	}
}

// ParseReduce converts "mean" or "none" into a Reduce.
func ParseReduce(s string) (Reduce, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean", "":
		return ReduceMean, nil
	case "none":
		return ReduceNone, nil
	default:
		return ReduceMean, errors.NewValidationError("reduce", "must be 'mean' or 'none'", s)
	}
}

// Accuracy は正解ラベルが IgnoreLabel でない例だけを対象に正解率を計算する。
// 対象が1つもない場合は UndefinedMetricWarning を発生させて 0 を返す。
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("Accuracy", len(yTrue), len(yPred), 0)
	}

	correct, total := 0, 0
	for i, y := range yTrue {
		if y == IgnoreLabel {
			continue
		}
		total++
		if yPred[i] == y {
			correct++
		}
	}
	if total == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("accuracy", "no gold labels", 0))
		return 0, nil
	}
	return float64(correct) / float64(total), nil
}

// MultiTaskAccuracy はタスクごとの正解率を計算し、reduce に従って集約する。
// Y と P はタスクごとのラベル列で、すべて同じ長さでなければならない。
func MultiTaskAccuracy(Y, P [][]int, reduce Reduce) ([]float64, error) {
	if len(Y) != len(P) {
		return nil, errors.NewDimensionError("MultiTaskAccuracy", len(Y), len(P), 1)
	}
	if len(Y) == 0 {
		return nil, errors.NewValueError("MultiTaskAccuracy", "no tasks")
	}

	scores := make([]float64, len(Y))
	for t := range Y {
		if len(Y[t]) != len(Y[0]) {
			return nil, errors.NewDimensionError("MultiTaskAccuracy", len(Y[0]), len(Y[t]), 0)
		}
		acc, err := Accuracy(Y[t], P[t])
		if err != nil {
			return nil, errors.Wrapf(err, "task %d", t)
		}
		scores[t] = acc
	}
	return ReduceScores(scores, reduce)
}

// ReduceScores combines per-task scores. The input is not modified.
func ReduceScores(scores []float64, reduce Reduce) ([]float64, error) {
	switch reduce {
	case ReduceNone:
		return append([]float64(nil), scores...), nil
	case ReduceMean:
		if len(scores) == 0 {
			return nil, errors.NewValueError("ReduceScores", "no scores to average")
		}
		return []float64{stat.Mean(scores, nil)}, nil
	default:
		return nil, errors.NewValidationError("reduce", "unknown reduction", int(reduce))
	}
}
