// Package synthetic generates seeded multi-task noisy label matrices over
// the feasible label vectors of a task graph, together with the gold
// labels they were drawn from.
package synthetic

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/sparse"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

// Config describes the simulated labeling functions. Every labeling
// function j gets a coverage and an accuracy drawn uniformly from the given
// ranges. On each example it votes with probability coverage; a vote is the
// true label vector with probability accuracy and a uniformly chosen other
// feasible vector otherwise. TaskAbstain is the probability that a voting
// labeling function leaves an individual task out; at least one task is
// always kept.
type Config struct {
	Examples          int
	LabelingFunctions int
	AccuracyMin       float64
	AccuracyMax       float64
	CoverageMin       float64
	CoverageMax       float64
	TaskAbstain       float64
	// ClassBalance over the feasible set; uniform when nil.
	ClassBalance []float64
	Seed         int64
}

// DefaultConfig returns a configuration with accuracies in [0.7, 0.95] and
// coverages in [0.4, 0.9].
func DefaultConfig(examples, labelingFunctions int, seed int64) Config {
	return Config{
		Examples:          examples,
		LabelingFunctions: labelingFunctions,
		AccuracyMin:       0.7,
		AccuracyMax:       0.95,
		CoverageMin:       0.4,
		CoverageMax:       0.9,
		Seed:              seed,
	}
}

func (c Config) validate(k int) error {
	switch {
	case c.Examples < 1:
		return errors.NewValidationError("examples", "must be at least 1", c.Examples)
	case c.LabelingFunctions < 1:
		return errors.NewValidationError("labeling_functions", "must be at least 1", c.LabelingFunctions)
	case c.AccuracyMin < 0 || c.AccuracyMax > 1 || c.AccuracyMin > c.AccuracyMax:
		return errors.NewValidationError("accuracy", "range must satisfy 0 <= min <= max <= 1",
			[2]float64{c.AccuracyMin, c.AccuracyMax})
	case c.CoverageMin < 0 || c.CoverageMax > 1 || c.CoverageMin > c.CoverageMax:
		return errors.NewValidationError("coverage", "range must satisfy 0 <= min <= max <= 1",
			[2]float64{c.CoverageMin, c.CoverageMax})
	case c.TaskAbstain < 0 || c.TaskAbstain >= 1:
		return errors.NewValidationError("task_abstain", "must be in [0, 1)", c.TaskAbstain)
	}
	if c.ClassBalance != nil {
		if len(c.ClassBalance) != k {
			return errors.NewValidationError("class_balance",
				fmt.Sprintf("length must equal the feasible set size %d", k), len(c.ClassBalance))
		}
		if floats.Min(c.ClassBalance) < 0 || floats.Sum(c.ClassBalance) <= 0 {
			return errors.NewValidationError("class_balance", "must be non-negative with a positive sum", c.ClassBalance)
		}
	}
	return nil
}

// Dataset is a generated set of label matrices with their ground truth.
type Dataset struct {
	// L holds one n × m label matrix per task.
	L []*sparse.CSR
	// Gold is indexed [task][example].
	Gold [][]int
	// Truth is the feasible-set index of each example's label vector.
	Truth []int
	// Accuracies and Coverages are the drawn per-labeling-function values.
	Accuracies []float64
	Coverages  []float64
}

// Matrices returns L as []mat.Matrix.
func (d *Dataset) Matrices() []mat.Matrix {
	out := make([]mat.Matrix, len(d.L))
	for t, Lt := range d.L {
		out[t] = Lt
	}
	return out
}

// Len returns the number of examples.
func (d *Dataset) Len() int { return len(d.Truth) }

// Split returns the first at examples and the rest as two datasets.
func (d *Dataset) Split(at int) (head, tail *Dataset) {
	if at < 0 || at > d.Len() {
		panic(fmt.Sprintf("synthetic: split point %d outside [0, %d]", at, d.Len()))
	}
	return d.slice(0, at), d.slice(at, d.Len())
}

func (d *Dataset) slice(from, to int) *Dataset {
	out := &Dataset{
		L:          make([]*sparse.CSR, len(d.L)),
		Gold:       make([][]int, len(d.Gold)),
		Truth:      append([]int(nil), d.Truth[from:to]...),
		Accuracies: d.Accuracies,
		Coverages:  d.Coverages,
	}
	for t := range d.L {
		out.L[t] = d.L[t].SliceRows(from, to)
		out.Gold[t] = append([]int(nil), d.Gold[t][from:to]...)
	}
	return out
}

// Generate draws a dataset for the feasible set fs.
func Generate(fs *taskgraph.FeasibleSet, cfg Config) (*Dataset, error) {
	k := fs.Len()
	if err := cfg.validate(k); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	n, m, tasks := cfg.Examples, cfg.LabelingFunctions, fs.NumTasks()

	acc := make([]float64, m)
	cov := make([]float64, m)
	for j := 0; j < m; j++ {
		acc[j] = cfg.AccuracyMin + (cfg.AccuracyMax-cfg.AccuracyMin)*rng.Float64()
		cov[j] = cfg.CoverageMin + (cfg.CoverageMax-cfg.CoverageMin)*rng.Float64()
	}

	cdf := make([]float64, k)
	if cfg.ClassBalance != nil {
		copy(cdf, cfg.ClassBalance)
	} else {
		for a := range cdf {
			cdf[a] = 1
		}
	}
	floats.CumSum(cdf, cdf)
	floats.Scale(1/cdf[k-1], cdf)

	type triplets struct {
		rows, cols []int
		vals       []float64
	}
	votes := make([]triplets, tasks)
	ds := &Dataset{
		Gold:       make([][]int, tasks),
		Truth:      make([]int, n),
		Accuracies: acc,
		Coverages:  cov,
	}
	for t := range ds.Gold {
		ds.Gold[t] = make([]int, n)
	}

	keep := make([]bool, tasks)
	for i := 0; i < n; i++ {
		y := sort.SearchFloat64s(cdf, rng.Float64())
		if y >= k {
			y = k - 1
		}
		ds.Truth[i] = y
		for t := 0; t < tasks; t++ {
			ds.Gold[t][i] = fs.Label(y, t)
		}

		for j := 0; j < m; j++ {
			if rng.Float64() >= cov[j] {
				continue
			}
			vote := y
			if k > 1 && rng.Float64() >= acc[j] {
				vote = rng.Intn(k - 1)
				if vote >= y {
					vote++
				}
			}
			kept := 0
			for t := range keep {
				keep[t] = cfg.TaskAbstain == 0 || rng.Float64() >= cfg.TaskAbstain
				if keep[t] {
					kept++
				}
			}
			if kept == 0 {
				keep[rng.Intn(tasks)] = true
			}
			for t := 0; t < tasks; t++ {
				if !keep[t] {
					continue
				}
				votes[t].rows = append(votes[t].rows, i)
				votes[t].cols = append(votes[t].cols, j)
				votes[t].vals = append(votes[t].vals, float64(fs.Label(vote, t)))
			}
		}
	}

	ds.L = make([]*sparse.CSR, tasks)
	for t, v := range votes {
		Lt, err := sparse.FromTriplets(n, m, v.rows, v.cols, v.vals)
		if err != nil {
			return nil, errors.Wrapf(err, "building label matrix for task %d", t)
		}
		ds.L[t] = Lt
	}
	return ds, nil
}
