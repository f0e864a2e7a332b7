// Package analysis reports how labeling functions behave on a set of
// multi-task label matrices: how often they vote, how often they agree or
// disagree with each other, which labels they emit and, given gold labels,
// how often they are right.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/weaksup/core/parallel"
	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

const parallelThreshold = 1024

// Summary describes one labeling function.
type Summary struct {
	Index int
	// Polarity lists, per task, the distinct non-zero labels emitted.
	Polarity [][]int
	// Coverage is the fraction of examples with at least one vote.
	Coverage float64
	// Overlaps is the fraction of examples where this and another labeling
	// function both voted.
	Overlaps float64
	// Conflicts is the fraction of examples where another labeling function
	// voted differently on a task both voted on.
	Conflicts float64
	// Correct and Incorrect count votes against gold labels. A vote is
	// judged on the tasks with a gold label and is correct when it matches
	// all of them. Both are zero without gold labels.
	Correct   int
	Incorrect int
	// EmpiricalAccuracy is Correct / (Correct + Incorrect), NaN when no vote
	// could be judged.
	EmpiricalAccuracy float64
}

type counts struct {
	covered, overlapped, conflicted []int
	correct, incorrect              []int
	emitted                         []map[int]struct{} // m·tasks sets
}

func newCounts(m, tasks int) *counts {
	c := &counts{
		covered:    make([]int, m),
		overlapped: make([]int, m),
		conflicted: make([]int, m),
		correct:    make([]int, m),
		incorrect:  make([]int, m),
		emitted:    make([]map[int]struct{}, m*tasks),
	}
	for i := range c.emitted {
		c.emitted[i] = make(map[int]struct{})
	}
	return c
}

func (c *counts) add(o *counts) {
	for j := range c.covered {
		c.covered[j] += o.covered[j]
		c.overlapped[j] += o.overlapped[j]
		c.conflicted[j] += o.conflicted[j]
		c.correct[j] += o.correct[j]
		c.incorrect[j] += o.incorrect[j]
	}
	for i, set := range o.emitted {
		for y := range set {
			c.emitted[i][y] = struct{}{}
		}
	}
}

// Summarize computes a Summary for every labeling function. L holds one
// n × m matrix per task with entries in {0, 1, 2, ...}. gold, indexed
// [task][example] with 0 for unlabeled, may be nil.
func Summarize(L []mat.Matrix, gold [][]int) ([]Summary, error) {
	n, m, err := validate(L, gold)
	if err != nil {
		return nil, err
	}
	tasks := len(L)

	chunks := parallel.MapChunks(n, parallelThreshold, func(start, end int) *counts {
		c := newCounts(m, tasks)
		votes := make([]int, m*tasks)
		var voters []int
		for i := start; i < end; i++ {
			voters = rowVotes(L, i, m, votes, voters[:0])
			tally(c, votes, voters, tasks, gold, i)
		}
		return c
	})
	total := newCounts(m, tasks)
	for _, c := range chunks {
		total.add(c)
	}

	out := make([]Summary, m)
	for j := range out {
		s := Summary{
			Index:             j,
			Polarity:          make([][]int, tasks),
			Coverage:          float64(total.covered[j]) / float64(n),
			Overlaps:          float64(total.overlapped[j]) / float64(n),
			Conflicts:         float64(total.conflicted[j]) / float64(n),
			Correct:           total.correct[j],
			Incorrect:         total.incorrect[j],
			EmpiricalAccuracy: math.NaN(),
		}
		if judged := s.Correct + s.Incorrect; judged > 0 {
			s.EmpiricalAccuracy = float64(s.Correct) / float64(judged)
		}
		for t := 0; t < tasks; t++ {
			labels := make([]int, 0, len(total.emitted[j*tasks+t]))
			for y := range total.emitted[j*tasks+t] {
				labels = append(labels, y)
			}
			sort.Ints(labels)
			s.Polarity[t] = labels
		}
		out[j] = s
	}
	return out, nil
}

// rowVotes fills votes (m·tasks, 0 for abstain) for example i and returns
// the labeling functions that voted on some task, ascending.
func rowVotes(L []mat.Matrix, i, m int, votes []int, voters []int) []int {
	tasks := len(L)
	for t, Lt := range L {
		for j := 0; j < m; j++ {
			votes[j*tasks+t] = int(Lt.At(i, j))
		}
	}
	for j := 0; j < m; j++ {
		for t := 0; t < tasks; t++ {
			if votes[j*tasks+t] != 0 {
				voters = append(voters, j)
				break
			}
		}
	}
	return voters
}

func tally(c *counts, votes, voters []int, tasks int, gold [][]int, i int) {
	for _, j := range voters {
		vj := votes[j*tasks : (j+1)*tasks]
		c.covered[j]++
		if len(voters) > 1 {
			c.overlapped[j]++
		}
		for _, o := range voters {
			if o != j && disagree(vj, votes[o*tasks:(o+1)*tasks]) {
				c.conflicted[j]++
				break
			}
		}
		for t, y := range vj {
			if y != 0 {
				c.emitted[j*tasks+t][y] = struct{}{}
			}
		}
		if gold == nil {
			continue
		}
		judged, right := false, true
		for t, y := range vj {
			if y == 0 || gold[t][i] == 0 {
				continue
			}
			judged = true
			right = right && y == gold[t][i]
		}
		switch {
		case !judged:
		case right:
			c.correct[j]++
		default:
			c.incorrect[j]++
		}
	}
}

func disagree(a, b []int) bool {
	for t := range a {
		if a[t] != 0 && b[t] != 0 && a[t] != b[t] {
			return true
		}
	}
	return false
}

// LabelCoverage returns the fraction of examples on which at least one
// labeling function voted.
func LabelCoverage(L []mat.Matrix) (float64, error) {
	n, m, err := validate(L, nil)
	if err != nil {
		return 0, err
	}
	covered := 0
	for i := 0; i < n; i++ {
	row:
		for _, Lt := range L {
			for j := 0; j < m; j++ {
				if Lt.At(i, j) != 0 {
					covered++
					break row
				}
			}
		}
	}
	return float64(covered) / float64(n), nil
}

// MeanCoverage averages Coverage over labeling functions.
func MeanCoverage(summaries []Summary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	cov := make([]float64, len(summaries))
	for j, s := range summaries {
		cov[j] = s.Coverage
	}
	return stat.Mean(cov, nil)
}

// MeanEmpiricalAccuracy averages EmpiricalAccuracy over the labeling
// functions for which it is defined, weighting each by its judged votes.
// It is NaN when no vote was judged.
func MeanEmpiricalAccuracy(summaries []Summary) float64 {
	var acc, weights []float64
	for _, s := range summaries {
		if judged := s.Correct + s.Incorrect; judged > 0 {
			acc = append(acc, s.EmpiricalAccuracy)
			weights = append(weights, float64(judged))
		}
	}
	if len(acc) == 0 {
		return math.NaN()
	}
	return stat.Mean(acc, weights)
}

func validate(L []mat.Matrix, gold [][]int) (n, m int, err error) {
	if len(L) == 0 {
		return 0, 0, errors.NewShapeMismatchError("analysis.Summarize", -1, "tasks", 1, 0)
	}
	for t, Lt := range L {
		if Lt == nil {
			return 0, 0, errors.NewShapeMismatchErrorf("analysis.Summarize", t, "matrices", 1, 0, "label matrix is nil")
		}
	}
	n, m = L[0].Dims()
	if n < 1 {
		return 0, 0, errors.NewShapeMismatchError("analysis.Summarize", 0, "rows", 1, n)
	}
	for t, Lt := range L {
		r, c := Lt.Dims()
		if r != n {
			return 0, 0, errors.NewShapeMismatchError("analysis.Summarize", t, "rows", n, r)
		}
		if c != m {
			return 0, 0, errors.NewShapeMismatchError("analysis.Summarize", t, "labeling functions", m, c)
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v := Lt.At(i, j); v < 0 || v != math.Trunc(v) {
					return 0, 0, errors.NewShapeMismatchErrorf("analysis.Summarize", t, "label value", 0, int(v),
						"entry (%d, %d) = %v is not a label", i, j, v)
				}
			}
		}
	}
	if gold == nil {
		return n, m, nil
	}
	if len(gold) != len(L) {
		return 0, 0, errors.NewShapeMismatchError("analysis.Summarize", -1, "tasks", len(L), len(gold))
	}
	for t, g := range gold {
		if len(g) != n {
			return 0, 0, errors.NewShapeMismatchErrorf("analysis.Summarize", t, "rows", n, len(g),
				"gold labels must align with the label matrices")
		}
	}
	return n, m, nil
}
