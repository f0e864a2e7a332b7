package labelmodel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

// rowNonZeroDoer is implemented by sparse label matrices such as
// *sparse.CSR. Rows of matrices without it are read with At.
type rowNonZeroDoer interface {
	DoRowNonZero(i int, fn func(i, j int, v float64))
}

// validateLabelMatrices checks that L holds one matrix per task, that every
// matrix has the same shape with at least one row and column, and that
// every entry is an integer label in [0, K_t]. It returns n and m.
func validateLabelMatrices(op string, fs *taskgraph.FeasibleSet, L []mat.Matrix) (n, m int, err error) {
	cards := fs.Cardinalities()
	if len(L) != len(cards) {
		return 0, 0, errors.NewShapeMismatchError(op, -1, "tasks", len(cards), len(L))
	}
	for t, Lt := range L {
		if Lt == nil {
			return 0, 0, errors.NewShapeMismatchErrorf(op, t, "matrices", 1, 0, "label matrix is nil")
		}
	}

	n, m = L[0].Dims()
	if n < 1 {
		return 0, 0, errors.NewShapeMismatchErrorf(op, 0, "rows", 1, n, "at least one example is required")
	}
	if m < 1 {
		return 0, 0, errors.NewShapeMismatchErrorf(op, 0, "labeling functions", 1, m, "at least one labeling function is required")
	}
	for t, Lt := range L {
		r, c := Lt.Dims()
		if r != n {
			return 0, 0, errors.NewShapeMismatchErrorf(op, t, "rows", n, r, "label matrices must be row-aligned")
		}
		if c != m {
			return 0, 0, errors.NewShapeMismatchError(op, t, "labeling functions", m, c)
		}
	}

	for t, Lt := range L {
		var bad error
		check := func(i, j int, v float64) {
			if bad != nil || v == 0 {
				return
			}
			if v != math.Trunc(v) || v < 0 || v > float64(cards[t]) {
				bad = errors.NewShapeMismatchErrorf(op, t, "label value", cards[t], int(v),
					"entry (%d, %d) = %v is not a label in [0, %d]", i, j, v, cards[t])
			}
		}
		forEachEntry(Lt, n, m, check)
		if bad != nil {
			return 0, 0, bad
		}
	}
	return n, m, nil
}

func forEachEntry(Lt mat.Matrix, n, m int, fn func(i, j int, v float64)) {
	if rd, ok := Lt.(rowNonZeroDoer); ok {
		for i := 0; i < n; i++ {
			rd.DoRowNonZero(i, fn)
		}
		return
	}
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			fn(i, j, Lt.At(i, j))
		}
	}
}

// indicatorBuilder turns one example's votes into the columns of the
// augmented indicator: column j*k + a is set when labeling function j voted
// on at least one task and every vote it cast matches feasible vector a.
// A builder holds scratch space and must not be shared between goroutines.
type indicatorBuilder struct {
	fs    *taskgraph.FeasibleSet
	L     []mat.Matrix
	m     int
	tasks int
	k     int

	votes   []int // m rows of tasks labels, 0 for abstain
	touched []int
	seen    []bool
}

func newIndicatorBuilder(fs *taskgraph.FeasibleSet, L []mat.Matrix, m int) *indicatorBuilder {
	tasks := fs.NumTasks()
	return &indicatorBuilder{
		fs:    fs,
		L:     L,
		m:     m,
		tasks: tasks,
		k:     fs.Len(),
		votes: make([]int, m*tasks),
		seen:  make([]bool, m),
	}
}

// columns appends the indicator columns of example i to dst in ascending
// order.
func (b *indicatorBuilder) columns(i int, dst []int) []int {
	for _, j := range b.touched {
		clear(b.votes[j*b.tasks : (j+1)*b.tasks])
		b.seen[j] = false
	}
	b.touched = b.touched[:0]

	for t, Lt := range b.L {
		record := func(_, j int, v float64) {
			if v == 0 {
				return
			}
			if !b.seen[j] {
				b.seen[j] = true
				b.touched = append(b.touched, j)
			}
			b.votes[j*b.tasks+t] = int(v)
		}
		if rd, ok := Lt.(rowNonZeroDoer); ok {
			rd.DoRowNonZero(i, record)
		} else {
			for j := 0; j < b.m; j++ {
				record(i, j, Lt.At(i, j))
			}
		}
	}
	sort.Ints(b.touched)

	for _, j := range b.touched {
		vote := b.votes[j*b.tasks : (j+1)*b.tasks]
		for a := 0; a < b.k; a++ {
			if b.consistent(a, vote) {
				dst = append(dst, j*b.k+a)
			}
		}
	}
	return dst
}

func (b *indicatorBuilder) consistent(a int, vote []int) bool {
	for t, v := range vote {
		if v != 0 && b.fs.Label(a, t) != v {
			return false
		}
	}
	return true
}
