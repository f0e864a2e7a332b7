package labelmodel

import (
	"runtime"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/core/parallel"
	"github.com/YuminosukeSato/weaksup/taskgraph"
)

const (
	// overlapParallelThreshold is the row count up to which overlaps are
	// accumulated on the calling goroutine.
	overlapParallelThreshold = 256

	// maxOverlapCells caps the packed count buffers held at once across
	// all workers.
	maxOverlapCells = 1 << 24
)

// EstimateOverlap computes the overlap matrix O = ΛᵀΛ / n of the augmented
// vote indicators Λ (n × m·k, see the package documentation) for the label
// matrices L, one per task. Abstentions contribute nothing, so a labeling
// function that always abstains has all-zero rows and columns in O.
//
// Co-occurrences are counted exactly as integers per row chunk and summed in
// chunk order, so the result does not depend on scheduling.
func EstimateOverlap(fs *taskgraph.FeasibleSet, L []mat.Matrix) (*mat.SymDense, error) {
	n, m, err := validateLabelMatrices("EstimateOverlap", fs, L)
	if err != nil {
		return nil, err
	}
	return estimateOverlap(fs, L, n, m), nil
}

func estimateOverlap(fs *taskgraph.FeasibleSet, L []mat.Matrix, n, m int) *mat.SymDense {
	d := m * fs.Len()
	packed := d * (d + 1) / 2

	ranges := []parallel.Range{{Start: 0, End: n}}
	if n > overlapParallelThreshold {
		workers := runtime.NumCPU()
		if budget := maxOverlapCells / packed; budget < workers {
			workers = max(budget, 1)
		}
		ranges = parallel.Chunks(n, workers)
	}

	partial := parallel.MapRanges(ranges, func(start, end int) []int64 {
		counts := make([]int64, packed)
		b := newIndicatorBuilder(fs, L, m)
		var cols []int
		for i := start; i < end; i++ {
			cols = b.columns(i, cols[:0])
			for x, a := range cols {
				row := packedRowOffset(a, d) - a
				for _, c := range cols[x:] {
					counts[row+c]++
				}
			}
		}
		return counts
	})

	total := partial[0]
	for _, p := range partial[1:] {
		for i, v := range p {
			total[i] += v
		}
	}

	O := mat.NewSymDense(d, nil)
	scale := 1 / float64(n)
	for a := 0; a < d; a++ {
		row := packedRowOffset(a, d) - a
		for c := a; c < d; c++ {
			if v := total[row+c]; v != 0 {
				O.SetSym(a, c, float64(v)*scale)
			}
		}
	}
	return O
}

// packedRowOffset is the position of element (a, a) in a row-major packed
// upper triangle of a d × d matrix.
func packedRowOffset(a, d int) int {
	return a*d - a*(a-1)/2
}
