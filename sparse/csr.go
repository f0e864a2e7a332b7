// Package sparse provides a compressed sparse row matrix for noisy label
// matrices. Most labeling functions abstain on most examples, so the stored
// entries are the votes and every abstention is an implicit zero.
//
// CSR implements mat.Matrix and can be passed anywhere gonum expects one.
package sparse

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// CSR is an immutable compressed sparse row matrix.
type CSR struct {
	rows, cols int
	indptr     []int
	ind        []int
	data       []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR builds a CSR from raw arrays. indptr has rows+1 entries, the column
// indices of each row must be strictly increasing and in range. The slices
// are copied.
func NewCSR(rows, cols int, indptr, ind []int, data []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, errors.NewValueError("sparse.NewCSR", fmt.Sprintf("negative dimensions %dx%d", rows, cols))
	}
	if len(indptr) != rows+1 {
		return nil, errors.NewDimensionError("sparse.NewCSR", rows+1, len(indptr), 0)
	}
	if len(ind) != len(data) {
		return nil, errors.NewDimensionError("sparse.NewCSR", len(ind), len(data), 1)
	}
	if indptr[0] != 0 || indptr[rows] != len(ind) {
		return nil, errors.NewValueError("sparse.NewCSR", "indptr must start at 0 and end at len(ind)")
	}
	for i := 0; i < rows; i++ {
		if indptr[i+1] < indptr[i] {
			return nil, errors.NewValueError("sparse.NewCSR", fmt.Sprintf("indptr decreases at row %d", i))
		}
		for k := indptr[i]; k < indptr[i+1]; k++ {
			if ind[k] < 0 || ind[k] >= cols {
				return nil, errors.NewValueError("sparse.NewCSR", fmt.Sprintf("column %d out of range at row %d", ind[k], i))
			}
			if k > indptr[i] && ind[k] <= ind[k-1] {
				return nil, errors.NewValueError("sparse.NewCSR", fmt.Sprintf("columns not strictly increasing at row %d", i))
			}
		}
	}
	return &CSR{
		rows:   rows,
		cols:   cols,
		indptr: append([]int(nil), indptr...),
		ind:    append([]int(nil), ind...),
		data:   append([]float64(nil), data...),
	}, nil
}

// FromDense copies the non-zero entries of m.
func FromDense(m mat.Matrix) *CSR {
	r, c := m.Dims()
	s := &CSR{rows: r, cols: c, indptr: make([]int, r+1)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				s.ind = append(s.ind, j)
				s.data = append(s.data, v)
			}
		}
		s.indptr[i+1] = len(s.ind)
	}
	return s
}

// FromTriplets builds a CSR from coordinate lists. Explicit zeros are
// dropped; a repeated (row, col) pair is an error.
func FromTriplets(rows, cols int, ri, ci []int, vals []float64) (*CSR, error) {
	if len(ri) != len(ci) || len(ri) != len(vals) {
		return nil, errors.NewValueError("sparse.FromTriplets",
			fmt.Sprintf("coordinate lists differ in length: %d, %d, %d", len(ri), len(ci), len(vals)))
	}
	order := make([]int, len(ri))
	for k := range order {
		order[k] = k
		if ri[k] < 0 || ri[k] >= rows || ci[k] < 0 || ci[k] >= cols {
			return nil, errors.NewValueError("sparse.FromTriplets",
				fmt.Sprintf("entry (%d, %d) outside %dx%d", ri[k], ci[k], rows, cols))
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if ri[ka] != ri[kb] {
			return ri[ka] < ri[kb]
		}
		return ci[ka] < ci[kb]
	})

	s := &CSR{rows: rows, cols: cols, indptr: make([]int, rows+1)}
	prevRow, prevCol := -1, -1
	for _, k := range order {
		if ri[k] == prevRow && ci[k] == prevCol {
			return nil, errors.NewValueError("sparse.FromTriplets",
				fmt.Sprintf("duplicate entry (%d, %d)", ri[k], ci[k]))
		}
		prevRow, prevCol = ri[k], ci[k]
		if vals[k] == 0 {
			continue
		}
		s.ind = append(s.ind, ci[k])
		s.data = append(s.data, vals[k])
		s.indptr[ri[k]+1]++
	}
	for i := 0; i < rows; i++ {
		s.indptr[i+1] += s.indptr[i]
	}
	return s, nil
}

// Dims returns the number of rows and columns.
func (s *CSR) Dims() (int, int) { return s.rows, s.cols }

// At returns the element at row i, column j.
func (s *CSR) At(i, j int) float64 {
	if uint(i) >= uint(s.rows) {
		panic(mat.ErrRowAccess)
	}
	if uint(j) >= uint(s.cols) {
		panic(mat.ErrColAccess)
	}
	row := s.ind[s.indptr[i]:s.indptr[i+1]]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return s.data[s.indptr[i]+k]
	}
	return 0
}

// T returns the transpose without copying.
func (s *CSR) T() mat.Matrix { return mat.Transpose{Matrix: s} }

// NNZ returns the number of stored entries.
func (s *CSR) NNZ() int { return len(s.data) }

// RowNNZ returns the number of stored entries in row i.
func (s *CSR) RowNNZ(i int) int { return s.indptr[i+1] - s.indptr[i] }

// DoNonZero calls fn for every stored entry in row-major order.
func (s *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < s.rows; i++ {
		s.DoRowNonZero(i, fn)
	}
}

// DoRowNonZero calls fn for every stored entry of row i in column order.
func (s *CSR) DoRowNonZero(i int, fn func(i, j int, v float64)) {
	for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
		fn(i, s.ind[k], s.data[k])
	}
}

// ToDense returns a dense copy. An empty matrix yields a zero-value Dense.
func (s *CSR) ToDense() *mat.Dense {
	if s.rows == 0 || s.cols == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(s.rows, s.cols, nil)
	s.DoNonZero(func(i, j int, v float64) { d.Set(i, j, v) })
	return d
}

// SliceRows returns rows [from, to) as a new CSR.
func (s *CSR) SliceRows(from, to int) *CSR {
	if from < 0 || to > s.rows || from > to {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := s.indptr[from], s.indptr[to]
	out := &CSR{
		rows:   to - from,
		cols:   s.cols,
		indptr: make([]int, to-from+1),
		ind:    append([]int(nil), s.ind[lo:hi]...),
		data:   append([]float64(nil), s.data[lo:hi]...),
	}
	for i := from; i <= to; i++ {
		out.indptr[i-from] = s.indptr[i] - lo
	}
	return out
}
