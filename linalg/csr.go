package linalg

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch indicates incompatible matrix and vector sizes.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrMalformedCSR indicates inconsistent CSR arrays.
	ErrMalformedCSR = errors.New("linalg: malformed CSR matrix")
)

// CSRMatrix is a square sparse matrix in compressed sparse row form.
// This is the exchange format across the solver seam.
type CSRMatrix struct {
	Values      []float64
	ColIndices  []uint32
	RowPointers []uint32
	N           int
}

// NewCSRMatrix validates the CSR arrays of an n × n matrix and wraps them
// without copying.
func NewCSRMatrix(n int, rowPointers, colIndices []uint32, values []float64) (*CSRMatrix, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n=%d", ErrMalformedCSR, n)
	}
	if len(rowPointers) != n+1 {
		return nil, fmt.Errorf("%w: rowPointers length %d, want %d", ErrMalformedCSR, len(rowPointers), n+1)
	}
	nnz := int(rowPointers[n])
	if rowPointers[0] != 0 || len(colIndices) != nnz || len(values) != nnz {
		return nil, fmt.Errorf("%w: nnz=%d, colIndices=%d, values=%d",
			ErrMalformedCSR, nnz, len(colIndices), len(values))
	}
	for r := 0; r < n; r++ {
		if rowPointers[r+1] < rowPointers[r] {
			return nil, fmt.Errorf("%w: rowPointers decrease at row %d", ErrMalformedCSR, r)
		}
	}
	for _, c := range colIndices {
		if int(c) >= n {
			return nil, fmt.Errorf("%w: column %d out of range", ErrMalformedCSR, c)
		}
	}
	return &CSRMatrix{Values: values, ColIndices: colIndices, RowPointers: rowPointers, N: n}, nil
}

func (m *CSRMatrix) NNZ() int { return len(m.Values) }

// MulVec computes dst = A·x. dst must not alias x.
func (m *CSRMatrix) MulVec(dst, x []float64) {
	for i := 0; i < m.N; i++ {
		var sum float64
		for k := m.RowPointers[i]; k < m.RowPointers[i+1]; k++ {
			sum += m.Values[k] * x[m.ColIndices[k]]
		}
		dst[i] = sum
	}
}

// At returns entry (i, j); zero when (i, j) is outside the pattern.
// Columns are assumed sorted within each row.
func (m *CSRMatrix) At(i, j int) float64 {
	if k := m.Slot(i, j); k >= 0 {
		return m.Values[k]
	}
	return 0
}

// Slot returns the index of (i, j) in Values, or -1.
func (m *CSRMatrix) Slot(i, j int) int {
	start, end := m.RowPointers[i], m.RowPointers[i+1]
	cols := m.ColIndices[start:end]
	k := sort.Search(len(cols), func(p int) bool { return int(cols[p]) >= j })
	if k < len(cols) && int(cols[k]) == j {
		return int(start) + k
	}
	return -1
}

// Diagonal writes the diagonal entries into dst.
func (m *CSRMatrix) Diagonal(dst []float64) {
	for i := 0; i < m.N; i++ {
		dst[i] = 0
		for k := m.RowPointers[i]; k < m.RowPointers[i+1]; k++ {
			if int(m.ColIndices[k]) == i {
				dst[i] = m.Values[k]
				break
			}
		}
	}
}

// IsSymmetric reports whether |A[i,j]-A[j,i]| <= tol over the stored pattern.
func (m *CSRMatrix) IsSymmetric(tol float64) bool {
	for i := 0; i < m.N; i++ {
		for k := m.RowPointers[i]; k < m.RowPointers[i+1]; k++ {
			j := int(m.ColIndices[k])
			if math.Abs(m.Values[k]-m.At(j, i)) > tol {
				return false
			}
		}
	}
	return true
}

// MaxAbs returns the largest stored magnitude.
func (m *CSRMatrix) MaxAbs() (v float64) {
	for _, x := range m.Values {
		v = math.Max(v, math.Abs(x))
	}
	return
}

// Clone deep-copies the matrix.
func (m *CSRMatrix) Clone() *CSRMatrix {
	return &CSRMatrix{
		Values:      append([]float64(nil), m.Values...),
		ColIndices:  append([]uint32(nil), m.ColIndices...),
		RowPointers: append([]uint32(nil), m.RowPointers...),
		N:           m.N,
	}
}

// ToSparse converts to a james-bowman/sparse CSR, which implements mat.Matrix.
func (m *CSRMatrix) ToSparse() *sparse.CSR {
	ia := make([]int, len(m.RowPointers))
	for i, p := range m.RowPointers {
		ia[i] = int(p)
	}
	ja := make([]int, len(m.ColIndices))
	for i, c := range m.ColIndices {
		ja[i] = int(c)
	}
	data := append([]float64(nil), m.Values...)
	return sparse.NewCSR(m.N, m.N, ia, ja, data)
}

// Dense expands the matrix into a gonum dense matrix.
func (m *CSRMatrix) Dense() *mat.Dense {
	d := mat.NewDense(m.N, m.N, nil)
	for i := 0; i < m.N; i++ {
		for k := m.RowPointers[i]; k < m.RowPointers[i+1]; k++ {
			d.Set(i, int(m.ColIndices[k]), m.Values[k])
		}
	}
	return d
}
