package linalg

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// laplacian1D builds the SPD tridiagonal matrix tridiag(-1, 2+shift, -1).
func laplacian1D(t testing.TB, n int, shift float64) *CSRMatrix {
	rp := []uint32{0}
	var ci []uint32
	var vals []float64
	for i := 0; i < n; i++ {
		if i > 0 {
			ci = append(ci, uint32(i-1))
			vals = append(vals, -1)
		}
		ci = append(ci, uint32(i))
		vals = append(vals, 2+shift)
		if i < n-1 {
			ci = append(ci, uint32(i+1))
			vals = append(vals, -1)
		}
		rp = append(rp, uint32(len(vals)))
	}
	A, err := NewCSRMatrix(n, rp, ci, vals)
	require.NoError(t, err)
	return A
}

func identity(t testing.TB, n int) *CSRMatrix {
	rp := make([]uint32, n+1)
	ci := make([]uint32, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		rp[i+1] = uint32(i + 1)
		ci[i] = uint32(i)
		vals[i] = 1
	}
	A, err := NewCSRMatrix(n, rp, ci, vals)
	require.NoError(t, err)
	return A
}

func TestNewCSRMatrixValidation(t *testing.T) {
	_, err := NewCSRMatrix(0, []uint32{0}, nil, nil)
	assert.ErrorIs(t, err, ErrMalformedCSR)
	_, err = NewCSRMatrix(2, []uint32{0, 1}, []uint32{0}, []float64{1})
	assert.ErrorIs(t, err, ErrMalformedCSR)
	_, err = NewCSRMatrix(2, []uint32{0, 1, 2}, []uint32{0, 2}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrMalformedCSR)
	_, err = NewCSRMatrix(2, []uint32{0, 2, 1}, []uint32{0, 1}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrMalformedCSR)
}

func TestCSRAccessors(t *testing.T) {
	A := laplacian1D(t, 5, 0)
	assert.Equal(t, 13, A.NNZ())
	assert.Equal(t, 2.0, A.At(2, 2))
	assert.Equal(t, -1.0, A.At(2, 3))
	assert.Equal(t, 0.0, A.At(0, 4))
	assert.Equal(t, -1, A.Slot(0, 4))
	assert.True(t, A.IsSymmetric(1e-15))
	assert.Equal(t, 2.0, A.MaxAbs())

	diag := make([]float64, 5)
	A.Diagonal(diag)
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, diag)

	x := []float64{1, 2, 3, 4, 5}
	y := make([]float64, 5)
	A.MulVec(y, x)
	assert.Equal(t, []float64{0, 0, 0, 0, 6}, y)

	// gonum and james-bowman/sparse views agree with the CSR
	D := A.Dense()
	S := A.ToSparse()
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			assert.Equal(t, A.At(i, j), D.At(i, j))
			assert.Equal(t, A.At(i, j), S.At(i, j))
		}
	}

	B := A.Clone()
	B.Values[0] = 42
	assert.Equal(t, 2.0, A.Values[0])
}

func TestPCGIdentity(t *testing.T) {
	A := identity(t, 6)
	b := []float64{1, -2, 3, 0.5, 0, 7}

	t.Run("initial guess is solution", func(t *testing.T) {
		res := PCG(A, b, b, 1e-10, 100)
		assert.Equal(t, 0, res.Iterations)
		assert.Equal(t, b, res.X)
	})
	t.Run("zero guess", func(t *testing.T) {
		res := PCG(A, b, nil, 1e-10, 100)
		assert.LessOrEqual(t, res.Iterations, 1)
		assert.InDeltaSlice(t, b, res.X, 1e-14)
	})
	t.Run("workspace", func(t *testing.T) {
		ws := NewWorkspace(6)
		x := append([]float64(nil), b...)
		res := PCGWorkspace(A, b, x, 1e-10, 100, ws)
		assert.Equal(t, 0, res.Iterations)
		assert.Equal(t, b, res.X)
	})
}

func TestPCGSmallSPD(t *testing.T) {
	A, err := NewCSRMatrix(2, []uint32{0, 2, 4}, []uint32{0, 1, 0, 1}, []float64{4, 1, 1, 3})
	require.NoError(t, err)
	b := []float64{1, 2}
	want := []float64{1.0 / 11, 7.0 / 11}

	res := PCG(A, b, nil, 1e-12, 100)
	assert.InDeltaSlice(t, want, res.X, 1e-6)
	assert.Less(t, res.Residual, 1e-10)
	assert.LessOrEqual(t, res.Iterations, 2)

	sol := NewWorkspaceSolver(2)
	wres := sol.Solve(A, b, nil, 1e-12, 100)
	assert.InDeltaSlice(t, want, wres.X, 1e-6)
}

func TestPCGMatchesDenseSolve(t *testing.T) {
	for _, n := range []int{3, 10, 50, 200} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			A := laplacian1D(t, n, 0.01)
			b := make([]float64, n)
			for i := range b {
				b[i] = math.Sin(float64(i) + 0.3)
			}

			var chol mat.Cholesky
			sym := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					sym.SetSym(i, j, A.At(i, j))
				}
			}
			require.True(t, chol.Factorize(sym))
			var want mat.VecDense
			require.NoError(t, chol.SolveVecTo(&want, mat.NewVecDense(n, b)))

			ref := PCG(A, b, nil, 1e-12, 10*n)
			assert.InDeltaSlice(t, want.RawVector().Data, ref.X, 1e-8)

			ws := NewWorkspace(n)
			x := make([]float64, n)
			opt := PCGWorkspace(A, b, x, 1e-12, 10*n, ws)
			assert.InDeltaSlice(t, want.RawVector().Data, opt.X, 1e-8)
			assert.InDelta(t, ref.Iterations, opt.Iterations, 1)
		})
	}
}

func TestPCGWorkspaceReuse(t *testing.T) {
	n := 40
	A := laplacian1D(t, n, 0.1)
	sol := NewWorkspaceSolver(n)
	for k := 0; k < 3; k++ {
		b := make([]float64, n)
		b[(k*7)%n] = 1
		ref := PCG(A, b, nil, 1e-12, 1000)
		got := sol.Solve(A, b, nil, 1e-12, 1000)
		assert.InDeltaSlice(t, ref.X, got.X, 1e-10)
	}
}

func TestPCGDegenerateCurvature(t *testing.T) {
	// Zero matrix: the first search direction has zero curvature.
	A, err := NewCSRMatrix(3, []uint32{0, 1, 2, 3}, []uint32{0, 1, 2}, []float64{0, 0, 0})
	require.NoError(t, err)
	b := []float64{1, 2, 2}

	res := PCG(A, b, nil, 1e-10, 50)
	assert.Equal(t, 0, res.Iterations)
	assert.InDelta(t, 3.0, res.Residual, 1e-14)
	for _, v := range res.X {
		assert.False(t, math.IsNaN(v))
	}

	wres := PCGWorkspace(A, b, make([]float64, 3), 1e-10, 50, NewWorkspace(3))
	assert.Equal(t, 0, wres.Iterations)
	assert.InDelta(t, 3.0, wres.Residual, 1e-14)
}

func TestPCGIterationCap(t *testing.T) {
	A := laplacian1D(t, 100, 0)
	b := make([]float64, 100)
	b[50] = 1
	res := PCG(A, b, nil, 1e-14, 3)
	assert.Equal(t, 3, res.Iterations)
	assert.Greater(t, res.Residual, 1e-14)
}

func TestSolversImplementInterface(t *testing.T) {
	var solvers = []Solver{ReferenceSolver{}, NewWorkspaceSolver(4)}
	A := laplacian1D(t, 4, 0)
	b := []float64{1, 0, 0, 1}
	for _, s := range solvers {
		res := s.Solve(A, b, nil, 1e-12, 100)
		assert.InDeltaSlicef(t, []float64{1, 1, 1, 1}, res.X, 1e-10, "%s", s.Name())
	}
}

func BenchmarkPCG(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		A := laplacian1D(b, n, 0.01)
		rhs := make([]float64, n)
		for i := range rhs {
			rhs[i] = 1
		}
		b.Run(fmt.Sprintf("reference_%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				PCG(A, rhs, nil, 1e-8, n)
			}
		})
		b.Run(fmt.Sprintf("workspace_%d", n), func(b *testing.B) {
			ws := NewWorkspace(n)
			x := make([]float64, n)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				clear(x)
				PCGWorkspace(A, rhs, x, 1e-8, n, ws)
			}
		})
	}
}
