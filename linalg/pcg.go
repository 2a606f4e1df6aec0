package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// curvatureFloor is the smallest pᵀAp accepted before the search direction is
// treated as degenerate (singular or rank-deficient system).
const curvatureFloor = 1e-30

// PCG solves A·x = b with Jacobi-preconditioned conjugate gradients, starting
// from x0 (zero when nil). It allocates its own vectors; see PCGWorkspace for
// the allocation-free variant. Iteration stops when ‖r‖ < tol·max(‖b‖, 1),
// after maxIter iterations, or when the curvature pᵀAp degenerates.
func PCG(A *CSRMatrix, b, x0 []float64, tol float64, maxIter int) Result {
	n := A.N
	if len(b) != n || (x0 != nil && len(x0) != n) {
		panic(fmt.Errorf("%w: A is %d×%d, len(b)=%d, len(x0)=%d", ErrDimensionMismatch, n, n, len(b), len(x0)))
	}

	x := make([]float64, n)
	if x0 != nil {
		copy(x, x0)
	}
	r := make([]float64, n)
	z := make([]float64, n)
	p := make([]float64, n)
	Ap := make([]float64, n)
	invDiag := make([]float64, n)
	jacobi(A, invDiag)

	A.MulVec(Ap, x)
	floats.SubTo(r, b, Ap)

	threshold := tol * math.Max(floats.Norm(b, 2), 1)
	rnorm := floats.Norm(r, 2)
	if rnorm < threshold {
		return Result{X: x, Iterations: 0, Residual: rnorm}
	}

	floats.MulTo(z, invDiag, r)
	copy(p, z)
	rz := floats.Dot(r, z)

	iter := 0
	for iter < maxIter {
		A.MulVec(Ap, p)
		pAp := floats.Dot(p, Ap)
		if pAp < curvatureFloor {
			break
		}
		alpha := rz / pAp
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, Ap)
		iter++

		rnorm = floats.Norm(r, 2)
		if rnorm < threshold {
			break
		}

		floats.MulTo(z, invDiag, r)
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		floats.Scale(beta, p)
		floats.Add(p, z)
	}

	return Result{X: x, Iterations: iter, Residual: rnorm}
}

// jacobi fills invDiag with 1/A[i,i], using 1 where the diagonal is zero.
func jacobi(A *CSRMatrix, invDiag []float64) {
	A.Diagonal(invDiag)
	for i, d := range invDiag {
		if d != 0 {
			invDiag[i] = 1 / d
		} else {
			invDiag[i] = 1
		}
	}
}
