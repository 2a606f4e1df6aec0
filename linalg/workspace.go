package linalg

import (
	"fmt"
	"math"
)

// Workspace holds the PCG scratch vectors for one fixed system size. It is
// owned by a single solver and reused across calls; every call overwrites the
// vectors before reading them.
type Workspace struct {
	R, Z, P, Ap, InvDiag []float64

	// X is the solution buffer used by WorkspaceSolver
	X []float64
}

// NewWorkspace allocates scratch for n unknowns.
func NewWorkspace(n int) *Workspace {
	buf := make([]float64, 6*n)
	return &Workspace{
		R:       buf[0*n : 1*n : 1*n],
		Z:       buf[1*n : 2*n : 2*n],
		P:       buf[2*n : 3*n : 3*n],
		Ap:      buf[3*n : 4*n : 4*n],
		InvDiag: buf[4*n : 5*n : 5*n],
		X:       buf[5*n : 6*n : 6*n],
	}
}

func (ws *Workspace) Len() int { return len(ws.R) }

// PCGWorkspace is PCG without heap allocation: x holds the initial guess on
// entry and the solution on return, and all scratch comes from ws. Vector
// updates are fused into single passes over the data.
func PCGWorkspace(A *CSRMatrix, b, x []float64, tol float64, maxIter int, ws *Workspace) Result {
	n := A.N
	if len(b) != n || len(x) != n || ws.Len() != n {
		panic(fmt.Errorf("%w: A is %d×%d, len(b)=%d, len(x)=%d, workspace=%d",
			ErrDimensionMismatch, n, n, len(b), len(x), ws.Len()))
	}
	r, z, p, Ap, invDiag := ws.R, ws.Z, ws.P, ws.Ap, ws.InvDiag

	jacobi(A, invDiag)

	A.MulVec(Ap, x)
	var bb, rr float64
	for i := 0; i < n; i++ {
		r[i] = b[i] - Ap[i]
		bb += b[i] * b[i]
		rr += r[i] * r[i]
	}

	threshold := tol * math.Max(math.Sqrt(bb), 1)
	rnorm := math.Sqrt(rr)
	if rnorm < threshold {
		return Result{X: x, Iterations: 0, Residual: rnorm}
	}

	var rz float64
	for i := 0; i < n; i++ {
		z[i] = invDiag[i] * r[i]
		p[i] = z[i]
		rz += r[i] * z[i]
	}

	iter := 0
	for iter < maxIter {
		A.MulVec(Ap, p)
		var pAp float64
		for i := 0; i < n; i++ {
			pAp += p[i] * Ap[i]
		}
		if pAp < curvatureFloor {
			break
		}
		alpha := rz / pAp

		rr = 0
		for i := 0; i < n; i++ {
			x[i] += alpha * p[i]
			r[i] -= alpha * Ap[i]
			rr += r[i] * r[i]
		}
		iter++

		rnorm = math.Sqrt(rr)
		if rnorm < threshold {
			break
		}

		var rzNew float64
		for i := 0; i < n; i++ {
			z[i] = invDiag[i] * r[i]
			rzNew += r[i] * z[i]
		}
		beta := rzNew / rz
		rz = rzNew
		for i := 0; i < n; i++ {
			p[i] = z[i] + beta*p[i]
		}
	}

	return Result{X: x, Iterations: iter, Residual: rnorm}
}
