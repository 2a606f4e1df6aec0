package element

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// NumDofs is the number of degrees of freedom of one bilinear quadrilateral.
const NumDofs = 8

// Stiffness is a dense 8x8 element stiffness matrix stored row-major.
// Local DOF order is (x,y) of the bottom-left, bottom-right, top-right and
// top-left nodes.
type Stiffness [NumDofs * NumDofs]float64

// At returns entry (i, j).
func (ke *Stiffness) At(i, j int) float64 {
	return ke[i*NumDofs+j]
}

// Matrix copies the stiffness into a gonum symmetric matrix.
func (ke *Stiffness) Matrix() *mat.SymDense {
	m := mat.NewSymDense(NumDofs, nil)
	for i := 0; i < NumDofs; i++ {
		for j := i; j < NumDofs; j++ {
			m.SetSym(i, j, ke[i*NumDofs+j])
		}
	}
	return m
}

// Scaled returns s*KE.
func (ke *Stiffness) Scaled(s float64) (out Stiffness) {
	for i, v := range ke {
		out[i] = s * v
	}
	return
}

// Energy returns uᵀ·KE·u for an element displacement vector in local order.
func (ke *Stiffness) Energy(u *[NumDofs]float64) (e float64) {
	for i := 0; i < NumDofs; i++ {
		row := ke[i*NumDofs : (i+1)*NumDofs]
		var s float64
		for j := 0; j < NumDofs; j++ {
			s += row[j] * u[j]
		}
		e += u[i] * s
	}
	return
}

// IsSymmetric reports whether |KE[i,j]-KE[j,i]| <= tol for all i, j.
func (ke *Stiffness) IsSymmetric(tol float64) bool {
	for i := 0; i < NumDofs; i++ {
		for j := i + 1; j < NumDofs; j++ {
			if math.Abs(ke[i*NumDofs+j]-ke[j*NumDofs+i]) > tol {
				return false
			}
		}
	}
	return true
}

func (ke *Stiffness) String() string {
	var sb strings.Builder
	for i := 0; i < NumDofs; i++ {
		sb.WriteString("[")
		for j := 0; j < NumDofs; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%10.6f", ke[i*NumDofs+j]))
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

// ElementStiffness returns the analytic stiffness of a unit-square, unit
// thickness, plane stress bilinear quadrilateral with Young's modulus E and
// Poisson ratio nu. The result is linear in E.
func ElementStiffness(E, nu float64) (ke Stiffness) {
	k := [8]float64{
		1.0/2 - nu/6,
		1.0/8 + nu/8,
		-1.0/4 - nu/12,
		-1.0/8 + 3*nu/8,
		-1.0/4 + nu/12,
		-1.0/8 - nu/8,
		nu / 6,
		1.0/8 - 3*nu/8,
	}
	// Index pattern into k for each (row, col); symmetric by construction.
	pattern := [NumDofs][NumDofs]int{
		{0, 1, 2, 3, 4, 5, 6, 7},
		{1, 0, 7, 6, 5, 4, 3, 2},
		{2, 7, 0, 5, 6, 3, 4, 1},
		{3, 6, 5, 0, 7, 2, 1, 4},
		{4, 5, 6, 7, 0, 1, 2, 3},
		{5, 4, 3, 2, 1, 0, 7, 6},
		{6, 3, 4, 1, 2, 7, 0, 5},
		{7, 2, 1, 4, 3, 6, 5, 0},
	}
	scale := E / (1 - nu*nu)
	for i := 0; i < NumDofs; i++ {
		for j := 0; j < NumDofs; j++ {
			ke[i*NumDofs+j] = scale * k[pattern[i][j]]
		}
	}
	return
}

// Quad4 is the bilinear plane stress quadrilateral on a unit square.
type Quad4 struct{}

func (Quad4) GetProperties() ElementProperties {
	return ElementProperties{
		Name:        "Bilinear Plane Stress Quadrilateral",
		ShortName:   "Q4",
		Type:        Quad,
		NVp:         4,
		DofsPerNode: 2,
		NumDofs:     NumDofs,
		NEdges:      4,
		Dimensions:  D2,
		Width:       1,
		Height:      1,
		Thickness:   1,
		LocalNodeXYs: [][2]float64{
			{0, 0}, {1, 0}, {1, 1}, {0, 1},
		},
	}
}

func (Quad4) Stiffness(E, nu float64) Stiffness {
	return ElementStiffness(E, nu)
}
