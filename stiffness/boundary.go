package stiffness

import (
	"github.com/notargets/TopOpt/linalg"
)

// Constraint is a set of fixed (zero-displacement) DOFs prepared for repeated
// application to matrices of one size.
type Constraint struct {
	fixed []int
	mask  []bool
}

// NewConstraint marks the given DOFs of an n-DOF system. Indices must lie in
// [0, n); duplicates are harmless.
func NewConstraint(n int, fixed []int) *Constraint {
	c := &Constraint{
		fixed: append([]int(nil), fixed...),
		mask:  make([]bool, n),
	}
	for _, d := range fixed {
		c.mask[d] = true
	}
	return c
}

func (c *Constraint) Fixed() []int { return c.fixed }

func (c *Constraint) IsFixed(d int) bool { return c.mask[d] }

// Apply eliminates the fixed DOFs by identity rows: every stored entry whose
// row or column is fixed is zeroed, the diagonal of a fixed DOF becomes 1 and
// f[d] becomes 0. K stays symmetric. One pass over the nonzeros.
//
// The diagonal of every fixed DOF must be present in K's pattern.
func (c *Constraint) Apply(K *linalg.CSRMatrix, f []float64) {
	for r := 0; r < K.N; r++ {
		rowFixed := c.mask[r]
		for k := K.RowPointers[r]; k < K.RowPointers[r+1]; k++ {
			col := int(K.ColIndices[k])
			switch {
			case rowFixed && col == r:
				K.Values[k] = 1
			case rowFixed || c.mask[col]:
				K.Values[k] = 0
			}
		}
	}
	for _, d := range c.fixed {
		f[d] = 0
	}
}

// ApplyBoundaryConditions applies identity-row elimination of the fixed DOFs
// to K and f in place. Indices outside [0, K.N) are a caller error.
func ApplyBoundaryConditions(K *linalg.CSRMatrix, f []float64, fixed []int) {
	NewConstraint(K.N, fixed).Apply(K, f)
}
