package stiffness

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"

	"github.com/notargets/TopOpt/element"
	"github.com/notargets/TopOpt/linalg"
	"github.com/notargets/TopOpt/mesh"
)

// AssembleBasic builds the global stiffness matrix from scratch for the given
// density field. Contributions are accumulated in a dictionary-of-keys matrix
// and compressed to CSR with sorted columns. ke is the unit-modulus element
// stiffness; each element contributes ke·E(ρ_e).
//
// Every call allocates the full pattern; use Assembler in iterative loops.
func AssembleBasic(nelx, nely int, ke element.Stiffness, rho []float64, law SIMP) (*linalg.CSRMatrix, error) {
	grid, err := mesh.NewGrid(nelx, nely)
	if err != nil {
		return nil, err
	}
	if len(rho) != grid.NumElements() {
		return nil, fmt.Errorf("%w: %d densities for %d elements",
			ErrDimensionMismatch, len(rho), grid.NumElements())
	}

	ndof := grid.TotalDofs()
	dok := sparse.NewDOK(ndof, ndof)
	for elx := 0; elx < nelx; elx++ {
		for ely := 0; ely < nely; ely++ {
			E := law.Modulus(rho[mesh.ElementIndex(elx, ely, nely)])
			dofs := mesh.ElementDofs(elx, ely, nelx, nely)
			for i, r := range dofs {
				for j, c := range dofs {
					dok.Set(r, c, dok.At(r, c)+ke[i*element.NumDofs+j]*E)
				}
			}
		}
	}

	type entry struct {
		col int
		val float64
	}
	rows := make([][]entry, ndof)
	dok.DoNonZero(func(i, j int, v float64) {
		rows[i] = append(rows[i], entry{col: j, val: v})
	})

	rowPointers := make([]uint32, ndof+1)
	var (
		colIndices []uint32
		values     []float64
	)
	for r, ents := range rows {
		sort.Slice(ents, func(a, b int) bool { return ents[a].col < ents[b].col })
		for _, en := range ents {
			colIndices = append(colIndices, uint32(en.col))
			values = append(values, en.val)
		}
		rowPointers[r+1] = uint32(len(values))
	}

	return linalg.NewCSRMatrix(ndof, rowPointers, colIndices, values)
}
