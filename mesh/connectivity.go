package mesh

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/notargets/TopOpt/element"
)

const entriesPerElement = element.NumDofs * element.NumDofs

// Connectivity manages the precomputed sparsity pattern of the global stiffness
// matrix and the scatter indices from element contributions into it. It only
// depends on mesh size and Poisson ratio and is read-only once built.
type Connectivity struct {
	Grid
	Nu float64

	Element element.ReferenceElement
	// Unit-modulus element stiffness KE(E=1, Nu)
	KE element.Stiffness

	// Element → 8 global DOFs
	ElementDofTable [][8]int

	// CSR sparsity pattern, columns sorted within each row
	RowPointers []uint32
	ColIndices  []uint32
	NNZ         int

	// ElemToCSR[e*64 + i*8 + j] is the slot in the CSR values array that receives
	// KE[i,j] of element e
	ElemToCSR []uint32
}

// NewConnectivity builds the connectivity of an nelx × nely mesh.
func NewConnectivity(nelx, nely int, nu float64) (*Connectivity, error) {
	grid, err := NewGrid(nelx, nely)
	if err != nil {
		return nil, err
	}
	if !(nu > -1 && nu < 0.5) {
		return nil, fmt.Errorf("invalid Poisson ratio %g: must lie in (-1, 0.5)", nu)
	}
	if uint64(grid.TotalDofs()) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d DOFs exceed uint32 indexing", ErrInvalidDimensions, grid.TotalDofs())
	}

	quad := element.Quad4{}
	mc := &Connectivity{
		Grid:    grid,
		Nu:      nu,
		Element: quad,
		KE:      quad.Stiffness(1.0, nu),
	}

	mc.buildElementDofs()
	rowCols := mc.buildPattern()
	mc.buildScatterIndices(rowCols)

	return mc, nil
}

func (mc *Connectivity) buildElementDofs() {
	mc.ElementDofTable = make([][8]int, mc.NumElements())
	for elx := 0; elx < mc.Nelx; elx++ {
		for ely := 0; ely < mc.Nely; ely++ {
			mc.ElementDofTable[ElementIndex(elx, ely, mc.Nely)] = ElementDofs(elx, ely, mc.Nelx, mc.Nely)
		}
	}
}

// buildPattern collects the touched columns of every row and compresses them
// into CSR form. The sorted per-row column lists are returned for the scatter
// index pass.
func (mc *Connectivity) buildPattern() (rowCols [][]int) {
	ndof := mc.TotalDofs()
	rowSets := make([]map[int]struct{}, ndof)
	for i := range rowSets {
		rowSets[i] = make(map[int]struct{}, 18)
	}
	for _, dofs := range mc.ElementDofTable {
		for _, r := range dofs {
			for _, c := range dofs {
				rowSets[r][c] = struct{}{}
			}
		}
	}

	rowCols = make([][]int, ndof)
	mc.RowPointers = make([]uint32, ndof+1)
	nnz := 0
	for r, set := range rowSets {
		cols := make([]int, 0, len(set))
		for c := range set {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		rowCols[r] = cols
		nnz += len(cols)
		mc.RowPointers[r+1] = uint32(nnz)
	}

	mc.NNZ = nnz
	mc.ColIndices = make([]uint32, 0, nnz)
	for _, cols := range rowCols {
		for _, c := range cols {
			mc.ColIndices = append(mc.ColIndices, uint32(c))
		}
	}
	return
}

// buildScatterIndices resolves each element's 64 local entries to their CSR slot
// through a transient row → column → index lookup.
func (mc *Connectivity) buildScatterIndices(rowCols [][]int) {
	lookup := make([]map[int]uint32, len(rowCols))
	for r, cols := range rowCols {
		lookup[r] = make(map[int]uint32, len(cols))
		base := mc.RowPointers[r]
		for k, c := range cols {
			lookup[r][c] = base + uint32(k)
		}
	}

	mc.ElemToCSR = make([]uint32, mc.NumElements()*entriesPerElement)
	for e, dofs := range mc.ElementDofTable {
		off := e * entriesPerElement
		for i, r := range dofs {
			for j, c := range dofs {
				mc.ElemToCSR[off+i*element.NumDofs+j] = lookup[r][c]
			}
		}
	}
}

// Verify checks index validity and pattern properties
func (mc *Connectivity) Verify() error {
	ndof := mc.TotalDofs()
	if len(mc.RowPointers) != ndof+1 {
		return fmt.Errorf("row pointer length %d does not match %d DOFs", len(mc.RowPointers), ndof)
	}
	if int(mc.RowPointers[ndof]) != mc.NNZ || len(mc.ColIndices) != mc.NNZ {
		return fmt.Errorf("nnz mismatch: rowPointers=%d, colIndices=%d, NNZ=%d",
			mc.RowPointers[ndof], len(mc.ColIndices), mc.NNZ)
	}

	// Verify 1: columns strictly increasing per row and diagonal present
	for r := 0; r < ndof; r++ {
		start, end := mc.RowPointers[r], mc.RowPointers[r+1]
		hasDiag := false
		for k := start; k < end; k++ {
			if k > start && mc.ColIndices[k] <= mc.ColIndices[k-1] {
				return fmt.Errorf("row %d columns not strictly increasing at slot %d", r, k)
			}
			if int(mc.ColIndices[k]) >= ndof {
				return fmt.Errorf("row %d column %d out of range", r, mc.ColIndices[k])
			}
			if int(mc.ColIndices[k]) == r {
				hasDiag = true
			}
		}
		if !hasDiag {
			return fmt.Errorf("row %d has no diagonal entry", r)
		}
	}

	// Verify 2: pattern symmetry
	for r := 0; r < ndof; r++ {
		for k := mc.RowPointers[r]; k < mc.RowPointers[r+1]; k++ {
			if mc.find(int(mc.ColIndices[k]), r) < 0 {
				return fmt.Errorf("pattern not symmetric: (%d,%d) present, (%d,%d) missing",
					r, mc.ColIndices[k], mc.ColIndices[k], r)
			}
		}
	}

	// Verify 3: scatter indices land on the matching (row, col)
	if len(mc.ElemToCSR) != mc.NumElements()*entriesPerElement {
		return fmt.Errorf("element scatter length %d does not match expected %d",
			len(mc.ElemToCSR), mc.NumElements()*entriesPerElement)
	}
	for e, dofs := range mc.ElementDofTable {
		for i, r := range dofs {
			for j, c := range dofs {
				slot := mc.ElemToCSR[e*entriesPerElement+i*element.NumDofs+j]
				if slot < mc.RowPointers[r] || slot >= mc.RowPointers[r+1] || int(mc.ColIndices[slot]) != c {
					return fmt.Errorf("element %d entry (%d,%d) maps to slot %d, not (%d,%d)", e, i, j, slot, r, c)
				}
			}
		}
	}

	return nil
}

// find returns the CSR slot of (row, col) or -1.
func (mc *Connectivity) find(row, col int) int {
	cols := mc.ColIndices[mc.RowPointers[row]:mc.RowPointers[row+1]]
	k := sort.Search(len(cols), func(i int) bool { return int(cols[i]) >= col })
	if k < len(cols) && int(cols[k]) == col {
		return int(mc.RowPointers[row]) + k
	}
	return -1
}

func (mc *Connectivity) String() string {
	var sb strings.Builder
	sb.WriteString("=== Mesh Connectivity ===\n")
	sb.WriteString(fmt.Sprintf("  Elements: %d x %d = %d\n", mc.Nelx, mc.Nely, mc.NumElements()))
	sb.WriteString(fmt.Sprintf("  Nodes: %d\n", mc.NumNodes()))
	sb.WriteString(fmt.Sprintf("  DOFs: %d\n", mc.TotalDofs()))
	sb.WriteString(fmt.Sprintf("  Nonzeros: %d (%.2f per row)\n", mc.NNZ, float64(mc.NNZ)/float64(mc.TotalDofs())))
	sb.WriteString(fmt.Sprintf("  Poisson ratio: %g\n", mc.Nu))
	return sb.String()
}
