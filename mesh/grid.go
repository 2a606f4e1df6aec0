package mesh

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned when a mesh has a non-positive element count.
var ErrInvalidDimensions = errors.New("mesh: invalid dimensions")

// Grid is a regular nelx × nely mesh of unit square elements. Elements are
// numbered column by column (elx*nely + ely) and nodes likewise
// (x*(nely+1) + y), with y counted upward from the bottom edge.
type Grid struct {
	Nelx, Nely int
}

// NewGrid validates the dimensions and returns the grid.
func NewGrid(nelx, nely int) (Grid, error) {
	if nelx <= 0 || nely <= 0 {
		return Grid{}, fmt.Errorf("%w: nelx=%d, nely=%d", ErrInvalidDimensions, nelx, nely)
	}
	return Grid{Nelx: nelx, Nely: nely}, nil
}

func (g Grid) NumElements() int { return g.Nelx * g.Nely }
func (g Grid) NumNodes() int    { return (g.Nelx + 1) * (g.Nely + 1) }
func (g Grid) TotalDofs() int   { return TotalDofs(g.Nelx, g.Nely) }

// ElementDofs returns the eight global DOFs of element (elx, ely).
func (g Grid) ElementDofs(elx, ely int) [8]int {
	return ElementDofs(elx, ely, g.Nelx, g.Nely)
}

// ElementCenter returns the centre coordinates of element e.
func (g Grid) ElementCenter(e int) (x, y float64) {
	elx, ely := e/g.Nely, e%g.Nely
	return float64(elx) + 0.5, float64(ely) + 0.5
}

// TotalDofs is 2 DOFs per node over (nelx+1)(nely+1) nodes.
func TotalDofs(nelx, nely int) int {
	return 2 * (nelx + 1) * (nely + 1)
}

func NodeIndex(x, y, nely int) int {
	return x*(nely+1) + y
}

func ElementIndex(elx, ely, nely int) int {
	return elx*nely + ely
}

// NodeDofs returns the x and y DOF of node n.
func NodeDofs(n int) (dx, dy int) {
	return 2 * n, 2*n + 1
}

// ElementDofs returns the global DOFs of element (elx, ely) in local order:
// bottom-left, bottom-right, top-right, top-left, each node contributing its
// x then y DOF. nelx is accepted for symmetry with the other grid helpers;
// the numbering only depends on nely.
func ElementDofs(elx, ely, nelx, nely int) (dofs [8]int) {
	nodes := [4]int{
		NodeIndex(elx, ely, nely),
		NodeIndex(elx+1, ely, nely),
		NodeIndex(elx+1, ely+1, nely),
		NodeIndex(elx, ely+1, nely),
	}
	for i, n := range nodes {
		dofs[2*i], dofs[2*i+1] = NodeDofs(n)
	}
	return
}
