package stiffness

import (
	"fmt"

	"github.com/notargets/TopOpt/element"
	"github.com/notargets/TopOpt/linalg"
	"github.com/notargets/TopOpt/mesh"
)

const entriesPerElement = element.NumDofs * element.NumDofs

// Assembler scatters element contributions into a preallocated CSR values
// array through the precomputed element → CSR map of a Connectivity.
//
// The matrix returned by Assemble shares RowPointers and ColIndices with the
// connectivity and owns a single values array, overwritten on every call.
type Assembler struct {
	conn   *mesh.Connectivity
	values []float64
	matrix *linalg.CSRMatrix
}

func NewAssembler(conn *mesh.Connectivity) *Assembler {
	values := make([]float64, conn.NNZ)
	return &Assembler{
		conn:   conn,
		values: values,
		matrix: &linalg.CSRMatrix{
			Values:      values,
			ColIndices:  conn.ColIndices,
			RowPointers: conn.RowPointers,
			N:           conn.TotalDofs(),
		},
	}
}

func (a *Assembler) Connectivity() *mesh.Connectivity { return a.conn }

// Assemble writes K(ρ) into the assembler's matrix and returns it. It panics
// when len(rho) does not match the element count.
func (a *Assembler) Assemble(rho []float64, law SIMP) *linalg.CSRMatrix {
	nel := a.conn.NumElements()
	if len(rho) != nel {
		panic(fmt.Errorf("%w: %d densities for %d elements", ErrDimensionMismatch, len(rho), nel))
	}

	clear(a.values)
	ke := &a.conn.KE
	for e := 0; e < nel; e++ {
		E := law.Modulus(rho[e])
		slots := a.conn.ElemToCSR[e*entriesPerElement : (e+1)*entriesPerElement]
		for k, slot := range slots {
			a.values[slot] += ke[k] * E
		}
	}
	return a.matrix
}
