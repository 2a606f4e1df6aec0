package mesh

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridIndexing(t *testing.T) {
	nelx, nely := 4, 3
	assert.Equal(t, 2*5*4, TotalDofs(nelx, nely))

	seenNodes := make(map[int]bool)
	for x := 0; x <= nelx; x++ {
		for y := 0; y <= nely; y++ {
			n := NodeIndex(x, y, nely)
			assert.False(t, seenNodes[n], "node index %d repeated", n)
			seenNodes[n] = true
		}
	}
	assert.Len(t, seenNodes, (nelx+1)*(nely+1))

	seenElems := make(map[int]bool)
	for elx := 0; elx < nelx; elx++ {
		for ely := 0; ely < nely; ely++ {
			e := ElementIndex(elx, ely, nely)
			assert.GreaterOrEqual(t, e, 0)
			assert.Less(t, e, nelx*nely)
			seenElems[e] = true
		}
	}
	assert.Len(t, seenElems, nelx*nely)
}

func TestElementCenter(t *testing.T) {
	g, err := NewGrid(4, 3)
	require.NoError(t, err)
	x, y := g.ElementCenter(ElementIndex(0, 0, 3))
	assert.Equal(t, [2]float64{0.5, 0.5}, [2]float64{x, y})
	x, y = g.ElementCenter(ElementIndex(2, 1, 3))
	assert.Equal(t, [2]float64{2.5, 1.5}, [2]float64{x, y})
	x, y = g.ElementCenter(g.NumElements() - 1)
	assert.Equal(t, [2]float64{3.5, 2.5}, [2]float64{x, y})
}

func TestElementDofsDistinct(t *testing.T) {
	nelx, nely := 5, 4
	for elx := 0; elx < nelx; elx++ {
		for ely := 0; ely < nely; ely++ {
			dofs := ElementDofs(elx, ely, nelx, nely)
			seen := make(map[int]bool)
			for _, d := range dofs {
				assert.False(t, seen[d], "element (%d,%d) repeats DOF %d", elx, ely, d)
				assert.Less(t, d, TotalDofs(nelx, nely))
				seen[d] = true
			}
		}
	}
}

func TestElementDofsSharedEdges(t *testing.T) {
	nelx, nely := 3, 3
	t.Run("horizontal", func(t *testing.T) {
		left := ElementDofs(1, 1, nelx, nely)
		right := ElementDofs(2, 1, nelx, nely)
		// left element's right edge (BR, TR) is the right element's left edge (BL, TL)
		assert.Equal(t, left[2:4], right[0:2])
		assert.Equal(t, left[4:6], right[6:8])
	})
	t.Run("vertical", func(t *testing.T) {
		bottom := ElementDofs(1, 0, nelx, nely)
		top := ElementDofs(1, 1, nelx, nely)
		// bottom element's top edge (TR, TL) is the top element's bottom edge (BR, BL)
		assert.Equal(t, bottom[4:6], top[2:4])
		assert.Equal(t, bottom[6:8], top[0:2])
	})
	t.Run("exactly four shared", func(t *testing.T) {
		a := ElementDofs(0, 0, nelx, nely)
		b := ElementDofs(1, 0, nelx, nely)
		shared := 0
		for _, da := range a {
			for _, db := range b {
				if da == db {
					shared++
				}
			}
		}
		assert.Equal(t, 4, shared)
	})
}

func TestNewGridRejectsBadDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 1}, {1, 0}, {-3, 2}} {
		_, err := NewGrid(dims[0], dims[1])
		assert.True(t, errors.Is(err, ErrInvalidDimensions), "dims %v", dims)
	}
}

func TestConnectivityVerify(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {2, 1}, {4, 3}, {12, 4}} {
		t.Run(fmt.Sprintf("%dx%d", dims[0], dims[1]), func(t *testing.T) {
			mc, err := NewConnectivity(dims[0], dims[1], 0.3)
			require.NoError(t, err)
			require.NoError(t, mc.Verify())
			assert.Equal(t, mc.TotalDofs()+1, len(mc.RowPointers))
			assert.Equal(t, mc.NNZ, len(mc.ColIndices))
			assert.Equal(t, mc.NumElements()*64, len(mc.ElemToCSR))
		})
	}
}

func TestConnectivitySingleElementIsDense(t *testing.T) {
	mc, err := NewConnectivity(1, 1, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 64, mc.NNZ)
	for r := 0; r < 8; r++ {
		assert.Equal(t, uint32(8*r), mc.RowPointers[r])
		for k := 0; k < 8; k++ {
			assert.Equal(t, uint32(k), mc.ColIndices[8*r+k])
		}
	}
}

func TestConnectivityInteriorRowWidth(t *testing.T) {
	mc, err := NewConnectivity(4, 4, 0.3)
	require.NoError(t, err)
	// An interior node touches 9 nodes, so each of its DOF rows has 18 columns.
	n := NodeIndex(2, 2, 4)
	for _, d := range []int{2 * n, 2*n + 1} {
		assert.Equal(t, uint32(18), mc.RowPointers[d+1]-mc.RowPointers[d])
	}
}

func TestConnectivityRejectsBadInput(t *testing.T) {
	_, err := NewConnectivity(0, 4, 0.3)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	_, err = NewConnectivity(4, 4, 0.5)
	assert.Error(t, err)
	_, err = NewConnectivity(4, 4, -1)
	assert.Error(t, err)
}

func TestConnectivityUsesUnitModulus(t *testing.T) {
	mc, err := NewConnectivity(2, 2, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, (1.0/2-0.25/6)/(1-0.25*0.25), mc.KE.At(0, 0), 1e-15)
	assert.Contains(t, mc.String(), "DOFs: 18")
	assert.Equal(t, "Q4", mc.Element.GetProperties().ShortName)
	assert.Equal(t, 1.0, mc.Element.GetProperties().Volume())
}
