package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/TopOpt/mesh"
)

func TestWeightsNormalized(t *testing.T) {
	tests := []struct {
		name       string
		nelx, nely int
		rmin       float64
	}{
		{"default", 60, 20, 1.5},
		{"wide", 12, 7, 3.2},
		{"sub-element", 5, 5, 0.7},
		{"single element", 1, 1, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.nelx, tt.nely, tt.rmin)
			require.NoError(t, err)
			require.NoError(t, f.Verify(1e-10))
			for _, s := range f.WeightSums() {
				assert.InDelta(t, 1.0, s, 1e-10)
			}
		})
	}
}

func TestNeighborhood(t *testing.T) {
	f, err := New(10, 10, 1.5)
	require.NoError(t, err)

	interior := mesh.ElementIndex(5, 5, 10)
	assert.Len(t, f.Neighbors[interior], 9)
	corner := mesh.ElementIndex(0, 0, 10)
	assert.Len(t, f.Neighbors[corner], 4)

	// the element itself carries the largest weight
	for k, n := range f.Neighbors[interior] {
		if n != interior {
			continue
		}
		for _, w := range f.Weights[interior] {
			assert.LessOrEqual(t, w, f.Weights[interior][k])
		}
	}
}

func TestHatWeightsFromCenterDistance(t *testing.T) {
	f, err := New(10, 10, 1.5)
	require.NoError(t, err)

	e := mesh.ElementIndex(5, 5, 10)
	total := 1.5 + 4*0.5 + 4*(1.5-math.Sqrt2)
	cx, cy := f.ElementCenter(e)
	for k, n := range f.Neighbors[e] {
		nx, ny := f.ElementCenter(n)
		want := (1.5 - math.Hypot(cx-nx, cy-ny)) / total
		assert.InDelta(t, want, f.Weights[e][k], 1e-14)
	}
	assert.InDelta(t, 1.5/total, f.Weights[e][indexOf(f.Neighbors[e], e)], 1e-14)
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestIdentityFilter(t *testing.T) {
	f, err := New(4, 3, 0)
	require.NoError(t, err)
	dc := []float64{-1, -2, -3, -4, -5, -6, -7, -8, -9, -10, -11, -12}
	rho := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 0.5, 0.5}
	out := make([]float64, len(dc))
	f.Apply(dc, rho, out)
	assert.InDeltaSlice(t, dc, out, 1e-15)
}

func TestUniformFieldUnchanged(t *testing.T) {
	f, err := New(8, 6, 2.0)
	require.NoError(t, err)
	n := 48
	dc := make([]float64, n)
	rho := make([]float64, n)
	for i := range dc {
		dc[i] = -3.5
		rho[i] = 0.4
	}
	out := make([]float64, n)
	f.Apply(dc, rho, out)
	for _, v := range out {
		assert.InDelta(t, -3.5, v, 1e-12)
	}
}

func TestVanishingDensity(t *testing.T) {
	f, err := New(6, 4, 1.5)
	require.NoError(t, err)
	n := 24
	dc := make([]float64, n)
	rho := make([]float64, n)
	for i := range dc {
		dc[i] = -1
	}
	rho[7] = 1
	out := make([]float64, n)
	f.Apply(dc, rho, out)
	for _, v := range out {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
}

func TestInvalidInput(t *testing.T) {
	_, err := New(3, 3, -1)
	assert.ErrorIs(t, err, ErrInvalidRadius)
	_, err = New(3, 3, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidRadius)
	_, err = New(0, 3, 1.5)
	assert.ErrorIs(t, err, mesh.ErrInvalidDimensions)
}
