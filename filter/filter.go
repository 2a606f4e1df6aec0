package filter

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/TopOpt/mesh"
)

var ErrInvalidRadius = errors.New("filter: invalid radius")

const (
	// identityRadius is the radius below which the filter is the identity
	identityRadius = 1e-12

	// densityFloor bounds the division by the element's own density
	densityFloor = 1e-9
)

// Filter is the density-weighted sensitivity filter over a regular mesh with
// unit element spacing. Neighbor lists and normalized hat weights are
// precomputed once per mesh size and radius.
type Filter struct {
	mesh.Grid
	Rmin float64

	Neighbors [][]int
	Weights   [][]float64
}

// New precomputes neighbors within distance rmin of every element center,
// weighted by max(0, rmin−dist) and normalized to sum 1.
func New(nelx, nely int, rmin float64) (*Filter, error) {
	grid, err := mesh.NewGrid(nelx, nely)
	if err != nil {
		return nil, err
	}
	if rmin < 0 || math.IsNaN(rmin) || math.IsInf(rmin, 0) {
		return nil, fmt.Errorf("%w: rmin=%g", ErrInvalidRadius, rmin)
	}

	f := &Filter{
		Grid:      grid,
		Rmin:      rmin,
		Neighbors: make([][]int, grid.NumElements()),
		Weights:   make([][]float64, grid.NumElements()),
	}

	if rmin < identityRadius {
		for e := range f.Neighbors {
			f.Neighbors[e] = []int{e}
			f.Weights[e] = []float64{1}
		}
		return f, nil
	}

	reach := int(math.Ceil(rmin))
	for i := 0; i < nelx; i++ {
		for j := 0; j < nely; j++ {
			e := mesh.ElementIndex(i, j, nely)
			cx, cy := grid.ElementCenter(e)
			var (
				nbrs []int
				ws   []float64
			)
			for k := max(i-reach, 0); k <= min(i+reach, nelx-1); k++ {
				for l := max(j-reach, 0); l <= min(j+reach, nely-1); l++ {
					n := mesh.ElementIndex(k, l, nely)
					nx, ny := grid.ElementCenter(n)
					w := rmin - math.Hypot(cx-nx, cy-ny)
					if w <= 0 {
						continue
					}
					nbrs = append(nbrs, n)
					ws = append(ws, w)
				}
			}
			floats.Scale(1/floats.Sum(ws), ws)
			f.Neighbors[e] = nbrs
			f.Weights[e] = ws
		}
	}
	return f, nil
}

// Apply writes the filtered sensitivities
//
//	out[e] = Σ_i w_i·ρ_i·dc_i / max(ρ_e, 1e-9)
//
// over the neighbors of e. out must not alias dc.
func (f *Filter) Apply(dc, rho, out []float64) {
	for e, nbrs := range f.Neighbors {
		ws := f.Weights[e]
		var sum float64
		for k, n := range nbrs {
			sum += ws[k] * rho[n] * dc[n]
		}
		out[e] = sum / math.Max(rho[e], densityFloor)
	}
}

// WeightSums returns the per-element sum of filter weights.
func (f *Filter) WeightSums() []float64 {
	sums := make([]float64, len(f.Weights))
	for e, ws := range f.Weights {
		sums[e] = floats.Sum(ws)
	}
	return sums
}

// Verify checks that every element's weights sum to 1 within tol and that each
// element is its own neighbor.
func (f *Filter) Verify(tol float64) error {
	for e, s := range f.WeightSums() {
		if math.Abs(s-1) > tol {
			return fmt.Errorf("element %d: filter weights sum to %.15g", e, s)
		}
		self := false
		for _, n := range f.Neighbors[e] {
			if n == e {
				self = true
				break
			}
		}
		if !self {
			return fmt.Errorf("element %d: missing from its own neighborhood", e)
		}
	}
	return nil
}
