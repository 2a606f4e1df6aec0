package problems

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/TopOpt/mesh"
	"github.com/notargets/TopOpt/topopt"
)

var ErrUnknownProblem = errors.New("problems: unknown problem")

// Problem is a load case: a unit load vector and a set of supports on an
// nelx × nely mesh.
type Problem struct {
	Name       string
	Nelx, Nely int
	Forces     []float64
	FixedDofs  []int
}

type builder func(nelx, nely int) (Problem, error)

var registry = map[string]builder{
	"mbb":        MBB,
	"cantilever": Cantilever,
	"bridge":     Bridge,
}

// Names lists the registered presets in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the named preset.
func Lookup(name string, nelx, nely int) (Problem, error) {
	b, ok := registry[name]
	if !ok {
		return Problem{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownProblem, name, Names())
	}
	return b(nelx, nely)
}

func newProblem(name string, nelx, nely int) (Problem, error) {
	grid, err := mesh.NewGrid(nelx, nely)
	if err != nil {
		return Problem{}, err
	}
	return Problem{
		Name:   name,
		Nelx:   nelx,
		Nely:   nely,
		Forces: make([]float64, grid.TotalDofs()),
	}, nil
}

func (p *Problem) fixNode(x, y int, fixX, fixY bool) {
	dx, dy := mesh.NodeDofs(mesh.NodeIndex(x, y, p.Nely))
	if fixX {
		p.FixedDofs = append(p.FixedDofs, dx)
	}
	if fixY {
		p.FixedDofs = append(p.FixedDofs, dy)
	}
}

func (p *Problem) loadNode(x, y int, fy float64) {
	_, dy := mesh.NodeDofs(mesh.NodeIndex(x, y, p.Nely))
	p.Forces[dy] += fy
}

// MBB is the symmetric half of the Messerschmitt-Bölkow-Blohm beam: rollers
// on the symmetry line (left edge, x fixed), a roller support at the
// bottom-right corner (y fixed) and a unit downward load at the top-left
// corner.
func MBB(nelx, nely int) (Problem, error) {
	p, err := newProblem("mbb", nelx, nely)
	if err != nil {
		return p, err
	}
	for y := 0; y <= nely; y++ {
		p.fixNode(0, y, true, false)
	}
	p.fixNode(nelx, 0, false, true)
	p.loadNode(0, nely, -1)
	return p, nil
}

// Cantilever clamps the left edge and applies a unit downward load at the
// middle of the right edge.
func Cantilever(nelx, nely int) (Problem, error) {
	p, err := newProblem("cantilever", nelx, nely)
	if err != nil {
		return p, err
	}
	for y := 0; y <= nely; y++ {
		p.fixNode(0, y, true, true)
	}
	p.loadNode(nelx, nely/2, -1)
	return p, nil
}

// Bridge pins both bottom corners and applies a unit downward load at the
// bottom centre.
func Bridge(nelx, nely int) (Problem, error) {
	p, err := newProblem("bridge", nelx, nely)
	if err != nil {
		return p, err
	}
	p.fixNode(0, 0, true, true)
	p.fixNode(nelx, 0, true, true)
	p.loadNode(nelx/2, 0, -1)
	return p, nil
}

// Apply loads the problem into the optimizer, whose mesh must match.
func (p Problem) Apply(o *topopt.Optimizer) error {
	cfg := o.Config()
	if cfg.Nelx != p.Nelx || cfg.Nely != p.Nely {
		return fmt.Errorf("%w: problem %q is %dx%d, optimizer mesh is %dx%d",
			topopt.ErrDimensionMismatch, p.Name, p.Nelx, p.Nely, cfg.Nelx, cfg.Nely)
	}
	if err := o.SetForces(p.Forces); err != nil {
		return err
	}
	return o.SetFixedDofs(p.FixedDofs)
}
