package topopt

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/TopOpt/element"
	"github.com/notargets/TopOpt/filter"
	"github.com/notargets/TopOpt/linalg"
	"github.com/notargets/TopOpt/mesh"
	"github.com/notargets/TopOpt/stiffness"
)

// Optimizer runs SIMP compliance minimization with an optimality-criteria
// update on one mesh. It is Active until the density change drops below Tolx
// or MaxIter iterations have run, then Converged until Reset.
//
// An Optimizer is not safe for concurrent use; independent instances share
// nothing and may run in parallel.
type Optimizer struct {
	cfg       Config
	law       stiffness.SIMP
	log       *slog.Logger
	newSolver SolverFactory
	stress    *StressConstraint

	// Mesh-dependent structures, rebuilt together
	conn       *mesh.Connectivity
	filter     *filter.Filter
	assembler  *stiffness.Assembler
	solver     linalg.Solver
	constraint *stiffness.Constraint

	// Problem definition
	forces []float64
	fixed  []int

	// Per-element arrays
	rho, rhoOld  []float64
	energy       []float64 // uᵀKE₀u
	strainEnergy []float64 // E(ρ)·energy
	dc, dcFilt   []float64
	stresses     []float64
	rhoMin       []float64

	// Per-DOF arrays
	rhs, u []float64

	compliance, volume, change float64
	maxStress                  float64
	iteration                  int
	converged                  bool
}

// New validates cfg and builds an optimizer with uniform density Volfrac, zero
// forces and no fixed DOFs.
func New(cfg Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Optimizer{
		cfg:       cfg,
		law:       lawFor(cfg),
		log:       Logger(),
		newSolver: defaultSolverFactory,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.stress != nil {
		if err := o.stress.validate(); err != nil {
			return nil, err
		}
	}
	if err := o.build(true); err != nil {
		return nil, err
	}
	o.Reset()
	return o, nil
}

func lawFor(cfg Config) stiffness.SIMP {
	return stiffness.SIMP{Penal: cfg.Penal, E0: cfg.E0, Emin: cfg.Emin}
}

// build constructs the mesh-dependent structures for o.cfg. When resized, the
// problem definition and per-DOF arrays are reallocated and cleared.
func (o *Optimizer) build(resized bool) error {
	conn, err := mesh.NewConnectivity(o.cfg.Nelx, o.cfg.Nely, o.cfg.Nu)
	if err != nil {
		return err
	}
	flt, err := filter.New(o.cfg.Nelx, o.cfg.Nely, o.cfg.Rmin)
	if err != nil {
		return err
	}

	ndof, nel := conn.TotalDofs(), conn.NumElements()
	o.conn = conn
	o.filter = flt
	o.assembler = stiffness.NewAssembler(conn)
	o.releaseSolver()
	o.solver = o.newSolver(ndof)

	if resized || o.forces == nil {
		o.forces = make([]float64, ndof)
		o.fixed = nil
		o.constraint = stiffness.NewConstraint(ndof, nil)
		o.rhs = make([]float64, ndof)
		o.u = make([]float64, ndof)

		o.rho = make([]float64, nel)
		o.rhoOld = make([]float64, nel)
		o.energy = make([]float64, nel)
		o.strainEnergy = make([]float64, nel)
		o.dc = make([]float64, nel)
		o.dcFilt = make([]float64, nel)
		if o.stress != nil {
			o.stresses = make([]float64, nel)
			o.rhoMin = make([]float64, nel)
		}
	}
	return nil
}

// releaseSolver frees device resources held by solvers that own them.
func (o *Optimizer) releaseSolver() {
	if f, ok := o.solver.(interface{ Free() }); ok {
		f.Free()
	}
	o.solver = nil
}

// Close releases solver resources. The optimizer must not be stepped
// afterwards.
func (o *Optimizer) Close() {
	o.releaseSolver()
}

// SetForces replaces the load vector. f must have TotalDofs entries.
func (o *Optimizer) SetForces(f []float64) error {
	if len(f) != len(o.forces) {
		return fmt.Errorf("%w: %d forces for %d DOFs", ErrDimensionMismatch, len(f), len(o.forces))
	}
	copy(o.forces, f)
	return nil
}

// SetFixedDofs replaces the set of zero-displacement DOFs.
func (o *Optimizer) SetFixedDofs(dofs []int) error {
	ndof := len(o.forces)
	for _, d := range dofs {
		if d < 0 || d >= ndof {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrDofOutOfRange, d, ndof)
		}
	}
	o.fixed = append([]int(nil), dofs...)
	o.constraint = stiffness.NewConstraint(ndof, o.fixed)
	return nil
}

func (o *Optimizer) Forces() []float64 { return append([]float64(nil), o.forces...) }
func (o *Optimizer) FixedDofs() []int  { return append([]int(nil), o.fixed...) }

// Connectivity exposes the current mesh structures read-only.
func (o *Optimizer) Connectivity() *mesh.Connectivity { return o.conn }

func (o *Optimizer) SolverName() string { return o.solver.Name() }

// Step runs one optimization iteration and returns the new state. Once
// converged it returns the current state unchanged.
func (o *Optimizer) Step() State {
	if o.converged {
		return o.State()
	}

	copy(o.rhoOld, o.rho)

	res := o.solve()
	o.evaluate()
	o.filter.Apply(o.dc, o.rho, o.dcFilt)
	if o.stress != nil {
		o.estimateStresses()
	}
	o.updateDensities()

	o.change = floats.Distance(o.rho, o.rhoOld, math.Inf(1))
	o.volume = floats.Sum(o.rho) / float64(len(o.rho))
	o.iteration++
	o.converged = o.change < o.cfg.Tolx || o.iteration >= o.cfg.MaxIter

	o.log.Debug("iteration",
		"iter", o.iteration,
		"compliance", o.compliance,
		"volume", o.volume,
		"change", o.change,
		"pcg_iterations", res.Iterations,
		"pcg_residual", res.Residual)
	if o.converged {
		o.log.Info("optimization finished",
			"iterations", o.iteration,
			"compliance", o.compliance,
			"change", o.change,
			"tolerance_met", o.change < o.cfg.Tolx)
	}
	return o.State()
}

// solve assembles K(ρ), applies the boundary conditions to a scratch copy of
// the loads and solves for u, warm-started from the previous displacement.
func (o *Optimizer) solve() linalg.Result {
	K := o.assembler.Assemble(o.rho, o.law)
	copy(o.rhs, o.forces)
	o.constraint.Apply(K, o.rhs)

	tol := o.cfg.SolverTol
	res := o.solver.Solve(K, o.rhs, o.u, tol, o.cfg.solverMaxIter(K.N))
	copy(o.u, res.X)

	if res.Residual >= tol*math.Max(floats.Norm(o.rhs, 2), 1) {
		o.log.Warn("linear solve stopped before tolerance",
			"solver", o.solver.Name(),
			"iterations", res.Iterations,
			"residual", res.Residual)
	}
	return res
}

// evaluate computes per-element energies, compliance and raw sensitivities.
func (o *Optimizer) evaluate() {
	var (
		ue [element.NumDofs]float64
		c  float64
	)
	ke := &o.conn.KE
	for e, dofs := range o.conn.ElementDofTable {
		for i, d := range dofs {
			ue[i] = o.u[d]
		}
		en := ke.Energy(&ue)
		rho := o.rho[e]
		E := o.law.Modulus(rho)

		o.energy[e] = en
		o.strainEnergy[e] = E * en
		c += E * en
		o.dc[e] = -o.law.Derivative(rho) * en
	}
	o.compliance = c
}

// RunIterations steps up to n times, stopping early at convergence.
func (o *Optimizer) RunIterations(n int) State {
	for i := 0; i < n && !o.converged; i++ {
		o.Step()
	}
	return o.State()
}

// Reset restores uniform density Volfrac, zeroes the counters and drops the
// displacement warm start. Forces and fixed DOFs are kept.
func (o *Optimizer) Reset() {
	for i := range o.rho {
		o.rho[i] = o.cfg.Volfrac
	}
	copy(o.rhoOld, o.rho)
	clear(o.energy)
	clear(o.strainEnergy)
	clear(o.dc)
	clear(o.dcFilt)
	clear(o.u)
	clear(o.stresses)
	clear(o.rhoMin)

	o.compliance = 0
	o.volume = o.cfg.Volfrac
	o.change = 0
	o.maxStress = 0
	o.iteration = 0
	o.converged = false
}

// UpdateConfig applies the overrides, rebuilding the mesh structures when
// Nelx, Nely, Rmin or Nu change, and resets. A change of mesh size clears the
// forces and fixed DOFs. On error the optimizer is unchanged.
func (o *Optimizer) UpdateConfig(ov Overrides) error {
	next, err := o.cfg.WithOverrides(ov)
	if err != nil {
		return err
	}

	prev := o.cfg
	resized := next.Nelx != prev.Nelx || next.Nely != prev.Nely
	rebuild := resized || next.Rmin != prev.Rmin || next.Nu != prev.Nu

	o.cfg = next
	o.law = lawFor(next)
	if rebuild {
		if err := o.build(resized); err != nil {
			o.cfg = prev
			o.law = lawFor(prev)
			return err
		}
		o.log.Info("rebuilt mesh structures",
			"nelx", next.Nelx, "nely", next.Nely,
			"rmin", next.Rmin, "nu", next.Nu,
			"nnz", o.conn.NNZ, "problem_cleared", resized)
	}
	o.Reset()
	return nil
}
