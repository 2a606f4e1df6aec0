package topopt

import (
	"log/slog"

	"github.com/notargets/TopOpt/linalg"
)

// SolverFactory creates the linear solver for a system of ndof unknowns. It is
// called once per mesh build.
type SolverFactory func(ndof int) linalg.Solver

func defaultSolverFactory(ndof int) linalg.Solver {
	return linalg.NewWorkspaceSolver(ndof)
}

type Option func(*Optimizer)

// WithLogger overrides the package logger for one optimizer.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSolverFactory substitutes the linear solver backend. The default is the
// workspace PCG.
func WithSolverFactory(f SolverFactory) Option {
	return func(o *Optimizer) {
		if f != nil {
			o.newSolver = f
		}
	}
}

// WithStressConstraint enables the minimum-density floor derived from the
// element stress estimate.
func WithStressConstraint(sc StressConstraint) Option {
	return func(o *Optimizer) {
		o.stress = &sc
	}
}
