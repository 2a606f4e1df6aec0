package linalg

// Result is the outcome of one linear solve. Iterations and Residual are
// reported even when the solver stops without meeting the tolerance, so
// callers that need convergence compare Residual against their own bound.
type Result struct {
	X          []float64
	Iterations int
	Residual   float64
}

// Solver is the linear solver seam. Every backend takes the CSR triple, the
// right-hand side, an initial guess, a relative tolerance and an iteration cap.
// Backends are interchangeable: selection happens once before optimization.
type Solver interface {
	Name() string
	Solve(A *CSRMatrix, b, x0 []float64, tol float64, maxIter int) Result
}

// ReferenceSolver runs the allocating PCG on every call.
type ReferenceSolver struct{}

func (ReferenceSolver) Name() string { return "pcg-reference" }

func (ReferenceSolver) Solve(A *CSRMatrix, b, x0 []float64, tol float64, maxIter int) Result {
	return PCG(A, b, x0, tol, maxIter)
}

// WorkspaceSolver runs the PCG against scratch vectors owned for the lifetime
// of one fixed-size system. The returned Result.X is the workspace's solution
// buffer and is overwritten by the next Solve.
type WorkspaceSolver struct {
	Workspace *Workspace
}

// NewWorkspaceSolver sizes a solver for n unknowns.
func NewWorkspaceSolver(n int) *WorkspaceSolver {
	return &WorkspaceSolver{Workspace: NewWorkspace(n)}
}

func (ws *WorkspaceSolver) Name() string { return "pcg-workspace" }

func (ws *WorkspaceSolver) Solve(A *CSRMatrix, b, x0 []float64, tol float64, maxIter int) Result {
	x := ws.Workspace.X
	if x0 == nil {
		clear(x)
	} else if &x0[0] != &x[0] {
		copy(x, x0)
	}
	return PCGWorkspace(A, b, x, tol, maxIter, ws.Workspace)
}
