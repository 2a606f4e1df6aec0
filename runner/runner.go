//go:build occa

package runner

import (
	"fmt"
	"log/slog"
	"math"
	"unsafe"

	"github.com/notargets/gocca"

	"github.com/notargets/TopOpt/linalg"
)

const curvatureFloor = 1e-30

// Runner is a Jacobi PCG solver whose vector and matrix work runs on an OCCA
// device. Kernels are compiled for one system size. The CSR pattern is
// uploaded when it changes; values, right-hand side and initial guess are
// uploaded on every Solve.
//
// A device failure during Solve is logged and the call is answered by the
// workspace PCG on the host.
type Runner struct {
	Device       *gocca.OCCADevice
	Kernels      map[string]*gocca.OCCAKernel
	PooledMemory map[string]*gocca.OCCAMemory

	n, nnz  int
	pattern *uint32 // identity of the uploaded RowPointers
	x       []float64
	partial []float64

	fallback *linalg.WorkspaceSolver
	log      *slog.Logger
}

// New creates a device and compiles the PCG kernels for n unknowns.
func New(n int) (*Runner, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n=%d", linalg.ErrDimensionMismatch, n)
	}
	device, err := NewDevice()
	if err != nil {
		return nil, err
	}

	_, reduceBlocks := launchShape(n)
	r := &Runner{
		Device:       device,
		Kernels:      make(map[string]*gocca.OCCAKernel),
		PooledMemory: make(map[string]*gocca.OCCAMemory),
		n:            n,
		x:            make([]float64, n),
		partial:      make([]float64, reduceBlocks),
		fallback:     linalg.NewWorkspaceSolver(n),
		log:          slog.New(discardHandler{}),
	}

	src := programSource(n)
	for _, name := range kernelNames {
		if _, err := r.BuildKernel(src, name); err != nil {
			r.Free()
			return nil, err
		}
	}

	vec := int64(n * 8)
	for _, name := range []string{"b", "x", "r", "z", "p", "Ap", "invDiag"} {
		r.PooledMemory[name] = device.Malloc(vec, nil, nil)
	}
	r.PooledMemory["partial"] = device.Malloc(int64(reduceBlocks*8), nil, nil)
	return r, nil
}

func (r *Runner) Name() string { return "occa-" + r.Device.Mode() }

func (r *Runner) SetLogger(l *slog.Logger) {
	if l != nil {
		r.log = l
	}
}

// BuildKernel compiles one kernel of the program and registers it.
func (r *Runner) BuildKernel(source, name string) (*gocca.OCCAKernel, error) {
	var (
		kernel *gocca.OCCAKernel
		err    error
	)
	if r.Device.Mode() == "OpenMP" {
		// OpenMP builds do not get -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = r.Device.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = r.Device.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", name, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", name)
	}
	r.Kernels[name] = kernel
	return kernel, nil
}

// Free releases kernels, device memory and the device.
func (r *Runner) Free() {
	for _, kernel := range r.Kernels {
		kernel.Free()
	}
	for _, mem := range r.PooledMemory {
		mem.Free()
	}
	r.Kernels = map[string]*gocca.OCCAKernel{}
	r.PooledMemory = map[string]*gocca.OCCAMemory{}
	r.pattern = nil
	if r.Device != nil {
		r.Device.Free()
		r.Device = nil
	}
}

// Solve implements linalg.Solver. Result.X is owned by the runner and is
// overwritten by the next call.
func (r *Runner) Solve(A *linalg.CSRMatrix, b, x0 []float64, tol float64, maxIter int) linalg.Result {
	if A.N != r.n || len(b) != r.n || (x0 != nil && len(x0) != r.n) {
		panic(fmt.Errorf("%w: runner sized for %d, A is %d×%d, len(b)=%d, len(x0)=%d",
			linalg.ErrDimensionMismatch, r.n, A.N, A.N, len(b), len(x0)))
	}
	res, err := r.solveDevice(A, b, x0, tol, maxIter)
	if err != nil {
		r.log.Warn("device solve failed, using CPU solver", "err", err)
		return r.fallback.Solve(A, b, x0, tol, maxIter)
	}
	return res
}

func (r *Runner) solveDevice(A *linalg.CSRMatrix, b, x0 []float64, tol float64, maxIter int) (linalg.Result, error) {
	if err := r.uploadPattern(A); err != nil {
		return linalg.Result{}, err
	}
	mem := r.PooledMemory
	mem["vals"].CopyFrom(unsafe.Pointer(&A.Values[0]), int64(r.nnz*8))
	mem["b"].CopyFrom(unsafe.Pointer(&b[0]), int64(r.n*8))
	if x0 == nil {
		clear(r.x)
	} else {
		copy(r.x, x0)
	}
	mem["x"].CopyFrom(unsafe.Pointer(&r.x[0]), int64(r.n*8))

	run := func(name string, args ...interface{}) error {
		if err := r.Kernels[name].RunWithArgs(args...); err != nil {
			return fmt.Errorf("kernel %s: %w", name, err)
		}
		return nil
	}
	dot := func(a, b *gocca.OCCAMemory) (float64, error) {
		if err := run("dot", a, b, mem["partial"]); err != nil {
			return 0, err
		}
		r.Device.Finish()
		mem["partial"].CopyTo(unsafe.Pointer(&r.partial[0]), int64(len(r.partial)*8))
		var sum float64
		for _, v := range r.partial {
			sum += v
		}
		return sum, nil
	}
	result := func(iter int, rnorm float64) (linalg.Result, error) {
		r.Device.Finish()
		mem["x"].CopyTo(unsafe.Pointer(&r.x[0]), int64(r.n*8))
		return linalg.Result{X: r.x, Iterations: iter, Residual: rnorm}, nil
	}

	rowPtr, colIdx, vals := mem["rowPtr"], mem["colIdx"], mem["vals"]
	if err := run("jacobi", rowPtr, colIdx, vals, mem["invDiag"]); err != nil {
		return linalg.Result{}, err
	}
	if err := run("spmv", rowPtr, colIdx, vals, mem["x"], mem["Ap"]); err != nil {
		return linalg.Result{}, err
	}
	if err := run("residual", mem["b"], mem["Ap"], mem["r"]); err != nil {
		return linalg.Result{}, err
	}

	bb, err := dot(mem["b"], mem["b"])
	if err != nil {
		return linalg.Result{}, err
	}
	rr, err := dot(mem["r"], mem["r"])
	if err != nil {
		return linalg.Result{}, err
	}
	threshold := tol * math.Max(math.Sqrt(bb), 1)
	rnorm := math.Sqrt(rr)
	if rnorm < threshold {
		return result(0, rnorm)
	}

	if err := run("precond", mem["invDiag"], mem["r"], mem["z"]); err != nil {
		return linalg.Result{}, err
	}
	if err := run("assign", mem["z"], mem["p"]); err != nil {
		return linalg.Result{}, err
	}
	rz, err := dot(mem["r"], mem["z"])
	if err != nil {
		return linalg.Result{}, err
	}

	iter := 0
	for iter < maxIter {
		if err := run("spmv", rowPtr, colIdx, vals, mem["p"], mem["Ap"]); err != nil {
			return linalg.Result{}, err
		}
		pAp, err := dot(mem["p"], mem["Ap"])
		if err != nil {
			return linalg.Result{}, err
		}
		if pAp < curvatureFloor {
			break
		}
		alpha := rz / pAp
		if err := run("axpy", mem["p"], mem["x"], alpha); err != nil {
			return linalg.Result{}, err
		}
		if err := run("axpy", mem["Ap"], mem["r"], -alpha); err != nil {
			return linalg.Result{}, err
		}
		iter++

		rr, err = dot(mem["r"], mem["r"])
		if err != nil {
			return linalg.Result{}, err
		}
		rnorm = math.Sqrt(rr)
		if rnorm < threshold {
			break
		}

		if err := run("precond", mem["invDiag"], mem["r"], mem["z"]); err != nil {
			return linalg.Result{}, err
		}
		rzNew, err := dot(mem["r"], mem["z"])
		if err != nil {
			return linalg.Result{}, err
		}
		beta := rzNew / rz
		rz = rzNew
		if err := run("xpay", mem["z"], mem["p"], beta); err != nil {
			return linalg.Result{}, err
		}
	}
	return result(iter, rnorm)
}

// uploadPattern copies the CSR structure to the device when A's pattern
// differs from the one already resident.
func (r *Runner) uploadPattern(A *linalg.CSRMatrix) error {
	nnz := A.NNZ()
	if nnz == 0 {
		return fmt.Errorf("%w: empty matrix", linalg.ErrMalformedCSR)
	}
	if r.pattern == &A.RowPointers[0] && r.nnz == nnz {
		return nil
	}
	for _, name := range []string{"rowPtr", "colIdx", "vals"} {
		if m, ok := r.PooledMemory[name]; ok {
			m.Free()
		}
	}
	r.PooledMemory["rowPtr"] = r.Device.Malloc(int64(len(A.RowPointers)*4), unsafe.Pointer(&A.RowPointers[0]), nil)
	r.PooledMemory["colIdx"] = r.Device.Malloc(int64(nnz*4), unsafe.Pointer(&A.ColIndices[0]), nil)
	r.PooledMemory["vals"] = r.Device.Malloc(int64(nnz*8), nil, nil)
	r.pattern = &A.RowPointers[0]
	r.nnz = nnz
	return nil
}
