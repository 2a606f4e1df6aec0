//go:build !occa

package runner

import (
	"log/slog"

	"github.com/notargets/TopOpt/linalg"
)

// Runner is the device PCG solver. This build carries no device support; New
// always fails with ErrUnavailable.
type Runner struct{}

func New(n int) (*Runner, error) { return nil, ErrUnavailable }

// Probe reports the device mode that would be used.
func Probe() (string, error) { return "", ErrUnavailable }

func (*Runner) Name() string           { return "occa-unavailable" }
func (*Runner) SetLogger(*slog.Logger) {}
func (*Runner) Free()                  {}

func (*Runner) Solve(A *linalg.CSRMatrix, b, x0 []float64, tol float64, maxIter int) linalg.Result {
	panic(ErrUnavailable)
}
