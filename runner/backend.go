package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/notargets/TopOpt/linalg"
)

// ErrUnavailable is returned when no accelerated device can be used, either
// because the binary was built without the occa tag or no device initializes.
var ErrUnavailable = errors.New("runner: accelerated backend unavailable")

// Backend is a linear solver choice. New is called once per mesh build with
// the DOF count.
type Backend struct {
	Name        string
	Accelerated bool
	New         func(n int) linalg.Solver
}

// Reference is the workspace PCG backend.
func Reference() Backend {
	return Backend{
		Name: "pcg-workspace",
		New: func(n int) linalg.Solver {
			return linalg.NewWorkspaceSolver(n)
		},
	}
}

// Selector chooses a backend once. When PreferAccelerated is set it probes for
// a device and falls back to Reference if none is usable; the fallback is not
// an error.
type Selector struct {
	PreferAccelerated bool
	Logger            *slog.Logger

	once    sync.Once
	backend Backend
}

// Backend returns the selected backend, probing on the first call.
func (s *Selector) Backend() Backend {
	s.once.Do(func() {
		s.backend = s.selectBackend()
		s.logger().Info("solver backend selected",
			"backend", s.backend.Name, "accelerated", s.backend.Accelerated)
	})
	return s.backend
}

func (s *Selector) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(discardHandler{})
	}
	return s.Logger
}

func (s *Selector) selectBackend() Backend {
	if !s.PreferAccelerated {
		return Reference()
	}
	mode, err := Probe()
	if err != nil {
		s.logger().Info("falling back to CPU solver", "reason", err)
		return Reference()
	}

	log := s.logger()
	return Backend{
		Name:        "occa-" + mode,
		Accelerated: true,
		New: func(n int) linalg.Solver {
			r, err := New(n)
			if err != nil {
				log.Warn("device solver creation failed, using CPU solver", "err", err)
				return linalg.NewWorkspaceSolver(n)
			}
			r.SetLogger(log)
			return r
		},
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
