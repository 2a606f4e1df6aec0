package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/notargets/TopOpt/runner"
	"github.com/notargets/TopOpt/topopt"
)

// ErrNotReady is reported for Start, Pause or StepOnce before a successful
// Init.
var ErrNotReady = errors.New("harness: optimizer not initialized")

const defaultReportEvery = 1

// Worker drives one optimizer from a single goroutine. Densities change only
// through Step.
type Worker struct {
	// ReportEvery is the number of iterations between StateUpdate events while
	// running; values below 1 report every iteration.
	ReportEvery int
	Logger      *slog.Logger

	backend     runner.Backend
	opt         *topopt.Optimizer
	ready       bool
	running     bool
	sinceReport int
}

// NewWorker binds a worker to a solver backend; the backend is used for every
// optimizer the worker creates.
func NewWorker(backend runner.Backend) *Worker {
	return &Worker{
		ReportEvery: defaultReportEvery,
		backend:     backend,
	}
}

// Run serves commands until Terminate, the command channel closes or ctx is
// done. Between iterations of a running optimization it checks for commands
// without blocking. Run closes events on return; the caller must keep draining
// it.
func (w *Worker) Run(ctx context.Context, commands <-chan Command, events chan<- Event) error {
	defer close(events)
	defer w.release()

	for {
		if w.running {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd, ok := <-commands:
				if !ok {
					return nil
				}
				if done, err := w.handle(ctx, cmd, events); done {
					return err
				}
			default:
				if err := w.advance(ctx, events); err != nil {
					return err
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			if done, err := w.handle(ctx, cmd, events); done {
				return err
			}
		}
	}
}

// handle dispatches one command. done reports that Run should return.
func (w *Worker) handle(ctx context.Context, cmd Command, events chan<- Event) (done bool, err error) {
	switch c := cmd.(type) {
	case Init:
		err = w.init(ctx, c, events)
	case Start:
		err = w.start(ctx, events)
	case Pause:
		if !w.ready {
			err = emit(ctx, events, Failed{Err: fmt.Errorf("pause: %w", ErrNotReady)})
			break
		}
		w.running = false
		err = emit(ctx, events, Paused{State: w.opt.State()})
	case StepOnce:
		err = w.stepOnce(ctx, events)
	case Terminate:
		w.logger().Info("worker terminated")
		return true, nil
	default:
		err = emit(ctx, events, Failed{Err: fmt.Errorf("harness: unknown command %T", cmd)})
	}
	return err != nil, err
}

// init replaces the optimizer. A failed Init leaves the previous optimizer,
// if any, in place and paused.
func (w *Worker) init(ctx context.Context, c Init, events chan<- Event) error {
	w.running = false
	opt, err := topopt.New(c.Config,
		topopt.WithSolverFactory(w.backend.New),
		topopt.WithLogger(w.Logger))
	if err == nil {
		if err = c.Problem.Apply(opt); err != nil {
			opt.Close()
		}
	}
	if err != nil {
		return emit(ctx, events, Failed{Err: fmt.Errorf("init: %w", err)})
	}

	w.release()
	w.opt = opt
	w.ready = true
	w.logger().Info("worker ready",
		"nelx", c.Config.Nelx, "nely", c.Config.Nely,
		"problem", c.Problem.Name, "backend", w.backend.Name)
	return emit(ctx, events, Ready{Nelx: c.Config.Nelx, Nely: c.Config.Nely, Backend: w.backend.Name})
}

func (w *Worker) start(ctx context.Context, events chan<- Event) error {
	if !w.ready {
		return emit(ctx, events, Failed{Err: fmt.Errorf("start: %w", ErrNotReady)})
	}
	if w.opt.IsConverged() {
		return emit(ctx, events, Converged{State: w.opt.State()})
	}
	w.running = true
	w.sinceReport = 0
	return nil
}

func (w *Worker) stepOnce(ctx context.Context, events chan<- Event) error {
	if !w.ready {
		return emit(ctx, events, Failed{Err: fmt.Errorf("step: %w", ErrNotReady)})
	}
	w.running = false
	st := w.opt.Step()
	if st.Converged {
		return emit(ctx, events, Converged{State: st})
	}
	return emit(ctx, events, StateUpdate{State: st})
}

// advance runs one iteration of a running optimization.
func (w *Worker) advance(ctx context.Context, events chan<- Event) error {
	st := w.opt.Step()
	if st.Converged {
		w.running = false
		return emit(ctx, events, Converged{State: st})
	}
	w.sinceReport++
	if w.sinceReport >= max(w.ReportEvery, 1) {
		w.sinceReport = 0
		return emit(ctx, events, StateUpdate{State: st})
	}
	return nil
}

func (w *Worker) release() {
	if w.opt != nil {
		w.opt.Close()
	}
	w.opt = nil
	w.ready = false
	w.running = false
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return topopt.Logger()
	}
	return w.Logger
}

func emit(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
