package harness

import (
	"github.com/notargets/TopOpt/problems"
	"github.com/notargets/TopOpt/topopt"
)

// Command is sent to a Worker. The set is closed: Init, Start, Pause,
// StepOnce and Terminate.
type Command interface{ isCommand() }

// Init (re)creates the optimizer for a configuration and load case. The
// problem's mesh must match the configuration.
type Init struct {
	Config  topopt.Config
	Problem problems.Problem
}

// Start runs iterations until convergence or Pause.
type Start struct{}

// Pause stops a running optimization and reports its state.
type Pause struct{}

// StepOnce runs exactly one iteration.
type StepOnce struct{}

// Terminate releases the optimizer and ends Run.
type Terminate struct{}

func (Init) isCommand()      {}
func (Start) isCommand()     {}
func (Pause) isCommand()     {}
func (StepOnce) isCommand()  {}
func (Terminate) isCommand() {}

// Event is emitted by a Worker. The set is closed: Ready, StateUpdate,
// Paused, Converged and Failed.
type Event interface{ isEvent() }

// Ready acknowledges Init.
type Ready struct {
	Nelx, Nely int
	Backend    string
}

// StateUpdate carries progress, every ReportEvery iterations while running
// and after every StepOnce.
type StateUpdate struct{ State topopt.State }

type Paused struct{ State topopt.State }

// Converged is emitted once when the optimizer reaches its terminal state.
type Converged struct{ State topopt.State }

// Failed reports a command that could not be carried out. The worker keeps
// running.
type Failed struct{ Err error }

func (Ready) isEvent()       {}
func (StateUpdate) isEvent() {}
func (Paused) isEvent()      {}
func (Converged) isEvent()   {}
func (Failed) isEvent()      {}
