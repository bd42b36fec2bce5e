package review

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// RunState is the lifecycle state of a review run.
type RunState string

// State ids are untyped so they convert directly to statekit.StateID.
const (
	StatePending         = "pending"
	StateRunning         = "running"
	StateCompleted       = "completed"
	StatePartiallyFailed = "partially_failed"
)

const (
	RunPending         RunState = StatePending
	RunRunning         RunState = StateRunning
	RunCompleted       RunState = StateCompleted
	RunPartiallyFailed RunState = StatePartiallyFailed
)

// Run events.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventPartial  = "partial"
)

// RunContext carries the identity of the run through the machine.
type RunContext struct {
	ReviewID string
}

// RunStateMachine drives pending -> running -> completed | partially_failed.
type RunStateMachine struct {
	interpreter *statekit.Interpreter[RunContext]
}

func NewRunStateMachine(reviewID string) (*RunStateMachine, error) {
	builder := statekit.NewMachine[RunContext]("review-run").
		WithInitial(statekit.StateID(StatePending)).
		WithContext(RunContext{ReviewID: reviewID})

	builder.State(StatePending).
		On(EventStart).Target(StateRunning).
		Done()

	builder.State(StateRunning).
		On(EventComplete).Target(StateCompleted).
		On(EventPartial).Target(StatePartiallyFailed).
		Done()

	builder.State(StateCompleted).Done()
	builder.State(StatePartiallyFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &RunStateMachine{interpreter: interpreter}, nil
}

// Transition applies an event and fails if the state did not move.
func (sm *RunStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if sm.Current() != before {
		return nil
	}
	return fmt.Errorf("event %q is not allowed while the run is %s", event, before)
}

// Current returns the current state.
func (sm *RunStateMachine) Current() RunState {
	return RunState(sm.interpreter.State().Value)
}

// Finish moves a running machine to its terminal state.
func (sm *RunStateMachine) Finish(anyErrored bool) error {
	if anyErrored {
		return sm.Transition(EventPartial)
	}
	return sm.Transition(EventComplete)
}

// IsTerminal reports whether the run has finished.
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunPartiallyFailed
}
