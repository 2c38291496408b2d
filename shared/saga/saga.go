package saga

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrExecutionInProgress is returned when an executor is mutated or
// re-entered while a run is in flight. An executor instance is
// single-flight: one Execute at a time.
var ErrExecutionInProgress = errors.New("saga execution already in progress")

// State represents the lifecycle state of an executor.
type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateCompensating State = "compensating"
	StateCompensated  State = "compensated"
)

// Step is a named unit of work with a forward action and a
// compensating action. The forward action returns an opaque outcome
// the executor carries in the step trace; the compensating action
// semantically reverses a completed forward action.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) (interface{}, error)
	Compensate func(ctx context.Context) error
}

// StepResult is one entry of the per-step trace returned by Execute.
// Exactly one of Outcome and Err is meaningful.
type StepResult struct {
	Name    string      `json:"name"`
	Outcome interface{} `json:"outcome,omitempty"`
	Err     error       `json:"-"`
}

// Result describes a single saga run. When Success is false the last
// entry of Steps carries the error that stopped forward progress.
type Result struct {
	Success bool
	Steps   []StepResult
	Err     error
}

// StepNames returns the names of all attempted steps in order.
func (r Result) StepNames() []string {
	names := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		names[i] = s.Name
	}
	return names
}

// executedRecord is appended only after a step's forward action
// succeeds. The record list is always an in-order prefix of the
// attempted steps and is the sole source of truth for compensation.
type executedRecord struct {
	step    Step
	outcome interface{}
}

// Listener receives saga lifecycle callbacks. Any nil callback is
// skipped. Callbacks run synchronously on the executing goroutine.
type Listener struct {
	StepStarted          func(name string)
	StepCompleted        func(name string, outcome interface{})
	SagaFailed           func(name string, err error)
	CompensationStarted  func(name string)
	CompensationFinished func(name string, err error)
}

// Executor runs an ordered list of steps and performs reverse-order
// best-effort compensation when a forward action fails. It is
// domain-agnostic: steps are opaque beyond their two actions.
type Executor struct {
	mu       sync.Mutex
	state    State
	steps    []Step
	executed []executedRecord
	listener Listener
}

// NewExecutor creates an empty executor; steps are added with AddStep.
func NewExecutor(listener Listener) *Executor {
	return &Executor{
		state:    StateIdle,
		listener: listener,
	}
}

// New creates an executor preloaded with a fully-constructed step
// sequence. Builders should prefer this over AddStep so the step list
// cannot be mutated after construction.
func New(steps []Step, listener Listener) *Executor {
	e := NewExecutor(listener)
	e.steps = append(e.steps, steps...)
	return e
}

// AddStep appends a step to the ordered list. Steps cannot be added
// while a run is in flight.
func (e *Executor) AddStep(step Step) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning || e.state == StateCompensating {
		return ErrExecutionInProgress
	}

	e.steps = append(e.steps, step)
	return nil
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reset clears both the step list and the executed-record list,
// returning the executor to idle. Not allowed during a run.
func (e *Executor) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning || e.state == StateCompensating {
		return ErrExecutionInProgress
	}

	e.steps = nil
	e.executed = nil
	e.state = StateIdle
	return nil
}

// Execute runs the steps strictly in the order they were added. The
// first forward failure stops forward progress and triggers
// compensation of every previously completed step in exact reverse
// order. Execute never panics on step errors and never returns an
// error value; all outcomes, including compensation failures, are
// reported through the Result and the listener.
func (e *Executor) Execute(ctx context.Context) Result {
	e.mu.Lock()
	if e.state == StateRunning || e.state == StateCompensating {
		e.mu.Unlock()
		return Result{Success: false, Err: ErrExecutionInProgress}
	}
	e.state = StateRunning
	e.executed = e.executed[:0]
	steps := make([]Step, len(e.steps))
	copy(steps, e.steps)
	e.mu.Unlock()

	result := Result{}

	for _, step := range steps {
		e.emitStepStarted(step.Name)

		outcome, err := step.Execute(ctx)
		if err != nil {
			result.Steps = append(result.Steps, StepResult{Name: step.Name, Err: err})
			result.Err = errors.Wrapf(err, "step %s failed", step.Name)
			result.Success = false

			e.emitSagaFailed(step.Name, err)
			e.compensate(ctx)

			e.setState(StateCompensated)
			return result
		}

		e.mu.Lock()
		e.executed = append(e.executed, executedRecord{step: step, outcome: outcome})
		e.mu.Unlock()

		result.Steps = append(result.Steps, StepResult{Name: step.Name, Outcome: outcome})
		e.emitStepCompleted(step.Name, outcome)
	}

	result.Success = true
	e.setState(StateCompleted)
	return result
}

// compensate walks the executed records in strict reverse order of
// successful execution. A compensation failure is reported and does
// not stop the walk: earlier steps still get their attempt.
func (e *Executor) compensate(ctx context.Context) {
	e.setState(StateCompensating)

	e.mu.Lock()
	records := make([]executedRecord, len(e.executed))
	copy(records, e.executed)
	e.mu.Unlock()

	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]

		e.emitCompensationStarted(record.step.Name)

		var err error
		if record.step.Compensate != nil {
			err = record.step.Compensate(ctx)
		}

		e.emitCompensationFinished(record.step.Name, err)
	}
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Executor) emitStepStarted(name string) {
	if e.listener.StepStarted != nil {
		e.listener.StepStarted(name)
	}
}

func (e *Executor) emitStepCompleted(name string, outcome interface{}) {
	if e.listener.StepCompleted != nil {
		e.listener.StepCompleted(name, outcome)
	}
}

func (e *Executor) emitSagaFailed(name string, err error) {
	if e.listener.SagaFailed != nil {
		e.listener.SagaFailed(name, err)
	}
}

func (e *Executor) emitCompensationStarted(name string) {
	if e.listener.CompensationStarted != nil {
		e.listener.CompensationStarted(name)
	}
}

func (e *Executor) emitCompensationFinished(name string, err error) {
	if e.listener.CompensationFinished != nil {
		e.listener.CompensationFinished(name, err)
	}
}
