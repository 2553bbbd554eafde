package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors shared by the balance core.
var (
	// ErrConfiguration indicates invalid or incomplete parameters at configure time.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrFeedbackUnavailable indicates the robot state could not be read within the retry budget.
	ErrFeedbackUnavailable = errors.New("dynamo: feedback unavailable")

	// ErrOptimization indicates the step-adaptation problem could not be solved this cycle.
	ErrOptimization = errors.New("dynamo: optimization failed")

	// ErrTransitionRejected indicates a command that is not valid in the current phase.
	ErrTransitionRejected = errors.New("dynamo: state transition rejected")

	// ErrFatalRuntime indicates a collaborator failure that compromises balance.
	ErrFatalRuntime = errors.New("dynamo: fatal runtime error")

	// ErrNotInitialized indicates use of a component before its initialization.
	ErrNotInitialized = errors.New("dynamo: component not initialized")

	// ErrNotPropagated indicates a read of an output before the first integration.
	ErrNotPropagated = errors.New("dynamo: state not propagated yet")

	// ErrDimensionMismatch indicates a matrix or vector of the wrong shape.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrInvalidState indicates NaN or Inf values in a propagated state.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// TickError wraps an error with the control cycle it happened in.
type TickError struct {
	Tick    int
	Time    float64
	Phase   string
	Wrapped error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d (t=%.4f, %s): %v", e.Tick, e.Time, e.Phase, e.Wrapped)
}

func (e *TickError) Unwrap() error {
	return e.Wrapped
}
