// Package dynamo provides the numeric primitives and error taxonomy shared by
// the walking balance core.
//
//   - [State]: vector of continuous states
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical stepper
//   - [TickError]: error annotated with the control cycle it occurred in
//
// # Example
//
//	sys := lipm.NewStableDCM(omega)
//	integ := integrators.NewHeun()
//	x = integ.Step(sys, x, dynamo.Control{dcmX, dcmY}, t, dt)
//
// # Errors
//
// Callers classify failures with errors.Is against the sentinels in this
// package, e.g. [ErrOptimization] degrades one cycle while
// [ErrFeedbackUnavailable] stops the walking controller.
package dynamo
