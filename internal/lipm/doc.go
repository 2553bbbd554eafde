// Package lipm implements the linear inverted pendulum quantities used by the
// walking controller.
//
// The divergent component of motion (DCM) of a point-mass pendulum of height
// h under gravity g is xi = c + c'/omega with omega = sqrt(g/h). Choosing the
// CoM velocity c' = -omega (c - xi_ref) makes the CoM converge exponentially
// to any DCM reference, which is what [Stabilizer] does every control cycle.
//
//   - [Omega]: natural frequency of the pendulum
//   - [StableDCM]: the first-order CoM law as a [dynamo.System]
//   - [Stabilizer]: CoM reference propagation from a DCM reference
//   - [Estimator]: DCM estimate from measured CoM, ZMP and foot tilt
package lipm
