// Package walking sequences the balance core: it owns the active reference
// plan, merges newly generated plans at merge points, runs push detection
// and step adaptation while a foot is swinging, propagates the CoM reference
// with the DCM stabilizer and hands the references to the robot.
//
// The [FSM] goes through Idle, Configured, Preparing, Prepared, Walking,
// Paused and Stopped. Commands are validated synchronously and applied at
// the start of the next [FSM.Tick].
package walking
