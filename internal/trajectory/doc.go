// Package trajectory holds the time-indexed reference sequences consumed by
// the walking controller and the operations that keep them continuous.
//
// A [Plan] is a list of [Sample] values spaced by a fixed period, consumed
// front to back by [Plan.Advance]. Merge points are sample indices, usually
// the middle of a double support, where a freshly generated plan may replace
// the tail of the active one with [Merge].
//
// Plans come from a [Generator]. [Async] runs a generator in the background
// so that the control loop never blocks on planning, and [Straight] is a
// simple generator that walks toward a goal along a straight line.
package trajectory
