// Package analysis inspects recorded walking runs.
//
//   - [PowerSpectrum] and [DominantFrequency]: gait rhythm of a signal
//   - [RecoveryRate] and [RecoveryTime]: how fast the DCM error settles
//   - [PhasePortrait]: CoM position against velocity
//   - [CaptureSweep]: largest push recovered, over a range of forces
//
// # Gait frequency
//
// The lateral CoM sways once per stride, so its dominant frequency is half
// the step frequency:
//
//	f, _ := analysis.DominantFrequency(comY, dt)
package analysis
