// Package stepadapt adjusts the position and timing of the upcoming footstep
// when the measured DCM departs from its reference.
//
// The decision variables are the landing ZMP, sigma = exp(omega*T) where T is
// the time left until the middle of the next double support, and the DCM
// offset at that instant. The LIPM closed form
//
//	xi(T) = z0 + sigma*(xi0 - z0) = zmp + offset
//
// is the equality part of a small QP whose inequalities keep the landing
// inside a rectangle around the nominal footstep and sigma inside a window
// around the nominal step duration. [QP] owns the problem, [Adapter] fills
// it from the current step each cycle, [PushDetector] and [TiltDetector]
// decide when adaptation is engaged and [SwingTrajectory] steers the swing
// foot to the adapted landing.
package stepadapt
