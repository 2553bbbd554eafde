package control

import "gonum.org/v1/gonum/spatial/r2"

// DCMReactive computes the desired ZMP
//
//	zmp = xi_ref - xi'_ref/omega - Kdcm (xi_ref - xi)
//
// which places the ZMP so that the measured DCM converges to the reference.
type DCMReactive struct {
	Omega float64
	Kdcm  float64
}

func NewDCMReactive(omega, kdcm float64) *DCMReactive {
	return &DCMReactive{Omega: omega, Kdcm: kdcm}
}

func (c *DCMReactive) Compute(dcmRef, dcmVelRef, dcm r2.Vec) r2.Vec {
	feedforward := r2.Sub(dcmRef, r2.Scale(1/c.Omega, dcmVelRef))
	feedback := r2.Scale(c.Kdcm, r2.Sub(dcmRef, dcm))
	return r2.Sub(feedforward, feedback)
}
