// Package control closes the balance loop of the simulated robot around
// the references produced by the walking core.
//
//	ctrl := control.NewDCMReactive(omega, 2.0)
//	zmpDes := ctrl.Compute(dcmRef, dcmVelRef, dcmMeasured)
package control
