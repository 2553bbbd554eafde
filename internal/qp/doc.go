// Package qp solves small dense strictly convex quadratic programs
//
//	minimize   1/2 x'Hx + g'x
//	subject to l <= Ax <= u
//
// where equal bounds make a row an equality and infinite bounds drop that
// side of the row. [ActiveSet] implements the [Backend] strategy with the
// dual active-set method of Goldfarb and Idnani: it starts from the
// unconstrained minimum, so no feasible initial point is needed, and it
// detects infeasibility when no step can restore a violated row.
//
// WarmSolve restarts from the working set of the previous solve, which is
// what makes the method cheap when consecutive problems differ slightly, as
// they do between control cycles.
package qp
