// Package sim closes the loop around the walking controller with a point-mass
// robot. It is used by the command line tool to run scenarios and by tests.
package sim
