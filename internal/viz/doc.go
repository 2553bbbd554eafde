// Package viz renders walking runs: a braille top-down view for the
// terminal, a bubbletea live view, PNG plots through gonum/plot and SVG
// snapshots of the canvas.
package viz
