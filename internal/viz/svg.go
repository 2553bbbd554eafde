package viz

import (
	"bufio"
	"fmt"
	"io"
)

// WriteSVG renders the lit dots of c as circles, scale pixels apart.
func WriteSVG(w io.Writer, c *Canvas, scale float64) error {
	if c == nil {
		return fmt.Errorf("viz: nil canvas")
	}
	width := float64(c.Width) * scale * 2
	height := float64(c.Height) * scale * 4
	radius := scale * 0.4

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ccff">
`, width, height, width, height)

	for row := 0; row < c.Height; row++ {
		for col := 0; col < c.Width; col++ {
			pattern := int(c.Grid[row][col] - 0x2800)
			if pattern <= 0 {
				continue
			}
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] == 0 {
						continue
					}
					cx := (float64(col*2+dx) + 0.5) * scale
					cy := (float64(row*4+dy) + 0.5) * scale
					fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, radius)
				}
			}
		}
	}
	fmt.Fprint(bw, "</g>\n</svg>\n")
	return bw.Flush()
}
