package viz

import (
	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"gonum.org/v1/gonum/spatial/r2"
)

// Feet holds the foot outlines drawn in the top-down view.
type Feet struct {
	Left, Right stepadapt.Rectangle
}

// Outline returns the corners of the foot rectangle at pose.
func Outline(pose trajectory.Pose, r stepadapt.Rectangle) []r2.Vec {
	return []r2.Vec{
		pose.Local(r2.Vec{X: r.Front, Y: r.Left}),
		pose.Local(r2.Vec{X: r.Front, Y: -r.Right}),
		pose.Local(r2.Vec{X: -r.Back, Y: -r.Right}),
		pose.Local(r2.Vec{X: -r.Back, Y: r.Left}),
	}
}

// TopDown draws the last record of recs on c, centered on its CoM, with
// the DCM path of the trail behind it. Feet in contact get an outline and
// the swing foot is marked by its center.
func TopDown(c *Canvas, recs []sim.Record, feet Feet, scale float64, trail int) {
	c.Clear()
	if len(recs) == 0 {
		return
	}
	last := recs[len(recs)-1]
	v := c.Viewport(last.CoM, scale)

	start := max(0, len(recs)-trail)
	for i := start + 1; i < len(recs); i++ {
		v.Line(recs[i-1].DCM, recs[i].DCM)
		v.Point(recs[i].CoM)
	}

	drawFoot(v, last.LeftFoot, feet.Left, last.LeftContact)
	drawFoot(v, last.RightFoot, feet.Right, last.RightContact)
	v.Cross(last.ZMP)
	v.Cross(last.DCMRef)
}

func drawFoot(v *Viewport, pose trajectory.Pose, r stepadapt.Rectangle, contact bool) {
	if contact {
		v.Polygon(Outline(pose, r))
		return
	}
	v.Cross(pose.Planar())
}
