package viz

import (
	"fmt"
	"image/color"
	"io"

	"github.com/san-kum/dcmwalk/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	comColor  = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	dcmColor  = color.RGBA{R: 0, G: 120, B: 220, A: 255}
	refColor  = color.RGBA{R: 0, G: 200, B: 120, A: 255}
	zmpColor  = color.RGBA{R: 220, G: 60, B: 60, A: 255}
	footColor = color.RGBA{R: 120, G: 120, B: 140, A: 255}
)

// WritePNG renders p as a PNG of the given size in inches.
func WritePNG(w io.Writer, p *plot.Plot, widthIn, heightIn float64) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("viz: write png: %w", err)
	}
	return nil
}

func pathXYs(recs []sim.Record, pick func(sim.Record) r2.Vec) plotter.XYs {
	pts := make(plotter.XYs, len(recs))
	for i, rec := range recs {
		v := pick(rec)
		pts[i].X, pts[i].Y = v.X, v.Y
	}
	return pts
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color, width float64, dashed bool) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("viz: %s line: %w", name, err)
	}
	line.LineStyle.Width = vg.Points(width)
	line.LineStyle.Color = c
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	}
	p.Add(line)
	if name != "" {
		p.Legend.Add(name, line)
	}
	return nil
}

// Footprints returns the outline of every foot placement touching the
// ground in recs, once per placement.
func Footprints(recs []sim.Record, feet Feet) [][]r2.Vec {
	var out [][]r2.Vec
	wasLeft, wasRight := false, false
	for _, rec := range recs {
		if rec.LeftContact && !wasLeft {
			out = append(out, Outline(rec.LeftFoot, feet.Left))
		}
		if rec.RightContact && !wasRight {
			out = append(out, Outline(rec.RightFoot, feet.Right))
		}
		wasLeft, wasRight = rec.LeftContact, rec.RightContact
	}
	return out
}

// PathPlot draws the ground view of a run: footprints with the CoM, DCM and
// ZMP paths.
func PathPlot(title string, recs []sim.Record, feet Feet) (*plot.Plot, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("viz: no records to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Legend.Top = true

	for _, fp := range Footprints(recs, feet) {
		pts := make(plotter.XYs, len(fp)+1)
		for i := range pts {
			v := fp[i%len(fp)]
			pts[i].X, pts[i].Y = v.X, v.Y
		}
		if err := addLine(p, "", pts, footColor, 1, false); err != nil {
			return nil, err
		}
	}
	if err := addLine(p, "zmp", pathXYs(recs, func(r sim.Record) r2.Vec { return r.ZMP }), zmpColor, 1, false); err != nil {
		return nil, err
	}
	if err := addLine(p, "dcm ref", pathXYs(recs, func(r sim.Record) r2.Vec { return r.DCMRef }), refColor, 1.5, true); err != nil {
		return nil, err
	}
	if err := addLine(p, "dcm", pathXYs(recs, func(r sim.Record) r2.Vec { return r.DCM }), dcmColor, 1.5, false); err != nil {
		return nil, err
	}
	if err := addLine(p, "com", pathXYs(recs, func(r sim.Record) r2.Vec { return r.CoM }), comColor, 2, false); err != nil {
		return nil, err
	}
	return p, nil
}

// TrackingPlot draws the DCM and its reference along one axis over time.
// axis is "x" or "y".
func TrackingPlot(title string, recs []sim.Record, axis string) (*plot.Plot, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("viz: no records to plot")
	}
	var comp func(r2.Vec) float64
	switch axis {
	case "x":
		comp = func(v r2.Vec) float64 { return v.X }
	case "y":
		comp = func(v r2.Vec) float64 { return v.Y }
	default:
		return nil, fmt.Errorf("viz: unknown axis %q", axis)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = axis + " (m)"
	p.Legend.Top = true

	series := func(pick func(sim.Record) r2.Vec) plotter.XYs {
		pts := make(plotter.XYs, len(recs))
		for i, rec := range recs {
			pts[i].X, pts[i].Y = rec.Time, comp(pick(rec))
		}
		return pts
	}
	if err := addLine(p, "zmp", series(func(r sim.Record) r2.Vec { return r.ZMP }), zmpColor, 1, false); err != nil {
		return nil, err
	}
	if err := addLine(p, "dcm ref", series(func(r sim.Record) r2.Vec { return r.DCMRef }), refColor, 1.5, true); err != nil {
		return nil, err
	}
	if err := addLine(p, "dcm", series(func(r sim.Record) r2.Vec { return r.DCM }), dcmColor, 1.5, false); err != nil {
		return nil, err
	}

	for _, rec := range recs {
		if !rec.PushTriggered {
			continue
		}
		x := rec.Time
		mark := plotter.XYs{{X: x, Y: p.Y.Min}, {X: x, Y: p.Y.Max}}
		if err := addLine(p, "", mark, zmpColor, 0.5, true); err != nil {
			return nil, err
		}
	}
	return p, nil
}
