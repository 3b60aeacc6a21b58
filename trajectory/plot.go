package trajectory

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotPath renders the cumulative camera path (x and y against frame index) to a PNG
// (or any extension gonum/plot knows) at out.
func PlotPath(samples []Sample, title, out string) error {
	if len(samples) == 0 {
		return errors.New("no samples to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "camera path (px)"

	xs := make(plotter.XYs, 0, len(samples))
	ys := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		xs = append(xs, plotter.XY{X: float64(s.Frame), Y: s.PathX})
		ys = append(ys, plotter.XY{X: float64(s.Frame), Y: s.PathY})
	}

	xLine, err := plotter.NewLine(xs)
	if err != nil {
		return errors.Wrap(err, "x line")
	}
	xLine.Width = vg.Points(1)
	xLine.Color = color.RGBA{R: 200, A: 255}

	yLine, err := plotter.NewLine(ys)
	if err != nil {
		return errors.Wrap(err, "y line")
	}
	yLine.Width = vg.Points(1)
	yLine.Color = color.RGBA{B: 200, A: 255}

	p.Add(plotter.NewGrid(), xLine, yLine)
	p.Legend.Add("x", xLine)
	p.Legend.Add("y", yLine)

	return errors.Wrapf(p.Save(10*vg.Inch, 4*vg.Inch, out), "save %s", out)
}
