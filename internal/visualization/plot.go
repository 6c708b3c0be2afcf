package visualization

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/nvandessel/fuzzbrake/internal/fuzzy"
)

// Default PNG geometry.
const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
	plotDPI    = 96
)

var axisUnits = map[fuzzy.Axis]string{
	fuzzy.AxisSpeed:    "speed (km/h)",
	fuzzy.AxisDistance: "distance (m)",
	fuzzy.AxisBrake:    "brake intensity (%)",
}

// TracePoint is one sample of a run, as plotted by PlotTrace.
type TracePoint struct {
	Tick     int
	Speed    float64
	Distance float64
	Brake    float64
}

// PlotCurves renders the membership curves of one axis as a PNG.
func PlotCurves(w io.Writer, axis fuzzy.Axis, curves []fuzzy.Curve) error {
	if len(curves) == 0 {
		return fmt.Errorf("no curves for axis %s", axis)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s membership", axis)
	p.X.Label.Text = axisUnits[axis]
	p.Y.Label.Text = "degree"
	p.X.Min, p.X.Max = 0, fuzzy.AxisMax(axis)
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Legend.Top = true
	stylePlot(p)

	for i, c := range curves {
		pts := make(plotter.XYs, len(c.Points))
		for j, pt := range c.Points {
			pts[j].X, pts[j].Y = pt.X, pt.Y
		}
		if err := addLine(p, c.Label, pts, i); err != nil {
			return err
		}
	}

	return writePNG(p, w)
}

// PlotTrace renders speed, distance and brake intensity over ticks as a PNG.
func PlotTrace(w io.Writer, title string, samples []TracePoint) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "tick"
	p.Y.Label.Text = "value"
	p.Legend.Top = true
	stylePlot(p)

	speed := make(plotter.XYs, len(samples))
	distance := make(plotter.XYs, len(samples))
	brake := make(plotter.XYs, len(samples))
	for i, s := range samples {
		x := float64(s.Tick)
		speed[i].X, speed[i].Y = x, s.Speed
		distance[i].X, distance[i].Y = x, s.Distance
		brake[i].X, brake[i].Y = x, s.Brake
	}

	series := []struct {
		name string
		pts  plotter.XYs
	}{
		{"speed (km/h)", speed},
		{"distance (m)", distance},
		{"brake (%)", brake},
	}
	for i, s := range series {
		if err := addLine(p, s.name, s.pts, i); err != nil {
			return err
		}
	}

	return writePNG(p, w)
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, i int) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("line %s: %w", name, err)
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = plotutil.Color(i)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

func stylePlot(p *plot.Plot) {
	p.Add(plotter.NewGrid())
	p.X.Tick.Marker = limitedTicker(11, "%.0f")
	p.Y.Tick.Marker = limitedTicker(6, "%.2f")
}

func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func writePNG(p *plot.Plot, w io.Writer) error {
	c := vgimg.NewWith(
		vgimg.UseWH(plotWidth, plotHeight),
		vgimg.UseDPI(plotDPI),
	)
	p.Draw(draw.New(c))

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
