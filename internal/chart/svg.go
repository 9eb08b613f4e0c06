package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"
)

const (
	background = "#111111"
	foreground = "#7FDBFF"
	gridColor  = "#2A2A2A"
	trendColor = "#ADD8E6"
	markerEdge = "#2F4F4F"
	labelColor = "#FFFFFF"

	pointRadius = 4
	minWidth    = 200
	minHeight   = 150
)

// SVG renders the figure as a standalone SVG document of the given size in
// points.
func (f Figure) SVG(width, height int) (string, error) {
	p := plot.New()
	styleFigure(p, f)

	if f.Empty() {
		p.Title.Text = "No rated episodes"
		p.HideAxes()
	} else if err := f.addPlotters(p); err != nil {
		return "", fmt.Errorf("build chart: %w", err)
	}

	canvas := vgsvg.New(vg.Points(float64(max(width, minWidth))), vg.Points(float64(max(height, minHeight))))
	p.Draw(draw.New(canvas))

	var buf bytes.Buffer
	if _, err := canvas.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}

	// drop the XML prolog so the document can be inlined into HTML
	out := buf.String()
	if i := strings.Index(out, "<svg"); i > 0 {
		out = out[i:]
	}
	return strings.TrimSpace(out), nil
}

func styleFigure(p *plot.Plot, f Figure) {
	fg := hexColor(foreground)

	p.BackgroundColor = hexColor(background)
	p.Title.Text = f.Title
	p.Title.TextStyle.Color = fg
	p.Legend.Top = true
	p.Legend.TextStyle.Color = fg

	for _, ax := range []*plot.Axis{&p.X, &p.Y} {
		ax.Color = fg
		ax.Label.TextStyle.Color = fg
		ax.Tick.Color = fg
		ax.Tick.Label.Color = fg
	}
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel
	p.X.Tick.Marker = episodeTicks
	p.Y.Tick.Marker = f.Axis.ticker()
}

func (f Figure) addPlotters(p *plot.Plot) error {
	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	grid.Horizontal.Color = hexColor(gridColor)
	p.Add(grid)

	if len(f.Trend) > 1 {
		xys := make(plotter.XYs, len(f.Trend))
		for i, t := range f.Trend {
			xys[i].X, xys[i].Y = t.X, t.Y
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = withAlpha(hexColor(trendColor), 0x99)
		line.Width = vg.Points(3)
		line.Dashes = []vg.Length{vg.Points(8), vg.Points(5)}
		p.Add(line)
	}

	for _, s := range f.Series {
		xys := pointXYs(s.Points)
		fill, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		fill.Color = withAlpha(hexColor(s.Color), 0xB3)
		fill.Radius = vg.Points(pointRadius)
		fill.Shape = draw.CircleGlyph{}

		edge, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		edge.Color = hexColor(markerEdge)
		edge.Radius = vg.Points(pointRadius)
		edge.Shape = draw.RingGlyph{}

		p.Add(fill, edge)
		p.Legend.Add(s.Name, fill)
	}

	if len(f.Outliers) > 0 {
		labels, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    pointXYs(f.Outliers),
			Labels: outlierLabels(f.Outliers),
		})
		if err != nil {
			return err
		}
		for i := range labels.TextStyle {
			labels.TextStyle[i].Color = hexColor(labelColor)
		}
		labels.Offset = vg.Point{X: vg.Points(pointRadius + 3), Y: vg.Points(pointRadius + 3)}
		p.Add(labels)
	}
	return nil
}

func pointXYs(points []Point) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X, xys[i].Y = pt.X, pt.Y
	}
	return xys
}

func outlierLabels(points []Point) []string {
	labels := make([]string, len(points))
	for i, pt := range points {
		labels[i] = pt.Label()
	}
	return labels
}

// episodeTicks keeps whole episode numbers only.
var episodeTicks = plot.TickerFunc(func(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for _, t := range (plot.DefaultTicks{}).Ticks(min, max) {
		if t.Label == "" || t.Value != math.Trunc(t.Value) {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: t.Value, Label: strconv.Itoa(int(t.Value))})
	}
	return ticks
})

// ticker relabels the default major ticks with the axis formatting.
func (a Axis) ticker() plot.Ticker {
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		ticks := (plot.DefaultTicks{}).Ticks(min, max)
		for i := range ticks {
			if ticks[i].Label != "" {
				ticks[i].Label = a.format(ticks[i].Value)
			}
		}
		return ticks
	})
}

// hexColor parses a palette entry; anything unparseable falls back to gray.
func hexColor(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.Gray{Y: 0x80}
	}
	return c
}

func withAlpha(c color.Color, alpha uint8) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = alpha
	return n
}
