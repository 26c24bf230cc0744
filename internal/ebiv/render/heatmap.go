// Package render draws diagnostic figures: heat maps of reward and
// correlation maps (PNG via gonum/plot) and interactive velocity-field
// charts (HTML via go-echarts).
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// grid adapts a [row][col] matrix with axis coordinates to plotter.GridXYZ.
type grid struct {
	m      mat.Matrix
	xs, ys []float64
}

func (g grid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g grid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g grid) X(c int) float64    { return g.xs[c] }
func (g grid) Y(r int) float64    { return g.ys[r] }

// ShiftAxis returns the pixel shifts of a correlation map axis of length
// n, centred on n/2.
func ShiftAxis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i - n/2)
	}
	return out
}

// HeatMapOptions controls a heat-map figure.
type HeatMapOptions struct {
	Title          string
	XLabel, YLabel string
	// Mark, when set, draws a cross at the given axis coordinates, e.g.
	// the refined peak.
	Mark *[2]float64
	// Width and Height default to 6 inch.
	Width, Height vg.Length
}

// HeatMap renders m, indexed [y][x], as a PNG. xs and ys give the axis
// coordinates of the columns and rows.
func HeatMap(w io.Writer, m mat.Matrix, xs, ys []float64, o HeatMapOptions) error {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("empty map")
	}
	if len(xs) != c || len(ys) != r {
		return fmt.Errorf("axis lengths %d,%d do not match %dx%d map", len(xs), len(ys), r, c)
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = o.XLabel
	p.Y.Label.Text = o.YLabel

	hm := plotter.NewHeatMap(grid{m: m, xs: xs, ys: ys}, palette.Heat(64, 1))
	hm.NaN = color.Gray{Y: 128}
	if math.IsInf(hm.Min, 0) || math.IsInf(hm.Max, 0) {
		// every cell is NaN
		hm.Min, hm.Max = 0, 1
	}
	p.Add(hm)

	if o.Mark != nil {
		s, err := plotter.NewScatter(plotter.XYs{{X: o.Mark[0], Y: o.Mark[1]}})
		if err != nil {
			return err
		}
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
		s.GlyphStyle.Radius = vg.Points(5)
		p.Add(s)
	}

	width, height := o.Width, o.Height
	if width == 0 {
		width = 6 * vg.Inch
	}
	if height == 0 {
		height = 6 * vg.Inch
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render heat map: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
