package render

import (
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/eventflow/internal/ebiv/field"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

var diverging = []string{"#3b4cc0", "#6f92f3", "#aac7fd", "#dddddd", "#f7b89c", "#e7745b", "#b40426"}

// gridSpacing returns the tile pitch of time step t in pixels, 1 along an
// axis with a single tile.
func gridSpacing(f *field.Field, t int) (dx, dy float64) {
	dx, dy = 1, 1
	if f.NX > 1 {
		dx = math.Abs(f.At(t, 0, 1).CX - f.At(t, 0, 0).CX)
	}
	if f.NY > 1 {
		dy = math.Abs(f.At(t, 1, 0).CY - f.At(t, 0, 0).CY)
	}
	return dx, dy
}

// points builds scatter data [cx, cy, value] for every finite value of m.
func points(f *field.Field, t int, m mat.Matrix) (data []opts.ScatterData, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for r := 0; r < f.NY; r++ {
		for c := 0; c < f.NX; c++ {
			z := m.At(r, c)
			if math.IsNaN(z) || math.IsInf(z, 0) {
				continue
			}
			v := f.At(t, r, c)
			data = append(data, opts.ScatterData{Value: []interface{}{v.CX, v.CY, z}})
			lo, hi = math.Min(lo, z), math.Max(hi, z)
		}
	}
	if len(data) == 0 {
		lo, hi = 0, 1
	}
	return data, lo, hi
}

func scatterChart(title, subtitle, series string, data []opts.ScatterData, lo, hi float64, colors []string) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: colors},
		}),
	)
	scatter.AddSeries(series, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
	return scatter
}

// FieldChart renders time step t of f as an HTML page with two charts:
// velocity magnitude and vorticity at the tile centres. NaN cells are
// left out.
func FieldChart(w io.Writer, f *field.Field, t int, title string) error {
	if t < 0 || t >= f.NT {
		return fmt.Errorf("time step %d outside [0,%d)", t, f.NT)
	}
	if f.NY == 0 || f.NX == 0 {
		return fmt.Errorf("empty field")
	}
	vx, vy := f.Plane(t, field.CompVX), f.Plane(t, field.CompVY)
	mag := field.Magnitude(vx, vy)
	dx, dy := gridSpacing(f, t)
	vort, err := field.Vorticity(vx, vy, dx, dy)
	if err != nil {
		return err
	}

	magData, magLo, magHi := points(f, t, mag)
	vortData, vortLo, vortHi := points(f, t, vort)
	// symmetric range so that zero vorticity sits mid-scale
	span := math.Max(math.Abs(vortLo), math.Abs(vortHi))
	if span == 0 {
		span = 1
	}

	subtitle := fmt.Sprintf("time step %d, %dx%d tiles", t, f.NX, f.NY)
	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(
		scatterChart(title+": |V| (px/ms)", subtitle, "magnitude", magData, magLo, magHi, viridis),
		scatterChart(title+": vorticity (1/ms)", subtitle, "vorticity", vortData, -span, span, diverging),
	)
	return page.Render(w)
}
