package peak

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func parabola(x, xc float64) float64 { return 5 - (x-xc)*(x-xc) }
func gaussian(x, xc float64) float64 { return 3 * math.Exp(-(x-xc)*(x-xc)/2) }

func TestFit3(t *testing.T) {
	tests := []struct {
		name string
		x0   float64
		vals [3]float64
		dx   float64
		exp  bool
		want float64
	}{
		{
			name: "parabola unit spacing",
			vals: [3]float64{parabola(-1, 0.3), parabola(0, 0.3), parabola(1, 0.3)},
			dx:   1,
			want: 0.3,
		},
		{
			name: "parabola scaled axis",
			x0:   2,
			vals: [3]float64{parabola(-1, -0.4), parabola(0, -0.4), parabola(1, -0.4)},
			dx:   0.25,
			want: 2 - 0.1,
		},
		{
			name: "gaussian in log space",
			vals: [3]float64{gaussian(-1, 0.35), gaussian(0, 0.35), gaussian(1, 0.35)},
			dx:   1,
			exp:  true,
			want: 0.35,
		},
		{
			name: "flat triple keeps position",
			x0:   1.5,
			vals: [3]float64{2, 2, 2},
			dx:   1,
			want: 1.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit3(tt.x0, tt.vals, tt.dx, tt.exp)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestFit3_ExpFallsBackForNonPositive(t *testing.T) {
	vals := [3]float64{-0.5, 1, 0.2}
	assert.Equal(t, Fit3(0, vals, 1, false), Fit3(0, vals, 1, true))
}

func TestFindPeak_Flat(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {3, 4}, {7, 2}} {
		m := mat.NewDense(dims[0], dims[1], nil)
		m.Apply(func(_, _ int, _ float64) float64 { return 0.7 }, m)
		axisX := make([]float64, dims[1])
		axisY := make([]float64, dims[0])
		res, err := FindPeak(m, m, axisX, axisY, true)
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	}
}

func axis(start, step float64, n int) []float64 {
	a := make([]float64, n)
	for i := range a {
		a[i] = start + float64(i)*step
	}
	return a
}

func TestFindPeak_InteriorRefinement(t *testing.T) {
	axisX := axis(-2, 0.5, 9)
	axisY := axis(-1, 0.5, 5)
	m := mat.NewDense(len(axisY), len(axisX), nil)
	counts := mat.NewDense(len(axisY), len(axisX), nil)
	for i, vy := range axisY {
		for j, vx := range axisX {
			m.Set(i, j, 10-(vx-0.6)*(vx-0.6)-(vy+0.2)*(vy+0.2))
			counts.Set(i, j, float64(100+i*10+j))
		}
	}

	res, err := FindPeak(m, counts, axisX, axisY, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, res.VX, 1e-12)
	assert.InDelta(t, -0.2, res.VY, 1e-12)
	// discrete peak at vx=0.5 (j=5), vy=0 (i=2)
	assert.Equal(t, 125, res.Events)
	assert.InDelta(t, 10-0.01-0.04, res.Value, 1e-12)
}

func TestFindPeak_EdgePeakIsNotExtrapolated(t *testing.T) {
	axisX := axis(0, 1, 4)
	axisY := axis(0, 1, 3)
	m := mat.NewDense(3, 4, []float64{
		0, 1, 2, 9,
		0, 1, 3, 4,
		0, 0, 1, 2,
	})
	res, err := FindPeak(m, nil, axisX, axisY, false)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.VX, "column edge stays on grid")
	assert.Equal(t, 0.0, res.VY, "row edge stays on grid")
	assert.Equal(t, 9.0, res.Value)
	assert.Equal(t, 0, res.Events)
}

func TestFindPeak_AxisMismatch(t *testing.T) {
	m := mat.NewDense(2, 3, nil)
	_, err := FindPeak(m, nil, axis(0, 1, 2), axis(0, 1, 2), false)
	assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument))

	_, err = FindPeak(m, mat.NewDense(3, 3, nil), axis(0, 1, 3), axis(0, 1, 2), false)
	assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument))
}

func TestArgMax_FirstOccurrence(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 5, 2, 5, 0, 5})
	r, c := ArgMax(m)
	assert.Equal(t, 0, r)
	assert.Equal(t, 1, c)
}

func TestFindShift(t *testing.T) {
	// 5x7 map: centre cell is (2,3); Gaussian peak at shift (+1.25, -0.4)
	corr := mat.NewDense(5, 7, nil)
	for i := 0; i < 5; i++ {
		for j := 0; j < 7; j++ {
			dx := float64(j-3) - 1.25
			dy := float64(i-2) + 0.4
			corr.Set(i, j, math.Exp(-(dx*dx+dy*dy)/1.5))
		}
	}
	s := FindShift(corr, true)
	assert.InDelta(t, 1.25, s.DX, 1e-9)
	assert.InDelta(t, -0.4, s.DY, 1e-9)

	assert.Equal(t, Shift{}, FindShift(mat.NewDense(3, 3, nil), true))
}
