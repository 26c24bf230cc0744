package render

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/banshee-data/eventflow/internal/ebiv/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func axis(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestShiftAxis(t *testing.T) {
	assert.Equal(t, []float64{-2, -1, 0, 1}, ShiftAxis(4))
	assert.Equal(t, []float64{-1, 0, 1}, ShiftAxis(3))
}

func TestHeatMap_PNG(t *testing.T) {
	m := mat.NewDense(3, 4, []float64{
		0, 1, 2, 3,
		1, 5, 2, 1,
		0, 1, 1, 0,
	})
	var buf bytes.Buffer
	err := HeatMap(&buf, m, axis(4, -1, 0.5), axis(3, -1, 1), HeatMapOptions{
		Title:  "reward",
		XLabel: "vx (px/ms)",
		YLabel: "vy (px/ms)",
		Mark:   &[2]float64{-0.5, 0},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature))
}

func TestHeatMap_DegenerateValues(t *testing.T) {
	tests := []struct {
		name string
		m    *mat.Dense
	}{
		{"flat", mat.NewDense(2, 2, []float64{1, 1, 1, 1})},
		{"all NaN", mat.NewDense(2, 2, []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN()})},
		{"some NaN", mat.NewDense(2, 2, []float64{math.NaN(), 1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, HeatMap(&buf, tt.m, axis(2, 0, 1), axis(2, 0, 1), HeatMapOptions{}))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngSignature))
		})
	}
}

func TestHeatMap_AxisMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := HeatMap(&buf, mat.NewDense(2, 3, nil), axis(2, 0, 1), axis(2, 0, 1), HeatMapOptions{})
	assert.Error(t, err)
}

func testField(t *testing.T) *field.Field {
	t.Helper()
	f, err := field.New(1, 2, 3)
	require.NoError(t, err)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			f.Set(0, r, c, field.Vector{
				CX:    20 + 40*float64(c),
				CY:    20 + 40*float64(r),
				VX:    float64(c),
				VY:    -float64(r),
				Count: 10,
			})
		}
	}
	v := f.At(0, 1, 2)
	v.VX = math.NaN()
	f.Set(0, 1, 2, v)
	return f
}

func TestGridSpacing(t *testing.T) {
	dx, dy := gridSpacing(testField(t), 0)
	assert.Equal(t, 40.0, dx)
	assert.Equal(t, 40.0, dy)

	single, err := field.New(1, 1, 1)
	require.NoError(t, err)
	dx, dy = gridSpacing(single, 0)
	assert.Equal(t, 1.0, dx)
	assert.Equal(t, 1.0, dy)
}

func TestPoints_SkipsNaN(t *testing.T) {
	f := testField(t)
	mag := field.Magnitude(f.Plane(0, field.CompVX), f.Plane(0, field.CompVY))
	data, lo, hi := points(f, 0, mag)
	assert.Len(t, data, 5)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 2.0, hi)
}

func TestFieldChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FieldChart(&buf, testField(t), 0, "run 1"))
	html := buf.String()
	assert.True(t, strings.Contains(html, "run 1"))
	assert.True(t, strings.Contains(html, "magnitude"))
	assert.True(t, strings.Contains(html, "vorticity"))
}

func TestFieldChart_BadTimeStep(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, FieldChart(&buf, testField(t), 1, "x"))
}
