package warp

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSample() *sample.Sample {
	return &sample.Sample{
		T:   []int64{0, 100, 250, 400, 999},
		X:   []int{0, 3, 3, 1, 4},
		Y:   []int{0, 2, 2, 1, 3},
		ROI: sample.Rect{X: 10, Y: 20, Width: 5, Height: 4},
		T1:  5000, T2: 6000,
	}
}

func TestWarpAndScore_ZeroVelocityMatchesRaster(t *testing.T) {
	s := smallSample()
	raster := make([]float64, 5*4)
	for i := range s.T {
		raster[s.Y[i]*5+s.X[i]]++
	}

	for _, interp := range []Interpolation{Nearest, Bilinear} {
		t.Run(interp.String(), func(t *testing.T) {
			acc := ForSample(s)
			res, err := WarpAndScore(s, 0, 0, interp, SumSquares, acc)
			require.NoError(t, err)
			assert.InDeltaSlice(t, raster, acc.Data, 1e-12)
			assert.Equal(t, 5, res.EventsUsed)
			assert.InDelta(t, 5.0/20, res.Mean, 1e-12)
			// cell (3,2) holds two events
			assert.InDelta(t, 1+4+1+1, res.Score, 1e-12)
		})
	}
}

func TestWarpAndScore_ResetsAccumulator(t *testing.T) {
	s := smallSample()
	acc := ForSample(s)
	first, err := WarpAndScore(s, 0, 0, Nearest, Variance, acc)
	require.NoError(t, err)
	second, err := WarpAndScore(s, 0, 0, Nearest, Variance, acc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWarpAndScore_NearestRoundsHalfToEven(t *testing.T) {
	// tMean = 500, an event at t=0 is shifted by -0.5 px at vx=-0.001 px/µs
	s := &sample.Sample{
		T:   []int64{0, 0},
		X:   []int{1, 2},
		Y:   []int{0, 0},
		ROI: sample.Rect{Width: 4, Height: 1},
		T2:  1000,
	}
	acc := ForSample(s)
	_, err := WarpAndScore(s, -0.001, 0, Nearest, MOA, acc)
	require.NoError(t, err)
	// 0.5 -> 0, 1.5 -> 2
	assert.Equal(t, []float64{1, 0, 1, 0}, acc.Data)
}

func TestWarpAndScore_DropsOutOfBounds(t *testing.T) {
	s := &sample.Sample{
		T:   []int64{0, 500},
		X:   []int{0, 1},
		Y:   []int{0, 0},
		ROI: sample.Rect{Width: 4, Height: 1},
		T2:  1000,
	}
	acc := ForSample(s)
	// the t=0 event moves +5 px and leaves the window, the t=500 event stays
	res, err := WarpAndScore(s, 0.01, 0, Nearest, SumSquares, acc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsUsed)
	assert.Equal(t, []float64{0, 1, 0, 0}, acc.Data)
}

func TestWarpAndScore_BilinearWeights(t *testing.T) {
	s := &sample.Sample{
		T:   []int64{0},
		X:   []int{1},
		Y:   []int{1},
		ROI: sample.Rect{Width: 3, Height: 3},
		T2:  1000,
	}
	acc := ForSample(s)
	// +0.25 px in x and +0.5 px in y
	res, err := WarpAndScore(s, 0.0005, 0.001, Bilinear, SumSquares, acc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsUsed)
	want := []float64{
		0, 0, 0,
		0, 0.375, 0.125,
		0, 0.375, 0.125,
	}
	assert.InDeltaSlice(t, want, acc.Data, 1e-12)
}

func TestWarpAndScore_BilinearPartialOutOfBounds(t *testing.T) {
	s := &sample.Sample{
		T:   []int64{0},
		X:   []int{2},
		Y:   []int{0},
		ROI: sample.Rect{Width: 3, Height: 1},
		T2:  1000,
	}
	acc := ForSample(s)
	res, err := WarpAndScore(s, 0.0005, 0, Bilinear, SumSquares, acc)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsUsed, "in-bounds share still counts")
	assert.InDelta(t, 0.75, acc.Data[2], 1e-12)
	assert.InDelta(t, 0.75, floatsSum(acc.Data), 1e-12)
}

func floatsSum(a []float64) float64 {
	var s float64
	for _, v := range a {
		s += v
	}
	return s
}

func TestWarpAndScore_Errors(t *testing.T) {
	s := smallSample()

	_, err := WarpAndScore(s, 0, 0, Nearest, Objective(42), ForSample(s))
	assert.True(t, errors.Is(err, ebiv.ErrUnsupportedObjective))

	_, err = WarpAndScore(s, 0, 0, Interpolation(9), Variance, ForSample(s))
	assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument))

	_, err = WarpAndScore(s, 0, 0, Nearest, Variance, NewAccumulator(3, 3))
	assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument))
}

func TestWarpAndScore_EmptySample(t *testing.T) {
	s := &sample.Sample{ROI: sample.Rect{Width: 4, Height: 4}, T2: 100}
	res, err := WarpAndScore(s, 0.01, 0.01, Nearest, Variance, ForSample(s))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestObjective_Eval(t *testing.T) {
	a := []float64{0, 1, 2, 3}
	e := math.E
	tests := []struct {
		obj  Objective
		want float64
	}{
		{Variance, 1.25},
		{SumSquares, 14},
		{SumExp, 1 + e + e*e + e*e*e},
		{R1, 14.0 / 4 * (1 + math.Exp(-3) + math.Exp(-6) + math.Exp(-9))},
		{ISOA, 2},
		{MOA, 3},
	}
	for _, tt := range tests {
		t.Run(tt.obj.String(), func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.obj.Eval(a), 1e-9)
		})
	}
	assert.True(t, math.IsNaN(Objective(-1).Eval(a)))
}

func TestParseObjective(t *testing.T) {
	tests := []struct {
		name string
		want Objective
	}{
		{"var", Variance},
		{"Variance", Variance},
		{"SumSq", SumSquares},
		{"sum_of_squares", SumSquares},
		{"SumExp", SumExp},
		{"sum_of_exponentials", SumExp},
		{"R1", R1},
		{"ISOA", ISOA},
		{"moa", MOA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseObjective(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseObjective("entropy")
	assert.True(t, errors.Is(err, ebiv.ErrUnsupportedObjective))
	assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument))
}

func TestParseInterpolation(t *testing.T) {
	got, err := ParseInterpolation("Nearest")
	require.NoError(t, err)
	assert.Equal(t, Nearest, got)

	got, err = ParseInterpolation("bilinear")
	require.NoError(t, err)
	assert.Equal(t, Bilinear, got)

	_, err = ParseInterpolation("cubic")
	assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument))
}
