// Package peak locates maxima in 2-D score maps and refines them to
// sub-grid precision with a three-point fit along each axis.
//
// The same routines serve the reward heat-maps of the motion-compensation
// estimator (axes are candidate velocities) and the correlation maps of
// the sum-of-correlation estimator (axes are pixel shifts).
package peak

import (
	"fmt"
	"math"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"gonum.org/v1/gonum/mat"
)

// Fit3 refines the position x0 of the centre sample of vals, where vals
// holds the values at x0-dx, x0 and x0+dx. A parabola is fitted through
// the three values; with exp set and all three values positive the fit is
// done on their logarithms, which matches a Gaussian peak exactly. A zero
// denominator leaves x0 unchanged.
func Fit3(x0 float64, vals [3]float64, dx float64, exp bool) float64 {
	a, b, c := vals[0], vals[1], vals[2]
	if exp && a > 0 && b > 0 && c > 0 {
		a, b, c = math.Log(a), math.Log(b), math.Log(c)
	}
	denom := 2*(a+c) - 4*b
	if denom == 0 {
		return x0
	}
	return x0 + (a-c)/denom*dx
}

// Result is a refined maximum of a reward heat-map.
type Result struct {
	VX, VY float64 // axis coordinates of the refined peak
	Value  float64 // map value at the discrete peak
	Events int     // event count at the discrete peak
}

// ArgMax returns the row and column of the largest element of m. Ties
// resolve to the first occurrence in row-major order.
func ArgMax(m mat.Matrix) (row, col int) {
	r, c := m.Dims()
	best := math.Inf(-1)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v > best {
				best, row, col = v, i, j
			}
		}
	}
	return row, col
}

// IsFlat reports whether every element of m is equal. Empty maps are flat.
func IsFlat(m mat.Matrix) bool {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return true
	}
	first := m.At(0, 0)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != first {
				return false
			}
		}
	}
	return true
}

// refine fits along the row and column through (iy, ix) when the peak is
// strictly interior on that axis and returns the refined offsets in grid
// units relative to the discrete peak.
func refine(m mat.Matrix, iy, ix int, exp bool) (fx, fy float64) {
	r, c := m.Dims()
	if ix > 0 && ix+1 < c {
		fx = Fit3(0, [3]float64{m.At(iy, ix-1), m.At(iy, ix), m.At(iy, ix+1)}, 1, exp)
	}
	if iy > 0 && iy+1 < r {
		fy = Fit3(0, [3]float64{m.At(iy-1, ix), m.At(iy, ix), m.At(iy+1, ix)}, 1, exp)
	}
	return fx, fy
}

// FindPeak locates the maximum of the map m, indexed [y][x] over the
// candidate axes axisY and axisX, and refines it along each axis where the
// peak is not on the edge of the grid. counts, when non-nil, supplies the
// event count reported at the peak. A flat map yields the zero Result.
//
// The axes must match the map dimensions; their spacing is taken from the
// first two entries.
func FindPeak(m, counts mat.Matrix, axisX, axisY []float64, exp bool) (Result, error) {
	r, c := m.Dims()
	if len(axisX) != c || len(axisY) != r {
		return Result{}, fmt.Errorf("%w: map is %dx%d but axes are %d and %d long",
			ebiv.ErrInvalidArgument, r, c, len(axisY), len(axisX))
	}
	if counts != nil {
		if cr, cc := counts.Dims(); cr != r || cc != c {
			return Result{}, fmt.Errorf("%w: count map is %dx%d, want %dx%d", ebiv.ErrInvalidArgument, cr, cc, r, c)
		}
	}
	if IsFlat(m) {
		return Result{}, nil
	}

	iy, ix := ArgMax(m)
	res := Result{VX: axisX[ix], VY: axisY[iy], Value: m.At(iy, ix)}
	if counts != nil {
		res.Events = int(counts.At(iy, ix))
	}
	fx, fy := refine(m, iy, ix, exp)
	if fx != 0 {
		res.VX += fx * (axisX[1] - axisX[0])
	}
	if fy != 0 {
		res.VY += fy * (axisY[1] - axisY[0])
	}
	return res, nil
}

// Shift is a refined peak position of a full correlation map, in pixels
// relative to the zero-shift centre cell.
type Shift struct {
	DX, DY float64
	Value  float64
}

// FindShift locates the maximum of a (2h-1)×(2w-1) correlation map and
// returns its sub-pixel offset from the centre cell. A flat map yields the
// zero Shift.
func FindShift(corr mat.Matrix, exp bool) Shift {
	if IsFlat(corr) {
		return Shift{}
	}
	r, c := corr.Dims()
	iy, ix := ArgMax(corr)
	fx, fy := refine(corr, iy, ix, exp)
	return Shift{
		DX:    float64(ix-c/2) + fx,
		DY:    float64(iy-r/2) + fy,
		Value: corr.At(iy, ix),
	}
}
