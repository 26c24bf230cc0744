// Package warp implements the contrast-maximization velocity estimator.
//
// Events of a sample are projected along a trial velocity onto an image
// of warped events (IWE) and the IWE is scored with a reward function. The
// trial velocity that gives the sharpest image is the estimate. Each scan
// worker owns its Accumulator, so samples and stores stay read-only and
// can be shared freely.
package warp

import (
	"fmt"
	"math"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/sample"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Accumulator is the scratch image of warped events for one window size.
// It is overwritten by every WarpAndScore call and must not be shared by
// concurrent calls.
type Accumulator struct {
	Width, Height int
	Data          []float64 // row-major [y][x]
}

// NewAccumulator allocates an accumulator of width×height cells.
func NewAccumulator(width, height int) *Accumulator {
	width, height = max(width, 0), max(height, 0)
	return &Accumulator{Width: width, Height: height, Data: make([]float64, width*height)}
}

// ForSample allocates an accumulator sized to the sample window.
func ForSample(s *sample.Sample) *Accumulator {
	return NewAccumulator(s.ROI.Width, s.ROI.Height)
}

// Reset zeroes every cell.
func (a *Accumulator) Reset() { clear(a.Data) }

// Dense returns a copy of the accumulator as a matrix, or nil when empty.
func (a *Accumulator) Dense() *mat.Dense {
	if len(a.Data) == 0 {
		return nil
	}
	return mat.NewDense(a.Height, a.Width, append([]float64(nil), a.Data...))
}

func (a *Accumulator) add(x, y int, w float64) bool {
	if x < 0 || y < 0 || x >= a.Width || y >= a.Height {
		return false
	}
	a.Data[y*a.Width+x] += w
	return true
}

// Result is the outcome of one warp evaluation.
type Result struct {
	// Mean is the arithmetic mean of the accumulator.
	Mean float64
	// Score is the reward function value.
	Score float64
	// EventsUsed counts events that landed on the accumulator.
	EventsUsed int
}

// WarpAndScore projects every event of s to
//
//	(x + (t-tMean)·(-vx), y + (t-tMean)·(-vy))
//
// where tMean is the midpoint of the sample's time window and the velocity
// is in [px/µs], accumulates the projections into acc and scores the
// result with obj. Projections that leave the window are dropped, never
// clipped; with bilinear interpolation each of the four contributions is
// dropped on its own and the event counts as used when any in-bounds cell
// received weight.
func WarpAndScore(s *sample.Sample, vx, vy float64, interp Interpolation, obj Objective, acc *Accumulator) (Result, error) {
	if !obj.Valid() {
		return Result{}, fmt.Errorf("%w: %d", ebiv.ErrUnsupportedObjective, int(obj))
	}
	if !interp.Valid() {
		return Result{}, fmt.Errorf("%w: interpolation %d", ebiv.ErrInvalidArgument, int(interp))
	}
	if acc.Width != s.ROI.Width || acc.Height != s.ROI.Height {
		return Result{}, fmt.Errorf("%w: accumulator is %dx%d, window is %dx%d",
			ebiv.ErrInvalidArgument, acc.Width, acc.Height, s.ROI.Width, s.ROI.Height)
	}

	acc.Reset()
	if len(acc.Data) == 0 {
		return Result{}, nil
	}

	tMean := float64(s.Duration()) / 2
	used := 0
	for i := range s.T {
		dt := float64(s.T[i]) - tMean
		wx := float64(s.X[i]) - dt*vx
		wy := float64(s.Y[i]) - dt*vy

		switch interp {
		case Nearest:
			if acc.add(int(math.RoundToEven(wx)), int(math.RoundToEven(wy)), 1) {
				used++
			}
		case Bilinear:
			x0, y0 := math.Floor(wx), math.Floor(wy)
			fx, fy := wx-x0, wy-y0
			px, py := int(x0), int(y0)
			hit := false
			for _, c := range [4]struct {
				dx, dy int
				w      float64
			}{
				{0, 0, (1 - fx) * (1 - fy)},
				{1, 0, fx * (1 - fy)},
				{0, 1, (1 - fx) * fy},
				{1, 1, fx * fy},
			} {
				if c.w > 0 && acc.add(px+c.dx, py+c.dy, c.w) {
					hit = true
				}
			}
			if hit {
				used++
			}
		}
	}

	return Result{
		Mean:       floats.Sum(acc.Data) / float64(len(acc.Data)),
		Score:      obj.Eval(acc.Data),
		EventsUsed: used,
	}, nil
}
