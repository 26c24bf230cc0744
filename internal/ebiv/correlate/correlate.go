// Package correlate implements the sum-of-correlation velocity estimator.
//
// Two occupancy volumes built from time-separated samples of the same
// window are cross-correlated slice by slice in the frequency domain. The
// per-slice correlation planes are summed over time and the peak of the
// summed map gives the pixel shift between the two samples.
package correlate

import (
	"fmt"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/peak"
	"github.com/banshee-data/eventflow/internal/ebiv/sample"
	"github.com/banshee-data/eventflow/internal/units"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Stack holds NT correlation planes of H×W cells each, where H = 2h-1 and
// W = 2w-1 for input slices of h×w. Cell (H/2, W/2) is the zero shift.
type Stack struct {
	NT, H, W int
	Data     []float64 // row-major [t][y][x]
}

// Plane returns correlation plane t as a matrix sharing the stack's data.
// A stack without cells yields an empty matrix.
func (s *Stack) Plane(t int) *mat.Dense {
	n := s.H * s.W
	if n == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(s.H, s.W, s.Data[t*n:(t+1)*n])
}

// Sum adds the planes over the time axis.
func (s *Stack) Sum() *mat.Dense {
	if s.H*s.W == 0 {
		return &mat.Dense{}
	}
	out := make([]float64, s.H*s.W)
	for t := 0; t < s.NT; t++ {
		floats.Add(out, s.Data[t*len(out):(t+1)*len(out)])
	}
	return mat.NewDense(s.H, s.W, out)
}

// CrossCorrelate computes the normalised full cross-correlation of b
// against a for every time slice. Each slice pair is mean-centred and the
// linear (non-circular) correlation is divided by the product of the two
// population standard deviations; the whole stack is then divided by
// NT·h·w. A slice pair where either slice has zero mean or zero spread
// contributes an all-zero plane.
//
// When b equals a shifted by (dx, dy) pixels the summed map peaks at cell
// (H/2+dy, W/2+dx).
func CrossCorrelate(a, b *sample.Volume) (*Stack, error) {
	if a.NT != b.NT || a.H != b.H || a.W != b.W {
		return nil, fmt.Errorf("%w: volume shapes differ (%dx%dx%d vs %dx%dx%d)",
			ebiv.ErrInvalidArgument, a.NT, a.H, a.W, b.NT, b.H, b.W)
	}
	nt, h, w := a.NT, a.H, a.W
	if h == 0 || w == 0 {
		return &Stack{NT: nt}, nil
	}
	rows, cols := 2*h-1, 2*w-1
	out := &Stack{NT: nt, H: rows, W: cols, Data: make([]float64, nt*rows*cols)}

	f := newFFT2(rows, cols)
	ga := make([]complex128, rows*cols)
	gb := make([]complex128, rows*cols)
	norm := float64(nt * h * w)

	for z := 0; z < nt; z++ {
		sa, sb := a.Slice(z), b.Slice(z)
		meanA, stdA := stat.PopMeanStdDev(sa, nil)
		meanB, stdB := stat.PopMeanStdDev(sb, nil)
		if meanA == 0 || meanB == 0 || stdA == 0 || stdB == 0 {
			continue
		}

		clear(ga)
		clear(gb)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				// a enters reversed along both axes so that the
				// convolution below becomes a correlation
				ga[(h-1-y)*cols+(w-1-x)] = complex(sa[y*w+x]-meanA, 0)
				gb[y*cols+x] = complex(sb[y*w+x]-meanB, 0)
			}
		}
		f.forward(ga)
		f.forward(gb)
		for i := range ga {
			ga[i] *= gb[i]
		}
		f.inverse(ga)

		scale := stdA * stdB * norm
		plane := out.Data[z*rows*cols : (z+1)*rows*cols]
		for i := range plane {
			plane[i] = real(ga[i]) / scale
		}
	}
	return out, nil
}

// Estimate runs the sum-of-correlation estimator on two samples of the
// same window taken tSep µs apart. The returned velocity is in [px/ms] and
// Events is the mean event count of the two samples. If either sample is
// empty the zero Result is returned.
func Estimate(s1, s2 *sample.Sample, nt int, tSep int64, exp bool) (peak.Result, error) {
	if tSep <= 0 {
		return peak.Result{}, fmt.Errorf("%w: time separation must be positive, got %d", ebiv.ErrInvalidArgument, tSep)
	}
	v1, err := sample.AsVolume(s1, nt)
	if err != nil {
		return peak.Result{}, err
	}
	v2, err := sample.AsVolume(s2, nt)
	if err != nil {
		return peak.Result{}, err
	}
	if s1.Len() == 0 || s2.Len() == 0 {
		return peak.Result{}, nil
	}

	stack, err := CrossCorrelate(v1, v2)
	if err != nil {
		return peak.Result{}, err
	}
	shift := peak.FindShift(stack.Sum(), exp)
	return peak.Result{
		VX:     units.ShiftToVelocity(shift.DX, tSep),
		VY:     units.ShiftToVelocity(shift.DY, tSep),
		Value:  shift.Value,
		Events: (s1.Len() + s2.Len()) / 2,
	}, nil
}
