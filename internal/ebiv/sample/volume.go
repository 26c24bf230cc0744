package sample

import (
	"fmt"

	"github.com/banshee-data/eventflow/internal/ebiv"
)

// Volume is a binary occupancy grid of NT time slices × H rows × W columns.
// Several events landing in the same cell still mark it with 1.
type Volume struct {
	NT, H, W int
	Data     []float64 // row-major [t][y][x]
}

// At returns the cell value at slice t, row y, column x.
func (v *Volume) At(t, y, x int) float64 { return v.Data[(t*v.H+y)*v.W+x] }

// Slice returns the row-major H×W plane of time slice t. The returned
// slice aliases the volume.
func (v *Volume) Slice(t int) []float64 {
	n := v.H * v.W
	return v.Data[t*n : (t+1)*n]
}

// Occupied returns the number of non-zero cells.
func (v *Volume) Occupied() int {
	n := 0
	for _, d := range v.Data {
		if d != 0 {
			n++
		}
	}
	return n
}

// AsVolume bins the sample's events into nt equal time slices spanning the
// sample's time window using bin = floor(t·nt/duration). Bins that fall
// outside [0, nt) are clamped to the nearest slice. An empty sample or a
// zero-length window yields an all-zero volume.
func AsVolume(s *Sample, nt int) (*Volume, error) {
	if nt <= 0 {
		return nil, fmt.Errorf("%w: %w: nt must be positive, got %d", ebiv.ErrInvalidArgument, ebiv.ErrDegenerateInput, nt)
	}
	h, w := max(s.ROI.Height, 0), max(s.ROI.Width, 0)
	v := &Volume{NT: nt, H: h, W: w, Data: make([]float64, nt*h*w)}

	dur := s.Duration()
	if s.Len() == 0 || dur <= 0 {
		return v, nil
	}
	for i, t := range s.T {
		bin := int(t * int64(nt) / dur)
		bin = min(max(bin, 0), nt-1)
		v.Data[(bin*h+s.Y[i])*w+s.X[i]] = 1
	}
	return v, nil
}
