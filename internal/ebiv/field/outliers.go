package field

import (
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"gonum.org/v1/gonum/mat"
)

// NoiseFloor is added to the neighbourhood residual of the normalised
// median test so that perfectly uniform neighbourhoods do not flag tiny
// deviations.
const NoiseFloor = 0.05

// Mask marks grid cells, usually outliers.
type Mask struct {
	Rows, Cols int
	flags      []bool
}

// NewMask returns an empty rows×cols mask.
func NewMask(rows, cols int) *Mask {
	return &Mask{Rows: rows, Cols: cols, flags: make([]bool, rows*cols)}
}

// At reports whether cell (r, c) is marked.
func (m *Mask) At(r, c int) bool { return m.flags[r*m.Cols+c] }

// Set marks or clears cell (r, c).
func (m *Mask) Set(r, c int, v bool) { m.flags[r*m.Cols+c] = v }

// Count returns the number of marked cells.
func (m *Mask) Count() int {
	n := 0
	for _, f := range m.flags {
		if f {
			n++
		}
	}
	return n
}

// Or marks every cell that is marked in o.
func (m *Mask) Or(o *Mask) {
	for i, f := range o.flags {
		m.flags[i] = m.flags[i] || f
	}
}

// median returns the median of vals, averaging the two middle values for
// an even count. vals is reordered.
func median(vals []float64) float64 {
	slices.Sort(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// neighbours appends the values of the up-to-8 cells around (r, c) to buf.
// Cells on the border or in a corner have fewer neighbours.
func neighbours(buf []float64, u mat.Matrix, r, c int) []float64 {
	rows, cols := u.Dims()
	buf = buf[:0]
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			rr, cc := r+dr, c+dc
			if (dr == 0 && dc == 0) || rr < 0 || cc < 0 || rr >= rows || cc >= cols {
				continue
			}
			buf = append(buf, u.At(rr, cc))
		}
	}
	return buf
}

// medianOutlier reports whether val deviates from the median of nbrs by
// more than thr times the neighbourhood's median absolute residual plus
// NoiseFloor.
func medianOutlier(val float64, nbrs []float64, thr float64, resid []float64) bool {
	if len(nbrs) == 0 {
		return false
	}
	med := median(nbrs)
	resid = resid[:0]
	for _, v := range nbrs {
		resid = append(resid, math.Abs(v-med))
	}
	norm := median(resid) + NoiseFloor
	if norm <= 0 {
		return false
	}
	return math.Abs(val-med)/norm > thr
}

// NormalizedMedianTest flags every cell of u whose normalised deviation
// from the median of its 8-neighbourhood exceeds thr.
func NormalizedMedianTest(u mat.Matrix, thr float64) *Mask {
	rows, cols := u.Dims()
	mask := NewMask(rows, cols)
	nbrs := make([]float64, 0, 8)
	resid := make([]float64, 0, 8)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			nbrs = neighbours(nbrs, u, r, c)
			if medianOutlier(u.At(r, c), nbrs, thr, resid) {
				mask.Set(r, c, true)
			}
		}
	}
	return mask
}

// Magnitude returns the element-wise vector magnitude of (vx, vy).
func Magnitude(vx, vy mat.Matrix) *mat.Dense {
	rows, cols := vx.Dims()
	if rows == 0 || cols == 0 {
		return &mat.Dense{}
	}
	mag := mat.NewDense(rows, cols, nil)
	mag.Apply(func(r, c int, _ float64) float64 {
		return math.Hypot(vx.At(r, c), vy.At(r, c))
	}, mag)
	return mag
}

func sameShape(a, b mat.Matrix) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("%w: component shapes differ (%dx%d vs %dx%d)", ebiv.ErrInvalidArgument, ar, ac, br, bc)
	}
	return nil
}

// DetectOutliers flags cells of the velocity field (vx, vy). A cell is
// flagged when its magnitude exceeds magThr (if magThr > 0), or, when
// medThr > 1, when at least two of the three normalised median tests on
// vx, vy and magnitude flag it.
func DetectOutliers(vx, vy mat.Matrix, magThr, medThr float64) (*Mask, error) {
	if err := sameShape(vx, vy); err != nil {
		return nil, err
	}
	rows, cols := vx.Dims()
	mask := NewMask(rows, cols)
	mag := Magnitude(vx, vy)

	if magThr > 0 {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if mag.At(r, c) > magThr {
					mask.Set(r, c, true)
				}
			}
		}
	}
	if medThr > 1 {
		mx := NormalizedMedianTest(vx, medThr)
		my := NormalizedMedianTest(vy, medThr)
		mm := NormalizedMedianTest(mag, medThr)
		for i := range mask.flags {
			votes := 0
			for _, m := range []*Mask{mx, my, mm} {
				if m.flags[i] {
					votes++
				}
			}
			if votes > 1 {
				mask.flags[i] = true
			}
		}
	}
	return mask, nil
}
