package field

import (
	"fmt"
	"math"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/fogleman/delaunay"
	"gonum.org/v1/gonum/mat"
)

// baryEps admits query points that sit on a triangle edge up to rounding.
const baryEps = 1e-9

// interpolator evaluates the piecewise-linear interpolant over a Delaunay
// triangulation of the known grid cells.
type interpolator struct {
	tri    *delaunay.Triangulation
	values []float64
}

// newInterpolator triangulates the unmasked cells of u. It returns nil when
// fewer than three non-collinear cells are known.
func newInterpolator(u mat.Matrix, mask *Mask) *interpolator {
	rows, cols := u.Dims()
	var pts []delaunay.Point
	var vals []float64
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if mask.At(r, c) {
				continue
			}
			pts = append(pts, delaunay.Point{X: float64(c), Y: float64(r)})
			vals = append(vals, u.At(r, c))
		}
	}
	if len(pts) < 3 {
		return nil
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil || len(tri.Triangles) == 0 {
		return nil
	}
	return &interpolator{tri: tri, values: vals}
}

// at returns the interpolated value at (x, y), or NaN when the point lies
// outside every triangle.
func (ip *interpolator) at(x, y float64) float64 {
	pts, tris := ip.tri.Points, ip.tri.Triangles
	for i := 0; i+2 < len(tris); i += 3 {
		ia, ib, ic := tris[i], tris[i+1], tris[i+2]
		a, b, c := pts[ia], pts[ib], pts[ic]
		det := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
		if det == 0 {
			continue
		}
		l1 := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / det
		l2 := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / det
		l3 := 1 - l1 - l2
		if l1 < -baryEps || l2 < -baryEps || l3 < -baryEps {
			continue
		}
		return l1*ip.values[ia] + l2*ip.values[ib] + l3*ip.values[ic]
	}
	return math.NaN()
}

// InterpolateOutliers returns a copy of u in which every masked cell is
// replaced by linear interpolation over a triangulation of the unmasked
// cells. Masked cells outside the convex hull of the unmasked cells are
// set to NaN.
func InterpolateOutliers(u mat.Matrix, mask *Mask) (*mat.Dense, error) {
	rows, cols := u.Dims()
	if rows != mask.Rows || cols != mask.Cols {
		return nil, fmt.Errorf("%w: mask is %dx%d, values are %dx%d", ebiv.ErrInvalidArgument, mask.Rows, mask.Cols, rows, cols)
	}
	if rows == 0 || cols == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.DenseCopyOf(u)
	if mask.Count() == 0 {
		return out, nil
	}

	ip := newInterpolator(u, mask)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !mask.At(r, c) {
				continue
			}
			v := math.NaN()
			if ip != nil {
				v = ip.at(float64(c), float64(r))
			}
			out.Set(r, c, v)
		}
	}
	return out, nil
}

// MedianFilter flags cells failing the normalised median test (threshold
// thr) on either component and replaces them in both components.
func MedianFilter(vx, vy mat.Matrix, thr float64) (outX, outY *mat.Dense, mask *Mask, err error) {
	if err := sameShape(vx, vy); err != nil {
		return nil, nil, nil, err
	}
	mask = NormalizedMedianTest(vx, thr)
	mask.Or(NormalizedMedianTest(vy, thr))
	return replaceBoth(vx, vy, mask)
}

// MagnitudeFilter flags cells whose velocity magnitude exceeds thr and
// replaces them in both components.
func MagnitudeFilter(vx, vy mat.Matrix, thr float64) (outX, outY *mat.Dense, mask *Mask, err error) {
	if err := sameShape(vx, vy); err != nil {
		return nil, nil, nil, err
	}
	rows, cols := vx.Dims()
	mask = NewMask(rows, cols)
	mag := Magnitude(vx, vy)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if mag.At(r, c) > thr {
				mask.Set(r, c, true)
			}
		}
	}
	return replaceBoth(vx, vy, mask)
}

func replaceBoth(vx, vy mat.Matrix, mask *Mask) (outX, outY *mat.Dense, _ *Mask, err error) {
	if outX, err = InterpolateOutliers(vx, mask); err != nil {
		return nil, nil, nil, err
	}
	if outY, err = InterpolateOutliers(vy, mask); err != nil {
		return nil, nil, nil, err
	}
	return outX, outY, mask, nil
}
