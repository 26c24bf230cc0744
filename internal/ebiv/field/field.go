// Package field holds assembled velocity fields and their post-processing:
// outlier detection, replacement by scattered linear interpolation, and
// derived quantities such as vorticity.
//
// A Field is a 4-D array (time step × row × column × 6). The last axis is
// the per-position tuple (centerX, centerY, Vx, Vy, score, eventCount); the
// layout and tuple order are the interchange format written to .npy files.
package field

import (
	"fmt"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"gonum.org/v1/gonum/mat"
)

// Components is the length of the per-position tuple.
const Components = 6

// Tuple component indices.
const (
	CompCX = iota
	CompCY
	CompVX
	CompVY
	CompScore
	CompCount
)

// Vector is one per-position estimate.
type Vector struct {
	CX, CY float64 // sample centre [px]
	VX, VY float64 // velocity [px/ms]
	Score  float64 // peak reward or correlation value
	Count  float64 // events behind the estimate
}

// Field is a dense (NT, NY, NX, 6) array stored in row-major order.
type Field struct {
	NT, NY, NX int
	Data       []float64
}

// New allocates a zeroed field.
func New(nt, ny, nx int) (*Field, error) {
	if nt < 0 || ny < 0 || nx < 0 {
		return nil, fmt.Errorf("%w: field shape (%d, %d, %d)", ebiv.ErrInvalidArgument, nt, ny, nx)
	}
	return &Field{NT: nt, NY: ny, NX: nx, Data: make([]float64, nt*ny*nx*Components)}, nil
}

// Shape returns the full array shape including the tuple axis.
func (f *Field) Shape() [4]int { return [4]int{f.NT, f.NY, f.NX, Components} }

func (f *Field) offset(t, y, x int) int { return ((t*f.NY+y)*f.NX + x) * Components }

// At returns the vector at time step t, row y, column x.
func (f *Field) At(t, y, x int) Vector {
	d := f.Data[f.offset(t, y, x):]
	return Vector{CX: d[CompCX], CY: d[CompCY], VX: d[CompVX], VY: d[CompVY], Score: d[CompScore], Count: d[CompCount]}
}

// Set stores v at time step t, row y, column x.
func (f *Field) Set(t, y, x int, v Vector) {
	d := f.Data[f.offset(t, y, x):]
	d[CompCX], d[CompCY], d[CompVX], d[CompVY], d[CompScore], d[CompCount] = v.CX, v.CY, v.VX, v.VY, v.Score, v.Count
}

// Plane copies component comp of time step t into an NY×NX matrix.
func (f *Field) Plane(t, comp int) *mat.Dense {
	if f.NY == 0 || f.NX == 0 {
		return nil
	}
	m := mat.NewDense(f.NY, f.NX, nil)
	for y := 0; y < f.NY; y++ {
		for x := 0; x < f.NX; x++ {
			m.Set(y, x, f.Data[f.offset(t, y, x)+comp])
		}
	}
	return m
}

// SetPlane writes m into component comp of time step t.
func (f *Field) SetPlane(t, comp int, m mat.Matrix) {
	for y := 0; y < f.NY; y++ {
		for x := 0; x < f.NX; x++ {
			f.Data[f.offset(t, y, x)+comp] = m.At(y, x)
		}
	}
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	return &Field{NT: f.NT, NY: f.NY, NX: f.NX, Data: append([]float64(nil), f.Data...)}
}
