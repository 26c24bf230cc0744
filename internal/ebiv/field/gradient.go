package field

import (
	"gonum.org/v1/gonum/mat"
)

// gradient1D writes the derivative of n samples read through at into out
// via set, using central differences inside and one-sided differences at
// the two ends. A single sample has zero derivative.
func gradient1D(n int, spacing float64, at func(i int) float64, set func(i int, v float64)) {
	if n < 2 {
		if n == 1 {
			set(0, 0)
		}
		return
	}
	set(0, (at(1)-at(0))/spacing)
	for i := 1; i < n-1; i++ {
		set(i, (at(i+1)-at(i-1))/(2*spacing))
	}
	set(n-1, (at(n-1)-at(n-2))/spacing)
}

// Gradient returns the derivatives of u along rows (d/dy) and columns
// (d/dx) for grid spacings dx and dy.
func Gradient(u mat.Matrix, dx, dy float64) (ddy, ddx *mat.Dense) {
	rows, cols := u.Dims()
	if rows == 0 || cols == 0 {
		return &mat.Dense{}, &mat.Dense{}
	}
	ddy = mat.NewDense(rows, cols, nil)
	ddx = mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		gradient1D(cols, dx,
			func(i int) float64 { return u.At(r, i) },
			func(i int, v float64) { ddx.Set(r, i, v) })
	}
	for c := 0; c < cols; c++ {
		gradient1D(rows, dy,
			func(i int) float64 { return u.At(i, c) },
			func(i int, v float64) { ddy.Set(i, c, v) })
	}
	return ddy, ddx
}

// Vorticity returns dVx/dy - dVy/dx of the field components vx and vy.
func Vorticity(vx, vy mat.Matrix, dx, dy float64) (*mat.Dense, error) {
	if err := sameShape(vx, vy); err != nil {
		return nil, err
	}
	dudy, _ := Gradient(vx, dx, dy)
	_, dvdx := Gradient(vy, dx, dy)
	if r, _ := dudy.Dims(); r == 0 {
		return dudy, nil
	}
	dudy.Sub(dudy, dvdx)
	return dudy, nil
}
