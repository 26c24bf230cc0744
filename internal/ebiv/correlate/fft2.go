package correlate

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2 performs 2-D complex transforms of a fixed rows×cols grid by
// transforming every row and then every column.
type fft2 struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT
	col        []complex128
}

func newFFT2(rows, cols int) *fft2 {
	return &fft2{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		col:    make([]complex128, rows),
	}
}

// forward replaces the row-major grid g with its 2-D spectrum.
func (f *fft2) forward(g []complex128) { f.apply(g, false) }

// inverse replaces the spectrum g with its 2-D inverse transform,
// including the 1/(rows·cols) normalisation.
func (f *fft2) inverse(g []complex128) {
	f.apply(g, true)
	scale := complex(1/float64(f.rows*f.cols), 0)
	for i := range g {
		g[i] *= scale
	}
}

func (f *fft2) apply(g []complex128, inverse bool) {
	for r := 0; r < f.rows; r++ {
		row := g[r*f.cols : (r+1)*f.cols]
		if inverse {
			f.rowFFT.Sequence(row, row)
		} else {
			f.rowFFT.Coefficients(row, row)
		}
	}
	for c := 0; c < f.cols; c++ {
		for r := 0; r < f.rows; r++ {
			f.col[r] = g[r*f.cols+c]
		}
		if inverse {
			f.colFFT.Sequence(f.col, f.col)
		} else {
			f.colFFT.Coefficients(f.col, f.col)
		}
		for r := 0; r < f.rows; r++ {
			g[r*f.cols+c] = f.col[r]
		}
	}
}
