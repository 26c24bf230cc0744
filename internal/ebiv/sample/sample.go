// Package sample cuts space-time sub-volumes out of an event store and
// rasterizes them for the estimators.
//
// A Sample is the unit of work for both velocity estimators. It is owned
// by the caller that extracted it and is never modified afterwards; the
// warp accumulator lives in the warp package as an explicit scratch buffer.
package sample

import (
	"fmt"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/banshee-data/eventflow/internal/ebiv/events"
	"gonum.org/v1/gonum/mat"
)

// Rect is a pixel window [X, X+Width) × [Y, Y+Height) in sensor coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether pixel (x, y) lies in the window.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Center returns the window midpoint in sensor pixels.
func (r Rect) Center() (cx, cy float64) {
	return float64(2*r.X+r.Width) / 2, float64(2*r.Y+r.Height) / 2
}

// Empty reports whether the window covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Sample holds the events of one space-time window, rebased so that
// window-local time and coordinates start at zero. Every event satisfies
// 0 <= X < ROI.Width, 0 <= Y < ROI.Height and 0 <= T < T2-T1.
type Sample struct {
	T []int64 // [µs] since T1
	X []int
	Y []int

	ROI Rect
	// T1, T2 bound the time window [T1, T2) in recording time [µs].
	T1, T2 int64
}

// Extract selects the events of store inside roi and [min(t1,t2), max(t1,t2))
// that pass the polarity filter. An empty selection is a valid Sample.
func Extract(store *events.Store, roi Rect, t1, t2 int64, pol events.Polarity) (*Sample, error) {
	if !pol.Valid() {
		return nil, fmt.Errorf("%w: polarity %d", ebiv.ErrInvalidArgument, int(pol))
	}
	if roi.Width < 0 || roi.Height < 0 {
		return nil, fmt.Errorf("%w: window size %dx%d", ebiv.ErrInvalidArgument, roi.Width, roi.Height)
	}
	if t1 > t2 {
		t1, t2 = t2, t1
	}

	s := &Sample{ROI: roi, T1: t1, T2: t2}
	t, x, y, p := store.Columns()
	lo, hi := store.IndexRange(t1, t2)
	for i := lo; i < hi; i++ {
		ex, ey := int(x[i]), int(y[i])
		if !roi.Contains(ex, ey) || !pol.Match(p[i]) {
			continue
		}
		s.T = append(s.T, t[i]-t1)
		s.X = append(s.X, ex-roi.X)
		s.Y = append(s.Y, ey-roi.Y)
	}
	return s, nil
}

// Len returns the number of events in the sample.
func (s *Sample) Len() int { return len(s.T) }

// Duration returns the time window length [µs].
func (s *Sample) Duration() int64 { return s.T2 - s.T1 }

// Centroid returns the window center in sensor pixels.
func (s *Sample) Centroid() (cx, cy float64) { return s.ROI.Center() }

// Render returns a (height × width) image holding, per pixel, the
// window-local time of the last event that fired there. It returns nil for
// an empty sample.
func (s *Sample) Render() *mat.Dense {
	if s.Len() == 0 || s.ROI.Empty() {
		return nil
	}
	img := mat.NewDense(s.ROI.Height, s.ROI.Width, nil)
	for i := range s.T {
		img.Set(s.Y[i], s.X[i], float64(s.T[i]))
	}
	return img
}
