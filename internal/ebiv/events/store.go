// Package events holds the recording-wide event arrays (the EventStore).
//
// A Store is built once from a Recording handed over by a file loader and
// is read-only afterwards, so it can be shared by any number of sampling
// workers without locking.
package events

import (
	"fmt"
	"sort"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"gonum.org/v1/gonum/mat"
)

// Event is a single per-pixel brightness change.
type Event struct {
	T int64  // time in [µs], monotonic within a recording
	X uint16 // pixel column
	Y uint16 // pixel row
	P uint8  // polarity bit: 1 brighter, 0 darker
}

// Recording is the loader-facing description of an event data set:
// columnar event arrays plus sensor metadata.
type Recording struct {
	T []int64
	X []uint16
	Y []uint16
	P []uint8

	Width  int
	Height int
	// TimeStamp is the recording start offset in [µs], 0 when unknown.
	TimeStamp int64
}

// Store owns the event arrays of one recording.
type Store struct {
	t []int64
	x []uint16
	y []uint16
	p []uint8

	width     int
	height    int
	timeStamp int64
}

// NewStore validates rec and takes ownership of its arrays. Event times
// must be non-decreasing, polarity bits must be 0 or 1 and, when a sensor
// size is given, coordinates must lie on the sensor.
func NewStore(rec Recording) (*Store, error) {
	n := len(rec.T)
	if len(rec.X) != n || len(rec.Y) != n || len(rec.P) != n {
		return nil, fmt.Errorf("%w: column lengths differ (t=%d x=%d y=%d p=%d)",
			ebiv.ErrInvalidArgument, n, len(rec.X), len(rec.Y), len(rec.P))
	}
	if rec.Width < 0 || rec.Height < 0 {
		return nil, fmt.Errorf("%w: sensor size %dx%d", ebiv.ErrInvalidArgument, rec.Width, rec.Height)
	}
	for i := 0; i < n; i++ {
		if i > 0 && rec.T[i] < rec.T[i-1] {
			return nil, fmt.Errorf("%w: event %d time %d precedes %d", ebiv.ErrInvalidArgument, i, rec.T[i], rec.T[i-1])
		}
		if rec.P[i] > 1 {
			return nil, fmt.Errorf("%w: event %d polarity %d", ebiv.ErrInvalidArgument, i, rec.P[i])
		}
		if rec.Width > 0 && int(rec.X[i]) >= rec.Width {
			return nil, fmt.Errorf("%w: event %d x=%d outside width %d", ebiv.ErrInvalidArgument, i, rec.X[i], rec.Width)
		}
		if rec.Height > 0 && int(rec.Y[i]) >= rec.Height {
			return nil, fmt.Errorf("%w: event %d y=%d outside height %d", ebiv.ErrInvalidArgument, i, rec.Y[i], rec.Height)
		}
	}
	return &Store{
		t:         rec.T,
		x:         rec.X,
		y:         rec.Y,
		p:         rec.P,
		width:     rec.Width,
		height:    rec.Height,
		timeStamp: rec.TimeStamp,
	}, nil
}

// FromEvents builds a Store from a row-oriented event list.
func FromEvents(evs []Event, width, height int) (*Store, error) {
	rec := Recording{
		T:      make([]int64, len(evs)),
		X:      make([]uint16, len(evs)),
		Y:      make([]uint16, len(evs)),
		P:      make([]uint8, len(evs)),
		Width:  width,
		Height: height,
	}
	for i, ev := range evs {
		rec.T[i], rec.X[i], rec.Y[i], rec.P[i] = ev.T, ev.X, ev.Y, ev.P
	}
	return NewStore(rec)
}

// Len returns the number of events in the recording.
func (s *Store) Len() int { return len(s.t) }

// SensorSize returns the sensor dimensions as (height, width).
func (s *Store) SensorSize() (height, width int) { return s.height, s.width }

// TimeStamp returns the recording start offset in [µs].
func (s *Store) TimeStamp() int64 { return s.timeStamp }

// At returns event i.
func (s *Store) At(i int) Event {
	return Event{T: s.t[i], X: s.x[i], Y: s.y[i], P: s.p[i]}
}

// Columns exposes the underlying arrays. Callers must treat them as
// read-only; the Store is shared between workers.
func (s *Store) Columns() (t []int64, x, y []uint16, p []uint8) {
	return s.t, s.x, s.y, s.p
}

// TimeRange returns the first and last event time; ok is false for an
// empty store.
func (s *Store) TimeRange() (first, last int64, ok bool) {
	if len(s.t) == 0 {
		return 0, 0, false
	}
	return s.t[0], s.t[len(s.t)-1], true
}

// IndexRange returns the half-open index interval [lo, hi) of events with
// t1 <= time < t2. The bounds are order-independent.
func (s *Store) IndexRange(t1, t2 int64) (lo, hi int) {
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	lo = sort.Search(len(s.t), func(i int) bool { return s.t[i] >= t1 })
	hi = sort.Search(len(s.t), func(i int) bool { return s.t[i] >= t2 })
	return lo, hi
}

// CountPolarity returns how many events pass the polarity filter.
func (s *Store) CountPolarity(pol Polarity) int {
	n := 0
	for _, p := range s.p {
		if pol.Match(p) {
			n++
		}
	}
	return n
}

// TimeSlice returns all events with time in [min(t1,t2), max(t1,t2)).
func (s *Store) TimeSlice(t1, t2 int64) []Event {
	lo, hi := s.IndexRange(t1, t2)
	out := make([]Event, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, s.At(i))
	}
	return out
}

// PseudoImage accumulates the events of [t0, t0+duration) that pass the
// polarity filter into a (height × width) count image.
func (s *Store) PseudoImage(t0, duration int64, pol Polarity) (*mat.Dense, error) {
	if !pol.Valid() {
		return nil, fmt.Errorf("%w: polarity %d", ebiv.ErrInvalidArgument, int(pol))
	}
	if s.width == 0 || s.height == 0 {
		return nil, fmt.Errorf("%w: sensor size unknown", ebiv.ErrDegenerateInput)
	}
	img := mat.NewDense(s.height, s.width, nil)
	lo, hi := s.IndexRange(t0, t0+duration)
	for i := lo; i < hi; i++ {
		if !pol.Match(s.p[i]) {
			continue
		}
		r, c := int(s.y[i]), int(s.x[i])
		img.Set(r, c, img.At(r, c)+1)
	}
	return img, nil
}
