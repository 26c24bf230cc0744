// Package testutil provides shared test utilities and fixtures.
//
// The event generators here build small synthetic recordings with known
// ground-truth motion so that estimator tests can check recovered
// velocities against the values used to create the data.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/eventflow/internal/ebiv/events"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertClose fails the test if got differs from want by more than tol.
func AssertClose(t testing.TB, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Errorf("%s = %g, want %g ± %g", name, got, want, tol)
	}
}

// Pattern describes a set of point sources translating at constant
// velocity across the sensor. Each point fires one event every Period µs.
type Pattern struct {
	Width, Height int
	// Points are the source positions at t = 0, in pixels.
	Points [][2]float64
	// VX, VY in [px/ms].
	VX, VY float64
	// Period between events of one point and total Duration, both [µs].
	Period   int64
	Duration int64
	// StartTime shifts all event times [µs].
	StartTime int64
	Polarity  uint8
}

// LatticePoints returns points on a regular lattice with the given pitch,
// starting at (x0, y0) and covering [0,width)×[0,height).
func LatticePoints(width, height int, x0, y0, pitch float64) [][2]float64 {
	var pts [][2]float64
	for y := y0; y < float64(height); y += pitch {
		for x := x0; x < float64(width); x += pitch {
			pts = append(pts, [2]float64{x, y})
		}
	}
	return pts
}

// TranslatingEvents renders p into an event recording. Positions are
// rounded to the nearest pixel; events that leave the sensor are dropped.
func TranslatingEvents(p Pattern) events.Recording {
	rec := events.Recording{Width: p.Width, Height: p.Height}
	if p.Period <= 0 {
		return rec
	}
	for dt := int64(0); dt < p.Duration; dt += p.Period {
		ms := float64(dt) / 1000
		for _, pt := range p.Points {
			x := int(math.Round(pt[0] + p.VX*ms))
			y := int(math.Round(pt[1] + p.VY*ms))
			if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
				continue
			}
			rec.T = append(rec.T, p.StartTime+dt)
			rec.X = append(rec.X, uint16(x))
			rec.Y = append(rec.Y, uint16(y))
			rec.P = append(rec.P, p.Polarity)
		}
	}
	return rec
}

// TranslatingStore is TranslatingEvents wrapped in a Store.
func TranslatingStore(t testing.TB, p Pattern) *events.Store {
	t.Helper()
	s, err := events.NewStore(TranslatingEvents(p))
	AssertNoError(t, err)
	return s
}
