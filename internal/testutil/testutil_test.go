package testutil

import (
	"testing"
)

func TestAssertHelpers_Pass(t *testing.T) {
	t.Parallel()

	AssertNoError(t, nil)
	AssertClose(t, "x", 1.0001, 1.0, 1e-3)
}

func TestLatticePoints(t *testing.T) {
	t.Parallel()

	pts := LatticePoints(30, 20, 5, 4, 10)
	// x: 5,15,25  y: 4,14
	if len(pts) != 6 {
		t.Fatalf("len = %d, want 6", len(pts))
	}
	if pts[0] != [2]float64{5, 4} || pts[5] != [2]float64{25, 14} {
		t.Errorf("unexpected corners %v %v", pts[0], pts[5])
	}
}

func TestTranslatingEvents(t *testing.T) {
	t.Parallel()

	rec := TranslatingEvents(Pattern{
		Width: 20, Height: 20,
		Points:   [][2]float64{{2, 10}},
		VX:       2, // px/ms
		Period:   500,
		Duration: 5000,
		Polarity: 1,
	})
	if len(rec.T) != 10 {
		t.Fatalf("events = %d, want 10", len(rec.T))
	}
	// after 4.5 ms the point has moved 9 px
	if rec.X[9] != 11 || rec.Y[9] != 10 {
		t.Errorf("last event at (%d,%d), want (11,10)", rec.X[9], rec.Y[9])
	}
	for i := 1; i < len(rec.T); i++ {
		if rec.T[i] < rec.T[i-1] {
			t.Fatal("times must be non-decreasing")
		}
	}
}

func TestTranslatingEvents_DropsOffSensor(t *testing.T) {
	t.Parallel()

	rec := TranslatingEvents(Pattern{
		Width: 10, Height: 10,
		Points:   [][2]float64{{8, 5}},
		VX:       1,
		Period:   1000,
		Duration: 5000,
	})
	// x = 8, 9 stay on the sensor; 10, 11, 12 do not
	if len(rec.T) != 2 {
		t.Errorf("events = %d, want 2", len(rec.T))
	}
}

func TestTranslatingStore(t *testing.T) {
	t.Parallel()

	s := TranslatingStore(t, Pattern{
		Width: 10, Height: 10,
		Points:   [][2]float64{{1, 1}, {5, 5}},
		Period:   100,
		Duration: 1000,
	})
	if s.Len() != 20 {
		t.Errorf("Len = %d, want 20", s.Len())
	}
}
