package field

import "math"

// CleanStats summarises one Clean pass.
type CleanStats struct {
	Flagged   int // cells flagged as outliers
	Undefined int // flagged cells left NaN because no triangle covers them
	TimeSteps int
	PerStep   []*Mask
}

// Clean detects outliers in every time step of f and replaces the Vx and
// Vy components of flagged cells by linear interpolation. The returned
// field is a copy; f is left untouched.
func Clean(f *Field, magThr, medThr float64) (*Field, CleanStats, error) {
	out := f.Clone()
	stats := CleanStats{TimeSteps: f.NT}
	if f.NY == 0 || f.NX == 0 {
		return out, stats, nil
	}
	for t := 0; t < f.NT; t++ {
		vx, vy := f.Plane(t, CompVX), f.Plane(t, CompVY)
		mask, err := DetectOutliers(vx, vy, magThr, medThr)
		if err != nil {
			return nil, stats, err
		}
		stats.PerStep = append(stats.PerStep, mask)
		if mask.Count() == 0 {
			continue
		}
		nx, ny, _, err := replaceBoth(vx, vy, mask)
		if err != nil {
			return nil, stats, err
		}
		out.SetPlane(t, CompVX, nx)
		out.SetPlane(t, CompVY, ny)

		stats.Flagged += mask.Count()
		for r := 0; r < f.NY; r++ {
			for c := 0; c < f.NX; c++ {
				if mask.At(r, c) && math.IsNaN(nx.At(r, c)) {
					stats.Undefined++
				}
			}
		}
	}
	return out, stats, nil
}
