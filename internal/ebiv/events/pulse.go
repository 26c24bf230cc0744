package events

import (
	"fmt"
	"math"

	"github.com/banshee-data/eventflow/internal/ebiv"
)

// PulseWindow selects the sampled part of a recording taken under pulsed
// illumination.
type PulseWindow struct {
	FreqHz      float64 // pulse frequency in [Hz]
	BinWidthUs  int64   // histogram bin width in [µs]
	Periods     int     // number of pulse periods to sample
	StartPeriod int     // first sampled period, counted from t=0
}

// Period returns the pulse period in [µs].
func (w PulseWindow) Period() float64 { return 1e6 / w.FreqHz }

func (w PulseWindow) validate() error {
	if !(w.FreqHz > 0) || math.IsInf(w.FreqHz, 0) {
		return fmt.Errorf("%w: pulse frequency %g Hz", ebiv.ErrInvalidArgument, w.FreqHz)
	}
	if w.BinWidthUs <= 0 {
		return fmt.Errorf("%w: bin width %d µs", ebiv.ErrInvalidArgument, w.BinWidthUs)
	}
	if w.Periods <= 0 || w.StartPeriod < 0 {
		return fmt.Errorf("%w: periods %d from %d", ebiv.ErrInvalidArgument, w.Periods, w.StartPeriod)
	}
	if int64(w.Period()) < w.BinWidthUs {
		return fmt.Errorf("%w: bin width %d µs exceeds pulse period %.1f µs",
			ebiv.ErrInvalidArgument, w.BinWidthUs, w.Period())
	}
	return nil
}

// MeanPulseHistogram folds the positive events of w.Periods pulse periods
// onto a single period and returns the mean event rate per bin in
// [events/µs]. Bin i covers [i·BinWidthUs, (i+1)·BinWidthUs) of the period
// measured from t=0, so the pulse need not be centred.
func (s *Store) MeanPulseHistogram(w PulseWindow) ([]float64, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	period := w.Period()
	hist := make([]float64, int(period/float64(w.BinWidthUs)))

	t0 := int64(period * float64(w.StartPeriod))
	lo, hi := s.IndexRange(t0, t0+int64(period*float64(w.Periods)))
	for i := lo; i < hi; i++ {
		if s.p[i] != 1 {
			continue
		}
		t := float64(s.t[i])
		rem := math.Floor(t - math.Floor(t/period)*period)
		if bin := int(rem) / int(w.BinWidthUs); bin >= 0 && bin < len(hist) {
			hist[bin]++
		}
	}

	norm := float64(w.Periods) * float64(w.BinWidthUs)
	for i := range hist {
		hist[i] /= norm
	}
	return hist, nil
}

// EstimatePulseOffset returns the sampling offset in [µs] that best aligns
// frame starts with the illumination pulses of w.
func (s *Store) EstimatePulseOffset(w PulseWindow) (int64, error) {
	hist, err := s.MeanPulseHistogram(w)
	if err != nil {
		return 0, err
	}
	return PulseOffset(hist, w.BinWidthUs), nil
}

// PulseOffset locates the pulse start in a mean pulse histogram: starting
// at the peak bin it walks backwards, wrapping around the period, and
// returns the start of the lowest bin seen. A histogram without a bin
// below its peak yields 0.
func PulseOffset(hist []float64, binWidthUs int64) int64 {
	n := len(hist)
	maxIdx, maxVal := 0, 0.0
	for i, v := range hist {
		if v > maxVal {
			maxIdx, maxVal = i, v
		}
	}

	var best int64
	minVal := maxVal
	for i := 0; i < n; i++ {
		idx := maxIdx - i
		if idx < 0 {
			idx += n
		}
		if hist[idx] < minVal {
			minVal = hist[idx]
			best = int64(idx) * binWidthUs
		}
	}
	return best
}
