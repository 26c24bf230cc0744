package events

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pulsedStore emits the same pattern in every 1 ms period: one negative
// event in bin 0, one positive in bin 1, three in bin 3 and five in bin 4.
// A trailing burst in period 4 lies outside four-period windows.
func pulsedStore(t *testing.T) *Store {
	t.Helper()
	var evs []Event
	for p := int64(0); p < 4; p++ {
		base := p * 1000
		evs = append(evs,
			Event{T: base + 50, P: 0},
			Event{T: base + 150, P: 1},
			Event{T: base + 310, P: 1},
			Event{T: base + 320, P: 1},
			Event{T: base + 330, P: 1},
		)
		for k := int64(0); k < 5; k++ {
			evs = append(evs, Event{T: base + 400 + k, P: 1})
		}
	}
	for k := int64(0); k < 20; k++ {
		evs = append(evs, Event{T: 4700 + k, P: 1})
	}
	s, err := FromEvents(evs, 4, 4)
	require.NoError(t, err)
	return s
}

func TestStore_MeanPulseHistogram(t *testing.T) {
	s := pulsedStore(t)
	want := []float64{0, 0.01, 0, 0.03, 0.05, 0, 0, 0, 0, 0}

	tests := []struct {
		name string
		w    PulseWindow
	}{
		{"all periods", PulseWindow{FreqHz: 1000, BinWidthUs: 100, Periods: 4}},
		{"late start", PulseWindow{FreqHz: 1000, BinWidthUs: 100, Periods: 2, StartPeriod: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist, err := s.MeanPulseHistogram(tt.w)
			require.NoError(t, err)
			if diff := cmp.Diff(want, hist, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("histogram mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_MeanPulseHistogram_Validation(t *testing.T) {
	s := pulsedStore(t)
	tests := []struct {
		name string
		w    PulseWindow
	}{
		{"zero frequency", PulseWindow{BinWidthUs: 10, Periods: 1}},
		{"NaN frequency", PulseWindow{FreqHz: math.NaN(), BinWidthUs: 10, Periods: 1}},
		{"zero bin width", PulseWindow{FreqHz: 200, Periods: 1}},
		{"no periods", PulseWindow{FreqHz: 200, BinWidthUs: 10}},
		{"negative start", PulseWindow{FreqHz: 200, BinWidthUs: 10, Periods: 1, StartPeriod: -1}},
		{"bin wider than period", PulseWindow{FreqHz: 200, BinWidthUs: 6000, Periods: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.MeanPulseHistogram(tt.w)
			assert.True(t, errors.Is(err, ebiv.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestStore_EstimatePulseOffset(t *testing.T) {
	s := pulsedStore(t)
	off, err := s.EstimatePulseOffset(PulseWindow{FreqHz: 1000, BinWidthUs: 100, Periods: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(200), off, "first empty bin before the peak")
}

func TestPulseOffset(t *testing.T) {
	tests := []struct {
		name string
		hist []float64
		want int64
	}{
		{"empty", nil, 0},
		{"all zero", []float64{0, 0, 0}, 0},
		{"flat", []float64{2, 2, 2, 2}, 0},
		{"rise before peak", []float64{0, 1, 3, 5, 2}, 0},
		{"wraps past start", []float64{5, 1, 0, 2}, 20},
		{"lowest of several minima", []float64{1, 0.5, 4, 0.2, 3, 9}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PulseOffset(tt.hist, 10))
		})
	}
}
