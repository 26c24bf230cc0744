package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid px/ms", PxPerMs, true},
		{"valid px/us", PxPerUs, true},
		{"valid px/s", PxPerS, true},
		{"speed unit", "mph", false},
		{"empty unit", "", false},
		{"uppercase", "PX/MS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got := GetValidUnitsString(); got != "px/ms, px/us, px/s" {
		t.Errorf("GetValidUnitsString() = %s", got)
	}
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("listed unit %s is not valid", u)
		}
	}
}

func TestConvertVelocity(t *testing.T) {
	tests := []struct {
		unit string
		want float64
	}{
		{PxPerMs, 2.5},
		{PxPerUs, 0.0025},
		{PxPerS, 2500},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, err := ConvertVelocity(2.5, tt.unit)
			if err != nil {
				t.Fatalf("ConvertVelocity(2.5, %s): %v", tt.unit, err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ConvertVelocity(2.5, %s) = %v, want %v", tt.unit, got, tt.want)
			}
		})
	}

	if _, err := ConvertVelocity(2.5, "m/s"); err == nil {
		t.Error("expected an error for an unknown unit")
	}
}

func TestShiftToVelocity(t *testing.T) {
	// 3 px over 3000 µs is 1 px/ms
	if got := ShiftToVelocity(3, 3000); got != 1 {
		t.Errorf("ShiftToVelocity = %v, want 1", got)
	}
	if got := ShiftToVelocity(3, 0); got != 0 {
		t.Errorf("zero interval should give 0, got %v", got)
	}
	if got := VelocityToShift(1.5, 4000); got != 6 {
		t.Errorf("VelocityToShift = %v, want 6", got)
	}
	if got := VelocityToShift(ShiftToVelocity(-2, 2000), 2000); got != -2 {
		t.Errorf("shift round trip = %v, want -2", got)
	}
	if got := MsToUs(2); got != 0.002 {
		t.Errorf("MsToUs = %v", got)
	}
}
