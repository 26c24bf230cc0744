package warp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RangeSpec defines a candidate velocity range in [px/ms].
type RangeSpec struct {
	Min  float64
	Max  float64
	Step float64
}

// ParseRangeSpec parses a "min:max:step" string into a RangeSpec.
// Returns an error if the format is invalid or values cannot be parsed.
func ParseRangeSpec(s string) (RangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return RangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	var vals [3]float64
	for i, name := range []string{"min", "max", "step"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return RangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[i], err)
		}
		vals[i] = v
	}

	spec := RangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}
	if spec.Step <= 0 {
		return RangeSpec{}, fmt.Errorf("step must be positive, got %f", spec.Step)
	}
	if spec.Min > spec.Max {
		return RangeSpec{}, fmt.Errorf("min %g exceeds max %g", spec.Min, spec.Max)
	}
	return spec, nil
}

// Values expands the range. See GenerateRange.
func (r RangeSpec) Values() []float64 { return GenerateRange(r.Min, r.Max, r.Step) }

// String formats the range as "min:max:step".
func (r RangeSpec) String() string {
	return fmt.Sprintf("%g:%g:%g", r.Min, r.Max, r.Step)
}

// GenerateRange generates a slice of float64 values from min to max (inclusive)
// stepping by step. Returns an empty slice if min > max.
// Limits the number of generated values to prevent excessive memory allocation.
func GenerateRange(min, max, step float64) []float64 {
	if step <= 0 || min > max {
		return nil
	}

	const maxValues = 10000
	expectedCount := int((max-min)/step) + 1
	if expectedCount > maxValues || expectedCount < 0 {
		return nil
	}

	result := make([]float64, 0, expectedCount)
	for i := 0; i < expectedCount+1; i++ {
		// Multiply rather than accumulate to avoid drift, then round off
		// representation noise.
		v := math.Round((min+float64(i)*step)*1e6) / 1e6
		if v > max+step*1e-9 {
			break
		}
		result = append(result, v)
	}
	return result
}
