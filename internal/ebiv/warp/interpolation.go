package warp

import (
	"fmt"
	"strings"

	"github.com/banshee-data/eventflow/internal/ebiv"
)

// Interpolation selects how a warped event is projected onto the
// accumulator grid.
type Interpolation int

const (
	// Nearest adds each event to the closest cell.
	Nearest Interpolation = iota
	// Bilinear splits each event's unit mass over its four enclosing cells.
	Bilinear
)

// ParseInterpolation resolves "nearest" or "bilinear" (also "linear"),
// case-insensitively.
func ParseInterpolation(name string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest":
		return Nearest, nil
	case "bilinear", "linear":
		return Bilinear, nil
	}
	return 0, fmt.Errorf("%w: interpolation %q (want nearest or bilinear)", ebiv.ErrInvalidArgument, name)
}

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// Valid reports whether i is a defined interpolation mode.
func (i Interpolation) Valid() bool { return i == Nearest || i == Bilinear }
