package warp

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/eventflow/internal/ebiv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Objective is a reward function evaluated on an image of warped events.
// Resolve names once with ParseObjective and pass the value into the scan.
type Objective int

// Reward functions, after Stoffregen & Kleeman (2019).
const (
	// Variance is the population variance of the accumulator.
	Variance Objective = iota
	// SumSquares is Σ A².
	SumSquares
	// SumExp is Σ exp(A).
	SumExp
	// R1 is mean(A²)·Σ exp(-3A).
	R1
	// ISOA counts cells holding more than one event.
	ISOA
	// MOA is max(A).
	MOA
)

// r1Exponent is the sparsity weight of the R1 reward.
const r1Exponent = 3

// isoaThreshold is the accumulation above which ISOA counts a cell.
const isoaThreshold = 1

var objectiveNames = map[string]Objective{
	"var":                 Variance,
	"variance":            Variance,
	"sumsq":               SumSquares,
	"sum_of_squares":      SumSquares,
	"sumexp":              SumExp,
	"sum_of_exponentials": SumExp,
	"r1":                  R1,
	"isoa":                ISOA,
	"moa":                 MOA,
}

// ParseObjective resolves a reward function name, case-insensitively.
// Unknown names return an error wrapping ebiv.ErrUnsupportedObjective.
func ParseObjective(name string) (Objective, error) {
	if o, ok := objectiveNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: %q", ebiv.ErrUnsupportedObjective, name)
}

func (o Objective) String() string {
	switch o {
	case Variance:
		return "var"
	case SumSquares:
		return "sumsq"
	case SumExp:
		return "sumexp"
	case R1:
		return "r1"
	case ISOA:
		return "isoa"
	case MOA:
		return "moa"
	}
	return fmt.Sprintf("Objective(%d)", int(o))
}

// Valid reports whether o is a defined reward function.
func (o Objective) Valid() bool { return o >= Variance && o <= MOA }

// Eval reduces the accumulator cells a to a scalar reward. a must not be
// empty.
func (o Objective) Eval(a []float64) float64 {
	switch o {
	case Variance:
		_, v := stat.PopMeanVariance(a, nil)
		return v
	case SumSquares:
		return floats.Dot(a, a)
	case SumExp:
		var sum float64
		for _, v := range a {
			sum += math.Exp(v)
		}
		return sum
	case R1:
		var sosa float64
		for _, v := range a {
			sosa += math.Exp(-r1Exponent * v)
		}
		return floats.Dot(a, a) / float64(len(a)) * sosa
	case ISOA:
		n := 0
		for _, v := range a {
			if v > isoaThreshold {
				n++
			}
		}
		return float64(n)
	case MOA:
		return floats.Max(a)
	}
	return math.NaN()
}
