package events

import (
	"fmt"
	"strings"

	"github.com/banshee-data/eventflow/internal/ebiv"
)

// Polarity selects which brightness-change direction a query keeps.
type Polarity int

// Polarity values. Negative and Positive match the raw polarity bit
// stored with each event (0 and 1 respectively).
const (
	PolarityNegative Polarity = 0
	PolarityPositive Polarity = 1
	PolarityBoth     Polarity = 2
)

// ParsePolarity resolves a polarity token as used in processing configs.
// Accepted tokens: pos/positive/+, neg/negative/-, both/all.
func ParsePolarity(token string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "pos", "positive", "+":
		return PolarityPositive, nil
	case "neg", "negative", "-":
		return PolarityNegative, nil
	case "both", "all":
		return PolarityBoth, nil
	}
	return 0, fmt.Errorf("%w: polarity %q (want pos, neg or both)", ebiv.ErrInvalidArgument, token)
}

// Valid reports whether p is one of the defined polarity values.
func (p Polarity) Valid() bool {
	return p == PolarityNegative || p == PolarityPositive || p == PolarityBoth
}

// Match reports whether an event with polarity bit pol passes the filter.
func (p Polarity) Match(pol uint8) bool {
	switch p {
	case PolarityPositive:
		return pol > 0
	case PolarityNegative:
		return pol == 0
	case PolarityBoth:
		return true
	}
	return false
}

func (p Polarity) String() string {
	switch p {
	case PolarityPositive:
		return "pos"
	case PolarityNegative:
		return "neg"
	case PolarityBoth:
		return "both"
	}
	return fmt.Sprintf("Polarity(%d)", int(p))
}
