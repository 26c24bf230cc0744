package ebiv

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the estimator packages. Callers test with
// errors.Is; the concrete message carries the offending value.
var (
	// ErrInvalidArgument marks malformed input at the API boundary
	// (unknown polarity token, unknown objective, non-positive nt, ...).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDegenerateInput marks input that has no information content,
	// such as an empty sample or a zero-duration window. Most operations
	// absorb it and return a zero result instead of failing.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrUnsupportedObjective is returned for an unknown reward-function
	// name. It also matches ErrInvalidArgument.
	ErrUnsupportedObjective = fmt.Errorf("%w: unsupported objective function", ErrInvalidArgument)
)
